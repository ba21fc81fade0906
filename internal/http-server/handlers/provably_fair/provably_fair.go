package provably_fair

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"golang.org/x/exp/slog"

	"go-crash/internal/config"
	"go-crash/internal/http-server/model"
	"go-crash/internal/lib/logger/sl"
	"go-crash/internal/lib/random"
	"go-crash/internal/repository"
)

// Generate derives the crash multiplier for a round. It is a pure function of
// its inputs: after settlement the seeds and nonce are published so any party
// can recompute the result.
//
// The digest is HMAC-SHA256 keyed by the server seed over "clientSeed:nonce".
// A digest divisible by round(1/instantCrashProbability) busts instantly at
// the minimum multiplier. Otherwise the top 52 bits form a uniform U in
// (0,1] and the multiplier is targetRTP*(1-p)/U, clamped to the configured
// bounds and rounded to two decimals.
func Generate(serverSeed, clientSeed string, nonce int64, s config.CrashSettings) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(clientSeed + ":" + strconv.FormatInt(nonce, 10)))
	digest := hex.EncodeToString(h.Sum(nil))

	if s.InstantCrashProbability > 0 {
		modulus := int64(math.Round(1 / s.InstantCrashProbability))
		if modulus < 2 {
			modulus = 2
		}

		n, _ := new(big.Int).SetString(digest, 16)
		if new(big.Int).Mod(n, big.NewInt(modulus)).Sign() == 0 {
			return s.MinMultiplier
		}
	}

	top52, _ := strconv.ParseUint(digest[:13], 16, 64)

	u := float64(top52) / float64(uint64(1)<<52)
	if u < 1e-12 {
		u = 1e-12
	}

	k := s.TargetRTP * (1 - s.InstantCrashProbability)

	m := k / u
	if m < s.MinMultiplier {
		m = s.MinMultiplier
	}
	if m > s.MaxMultiplier {
		m = s.MaxMultiplier
	}

	return math.Round(m*100) / 100
}

// HashSeed is the public commitment for a server seed.
func HashSeed(seed string) string {
	h := sha256.Sum256([]byte(seed))

	return hex.EncodeToString(h[:])
}

type ProvablyFair struct {
	seedRep repository.ServerSeedRepository
	log     *slog.Logger
}

func NewProvablyFair(seedRep repository.ServerSeedRepository, log *slog.Logger) *ProvablyFair {
	return &ProvablyFair{
		seedRep: seedRep,
		log:     log,
	}
}

// Outcome is everything the lifecycle needs to fix a round at creation.
type Outcome struct {
	ServerSeedID int64
	SeedHash     string
	ClientSeed   string
	Nonce        int64
	Multiplier   float64
}

// NextOutcome allocates the next nonce on the current seed, draws a fresh
// client seed and fixes the crash multiplier. Called exactly once per round.
func (f *ProvablyFair) NextOutcome(settings config.CrashSettings) (*Outcome, error) {
	const op = "provably_fair.NextOutcome"

	seed, err := f.seedRep.AllocateNonce()
	if err != nil {
		f.log.Error("failed to allocate nonce", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if seed == nil {
		return nil, fmt.Errorf("%s: no current server seed", op)
	}

	clientSeed := random.NewRandomString(32)

	return &Outcome{
		ServerSeedID: seed.ID,
		SeedHash:     seed.SeedHash,
		ClientSeed:   clientSeed,
		Nonce:        seed.Nonce,
		Multiplier:   Generate(seed.Seed, clientSeed, seed.Nonce, settings),
	}, nil
}

// Rotate retires the current server seed and installs a fresh one. The old
// seed stays in storage for audit of already-settled rounds.
func (f *ProvablyFair) Rotate() (*model.ServerSeed, error) {
	const op = "provably_fair.Rotate"

	seed := random.NewRandomString(64)

	rotated, err := f.seedRep.Rotate(seed, HashSeed(seed))
	if err != nil {
		f.log.Error("failed to rotate server seed", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f.log.Info("server seed rotated", slog.Int64("seed_id", rotated.ID))

	return rotated, nil
}

// Reveal returns the audit data for a settled round's seed. Seeds still in
// use are only revealed as their hash commitment.
func (f *ProvablyFair) Reveal(seedID int64) (*model.ServerSeed, bool, error) {
	const op = "provably_fair.Reveal"

	seed, err := f.seedRep.GetByID(seedID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if seed == nil {
		return nil, false, nil
	}

	return seed, !seed.IsCurrent, nil
}
