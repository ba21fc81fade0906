package provably_fair

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"go-crash/internal/http-server/model"
	resp "go-crash/internal/lib/api/response"
	"go-crash/internal/lib/logger/sl"
	"go-crash/internal/repository"
)

type FairCheck struct {
	log      *slog.Logger
	roundRep repository.RoundRepository
	fair     *ProvablyFair
}

func NewFairCheck(log *slog.Logger, roundRep repository.RoundRepository, fair *ProvablyFair) *FairCheck {
	return &FairCheck{
		log:      log,
		roundRep: roundRep,
		fair:     fair,
	}
}

type FairResponse struct {
	resp.Response
	SeedHash        string  `json:"seed_hash"`
	ServerSeed      string  `json:"server_seed,omitempty"`
	ClientSeed      string  `json:"client_seed"`
	Nonce           int64   `json:"nonce"`
	CrashMultiplier float64 `json:"crash_multiplier,omitempty"`
}

// New serves the audit data for a round. The crash multiplier appears once
// the round settled; the raw server seed only once the seed was rotated out,
// because revealing a live seed would expose every future outcome on it.
func (f *FairCheck) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.provably_fair.fair_check.New"

		log := f.log.With(slog.String("op", op))

		round, err := f.roundRep.FindRoundByUUID(chi.URLParam(r, "uuid"))
		if err != nil {
			log.Error("failed to find round", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to find round", http.StatusInternalServerError))

			return
		}

		if round == nil {
			render.JSON(w, r, resp.Error("round not found", http.StatusNotFound))

			return
		}

		seed, revealed, err := f.fair.Reveal(round.ServerSeedID)
		if err != nil || seed == nil {
			log.Error("failed to load server seed", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to load server seed", http.StatusInternalServerError))

			return
		}

		response := FairResponse{
			Response:   resp.OK(),
			SeedHash:   seed.SeedHash,
			ClientSeed: round.ClientSeed,
			Nonce:      round.Nonce,
		}

		if round.Status == model.RoundFinished {
			response.CrashMultiplier = round.CrashMultiplier

			if revealed {
				response.ServerSeed = seed.Seed
			}
		}

		render.JSON(w, r, response)
	}
}

type Rotate struct {
	log  *slog.Logger
	fair *ProvablyFair
}

func NewRotate(log *slog.Logger, fair *ProvablyFair) *Rotate {
	return &Rotate{
		log:  log,
		fair: fair,
	}
}

type RotateResponse struct {
	resp.Response
	SeedHash string `json:"seed_hash"`
}

func (h *Rotate) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.provably_fair.rotate.New"

		seed, err := h.fair.Rotate()
		if err != nil {
			h.log.Error("failed to rotate seed", slog.String("op", op), sl.Err(err))

			render.JSON(w, r, resp.Error("failed to rotate seed", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, RotateResponse{
			Response: resp.OK(),
			SeedHash: seed.SeedHash,
		})
	}
}
