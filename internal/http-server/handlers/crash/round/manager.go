package round

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"go-crash/internal/config"
	"go-crash/internal/http-server/handlers/crash/history"
	"go-crash/internal/http-server/handlers/event"
	"go-crash/internal/http-server/handlers/job"
	"go-crash/internal/http-server/handlers/provably_fair"
	"go-crash/internal/http-server/handlers/user/balance"
	"go-crash/internal/http-server/model"
	"go-crash/internal/lib/logger/sl"
	"go-crash/internal/repository"
)

type OutcomeSource interface {
	NextOutcome(s config.CrashSettings) (*provably_fair.Outcome, error)
	Reveal(seedID int64) (*model.ServerSeed, bool, error)
}

type SettingsSource interface {
	Crash() config.CrashSettings
}

// Manager is the single authoritative lifecycle driver. Every transition goes
// through a status-guarded conditional update, so the in-process timers and
// the watchdog sweep race benignly: whichever fires first wins and the other
// becomes a no-op.
type Manager struct {
	log        *slog.Logger
	roundRep   repository.RoundRepository
	betRep     repository.BetRepository
	userRep    repository.UserRepository
	outcomes   OutcomeSource
	settings   SettingsSource
	history    *history.Buffer
	pusher     event.Publisher
	balance    balance.Interface
	dispatcher *job.Dispatcher

	mu sync.Mutex

	tickerMu    sync.Mutex
	tickerStops map[int64]chan struct{}
}

func NewManager(
	log *slog.Logger,
	roundRep repository.RoundRepository,
	betRep repository.BetRepository,
	userRep repository.UserRepository,
	outcomes OutcomeSource,
	settings SettingsSource,
	historyBuf *history.Buffer,
	pusher event.Publisher,
	balance balance.Interface,
	dispatcher *job.Dispatcher) *Manager {
	return &Manager{
		log:         log,
		roundRep:    roundRep,
		betRep:      betRep,
		userRep:     userRep,
		outcomes:    outcomes,
		settings:    settings,
		history:     historyBuf,
		pusher:      pusher,
		balance:     balance,
		dispatcher:  dispatcher,
		tickerStops: make(map[int64]chan struct{}),
	}
}

// CreateRound opens the next betting window. The crash multiplier is fixed
// here, before any bet exists, and stays secret until the crash event. A
// failure is left for the watchdog sweep to retry.
func (m *Manager) CreateRound() error {
	const op = "crash.round.CreateRound"

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.roundRep.GetCurrentRound()
	if err != nil {
		m.log.Error("failed to check current round", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if current != nil {
		m.log.Debug("round already in progress, create skipped", slog.Int64("round_id", current.ID))

		return nil
	}

	s := m.settings.Crash()

	out, err := m.outcomes.NextOutcome(s)
	if err != nil {
		m.log.Error("failed to fix round outcome", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	round := model.Round{
		UUID:             uuid.New(),
		ServerSeedID:     out.ServerSeedID,
		ClientSeed:       out.ClientSeed,
		Nonce:            out.Nonce,
		CrashMultiplier:  out.Multiplier,
		Status:           model.RoundWaiting,
		ScheduledStartAt: time.Now().Add(s.WaitDuration),
	}

	round.ID, err = m.roundRep.SaveRound(round)
	if err != nil {
		m.log.Error("failed to save round", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("round created",
		slog.Int64("round_id", round.ID),
		slog.Int64("nonce", round.Nonce))

	m.publishCreated(&round, out.SeedHash, s.WaitDuration)
	m.scheduleCountdown(&round, s.WaitDuration)

	m.dispatcher.Dispatch(&StartRoundJob{Manager: m, RoundID: round.ID}, s.WaitDuration)

	return nil
}

// StartRound flips the round ACTIVE. Only the caller that wins the
// conditional update schedules the crash and the tick loop.
func (m *Manager) StartRound(roundID int64) error {
	const op = "crash.round.StartRound"

	ok, err := m.roundRep.MarkActive(roundID, time.Now())
	if err != nil {
		m.log.Error("failed to start round", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		m.log.Debug("start already applied, skipped", slog.Int64("round_id", roundID))

		return nil
	}

	round, err := m.roundRep.GetRoundByID(roundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("round started",
		slog.Int64("round_id", round.ID),
		slog.String("crash_in", round.CrashDelay().String()))

	m.publishEvent("round:started", map[string]interface{}{
		"round_uuid":      round.UUID.String(),
		"actual_start_at": round.ActualStartAt.Format(time.RFC3339Nano),
	})

	go m.runTicker(*round, m.newTickerStop(round.ID))

	m.dispatcher.Dispatch(&CrashRoundJob{Manager: m, RoundID: round.ID}, round.CrashDelay())

	return nil
}

// CrashRound settles the round. Bets without a cash-out are losses and need
// no mutation: the stake was debited at placement. Losers get a private
// notice, the multiplier joins the history ring, and the next round is
// scheduled after the cool-down.
func (m *Manager) CrashRound(roundID int64) error {
	const op = "crash.round.CrashRound"

	ok, err := m.roundRep.MarkFinished(roundID, model.RoundActive)
	if err != nil {
		m.log.Error("failed to crash round", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		m.log.Debug("crash already applied, skipped", slog.Int64("round_id", roundID))

		return nil
	}

	m.stopTicker(roundID)

	round, err := m.roundRep.GetRoundByID(roundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.history.Push(round.CrashMultiplier)

	m.log.Info("round crashed",
		slog.Int64("round_id", round.ID),
		slog.Float64("multiplier", round.CrashMultiplier))

	m.publishEvent("round:crashed", map[string]interface{}{
		"round_uuid": round.UUID.String(),
		"multiplier": round.CrashMultiplier,
	})

	m.notifyLosers(round)

	m.dispatcher.Dispatch(&CreateRoundJob{Manager: m}, config.CoolDown)

	return nil
}

// DiscardRound finishes a WAITING round that never ran. Stakes go back to
// the players: a round that was never ACTIVE cannot keep them.
func (m *Manager) DiscardRound(roundID int64) error {
	const op = "crash.round.DiscardRound"

	ok, err := m.roundRep.MarkFinished(roundID, model.RoundWaiting)
	if err != nil {
		m.log.Error("failed to discard round", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		m.log.Debug("discard already applied, skipped", slog.Int64("round_id", roundID))

		return nil
	}

	m.stopTicker(roundID)

	round, err := m.roundRep.GetRoundByID(roundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Warn("round discarded without running", slog.Int64("round_id", round.ID))

	m.refundBets(round)

	m.publishEvent("round:discarded", map[string]interface{}{
		"round_uuid": round.UUID.String(),
	})

	m.dispatcher.Dispatch(&CreateRoundJob{Manager: m}, 0)

	return nil
}

// Reconcile is the watchdog entry point: it re-derives the due transition
// for the current round, or creates one when the lifecycle stalled with no
// round at all.
func (m *Manager) Reconcile(now time.Time, wd config.Watchdog) {
	current, err := m.roundRep.GetCurrentRound()
	if err != nil {
		m.log.Error("reconcile failed to load current round", sl.Err(err))

		return
	}

	if current == nil {
		if err = m.CreateRound(); err != nil {
			m.log.Error("reconcile failed to create round", sl.Err(err))
		}

		return
	}

	s := m.settings.Crash()

	switch NextAction(current, now, wd.StalenessThreshold, wd.DiscardThreshold, s.MaxRoundDuration) {
	case ActionStart:
		if err = m.StartRound(current.ID); err != nil {
			m.log.Error("reconcile failed to start round", sl.Err(err))
		}
	case ActionCrash:
		if err = m.CrashRound(current.ID); err != nil {
			m.log.Error("reconcile failed to crash round", sl.Err(err))
		}
	case ActionDiscard:
		if err = m.DiscardRound(current.ID); err != nil {
			m.log.Error("reconcile failed to discard round", sl.Err(err))
		}
	}
}

func (m *Manager) notifyLosers(round *model.Round) {
	bets, err := m.betRep.GetUncashedBetsByRound(round.ID)
	if err != nil {
		m.log.Error("failed to load losing bets", sl.Err(err))

		return
	}

	for _, b := range bets {
		user, err := m.userRep.GetUserByID(b.UserID)
		if err != nil {
			m.log.Error("failed to find losing user", sl.Err(err))

			continue
		}

		err = m.pusher.TriggerPrivate(user.UUID.String(), "lose", map[string]interface{}{
			"amount": b.Amount,
		})
		if err != nil {
			m.log.Error("failed to send lose notice", sl.Err(err))
		}
	}
}

func (m *Manager) refundBets(round *model.Round) {
	bets, err := m.betRep.GetUncashedBetsByRound(round.ID)
	if err != nil {
		m.log.Error("failed to load refundable bets", sl.Err(err))

		return
	}

	for _, b := range bets {
		if err = m.balance.Refund(b.UserID, b.Amount, config.Crash); err != nil {
			m.log.Error("failed to refund bet", sl.Err(err), slog.Int64("bet_id", b.ID))
		}
	}
}

func (m *Manager) publishCreated(round *model.Round, seedHash string, wait time.Duration) {
	m.publishEvent("round:created", map[string]interface{}{
		"round_uuid":         round.UUID.String(),
		"seed_hash":          seedHash,
		"client_seed":        round.ClientSeed,
		"nonce":              round.Nonce,
		"scheduled_start_at": round.ScheduledStartAt.Format(time.RFC3339Nano),
		"wait_seconds":       int(wait / time.Second),
	})
}

func (m *Manager) scheduleCountdown(round *model.Round, wait time.Duration) {
	total := int(wait / time.Second)

	for elapsed := 1; elapsed < total; elapsed++ {
		m.dispatcher.Dispatch(&CountdownJob{
			Manager:     m,
			RoundUUID:   round.UUID.String(),
			SecondsLeft: total - elapsed,
		}, time.Duration(elapsed)*config.CountdownInterval)
	}
}

func (m *Manager) publishEvent(name string, data map[string]interface{}) {
	if err := m.pusher.TriggerEvent("crash", name, data); err != nil {
		m.log.Error("failed to publish event", sl.Err(err), slog.String("event", name))
	}
}
