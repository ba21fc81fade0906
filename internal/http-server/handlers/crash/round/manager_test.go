package round

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"go-crash/internal/config"
	"go-crash/internal/http-server/handlers/crash/history"
	"go-crash/internal/http-server/handlers/job"
	"go-crash/internal/http-server/handlers/mysql"
	"go-crash/internal/http-server/handlers/provably_fair"
	"go-crash/internal/http-server/model"
	"go-crash/internal/repository"
)

type fakeOutcomes struct {
	out  *provably_fair.Outcome
	seed *model.ServerSeed
}

func (f *fakeOutcomes) NextOutcome(_ config.CrashSettings) (*provably_fair.Outcome, error) {
	return f.out, nil
}

func (f *fakeOutcomes) Reveal(_ int64) (*model.ServerSeed, bool, error) {
	return f.seed, false, nil
}

type fakeSettings struct {
	s config.CrashSettings
}

func (f fakeSettings) Crash() config.CrashSettings { return f.s }

// fakePusher is locked because the tick loop publishes from its own goroutine.
type fakePusher struct {
	mu       sync.Mutex
	events   []string
	privates []string
}

func (f *fakePusher) TriggerEvent(_, event string, _ map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, event)

	return nil
}

func (f *fakePusher) TriggerPrivate(_, event string, _ map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.privates = append(f.privates, event)

	return nil
}

func (f *fakePusher) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.events...)
}

func (f *fakePusher) Privates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.privates...)
}

type fakeBalance struct {
	refunds []int64
}

func (f *fakeBalance) Refund(_, amount int64, _ config.Game) error {
	f.refunds = append(f.refunds, amount)

	return nil
}

func (f *fakeBalance) PublishChange(_, _ int64, _ config.BalanceType, _ config.Game) error {
	return nil
}

func newTestManager(t *testing.T) (*Manager, sqlmock.Sqlmock, *fakePusher, *fakeBalance) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	handler := mysql.Handler{Conn: db}
	pusher := &fakePusher{}
	bal := &fakeBalance{}

	outcomes := &fakeOutcomes{
		out: &provably_fair.Outcome{
			ServerSeedID: 1,
			SeedHash:     "deadbeef",
			ClientSeed:   "a1b2c3d4",
			Nonce:        5,
			Multiplier:   2.5,
		},
		seed: &model.ServerSeed{ID: 1, SeedHash: "deadbeef"},
	}

	// jobs queue up without workers, so timers never touch the database here
	dispatcher := job.NewDispatcher(make(job.JobQueue, 100))

	manager := NewManager(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		*repository.NewRoundRepository(handler),
		*repository.NewBetRepository(handler),
		*repository.NewUserRepository(handler),
		outcomes,
		fakeSettings{s: config.DefaultCrashSettings},
		history.NewBuffer(),
		pusher,
		bal,
		dispatcher)

	return manager, mock, pusher, bal
}

func roundColumnNames() []string {
	cols := strings.Split("id, uuid, server_seed_id, client_seed, nonce, crash_multiplier, status, "+
		"scheduled_start_at, actual_start_at, created_at, updated_at", ",")

	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}

	return cols
}

func roundRows(round model.Round) *sqlmock.Rows {
	var startedAt interface{}
	if round.ActualStartAt != nil {
		startedAt = *round.ActualStartAt
	}

	return sqlmock.NewRows(roundColumnNames()).AddRow(
		round.ID,
		round.UUID.String(),
		round.ServerSeedID,
		round.ClientSeed,
		round.Nonce,
		round.CrashMultiplier,
		string(round.Status),
		round.ScheduledStartAt,
		startedAt,
		round.CreatedAt,
		round.UpdatedAt)
}

func TestReconcileCreatesRoundWhenIdle(t *testing.T) {
	manager, mock, pusher, _ := newTestManager(t)

	// reconcile sees no live round, then create re-checks before inserting
	mock.ExpectPrepare("FROM crash_rounds WHERE status IN").
		ExpectQuery().WillReturnRows(sqlmock.NewRows(roundColumnNames()))
	mock.ExpectPrepare("FROM crash_rounds WHERE status IN").
		ExpectQuery().WillReturnRows(sqlmock.NewRows(roundColumnNames()))

	mock.ExpectPrepare("INSERT INTO crash_rounds").
		ExpectExec().WillReturnResult(sqlmock.NewResult(7, 1))

	manager.Reconcile(time.Now(), config.Watchdog{
		StalenessThreshold: 15 * time.Second,
		DiscardThreshold:   time.Minute,
	})

	require.Contains(t, pusher.Events(), "round:created")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileDiscardsOverdueRound(t *testing.T) {
	manager, mock, pusher, bal := newTestManager(t)

	now := time.Now()

	round := model.Round{
		ID:               7,
		UUID:             uuid.New(),
		ServerSeedID:     1,
		ClientSeed:       "a1b2c3d4",
		Nonce:            5,
		CrashMultiplier:  2.5,
		Status:           model.RoundWaiting,
		ScheduledStartAt: now.Add(-2 * time.Minute),
		CreatedAt:        now.Add(-3 * time.Minute),
		UpdatedAt:        now.Add(-2 * time.Minute),
	}

	mock.ExpectPrepare("FROM crash_rounds WHERE status IN").
		ExpectQuery().WillReturnRows(roundRows(round))

	mock.ExpectPrepare("UPDATE crash_rounds SET status").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectPrepare("FROM crash_rounds WHERE id").
		ExpectQuery().WithArgs(round.ID).WillReturnRows(roundRows(round))

	betRows := sqlmock.NewRows([]string{
		"id", "uuid", "round_id", "user_id", "amount",
		"cashed_out_multiplier", "is_inventory_bet", "created_at", "updated_at",
	}).AddRow(99, uuid.New().String(), round.ID, 42, 5000, nil, false, now, now)

	mock.ExpectPrepare("FROM crash_bets").
		ExpectQuery().WithArgs(round.ID).WillReturnRows(betRows)

	manager.Reconcile(now, config.Watchdog{
		StalenessThreshold: 15 * time.Second,
		DiscardThreshold:   time.Minute,
	})

	require.Contains(t, pusher.Events(), "round:discarded")
	require.Equal(t, []int64{5000}, bal.refunds)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartRoundLostRaceIsNoOp(t *testing.T) {
	manager, mock, pusher, _ := newTestManager(t)

	// the conditional update finds the round no longer WAITING
	mock.ExpectPrepare("UPDATE crash_rounds SET status").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, manager.StartRound(7))

	require.Empty(t, pusher.Events())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCrashRoundPushesHistoryAndNotifiesLosers(t *testing.T) {
	manager, mock, pusher, _ := newTestManager(t)

	now := time.Now()
	startedAt := now.Add(-time.Second)

	round := model.Round{
		ID:               7,
		UUID:             uuid.New(),
		ServerSeedID:     1,
		ClientSeed:       "a1b2c3d4",
		Nonce:            5,
		CrashMultiplier:  2.5,
		Status:           model.RoundActive,
		ScheduledStartAt: now.Add(-8 * time.Second),
		ActualStartAt:    &startedAt,
		CreatedAt:        now.Add(-15 * time.Second),
		UpdatedAt:        now,
	}

	mock.ExpectPrepare("UPDATE crash_rounds SET status").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectPrepare("FROM crash_rounds WHERE id").
		ExpectQuery().WithArgs(round.ID).WillReturnRows(roundRows(round))

	betRows := sqlmock.NewRows([]string{
		"id", "uuid", "round_id", "user_id", "amount",
		"cashed_out_multiplier", "is_inventory_bet", "created_at", "updated_at",
	}).AddRow(99, uuid.New().String(), round.ID, 42, 5000, nil, false, now, now)

	mock.ExpectPrepare("FROM crash_bets").
		ExpectQuery().WithArgs(round.ID).WillReturnRows(betRows)

	mock.ExpectPrepare("SELECT id, uuid, is_banned FROM users WHERE id").
		ExpectQuery().WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "is_banned"}).
			AddRow(42, uuid.New().String(), false))

	require.NoError(t, manager.CrashRound(round.ID))

	require.Contains(t, pusher.Events(), "round:crashed")
	require.Contains(t, pusher.Privates(), "lose")
	require.Equal(t, []float64{2.5}, manager.history.Entries(0))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCrashRoundStopsTicker(t *testing.T) {
	manager, mock, pusher, _ := newTestManager(t)

	now := time.Now()
	startedAt := now.Add(-time.Second)

	// a clamped multiplier whose natural delay is hours out; only the stop
	// signal can end this loop within the test's lifetime
	round := model.Round{
		ID:               7,
		UUID:             uuid.New(),
		ServerSeedID:     1,
		ClientSeed:       "a1b2c3d4",
		Nonce:            5,
		CrashMultiplier:  100000,
		Status:           model.RoundActive,
		ScheduledStartAt: now.Add(-8 * time.Second),
		ActualStartAt:    &startedAt,
		CreatedAt:        now.Add(-15 * time.Second),
		UpdatedAt:        now,
	}

	done := make(chan struct{})
	stop := manager.newTickerStop(round.ID)

	go func() {
		manager.runTicker(round, stop)
		close(done)
	}()

	require.Eventually(t, func() bool {
		for _, event := range pusher.Events() {
			if event == "round:tick" {
				return true
			}
		}

		return false
	}, time.Second, 10*time.Millisecond)

	mock.ExpectPrepare("UPDATE crash_rounds SET status").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectPrepare("FROM crash_rounds WHERE id").
		ExpectQuery().WithArgs(round.ID).WillReturnRows(roundRows(round))

	mock.ExpectPrepare("FROM crash_bets").
		ExpectQuery().WithArgs(round.ID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "uuid", "round_id", "user_id", "amount",
			"cashed_out_multiplier", "is_inventory_bet", "created_at", "updated_at",
		}))

	require.NoError(t, manager.CrashRound(round.ID))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick loop kept running after the round finished")
	}

	require.NoError(t, mock.ExpectationsWereMet())
}
