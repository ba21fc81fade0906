package bet

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"go-crash/internal/config"
	"go-crash/internal/http-server/handlers/mysql"
	"go-crash/internal/http-server/model"
	resp "go-crash/internal/lib/api/response"
	"go-crash/internal/repository"
)

type fakeSettings struct {
	s config.CrashSettings
}

func (f fakeSettings) Crash() config.CrashSettings { return f.s }

type fakePusher struct {
	events   []string
	privates []string
}

func (f *fakePusher) TriggerEvent(_, event string, _ map[string]interface{}) error {
	f.events = append(f.events, event)

	return nil
}

func (f *fakePusher) TriggerPrivate(_, event string, _ map[string]interface{}) error {
	f.privates = append(f.privates, event)

	return nil
}

type fakeBalance struct {
	changes []config.BalanceType
}

func (f *fakeBalance) Refund(_, _ int64, _ config.Game) error { return nil }

func (f *fakeBalance) PublishChange(_, _ int64, balanceType config.BalanceType, _ config.Game) error {
	f.changes = append(f.changes, balanceType)

	return nil
}

const roundColumns = "id, uuid, server_seed_id, client_seed, nonce, crash_multiplier, status, " +
	"scheduled_start_at, actual_start_at, created_at, updated_at"

const betColumns = "id, uuid, round_id, user_id, amount, cashed_out_multiplier, is_inventory_bet, " +
	"created_at, updated_at"

func newTestLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock, *fakePusher, *fakeBalance) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	handler := mysql.Handler{Conn: db}
	pusher := &fakePusher{}
	bal := &fakeBalance{}

	ledger := NewLedger(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		*repository.NewRoundRepository(handler),
		*repository.NewBetRepository(handler),
		*repository.NewUserRepository(handler),
		fakeSettings{s: config.DefaultCrashSettings},
		bal,
		pusher)

	return ledger, mock, pusher, bal
}

func expectRound(mock sqlmock.Sqlmock, pattern string, round model.Round, arg interface{}) {
	var startedAt interface{}
	if round.ActualStartAt != nil {
		startedAt = *round.ActualStartAt
	}

	rows := sqlmock.NewRows(splitColumns(roundColumns)).AddRow(
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

	mock.ExpectPrepare(pattern).ExpectQuery().WithArgs(arg).WillReturnRows(rows)
}

func expectBet(mock sqlmock.Sqlmock, bet model.Bet) {
	var cashedOut interface{}
	if bet.CashedOutMultiplier != nil {
		cashedOut = *bet.CashedOutMultiplier
	}

	rows := sqlmock.NewRows(splitColumns(betColumns)).AddRow(
		bet.ID,
		bet.UUID.String(),
		bet.RoundID,
		bet.UserID,
		bet.Amount,
		cashedOut,
		bet.IsInventoryBet,
		bet.CreatedAt,
		bet.UpdatedAt)

	mock.ExpectPrepare("SELECT (.+) FROM crash_bets WHERE uuid").
		ExpectQuery().WithArgs(bet.UUID.String()).WillReturnRows(rows)
}

func splitColumns(joined string) []string {
	cols := strings.Split(joined, ",")

	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}

	return cols
}

func TestPlaceBet(t *testing.T) {
	ledger, mock, pusher, bal := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	round := model.Round{
		ID:               7,
		UUID:             uuid.New(),
		ServerSeedID:     1,
		ClientSeed:       "a1b2c3d4",
		Nonce:            3,
		CrashMultiplier:  2.5,
		Status:           model.RoundWaiting,
		ScheduledStartAt: now.Add(5 * time.Second),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE uuid", round, round.UUID.String())

	mock.ExpectPrepare("SELECT COUNT(.+) FROM crash_bets").
		ExpectQuery().WithArgs(round.ID, user.ID, false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_balances SET balance = balance -").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO crash_bets").
		WillReturnResult(sqlmock.NewResult(99, 1))
	mock.ExpectExec("INSERT INTO user_balance_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	bet, err := ledger.PlaceBet(user, round.UUID.String(), 5000, false, now)

	require.NoError(t, err)
	require.NotNil(t, bet)
	require.Equal(t, int64(99), bet.ID)
	require.Equal(t, int64(5000), bet.Amount)

	require.Contains(t, pusher.events, "bet:placed")
	require.Contains(t, bal.changes, config.Outcome)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBetInsufficientFunds(t *testing.T) {
	ledger, mock, _, _ := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	round := model.Round{
		ID:               7,
		UUID:             uuid.New(),
		Status:           model.RoundWaiting,
		ScheduledStartAt: now.Add(5 * time.Second),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE uuid", round, round.UUID.String())

	mock.ExpectPrepare("SELECT COUNT(.+) FROM crash_bets").
		ExpectQuery().WithArgs(round.ID, user.ID, false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_balances SET balance = balance -").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	bet, err := ledger.PlaceBet(user, round.UUID.String(), 5000, false, now)

	require.Nil(t, bet)
	require.ErrorIs(t, err, resp.ErrInsufficientFunds)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBetWindowClosed(t *testing.T) {
	ledger, mock, _, _ := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	round := model.Round{
		ID:               7,
		UUID:             uuid.New(),
		Status:           model.RoundWaiting,
		ScheduledStartAt: now.Add(-time.Second),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE uuid", round, round.UUID.String())

	bet, err := ledger.PlaceBet(user, round.UUID.String(), 5000, false, now)

	require.Nil(t, bet)
	require.ErrorIs(t, err, resp.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBetDuplicate(t *testing.T) {
	ledger, mock, _, _ := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	round := model.Round{
		ID:               7,
		UUID:             uuid.New(),
		Status:           model.RoundWaiting,
		ScheduledStartAt: now.Add(5 * time.Second),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE uuid", round, round.UUID.String())

	mock.ExpectPrepare("SELECT COUNT(.+) FROM crash_bets").
		ExpectQuery().WithArgs(round.ID, user.ID, false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bet, err := ledger.PlaceBet(user, round.UUID.String(), 5000, false, now)

	require.Nil(t, bet)
	require.ErrorIs(t, err, resp.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBetBelowMinimum(t *testing.T) {
	ledger, mock, _, _ := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	round := model.Round{
		ID:               7,
		UUID:             uuid.New(),
		Status:           model.RoundWaiting,
		ScheduledStartAt: now.Add(5 * time.Second),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE uuid", round, round.UUID.String())

	bet, err := ledger.PlaceBet(user, round.UUID.String(), config.DefaultCrashSettings.MinBet-1, false, now)

	require.Nil(t, bet)
	require.ErrorIs(t, err, resp.ErrValidation)
}

func activeRound(now time.Time, crash float64, started time.Duration) model.Round {
	startedAt := now.Add(-started)

	return model.Round{
		ID:              7,
		UUID:            uuid.New(),
		CrashMultiplier: crash,
		Status:          model.RoundActive,
		ActualStartAt:   &startedAt,
		CreatedAt:       now.Add(-time.Minute),
		UpdatedAt:       now,
	}
}

func TestCashOut(t *testing.T) {
	ledger, mock, pusher, bal := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	// 11.00x runs 4s; two seconds in the server multiplier is 6.00
	round := activeRound(now, 11.0, 2*time.Second)

	bet := model.Bet{
		ID:        99,
		UUID:      uuid.New(),
		RoundID:   round.ID,
		UserID:    user.ID,
		Amount:    10000,
		CreatedAt: now.Add(-3 * time.Second),
		UpdatedAt: now.Add(-3 * time.Second),
	}

	expectBet(mock, bet)
	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE id", round, round.ID)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE crash_bets SET cashed_out_multiplier").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE user_balances SET balance = balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_balance_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := ledger.CashOut(user, bet.UUID.String(), 5.95, now)

	require.NoError(t, err)
	require.Equal(t, 5.95, result.Multiplier)
	require.Equal(t, int64(59500), result.Payout)

	require.Contains(t, pusher.events, "bet:cashedOut")
	require.Contains(t, pusher.privates, "win")
	require.Contains(t, bal.changes, config.Income)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCashOutClaimOutsideTolerance(t *testing.T) {
	ledger, mock, _, _ := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	round := activeRound(now, 11.0, 2*time.Second)

	bet := model.Bet{
		ID:        99,
		UUID:      uuid.New(),
		RoundID:   round.ID,
		UserID:    user.ID,
		Amount:    10000,
		CreatedAt: now.Add(-3 * time.Second),
		UpdatedAt: now.Add(-3 * time.Second),
	}

	expectBet(mock, bet)
	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE id", round, round.ID)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE crash_bets SET cashed_out_multiplier").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE user_balances SET balance = balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_balance_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// a 9.50x claim against a 6.00x server value drifts past tolerance;
	// the payout settles on the server value
	result, err := ledger.CashOut(user, bet.UUID.String(), 9.5, now)

	require.NoError(t, err)
	require.Equal(t, 6.0, result.Multiplier)
	require.Equal(t, int64(60000), result.Payout)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCashOutTwiceConflicts(t *testing.T) {
	ledger, mock, _, _ := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	round := activeRound(now, 11.0, 2*time.Second)

	bet := model.Bet{
		ID:        99,
		UUID:      uuid.New(),
		RoundID:   round.ID,
		UserID:    user.ID,
		Amount:    10000,
		CreatedAt: now.Add(-3 * time.Second),
		UpdatedAt: now.Add(-3 * time.Second),
	}

	expectBet(mock, bet)
	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE id", round, round.ID)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE crash_bets SET cashed_out_multiplier").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	result, err := ledger.CashOut(user, bet.UUID.String(), 5.95, now)

	require.Nil(t, result)
	require.ErrorIs(t, err, resp.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCashOutAfterCrash(t *testing.T) {
	ledger, mock, _, _ := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	// 11.00x runs 4s; five seconds in the round has crashed
	round := activeRound(now, 11.0, 5*time.Second)

	bet := model.Bet{
		ID:        99,
		UUID:      uuid.New(),
		RoundID:   round.ID,
		UserID:    user.ID,
		Amount:    10000,
		CreatedAt: now.Add(-6 * time.Second),
		UpdatedAt: now.Add(-6 * time.Second),
	}

	expectBet(mock, bet)
	expectRound(mock, "SELECT (.+) FROM crash_rounds WHERE id", round, round.ID)

	result, err := ledger.CashOut(user, bet.UUID.String(), 11.0, now)

	require.Nil(t, result)
	require.ErrorIs(t, err, resp.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCashOutForeignBet(t *testing.T) {
	ledger, mock, _, _ := newTestLedger(t)

	now := time.Now()
	user := &model.User{ID: 42, UUID: uuid.New()}

	bet := model.Bet{
		ID:        99,
		UUID:      uuid.New(),
		RoundID:   7,
		UserID:    43, // someone else's wager
		Amount:    10000,
		CreatedAt: now,
		UpdatedAt: now,
	}

	expectBet(mock, bet)

	result, err := ledger.CashOut(user, bet.UUID.String(), 2.0, now)

	require.Nil(t, result)
	require.ErrorIs(t, err, resp.ErrNotFound)
}

func TestReconcileMultiplier(t *testing.T) {
	cases := []struct {
		name      string
		claimed   float64
		server    float64
		tolerance float64
		want      float64
	}{
		{name: "claim within tolerance wins", claimed: 1.95, server: 2.0, tolerance: 0.15, want: 1.95},
		{name: "claim above within tolerance wins", claimed: 2.1, server: 2.0, tolerance: 0.15, want: 2.1},
		{name: "drifted claim replaced", claimed: 3.5, server: 2.0, tolerance: 0.15, want: 2.0},
		{name: "sub-1.0 claim replaced", claimed: 0.5, server: 2.0, tolerance: 0.15, want: 2.0},
		{name: "exact claim kept", claimed: 2.0, server: 2.0, tolerance: 0.15, want: 2.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, reconcileMultiplier(tc.claimed, tc.server, tc.tolerance))
		})
	}
}
