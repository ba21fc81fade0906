package bet

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"go-crash/internal/config"
	"go-crash/internal/http-server/handlers/event"
	"go-crash/internal/http-server/handlers/user/balance"
	"go-crash/internal/http-server/model"
	resp "go-crash/internal/lib/api/response"
	"go-crash/internal/lib/converter"
	"go-crash/internal/lib/logger/sl"
	"go-crash/internal/repository"
)

const mysqlDuplicateEntry = 1062

type SettingsSource interface {
	Crash() config.CrashSettings
}

// Ledger owns every money-moving wager operation. Both entry points mutate
// the user balance through conditional updates inside a single transaction,
// so concurrent submissions resolve to exactly one winner.
type Ledger struct {
	log      *slog.Logger
	roundRep repository.RoundRepository
	betRep   repository.BetRepository
	userRep  repository.UserRepository
	settings SettingsSource
	balance  balance.Interface
	pusher   event.Publisher
}

func NewLedger(
	log *slog.Logger,
	roundRep repository.RoundRepository,
	betRep repository.BetRepository,
	userRep repository.UserRepository,
	settings SettingsSource,
	balance balance.Interface,
	pusher event.Publisher) *Ledger {
	return &Ledger{
		log:      log,
		roundRep: roundRep,
		betRep:   betRep,
		userRep:  userRep,
		settings: settings,
		balance:  balance,
		pusher:   pusher,
	}
}

// PlaceBet validates the wager window and persists the debit and the bet row
// in one transaction. A zero-row debit is the InsufficientFunds signal; a
// duplicate key on the bet insert means a concurrent placement won.
func (l *Ledger) PlaceBet(
	user *model.User,
	roundUUID string,
	amount int64,
	isInventory bool,
	now time.Time,
) (*model.Bet, error) {
	const op = "crash.bet.PlaceBet"

	if user.IsBanned {
		return nil, fmt.Errorf("user is banned: %w", resp.ErrValidation)
	}

	round, err := l.roundRep.FindRoundByUUID(roundUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if round == nil {
		return nil, fmt.Errorf("round not found: %w", resp.ErrNotFound)
	}

	if !round.BetWindowOpen(now) {
		return nil, fmt.Errorf("bet window closed: %w", resp.ErrConflict)
	}

	s := l.settings.Crash()

	if amount < s.MinBet || amount > s.MaxBet {
		return nil, fmt.Errorf("amount out of limits: %w", resp.ErrValidation)
	}

	count, err := l.betRep.CountBetsByRoundAndUser(round.ID, user.ID, isInventory)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if count > 0 {
		return nil, fmt.Errorf("bet already placed on this round: %w", resp.ErrConflict)
	}

	tx, err := l.userRep.StartTransaction()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	debited, err := l.userRep.DebitTx(tx, user.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !debited {
		return nil, resp.ErrInsufficientFunds
	}

	bet := model.Bet{
		UUID:           uuid.New(),
		RoundID:        round.ID,
		UserID:         user.ID,
		Amount:         amount,
		IsInventoryBet: isInventory,
	}

	bet.ID, err = l.betRep.SaveBetTx(tx, bet)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return nil, fmt.Errorf("bet already placed on this round: %w", resp.ErrConflict)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = l.userRep.CreateUserBalanceTransactionTx(tx, user.ID, amount, config.Outcome, config.Crash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l.log.Info("bet placed",
		slog.Int64("bet_id", bet.ID),
		slog.Int64("round_id", round.ID),
		slog.Int64("user_id", user.ID))

	l.publishPlaced(user, round, &bet)

	return &bet, nil
}

// CashOutResult carries everything the handler reports back.
type CashOutResult struct {
	Bet        *model.Bet
	Multiplier float64
	Payout     int64
}

// CashOut locks in a payout before the crash. The client's claimed multiplier
// is advisory only: reconcileMultiplier substitutes the server-computed value
// whenever the claim drifts beyond tolerance.
func (l *Ledger) CashOut(
	user *model.User,
	betUUID string,
	claimedMultiplier float64,
	now time.Time,
) (*CashOutResult, error) {
	const op = "crash.bet.CashOut"

	bet, err := l.betRep.FindBetByUUID(betUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if bet == nil {
		return nil, fmt.Errorf("bet not found: %w", resp.ErrNotFound)
	}

	if bet.UserID != user.ID {
		return nil, fmt.Errorf("bet not found: %w", resp.ErrNotFound)
	}

	if bet.CashedOutMultiplier != nil {
		return nil, fmt.Errorf("bet already cashed out: %w", resp.ErrConflict)
	}

	round, err := l.roundRep.GetRoundByID(bet.RoundID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if round == nil {
		return nil, fmt.Errorf("round not found: %w", resp.ErrNotFound)
	}

	if round.Status != model.RoundActive || round.ActualStartAt == nil || now.Before(*round.ActualStartAt) {
		return nil, fmt.Errorf("round is not running: %w", resp.ErrConflict)
	}

	if !now.Before(round.ActualStartAt.Add(round.CrashDelay())) {
		return nil, fmt.Errorf("round already crashed: %w", resp.ErrConflict)
	}

	s := l.settings.Crash()

	multiplier := reconcileMultiplier(claimedMultiplier, round.MultiplierAt(now), s.CashOutTolerance)

	if multiplier > round.CrashMultiplier {
		return nil, fmt.Errorf("multiplier past crash point: %w", resp.ErrConflict)
	}

	payout := converter.Payout(bet.Amount, multiplier)

	tx, err := l.userRep.StartTransaction()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	cashed, err := l.betRep.MarkCashedOutTx(tx, bet.ID, multiplier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !cashed {
		return nil, fmt.Errorf("bet already cashed out: %w", resp.ErrConflict)
	}

	if err = l.userRep.CreditTx(tx, user.ID, payout); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = l.userRep.CreateUserBalanceTransactionTx(tx, user.ID, payout, config.Income, config.Crash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bet.CashedOutMultiplier = &multiplier

	l.log.Info("bet cashed out",
		slog.Int64("bet_id", bet.ID),
		slog.Float64("multiplier", multiplier),
		slog.Int64("payout", payout))

	l.publishCashedOut(user, round, bet, multiplier, payout)

	return &CashOutResult{
		Bet:        bet,
		Multiplier: multiplier,
		Payout:     payout,
	}, nil
}

// reconcileMultiplier is the named policy for client-supplied multipliers:
// the server value is ground truth, the claim is accepted only within the
// configured relative tolerance.
func reconcileMultiplier(claimed, server, tolerance float64) float64 {
	if claimed < 1.0 {
		return server
	}

	if math.Abs(claimed-server)/server > tolerance {
		return server
	}

	return claimed
}

func (l *Ledger) publishPlaced(user *model.User, round *model.Round, bet *model.Bet) {
	data := map[string]interface{}{
		"bet_uuid":   bet.UUID.String(),
		"round_uuid": round.UUID.String(),
		"user_uuid":  user.UUID.String(),
		"amount":     converter.CentsToString(bet.Amount),
	}

	if err := l.pusher.TriggerEvent("crash", "bet:placed", data); err != nil {
		l.log.Error("failed to publish bet placed", sl.Err(err))
	}

	if err := l.balance.PublishChange(user.ID, bet.Amount, config.Outcome, config.Crash); err != nil {
		l.log.Error("failed to publish balance change", sl.Err(err))
	}
}

func (l *Ledger) publishCashedOut(user *model.User, round *model.Round, bet *model.Bet, multiplier float64, payout int64) {
	data := map[string]interface{}{
		"bet_uuid":   bet.UUID.String(),
		"round_uuid": round.UUID.String(),
		"user_uuid":  user.UUID.String(),
		"multiplier": multiplier,
	}

	if err := l.pusher.TriggerEvent("crash", "bet:cashedOut", data); err != nil {
		l.log.Error("failed to publish bet cashed out", sl.Err(err))
	}

	private := map[string]interface{}{
		"amount":     converter.CentsToString(payout),
		"multiplier": multiplier,
	}

	if err := l.pusher.TriggerPrivate(user.UUID.String(), "win", private); err != nil {
		l.log.Error("failed to publish win notice", sl.Err(err))
	}

	if err := l.balance.PublishChange(user.ID, payout, config.Income, config.Crash); err != nil {
		l.log.Error("failed to publish balance change", sl.Err(err))
	}
}
