package balance

import (
	"fmt"

	"golang.org/x/exp/slog"

	"go-crash/internal/config"
	"go-crash/internal/http-server/handlers/event"
	"go-crash/internal/lib/converter"
	"go-crash/internal/lib/logger/sl"
	"go-crash/internal/repository"
)

// Debits and credits for wagers happen inside the bet ledger's transaction;
// this service owns the paths outside it: refunds for discarded rounds and
// the private balance notifications sent after a commit.
type Interface interface {
	Refund(userID int64, amount int64, game config.Game) error
	PublishChange(userID int64, amount int64, balanceType config.BalanceType, game config.Game) error
}

type Balance struct {
	userRep repository.UserRepository
	log     *slog.Logger
	pusher  event.Publisher
}

func NewBalance(
	userRep repository.UserRepository,
	log *slog.Logger,
	pusher event.Publisher) *Balance {
	return &Balance{
		userRep: userRep,
		log:     log,
		pusher:  pusher,
	}
}

// Refund returns a stake from a round that never ran. Credit and journal row
// commit together; the notification goes out only after.
func (b *Balance) Refund(userID int64, amount int64, game config.Game) error {
	const op = "handlers.user.balance.Refund"

	tx, err := b.userRep.StartTransaction()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if err = b.userRep.CreditTx(tx, userID, amount); err != nil {
		b.log.Error("failed to credit user balance", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if err = b.userRep.CreateUserBalanceTransactionTx(tx, userID, amount, config.Refund, game); err != nil {
		b.log.Error("failed to create user balance transaction", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return b.PublishChange(userID, amount, config.Refund, game)
}

// PublishChange routes the updated balance to the owning user only.
func (b *Balance) PublishChange(userID int64, amount int64, balanceType config.BalanceType, game config.Game) error {
	const op = "handlers.user.balance.PublishChange"

	user, err := b.userRep.GetUserByID(userID)
	if err != nil {
		b.log.Error("failed to find user by id", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	userBalance, err := b.userRep.FindUserBalanceByID(user.ID)
	if err != nil {
		b.log.Error("failed to find user balance by id", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	data := map[string]interface{}{
		"amount":         converter.CentsToString(amount),
		"operation_type": string(balanceType),
		"module":         string(game),
		"balance":        converter.CentsToString(userBalance.Balance),
	}

	return b.pusher.TriggerPrivate(user.UUID.String(), "balance:update", data)
}
