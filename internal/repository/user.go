package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-crash/internal/config"
	"go-crash/internal/http-server/handlers/mysql"
	"go-crash/internal/http-server/model"
)

type UserRepository struct {
	dbhandler mysql.Handler
}

func NewUserRepository(dbhandler mysql.Handler) *UserRepository {
	return &UserRepository{dbhandler: dbhandler}
}

func (repo *UserRepository) FindUserByUUID(uuid string) (*model.User, error) {
	const op = "repository.user.FindUserByUUID"

	const query = "SELECT id, uuid, is_banned FROM users WHERE uuid = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, uuid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &model.User{}

	err = row.Scan(&user.ID, &user.UUID, &user.IsBanned)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (repo *UserRepository) GetUserByID(userID int64) (*model.User, error) {
	const op = "repository.user.GetUserByID"

	const query = "SELECT id, uuid, is_banned FROM users WHERE id = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &model.User{}

	if err = row.Scan(&user.ID, &user.UUID, &user.IsBanned); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (repo *UserRepository) FindUserBalanceByID(userID int64) (*model.UserBalance, error) {
	const op = "repository.user.FindUserBalanceByID"

	const query = "SELECT balance FROM user_balances WHERE user_id = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	userBalance := &model.UserBalance{UserID: userID}

	err = row.Scan(&userBalance.Balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return userBalance, nil
}

// DebitTx decrements the balance only when it covers the amount. A false
// result is the InsufficientFunds signal; there is deliberately no
// read-then-check path anywhere in the codebase.
func (repo *UserRepository) DebitTx(tx *sql.Tx, userID, amount int64) (bool, error) {
	const op = "repository.user.DebitTx"

	const query = "UPDATE user_balances SET balance = balance - ?, updated_at = ? " +
		"WHERE user_id = ? AND balance >= ?"

	res, err := repo.dbhandler.ExecuteTx(tx, query, amount, time.Now(), userID, amount)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return affected == 1, nil
}

func (repo *UserRepository) CreditTx(tx *sql.Tx, userID, amount int64) error {
	const op = "repository.user.CreditTx"

	const query = "UPDATE user_balances SET balance = balance + ?, updated_at = ? WHERE user_id = ?"

	_, err := repo.dbhandler.ExecuteTx(tx, query, amount, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *UserRepository) CreateUserBalanceTransactionTx(
	tx *sql.Tx,
	userID int64,
	amount int64,
	balanceType config.BalanceType,
	game config.Game,
) error {
	const op = "repository.user.CreateUserBalanceTransactionTx"

	now := time.Now()

	const query = "INSERT INTO user_balance_transactions(user_id, value, type, module, created_at, updated_at) " +
		"VALUES(?, ?, ?, ?, ?, ?)"

	_, err := repo.dbhandler.ExecuteTx(tx, query, userID, amount, balanceType, game, now, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *UserRepository) StartTransaction() (*sql.Tx, error) {
	const op = "repository.user.StartTransaction"

	tx, err := repo.dbhandler.StartTransaction()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tx, nil
}
