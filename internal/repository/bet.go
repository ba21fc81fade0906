package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-crash/internal/http-server/handlers/mysql"
	"go-crash/internal/http-server/model"
)

type BetRepository struct {
	dbhandler mysql.Handler
}

func NewBetRepository(dbhandler mysql.Handler) *BetRepository {
	return &BetRepository{dbhandler: dbhandler}
}

const betColumns = "id, uuid, round_id, user_id, amount, cashed_out_multiplier, is_inventory_bet, " +
	"created_at, updated_at"

func (repo *BetRepository) scanBet(row *sql.Row) (*model.Bet, error) {
	bet := &model.Bet{}

	err := row.Scan(
		&bet.ID,
		&bet.UUID,
		&bet.RoundID,
		&bet.UserID,
		&bet.Amount,
		&bet.CashedOutMultiplier,
		&bet.IsInventoryBet,
		&bet.CreatedAt,
		&bet.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return bet, nil
}

// SaveBetTx inserts the wager inside the placement transaction, after the
// conditional debit. The unique key (round_id, user_id, is_inventory_bet)
// rejects the duplicate of two concurrent placements.
func (repo *BetRepository) SaveBetTx(tx *sql.Tx, bet model.Bet) (int64, error) {
	const op = "repository.bet.SaveBetTx"

	const query = "INSERT INTO crash_bets(uuid, round_id, user_id, amount, is_inventory_bet, " +
		"created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?)"

	now := time.Now()

	res, err := repo.dbhandler.ExecuteTx(tx, query,
		bet.UUID.String(), bet.RoundID, bet.UserID, bet.Amount, bet.IsInventoryBet, now, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (repo *BetRepository) FindBetByUUID(uuid string) (*model.Bet, error) {
	const op = "repository.bet.FindBetByUUID"

	const query = "SELECT " + betColumns + " FROM crash_bets WHERE uuid = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, uuid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bet, err := repo.scanBet(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bet, nil
}

func (repo *BetRepository) CountBetsByRoundAndUser(roundID, userID int64, isInventory bool) (int, error) {
	const op = "repository.bet.CountBetsByRoundAndUser"

	const query = "SELECT COUNT(*) FROM crash_bets WHERE round_id = ? AND user_id = ? AND is_inventory_bet = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, roundID, userID, isInventory)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var count int

	if err = row.Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// MarkCashedOutTx sets the cash-out multiplier only if the bet has not been
// cashed already. Zero affected rows means a concurrent cash-out won.
func (repo *BetRepository) MarkCashedOutTx(tx *sql.Tx, betID int64, multiplier float64) (bool, error) {
	const op = "repository.bet.MarkCashedOutTx"

	const query = "UPDATE crash_bets SET cashed_out_multiplier = ?, updated_at = ? " +
		"WHERE id = ? AND cashed_out_multiplier IS NULL"

	res, err := repo.dbhandler.ExecuteTx(tx, query, multiplier, time.Now(), betID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return affected == 1, nil
}

// GetUncashedBetsByRound lists the losing (or refundable) bets at settlement.
func (repo *BetRepository) GetUncashedBetsByRound(roundID int64) ([]model.Bet, error) {
	const op = "repository.bet.GetUncashedBetsByRound"

	const query = "SELECT " + betColumns + " FROM crash_bets " +
		"WHERE round_id = ? AND cashed_out_multiplier IS NULL"

	rows, err := repo.dbhandler.PrepareAndQuery(query, roundID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bets []model.Bet

	for rows.Next() {
		bet := model.Bet{}

		err = rows.Scan(
			&bet.ID,
			&bet.UUID,
			&bet.RoundID,
			&bet.UserID,
			&bet.Amount,
			&bet.CashedOutMultiplier,
			&bet.IsInventoryBet,
			&bet.CreatedAt,
			&bet.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		bets = append(bets, bet)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bets, nil
}
