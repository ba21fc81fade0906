package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-crash/internal/http-server/handlers/mysql"
	"go-crash/internal/http-server/model"
)

type RoundRepository struct {
	dbhandler mysql.Handler
}

func NewRoundRepository(dbhandler mysql.Handler) *RoundRepository {
	return &RoundRepository{dbhandler: dbhandler}
}

const roundColumns = "id, uuid, server_seed_id, client_seed, nonce, crash_multiplier, status, " +
	"scheduled_start_at, actual_start_at, created_at, updated_at"

func (repo *RoundRepository) scanRound(row *sql.Row) (*model.Round, error) {
	round := &model.Round{}

	err := row.Scan(
		&round.ID,
		&round.UUID,
		&round.ServerSeedID,
		&round.ClientSeed,
		&round.Nonce,
		&round.CrashMultiplier,
		&round.Status,
		&round.ScheduledStartAt,
		&round.ActualStartAt,
		&round.CreatedAt,
		&round.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return round, nil
}

func (repo *RoundRepository) SaveRound(round model.Round) (int64, error) {
	const op = "repository.round.SaveRound"

	const query = "INSERT INTO crash_rounds(uuid, server_seed_id, client_seed, nonce, crash_multiplier, " +
		"status, scheduled_start_at, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)"

	now := time.Now()

	res, err := repo.dbhandler.PrepareAndExecute(query,
		round.UUID.String(),
		round.ServerSeedID,
		round.ClientSeed,
		round.Nonce,
		round.CrashMultiplier,
		round.Status,
		round.ScheduledStartAt,
		now,
		now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (repo *RoundRepository) GetRoundByID(id int64) (*model.Round, error) {
	const op = "repository.round.GetRoundByID"

	const query = "SELECT " + roundColumns + " FROM crash_rounds WHERE id = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round, err := repo.scanRound(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return round, nil
}

func (repo *RoundRepository) FindRoundByUUID(uuid string) (*model.Round, error) {
	const op = "repository.round.FindRoundByUUID"

	const query = "SELECT " + roundColumns + " FROM crash_rounds WHERE uuid = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, uuid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round, err := repo.scanRound(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return round, nil
}

// GetCurrentRound returns the single WAITING or ACTIVE round, or nil when the
// lifecycle is between rounds. A unique index on the live status backs the
// at-most-one invariant; this query just trusts it.
func (repo *RoundRepository) GetCurrentRound() (*model.Round, error) {
	const op = "repository.round.GetCurrentRound"

	const query = "SELECT " + roundColumns + " FROM crash_rounds WHERE status IN ('waiting', 'active') " +
		"ORDER BY id DESC LIMIT 1"

	row, err := repo.dbhandler.PrepareAndQueryRow(query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round, err := repo.scanRound(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return round, nil
}

// MarkActive flips WAITING -> ACTIVE. The status predicate makes the
// transition a compare-and-swap: when a timer and the watchdog race, exactly
// one caller sees a true result and the other is a no-op.
func (repo *RoundRepository) MarkActive(id int64, actualStartAt time.Time) (bool, error) {
	const op = "repository.round.MarkActive"

	const query = "UPDATE crash_rounds SET status = ?, actual_start_at = ?, updated_at = ? " +
		"WHERE id = ? AND status = ?"

	res, err := repo.dbhandler.PrepareAndExecute(query,
		model.RoundActive, actualStartAt, time.Now(), id, model.RoundWaiting)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return affected == 1, nil
}

// MarkFinished flips a round from the given status to FINISHED under the same
// compare-and-swap guard as MarkActive.
func (repo *RoundRepository) MarkFinished(id int64, from model.RoundStatus) (bool, error) {
	const op = "repository.round.MarkFinished"

	const query = "UPDATE crash_rounds SET status = ?, updated_at = ? WHERE id = ? AND status = ?"

	res, err := repo.dbhandler.PrepareAndExecute(query,
		model.RoundFinished, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return affected == 1, nil
}

// GetRecentCrashMultipliers returns settled multipliers most-recent-first,
// used to rebuild the history ring after a restart.
func (repo *RoundRepository) GetRecentCrashMultipliers(limit int) ([]float64, error) {
	const op = "repository.round.GetRecentCrashMultipliers"

	const query = "SELECT crash_multiplier FROM crash_rounds WHERE status = 'finished' " +
		"ORDER BY id DESC LIMIT ?"

	rows, err := repo.dbhandler.PrepareAndQuery(query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var multipliers []float64

	for rows.Next() {
		var m float64

		if err = rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		multipliers = append(multipliers, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return multipliers, nil
}
