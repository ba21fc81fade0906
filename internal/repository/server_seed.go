package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-crash/internal/http-server/handlers/mysql"
	"go-crash/internal/http-server/model"
)

type ServerSeedRepository struct {
	dbhandler mysql.Handler
}

func NewServerSeedRepository(dbhandler mysql.Handler) *ServerSeedRepository {
	return &ServerSeedRepository{dbhandler: dbhandler}
}

const seedColumns = "id, seed, seed_hash, nonce, is_current, retired_at, created_at"

func (repo *ServerSeedRepository) scanSeed(row *sql.Row) (*model.ServerSeed, error) {
	seed := &model.ServerSeed{}

	err := row.Scan(
		&seed.ID,
		&seed.Seed,
		&seed.SeedHash,
		&seed.Nonce,
		&seed.IsCurrent,
		&seed.RetiredAt,
		&seed.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return seed, nil
}

func (repo *ServerSeedRepository) GetCurrent() (*model.ServerSeed, error) {
	const op = "repository.server_seed.GetCurrent"

	const query = "SELECT " + seedColumns + " FROM crash_seeds WHERE is_current = 1 LIMIT 1"

	row, err := repo.dbhandler.PrepareAndQueryRow(query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seed, err := repo.scanSeed(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seed, nil
}

// GetByID also returns retired seeds: settled rounds must stay auditable
// after a rotation.
func (repo *ServerSeedRepository) GetByID(id int64) (*model.ServerSeed, error) {
	const op = "repository.server_seed.GetByID"

	const query = "SELECT " + seedColumns + " FROM crash_seeds WHERE id = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seed, err := repo.scanSeed(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seed, nil
}

// AllocateNonce durably increments and returns the next nonce for the current
// seed. Increment-then-read runs in one transaction so two creates can never
// observe the same value.
func (repo *ServerSeedRepository) AllocateNonce() (*model.ServerSeed, error) {
	const op = "repository.server_seed.AllocateNonce"

	tx, err := repo.dbhandler.StartTransaction()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	_, err = repo.dbhandler.ExecuteTx(tx, "UPDATE crash_seeds SET nonce = nonce + 1 WHERE is_current = 1")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	row := tx.QueryRow("SELECT " + seedColumns + " FROM crash_seeds WHERE is_current = 1 LIMIT 1")

	seed := &model.ServerSeed{}

	err = row.Scan(
		&seed.ID,
		&seed.Seed,
		&seed.SeedHash,
		&seed.Nonce,
		&seed.IsCurrent,
		&seed.RetiredAt,
		&seed.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seed, nil
}

// Rotate retires the current seed and installs a fresh one with nonce 0. The
// retired row is kept so historical rounds remain verifiable.
func (repo *ServerSeedRepository) Rotate(seed, seedHash string) (*model.ServerSeed, error) {
	const op = "repository.server_seed.Rotate"

	tx, err := repo.dbhandler.StartTransaction()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	now := time.Now()

	_, err = repo.dbhandler.ExecuteTx(tx,
		"UPDATE crash_seeds SET is_current = 0, retired_at = ? WHERE is_current = 1", now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := repo.dbhandler.ExecuteTx(tx,
		"INSERT INTO crash_seeds(seed, seed_hash, nonce, is_current, created_at) VALUES(?, ?, 0, 1, ?)",
		seed, seedHash, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &model.ServerSeed{
		ID:        id,
		Seed:      seed,
		SeedHash:  seedHash,
		IsCurrent: true,
		CreatedAt: now,
	}, nil
}
