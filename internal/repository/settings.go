package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-crash/internal/config"
	"go-crash/internal/http-server/handlers/mysql"
)

type SettingsRepository struct {
	dbhandler mysql.Handler
}

func NewSettingsRepository(dbhandler mysql.Handler) *SettingsRepository {
	return &SettingsRepository{dbhandler: dbhandler}
}

// GetCrashSettings reads the single settings row. Missing row falls back to
// defaults so a fresh database still runs rounds.
func (repo *SettingsRepository) GetCrashSettings() (config.CrashSettings, error) {
	const op = "repository.settings.GetCrashSettings"

	const query = "SELECT min_multiplier, max_multiplier, min_bet, max_bet, target_rtp, " +
		"instant_crash_probability, wait_duration_ms, max_round_duration_ms, cash_out_tolerance " +
		"FROM crash_settings WHERE id = 1"

	row, err := repo.dbhandler.PrepareAndQueryRow(query)
	if err != nil {
		return config.DefaultCrashSettings, fmt.Errorf("%s: %w", op, err)
	}

	var (
		s             config.CrashSettings
		waitMS, maxMS int64
	)

	err = row.Scan(
		&s.MinMultiplier,
		&s.MaxMultiplier,
		&s.MinBet,
		&s.MaxBet,
		&s.TargetRTP,
		&s.InstantCrashProbability,
		&waitMS,
		&maxMS,
		&s.CashOutTolerance)
	if err != nil {
		if err == sql.ErrNoRows {
			return config.DefaultCrashSettings, nil
		}

		return config.DefaultCrashSettings, fmt.Errorf("%s: %w", op, err)
	}

	s.WaitDuration = time.Duration(waitMS) * time.Millisecond
	s.MaxRoundDuration = time.Duration(maxMS) * time.Millisecond

	return s, nil
}
