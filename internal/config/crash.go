package config

import "time"

// Engine constants shared with the client's rendering formula. MSPerUnit is
// the number of milliseconds one full multiplier unit takes, so a 3.00x round
// runs for max(MinCrashTime, 2*MSPerUnit).
const (
	MSPerUnit    = 400 * time.Millisecond
	MinCrashTime = 1 * time.Second

	TickInterval      = 50 * time.Millisecond
	CountdownInterval = 1 * time.Second
	CoolDown          = 3 * time.Second
)

type CrashSettings struct {
	MinMultiplier           float64 `json:"min_multiplier"`
	MaxMultiplier           float64 `json:"max_multiplier"`
	MinBet                  int64   `json:"min_bet"`
	MaxBet                  int64   `json:"max_bet"`
	TargetRTP               float64 `json:"target_rtp"`
	InstantCrashProbability float64 `json:"instant_crash_probability"`
	WaitDuration            time.Duration
	MaxRoundDuration        time.Duration
	CashOutTolerance        float64 `json:"cash_out_tolerance"`
}

var DefaultCrashSettings = CrashSettings{
	MinMultiplier:           1.0,
	MaxMultiplier:           100000,
	MinBet:                  2500,
	MaxBet:                  100000000,
	TargetRTP:               0.89,
	InstantCrashProbability: 0.01,
	WaitDuration:            7 * time.Second,
	MaxRoundDuration:        5 * time.Minute,
	CashOutTolerance:        0.15,
}
