package model

import (
	"math"
	"time"

	"github.com/google/uuid"

	"go-crash/internal/config"
)

type RoundStatus string

const (
	RoundWaiting  RoundStatus = "waiting"
	RoundActive   RoundStatus = "active"
	RoundFinished RoundStatus = "finished"
)

type Round struct {
	ID               int64       `json:"id"`
	UUID             uuid.UUID   `json:"uuid"`
	ServerSeedID     int64       `json:"-"`
	ClientSeed       string      `json:"client_seed"`
	Nonce            int64       `json:"nonce"`
	CrashMultiplier  float64     `json:"-"`
	Status           RoundStatus `json:"status"`
	ScheduledStartAt time.Time   `json:"scheduled_start_at"`
	ActualStartAt    *time.Time  `json:"actual_start_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// CrashDelay is how long the round stays ACTIVE before the crash fires. The
// formula is shared with the client's rendering code: one multiplier unit
// climbs in config.MSPerUnit, with a floor so instant-ish rounds still render.
func (r *Round) CrashDelay() time.Duration {
	delay := time.Duration((r.CrashMultiplier - 1.0) * float64(config.MSPerUnit))

	if delay < config.MinCrashTime {
		return config.MinCrashTime
	}

	return delay
}

// MultiplierAt computes the server-authoritative multiplier at the given
// instant. Before the start it is 1.0; it climbs linearly to CrashMultiplier
// over CrashDelay and never exceeds it.
func (r *Round) MultiplierAt(now time.Time) float64 {
	if r.ActualStartAt == nil || now.Before(*r.ActualStartAt) {
		return 1.0
	}

	progress := float64(now.Sub(*r.ActualStartAt)) / float64(r.CrashDelay())
	if progress >= 1.0 {
		return r.CrashMultiplier
	}

	m := 1.0 + (r.CrashMultiplier-1.0)*progress

	return roundTo2(m)
}

// BetWindowOpen reports whether wagers may still be placed.
func (r *Round) BetWindowOpen(now time.Time) bool {
	return r.Status == RoundWaiting && now.Before(r.ScheduledStartAt)
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
