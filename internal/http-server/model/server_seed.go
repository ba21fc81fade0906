package model

import "time"

// ServerSeed is the committed secret behind a run of rounds. The raw seed
// never serializes; only its hash commitment is public until the seed is
// rotated out and revealed for audit.
type ServerSeed struct {
	ID        int64      `json:"id"`
	Seed      string     `json:"-"`
	SeedHash  string     `json:"seed_hash"`
	Nonce     int64      `json:"nonce"`
	IsCurrent bool       `json:"is_current"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
