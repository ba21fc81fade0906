package model

import (
	"time"

	"github.com/google/uuid"
)

type Bet struct {
	ID                  int64     `json:"id"`
	UUID                uuid.UUID `json:"uuid"`
	RoundID             int64     `json:"round_id"`
	UserID              int64     `json:"user_id"`
	Amount              int64     `json:"amount"`
	CashedOutMultiplier *float64  `json:"cashed_out_multiplier,omitempty"`
	IsInventoryBet      bool      `json:"is_inventory_bet"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
