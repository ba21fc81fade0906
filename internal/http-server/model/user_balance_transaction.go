package model

import (
	"time"

	"go-crash/internal/config"
)

type UserBalanceTransaction struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	Value     int64              `json:"value"`
	Type      config.BalanceType `json:"type"`
	Module    config.Game        `json:"module"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
