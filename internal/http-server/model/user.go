package model

import (
	"github.com/google/uuid"
)

type User struct {
	ID       int64     `json:"id"`
	UUID     uuid.UUID `json:"uuid"`
	IsBanned bool      `json:"is_banned"`
}
