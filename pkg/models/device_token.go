package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is a registered push endpoint for a user. Tokens the delivery provider
// reports as permanently invalid are deleted by the notification dispatcher.
type DeviceToken struct {
	ID        int64     `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"token"`
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
