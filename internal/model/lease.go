package model

import (
	"time"
)

// Lease is a user's temporary claim on a sandbox account. Owned by the
// lease-lifecycle subsystem; this service only reads it to enrich outgoing
// deployment events.
type Lease struct {
	ID        string    `json:"id" db:"id"`
	UserEmail string    `json:"user_email" db:"user_email"`
	AccountID string    `json:"account_id" db:"account_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
