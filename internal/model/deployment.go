package model

import (
	"time"
)

// DeploymentRecord is one deployment attempt against a target. Immutable once
// written except for the single status transition from IN_PROGRESS to a
// terminal state.
type DeploymentRecord struct {
	BlueprintID     string     `json:"blueprint_id" db:"blueprint_id"`
	StackSetID      string     `json:"stack_set_id" db:"stack_set_id"`
	LeaseID         string     `json:"lease_id" db:"lease_id"`
	AccountID       string     `json:"account_id" db:"account_id"`
	OperationID     string     `json:"operation_id" db:"operation_id"`
	Status          string     `json:"status" db:"status"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	DurationSeconds int64      `json:"duration_seconds" db:"duration_seconds"`
	ErrorType       *string    `json:"error_type,omitempty" db:"error_type"`
	ErrorMessage    *string    `json:"error_message,omitempty" db:"error_message"`
	ExpiresAt       time.Time  `json:"expires_at" db:"expires_at"`
}
