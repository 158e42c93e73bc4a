package model

import (
	"time"
)

// Blueprint is a named, reusable infrastructure definition deployable to one
// or more StackSet targets. Aggregate health counters are mutated only by
// deployment outcomes; everything else changes via explicit edits.
type Blueprint struct {
	ID                        string            `json:"id" db:"id"`
	Name                      string            `json:"name" db:"name"`
	Tags                      map[string]string `json:"tags" db:"tags"`
	CreatedBy                 string            `json:"created_by" db:"created_by"`
	DeploymentTimeoutMinutes  int               `json:"deployment_timeout_minutes" db:"deployment_timeout_minutes"`
	RegionConcurrencyType     string            `json:"region_concurrency_type" db:"region_concurrency_type"`
	DeploymentCount           int64             `json:"deployment_count" db:"deployment_count"`
	SuccessfulDeploymentCount int64             `json:"successful_deployment_count" db:"successful_deployment_count"`
	LastDeploymentAt          *time.Time        `json:"last_deployment_at,omitempty" db:"last_deployment_at"`
	CreatedAt                 time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time         `json:"updated_at" db:"updated_at"`
}
