package model

import (
	"time"
)

// StackSetConfiguration describes one blueprint's deployment configuration
// against a specific target StackSet, plus the per-target health counters
// mutated by every deployment attempt's outcome.
type StackSetConfiguration struct {
	BlueprintID                string     `json:"blueprint_id" db:"blueprint_id"`
	StackSetID                 string     `json:"stack_set_id" db:"stack_set_id"`
	AdministrationRoleARN      string     `json:"administration_role_arn" db:"administration_role_arn"`
	ExecutionRoleName          string     `json:"execution_role_name" db:"execution_role_name"`
	Regions                    []string   `json:"regions" db:"regions"`
	DeploymentOrder            int        `json:"deployment_order" db:"deployment_order"`
	MaxConcurrentPercentage    int        `json:"max_concurrent_percentage" db:"max_concurrent_percentage"`
	FailureTolerancePercentage int        `json:"failure_tolerance_percentage" db:"failure_tolerance_percentage"`
	ConcurrencyMode            string     `json:"concurrency_mode" db:"concurrency_mode"`
	DeploymentCount            int64      `json:"deployment_count" db:"deployment_count"`
	SuccessfulDeploymentCount  int64      `json:"successful_deployment_count" db:"successful_deployment_count"`
	ConsecutiveFailures        int64      `json:"consecutive_failures" db:"consecutive_failures"`
	LastSuccessAt              *time.Time `json:"last_success_at,omitempty" db:"last_success_at"`
	CreatedAt                  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at" db:"updated_at"`
}
