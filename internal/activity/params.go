package activity

import (
	"time"
)

// CreateStackInstancesInput is the CREATE action's input schema. Validation
// runs before any external call; unknown fields are rejected at decode time.
type CreateStackInstancesInput struct {
	Action                     string     `json:"action" validate:"required,eq=CREATE"`
	LeaseID                    string     `json:"leaseId" validate:"required,uuid"`
	BlueprintID                string     `json:"blueprintId" validate:"required,uuid"`
	AccountID                  string     `json:"accountId" validate:"required,len=12,number"`
	StackSetID                 string     `json:"stackSetId" validate:"required"`
	Regions                    []string   `json:"regions" validate:"required,min=1,dive,required"`
	RegionConcurrencyType      string     `json:"regionConcurrencyType" validate:"required,oneof=SEQUENTIAL PARALLEL"`
	MaxConcurrentPercentage    int        `json:"maxConcurrentPercentage,omitempty" validate:"omitempty,min=1,max=100"`
	FailureTolerancePercentage int        `json:"failureTolerancePercentage,omitempty" validate:"omitempty,min=0,max=100"`
	ConcurrencyMode            string     `json:"concurrencyMode,omitempty" validate:"omitempty,oneof=STRICT_FAILURE_TOLERANCE SOFT_FAILURE_TOLERANCE"`
	// StartedAt is supplied by the caller, not generated here, so that
	// retried invocations share one logical start time.
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

// DeleteStackInstancesInput is the DELETE (teardown) action's input schema.
type DeleteStackInstancesInput struct {
	Action                     string     `json:"action" validate:"required,eq=DELETE"`
	LeaseID                    string     `json:"leaseId" validate:"required,uuid"`
	BlueprintID                string     `json:"blueprintId" validate:"required,uuid"`
	AccountID                  string     `json:"accountId" validate:"required,len=12,number"`
	StackSetID                 string     `json:"stackSetId" validate:"required"`
	Regions                    []string   `json:"regions" validate:"required,min=1,dive,required"`
	RegionConcurrencyType      string     `json:"regionConcurrencyType" validate:"required,oneof=SEQUENTIAL PARALLEL"`
	MaxConcurrentPercentage    int        `json:"maxConcurrentPercentage,omitempty" validate:"omitempty,min=1,max=100"`
	FailureTolerancePercentage int        `json:"failureTolerancePercentage,omitempty" validate:"omitempty,min=0,max=100"`
	ConcurrencyMode            string     `json:"concurrencyMode,omitempty" validate:"omitempty,oneof=STRICT_FAILURE_TOLERANCE SOFT_FAILURE_TOLERANCE"`
	StartedAt                  *time.Time `json:"startedAt,omitempty"`
}

// StackInstancesResult is the outcome of a CREATE or DELETE action. The
// orchestration driver branches on Status; it never needs to unwrap errors.
type StackInstancesResult struct {
	Success      bool   `json:"success"`
	OperationID  string `json:"operationId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// DescribeOperationInput holds the parameters for the poll action.
type DescribeOperationInput struct {
	StackSetID  string `json:"stackSetId" validate:"required"`
	OperationID string `json:"operationId" validate:"required"`
}

// PublishResultInput is the PUBLISH_RESULT action's input schema. All
// identifiers are caller-supplied so the terminal event can be published even
// when the referenced lease or blueprint no longer exists.
type PublishResultInput struct {
	Action          string `json:"action" validate:"required,eq=PUBLISH_RESULT"`
	LeaseID         string `json:"leaseId" validate:"required,uuid"`
	UserEmail       string `json:"userEmail" validate:"required,email"`
	BlueprintID     string `json:"blueprintId" validate:"required"`
	BlueprintName   string `json:"blueprintName,omitempty"`
	AccountID       string `json:"accountId" validate:"required,len=12,number"`
	OperationID     string `json:"operationId" validate:"required"`
	Status          string `json:"status" validate:"required,oneof=SUCCEEDED FAILED"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	DurationSeconds int64  `json:"durationSeconds,omitempty" validate:"omitempty,min=0"`
}

// PublishResultOutput is the PUBLISH_RESULT action's result.
type PublishResultOutput struct {
	Published bool   `json:"published"`
	Status    string `json:"status"`
}
