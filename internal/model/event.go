package model

// Event detail types published to the lease-lifecycle subsystem.
const (
	EventBlueprintDeploymentSucceeded = "BlueprintDeploymentSucceeded"
	EventBlueprintDeploymentFailed    = "BlueprintDeploymentFailed"
)

// LeaseIdentity is the composite lease identifier carried on deployment
// events. UserEmail may be empty when the lease record has been deleted; the
// UUID alone is enough for the consumer to correlate the outcome.
type LeaseIdentity struct {
	UserEmail string `json:"userEmail"`
	UUID      string `json:"uuid"`
}

// DeploymentEventDetail is the payload of both terminal deployment events.
// ErrorType and ErrorMessage are only set on BlueprintDeploymentFailed.
type DeploymentEventDetail struct {
	LeaseID         LeaseIdentity `json:"leaseId"`
	BlueprintID     string        `json:"blueprintId"`
	BlueprintName   string        `json:"blueprintName,omitempty"`
	AccountID       string        `json:"accountId"`
	OperationID     string        `json:"operationId"`
	DurationSeconds int64         `json:"durationSeconds"`
	ErrorType       string        `json:"errorType,omitempty"`
	ErrorMessage    string        `json:"errorMessage,omitempty"`
}
