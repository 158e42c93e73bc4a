package model

// Deployment attempt status constants.
const (
	DeploymentInProgress = "IN_PROGRESS"
	DeploymentSucceeded  = "SUCCEEDED"
	DeploymentFailed     = "FAILED"
)

// Region concurrency types for multi-region deployments.
const (
	RegionConcurrencySequential = "SEQUENTIAL"
	RegionConcurrencyParallel   = "PARALLEL"
)

// Concurrency modes governing how strictly a deployment tolerates
// partial regional failure before aborting sibling regions.
const (
	ConcurrencyModeStrictFailureTolerance = "STRICT_FAILURE_TOLERANCE"
	ConcurrencyModeSoftFailureTolerance   = "SOFT_FAILURE_TOLERANCE"
)

// Error classifications persisted on failed deployment records and carried
// on failure events.
const (
	ErrorTypeOperationInProgress = "StackSetOperationInProgress"
	ErrorTypeDeploymentFailed    = "DeploymentFailed"
)
