package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"

	"github.com/cloudlease/blueprints/internal/model"
	"github.com/cloudlease/blueprints/internal/platform"
	"github.com/cloudlease/blueprints/internal/stackset"
	"github.com/cloudlease/blueprints/internal/store"
)

// Provider is the external infrastructure surface the StackSets activities
// depend on. *stackset.Client satisfies it.
type Provider interface {
	ValidateTarget(ctx context.Context, stackSetID string) error
	CreateInstances(ctx context.Context, p stackset.CreateInstancesParams) (string, error)
	DeleteInstances(ctx context.Context, p stackset.DeleteInstancesParams) (string, error)
	DescribeOperation(ctx context.Context, stackSetID, operationID string) (*stackset.OperationResult, error)
}

// DeploymentStore is the subset of the store used by activities.
// *store.Store satisfies it.
type DeploymentStore interface {
	RecordDeploymentStart(ctx context.Context, p store.RecordDeploymentStartParams) error
	UpdateDeploymentStatusAndMetrics(ctx context.Context, p store.UpdateDeploymentStatusAndMetricsParams) (bool, error)
	Get(ctx context.Context, blueprintID string) (*store.BlueprintDetail, error)
	GetLease(ctx context.Context, id string) (*model.Lease, error)
}

// StackSets contains the CREATE, DELETE, and poll actions against the
// external infrastructure provider.
type StackSets struct {
	provider Provider
	store    DeploymentStore
	logger   zerolog.Logger
}

// NewStackSets creates a new StackSets activity struct.
func NewStackSets(provider Provider, store DeploymentStore, logger zerolog.Logger) *StackSets {
	return &StackSets{
		provider: provider,
		store:    store,
		logger:   logger.With().Str("component", "stackset-activity").Logger(),
	}
}

// CreateStackInstances initiates one deployment attempt against a target.
//
// Validation failures and the same-target operation conflict are returned as
// data (Status FAILED) so the orchestration driver can branch on them; only
// unclassified provider errors escape as activity errors.
func (a *StackSets) CreateStackInstances(ctx context.Context, input CreateStackInstancesInput) (*StackInstancesResult, error) {
	if err := validateInput(input); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid CREATE input", "VALIDATION_ERROR", err)
	}

	startedAt := time.Now().UTC()
	if input.StartedAt != nil {
		startedAt = input.StartedAt.UTC()
	}

	if err := a.provider.ValidateTarget(ctx, input.StackSetID); err != nil {
		var verr *stackset.ValidationError
		if errors.As(err, &verr) {
			// Ineligible target: no mutating call was issued and no
			// history row is written.
			return &StackInstancesResult{
				Success:      false,
				OperationID:  "N/A",
				Status:       model.DeploymentFailed,
				ErrorMessage: verr.Error(),
			}, nil
		}
		return nil, err
	}

	operationID, err := a.provider.CreateInstances(ctx, stackset.CreateInstancesParams{
		StackSetID:                 input.StackSetID,
		AccountID:                  input.AccountID,
		Regions:                    input.Regions,
		RegionConcurrencyType:      input.RegionConcurrencyType,
		MaxConcurrentPercentage:    input.MaxConcurrentPercentage,
		FailureTolerancePercentage: input.FailureTolerancePercentage,
		ConcurrencyMode:            input.ConcurrencyMode,
	})
	if err != nil {
		if stackset.IsOperationInProgress(err) {
			return a.recordConflict(ctx, input, startedAt)
		}
		// Anything else is the external coordinator's problem: it owns
		// the top-level retry and alerting policy.
		return nil, err
	}

	if err := a.store.RecordDeploymentStart(ctx, store.RecordDeploymentStartParams{
		BlueprintID: input.BlueprintID,
		StackSetID:  input.StackSetID,
		LeaseID:     input.LeaseID,
		AccountID:   input.AccountID,
		OperationID: operationID,
		StartedAt:   startedAt,
	}); err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("stack_set_id", input.StackSetID).
		Str("account_id", input.AccountID).
		Str("operation_id", operationID).
		Msg("deployment started")

	return &StackInstancesResult{
		Success:     true,
		OperationID: operationID,
		Status:      model.DeploymentInProgress,
	}, nil
}

// recordConflict handles the expected same-target conflict: only one mutating
// operation may run per stack set at a time, and retrying cannot succeed until
// the in-flight operation drains. The attempt is recorded as a terminal
// failure with actionable guidance instead of escalating.
func (a *StackSets) recordConflict(ctx context.Context, input CreateStackInstancesInput, startedAt time.Time) (*StackInstancesResult, error) {
	operationID := platform.NoOpOperationID(input.LeaseID, input.StackSetID, startedAt.Format(time.RFC3339))
	message := fmt.Sprintf(
		"another operation is already in progress on stack set %s; enable managed execution on the stack set to allow concurrent deployments",
		input.StackSetID)

	if err := a.store.RecordDeploymentStart(ctx, store.RecordDeploymentStartParams{
		BlueprintID: input.BlueprintID,
		StackSetID:  input.StackSetID,
		LeaseID:     input.LeaseID,
		AccountID:   input.AccountID,
		OperationID: operationID,
		StartedAt:   startedAt,
	}); err != nil {
		return nil, err
	}

	errorType := model.ErrorTypeOperationInProgress
	if _, err := a.store.UpdateDeploymentStatusAndMetrics(ctx, store.UpdateDeploymentStatusAndMetricsParams{
		BlueprintID:     input.BlueprintID,
		StackSetID:      input.StackSetID,
		DeploymentSK:    store.DeploymentSortKey(startedAt, operationID),
		Status:          model.DeploymentFailed,
		DurationSeconds: 0,
		CompletedAt:     startedAt,
		ErrorType:       &errorType,
		ErrorMessage:    &message,
	}); err != nil {
		return nil, err
	}

	a.logger.Warn().
		Str("stack_set_id", input.StackSetID).
		Str("account_id", input.AccountID).
		Msg("deployment rejected, stack set operation already in progress")

	return &StackInstancesResult{
		Success:      false,
		OperationID:  operationID,
		Status:       model.DeploymentFailed,
		ErrorMessage: message,
	}, nil
}

// DescribeOperation polls one in-flight operation's status.
func (a *StackSets) DescribeOperation(ctx context.Context, input DescribeOperationInput) (*stackset.OperationResult, error) {
	if err := validateInput(input); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid poll input", "VALIDATION_ERROR", err)
	}
	return a.provider.DescribeOperation(ctx, input.StackSetID, input.OperationID)
}

// DeleteStackInstances initiates a teardown attempt against a target. It
// mirrors CreateStackInstances, including the conflict-as-data path.
func (a *StackSets) DeleteStackInstances(ctx context.Context, input DeleteStackInstancesInput) (*StackInstancesResult, error) {
	if err := validateInput(input); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid DELETE input", "VALIDATION_ERROR", err)
	}

	startedAt := time.Now().UTC()
	if input.StartedAt != nil {
		startedAt = input.StartedAt.UTC()
	}

	if err := a.provider.ValidateTarget(ctx, input.StackSetID); err != nil {
		var verr *stackset.ValidationError
		if errors.As(err, &verr) {
			return &StackInstancesResult{
				Success:      false,
				OperationID:  "N/A",
				Status:       model.DeploymentFailed,
				ErrorMessage: verr.Error(),
			}, nil
		}
		return nil, err
	}

	operationID, err := a.provider.DeleteInstances(ctx, stackset.DeleteInstancesParams{
		StackSetID:                 input.StackSetID,
		AccountID:                  input.AccountID,
		Regions:                    input.Regions,
		RegionConcurrencyType:      input.RegionConcurrencyType,
		MaxConcurrentPercentage:    input.MaxConcurrentPercentage,
		FailureTolerancePercentage: input.FailureTolerancePercentage,
		ConcurrencyMode:            input.ConcurrencyMode,
	})
	if err != nil {
		if stackset.IsOperationInProgress(err) {
			return a.recordConflict(ctx, CreateStackInstancesInput(input), startedAt)
		}
		return nil, err
	}

	if err := a.store.RecordDeploymentStart(ctx, store.RecordDeploymentStartParams{
		BlueprintID: input.BlueprintID,
		StackSetID:  input.StackSetID,
		LeaseID:     input.LeaseID,
		AccountID:   input.AccountID,
		OperationID: operationID,
		StartedAt:   startedAt,
	}); err != nil {
		return nil, err
	}

	return &StackInstancesResult{
		Success:     true,
		OperationID: operationID,
		Status:      model.DeploymentInProgress,
	}, nil
}
