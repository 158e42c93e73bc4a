package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/cloudlease/blueprints/internal/activity"
	"github.com/cloudlease/blueprints/internal/model"
	"github.com/cloudlease/blueprints/internal/store"
)

// TeardownStackSetParams drives removal of one target's stack instances from
// a sandbox account, typically before the lease expires and the account is
// recycled.
type TeardownStackSetParams struct {
	LeaseID                    string   `json:"leaseId"`
	UserEmail                  string   `json:"userEmail"`
	BlueprintID                string   `json:"blueprintId"`
	BlueprintName              string   `json:"blueprintName"`
	AccountID                  string   `json:"accountId"`
	StackSetID                 string   `json:"stackSetId"`
	Regions                    []string `json:"regions"`
	RegionConcurrencyType      string   `json:"regionConcurrencyType"`
	MaxConcurrentPercentage    int      `json:"maxConcurrentPercentage,omitempty"`
	FailureTolerancePercentage int      `json:"failureTolerancePercentage,omitempty"`
	ConcurrencyMode            string   `json:"concurrencyMode,omitempty"`
	TimeoutMinutes             int      `json:"timeoutMinutes,omitempty"`
	PollIntervalSeconds        int      `json:"pollIntervalSeconds,omitempty"`
}

// TeardownStackSetWorkflow removes one target's instances and records the
// outcome. Same shape as DeployStackSetWorkflow; no event is published since
// the lease-lifecycle subsystem only consumes deployment results.
func TeardownStackSetWorkflow(ctx workflow.Context, params TeardownStackSetParams) error {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())

	startedAt := workflow.Now(ctx).UTC()

	var deleted activity.StackInstancesResult
	err := workflow.ExecuteActivity(ctx, "DeleteStackInstances", activity.DeleteStackInstancesInput{
		Action:                     activity.ActionDelete,
		LeaseID:                    params.LeaseID,
		BlueprintID:                params.BlueprintID,
		AccountID:                  params.AccountID,
		StackSetID:                 params.StackSetID,
		Regions:                    params.Regions,
		RegionConcurrencyType:      params.RegionConcurrencyType,
		MaxConcurrentPercentage:    params.MaxConcurrentPercentage,
		FailureTolerancePercentage: params.FailureTolerancePercentage,
		ConcurrencyMode:            params.ConcurrencyMode,
		StartedAt:                  &startedAt,
	}).Get(ctx, &deleted)
	if err != nil {
		return err
	}
	if !deleted.Success {
		return nil
	}

	deployParams := DeployStackSetParams{
		StackSetID:          params.StackSetID,
		TimeoutMinutes:      params.TimeoutMinutes,
		PollIntervalSeconds: params.PollIntervalSeconds,
	}
	status, reason, err := pollUntilTerminal(ctx, deployParams, deleted.OperationID, startedAt)
	if err != nil {
		return err
	}

	completedAt := workflow.Now(ctx).UTC()
	updateParams := store.UpdateDeploymentStatusAndMetricsParams{
		BlueprintID:     params.BlueprintID,
		StackSetID:      params.StackSetID,
		DeploymentSK:    store.DeploymentSortKey(startedAt, deleted.OperationID),
		Status:          status,
		DurationSeconds: int64(completedAt.Sub(startedAt) / time.Second),
		CompletedAt:     completedAt,
	}
	if status == model.DeploymentFailed {
		errorType := model.ErrorTypeDeploymentFailed
		updateParams.ErrorType = &errorType
		updateParams.ErrorMessage = &reason
	}
	var applied bool
	return workflow.ExecuteActivity(ctx, "UpdateDeploymentStatusAndMetrics", updateParams).Get(ctx, &applied)
}
