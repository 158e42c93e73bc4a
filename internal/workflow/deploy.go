package workflow

import (
	"fmt"
	"sort"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/cloudlease/blueprints/internal/activity"
	"github.com/cloudlease/blueprints/internal/model"
	"github.com/cloudlease/blueprints/internal/stackset"
	"github.com/cloudlease/blueprints/internal/store"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultTimeoutMinutes = 60
)

// DeployStackSetParams drives one target deployment.
type DeployStackSetParams struct {
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

// DeployBlueprintParams fans a deployment out across a blueprint's targets.
type DeployBlueprintParams struct {
	LeaseID             string `json:"leaseId"`
	UserEmail           string `json:"userEmail"`
	BlueprintID         string `json:"blueprintId"`
	AccountID           string `json:"accountId"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds,omitempty"`
}

// DeployStackSetWorkflow deploys one blueprint target into a sandbox account:
// start the provider operation, poll until it reaches a terminal state or the
// blueprint's deadline expires, finalize the history row, and publish the
// outcome event. The terminal event is published on every path that reached
// the CREATE call, including conflicts and timeouts.
func DeployStackSetWorkflow(ctx workflow.Context, params DeployStackSetParams) error {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())

	startedAt := workflow.Now(ctx).UTC()

	var created activity.StackInstancesResult
	err := workflow.ExecuteActivity(ctx, "CreateStackInstances", activity.CreateStackInstancesInput{
		Action:                     activity.ActionCreate,
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
	}).Get(ctx, &created)
	if err != nil {
		return err
	}

	if !created.Success {
		// Validation failure or same-target conflict. The activity already
		// recorded what needed recording; all that remains is the event.
		return publishResult(ctx, params, model.DeploymentFailed, created.OperationID, created.ErrorMessage, 0)
	}

	status, reason, err := pollUntilTerminal(ctx, params, created.OperationID, startedAt)
	if err != nil {
		return err
	}

	completedAt := workflow.Now(ctx).UTC()
	duration := int64(completedAt.Sub(startedAt) / time.Second)

	updateParams := store.UpdateDeploymentStatusAndMetricsParams{
		BlueprintID:     params.BlueprintID,
		StackSetID:      params.StackSetID,
		DeploymentSK:    store.DeploymentSortKey(startedAt, created.OperationID),
		Status:          status,
		DurationSeconds: duration,
		CompletedAt:     completedAt,
	}
	if status == model.DeploymentFailed {
		errorType := model.ErrorTypeDeploymentFailed
		updateParams.ErrorType = &errorType
		updateParams.ErrorMessage = &reason
	}
	var applied bool
	if err := workflow.ExecuteActivity(ctx, "UpdateDeploymentStatusAndMetrics", updateParams).Get(ctx, &applied); err != nil {
		return err
	}

	return publishResult(ctx, params, status, created.OperationID, reason, duration)
}

// pollUntilTerminal sleeps between DescribeOperation calls until the provider
// reports a terminal status or the deployment deadline passes. A deadline
// expiry is reported as FAILED; the provider operation itself is left to run,
// matching the provider's own semantics for abandoned operations.
func pollUntilTerminal(ctx workflow.Context, params DeployStackSetParams, operationID string, startedAt time.Time) (status, reason string, err error) {
	pollInterval := defaultPollInterval
	if params.PollIntervalSeconds > 0 {
		pollInterval = time.Duration(params.PollIntervalSeconds) * time.Second
	}
	timeoutMinutes := params.TimeoutMinutes
	if timeoutMinutes <= 0 {
		timeoutMinutes = defaultTimeoutMinutes
	}
	deadline := startedAt.Add(time.Duration(timeoutMinutes) * time.Minute)

	for {
		if err := workflow.Sleep(ctx, pollInterval); err != nil {
			return "", "", err
		}

		var op stackset.OperationResult
		err := workflow.ExecuteActivity(ctx, "DescribeOperation", activity.DescribeOperationInput{
			StackSetID:  params.StackSetID,
			OperationID: operationID,
		}).Get(ctx, &op)
		if err != nil {
			return "", "", err
		}
		if op.Status != model.DeploymentInProgress {
			return op.Status, op.StatusReason, nil
		}

		if workflow.Now(ctx).After(deadline) {
			return model.DeploymentFailed,
				fmt.Sprintf("deployment did not complete within %d minutes", timeoutMinutes), nil
		}
	}
}

func publishResult(ctx workflow.Context, params DeployStackSetParams, status, operationID, errorMessage string, duration int64) error {
	var out activity.PublishResultOutput
	return workflow.ExecuteActivity(ctx, "PublishResult", activity.PublishResultInput{
		Action:          activity.ActionPublishResult,
		LeaseID:         params.LeaseID,
		UserEmail:       params.UserEmail,
		BlueprintID:     params.BlueprintID,
		BlueprintName:   params.BlueprintName,
		AccountID:       params.AccountID,
		OperationID:     operationID,
		Status:          status,
		ErrorMessage:    errorMessage,
		DurationSeconds: duration,
	}).Get(ctx, &out)
}

// DeployBlueprintWorkflow deploys every target of a blueprint into one
// sandbox account. Targets are grouped by deployment order; groups run
// sequentially, targets within a group as parallel child workflows. A failed
// group stops later groups from starting.
func DeployBlueprintWorkflow(ctx workflow.Context, params DeployBlueprintParams) error {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())

	var detail store.BlueprintDetail
	if err := workflow.ExecuteActivity(ctx, "GetBlueprint", params.BlueprintID).Get(ctx, &detail); err != nil {
		return err
	}
	if len(detail.StackSets) == 0 {
		return temporal.NewNonRetryableApplicationError(
			"blueprint "+params.BlueprintID+" has no stack set configurations", "NO_TARGETS", nil)
	}

	regionConcurrency := detail.Blueprint.RegionConcurrencyType
	if regionConcurrency == "" {
		regionConcurrency = model.RegionConcurrencySequential
	}

	for _, group := range groupByDeploymentOrder(detail.StackSets) {
		var futures []workflow.ChildWorkflowFuture
		for _, cfg := range group {
			child := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
				WorkflowID: fmt.Sprintf("deploy-%s-%s-%s", params.LeaseID, params.BlueprintID, cfg.StackSetID),
			})
			futures = append(futures, workflow.ExecuteChildWorkflow(child, DeployStackSetWorkflow, DeployStackSetParams{
				LeaseID:                    params.LeaseID,
				UserEmail:                  params.UserEmail,
				BlueprintID:                params.BlueprintID,
				BlueprintName:              detail.Blueprint.Name,
				AccountID:                  params.AccountID,
				StackSetID:                 cfg.StackSetID,
				Regions:                    cfg.Regions,
				RegionConcurrencyType:      regionConcurrency,
				MaxConcurrentPercentage:    cfg.MaxConcurrentPercentage,
				FailureTolerancePercentage: cfg.FailureTolerancePercentage,
				ConcurrencyMode:            cfg.ConcurrencyMode,
				TimeoutMinutes:             detail.Blueprint.DeploymentTimeoutMinutes,
				PollIntervalSeconds:        params.PollIntervalSeconds,
			}))
		}
		for _, f := range futures {
			if err := f.Get(ctx, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// groupByDeploymentOrder buckets configurations by DeploymentOrder, ascending.
// Targets sharing an order value have no dependency between them.
func groupByDeploymentOrder(configs []model.StackSetConfiguration) [][]model.StackSetConfiguration {
	byOrder := map[int][]model.StackSetConfiguration{}
	var orders []int
	for _, c := range configs {
		if _, seen := byOrder[c.DeploymentOrder]; !seen {
			orders = append(orders, c.DeploymentOrder)
		}
		byOrder[c.DeploymentOrder] = append(byOrder[c.DeploymentOrder], c)
	}
	sort.Ints(orders)

	groups := make([][]model.StackSetConfiguration, 0, len(orders))
	for _, o := range orders {
		groups = append(groups, byOrder[o])
	}
	return groups
}
