package stackset

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/rs/zerolog"

	"github.com/cloudlease/blueprints/internal/backoff"
	"github.com/cloudlease/blueprints/internal/model"
)

// API is the subset of the CloudFormation StackSets surface this service
// uses. *cloudformation.Client satisfies it.
type API interface {
	CreateStackInstances(ctx context.Context, params *cloudformation.CreateStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackInstancesOutput, error)
	DeleteStackInstances(ctx context.Context, params *cloudformation.DeleteStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackInstancesOutput, error)
	DescribeStackSet(ctx context.Context, params *cloudformation.DescribeStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOutput, error)
	DescribeStackSetOperation(ctx context.Context, params *cloudformation.DescribeStackSetOperationInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOperationOutput, error)
}

// Client wraps the StackSets API with throttle-aware retry.
type Client struct {
	api    API
	exec   *backoff.Executor
	logger zerolog.Logger
}

// NewClient creates a new StackSets client.
func NewClient(api API, exec *backoff.Executor, logger zerolog.Logger) *Client {
	return &Client{
		api:    api,
		exec:   exec,
		logger: logger.With().Str("component", "stackset-client").Logger(),
	}
}

// CreateInstancesParams holds the parameters for one instance-creation call.
type CreateInstancesParams struct {
	StackSetID                 string
	AccountID                  string
	Regions                    []string
	RegionConcurrencyType      string
	MaxConcurrentPercentage    int
	FailureTolerancePercentage int
	ConcurrencyMode            string
}

// CreateInstances issues one "create stack instances" call and returns the
// provider operation id. Region order is pinned to the input region list only
// for sequential concurrency; parallel mode leaves ordering to the provider.
func (c *Client) CreateInstances(ctx context.Context, p CreateInstancesParams) (string, error) {
	prefs := c.operationPreferences(p.RegionConcurrencyType, p.MaxConcurrentPercentage, p.FailureTolerancePercentage, p.ConcurrencyMode, p.Regions)

	input := &cloudformation.CreateStackInstancesInput{
		StackSetName:         aws.String(p.StackSetID),
		Accounts:             []string{p.AccountID},
		Regions:              p.Regions,
		OperationPreferences: prefs,
	}

	call := backoff.CallContext{StackSetID: p.StackSetID, AccountID: p.AccountID}
	out, err := backoff.Execute(ctx, c.exec, call, func(ctx context.Context) (*cloudformation.CreateStackInstancesOutput, error) {
		return c.api.CreateStackInstances(ctx, input)
	})
	if err != nil {
		return "", fmt.Errorf("create stack instances on %s: %w", p.StackSetID, err)
	}

	return aws.ToString(out.OperationId), nil
}

// DeleteInstancesParams holds the parameters for one instance-deletion call.
type DeleteInstancesParams struct {
	StackSetID                 string
	AccountID                  string
	Regions                    []string
	RegionConcurrencyType      string
	MaxConcurrentPercentage    int
	FailureTolerancePercentage int
	ConcurrencyMode            string
}

// DeleteInstances issues one "delete stack instances" call and returns the
// provider operation id. Stacks are never retained.
func (c *Client) DeleteInstances(ctx context.Context, p DeleteInstancesParams) (string, error) {
	prefs := c.operationPreferences(p.RegionConcurrencyType, p.MaxConcurrentPercentage, p.FailureTolerancePercentage, p.ConcurrencyMode, p.Regions)

	input := &cloudformation.DeleteStackInstancesInput{
		StackSetName:         aws.String(p.StackSetID),
		Accounts:             []string{p.AccountID},
		Regions:              p.Regions,
		RetainStacks:         aws.Bool(false),
		OperationPreferences: prefs,
	}

	call := backoff.CallContext{StackSetID: p.StackSetID, AccountID: p.AccountID}
	out, err := backoff.Execute(ctx, c.exec, call, func(ctx context.Context) (*cloudformation.DeleteStackInstancesOutput, error) {
		return c.api.DeleteStackInstances(ctx, input)
	})
	if err != nil {
		return "", fmt.Errorf("delete stack instances on %s: %w", p.StackSetID, err)
	}

	return aws.ToString(out.OperationId), nil
}

func (c *Client) operationPreferences(concurrencyType string, maxConcurrent, failureTolerance int, mode string, regions []string) *types.StackSetOperationPreferences {
	prefs := &types.StackSetOperationPreferences{
		RegionConcurrencyType: types.RegionConcurrencyType(concurrencyType),
	}
	if concurrencyType == model.RegionConcurrencySequential {
		prefs.RegionOrder = regions
	}
	if maxConcurrent > 0 {
		prefs.MaxConcurrentPercentage = aws.Int32(int32(maxConcurrent))
	}
	if failureTolerance > 0 {
		// The provider defaults to zero tolerance, so only non-zero values
		// need to be sent.
		prefs.FailureTolerancePercentage = aws.Int32(int32(failureTolerance))
	}
	if mode != "" {
		prefs.ConcurrencyMode = types.ConcurrencyMode(mode)
	}
	return prefs
}

// OperationResult is the observed state of one asynchronous StackSet operation.
type OperationResult struct {
	Status       string `json:"status"`
	StatusReason string `json:"status_reason"`
}

// DescribeOperation polls one operation and maps its provider status onto the
// deployment record statuses.
func (c *Client) DescribeOperation(ctx context.Context, stackSetID, operationID string) (*OperationResult, error) {
	call := backoff.CallContext{StackSetID: stackSetID}
	out, err := backoff.Execute(ctx, c.exec, call, func(ctx context.Context) (*cloudformation.DescribeStackSetOperationOutput, error) {
		return c.api.DescribeStackSetOperation(ctx, &cloudformation.DescribeStackSetOperationInput{
			StackSetName: aws.String(stackSetID),
			OperationId:  aws.String(operationID),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("describe operation %s on %s: %w", operationID, stackSetID, err)
	}

	op := out.StackSetOperation
	result := &OperationResult{StatusReason: aws.ToString(op.StatusReason)}

	switch op.Status {
	case types.StackSetOperationStatusSucceeded:
		result.Status = model.DeploymentSucceeded
	case types.StackSetOperationStatusFailed, types.StackSetOperationStatusStopped, types.StackSetOperationStatusStopping:
		result.Status = model.DeploymentFailed
		if result.StatusReason == "" {
			result.StatusReason = fmt.Sprintf("stack set operation ended with status %s", op.Status)
		}
	default:
		// QUEUED and RUNNING are both still in flight.
		result.Status = model.DeploymentInProgress
	}

	return result, nil
}

// IsOperationInProgress reports whether err is the same-target conflict the
// provider raises when another mutating operation is already running.
func IsOperationInProgress(err error) bool {
	var conflict *types.OperationInProgressException
	return errors.As(err, &conflict)
}
