package stackset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudlease/blueprints/internal/backoff"
	"github.com/cloudlease/blueprints/internal/model"
)

// ---------- Mock API ----------

type mockAPI struct {
	createCalls   int
	createInput   *cloudformation.CreateStackInstancesInput
	createOut     *cloudformation.CreateStackInstancesOutput
	createErr     error
	createErrs    []error // consumed before createErr/createOut, one per call
	deleteCalls   int
	deleteInput   *cloudformation.DeleteStackInstancesInput
	deleteOut     *cloudformation.DeleteStackInstancesOutput
	deleteErr     error
	describeCalls int
	describeOut   *cloudformation.DescribeStackSetOutput
	describeErr   error
	describeOpOut *cloudformation.DescribeStackSetOperationOutput
	describeOpErr error
}

func (m *mockAPI) CreateStackInstances(ctx context.Context, params *cloudformation.CreateStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackInstancesOutput, error) {
	m.createCalls++
	m.createInput = params
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if m.createErr != nil {
		return nil, m.createErr
	}
	return m.createOut, nil
}

func (m *mockAPI) DeleteStackInstances(ctx context.Context, params *cloudformation.DeleteStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackInstancesOutput, error) {
	m.deleteCalls++
	m.deleteInput = params
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	return m.deleteOut, nil
}

func (m *mockAPI) DescribeStackSet(ctx context.Context, params *cloudformation.DescribeStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOutput, error) {
	m.describeCalls++
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return m.describeOut, nil
}

func (m *mockAPI) DescribeStackSetOperation(ctx context.Context, params *cloudformation.DescribeStackSetOperationInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOperationOutput, error) {
	if m.describeOpErr != nil {
		return nil, m.describeOpErr
	}
	return m.describeOpOut, nil
}

func newTestClient(api *mockAPI) *Client {
	exec := backoff.NewExecutorWithPolicy(zerolog.Nop(), 3, time.Millisecond, 5*time.Millisecond)
	return NewClient(api, exec, zerolog.Nop())
}

// ---------- CreateInstances ----------

func TestCreateInstances_Sequential_SetsRegionOrder(t *testing.T) {
	api := &mockAPI{createOut: &cloudformation.CreateStackInstancesOutput{OperationId: aws.String("op-1")}}
	c := newTestClient(api)

	opID, err := c.CreateInstances(context.Background(), CreateInstancesParams{
		StackSetID:                 "sandbox-baseline",
		AccountID:                  "123456789012",
		Regions:                    []string{"us-east-1", "us-west-2"},
		RegionConcurrencyType:      model.RegionConcurrencySequential,
		MaxConcurrentPercentage:    50,
		FailureTolerancePercentage: 10,
		ConcurrencyMode:            model.ConcurrencyModeSoftFailureTolerance,
	})

	require.NoError(t, err)
	assert.Equal(t, "op-1", opID)

	prefs := api.createInput.OperationPreferences
	require.NotNil(t, prefs)
	assert.Equal(t, types.RegionConcurrencyTypeSequential, prefs.RegionConcurrencyType)
	assert.Equal(t, []string{"us-east-1", "us-west-2"}, prefs.RegionOrder)
	assert.Equal(t, int32(50), aws.ToInt32(prefs.MaxConcurrentPercentage))
	assert.Equal(t, int32(10), aws.ToInt32(prefs.FailureTolerancePercentage))
	assert.Equal(t, types.ConcurrencyModeSoftFailureTolerance, prefs.ConcurrencyMode)
	assert.Equal(t, []string{"123456789012"}, api.createInput.Accounts)
}

func TestCreateInstances_Parallel_OmitsRegionOrder(t *testing.T) {
	api := &mockAPI{createOut: &cloudformation.CreateStackInstancesOutput{OperationId: aws.String("op-2")}}
	c := newTestClient(api)

	_, err := c.CreateInstances(context.Background(), CreateInstancesParams{
		StackSetID:            "sandbox-baseline",
		AccountID:             "123456789012",
		Regions:               []string{"us-east-1", "us-west-2"},
		RegionConcurrencyType: model.RegionConcurrencyParallel,
	})

	require.NoError(t, err)
	prefs := api.createInput.OperationPreferences
	require.NotNil(t, prefs)
	assert.Equal(t, types.RegionConcurrencyTypeParallel, prefs.RegionConcurrencyType)
	assert.Nil(t, prefs.RegionOrder)
}

func TestCreateInstances_RetriesThrottling(t *testing.T) {
	api := &mockAPI{
		createErrs: []error{
			&smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"},
			&smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"},
		},
		createOut: &cloudformation.CreateStackInstancesOutput{OperationId: aws.String("op-3")},
	}
	c := newTestClient(api)

	opID, err := c.CreateInstances(context.Background(), CreateInstancesParams{
		StackSetID:            "sandbox-baseline",
		AccountID:             "123456789012",
		Regions:               []string{"eu-west-1"},
		RegionConcurrencyType: model.RegionConcurrencyParallel,
	})

	require.NoError(t, err)
	assert.Equal(t, "op-3", opID)
	assert.Equal(t, 3, api.createCalls)
}

func TestCreateInstances_ConflictPropagatesWithoutRetry(t *testing.T) {
	api := &mockAPI{createErr: &types.OperationInProgressException{Message: aws.String("operation op-0 is running")}}
	c := newTestClient(api)

	_, err := c.CreateInstances(context.Background(), CreateInstancesParams{
		StackSetID:            "sandbox-baseline",
		AccountID:             "123456789012",
		Regions:               []string{"us-east-1"},
		RegionConcurrencyType: model.RegionConcurrencyParallel,
	})

	require.Error(t, err)
	assert.True(t, IsOperationInProgress(err))
	assert.Equal(t, 1, api.createCalls)
}

// ---------- DeleteInstances ----------

func TestDeleteInstances_NeverRetainsStacks(t *testing.T) {
	api := &mockAPI{deleteOut: &cloudformation.DeleteStackInstancesOutput{OperationId: aws.String("op-del")}}
	c := newTestClient(api)

	opID, err := c.DeleteInstances(context.Background(), DeleteInstancesParams{
		StackSetID:            "sandbox-baseline",
		AccountID:             "123456789012",
		Regions:               []string{"us-east-1"},
		RegionConcurrencyType: model.RegionConcurrencyParallel,
	})

	require.NoError(t, err)
	assert.Equal(t, "op-del", opID)
	assert.False(t, aws.ToBool(api.deleteInput.RetainStacks))
}

// ---------- DescribeOperation ----------

func TestDescribeOperation_StatusMapping(t *testing.T) {
	cases := []struct {
		provider types.StackSetOperationStatus
		want     string
	}{
		{types.StackSetOperationStatusRunning, model.DeploymentInProgress},
		{types.StackSetOperationStatusQueued, model.DeploymentInProgress},
		{types.StackSetOperationStatusSucceeded, model.DeploymentSucceeded},
		{types.StackSetOperationStatusFailed, model.DeploymentFailed},
		{types.StackSetOperationStatusStopped, model.DeploymentFailed},
		{types.StackSetOperationStatusStopping, model.DeploymentFailed},
	}

	for _, tc := range cases {
		api := &mockAPI{describeOpOut: &cloudformation.DescribeStackSetOperationOutput{
			StackSetOperation: &types.StackSetOperation{Status: tc.provider},
		}}
		c := newTestClient(api)

		result, err := c.DescribeOperation(context.Background(), "sandbox-baseline", "op-9")
		require.NoError(t, err)
		assert.Equal(t, tc.want, result.Status, "provider status %s", tc.provider)
	}
}

func TestDescribeOperation_FailedCarriesReason(t *testing.T) {
	api := &mockAPI{describeOpOut: &cloudformation.DescribeStackSetOperationOutput{
		StackSetOperation: &types.StackSetOperation{
			Status:       types.StackSetOperationStatusFailed,
			StatusReason: aws.String("quota exceeded in us-west-2"),
		},
	}}
	c := newTestClient(api)

	result, err := c.DescribeOperation(context.Background(), "sandbox-baseline", "op-9")
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentFailed, result.Status)
	assert.Equal(t, "quota exceeded in us-west-2", result.StatusReason)
}

func TestIsOperationInProgress(t *testing.T) {
	assert.True(t, IsOperationInProgress(&types.OperationInProgressException{}))
	assert.False(t, IsOperationInProgress(errors.New("other")))
	assert.False(t, IsOperationInProgress(nil))
}
