package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/cloudlease/blueprints/internal/model"
	"github.com/cloudlease/blueprints/internal/store"
	wf "github.com/cloudlease/blueprints/internal/workflow"
)

type fakeWorkflowRun struct {
	id    string
	runID string
}

func (f *fakeWorkflowRun) GetID() string    { return f.id }
func (f *fakeWorkflowRun) GetRunID() string { return f.runID }
func (f *fakeWorkflowRun) Get(ctx context.Context, valuePtr interface{}) error {
	return nil
}
func (f *fakeWorkflowRun) GetWithOptions(ctx context.Context, valuePtr interface{}, options temporalclient.WorkflowRunGetOptions) error {
	return nil
}

type fakeWorkflowStarter struct {
	err     error
	calls   int
	options temporalclient.StartWorkflowOptions
	args    []interface{}
}

func (f *fakeWorkflowStarter) ExecuteWorkflow(ctx context.Context, options temporalclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalclient.WorkflowRun, error) {
	f.calls++
	f.options = options
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return &fakeWorkflowRun{id: options.ID, runID: "run-1"}, nil
}

func deploymentBody() map[string]any {
	return map[string]any{
		"leaseId":     "3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c",
		"userEmail":   "dev@example.com",
		"blueprintId": "7d4e8f10-2233-4455-8899-aabbccddeeff",
		"accountId":   "123456789012",
	}
}

func TestDeploymentCreate_StartsWorkflow(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	st := &fakeBlueprintStore{
		detail: &store.BlueprintDetail{Blueprint: model.Blueprint{ID: "7d4e8f10-2233-4455-8899-aabbccddeeff"}},
	}
	h := NewDeployment(Workflows{Client: starter, Store: st}, "blueprint-deployments", 10)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(http.MethodPost, "/api/v1/deployments", deploymentBody()))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, starter.calls)
	assert.Equal(t, "blueprint-deployments", starter.options.TaskQueue)
	// Deterministic workflow id: resubmission joins the running deployment.
	assert.Equal(t,
		"deploy-3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c-7d4e8f10-2233-4455-8899-aabbccddeeff",
		starter.options.ID)

	require.Len(t, starter.args, 1)
	params, ok := starter.args[0].(wf.DeployBlueprintParams)
	require.True(t, ok)
	assert.Equal(t, "123456789012", params.AccountID)
}

func TestDeploymentCreate_DefaultsPollInterval(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	st := &fakeBlueprintStore{detail: &store.BlueprintDetail{}}
	h := NewDeployment(Workflows{Client: starter, Store: st}, "blueprint-deployments", 25)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(http.MethodPost, "/api/v1/deployments", deploymentBody()))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, starter.args, 1)
	params := starter.args[0].(wf.DeployBlueprintParams)
	// No interval in the request: the configured server-side default applies.
	assert.Equal(t, 25, params.PollIntervalSeconds)
}

func TestDeploymentCreate_UnknownBlueprint(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	st := &fakeBlueprintStore{detailErr: store.ErrNotFound}
	h := NewDeployment(Workflows{Client: starter, Store: st}, "blueprint-deployments", 10)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(http.MethodPost, "/api/v1/deployments", deploymentBody()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, starter.calls)
}

func TestDeploymentCreate_StoreError_Is500(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	st := &fakeBlueprintStore{detailErr: errors.New("connection refused")}
	h := NewDeployment(Workflows{Client: starter, Store: st}, "blueprint-deployments", 10)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(http.MethodPost, "/api/v1/deployments", deploymentBody()))

	// An unreachable store is not a missing blueprint.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, starter.calls)
}

func TestDeploymentCreate_BadAccountID(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	h := NewDeployment(Workflows{Client: starter, Store: &fakeBlueprintStore{}}, "blueprint-deployments", 10)

	body := deploymentBody()
	body["accountId"] = "12345"
	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(http.MethodPost, "/api/v1/deployments", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, starter.calls)
}

func TestTeardownCreate_StartsWorkflow(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	st := &fakeBlueprintStore{
		detail: &store.BlueprintDetail{
			Blueprint: model.Blueprint{
				ID:                       "7d4e8f10-2233-4455-8899-aabbccddeeff",
				Name:                     "sandbox-baseline",
				DeploymentTimeoutMinutes: 30,
			},
			StackSets: []model.StackSetConfiguration{
				{StackSetID: "networking", ConcurrencyMode: model.ConcurrencyModeStrictFailureTolerance},
			},
		},
	}
	h := NewDeployment(Workflows{Client: starter, Store: st}, "blueprint-deployments", 10)

	body := deploymentBody()
	body["stackSetId"] = "networking"
	body["regions"] = []string{"eu-west-1"}
	rec := httptest.NewRecorder()
	h.CreateTeardown(rec, newRequest(http.MethodPost, "/api/v1/teardowns", body))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, starter.calls)

	require.Len(t, starter.args, 1)
	params, ok := starter.args[0].(wf.TeardownStackSetParams)
	require.True(t, ok)
	assert.Equal(t, "networking", params.StackSetID)
	assert.Equal(t, "sandbox-baseline", params.BlueprintName)
	// Per-target settings are carried over from the stored configuration.
	assert.Equal(t, model.ConcurrencyModeStrictFailureTolerance, params.ConcurrencyMode)
	assert.Equal(t, model.RegionConcurrencySequential, params.RegionConcurrencyType)
}
