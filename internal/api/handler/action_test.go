package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudlease/blueprints/internal/model"
	"github.com/cloudlease/blueprints/internal/store"
	wf "github.com/cloudlease/blueprints/internal/workflow"
)

func createActionPayload() string {
	return `{
		"action": "CREATE",
		"leaseId": "3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c",
		"blueprintId": "7d4e8f10-2233-4455-8899-aabbccddeeff",
		"accountId": "123456789012",
		"stackSetId": "networking",
		"regions": ["eu-west-1", "us-east-1"],
		"regionConcurrencyType": "SEQUENTIAL"
	}`
}

func actionStore() *fakeBlueprintStore {
	return &fakeBlueprintStore{
		detail: &store.BlueprintDetail{
			Blueprint: model.Blueprint{
				ID:                       "7d4e8f10-2233-4455-8899-aabbccddeeff",
				Name:                     "sandbox-baseline",
				DeploymentTimeoutMinutes: 30,
			},
		},
		lease: &model.Lease{
			ID:        "3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c",
			UserEmail: "dev@example.com",
			AccountID: "123456789012",
		},
	}
}

func TestActionSubmit_Create_StartsTargetWorkflow(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	h := NewAction(Workflows{Client: starter, Store: actionStore()}, "blueprint-deployments", 15)

	rec := httptest.NewRecorder()
	h.Submit(rec, newRequestRaw(http.MethodPost, "/api/v1/actions", createActionPayload()))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, starter.calls)
	assert.Equal(t,
		"deploy-3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c-7d4e8f10-2233-4455-8899-aabbccddeeff-networking",
		starter.options.ID)

	require.Len(t, starter.args, 1)
	params, ok := starter.args[0].(wf.DeployStackSetParams)
	require.True(t, ok)
	assert.Equal(t, "networking", params.StackSetID)
	assert.Equal(t, []string{"eu-west-1", "us-east-1"}, params.Regions)
	// Enriched from stored state, not the payload.
	assert.Equal(t, "sandbox-baseline", params.BlueprintName)
	assert.Equal(t, 30, params.TimeoutMinutes)
	assert.Equal(t, "dev@example.com", params.UserEmail)
	assert.Equal(t, 15, params.PollIntervalSeconds)
}

func TestActionSubmit_UnknownField_RejectedBeforeWorkflowStart(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	h := NewAction(Workflows{Client: starter, Store: actionStore()}, "blueprint-deployments", 15)

	payload := `{
		"action": "CREATE",
		"leaseId": "3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c",
		"blueprintId": "7d4e8f10-2233-4455-8899-aabbccddeeff",
		"accountId": "123456789012",
		"stackSetId": "networking",
		"regions": ["eu-west-1"],
		"regionConcurrencyType": "SEQUENTIAL",
		"bogus": true
	}`
	rec := httptest.NewRecorder()
	h.Submit(rec, newRequestRaw(http.MethodPost, "/api/v1/actions", payload))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, starter.calls)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "bogus")
}

func TestActionSubmit_Delete_StartsTeardownWorkflow(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	st := actionStore()
	// Teardown after the lease was reclaimed still proceeds.
	st.lease = nil
	st.leaseErr = store.ErrNotFound
	h := NewAction(Workflows{Client: starter, Store: st}, "blueprint-deployments", 15)

	payload := `{
		"action": "DELETE",
		"leaseId": "3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c",
		"blueprintId": "7d4e8f10-2233-4455-8899-aabbccddeeff",
		"accountId": "123456789012",
		"stackSetId": "networking",
		"regions": ["eu-west-1"],
		"regionConcurrencyType": "PARALLEL"
	}`
	rec := httptest.NewRecorder()
	h.Submit(rec, newRequestRaw(http.MethodPost, "/api/v1/actions", payload))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, starter.calls)
	assert.Equal(t, "teardown-3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c-networking", starter.options.ID)

	require.Len(t, starter.args, 1)
	params, ok := starter.args[0].(wf.TeardownStackSetParams)
	require.True(t, ok)
	assert.Equal(t, model.RegionConcurrencyParallel, params.RegionConcurrencyType)
	assert.Empty(t, params.UserEmail)
}

func TestActionSubmit_PublishResult_NotSubmittable(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	h := NewAction(Workflows{Client: starter, Store: actionStore()}, "blueprint-deployments", 15)

	payload := `{
		"action": "PUBLISH_RESULT",
		"leaseId": "3f6c1b2a-9f70-4f2e-9a1d-6a9a6f1a2b3c",
		"userEmail": "dev@example.com",
		"blueprintId": "7d4e8f10-2233-4455-8899-aabbccddeeff",
		"accountId": "123456789012",
		"operationId": "op-1",
		"status": "SUCCEEDED"
	}`
	rec := httptest.NewRecorder()
	h.Submit(rec, newRequestRaw(http.MethodPost, "/api/v1/actions", payload))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, starter.calls)
}

func TestActionSubmit_Create_LeaseGone(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	st := actionStore()
	st.lease = nil
	st.leaseErr = store.ErrNotFound
	h := NewAction(Workflows{Client: starter, Store: st}, "blueprint-deployments", 15)

	rec := httptest.NewRecorder()
	h.Submit(rec, newRequestRaw(http.MethodPost, "/api/v1/actions", createActionPayload()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, starter.calls)
}

func TestActionSubmit_Create_UnknownBlueprint(t *testing.T) {
	starter := &fakeWorkflowStarter{}
	h := NewAction(Workflows{Client: starter, Store: &fakeBlueprintStore{detailErr: store.ErrNotFound}},
		"blueprint-deployments", 15)

	rec := httptest.NewRecorder()
	h.Submit(rec, newRequestRaw(http.MethodPost, "/api/v1/actions", createActionPayload()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, starter.calls)
}
