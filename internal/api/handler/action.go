package handler

import (
	"errors"
	"io"
	"net/http"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/cloudlease/blueprints/internal/activity"
	"github.com/cloudlease/blueprints/internal/api/response"
	"github.com/cloudlease/blueprints/internal/store"
	wf "github.com/cloudlease/blueprints/internal/workflow"
)

const maxActionPayloadBytes = 1 << 20

// Action accepts raw orchestrator action payloads. This is the boundary where
// untyped JSON enters the system: the payload is decoded strictly (unknown
// fields rejected, schema validated) and dispatched on its action
// discriminator before any workflow is started.
type Action struct {
	temporal    Workflows
	taskQueue   string
	pollSeconds int
}

func NewAction(w Workflows, taskQueue string, pollSeconds int) *Action {
	return &Action{temporal: w, taskQueue: taskQueue, pollSeconds: pollSeconds}
}

// Submit decodes a CREATE or DELETE action input and starts the matching
// single-target workflow. PUBLISH_RESULT is not submittable: it is produced by
// the deployment workflows themselves.
func (h *Action) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionPayloadBytes))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	decoded, err := activity.DecodeAction(body)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch in := decoded.(type) {
	case activity.CreateStackInstancesInput:
		h.submitCreate(w, r, in)
	case activity.DeleteStackInstancesInput:
		h.submitDelete(w, r, in)
	case activity.PublishResultInput:
		response.WriteError(w, http.StatusBadRequest,
			"PUBLISH_RESULT is produced by the deployment workflows and cannot be submitted")
	default:
		response.WriteError(w, http.StatusBadRequest, "unsupported action")
	}
}

func (h *Action) submitCreate(w http.ResponseWriter, r *http.Request, in activity.CreateStackInstancesInput) {
	detail, err := h.temporal.Store.Get(r.Context(), in.BlueprintID)
	if errors.Is(err, store.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, "blueprint not found")
		return
	}
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Deployments go into leased accounts; a missing lease means there is
	// nothing to deploy into.
	lease, err := h.temporal.Store.GetLease(r.Context(), in.LeaseID)
	if errors.Is(err, store.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, "lease not found")
		return
	}
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	run, err := h.temporal.Client.ExecuteWorkflow(r.Context(), temporalclient.StartWorkflowOptions{
		ID:        "deploy-" + in.LeaseID + "-" + in.BlueprintID + "-" + in.StackSetID,
		TaskQueue: h.taskQueue,
	}, wf.DeployStackSetWorkflow, wf.DeployStackSetParams{
		LeaseID:                    in.LeaseID,
		UserEmail:                  lease.UserEmail,
		BlueprintID:                in.BlueprintID,
		BlueprintName:              detail.Blueprint.Name,
		AccountID:                  in.AccountID,
		StackSetID:                 in.StackSetID,
		Regions:                    in.Regions,
		RegionConcurrencyType:      in.RegionConcurrencyType,
		MaxConcurrentPercentage:    in.MaxConcurrentPercentage,
		FailureTolerancePercentage: in.FailureTolerancePercentage,
		ConcurrencyMode:            in.ConcurrencyMode,
		TimeoutMinutes:             detail.Blueprint.DeploymentTimeoutMinutes,
		PollIntervalSeconds:        h.pollSeconds,
	})
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	})
}

func (h *Action) submitDelete(w http.ResponseWriter, r *http.Request, in activity.DeleteStackInstancesInput) {
	detail, err := h.temporal.Store.Get(r.Context(), in.BlueprintID)
	if errors.Is(err, store.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, "blueprint not found")
		return
	}
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Teardown often runs after the lease has been reclaimed; a missing lease
	// does not block it.
	var userEmail string
	if lease, err := h.temporal.Store.GetLease(r.Context(), in.LeaseID); err == nil {
		userEmail = lease.UserEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	run, err := h.temporal.Client.ExecuteWorkflow(r.Context(), temporalclient.StartWorkflowOptions{
		ID:        "teardown-" + in.LeaseID + "-" + in.StackSetID,
		TaskQueue: h.taskQueue,
	}, wf.TeardownStackSetWorkflow, wf.TeardownStackSetParams{
		LeaseID:                    in.LeaseID,
		UserEmail:                  userEmail,
		BlueprintID:                in.BlueprintID,
		BlueprintName:              detail.Blueprint.Name,
		AccountID:                  in.AccountID,
		StackSetID:                 in.StackSetID,
		Regions:                    in.Regions,
		RegionConcurrencyType:      in.RegionConcurrencyType,
		MaxConcurrentPercentage:    in.MaxConcurrentPercentage,
		FailureTolerancePercentage: in.FailureTolerancePercentage,
		ConcurrencyMode:            in.ConcurrencyMode,
		TimeoutMinutes:             detail.Blueprint.DeploymentTimeoutMinutes,
		PollIntervalSeconds:        h.pollSeconds,
	})
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	})
}
