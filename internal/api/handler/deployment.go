package handler

import (
	"context"
	"errors"
	"net/http"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/cloudlease/blueprints/internal/api/request"
	"github.com/cloudlease/blueprints/internal/api/response"
	"github.com/cloudlease/blueprints/internal/model"
	"github.com/cloudlease/blueprints/internal/store"
	wf "github.com/cloudlease/blueprints/internal/workflow"
)

// WorkflowStarter is the Temporal client surface the deployment handlers
// need. temporalclient.Client satisfies it.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalclient.WorkflowRun, error)
}

type Deployment struct {
	temporal    Workflows
	taskQueue   string
	pollSeconds int
}

// Workflows pairs the Temporal client with the store lookups deployment
// submission needs.
type Workflows struct {
	Client WorkflowStarter
	Store  BlueprintStore
}

func NewDeployment(w Workflows, taskQueue string, pollSeconds int) *Deployment {
	return &Deployment{temporal: w, taskQueue: taskQueue, pollSeconds: pollSeconds}
}

// Create starts a blueprint deployment for a leased sandbox account. The
// workflow id is derived from lease and blueprint so a duplicate submission
// joins the running deployment instead of starting a second one.
func (h *Deployment) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeaseID             string `json:"leaseId" validate:"required,uuid"`
		UserEmail           string `json:"userEmail" validate:"required,email"`
		BlueprintID         string `json:"blueprintId" validate:"required,uuid"`
		AccountID           string `json:"accountId" validate:"required,len=12,number"`
		PollIntervalSeconds int    `json:"pollIntervalSeconds" validate:"omitempty,min=5,max=300"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.temporal.Store.Get(r.Context(), req.BlueprintID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "blueprint not found")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.PollIntervalSeconds == 0 {
		req.PollIntervalSeconds = h.pollSeconds
	}

	run, err := h.temporal.Client.ExecuteWorkflow(r.Context(), temporalclient.StartWorkflowOptions{
		ID:        "deploy-" + req.LeaseID + "-" + req.BlueprintID,
		TaskQueue: h.taskQueue,
	}, wf.DeployBlueprintWorkflow, wf.DeployBlueprintParams{
		LeaseID:             req.LeaseID,
		UserEmail:           req.UserEmail,
		BlueprintID:         req.BlueprintID,
		AccountID:           req.AccountID,
		PollIntervalSeconds: req.PollIntervalSeconds,
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

// CreateTeardown starts removal of one target's stack instances from a
// sandbox account.
func (h *Deployment) CreateTeardown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeaseID             string   `json:"leaseId" validate:"required,uuid"`
		UserEmail           string   `json:"userEmail" validate:"required,email"`
		BlueprintID         string   `json:"blueprintId" validate:"required,uuid"`
		AccountID           string   `json:"accountId" validate:"required,len=12,number"`
		StackSetID          string   `json:"stackSetId" validate:"required,stackset_id"`
		Regions             []string `json:"regions" validate:"required,min=1,dive,required"`
		PollIntervalSeconds int      `json:"pollIntervalSeconds" validate:"omitempty,min=5,max=300"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.temporal.Store.Get(r.Context(), req.BlueprintID)
	if errors.Is(err, store.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, "blueprint not found")
		return
	}
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.PollIntervalSeconds == 0 {
		req.PollIntervalSeconds = h.pollSeconds
	}

	regionConcurrency := detail.Blueprint.RegionConcurrencyType
	if regionConcurrency == "" {
		regionConcurrency = model.RegionConcurrencySequential
	}

	params := wf.TeardownStackSetParams{
		LeaseID:               req.LeaseID,
		UserEmail:             req.UserEmail,
		BlueprintID:           req.BlueprintID,
		BlueprintName:         detail.Blueprint.Name,
		AccountID:             req.AccountID,
		StackSetID:            req.StackSetID,
		Regions:               req.Regions,
		RegionConcurrencyType: regionConcurrency,
		TimeoutMinutes:        detail.Blueprint.DeploymentTimeoutMinutes,
		PollIntervalSeconds:   req.PollIntervalSeconds,
	}
	for _, cfg := range detail.StackSets {
		if cfg.StackSetID == req.StackSetID {
			params.MaxConcurrentPercentage = cfg.MaxConcurrentPercentage
			params.FailureTolerancePercentage = cfg.FailureTolerancePercentage
			params.ConcurrencyMode = cfg.ConcurrencyMode
		}
	}

	run, err := h.temporal.Client.ExecuteWorkflow(r.Context(), temporalclient.StartWorkflowOptions{
		ID:        "teardown-" + req.LeaseID + "-" + req.StackSetID,
		TaskQueue: h.taskQueue,
	}, wf.TeardownStackSetWorkflow, params)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	})
}
