package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloudlease/blueprints/internal/api/request"
	"github.com/cloudlease/blueprints/internal/api/response"
	"github.com/cloudlease/blueprints/internal/model"
	"github.com/cloudlease/blueprints/internal/platform"
	"github.com/cloudlease/blueprints/internal/store"
)

// BlueprintStore is the store surface the blueprint handlers need.
// *store.Store satisfies it.
type BlueprintStore interface {
	CreateBlueprint(ctx context.Context, b *model.Blueprint) error
	PutStackSetConfiguration(ctx context.Context, c *model.StackSetConfiguration) error
	Get(ctx context.Context, blueprintID string) (*store.BlueprintDetail, error)
	ListDeployments(ctx context.Context, blueprintID, stackSetID string, limit int) ([]model.DeploymentRecord, error)
	GetLease(ctx context.Context, id string) (*model.Lease, error)
}

type Blueprint struct {
	store BlueprintStore
}

func NewBlueprint(store BlueprintStore) *Blueprint {
	return &Blueprint{store: store}
}

func (h *Blueprint) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                     string            `json:"name" validate:"required,min=1,max=128"`
		Tags                     map[string]string `json:"tags"`
		CreatedBy                string            `json:"createdBy" validate:"required,email"`
		DeploymentTimeoutMinutes int               `json:"deploymentTimeoutMinutes" validate:"omitempty,min=1,max=720"`
		RegionConcurrencyType    string            `json:"regionConcurrencyType" validate:"omitempty,oneof=SEQUENTIAL PARALLEL"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.RegionConcurrencyType == "" {
		req.RegionConcurrencyType = model.RegionConcurrencySequential
	}

	b := &model.Blueprint{
		ID:                       platform.NewID(),
		Name:                     req.Name,
		Tags:                     req.Tags,
		CreatedBy:                req.CreatedBy,
		DeploymentTimeoutMinutes: req.DeploymentTimeoutMinutes,
		RegionConcurrencyType:    req.RegionConcurrencyType,
	}
	if err := h.store.CreateBlueprint(r.Context(), b); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, b)
}

func (h *Blueprint) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, "blueprint not found")
		return
	}
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, detail)
}

func (h *Blueprint) PutStackSet(w http.ResponseWriter, r *http.Request) {
	blueprintID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	stackSetID, err := request.RequireID(chi.URLParam(r, "stackSetId"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		AdministrationRoleARN      string   `json:"administrationRoleArn" validate:"omitempty,max=2048"`
		ExecutionRoleName          string   `json:"executionRoleName" validate:"omitempty,max=64"`
		Regions                    []string `json:"regions" validate:"required,min=1,dive,required"`
		DeploymentOrder            int      `json:"deploymentOrder" validate:"omitempty,min=0,max=100"`
		MaxConcurrentPercentage    int      `json:"maxConcurrentPercentage" validate:"omitempty,min=1,max=100"`
		FailureTolerancePercentage int      `json:"failureTolerancePercentage" validate:"omitempty,min=0,max=100"`
		ConcurrencyMode            string   `json:"concurrencyMode" validate:"omitempty,oneof=STRICT_FAILURE_TOLERANCE SOFT_FAILURE_TOLERANCE"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The blueprint must exist before targets can be attached to it.
	if _, err := h.store.Get(r.Context(), blueprintID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "blueprint not found")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cfg := &model.StackSetConfiguration{
		BlueprintID:                blueprintID,
		StackSetID:                 stackSetID,
		AdministrationRoleARN:      req.AdministrationRoleARN,
		ExecutionRoleName:          req.ExecutionRoleName,
		Regions:                    req.Regions,
		DeploymentOrder:            req.DeploymentOrder,
		MaxConcurrentPercentage:    req.MaxConcurrentPercentage,
		FailureTolerancePercentage: req.FailureTolerancePercentage,
		ConcurrencyMode:            req.ConcurrencyMode,
	}
	if err := h.store.PutStackSetConfiguration(r.Context(), cfg); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Blueprint) ListDeployments(w http.ResponseWriter, r *http.Request) {
	blueprintID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	stackSetID, err := request.RequireID(chi.URLParam(r, "stackSetId"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			response.WriteError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
	}

	records, err := h.store.ListDeployments(r.Context(), blueprintID, stackSetID, limit)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []model.DeploymentRecord{}
	}

	response.WriteJSON(w, http.StatusOK, records)
}
