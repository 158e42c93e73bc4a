package activity

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"

	"github.com/cloudlease/blueprints/internal/store"
)

// BlueprintDB wraps deployment-store reads and writes as activities so the
// orchestration driver can call them with its own retry policy.
type BlueprintDB struct {
	store  DeploymentStore
	logger zerolog.Logger
}

// NewBlueprintDB creates a new BlueprintDB activity struct.
func NewBlueprintDB(store DeploymentStore, logger zerolog.Logger) *BlueprintDB {
	return &BlueprintDB{
		store:  store,
		logger: logger.With().Str("component", "blueprint-db-activity").Logger(),
	}
}

// GetBlueprint loads a blueprint with all of its target configurations. A
// missing blueprint is terminal for the calling workflow, so it is surfaced as
// a non-retryable error.
func (a *BlueprintDB) GetBlueprint(ctx context.Context, blueprintID string) (*store.BlueprintDetail, error) {
	detail, err := a.store.Get(ctx, blueprintID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, temporal.NewNonRetryableApplicationError(
			"blueprint "+blueprintID+" not found", "BLUEPRINT_NOT_FOUND", err)
	}
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// RecordDeploymentStart writes one IN_PROGRESS history row. Safe to retry:
// the row key is derived from the logical start time and operation id.
func (a *BlueprintDB) RecordDeploymentStart(ctx context.Context, p store.RecordDeploymentStartParams) error {
	return a.store.RecordDeploymentStart(ctx, p)
}

// UpdateDeploymentStatusAndMetrics finalizes one history row and bumps the
// aggregate counters. The returned flag reports whether this invocation was
// the one that applied the transition.
func (a *BlueprintDB) UpdateDeploymentStatusAndMetrics(ctx context.Context, p store.UpdateDeploymentStatusAndMetricsParams) (bool, error) {
	applied, err := a.store.UpdateDeploymentStatusAndMetrics(ctx, p)
	if err != nil {
		return false, err
	}
	if !applied {
		a.logger.Debug().
			Str("blueprint_id", p.BlueprintID).
			Str("deployment_sk", p.DeploymentSK).
			Msg("deployment already finalized, skipping metric update")
	}
	return applied, nil
}
