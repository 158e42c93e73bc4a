package activity

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"

	"github.com/cloudlease/blueprints/internal/model"
	"github.com/cloudlease/blueprints/internal/store"
)

// ResultPublisher emits terminal deployment events. *events.Publisher
// satisfies it.
type ResultPublisher interface {
	PublishDeploymentResult(ctx context.Context, status string, detail model.DeploymentEventDetail) error
}

// Publish is the PUBLISH_RESULT action: it enriches the terminal outcome with
// whatever lease and blueprint context still exists and emits the event.
type Publish struct {
	publisher ResultPublisher
	store     DeploymentStore
	logger    zerolog.Logger
}

// NewPublish creates a new Publish activity struct.
func NewPublish(publisher ResultPublisher, store DeploymentStore, logger zerolog.Logger) *Publish {
	return &Publish{
		publisher: publisher,
		store:     store,
		logger:    logger.With().Str("component", "publish-activity").Logger(),
	}
}

// PublishResult emits the terminal deployment event. Enrichment lookups are
// best effort: a lease or blueprint deleted mid-deployment must not block the
// outcome from reaching the lease-lifecycle subsystem.
func (a *Publish) PublishResult(ctx context.Context, input PublishResultInput) (*PublishResultOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid PUBLISH_RESULT input", "VALIDATION_ERROR", err)
	}

	detail := model.DeploymentEventDetail{
		LeaseID: model.LeaseIdentity{
			UserEmail: input.UserEmail,
			UUID:      input.LeaseID,
		},
		BlueprintID:     input.BlueprintID,
		BlueprintName:   input.BlueprintName,
		AccountID:       input.AccountID,
		OperationID:     input.OperationID,
		DurationSeconds: input.DurationSeconds,
	}
	if input.Status == model.DeploymentFailed {
		detail.ErrorType = model.ErrorTypeDeploymentFailed
		detail.ErrorMessage = input.ErrorMessage
	}

	if lease, err := a.store.GetLease(ctx, input.LeaseID); err == nil {
		detail.LeaseID.UserEmail = lease.UserEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		a.logger.Warn().Err(err).Str("lease_id", input.LeaseID).
			Msg("lease lookup failed, publishing with caller-supplied identity")
	}

	if detail.BlueprintName == "" {
		if bp, err := a.store.Get(ctx, input.BlueprintID); err == nil {
			detail.BlueprintName = bp.Blueprint.Name
		} else if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn().Err(err).Str("blueprint_id", input.BlueprintID).
				Msg("blueprint lookup failed, publishing without name")
		}
	}

	if err := a.publisher.PublishDeploymentResult(ctx, input.Status, detail); err != nil {
		return nil, err
	}

	return &PublishResultOutput{Published: true, Status: input.Status}, nil
}
