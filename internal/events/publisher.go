package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog"

	"github.com/cloudlease/blueprints/internal/model"
)

// Source identifies this service on the event bus.
const Source = "blueprints.deployment"

// PutEventsAPI is the subset of the EventBridge surface this service uses.
// *eventbridge.Client satisfies it.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher emits terminal deployment events to the lease-lifecycle subsystem.
type Publisher struct {
	api     PutEventsAPI
	busName string
	logger  zerolog.Logger
}

// NewPublisher creates a new event Publisher targeting the given bus.
func NewPublisher(api PutEventsAPI, busName string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		api:     api,
		busName: busName,
		logger:  logger.With().Str("component", "event-publisher").Logger(),
	}
}

// PublishDeploymentResult emits BlueprintDeploymentSucceeded or
// BlueprintDeploymentFailed depending on the terminal status in detail.
func (p *Publisher) PublishDeploymentResult(ctx context.Context, status string, detail model.DeploymentEventDetail) error {
	detailType := model.EventBlueprintDeploymentSucceeded
	if status == model.DeploymentFailed {
		detailType = model.EventBlueprintDeploymentFailed
	}

	body, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal %s detail: %w", detailType, err)
	}

	out, err := p.api.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(Source),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(body)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", detailType, err)
	}
	if out.FailedEntryCount > 0 {
		entry := out.Entries[0]
		return fmt.Errorf("publish %s: %s: %s",
			detailType, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
	}

	p.logger.Info().
		Str("detail_type", detailType).
		Str("lease_id", detail.LeaseID.UUID).
		Str("operation_id", detail.OperationID).
		Msg("published deployment result event")
	return nil
}
