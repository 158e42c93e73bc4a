package stackset

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/cloudlease/blueprints/internal/backoff"
)

// ValidationError describes a target that is structurally ineligible for
// deployment. It is returned before any mutating call is issued.
type ValidationError struct {
	StackSetID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("stack set %s is not deployable: %s", e.StackSetID, e.Reason)
}

// ValidateTarget fetches the live StackSet definition and asserts it exists
// and uses the self-managed permission model. Delegated administration is not
// supported: this service assumes it owns the administration role.
func (c *Client) ValidateTarget(ctx context.Context, stackSetID string) error {
	call := backoff.CallContext{StackSetID: stackSetID}
	out, err := backoff.Execute(ctx, c.exec, call, func(ctx context.Context) (*cloudformation.DescribeStackSetOutput, error) {
		return c.api.DescribeStackSet(ctx, &cloudformation.DescribeStackSetInput{
			StackSetName: aws.String(stackSetID),
		})
	})
	if err != nil {
		var notFound *types.StackSetNotFoundException
		if errors.As(err, &notFound) {
			return &ValidationError{StackSetID: stackSetID, Reason: "stack set does not exist"}
		}
		return fmt.Errorf("describe stack set %s: %w", stackSetID, err)
	}

	ss := out.StackSet
	if ss == nil {
		return &ValidationError{StackSetID: stackSetID, Reason: "stack set does not exist"}
	}
	if ss.PermissionModel != types.PermissionModelsSelfManaged {
		return &ValidationError{
			StackSetID: stackSetID,
			Reason:     fmt.Sprintf("permission model is %s, expected %s", ss.PermissionModel, types.PermissionModelsSelfManaged),
		}
	}

	c.logger.Debug().Str("stack_set_id", aws.ToString(ss.StackSetId)).Msg("stack set validated")
	return nil
}
