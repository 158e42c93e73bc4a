package activity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Action discriminators for the orchestrator's action inputs.
const (
	ActionCreate        = "CREATE"
	ActionDelete        = "DELETE"
	ActionPublishResult = "PUBLISH_RESULT"
)

var validate = validator.New()

// DecodeAction parses a raw action payload into its typed input based on the
// action discriminator. Unknown fields anywhere in the payload and schema
// violations are rejected here, before any side-effecting call.
func DecodeAction(raw []byte) (any, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("invalid action payload: %w", err)
	}

	switch envelope.Action {
	case ActionCreate:
		var in CreateStackInstancesInput
		if err := decodeStrict(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	case ActionDelete:
		var in DeleteStackInstancesInput
		if err := decodeStrict(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	case ActionPublishResult:
		var in PublishResultInput
		if err := decodeStrict(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	default:
		return nil, fmt.Errorf("unsupported action %q", envelope.Action)
	}
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid action payload: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid action payload: trailing data")
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// validateInput checks a typed action input against its schema. Used by
// activities whose inputs arrive already-typed from a workflow.
func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}
