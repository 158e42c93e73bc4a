package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var stackSetIDRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]{0,127}$`)

func init() {
	validate.RegisterValidation("stackset_id", func(fl validator.FieldLevel) bool {
		return stackSetIDRegex.MatchString(fl.Field().String())
	})
}

// Decode strictly parses a JSON request body into v and validates it. Unknown
// fields are rejected so schema drift surfaces as a 400, not silent data loss.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
