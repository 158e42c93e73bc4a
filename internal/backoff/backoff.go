package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// CallContext carries traceability fields logged with every retry attempt.
type CallContext struct {
	StackSetID string
	AccountID  string
}

// Executor wraps a single external-API call with bounded exponential-backoff
// retry. Only throttling errors are retried; everything else propagates
// immediately. Callers must only wrap calls that are safe to re-issue.
type Executor struct {
	logger     zerolog.Logger
	maxRetries uint64
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewExecutor creates an Executor with the default retry ceiling
// (5 retries, 1s initial delay, capped at 30s).
func NewExecutor(logger zerolog.Logger) *Executor {
	return &Executor{
		logger:     logger.With().Str("component", "backoff").Logger(),
		maxRetries: 5,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
	}
}

// NewExecutorWithPolicy creates an Executor with an explicit retry policy.
func NewExecutorWithPolicy(logger zerolog.Logger, maxRetries uint64, baseDelay, maxDelay time.Duration) *Executor {
	return &Executor{
		logger:     logger.With().Str("component", "backoff").Logger(),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// Execute runs op, retrying with exponential backoff while the provider
// reports throttling. Terminal errors are returned after the first attempt.
func Execute[T any](ctx context.Context, e *Executor, call CallContext, op func(context.Context) (T, error)) (T, error) {
	b := retry.WithMaxRetries(e.maxRetries,
		retry.WithCappedDuration(e.maxDelay,
			retry.NewExponential(e.baseDelay)))

	attempt := 0
	return retry.DoValue(ctx, b, func(ctx context.Context) (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil {
			if IsThrottle(err) {
				e.logger.Warn().
					Str("stack_set_id", call.StackSetID).
					Str("account_id", call.AccountID).
					Int("attempt", attempt).
					Err(err).
					Msg("provider throttled request, retrying")
				return v, retry.RetryableError(err)
			}
			return v, err
		}
		return v, nil
	})
}

// IsThrottle reports whether err is a rate-limiting error from the provider.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded",
		"TooManyRequestsException", "RequestThrottled", "RequestThrottledException":
		return true
	}
	return false
}
