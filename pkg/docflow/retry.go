package docflow

import (
	"log/slog"
	"strings"
)

// DefaultMaxRetries is the retry budget of the document branch.
const DefaultMaxRetries = 3

// retryableMarkers identify failures worth another generate_output attempt.
var retryableMarkers = []string{"Generation failed", "Validation failed"}

// IsRetryable reports whether msg belongs to a retryable failure class.
func IsRetryable(msg string) bool {
	for _, m := range retryableMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RetrySupervisor returns the router guarding the document branch's retry edge.
//
// With no errors the branch ends. Once RetryCount reaches maxRetries the branch
// ends regardless of remaining errors. Otherwise a retryable last error loops
// back to target and anything else ends the branch.
func RetrySupervisor(maxRetries int, target NodeID) RouterFunc {
	return func(ctx Context, s State) Transition {
		if len(s.Errors) == 0 {
			return Transition{Next: End}
		}
		if s.Metadata.RetryCount >= maxRetries {
			ctx.Logger().Warn("max retries reached, ending workflow",
				slog.Int("retry_count", s.Metadata.RetryCount),
				slog.String("last_error", s.LastError()),
			)
			return Transition{Next: End}
		}
		if IsRetryable(s.LastError()) {
			return Transition{Next: target, Retry: true}
		}
		return Transition{Next: End}
	}
}
