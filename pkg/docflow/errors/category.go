// Package errors classifies collaborator failures and retries transient ones.
//
// Node code does not retry by hand. A call to a flaky provider is wrapped in
// Do, which consults Categorize (or a custom predicate) after
// every failed attempt:
//   - Transient errors are retried with exponential backoff and jitter
//   - Malformed model output is not retried here; callers recover it or fail
//   - Input and permanent errors fail immediately
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, provider overload.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: authentication failures, unknown errors.
	CategoryPermanent

	// CategoryMalformed indicates the model answered but the output could not
	// be used. Examples: JSON that cannot be recovered.
	CategoryMalformed

	// CategoryInput indicates the request itself is unusable.
	// Examples: missing prompt, unsupported format, invalid region.
	CategoryInput
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryMalformed:
		return "malformed"
	case CategoryInput:
		return "input"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// transientMarkers are lowercase substrings of provider errors that usually
// clear up on their own.
var transientMarkers = []string{"500", "internal", "overload", "unavailable"}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	// Check for already-categorized errors
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// Check for HTTP errors
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429 || httpErr.StatusCode >= 500:
			return CategoryTransient
		case httpErr.StatusCode == 400 || httpErr.StatusCode == 413 || httpErr.StatusCode == 422:
			return CategoryInput
		default:
			return CategoryPermanent
		}
	}

	var jsonErr *JSONParseError
	if errors.As(err, &jsonErr) {
		return CategoryMalformed
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CategoryInput
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	// The caller gave up; retrying would ignore that.
	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	if IsTransientMessage(err.Error()) {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsTransientMessage reports whether msg looks like a transient provider failure.
func IsTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsMalformed reports whether the error is unusable model output.
func IsMalformed(err error) bool {
	return Categorize(err) == CategoryMalformed
}
