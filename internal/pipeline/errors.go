package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/verity/internal/auth"
	"github.com/ppiankov/verity/internal/model"
)

var (
	ErrEmptyClaim   = errors.New("claim is required")
	ErrClaimTooLong = errors.New("claim is too long")
)

// Error is returned instead of a report for input, auth and quota failures
type Error struct {
	Kind      model.ErrorKind
	Message   string
	Limit     int
	Remaining *int
	ResetAt   *time.Time
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Body renders the documented error body
func (e *Error) Body() model.ErrorResponse {
	return model.ErrorResponse{
		Error:     e.Kind,
		Message:   e.Message,
		Remaining: e.Remaining,
		ResetAt:   e.ResetAt,
	}
}

func inputError(err error) *Error {
	return &Error{Kind: model.ErrorInvalidInput, Message: err.Error(), Err: err}
}

// authError classifies a key or quota failure
func authError(err error, q auth.Quota) *Error {
	switch {
	case errors.Is(err, auth.ErrQuotaExceeded):
		remaining := q.Remaining
		resetAt := q.ResetAt
		return &Error{
			Kind:      model.ErrorRateLimited,
			Message:   fmt.Sprintf("quota of %d requests exceeded, resets at %s", q.Limit, resetAt.UTC().Format(time.RFC3339)),
			Limit:     q.Limit,
			Remaining: &remaining,
			ResetAt:   &resetAt,
			Err:       err,
		}
	case errors.Is(err, auth.ErrMissingKey),
		errors.Is(err, auth.ErrKeyNotFound),
		errors.Is(err, auth.ErrKeyRevoked),
		errors.Is(err, auth.ErrKeyNotAssigned):
		return &Error{Kind: model.ErrorUnauthorized, Message: err.Error(), Err: err}
	default:
		return &Error{Kind: model.ErrorInternal, Message: "key validation failed", Err: err}
	}
}

// authFailureReason is the metrics label for a rejected key
func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingKey):
		return "missing"
	case errors.Is(err, auth.ErrKeyNotFound):
		return "not_found"
	case errors.Is(err, auth.ErrKeyRevoked):
		return "revoked"
	case errors.Is(err, auth.ErrKeyNotAssigned):
		return "not_assigned"
	default:
		return "error"
	}
}
