package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Collaborator errors
	ErrSourceUnavailable   = fmt.Errorf("source unavailable")
	ErrMalformedResponse   = fmt.Errorf("malformed response")
	ErrSearchFailed        = fmt.Errorf("search failed")
	ErrQueueMutationFailed = fmt.Errorf("queue mutation failed")
	ErrCommandRejected     = fmt.Errorf("command rejected")
	ErrCancelled           = fmt.Errorf("cancelled")

	// Lookup errors
	ErrRendererNotFound = fmt.Errorf("renderer not found")
	ErrNodeNotFound     = fmt.Errorf("node not found")
	ErrEntryNotFound    = fmt.Errorf("queue entry not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// IsCancelled reports whether err means the result was superseded rather than failed.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// Unavailable wraps err as [ErrSourceUnavailable] unless it already carries one of the
// collaborator sentinels.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, op, err)
}

// IsClassified reports whether err already wraps one of the collaborator sentinels.
func IsClassified(err error) bool {
	for _, target := range []error{
		ErrSourceUnavailable, ErrMalformedResponse, ErrSearchFailed,
		ErrQueueMutationFailed, ErrCommandRejected, ErrCancelled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
