package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// BackendError wraps provider errors with status metadata.
type BackendError struct {
	Provider  string
	Status    int
	Temporary bool
	Err       error
}

func (e *BackendError) Error() string {
	if e == nil {
		return "backend error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s backend: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s backend error (status=%d)", e.Provider, e.Status)
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PrerequisiteError reports an unmet adapter prerequisite. It is raised at
// registry resolution, never mid-traffic.
type PrerequisiteError struct {
	Provider string
	Reason   string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s prerequisite not met: %s", e.Provider, e.Reason)
}

// IsTransient reports whether an error is safe to retry. The dispatcher
// never retries; this exists for callers that implement their own policy.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		if backendErr.Temporary {
			return true
		}
		if backendErr.Status == 429 || (backendErr.Status >= 500 && backendErr.Status <= 599) {
			return true
		}
	}
	return false
}
