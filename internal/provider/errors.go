package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// ContentError is a structurally valid provider response whose content is
// unusable (safety-filtered image, empty candidate list). Retrying the same
// prompt will not fix it.
type ContentError struct {
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("provider content error: %s", e.Reason)
}

// IsTransient reports whether an error is worth retrying: timeouts, network
// failures and 5xx / 429 responses. Client errors and content failures are
// permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var contentErr *ContentError
	if errors.As(err, &contentErr) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}
