package todoist

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidToken means the API rejected the user's token (HTTP 401).
// The stored token should be discarded and the user re-prompted.
var ErrInvalidToken = errors.New("todoist: invalid api token")

// ErrQuotaExceeded means the account hit a plan quota (HTTP 403).
var ErrQuotaExceeded = errors.New("todoist: quota exceeded")

// ErrNotFound means the referenced task no longer exists (HTTP 404).
var ErrNotFound = errors.New("todoist: not found")

// RateLimitError is returned when either the local request budget or the
// remote API (HTTP 429) refuses the request.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("todoist: rate limited, retry after %s", e.RetryAfter)
}

// APIError carries any other non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("todoist: http %d: %s", e.Status, e.Body)
}
