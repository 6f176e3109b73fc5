package platform

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidAPIKey = errors.New("invalid platform API key: must start with \"moltbook_\"")

// RateLimitedError is returned when the platform (or the local request
// throttle) refuses a request. Callers should wait RetryAfter.
type RateLimitedError struct {
	RetryAfter     time.Duration
	DailyRemaining *int
	// Local is set when the request never left the process.
	Local bool
}

func (e *RateLimitedError) Error() string {
	if e.Local {
		return fmt.Sprintf("request throttled locally, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by platform, retry after %s", e.RetryAfter)
}

// PlatformError is any other non-success response.
type PlatformError struct {
	StatusCode int
	Message    string
	Hint       string
}

func (e *PlatformError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("platform error %d: %s (hint: %s)", e.StatusCode, e.Message, e.Hint)
	}
	return fmt.Sprintf("platform error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited unwraps err looking for a RateLimitedError.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
