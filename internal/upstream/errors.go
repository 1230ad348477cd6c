package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers transport failures, timeouts and 5xx responses
	// after retries are exhausted
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrAuth covers 401/403 responses; never retried
	ErrAuth = errors.New("upstream authentication failed")

	// ErrMalformedPayload covers undecodable or structurally wrong response
	// bodies; never retried
	ErrMalformedPayload = errors.New("upstream payload malformed")
)

// ParseError describes a single upstream airport record that failed schema
// validation. These accompany the valid set instead of aborting the fetch.
type ParseError struct {
	Code   string
	Reason string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("airport %q: %s", e.Code, e.Reason)
}
