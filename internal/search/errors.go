package search

import "fmt"

// ValidationError reports a syntactically or semantically bad query field.
// The HTTP boundary maps it to a 4xx status.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnknownAirportError reports a code that resolved in neither the fast
// layer nor the durable store. A search never proceeds past it.
type UnknownAirportError struct {
	Code string
}

func (e *UnknownAirportError) Error() string {
	return fmt.Sprintf("unknown airport code: %s", e.Code)
}
