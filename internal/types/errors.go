package types

import "fmt"

// ValidationError reports a schema or invariant violation. These are always
// recoverable: the offending local mutation is rejected before it is ever
// handed to the transport.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
