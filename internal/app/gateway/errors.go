package gateway

import (
	"errors"
	"fmt"
)

// ErrMissingAuthorization short-circuits a request before any component is
// called.
var ErrMissingAuthorization = errors.New("missing authorization header")

// ValidationError rejects a malformed request body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AccessDeniedError is returned when the principal's resolved allow-set does
// not contain the requested container.
type AccessDeniedError struct {
	Container string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied to container '%s'", e.Container)
}
