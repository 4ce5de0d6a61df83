package docstore

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindBadRequest   Kind = "bad_request"
	KindThrottled    Kind = "throttled"
	KindUnknown      Kind = "unknown"
)

// QueryError classifies an upstream store failure. RetryAfter is the
// store's hint on a throttled response; it is surfaced, never acted upon.
type QueryError struct {
	Kind       Kind
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store request failed (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("store request failed (%s, status %d)", e.Kind, e.StatusCode)
}

func (e *QueryError) Unwrap() error { return e.Err }
