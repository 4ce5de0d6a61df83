package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Principal is the validated caller identity for the duration of one request.
// It is never persisted.
type Principal struct {
	SubjectID string
	Claims    map[string]any
}

type Reason string

const (
	ReasonMalformedHeader     Reason = "malformed_header"
	ReasonMetadataUnavailable Reason = "metadata_unavailable"
	ReasonInvalidToken        Reason = "invalid_token"
)

// AuthError is the single failure type of token validation. The wrapped
// cause is for logs only and must never reach a client response.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ErrKeyUnavailable marks a signing-key lookup that failed because the
// issuer's metadata could not be retrieved, as opposed to an unknown kid.
var ErrKeyUnavailable = errors.New("signing key metadata unavailable")

// TrimBearer strips a case-insensitive "Bearer " prefix. ok is false when
// the remainder is empty.
func TrimBearer(header string) (token string, ok bool) {
	token = strings.TrimSpace(header)
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = token[len(bearerPrefix):]
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

const bearerPrefix = "Bearer "
