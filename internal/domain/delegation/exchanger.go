package delegation

import (
	"context"
	"fmt"
	"time"
)

// Credential is a downstream-scoped token obtained on behalf of one user for
// one request. It must never be cached or shared across requests; the expiry
// is advisory only.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Exchanger trades a validated user assertion for a store-scoped credential.
// A single attempt per request; retries are the orchestrator's decision.
type Exchanger interface {
	Exchange(ctx context.Context, userAssertion string) (*Credential, error)
}

type Reason string

const (
	ReasonConsentRequired     Reason = "consent_required"
	ReasonAssertionExpired    Reason = "assertion_expired"
	ReasonProviderUnreachable Reason = "provider_unreachable"
	ReasonScopeRejected       Reason = "scope_rejected"
	ReasonExchangeRejected    Reason = "exchange_rejected"
)

// Error classifies a failed exchange. Provider error bodies stay in the
// wrapped cause and are never echoed to clients.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delegation failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("delegation failed (%s)", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }
