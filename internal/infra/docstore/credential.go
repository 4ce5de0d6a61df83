package docstore

import (
	"context"
	"errors"

	"github.com/astro-web3/obo-data-gateway/internal/domain/delegation"
)

// Credential is anything that can produce a bearer token for the store. The
// store client never branches on which kind it was handed.
type Credential interface {
	Authorization(ctx context.Context) (string, error)
}

type delegatedCredential struct {
	cred *delegation.Credential
}

// Delegated wraps a per-request on-behalf-of credential. The wrapper is
// scoped to the request that created the credential and is never pooled.
func Delegated(cred *delegation.Credential) Credential {
	return &delegatedCredential{cred: cred}
}

func (d *delegatedCredential) Authorization(context.Context) (string, error) {
	if d.cred == nil || d.cred.Token == "" {
		return "", errors.New("delegated credential has no token")
	}
	return d.cred.Token, nil
}

// TokenSource yields tokens for the service's own identity.
type TokenSource interface {
	ClientCredentials(ctx context.Context) (*delegation.Credential, error)
}

type serviceCredential struct {
	source TokenSource
}

// ServiceIdentity is the static fallback credential used by the loader path.
// It holds no state between calls, so a single value is safe to share.
func ServiceIdentity(source TokenSource) Credential {
	return &serviceCredential{source: source}
}

func (s *serviceCredential) Authorization(ctx context.Context) (string, error) {
	cred, err := s.source.ClientCredentials(ctx)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}
