package entra

import (
	"context"
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/astro-web3/obo-data-gateway/internal/domain/identity"
	"github.com/astro-web3/obo-data-gateway/internal/infra/cache"
	httpclient "github.com/astro-web3/obo-data-gateway/pkg/http"
	"github.com/astro-web3/obo-data-gateway/pkg/logger"
)

// KeySource fetches the tenant's signing keys via the OpenID discovery
// document and serves lookups by kid. The raw JWKS document is cached (keys
// only, never credentials); a miss or expiry triggers a re-fetch.
type KeySource struct {
	authority string
	tenantID  string
	keys      cache.KeyCache
	ttl       time.Duration
}

func NewKeySource(authority, tenantID string, keys cache.KeyCache, ttl time.Duration) *KeySource {
	return &KeySource{
		authority: authority,
		tenantID:  tenantID,
		keys:      keys,
		ttl:       ttl,
	}
}

// SigningKey implements identity.KeySource. Metadata fetch failures wrap
// identity.ErrKeyUnavailable; an unknown kid after a successful fetch is a
// plain error and invalidates the token instead.
func (s *KeySource) SigningKey(ctx context.Context, kid string) (crypto.PublicKey, error) {
	doc, err := s.jwks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrKeyUnavailable, err)
	}

	for _, key := range doc.Keys {
		if key.Kid != kid {
			continue
		}
		pub, convErr := rsaPublicKey(key)
		if convErr != nil {
			return nil, fmt.Errorf("jwk %q: %w", kid, convErr)
		}
		return pub, nil
	}

	return nil, fmt.Errorf("no signing key with kid %q", kid)
}

func (s *KeySource) jwks(ctx context.Context) (*jwksDocument, error) {
	if raw, err := s.keys.Get(ctx, s.tenantID); err == nil {
		var doc jwksDocument
		if err := json.Unmarshal(raw, &doc); err == nil && len(doc.Keys) > 0 {
			return &doc, nil
		}
		logger.WarnContext(ctx, "cached jwks document unusable, refetching")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.WarnContext(ctx, "key cache read failed, refetching", slog.String("error", err.Error()))
	}

	raw, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var doc jwksDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode jwks document: %w", err)
	}
	if len(doc.Keys) == 0 {
		return nil, errors.New("jwks document contains no keys")
	}

	if setErr := s.keys.Set(ctx, s.tenantID, raw, s.ttl); setErr != nil {
		logger.WarnContext(ctx, "failed to cache jwks document", slog.String("error", setErr.Error()))
	}

	return &doc, nil
}

func (s *KeySource) fetch(ctx context.Context) ([]byte, error) {
	discoveryURL := fmt.Sprintf("%s/%s/v2.0/.well-known/openid-configuration", s.authority, s.tenantID)

	var oidc openIDConfiguration
	resp, err := httpclient.Get(ctx, discoveryURL, httpclient.WithResult(&oidc))
	if err != nil {
		return nil, fmt.Errorf("discovery fetch failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("discovery fetch returned status %d", resp.StatusCode())
	}
	if oidc.JWKSURI == "" {
		return nil, errors.New("discovery document has no jwks_uri")
	}

	jwksResp, err := httpclient.Get(ctx, oidc.JWKSURI)
	if err != nil {
		return nil, fmt.Errorf("jwks fetch failed: %w", err)
	}
	if jwksResp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("jwks fetch returned status %d", jwksResp.StatusCode())
	}

	return jwksResp.Body(), nil
}

func rsaPublicKey(k jwkKey) (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported kty %q", k.Kty)
	}
	n, err := b64uToBigInt(k.N)
	if err != nil {
		return nil, fmt.Errorf("rsa n: %w", err)
	}
	eBig, err := b64uToBigInt(k.E)
	if err != nil {
		return nil, fmt.Errorf("rsa e: %w", err)
	}
	if !eBig.IsInt64() || eBig.Int64() > int64(^uint32(0)>>1) {
		return nil, errors.New("rsa exponent too large")
	}
	return &rsa.PublicKey{N: n, E: int(eBig.Int64())}, nil
}

func b64uToBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("empty base64url value")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// TrustedIssuers returns the issuer URIs accepted for a tenant: the v2
// endpoint and the legacy sts form, both of which appear in real tokens.
func TrustedIssuers(authority, tenantID string) []string {
	return []string{
		fmt.Sprintf("%s/%s/v2.0", authority, tenantID),
		fmt.Sprintf("https://sts.windows.net/%s/", tenantID),
	}
}
