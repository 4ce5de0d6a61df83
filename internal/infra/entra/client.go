package entra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/astro-web3/obo-data-gateway/internal/domain/delegation"
	httpclient "github.com/astro-web3/obo-data-gateway/pkg/http"
	"github.com/astro-web3/obo-data-gateway/pkg/logger"
)

// DefaultAuthority is the public Microsoft Entra endpoint. Tests point the
// client at an httptest server instead.
const DefaultAuthority = "https://login.microsoftonline.com"

const (
	grantJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	grantClientCredentials = "client_credentials"
	tokenUseOnBehalfOf     = "on_behalf_of"

	// AADSTS code for "user or admin has not consented".
	codeConsentRequired = 65001
)

// Client speaks the tenant's OAuth2 token endpoint. It is a pure function of
// its static configuration plus per-call input; it holds no per-user state.
type Client struct {
	authority    string
	tenantID     string
	clientID     string
	clientSecret string
	storeScope   string
}

func NewClient(authority, tenantID, clientID, clientSecret, storeScope string) *Client {
	return &Client{
		authority:    strings.TrimSuffix(authority, "/"),
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		storeScope:   storeScope,
	}
}

// Exchange performs the on-behalf-of grant: the user's validated assertion
// plus this service's confidential credentials buy a token scoped to the
// document store. One attempt, no retries.
func (c *Client) Exchange(ctx context.Context, userAssertion string) (*delegation.Credential, error) {
	if userAssertion == "" {
		return nil, &delegation.Error{
			Reason: delegation.ReasonExchangeRejected,
			Err:    errors.New("empty user assertion"),
		}
	}

	form := url.Values{}
	form.Set("grant_type", grantJWTBearer)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("assertion", userAssertion)
	form.Set("scope", c.storeScope)
	form.Set("requested_token_use", tokenUseOnBehalfOf)

	return c.requestToken(ctx, form)
}

// ClientCredentials acquires a token for the service's own identity, used as
// the fallback credential on the loader path.
func (c *Client) ClientCredentials(ctx context.Context) (*delegation.Credential, error) {
	form := url.Values{}
	form.Set("grant_type", grantClientCredentials)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", defaultScope(c.storeScope))

	return c.requestToken(ctx, form)
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*delegation.Credential, error) {
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.authority, c.tenantID)

	var tokenResp tokenResponse
	resp, err := httpclient.PostForm(ctx, endpoint, form, "", "", &tokenResp)
	if err != nil {
		return nil, &delegation.Error{
			Reason: delegation.ReasonProviderUnreachable,
			Err:    fmt.Errorf("token request failed: %w", err),
		}
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, classifyTokenError(ctx, resp.StatusCode(), resp.Body())
	}

	if tokenResp.AccessToken == "" {
		return nil, &delegation.Error{
			Reason: delegation.ReasonExchangeRejected,
			Err:    errors.New("token response has no access_token"),
		}
	}

	return &delegation.Credential{
		Token:     tokenResp.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

func classifyTokenError(ctx context.Context, status int, body []byte) *delegation.Error {
	var oauthErr tokenError
	if err := json.Unmarshal(body, &oauthErr); err != nil || oauthErr.Error == "" {
		return &delegation.Error{
			Reason: delegation.ReasonExchangeRejected,
			Err:    fmt.Errorf("token endpoint returned status %d", status),
		}
	}

	logger.WarnContext(ctx, "token endpoint rejected request",
		slog.String("oauth_error", oauthErr.Error),
		slog.Int("status", status),
	)

	cause := fmt.Errorf("token endpoint: %s (status %d)", oauthErr.Error, status)

	switch oauthErr.Error {
	case "invalid_grant", "interaction_required":
		if slices.Contains(oauthErr.ErrorCodes, codeConsentRequired) {
			return &delegation.Error{Reason: delegation.ReasonConsentRequired, Err: cause}
		}
		return &delegation.Error{Reason: delegation.ReasonAssertionExpired, Err: cause}
	case "invalid_scope":
		return &delegation.Error{Reason: delegation.ReasonScopeRejected, Err: cause}
	default:
		return &delegation.Error{Reason: delegation.ReasonExchangeRejected, Err: cause}
	}
}

// defaultScope turns an OBO delegated scope such as
// "https://cosmos.azure.com/user_impersonation" into the application-level
// "<resource>/.default" scope used by the client-credentials grant.
func defaultScope(scope string) string {
	if idx := strings.LastIndex(scope, "/"); idx > 0 {
		return scope[:idx] + "/.default"
	}
	return scope
}
