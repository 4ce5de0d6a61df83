package entra_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/astro-web3/obo-data-gateway/internal/domain/delegation"
	"github.com/astro-web3/obo-data-gateway/internal/infra/entra"
)

const (
	testTenant = "tenant-1"
	testScope  = "https://cosmos.azure.com/user_impersonation"
)

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, form map[string]string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+testTenant+"/oauth2/v2.0/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		handler(w, form)
	}))
}

func TestExchange_Success(t *testing.T) {
	var seen map[string]string
	ts := newTokenServer(t, func(w http.ResponseWriter, form map[string]string) {
		seen = form
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"delegated-token","token_type":"Bearer","expires_in":3600}`))
	})
	defer ts.Close()

	client := entra.NewClient(ts.URL, testTenant, "client-1", "secret", testScope)

	cred, err := client.Exchange(context.Background(), "user-assertion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.Token != "delegated-token" {
		t.Errorf("unexpected token %q", cred.Token)
	}
	if cred.ExpiresAt.IsZero() {
		t.Error("expected an advisory expiry")
	}

	if seen["grant_type"] != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
		t.Errorf("unexpected grant_type %q", seen["grant_type"])
	}
	if seen["assertion"] != "user-assertion" {
		t.Errorf("assertion not forwarded: %q", seen["assertion"])
	}
	if seen["requested_token_use"] != "on_behalf_of" {
		t.Errorf("unexpected requested_token_use %q", seen["requested_token_use"])
	}
	if seen["scope"] != testScope {
		t.Errorf("unexpected scope %q", seen["scope"])
	}
}

func TestExchange_ConsentRequired(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, _ map[string]string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"AADSTS65001: consent required","error_codes":[65001]}`))
	})
	defer ts.Close()

	client := entra.NewClient(ts.URL, testTenant, "client-1", "secret", testScope)

	_, err := client.Exchange(context.Background(), "user-assertion")
	assertDelegationReason(t, err, delegation.ReasonConsentRequired)
}

func TestExchange_AssertionExpired(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, _ map[string]string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"AADSTS50013: assertion expired","error_codes":[50013]}`))
	})
	defer ts.Close()

	client := entra.NewClient(ts.URL, testTenant, "client-1", "secret", testScope)

	_, err := client.Exchange(context.Background(), "user-assertion")
	assertDelegationReason(t, err, delegation.ReasonAssertionExpired)
}

func TestExchange_ScopeRejected(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, _ map[string]string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_scope","error_description":"scope not granted"}`))
	})
	defer ts.Close()

	client := entra.NewClient(ts.URL, testTenant, "client-1", "secret", testScope)

	_, err := client.Exchange(context.Background(), "user-assertion")
	assertDelegationReason(t, err, delegation.ReasonScopeRejected)
}

func TestExchange_ProviderUnreachable(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, _ map[string]string) {
		w.WriteHeader(http.StatusOK)
	})
	ts.Close() // closed before use

	client := entra.NewClient(ts.URL, testTenant, "client-1", "secret", testScope)

	_, err := client.Exchange(context.Background(), "user-assertion")
	assertDelegationReason(t, err, delegation.ReasonProviderUnreachable)
}

func TestExchange_EmptyAssertion(t *testing.T) {
	client := entra.NewClient("http://unused", testTenant, "client-1", "secret", testScope)

	_, err := client.Exchange(context.Background(), "")
	assertDelegationReason(t, err, delegation.ReasonExchangeRejected)
}

func TestClientCredentials_UsesDefaultScope(t *testing.T) {
	var seen map[string]string
	ts := newTokenServer(t, func(w http.ResponseWriter, form map[string]string) {
		seen = form
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"service-token","token_type":"Bearer","expires_in":3600}`))
	})
	defer ts.Close()

	client := entra.NewClient(ts.URL, testTenant, "client-1", "secret", testScope)

	cred, err := client.ClientCredentials(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.Token != "service-token" {
		t.Errorf("unexpected token %q", cred.Token)
	}

	if seen["grant_type"] != "client_credentials" {
		t.Errorf("unexpected grant_type %q", seen["grant_type"])
	}
	if seen["scope"] != "https://cosmos.azure.com/.default" {
		t.Errorf("unexpected scope %q", seen["scope"])
	}
}

func assertDelegationReason(t *testing.T, err error, reason delegation.Reason) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var delegationErr *delegation.Error
	if !errors.As(err, &delegationErr) {
		t.Fatalf("expected delegation.Error, got %T: %v", err, err)
	}
	if delegationErr.Reason != reason {
		t.Errorf("expected reason %q, got %q", reason, delegationErr.Reason)
	}
}
