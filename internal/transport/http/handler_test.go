package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/astro-web3/obo-data-gateway/internal/app/gateway"
	"github.com/astro-web3/obo-data-gateway/internal/domain/delegation"
	"github.com/astro-web3/obo-data-gateway/internal/domain/identity"
	"github.com/astro-web3/obo-data-gateway/internal/infra/docstore"
	"github.com/gin-gonic/gin"
)

type stubService struct {
	queryResult *gateway.QueryResult
	queryErr    error
	summary     *gateway.AccessSummary
	summaryErr  error
}

func (s *stubService) QueryContainer(_ context.Context, _ string, _ gateway.QueryRequest) (*gateway.QueryResult, error) {
	return s.queryResult, s.queryErr
}

func (s *stubService) DescribeAccess(_ context.Context, _ string) (*gateway.AccessSummary, error) {
	return s.summary, s.summaryErr
}

func newTestRouter(svc gateway.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(svc)
	router.POST("/containers/query", handler.QueryContainer)
	router.GET("/user/access", handler.DescribeAccess)
	return router
}

func postQuery(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/containers/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return body
}

func TestQueryContainer_Success(t *testing.T) {
	router := newTestRouter(&stubService{
		queryResult: &gateway.QueryResult{
			Items:     []docstore.Record{docstore.GenericRecord{"id": "d1"}},
			ItemCount: 1,
		},
	})

	rec := postQuery(router, `{"containerName":"Finance"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Error("expected success=true")
	}
	if body["itemCount"] != float64(1) {
		t.Errorf("unexpected itemCount %v", body["itemCount"])
	}
	if data, ok := body["data"].([]any); !ok || len(data) != 1 {
		t.Errorf("unexpected data %v", body["data"])
	}
}

func TestQueryContainer_EmptyResultIsEmptyArray(t *testing.T) {
	router := newTestRouter(&stubService{queryResult: &gateway.QueryResult{}})

	rec := postQuery(router, `{"containerName":"Finance"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected an empty data array, got %s", rec.Body.String())
	}
}

func TestQueryContainer_MalformedBody(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := postQuery(router, `{"containerName":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["errorMessage"] != "invalid request body" {
		t.Errorf("unexpected message %v", body["errorMessage"])
	}
	if body["success"] != false {
		t.Error("expected success=false")
	}
}

func TestQueryContainer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "missing authorization",
			err:     gateway.ErrMissingAuthorization,
			status:  http.StatusUnauthorized,
			message: "Missing authorization header",
		},
		{
			name:    "invalid token",
			err:     &identity.AuthError{Reason: identity.ReasonInvalidToken, Err: errors.New("expired")},
			status:  http.StatusUnauthorized,
			message: "Invalid or expired token",
		},
		{
			name:    "metadata outage",
			err:     &identity.AuthError{Reason: identity.ReasonMetadataUnavailable, Err: errors.New("jwks down")},
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
		{
			name:    "access denied",
			err:     &gateway.AccessDeniedError{Container: "HR"},
			status:  http.StatusForbidden,
			message: "Access denied to container 'HR'",
		},
		{
			name:    "consent required",
			err:     &delegation.Error{Reason: delegation.ReasonConsentRequired, Err: errors.New("65001")},
			status:  http.StatusUnauthorized,
			message: "Unable to act on behalf of the signed-in user",
		},
		{
			name:    "provider unreachable",
			err:     &delegation.Error{Reason: delegation.ReasonProviderUnreachable, Err: errors.New("dial")},
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
		{
			name:    "container not found",
			err:     &docstore.QueryError{Kind: docstore.KindNotFound, StatusCode: 404},
			status:  http.StatusNotFound,
			message: "Container not found",
		},
		{
			name:    "store forbidden",
			err:     &docstore.QueryError{Kind: docstore.KindForbidden, StatusCode: 403},
			status:  http.StatusForbidden,
			message: "Access to the requested data was refused",
		},
		{
			name:    "bad query",
			err:     &docstore.QueryError{Kind: docstore.KindBadRequest, StatusCode: 400},
			status:  http.StatusBadRequest,
			message: "The query was rejected",
		},
		{
			name:    "store unknown",
			err:     &docstore.QueryError{Kind: docstore.KindUnknown, StatusCode: 503},
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
		{
			name:    "unclassified error",
			err:     errors.New("kaboom"),
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			router := newTestRouter(&stubService{queryErr: c.err})

			rec := postQuery(router, `{"containerName":"Finance"}`)
			if rec.Code != c.status {
				t.Fatalf("expected %d, got %d: %s", c.status, rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["errorMessage"] != c.message {
				t.Errorf("expected message %q, got %v", c.message, body["errorMessage"])
			}
			if body["success"] != false {
				t.Error("expected success=false")
			}
		})
	}
}

func TestQueryContainer_ThrottledSetsRetryAfter(t *testing.T) {
	router := newTestRouter(&stubService{queryErr: &docstore.QueryError{
		Kind:       docstore.KindThrottled,
		StatusCode: 429,
		RetryAfter: 1500 * time.Millisecond,
	}})

	rec := postQuery(router, `{"containerName":"Finance"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After rounded up to 2, got %q", got)
	}
	body := decodeBody(t, rec)
	if body["errorMessage"] != "The data store is throttling requests" {
		t.Errorf("unexpected message %v", body["errorMessage"])
	}
}

func TestDescribeAccess_Success(t *testing.T) {
	router := newTestRouter(&stubService{summary: &gateway.AccessSummary{
		SubjectID:         "user-1",
		AllowedContainers: []string{"Finance", "Sales"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/user/access", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["userId"] != "user-1" {
		t.Errorf("unexpected userId %v", body["userId"])
	}
	if containers, ok := body["allowedContainers"].([]any); !ok || len(containers) != 2 {
		t.Errorf("unexpected allowedContainers %v", body["allowedContainers"])
	}
}

func TestDescribeAccess_NoContainersIsEmptyArray(t *testing.T) {
	router := newTestRouter(&stubService{summary: &gateway.AccessSummary{SubjectID: "user-2"}})

	req := httptest.NewRequest(http.MethodGet, "/user/access", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"allowedContainers":[]`) {
		t.Errorf("expected an empty array, got %s", rec.Body.String())
	}
}

func TestDescribeAccess_MissingAuthorization(t *testing.T) {
	router := newTestRouter(&stubService{summaryErr: gateway.ErrMissingAuthorization})

	req := httptest.NewRequest(http.MethodGet, "/user/access", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
