package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	httpclient "github.com/astro-web3/obo-data-gateway/pkg/http"
	"github.com/astro-web3/obo-data-gateway/pkg/logger"
	"github.com/astro-web3/obo-data-gateway/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

const (
	apiVersion = "2018-12-31"

	headerContinuation   = "x-ms-continuation"
	headerRetryAfterMS   = "x-ms-retry-after-ms"
	headerPartitionKey   = "x-ms-documentdb-partitionkey"
	headerIsQuery        = "x-ms-documentdb-isquery"
	headerIsUpsert       = "x-ms-documentdb-is-upsert"
	headerCrossPartition = "x-ms-documentdb-query-enablecrosspartition"
)

// queryPage is one page of a query response.
type queryPage struct {
	Documents []json.RawMessage `json:"Documents"`
	Count     int               `json:"_count"`
}

// Client executes queries, point reads and upserts against one logical
// database. It keeps no per-credential state; the credential for each call
// is supplied by the caller.
type Client struct {
	endpoint string
	database string
}

func NewClient(endpoint, database string) *Client {
	return &Client{
		endpoint: endpoint,
		database: database,
	}
}

// Query runs queryText against a container and aggregates all result pages.
// Aggregation is all-or-nothing: the first failing page aborts the whole
// query and no partial items are returned.
func (c *Client) Query(ctx context.Context, container, queryText string, cred Credential) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "infra.docstore.Query")
	defer span.End()
	span.SetAttributes(attribute.String("store.container", container))

	token, err := cred.Authorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store credential: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"query":      queryText,
		"parameters": []any{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	var records []Record
	continuation := ""
	pages := 0

	for {
		opts := []httpclient.RequestOption{
			httpclient.WithBody(body),
			httpclient.WithHeader("Authorization", aadAuthValue(token)),
			httpclient.WithHeader("x-ms-version", apiVersion),
			httpclient.WithHeader("Content-Type", "application/query+json"),
			httpclient.WithHeader(headerIsQuery, "true"),
			httpclient.WithHeader(headerCrossPartition, "true"),
		}
		if continuation != "" {
			opts = append(opts, httpclient.WithHeader(headerContinuation, continuation))
		}

		resp, err := httpclient.Post(ctx, c.docsURL(container), opts...)
		if err != nil {
			return nil, &QueryError{Kind: KindUnknown, Err: err}
		}
		if resp.IsError() {
			return nil, classify(resp.StatusCode(), resp.Header())
		}

		var page queryPage
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return nil, &QueryError{Kind: KindUnknown, Err: fmt.Errorf("failed to decode page: %w", err)}
		}

		decoded, err := decodePage(container, page.Documents)
		if err != nil {
			return nil, &QueryError{Kind: KindUnknown, Err: err}
		}
		records = append(records, decoded...)
		pages++

		continuation = resp.Header().Get(headerContinuation)
		if continuation == "" {
			break
		}
	}

	logger.DebugContext(ctx, "query aggregated",
		slog.String("container", container),
		slog.Int("pages", pages),
		slog.Int("items", len(records)),
	)
	span.SetAttributes(attribute.Int("store.item_count", len(records)))

	return records, nil
}

// Exists performs a point read. An upstream 404 is a normal false, not an
// error.
func (c *Client) Exists(ctx context.Context, container, id, partitionKey string, cred Credential) (bool, error) {
	ctx, span := tracer.Start(ctx, "infra.docstore.Exists")
	defer span.End()

	token, err := cred.Authorization(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve store credential: %w", err)
	}

	resp, err := httpclient.Get(ctx, c.docsURL(container)+"/"+url.PathEscape(id),
		httpclient.WithHeader("Authorization", aadAuthValue(token)),
		httpclient.WithHeader("x-ms-version", apiVersion),
		httpclient.WithHeader(headerPartitionKey, partitionKeyHeader(partitionKey)),
	)
	if err != nil {
		return false, &QueryError{Kind: KindUnknown, Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsError():
		return false, classify(resp.StatusCode(), resp.Header())
	default:
		return true, nil
	}
}

// Upsert writes a document, replacing any existing one with the same id and
// partition key, and returns the stored record.
func (c *Client) Upsert(ctx context.Context, container string, document any, partitionKey string, cred Credential) (Record, error) {
	ctx, span := tracer.Start(ctx, "infra.docstore.Upsert")
	defer span.End()

	token, err := cred.Authorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store credential: %w", err)
	}

	resp, err := httpclient.Post(ctx, c.docsURL(container),
		httpclient.WithHeader("Authorization", aadAuthValue(token)),
		httpclient.WithHeader("x-ms-version", apiVersion),
		httpclient.WithHeader(headerIsUpsert, "true"),
		httpclient.WithHeader(headerPartitionKey, partitionKeyHeader(partitionKey)),
		httpclient.WithBody(document),
	)
	if err != nil {
		return nil, &QueryError{Kind: KindUnknown, Err: err}
	}
	if resp.IsError() {
		return nil, classify(resp.StatusCode(), resp.Header())
	}

	stored, err := decodeRecord(container, resp.Body())
	if err != nil {
		return nil, &QueryError{Kind: KindUnknown, Err: err}
	}
	return stored, nil
}

func (c *Client) docsURL(container string) string {
	return fmt.Sprintf("%s/dbs/%s/colls/%s/docs",
		c.endpoint, url.PathEscape(c.database), url.PathEscape(container))
}

// aadAuthValue renders the store's token-auth header format for an AAD
// bearer token.
func aadAuthValue(token string) string {
	return url.QueryEscape("type=aad&ver=1.0&sig=" + token)
}

func partitionKeyHeader(value string) string {
	encoded, _ := json.Marshal([]string{value})
	return string(encoded)
}

func classify(status int, header http.Header) *QueryError {
	kind := KindUnknown
	switch status {
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusBadRequest:
		kind = KindBadRequest
	case http.StatusTooManyRequests:
		kind = KindThrottled
	}

	return &QueryError{
		Kind:       kind,
		StatusCode: status,
		RetryAfter: retryAfter(header),
	}
}

func retryAfter(header http.Header) time.Duration {
	if ms := header.Get(headerRetryAfterMS); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			return time.Duration(v) * time.Millisecond
		}
	}
	if s := header.Get("Retry-After"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return time.Duration(v) * time.Second
		}
	}
	return 0
}
