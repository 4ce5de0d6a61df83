package http

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/astro-web3/obo-data-gateway/pkg/tracer"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTimeout = 60 * time.Second

var (
	//nolint:gochecknoglobals // Global HTTP client is intentional for application-wide requests
	client *resty.Client
	//nolint:gochecknoglobals // Global once is intentional for thread-safe initialization
	once sync.Once
)

func getClient() *resty.Client {
	once.Do(func() {
		client = resty.New().
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json")
	})
	return client
}

// Client returns the shared HTTP client instance.
func Client() *resty.Client {
	return getClient()
}

type RequestOption func(*resty.Request)

func WithAuthToken(token string) RequestOption {
	return func(r *resty.Request) {
		r.SetAuthToken(token)
	}
}

func WithBasicAuth(user, pass string) RequestOption {
	return func(r *resty.Request) {
		if user != "" {
			r.SetBasicAuth(user, pass)
		}
	}
}

func WithBody(body any) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(body)
	}
}

func WithResult(result any) RequestOption {
	return func(r *resty.Request) {
		if result != nil {
			r.SetResult(result)
		}
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader(key, value)
	}
}

func Request(ctx context.Context, method, reqURL string, opts ...RequestOption) (*resty.Response, error) {
	ctx, span := startClientSpan(ctx, "http.Request", method, reqURL)
	defer span.End()

	request := getClient().R().SetContext(ctx)

	for _, opt := range opts {
		opt(request)
	}

	injectTracingHeaders(ctx, request)

	resp, err := request.Execute(method, reqURL)

	recordSpan(span, resp, err)
	return resp, err
}

func Get(ctx context.Context, reqURL string, opts ...RequestOption) (*resty.Response, error) {
	return Request(ctx, http.MethodGet, reqURL, opts...)
}

func Post(ctx context.Context, reqURL string, opts ...RequestOption) (*resty.Response, error) {
	return Request(ctx, http.MethodPost, reqURL, opts...)
}

// PostForm sends a form-encoded POST, optionally with basic auth, decoding a
// successful JSON body into result. Used for OAuth2 token endpoints.
func PostForm(
	ctx context.Context,
	reqURL string,
	form url.Values,
	user, pass string,
	result any,
) (*resty.Response, error) {
	ctx, span := startClientSpan(ctx, "http.PostForm", http.MethodPost, reqURL)
	defer span.End()

	request := getClient().R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormDataFromValues(form)

	if user != "" {
		request.SetBasicAuth(user, pass)
	}
	if result != nil {
		request.SetResult(result)
	}

	injectTracingHeaders(ctx, request)

	resp, err := request.Post(reqURL)

	recordSpan(span, resp, err)
	return resp, err
}

func startClientSpan(
	ctx context.Context,
	spanName string,
	method string,
	reqURL string,
) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", reqURL),
	))
}

func recordSpan(span trace.Span, resp *resty.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		return
	}
	span.SetStatus(codes.Ok, "")
}
