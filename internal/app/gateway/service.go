package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/astro-web3/obo-data-gateway/internal/domain/delegation"
	"github.com/astro-web3/obo-data-gateway/internal/domain/identity"
	"github.com/astro-web3/obo-data-gateway/internal/domain/policy"
	"github.com/astro-web3/obo-data-gateway/internal/infra/docstore"
	"github.com/astro-web3/obo-data-gateway/pkg/logger"
	"github.com/astro-web3/obo-data-gateway/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultQuery is used when the request omits a query text.
const DefaultQuery = "SELECT * FROM c"

type QueryRequest struct {
	ContainerName string
	Query         string
}

type QueryResult struct {
	Items     []docstore.Record
	ItemCount int
}

type AccessSummary struct {
	SubjectID         string
	AllowedContainers []string
}

// Store is the slice of the document-store client the request path needs.
type Store interface {
	Query(ctx context.Context, container, queryText string, cred docstore.Credential) ([]docstore.Record, error)
}

// Service sequences validation, authorization, delegation and query for one
// request. Each request is a single forward pass; no stage is revisited.
type Service interface {
	QueryContainer(ctx context.Context, authHeader string, req QueryRequest) (*QueryResult, error)
	DescribeAccess(ctx context.Context, authHeader string) (*AccessSummary, error)
}

type service struct {
	validator identity.Validator
	resolver  policy.Resolver
	exchanger delegation.Exchanger
	store     Store
}

func NewService(
	validator identity.Validator,
	resolver policy.Resolver,
	exchanger delegation.Exchanger,
	store Store,
) Service {
	return &service{
		validator: validator,
		resolver:  resolver,
		exchanger: exchanger,
		store:     store,
	}
}

func (s *service) QueryContainer(ctx context.Context, authHeader string, req QueryRequest) (*QueryResult, error) {
	ctx, span := tracer.Start(ctx, "app.gateway.QueryContainer")
	defer span.End()
	span.SetAttributes(attribute.String("gateway.container", req.ContainerName))

	if strings.TrimSpace(authHeader) == "" {
		return nil, ErrMissingAuthorization
	}
	if strings.TrimSpace(req.ContainerName) == "" {
		return nil, &ValidationError{Message: "containerName is required"}
	}

	principal, err := s.validator.Validate(ctx, authHeader)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("gateway.subject", principal.SubjectID))

	allowed, err := s.resolver.IsAuthorized(ctx, principal.SubjectID, req.ContainerName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("policy resolution failed: %w", err)
	}
	if !allowed {
		logger.WarnContext(ctx, "container access denied",
			slog.String("subject", principal.SubjectID),
			slog.String("container", req.ContainerName),
		)
		return nil, &AccessDeniedError{Container: req.ContainerName}
	}

	// The exchanger needs the raw assertion, not the Principal.
	assertion, _ := identity.TrimBearer(authHeader)
	cred, err := s.exchanger.Exchange(ctx, assertion)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	queryText := strings.TrimSpace(req.Query)
	if queryText == "" {
		queryText = DefaultQuery
	}

	items, err := s.store.Query(ctx, req.ContainerName, queryText, docstore.Delegated(cred))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.InfoContext(ctx, "container query served",
		slog.String("subject", principal.SubjectID),
		slog.String("container", req.ContainerName),
		slog.Int("item_count", len(items)),
	)

	return &QueryResult{Items: items, ItemCount: len(items)}, nil
}

func (s *service) DescribeAccess(ctx context.Context, authHeader string) (*AccessSummary, error) {
	ctx, span := tracer.Start(ctx, "app.gateway.DescribeAccess")
	defer span.End()

	if strings.TrimSpace(authHeader) == "" {
		return nil, ErrMissingAuthorization
	}

	principal, err := s.validator.Validate(ctx, authHeader)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	allowed, err := s.resolver.Resolve(ctx, principal.SubjectID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("policy resolution failed: %w", err)
	}

	return &AccessSummary{
		SubjectID:         principal.SubjectID,
		AllowedContainers: allowed,
	}, nil
}
