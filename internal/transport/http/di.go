package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gatewayapp "github.com/astro-web3/obo-data-gateway/internal/app/gateway"
	"github.com/astro-web3/obo-data-gateway/internal/config"
	"github.com/astro-web3/obo-data-gateway/internal/domain/identity"
	"github.com/astro-web3/obo-data-gateway/internal/domain/policy"
	"github.com/astro-web3/obo-data-gateway/internal/infra/cache"
	"github.com/astro-web3/obo-data-gateway/internal/infra/docstore"
	"github.com/astro-web3/obo-data-gateway/internal/infra/entra"
	"github.com/astro-web3/obo-data-gateway/pkg/logger"
	"github.com/astro-web3/obo-data-gateway/pkg/tracer"
)

type Server struct {
	httpServer *http.Server
}

const (
	idleTimeoutMultiplier = 2
	serviceName           = "obo-data-gateway"
	defaultKeyTTL         = time.Hour
)

func NewServer(cfg *config.Config) (*Server, error) {
	logger.Init(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cfg.Observability.LogSource)

	if err := tracer.Init(tracer.Config{
		ServiceName: serviceName,
		EndpointURL: cfg.Observability.TracingEndpointURL,
		Enabled:     cfg.Observability.TraceEnabled,
		SampleRatio: 1.0,
		Insecure:    true,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	keyCache, err := newKeyCache(cfg)
	if err != nil {
		return nil, err
	}

	keyTTL := cfg.Redis.KeyTTL
	if keyTTL <= 0 {
		keyTTL = defaultKeyTTL
	}

	entraClient := entra.NewClient(
		entra.DefaultAuthority,
		cfg.Auth.TenantID,
		cfg.Auth.ClientID,
		cfg.Auth.ClientSecret,
		cfg.Auth.StoreScope,
	)
	keySource := entra.NewKeySource(entra.DefaultAuthority, cfg.Auth.TenantID, keyCache, keyTTL)

	validator := identity.NewValidator(
		keySource,
		entra.TrustedIssuers(entra.DefaultAuthority, cfg.Auth.TenantID),
		"api://"+cfg.Auth.ClientID,
	)

	resolver, err := policy.NewStaticResolver(cfg.Policy.Assignments, docstore.KnownContainers())
	if err != nil {
		return nil, fmt.Errorf("failed to build policy resolver: %w", err)
	}

	storeClient := docstore.NewClient(cfg.Store.Endpoint, cfg.Store.Database)

	appService := gatewayapp.NewService(validator, resolver, entraClient, storeClient)

	handler := NewHandler(appService)
	router := NewRouter(handler, cfg)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
	}

	return &Server{
		httpServer: httpServer,
	}, nil
}

func newKeyCache(cfg *config.Config) (cache.KeyCache, error) {
	if cfg.Redis.URL == "" {
		return cache.NewMemoryKeyCache(), nil
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis.URL, cfg.Redis.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return cache.NewRedisKeyCache(redisClient), nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
