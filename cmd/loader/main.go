package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/astro-web3/obo-data-gateway/internal/config"
	"github.com/astro-web3/obo-data-gateway/internal/infra/docstore"
	"github.com/astro-web3/obo-data-gateway/internal/infra/entra"
	"github.com/astro-web3/obo-data-gateway/internal/loader"
	"github.com/astro-web3/obo-data-gateway/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	logger.Init(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cfg.Observability.LogSource)

	if cfg.Loader.SeedDir == "" {
		log.Fatal("loader.seed_dir is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	entraClient := entra.NewClient(
		entra.DefaultAuthority,
		cfg.Auth.TenantID,
		cfg.Auth.ClientID,
		cfg.Auth.ClientSecret,
		cfg.Auth.StoreScope,
	)
	storeClient := docstore.NewClient(cfg.Store.Endpoint, cfg.Store.Database)

	l := loader.New(
		storeClient,
		docstore.ServiceIdentity(entraClient),
		cfg.Loader.SeedDir,
		cfg.Loader.FileContainers,
	)

	if err := l.Run(ctx); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding complete")
}
