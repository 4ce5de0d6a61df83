package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/astro-web3/obo-data-gateway/internal/infra/docstore"
	"github.com/astro-web3/obo-data-gateway/pkg/logger"
	"github.com/google/uuid"
)

// Store is the write-side slice of the document-store client the loader
// needs.
type Store interface {
	Exists(ctx context.Context, container, id, partitionKey string, cred docstore.Credential) (bool, error)
	Upsert(ctx context.Context, container string, document any, partitionKey string, cred docstore.Credential) (docstore.Record, error)
}

// Loader seeds containers from JSON files under the static service identity.
// It never handles user tokens. The file→container mapping is explicit
// configuration, not ambient state.
type Loader struct {
	store          Store
	cred           docstore.Credential
	seedDir        string
	fileContainers map[string]string
}

func New(store Store, cred docstore.Credential, seedDir string, fileContainers map[string]string) *Loader {
	return &Loader{
		store:          store,
		cred:           cred,
		seedDir:        seedDir,
		fileContainers: fileContainers,
	}
}

// Run ingests every configured seed file. A store error aborts the current
// file; already-present records are skipped, making a re-run safe.
func (l *Loader) Run(ctx context.Context) error {
	if len(l.fileContainers) == 0 {
		return fmt.Errorf("no seed files configured")
	}

	for file, container := range l.fileContainers {
		if err := l.loadFile(ctx, file, container); err != nil {
			return fmt.Errorf("seed file %s: %w", file, err)
		}
	}
	return nil
}

func (l *Loader) loadFile(ctx context.Context, file, container string) error {
	raw, err := os.ReadFile(filepath.Join(l.seedDir, file))
	if err != nil {
		return fmt.Errorf("failed to read: %w", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("failed to parse: %w", err)
	}

	inserted, skipped := 0, 0
	for _, record := range records {
		id, _ := record["id"].(string)
		if id == "" {
			id = uuid.NewString()
			record["id"] = id
		}

		// Documents are partitioned by their id.
		exists, err := l.store.Exists(ctx, container, id, id, l.cred)
		if err != nil {
			return fmt.Errorf("existence check for %s: %w", id, err)
		}
		if exists {
			skipped++
			continue
		}

		if _, err := l.store.Upsert(ctx, container, record, id, l.cred); err != nil {
			return fmt.Errorf("upsert of %s: %w", id, err)
		}
		inserted++
	}

	logger.InfoContext(ctx, "seed file loaded",
		slog.String("file", file),
		slog.String("container", container),
		slog.Int("inserted", inserted),
		slog.Int("skipped", skipped),
	)
	return nil
}
