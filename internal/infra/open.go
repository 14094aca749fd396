// Package infra selects and opens the configured storage backend.
package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/txn-quality/internal/config"
	"github.com/dvloznov/txn-quality/internal/infra/bigquery"
	"github.com/dvloznov/txn-quality/internal/infra/sqlite"
	"github.com/dvloznov/txn-quality/internal/repository"
)

// OpenRepository opens the backend named by cfg.StoreBackend.
func OpenRepository(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return store, nil

	case config.BackendBigQuery:
		repo, err := bigquery.NewBigQueryRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("OpenRepository: unknown backend %q", cfg.StoreBackend)
	}
}
