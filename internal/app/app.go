// Package app wires configuration into the repository, ingest pipeline and
// reporting service shared by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/txn-quality/internal/config"
	"github.com/dvloznov/txn-quality/internal/gcsuploader"
	"github.com/dvloznov/txn-quality/internal/infra"
	"github.com/dvloznov/txn-quality/internal/metrics"
	"github.com/dvloznov/txn-quality/internal/normalize"
	"github.com/dvloznov/txn-quality/internal/pipeline"
	"github.com/dvloznov/txn-quality/internal/quality"
	"github.com/dvloznov/txn-quality/internal/reporting"
	"github.com/dvloznov/txn-quality/internal/repository"
	"github.com/dvloznov/txn-quality/internal/tzcatalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Services holds the collaborators built from a Config.
type Services struct {
	Config  *config.Config
	Repo    repository.Repository
	Ingest  pipeline.Deps
	Reports *reporting.Service
	Metrics *metrics.PipelineMetrics
}

// Build opens the configured repository and assembles the ingest and
// reporting services. Metrics register with reg, or the default registerer
// when reg is nil.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg prometheus.Registerer) (*Services, error) {
	repo, err := infra.OpenRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	catalog, err := tzcatalog.NewSystem()
	if err != nil {
		// Exact zone names still resolve through the embedded tz database.
		log.Warn().Err(err).Msg("No zoneinfo catalog found, timezone labels must be exact zone names")
		catalog = tzcatalog.NewStatic("UTC")
	}

	detector := quality.NewDuplicateDetector(cfg.DuplicateThreshold())
	pm := metrics.NewPipelineMetrics(reg)

	return &Services{
		Config: cfg,
		Repo:   repo,
		Ingest: pipeline.Deps{
			Store:    repo,
			Fetcher:  pipeline.NewFileFetcher(gcsuploader.NewGCSStorageService()),
			Enricher: pipeline.NewEnricher(normalize.New(catalog, log), log),
			Detector: detector,
			Metrics:  pm,
		},
		Reports: reporting.NewService(repo, detector.Threshold()),
		Metrics: pm,
	}, nil
}

// Close releases the repository.
func (s *Services) Close() error {
	return s.Repo.Close()
}
