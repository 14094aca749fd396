package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dvloznov/txn-quality/internal/gcsuploader"
	"github.com/dvloznov/txn-quality/internal/pipeline"
	"github.com/dvloznov/txn-quality/internal/reporting"
	"github.com/spf13/cobra"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a CSV batch, replacing the stored transactions",
		Long: `Ingest a CSV batch file from a local path or a gs:// URI.

Example:
  txq ingest --source data/sample.csv
  txq ingest --source gs://my-bucket/batches/2024-01-15.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, svc, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()

			result, err := pipeline.IngestBatch(ctx, source, svc.Ingest)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "batch file path or gs:// URI (required)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newUploadCommand(opts *rootOptions) *cobra.Command {
	var file, bucket, object string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a batch file to Cloud Storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, log, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = cfg.GCSBucket
			}
			if bucket == "" {
				return fmt.Errorf("--bucket is required when GCS_BUCKET is not set")
			}
			if object == "" {
				object = filepath.Base(file)
			}

			log.Info().
				Str("bucket", bucket).
				Str("object", object).
				Str("file", file).
				Msg("Uploading file to GCS")

			if err := gcsuploader.UploadFile(ctx, bucket, object, file); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"uri": gcsuploader.BuildGCSURI(bucket, object)})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "local file to upload (required)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket name (defaults to GCS_BUCKET)")
	cmd.Flags().StringVar(&object, "object", "", "object name (defaults to the file name)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type reportEnv struct {
	reports  *reporting.Service
	timezone string
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print sales and data quality reports",
	}

	var timezone string
	cmd.PersistentFlags().StringVar(&timezone, "timezone", "", "reporting timezone (defaults to DEFAULT_TIMEZONE)")

	// run opens the backend, resolves the timezone default and prints what fn returns.
	run := func(fn func(ctx context.Context, svc *reportEnv) (interface{}, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, svc, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			tz := timezone
			if tz == "" {
				tz = svc.Config.DefaultTimezone
			}
			out, err := fn(ctx, &reportEnv{reports: svc.Reports, timezone: tz})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "quality",
		Short: "Data quality issue counts",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, env *reportEnv) (interface{}, error) {
			return env.reports.QualityReport(ctx)
		}),
	})

	var start, end string
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Sales per local day",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, env *reportEnv) (interface{}, error) {
			return env.reports.DailySummary(ctx, start, end, env.timezone)
		}),
	}
	daily.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (required)")
	daily.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD (required)")
	_ = daily.MarkFlagRequired("start")
	_ = daily.MarkFlagRequired("end")
	cmd.AddCommand(daily)

	var date string
	hourly := &cobra.Command{
		Use:   "hourly",
		Short: "Sales per local hour of one day",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, env *reportEnv) (interface{}, error) {
			return env.reports.HourlySummary(ctx, date, env.timezone)
		}),
	}
	hourly.Flags().StringVar(&date, "date", "", "day, YYYY-MM-DD (required)")
	_ = hourly.MarkFlagRequired("date")
	cmd.AddCommand(hourly)

	var period1, period2 string
	compare := &cobra.Command{
		Use:   "compare",
		Short: "Compare two calendar months",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, env *reportEnv) (interface{}, error) {
			return env.reports.ComparePeriods(ctx, period1, period2, env.timezone)
		}),
	}
	compare.Flags().StringVar(&period1, "period1", "", "base month, YYYY-MM (required)")
	compare.Flags().StringVar(&period2, "period2", "", "compared month, YYYY-MM (required)")
	_ = compare.MarkFlagRequired("period1")
	_ = compare.MarkFlagRequired("period2")
	cmd.AddCommand(compare)

	return cmd
}

func newRunsCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, svc, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			runs, err := svc.Repo.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, runs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 for all)")
	return cmd
}

// tableCreator is implemented by backends whose tables are created on demand.
type tableCreator interface {
	EnsureTables(ctx context.Context) error
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the storage tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, svc, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			// SQLite applies its schema when the database is opened.
			if tc, ok := svc.Repo.(tableCreator); ok {
				if err := tc.EnsureTables(ctx); err != nil {
					return err
				}
			}
			return printJSON(cmd, map[string]string{
				"backend": svc.Config.StoreBackend,
				"status":  "ready",
			})
		},
	}
}
