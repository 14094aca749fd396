package pipeline

import (
	"context"
	"errors"
	"io/fs"

	"github.com/dvloznov/txn-quality/internal/jobs"
)

// JobHandler returns a jobs.JobHandler that ingests job.Source with deps and
// records the run on the job. Batches that cannot load as they stand fail
// without retries.
func JobHandler(deps Deps) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.IngestJob) error {
		result, err := IngestBatch(ctx, job.Source, deps)
		if errors.Is(err, ErrInvalidBatch) || errors.Is(err, fs.ErrNotExist) {
			return jobs.Permanent(err)
		}
		if err != nil {
			return err
		}
		stats := result.Stats
		job.RunID = result.RunID
		job.Stats = &stats
		return nil
	}
}
