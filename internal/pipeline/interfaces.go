package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/gcsuploader"
	"github.com/dvloznov/txn-quality/internal/repository"
)

// TimestampNormalizer converts a raw timestamp and timezone label into a UTC
// instant, reporting false when the pair cannot be interpreted.
type TimestampNormalizer interface {
	Normalize(rawTimestamp, rawTimezone string) (time.Time, bool)
}

// SourceFetcher returns the bytes of a batch file.
type SourceFetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Store is the part of the repository an ingest run writes to.
type Store interface {
	repository.TransactionRepository
	repository.RunRepository
}

// Recorder receives pipeline metrics.
type Recorder interface {
	ObserveRecords(outcome string, n int)
	ObserveFlag(flag domain.Flag, n int)
	ObserveBatch(status string, d time.Duration)
}

// ErrInvalidBatch marks a batch that cannot load as it stands: the source is
// missing or unaddressable, or its contents cannot be decoded.
var ErrInvalidBatch = errors.New("invalid batch")

// FileFetcher reads local paths from disk and gs:// URIs through Storage.
type FileFetcher struct {
	Storage gcsuploader.StorageService
}

// NewFileFetcher creates a FileFetcher. storage may be nil when only local
// files will be read.
func NewFileFetcher(storage gcsuploader.StorageService) *FileFetcher {
	return &FileFetcher{Storage: storage}
}

// Fetch returns the contents of source.
func (f *FileFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if gcsuploader.IsGCSURI(source) {
		if f.Storage == nil {
			return nil, fmt.Errorf("FileFetcher: %w: no storage service configured for %s", ErrInvalidBatch, source)
		}
		if _, _, err := gcsuploader.ParseGCSURI(source); err != nil {
			return nil, fmt.Errorf("FileFetcher: %w: %w", ErrInvalidBatch, err)
		}
		data, err := f.Storage.FetchFromGCS(ctx, source)
		if gcsuploader.IsNotFound(err) {
			return nil, fmt.Errorf("FileFetcher: %w: %w", ErrInvalidBatch, err)
		}
		return data, err
	}

	data, err := os.ReadFile(source)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return nil, fmt.Errorf("FileFetcher: read %s: %w: %w", source, ErrInvalidBatch, err)
	}
	if err != nil {
		return nil, fmt.Errorf("FileFetcher: read %s: %w", source, err)
	}
	return data, nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveRecords(string, int)         {}
func (nopRecorder) ObserveFlag(domain.Flag, int)       {}
func (nopRecorder) ObserveBatch(string, time.Duration) {}
