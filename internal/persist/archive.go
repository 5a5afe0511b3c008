package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OdaNilseng/FLSworkflow/internal/storage"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// ArchiveSink keeps the final snapshot of every run as a JSON document
	// in a blob bucket. Snapshots of unfinished runs are ignored
	ArchiveSink struct {
		bucket *storage.Bucket
	}

	// Persister is anything that accepts run snapshots
	Persister interface {
		Persist(ctx context.Context, snap *api.RunSnapshot) error
	}

	// MultiSink hands every snapshot to each of its sinks in turn
	MultiSink []Persister
)

const DefaultArchivePrefix = "runs/"

var ErrOpenArchive = errors.New("failed to open run archive")

// OpenArchiveSink opens the bucket at bucketURL and archives below prefix
func OpenArchiveSink(
	ctx context.Context, bucketURL, prefix string,
) (*ArchiveSink, error) {
	bucket, err := storage.OpenBucket(ctx, bucketURL, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	return &ArchiveSink{bucket: bucket}, nil
}

// Persist archives snap once its run has finished
func (s *ArchiveSink) Persist(ctx context.Context, snap *api.RunSnapshot) error {
	switch snap.Status {
	case api.RunSucceeded, api.RunFailed:
	default:
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotEncode, err)
	}
	return s.bucket.Put(ctx, keyFor(snap.ID), data)
}

// Load returns the archived snapshot of a run
func (s *ArchiveSink) Load(
	ctx context.Context, id api.RunID,
) (*api.RunSnapshot, error) {
	data, err := s.bucket.Get(ctx, keyFor(id))
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	var snap api.RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotDecode, err)
	}
	return &snap, nil
}

// Delete removes an archived snapshot. Missing snapshots are not an error
func (s *ArchiveSink) Delete(ctx context.Context, id api.RunID) error {
	return s.bucket.Delete(ctx, keyFor(id))
}

// Close releases the archive bucket
func (s *ArchiveSink) Close() error {
	return s.bucket.Close()
}

// Persist hands snap to every sink, joining their errors
func (m MultiSink) Persist(ctx context.Context, snap *api.RunSnapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.Persist(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func keyFor(id api.RunID) string {
	return string(id) + ".json"
}
