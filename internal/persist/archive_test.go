package persist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdaNilseng/FLSworkflow/internal/persist"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type recordingSink struct {
	err   error
	snaps []*api.RunSnapshot
}

func (s *recordingSink) Persist(_ context.Context, snap *api.RunSnapshot) error {
	s.snaps = append(s.snaps, snap)
	return s.err
}

func TestArchiveSink(t *testing.T) {
	ctx := context.Background()

	s, err := persist.OpenArchiveSink(ctx, "mem://", persist.DefaultArchivePrefix)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	snap := snapshot("run-1", time.Now())

	t.Run("Load reports missing runs", func(t *testing.T) {
		_, err := s.Load(ctx, "run-1")
		assert.ErrorIs(t, err, persist.ErrRunNotFound)
	})

	t.Run("unfinished runs are not archived", func(t *testing.T) {
		running := *snap
		running.Status = api.RunRunning
		assert.NoError(t, s.Persist(ctx, &running))

		_, err := s.Load(ctx, "run-1")
		assert.ErrorIs(t, err, persist.ErrRunNotFound)
	})

	t.Run("Persist and Load round-trip", func(t *testing.T) {
		require.NoError(t, s.Persist(ctx, snap))

		got, err := s.Load(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, api.RunSucceeded, got.Status)
		assert.Equal(t, api.Name("wf"), got.Workflow)
		assert.Equal(t, 3.0, got.Outputs["total"])
		require.Len(t, got.Instances, 1)
		assert.Equal(t, api.InstanceID("wf/a"), got.Instances[0].ID)
	})

	t.Run("Delete removes the snapshot", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "run-1"))
		_, err := s.Load(ctx, "run-1")
		assert.ErrorIs(t, err, persist.ErrRunNotFound)

		assert.NoError(t, s.Delete(ctx, "run-1"))
	})
}

func TestOpenArchiveSinkBadURL(t *testing.T) {
	_, err := persist.OpenArchiveSink(context.Background(), "nope://x", "")
	assert.ErrorIs(t, err, persist.ErrOpenArchive)
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("sink down")
	first := &recordingSink{}
	second := &recordingSink{err: failure}
	third := &recordingSink{}

	snap := snapshot("run-2", time.Now())
	err := persist.MultiSink{first, second, third}.Persist(ctx, snap)
	assert.ErrorIs(t, err, failure)

	for _, s := range []*recordingSink{first, second, third} {
		assert.Equal(t, []*api.RunSnapshot{snap}, s.snaps)
	}
	assert.NoError(t, persist.MultiSink{}.Persist(ctx, snap))
}
