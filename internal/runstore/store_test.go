package runstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	run := &Run{Mode: "beam", Manifest: "dev.tsv", BeamSize: 16, Alpha: 0.5, Beta: 1, Utterances: 10, CER: 0.1, WER: 0.2, Exact: 0.3}
	require.NoError(t, s.Record(ctx, run))

	_, err := uuid.Parse(run.ID)
	require.NoError(t, err, "Record should assign a uuid")
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = run.CreatedAt
	assert.Equal(t, run, got)
}

func TestGetMissing(t *testing.T) {
	s := openTest(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBestAndRecent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	runs := []*Run{
		{ID: "a", CreatedAt: base, Mode: "beam", WER: 0.30, CER: 0.10},
		{ID: "b", CreatedAt: base.Add(time.Minute), Mode: "beam", WER: 0.20, CER: 0.12},
		{ID: "c", CreatedAt: base.Add(2 * time.Minute), Mode: "beam", WER: 0.20, CER: 0.08},
		{ID: "d", CreatedAt: base.Add(3 * time.Minute), Mode: "greedy", WER: 0.10, CER: 0.05},
	}
	for _, r := range runs {
		require.NoError(t, s.Record(ctx, r))
	}

	best, err := s.Best(ctx, "beam", 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, "c", best[0].ID)
	assert.Equal(t, "b", best[1].ID)

	all, err := s.Best(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "d", all[0].ID)

	recent, err := s.Recent(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "d", recent[0].ID)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, &Run{Mode: "greedy", Utterances: 1}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, path, s.Path())
}
