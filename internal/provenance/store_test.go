package provenance_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikihq/gitundo/internal/provenance"
	"github.com/tikihq/gitundo/internal/vcs"
)

// fakeAdapter serves canned repository answers for store tests.
type fakeAdapter struct {
	vcs.Adapter

	existing map[string]bool
	log      []string
	parents  map[string][]string
}

func (f *fakeAdapter) CommitExists(_ context.Context, hash string) (bool, error) {
	return f.existing[hash], nil
}

func (f *fakeAdapter) LogRange(_ context.Context, _, _ string) ([]string, error) {
	return f.log, nil
}

func (f *fakeAdapter) ParentHashesOf(_ context.Context, hash string) ([]string, error) {
	return f.parents[hash], nil
}

func newStore(t *testing.T) (*provenance.Store, *fakeAdapter, string) {
	t.Helper()

	dir := t.TempDir()

	adapter := &fakeAdapter{
		existing: map[string]bool{},
		parents:  map[string][]string{},
	}

	return provenance.NewStore(dir, adapter, nil), adapter, dir
}

func record(hash string, issue int) provenance.CommitRecord {
	return provenance.CommitRecord{
		CommitHash:  hash,
		IssueNumber: issue,
		Timestamp:   1700000000000,
		Message:     "commit " + hash,
		Source:      provenance.SourceAgent,
	}
}

func TestStore_TrackAndLoad(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	ctx := context.Background()

	require.NoError(t, store.Track(ctx, record("aaa", 42)))
	require.NoError(t, store.Track(ctx, record("bbb", 42)))

	records, err := store.Load(ctx)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "aaa", records[0].CommitHash)
	assert.Equal(t, "bbb", records[1].CommitHash)
}

func TestStore_Track_DerivesMergeFlag(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	ctx := context.Background()

	merge := record("merge", 7)
	merge.ParentHashes = []string{"p1", "p2"}

	require.NoError(t, store.Track(ctx, merge))

	records, err := store.Load(ctx)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsMergeCommit)
}

func TestStore_Track_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	ctx := context.Background()

	require.NoError(t, store.Track(ctx, record("aaa", 1)))

	err := store.Track(ctx, record("aaa", 2))

	require.ErrorIs(t, err, provenance.ErrDuplicateHash)
}

func TestStore_Track_Validation(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*provenance.CommitRecord)
		wantErr error
	}{
		{
			name:    "empty hash",
			mutate:  func(r *provenance.CommitRecord) { r.CommitHash = "" },
			wantErr: provenance.ErrEmptyHash,
		},
		{
			name:    "missing issue",
			mutate:  func(r *provenance.CommitRecord) { r.IssueNumber = 0 },
			wantErr: provenance.ErrMissingIssue,
		},
		{
			name:    "bad source",
			mutate:  func(r *provenance.CommitRecord) { r.Source = "robot" },
			wantErr: provenance.ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record("xyz", 1)
			tt.mutate(&rec)

			err := store.Track(ctx, rec)

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStore_ConcurrentTrack_LosesNothing(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	ctx := context.Background()

	const n = 20

	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			err := store.Track(ctx, record(fmt.Sprintf("hash-%02d", i), 42))

			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	records, err := store.Load(ctx)

	require.NoError(t, err)
	assert.Len(t, records, n)
}

func TestStore_LoadMissingFile_IsEmpty(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	records, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_LoadCorruptFile_Fails(t *testing.T) {
	t.Parallel()

	store, _, dir := newStore(t)

	ctx := context.Background()

	require.NoError(t, store.Track(ctx, record("aaa", 1)))

	path := filepath.Join(dir, "provenance.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"records": "not an array"}`), 0o644))

	_, err := store.Load(ctx)

	require.Error(t, err)
	assert.True(t, provenance.IsCorrupt(err))

	// The best-effort path degrades to empty instead.
	assert.Empty(t, store.Snapshot(ctx))
}

func TestStore_CommitsForIssueAndPhase(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	ctx := context.Background()

	phase1 := 1
	phase2 := 2

	recA := record("aaa", 42)
	recA.PhaseNumber = &phase1

	recB := record("bbb", 42)
	recB.PhaseNumber = &phase2

	recC := record("ccc", 99)

	require.NoError(t, store.Track(ctx, recA))
	require.NoError(t, store.Track(ctx, recB))
	require.NoError(t, store.Track(ctx, recC))

	forIssue, err := store.CommitsForIssue(ctx, 42)

	require.NoError(t, err)
	require.Len(t, forIssue, 2)

	forPhase, err := store.CommitsForPhase(ctx, 42, 2)

	require.NoError(t, err)
	require.Len(t, forPhase, 1)
	assert.Equal(t, "bbb", forPhase[0].CommitHash)

	// Mutating the returned copy must not leak into the store.
	forPhase[0].Message = "mutated"

	again, err := store.CommitsForPhase(ctx, 42, 2)

	require.NoError(t, err)
	assert.Equal(t, "commit bbb", again[0].Message)
}

func TestStore_ValidateHistory(t *testing.T) {
	t.Parallel()

	store, adapter, _ := newStore(t)

	ctx := context.Background()

	adapter.existing["aaa"] = true
	adapter.existing["bbb"] = false

	result, err := store.ValidateHistory(ctx, []provenance.CommitRecord{
		record("aaa", 1),
		record("bbb", 1),
	})

	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"bbb"}, result.MissingCommits)
}

func TestStore_ValidateHistory_AllPresent(t *testing.T) {
	t.Parallel()

	store, adapter, _ := newStore(t)

	adapter.existing["aaa"] = true

	result, err := store.ValidateHistory(context.Background(), []provenance.CommitRecord{record("aaa", 1)})

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.MissingCommits)
}

func TestStore_FindExternalCommits(t *testing.T) {
	t.Parallel()

	store, adapter, _ := newStore(t)

	ctx := context.Background()

	require.NoError(t, store.Track(ctx, record("tracked1", 1)))
	require.NoError(t, store.Track(ctx, record("tracked2", 1)))

	adapter.log = []string{"tracked2", "outsider", "tracked1"}

	external, err := store.FindExternalCommits(ctx, "base", "HEAD")

	require.NoError(t, err)
	assert.Equal(t, []string{"outsider"}, external)
}

func TestStore_DetectMergeCommit(t *testing.T) {
	t.Parallel()

	store, adapter, _ := newStore(t)

	ctx := context.Background()

	adapter.parents["merge"] = []string{"p1", "p2"}
	adapter.parents["plain"] = []string{"p1"}

	isMerge, err := store.DetectMergeCommit(ctx, "merge")

	require.NoError(t, err)
	assert.True(t, isMerge)

	isMerge, err = store.DetectMergeCommit(ctx, "plain")

	require.NoError(t, err)
	assert.False(t, isMerge)
}
