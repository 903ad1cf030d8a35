package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikihq/gitundo/internal/checkpoint"
	"github.com/tikihq/gitundo/internal/provenance"
	"github.com/tikihq/gitundo/internal/vcs"
)

// fakeCommit is one commit in the fake repository graph.
type fakeCommit struct {
	parents  []string
	stats    []vcs.FileStat
	statuses []vcs.FileStatus
	remotes  []string
}

// fakeAdapter is an in-memory vcs.Adapter with a linear-by-default commit
// graph and recorded mutations.
type fakeAdapter struct {
	head    string
	commits map[string]*fakeCommit
	log     []string // Full history, newest first.
	dirty   bool

	conflictOn map[string]bool

	revertSeq   int
	mutations   []string
	dryRunCalls int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		commits:    make(map[string]*fakeCommit),
		conflictOn: make(map[string]bool),
	}
}

// addCommit appends a commit on top of the current history.
func (f *fakeAdapter) addCommit(hash string, parents ...string) *fakeCommit {
	commit := &fakeCommit{parents: parents}
	f.commits[hash] = commit
	f.log = append([]string{hash}, f.log...)
	f.head = hash

	return commit
}

func (f *fakeAdapter) Head(_ context.Context) (string, error) {
	return f.head, nil
}

func (f *fakeAdapter) CommitExists(_ context.Context, hash string) (bool, error) {
	_, ok := f.commits[hash]

	return ok, nil
}

func (f *fakeAdapter) ParentHashesOf(_ context.Context, hash string) ([]string, error) {
	commit, ok := f.commits[hash]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", hash)
	}

	return commit.parents, nil
}

func (f *fakeAdapter) LogRange(_ context.Context, fromRef, toRef string) ([]string, error) {
	if toRef == "HEAD" {
		toRef = f.head
	}

	out := make([]string, 0)
	collecting := false

	for _, hash := range f.log {
		if hash == toRef {
			collecting = true
		}

		if hash == fromRef {
			break
		}

		if collecting {
			out = append(out, hash)
		}
	}

	return out, nil
}

func (f *fakeAdapter) DiffStat(_ context.Context, hash string) ([]vcs.FileStat, error) {
	commit, ok := f.commits[hash]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", hash)
	}

	return commit.stats, nil
}

func (f *fakeAdapter) NameStatus(_ context.Context, hash string) ([]vcs.FileStatus, error) {
	commit, ok := f.commits[hash]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", hash)
	}

	return commit.statuses, nil
}

func (f *fakeAdapter) RemoteBranchesContaining(_ context.Context, hash string) ([]string, error) {
	commit, ok := f.commits[hash]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", hash)
	}

	return commit.remotes, nil
}

func (f *fakeAdapter) WorkingTreeIsDirty(_ context.Context) (bool, error) {
	return f.dirty, nil
}

func (f *fakeAdapter) Revert(_ context.Context, hash string) (string, error) {
	if f.conflictOn[hash] {
		return "", fmt.Errorf("revert %s: %w", hash, vcs.ErrConflict)
	}

	f.revertSeq++
	newHash := fmt.Sprintf("revert%d", f.revertSeq)
	f.commits[newHash] = &fakeCommit{parents: []string{f.head}}
	f.log = append([]string{newHash}, f.log...)
	f.head = newHash
	f.mutations = append(f.mutations, "revert "+hash)

	return newHash, nil
}

func (f *fakeAdapter) AbortRevert(_ context.Context) error {
	f.mutations = append(f.mutations, "abort-revert")

	return nil
}

func (f *fakeAdapter) HardReset(_ context.Context, target string) error {
	if _, ok := f.commits[target]; !ok {
		return fmt.Errorf("unknown reset target %s", target)
	}

	f.head = target
	f.mutations = append(f.mutations, "reset "+target)

	return nil
}

func (f *fakeAdapter) CreateBranch(_ context.Context, name string) error {
	f.mutations = append(f.mutations, "branch "+name)

	return nil
}

func (f *fakeAdapter) DryRunCherryPick(_ context.Context, hash string) error {
	f.dryRunCalls++

	if f.conflictOn[hash] {
		return fmt.Errorf("dry run %s: %w", hash, vcs.ErrConflict)
	}

	return nil
}

// harness wires an engine over a fake adapter with real on-disk stores.
type harness struct {
	adapter     *fakeAdapter
	store       *provenance.Store
	checkpoints *checkpoint.Manager
	engine      *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	adapter := newFakeAdapter()
	logger := slog.New(slog.DiscardHandler)
	store := provenance.NewStore(dir, adapter, logger)
	checkpoints := checkpoint.NewManager(dir, adapter, logger)
	engine := NewEngine(adapter, store, checkpoints, EngineOptions{Logger: logger})

	return &harness{adapter: adapter, store: store, checkpoints: checkpoints, engine: engine}
}

// track records a commit for issue 7, phase 1, with timestamps spaced so
// newest-first ordering is deterministic.
func (h *harness) track(t *testing.T, hash string, phase int, ts int64) {
	t.Helper()

	phaseNum := phase

	err := h.store.Track(context.Background(), provenance.CommitRecord{
		CommitHash:   hash,
		IssueNumber:  7,
		PhaseNumber:  &phaseNum,
		Timestamp:    ts,
		Message:      "work on " + hash,
		Source:       provenance.SourceAgent,
		ParentHashes: h.adapter.commits[hash].parents,
	})
	require.NoError(t, err)
}

// linearRepo builds base <- c1 <- c2 <- c3 and tracks c1..c3 for issue 7
// phase 1.
func linearRepo(t *testing.T) *harness {
	t.Helper()

	h := newHarness(t)
	h.adapter.addCommit("base")

	c1 := h.adapter.addCommit("c1", "base")
	c1.statuses = []vcs.FileStatus{{Path: "a.go", StatusCode: "A"}}
	c1.stats = []vcs.FileStat{{Path: "a.go", AddedLines: 10}}

	c2 := h.adapter.addCommit("c2", "c1")
	c2.statuses = []vcs.FileStatus{{Path: "a.go", StatusCode: "M"}, {Path: "b.go", StatusCode: "A"}}
	c2.stats = []vcs.FileStat{{Path: "a.go", AddedLines: 3, RemovedLines: 1}, {Path: "b.go", AddedLines: 5}}

	c3 := h.adapter.addCommit("c3", "c2")
	c3.statuses = []vcs.FileStatus{{Path: "b.go", StatusCode: "D"}}
	c3.stats = []vcs.FileStat{{Path: "b.go", RemovedLines: 5}}

	h.track(t, "c1", 1, 100)
	h.track(t, "c2", 1, 200)
	h.track(t, "c3", 1, 300)

	return h
}

func TestPreview_PhaseScope(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)

	preview, err := h.engine.PreviewRollback(context.Background(), ScopePhase, Target{IssueNumber: 7, PhaseNumber: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"c3", "c2", "c1"}, preview.Commits)
	assert.True(t, preview.CanRollback)
	assert.Empty(t, preview.Warnings)
	assert.Equal(t, 18, preview.AddedLines)
	assert.Equal(t, 6, preview.RemovedLines)

	byPath := make(map[string]FileImpact, len(preview.Files))
	for _, file := range preview.Files {
		byPath[file.Path] = file
	}

	// a.go was created inside the range, so rolling back deletes it.
	assert.Equal(t, StateDeleted, byPath["a.go"].PostState)
	assert.Equal(t, 13, byPath["a.go"].AddedLines)

	// b.go was added then deleted inside the range.
	assert.Equal(t, StateRestored, byPath["b.go"].PostState)
}

func TestPreview_IsIdempotent(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	ctx := context.Background()
	target := Target{IssueNumber: 7}

	first, err := h.engine.PreviewRollback(ctx, ScopeIssue, target)
	require.NoError(t, err)

	second, err := h.engine.PreviewRollback(ctx, ScopeIssue, target)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Empty(t, h.adapter.mutations, "preview must not mutate the repository")
}

func TestPreview_EmptyScope(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)

	preview, err := h.engine.PreviewRollback(context.Background(), ScopeIssue, Target{IssueNumber: 99})
	require.NoError(t, err)

	assert.False(t, preview.CanRollback)
	assert.Contains(t, preview.BlockedReasons, "no commits found for the specified scope")
	assert.Empty(t, preview.Commits)
}

func TestPreview_DirtyTree_BlocksAndSkipsConflictProbe(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	h.adapter.dirty = true

	preview, err := h.engine.PreviewRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7})
	require.NoError(t, err)

	assert.False(t, preview.CanRollback)
	assert.True(t, preview.HasWarning(WarningDirtyWorkingTree))
	assert.Zero(t, h.adapter.dryRunCalls, "conflict probe needs a clean tree")
}

func TestPreview_PushedWarning(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	h.adapter.commits["c1"].remotes = []string{"origin/main"}

	preview, err := h.engine.PreviewRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7})
	require.NoError(t, err)

	assert.True(t, preview.HasWarning(WarningPushed))
	assert.True(t, preview.CanRollback, "pushed commits warn but do not block preview")
}

func TestPreview_MergeCommitWarning(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.adapter.addCommit("base")
	h.adapter.addCommit("side", "base")
	h.adapter.addCommit("m1", "base", "side")
	h.track(t, "m1", 1, 100)

	preview, err := h.engine.PreviewRollback(context.Background(), ScopePhase, Target{IssueNumber: 7, PhaseNumber: 1})
	require.NoError(t, err)

	assert.True(t, preview.HasWarning(WarningMergeCommit))
}

func TestPreview_ConflictWarning(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	h.adapter.conflictOn["c3"] = true

	preview, err := h.engine.PreviewRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7})
	require.NoError(t, err)

	assert.True(t, preview.HasWarning(WarningConflicts))
	assert.True(t, preview.CanRollback)
}

func TestPreview_CheckpointScope_FlagsExternalCommits(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.adapter.addCommit("base")

	cp, err := h.checkpoints.Create(ctx, "before-work", checkpoint.CreateOptions{})
	require.NoError(t, err)

	h.adapter.addCommit("agent1", "base")
	h.track(t, "agent1", 1, 100)
	h.adapter.addCommit("human1", "agent1") // Committed outside the agent.

	preview, err := h.engine.PreviewRollback(ctx, ScopeCheckpoint, Target{CheckpointID: cp.ID})
	require.NoError(t, err)

	assert.Equal(t, []string{"human1", "agent1"}, preview.Commits)
	assert.True(t, preview.HasWarning(WarningExternalCommits))

	var external Warning

	for _, w := range preview.Warnings {
		if w.Kind == WarningExternalCommits {
			external = w
		}
	}

	assert.Contains(t, external.Message, "human1")
}

func TestPreview_MissingTarget(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	ctx := context.Background()

	_, err := h.engine.PreviewRollback(ctx, ScopePhase, Target{IssueNumber: 7})
	assert.ErrorIs(t, err, ErrMissingTarget)

	_, err = h.engine.PreviewRollback(ctx, Scope("bogus"), Target{})
	assert.ErrorIs(t, err, ErrUnknownScope)
}

func TestExecute_Revert(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)

	result, err := h.engine.ExecuteRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7}, Options{Method: MethodRevert})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Len(t, result.RevertCommits, 3)
	assert.Equal(t, []string{"revert c3", "revert c2", "revert c1"}, h.adapter.mutations,
		"reverts run newest to oldest")
}

func TestExecute_RevertConflict_AbortsAndReportsPartial(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	h.adapter.conflictOn["c2"] = true

	result, err := h.engine.ExecuteRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7}, Options{Method: MethodRevert})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "conflict")
	assert.Len(t, result.RevertCommits, 1, "c3 reverted before the conflict on c2")
	assert.Equal(t, "abort-revert", h.adapter.mutations[len(h.adapter.mutations)-1])
}

func TestExecute_Reset_CreatesBackupFirst(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)

	result, err := h.engine.ExecuteRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7}, Options{Method: MethodReset})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.BackupBranch, "gitundo-backup-"))

	require.Len(t, h.adapter.mutations, 2)
	assert.True(t, strings.HasPrefix(h.adapter.mutations[0], "branch gitundo-backup-"),
		"backup branch must exist before the reset")
	assert.Equal(t, "reset base", h.adapter.mutations[1])
	assert.Equal(t, "base", h.adapter.head)
}

func TestExecute_Reset_PushedCommitsBlock(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	h.adapter.commits["c2"].remotes = []string{"origin/main"}

	result, err := h.engine.ExecuteRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7}, Options{Method: MethodReset})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "pushed")
	assert.Empty(t, h.adapter.mutations, "a blocked reset must leave the repository untouched")
	assert.Equal(t, "c3", h.adapter.head)
}

func TestExecute_Reset_RootCommitFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.adapter.addCommit("root")
	h.track(t, "root", 1, 100)

	result, err := h.engine.ExecuteRollback(context.Background(), ScopePhase, Target{IssueNumber: 7, PhaseNumber: 1}, Options{Method: MethodReset})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "root commit")
	assert.Empty(t, h.adapter.mutations)
}

func TestExecute_Reset_CheckpointTargetsItsCommit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.adapter.addCommit("base")
	h.adapter.addCommit("anchor", "base")

	cp, err := h.checkpoints.Create(ctx, "anchor-point", checkpoint.CreateOptions{})
	require.NoError(t, err)

	h.adapter.addCommit("after1", "anchor")
	h.track(t, "after1", 1, 100)
	h.adapter.addCommit("after2", "after1")

	result, err := h.engine.ExecuteRollback(ctx, ScopeCheckpoint, Target{CheckpointID: cp.ID}, Options{Method: MethodReset})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "anchor", h.adapter.head, "reset lands on the checkpoint commit, not a parent")
}

func TestExecute_Reset_BackupReportedOnFailure(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	// Remove the reset target so HardReset fails after the backup exists.
	delete(h.adapter.commits, "base")

	result, err := h.engine.ExecuteRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7}, Options{Method: MethodReset})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.BackupBranch, "backup branch must be reported even when the reset fails")
}

func TestExecute_DirtyTreeBlocks(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	h.adapter.dirty = true

	result, err := h.engine.ExecuteRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7}, Options{Method: MethodRevert})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "uncommitted")
	assert.Empty(t, h.adapter.mutations)
}

func TestExecute_EmptyScopeFails(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)

	result, err := h.engine.ExecuteRollback(context.Background(), ScopeIssue, Target{IssueNumber: 99}, Options{Method: MethodRevert})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "no commits found for the specified scope", result.Error)
}

func TestExecute_UnknownMethod(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)

	_, err := h.engine.ExecuteRollback(context.Background(), ScopeIssue, Target{IssueNumber: 7}, Options{Method: Method("yolo")})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestEngine_OperationsAreSerialized(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	ctx := context.Background()

	done := make(chan error, 8)

	for range 8 {
		go func() {
			_, err := h.engine.PreviewRollback(ctx, ScopeIssue, Target{IssueNumber: 7})
			done <- err
		}()
	}

	for range 8 {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("preview deadlocked")
		}
	}
}

func TestExecute_ResolvesFresh_NotFromPreview(t *testing.T) {
	t.Parallel()

	h := linearRepo(t)
	ctx := context.Background()
	target := Target{IssueNumber: 7}

	_, err := h.engine.PreviewRollback(ctx, ScopeIssue, target)
	require.NoError(t, err)

	// A commit tracked after the preview must be included by execute.
	c4 := h.adapter.addCommit("c4", "c3")
	c4.statuses = []vcs.FileStatus{{Path: "c.go", StatusCode: "A"}}
	h.track(t, "c4", 2, 400)

	result, err := h.engine.ExecuteRollback(ctx, ScopeIssue, target, Options{Method: MethodRevert})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Len(t, result.RevertCommits, 4)
	assert.Equal(t, "revert c4", h.adapter.mutations[0])
}

var _ vcs.Adapter = (*fakeAdapter)(nil)
