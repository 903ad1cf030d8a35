package vcs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tikihq/gitundo/pkg/gitlib"
)

// Git implements Adapter against a local repository.
type Git struct {
	repo   *gitlib.Repository
	runner *Runner
	logger *slog.Logger
}

// Compile-time interface check.
var _ Adapter = (*Git)(nil)

// Open opens the repository at path and builds the adapter around it.
func Open(path string, opts RunnerOptions) (*Git, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Git{
		repo:   repo,
		runner: NewRunner(path, opts),
		logger: logger,
	}, nil
}

// Close releases the underlying repository handle.
func (g *Git) Close() {
	g.repo.Free()
}

// Head returns the commit hash HEAD points at.
func (g *Git) Head(_ context.Context) (string, error) {
	head, err := g.repo.Head()
	if err != nil {
		return "", err
	}

	return head.String(), nil
}

// CommitExists reports whether the hash still resolves to a commit.
func (g *Git) CommitExists(_ context.Context, hash string) (bool, error) {
	parsed, err := gitlib.ParseHash(hash)
	if err != nil {
		return false, err
	}

	return g.repo.CommitExists(parsed), nil
}

// ParentHashesOf returns the parent hashes of a commit in order. This is
// the authoritative merge-commit check: more than one parent means merge.
func (g *Git) ParentHashesOf(_ context.Context, hash string) ([]string, error) {
	parsed, err := gitlib.ParseHash(hash)
	if err != nil {
		return nil, err
	}

	commit, err := g.repo.LookupCommit(parsed)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	parents := commit.ParentHashes()

	hashes := make([]string, 0, len(parents))
	for _, parent := range parents {
		hashes = append(hashes, parent.String())
	}

	return hashes, nil
}

// LogRange returns hashes reachable from toRef but not fromRef, newest first.
func (g *Git) LogRange(_ context.Context, fromRef, toRef string) ([]string, error) {
	hashes, err := g.repo.LogRange(fromRef, toRef)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, h.String())
	}

	return out, nil
}

// DiffStat returns per-file line deltas for a commit.
func (g *Git) DiffStat(_ context.Context, hash string) ([]FileStat, error) {
	changes, err := g.commitChanges(hash)
	if err != nil {
		return nil, err
	}

	stats := make([]FileStat, 0, len(changes))
	for _, change := range changes {
		stats = append(stats, FileStat{
			Path:         change.Path,
			AddedLines:   change.Added,
			RemovedLines: change.Removed,
		})
	}

	return stats, nil
}

// NameStatus returns per-file change classifications for a commit.
func (g *Git) NameStatus(_ context.Context, hash string) ([]FileStatus, error) {
	changes, err := g.commitChanges(hash)
	if err != nil {
		return nil, err
	}

	statuses := make([]FileStatus, 0, len(changes))
	for _, change := range changes {
		statuses = append(statuses, FileStatus{
			Path:       change.Path,
			StatusCode: string(change.Status),
		})
	}

	return statuses, nil
}

func (g *Git) commitChanges(hash string) ([]gitlib.FileChange, error) {
	parsed, err := gitlib.ParseHash(hash)
	if err != nil {
		return nil, err
	}

	return g.repo.CommitChanges(parsed)
}

// RemoteBranchesContaining returns remote-tracking branches from which the
// commit is reachable.
func (g *Git) RemoteBranchesContaining(_ context.Context, hash string) ([]string, error) {
	parsed, err := gitlib.ParseHash(hash)
	if err != nil {
		return nil, err
	}

	return g.repo.RemoteBranchesContaining(parsed)
}

// WorkingTreeIsDirty reports any uncommitted change, including untracked
// files.
func (g *Git) WorkingTreeIsDirty(_ context.Context) (bool, error) {
	return g.repo.WorkingTreeIsDirty()
}

// Revert creates a new commit applying the inverse of the given commit.
// On conflict the sequencer is left in progress; the caller decides
// between AbortRevert and manual resolution.
func (g *Git) Revert(ctx context.Context, hash string) (string, error) {
	out, err := g.runner.Run(ctx, "revert", "--no-edit", hash)
	if err != nil {
		if isConflictOutput(out) {
			return "", fmt.Errorf("revert %s: %w", hash, ErrConflict)
		}

		return "", err
	}

	newHead, err := g.Head(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve revert commit: %w", err)
	}

	return newHead, nil
}

// AbortRevert aborts an in-progress revert, restoring the pre-revert
// working tree.
func (g *Git) AbortRevert(ctx context.Context) error {
	_, err := g.runner.Run(ctx, "revert", "--abort")

	return err
}

// HardReset moves HEAD and the working tree to the target commit.
func (g *Git) HardReset(ctx context.Context, target string) error {
	_, err := g.runner.Run(ctx, "reset", "--hard", target)

	return err
}

// CreateBranch creates a branch at current HEAD.
func (g *Git) CreateBranch(ctx context.Context, name string) error {
	_, err := g.runner.Run(ctx, "branch", name)

	return err
}

// DryRunCherryPick probes whether the inverse of the commit applies
// cleanly. The revert is staged without committing and then aborted, so
// the working tree is byte-identical afterward either way. The caller must
// ensure the tree is clean first; the abort discards staged state.
func (g *Git) DryRunCherryPick(ctx context.Context, hash string) error {
	out, applyErr := g.runner.Run(ctx, "revert", "--no-commit", hash)

	_, abortErr := g.runner.Run(ctx, "revert", "--abort")
	if abortErr != nil {
		// The sequencer may be gone already (e.g. empty revert). Fall back
		// to restoring the tree directly.
		_, resetErr := g.runner.Run(ctx, "reset", "--hard", "HEAD")
		if resetErr != nil {
			g.logger.Warn("dry-run cleanup failed", slog.String("hash", hash), slog.Any("error", resetErr))
		}
	}

	if applyErr != nil {
		if isConflictOutput(out) {
			return fmt.Errorf("dry-run revert of %s: %w", hash, ErrConflict)
		}

		return applyErr
	}

	return nil
}
