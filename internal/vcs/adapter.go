// Package vcs is the version-control boundary of the rollback engine. Reads
// go through libgit2 (pkg/gitlib); mutations and anything that touches the
// sequencer shell out to the git CLI with a per-operation timeout, because
// revert and cherry-pick conflict semantics match the CLI exactly.
package vcs

import (
	"context"
	"errors"
)

// ErrConflict reports that applying or inverting a commit hit merge
// conflicts. Callers branch on this to offer manual-resolution guidance.
var ErrConflict = errors.New("conflict")

// ErrNoParent reports an attempt to resolve the parent of a root commit.
var ErrNoParent = errors.New("commit has no parent")

// FileStat is the line delta one commit introduced to one file.
type FileStat struct {
	Path         string
	AddedLines   int
	RemovedLines int
}

// FileStatus is the name-status classification of one file in a commit.
type FileStatus struct {
	Path       string
	StatusCode string // A, D, M, or R per git name-status.
}

// Adapter executes queries and mutations against the tracked repository.
// Implementations must be safe for sequential use; serialization across
// callers is the engine's job, not the adapter's.
type Adapter interface {
	// Head returns the commit hash HEAD points at.
	Head(ctx context.Context) (string, error)

	// CommitExists reports whether the hash still resolves to a commit.
	CommitExists(ctx context.Context, hash string) (bool, error)

	// ParentHashesOf returns the parent hashes of a commit in order.
	ParentHashesOf(ctx context.Context, hash string) ([]string, error)

	// LogRange returns hashes reachable from toRef but not fromRef, newest
	// first. Empty fromRef walks the full history.
	LogRange(ctx context.Context, fromRef, toRef string) ([]string, error)

	// DiffStat returns per-file line deltas for a commit.
	DiffStat(ctx context.Context, hash string) ([]FileStat, error)

	// NameStatus returns per-file change classifications for a commit.
	NameStatus(ctx context.Context, hash string) ([]FileStatus, error)

	// RemoteBranchesContaining returns remote-tracking branches from which
	// the commit is reachable.
	RemoteBranchesContaining(ctx context.Context, hash string) ([]string, error)

	// WorkingTreeIsDirty reports any uncommitted change, including
	// untracked files.
	WorkingTreeIsDirty(ctx context.Context) (bool, error)

	// Revert creates a new commit applying the inverse of the given commit
	// and returns its hash. Returns ErrConflict when the inverse does not
	// apply cleanly; the sequencer is left in progress for AbortRevert.
	Revert(ctx context.Context, hash string) (string, error)

	// AbortRevert aborts an in-progress revert, restoring the pre-revert
	// working tree.
	AbortRevert(ctx context.Context) error

	// HardReset moves HEAD and the working tree to the target commit.
	HardReset(ctx context.Context, target string) error

	// CreateBranch creates a branch at current HEAD.
	CreateBranch(ctx context.Context, name string) error

	// DryRunCherryPick probes whether the inverse of the commit applies
	// cleanly, restoring the working tree afterward regardless of outcome.
	// Returns ErrConflict on conflicts, nil on a clean apply. The working
	// tree must be clean before the call.
	DryRunCherryPick(ctx context.Context, hash string) error
}
