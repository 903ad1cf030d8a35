package rollback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tikihq/gitundo/internal/vcs"
)

// backupTimeFormat stamps backup branch names.
const backupTimeFormat = "20060102-150405"

// shortHashLen abbreviates hashes in branch names and messages.
const shortHashLen = 8

// ExecuteRollback re-resolves the commit set for a scope and performs the
// undo. The commit set and all safety conditions are validated fresh;
// a preview from an earlier call is never trusted. Expected failures
// (blocked reset, conflicts, dirty tree) come back in the Result; a
// non-nil error means the request itself was invalid or infrastructure
// failed before any mutation was attempted.
func (e *Engine) ExecuteRollback(ctx context.Context, scope Scope, target Target, opts Options) (*Result, error) {
	ctx, span := e.span(ctx, "rollback.execute")
	defer endSpan(span)

	start := time.Now()

	var result *Result

	err := e.mu.WithLock(ctx, func() error {
		executed, execErr := e.execute(ctx, scope, target, opts)
		if execErr != nil {
			return execErr
		}

		result = executed

		return nil
	})

	e.observe(ctx, "rollback.execute", start, err != nil || (result != nil && !result.Success))

	if err != nil {
		return nil, err
	}

	return result, nil
}

// execute does the work. Callers hold the FIFO lock.
func (e *Engine) execute(ctx context.Context, scope Scope, target Target, opts Options) (*Result, error) {
	commits, err := e.resolveCommits(ctx, scope, target)
	if err != nil {
		return nil, err
	}

	if len(commits) == 0 {
		return &Result{Success: false, Error: reasonNoCommits}, nil
	}

	// Safety gate: re-validate the tree immediately before mutating,
	// never trusting earlier preview data.
	dirty, err := e.adapter.WorkingTreeIsDirty(ctx)
	if err != nil {
		return nil, fmt.Errorf("check working tree: %w", err)
	}

	if dirty {
		return &Result{Success: false, Error: "working tree has uncommitted changes; commit or stash them first"}, nil
	}

	switch opts.Method {
	case MethodRevert:
		return e.executeRevert(ctx, commits), nil
	case MethodReset:
		return e.executeReset(ctx, scope, target, commits)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, opts.Method)
	}
}

// executeRevert reverts the resolved commits newest to oldest, one new
// commit each. A conflict aborts the in-progress revert and fails with a
// message carrying the conflict marker, so callers can branch on it.
func (e *Engine) executeRevert(ctx context.Context, commits []resolvedCommit) *Result {
	created := make([]string, 0, len(commits))

	for _, commit := range commits {
		newHash, err := e.adapter.Revert(ctx, commit.hash)
		if err != nil {
			if errors.Is(err, vcs.ErrConflict) {
				abortErr := e.adapter.AbortRevert(ctx)
				if abortErr != nil {
					e.logger.Warn("revert abort failed", slog.Any("error", abortErr))
				}

				return &Result{
					Success:       false,
					RevertCommits: created,
					Error: fmt.Sprintf("conflict while reverting %s; resolve manually and retry",
						shortHash(commit.hash)),
				}
			}

			return &Result{
				Success:       false,
				RevertCommits: created,
				Error:         fmt.Sprintf("revert %s failed: %v", shortHash(commit.hash), err),
			}
		}

		created = append(created, newHash)

		e.logger.Info("reverted commit",
			slog.String("commit", commit.hash),
			slog.String("revert", newHash),
		)
	}

	return &Result{Success: true, RevertCommits: created}
}

// executeReset discards the resolved commits by moving HEAD backward.
// Pushed commits forbid reset outright. A backup branch is created at the
// pre-reset HEAD first and is reported even when the reset fails.
func (e *Engine) executeReset(ctx context.Context, scope Scope, target Target, commits []resolvedCommit) (*Result, error) {
	pushed, err := e.pushedCommits(ctx, commits)
	if err != nil {
		return nil, err
	}

	if len(pushed) > 0 {
		return &Result{
			Success: false,
			Error: fmt.Sprintf("cannot reset: %d commit(s) already pushed to remote branches (%s); use revert instead",
				len(pushed), strings.Join(pushed, ", ")),
		}, nil
	}

	resetTarget, err := e.resetTarget(ctx, scope, target, commits)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	head, err := e.adapter.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD for backup: %w", err)
	}

	backupName := fmt.Sprintf("%s-%s-%s", e.backupPrefix, time.Now().UTC().Format(backupTimeFormat), shortHash(head))

	err = e.adapter.CreateBranch(ctx, backupName)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("create backup branch: %v", err)}, nil
	}

	e.logger.Info("backup branch created",
		slog.String("branch", backupName),
		slog.String("head", head),
	)

	err = e.adapter.HardReset(ctx, resetTarget)
	if err != nil {
		// The backup branch is still reported so the user can recover.
		return &Result{
			Success:      false,
			BackupBranch: backupName,
			Error:        fmt.Sprintf("hard reset to %s failed: %v", shortHash(resetTarget), err),
		}, nil
	}

	e.logger.Info("rollback reset complete",
		slog.String("target", resetTarget),
		slog.String("backup", backupName),
	)

	return &Result{Success: true, BackupBranch: backupName}, nil
}

// resetTarget returns where the reset moves HEAD: the checkpoint's commit
// for checkpoint scope, otherwise the parent of the oldest resolved
// commit.
func (e *Engine) resetTarget(ctx context.Context, scope Scope, target Target, commits []resolvedCommit) (string, error) {
	if scope == ScopeCheckpoint {
		cp, err := e.checkpointTarget(ctx, target)
		if err != nil {
			return "", err
		}

		return cp.CommitHash, nil
	}

	oldest := commits[len(commits)-1].hash

	parents, err := e.adapter.ParentHashesOf(ctx, oldest)
	if err != nil {
		return "", fmt.Errorf("parent hashes of %s: %w", oldest, err)
	}

	if len(parents) == 0 {
		return "", fmt.Errorf("%w: %s is a root commit, reset cannot go past it", vcs.ErrNoParent, shortHash(oldest))
	}

	return parents[0], nil
}

// shortHash abbreviates a hash for messages, tolerating fake short hashes
// in tests.
func shortHash(hash string) string {
	if len(hash) <= shortHashLen {
		return hash
	}

	return hash[:shortHashLen]
}
