package rollback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tikihq/gitundo/internal/vcs"
)

// classifyWarnings runs the independent risk checks over the resolved
// commit set. Any subset may fire. The dirty-tree check runs first
// because the conflict dry-run needs a clean tree to restore.
func (e *Engine) classifyWarnings(ctx context.Context, commits []resolvedCommit, preview *Preview) error {
	dirty, err := e.adapter.WorkingTreeIsDirty(ctx)
	if err != nil {
		return fmt.Errorf("check working tree: %w", err)
	}

	if dirty {
		preview.Warnings = append(preview.Warnings, Warning{
			Kind:     WarningDirtyWorkingTree,
			Severity: SeverityHigh,
			Message:  "the working tree has uncommitted changes; commit or stash them first",
		})
	}

	err = e.checkPushed(ctx, commits, preview)
	if err != nil {
		return err
	}

	err = e.checkMergeCommits(ctx, commits, preview)
	if err != nil {
		return err
	}

	err = e.checkExternalCommits(ctx, commits, preview)
	if err != nil {
		return err
	}

	if !dirty {
		err = e.checkConflicts(ctx, commits, preview)
		if err != nil {
			return err
		}
	}

	return nil
}

// checkPushed flags commits reachable from remote-tracking branches. The
// reset path refuses these outright; revert remains available.
func (e *Engine) checkPushed(ctx context.Context, commits []resolvedCommit, preview *Preview) error {
	pushed, err := e.pushedCommits(ctx, commits)
	if err != nil {
		return err
	}

	if len(pushed) == 0 {
		return nil
	}

	preview.Warnings = append(preview.Warnings, Warning{
		Kind:     WarningPushed,
		Severity: SeverityHigh,
		Message: fmt.Sprintf("%d commit(s) already pushed to remote branches; reset is blocked, use revert: %s",
			len(pushed), strings.Join(pushed, ", ")),
	})

	return nil
}

// pushedCommits returns the resolved hashes reachable from any
// remote-tracking branch.
func (e *Engine) pushedCommits(ctx context.Context, commits []resolvedCommit) ([]string, error) {
	var pushed []string

	for _, commit := range commits {
		branches, err := e.adapter.RemoteBranchesContaining(ctx, commit.hash)
		if err != nil {
			return nil, fmt.Errorf("remote branches containing %s: %w", commit.hash, err)
		}

		if len(branches) > 0 {
			pushed = append(pushed, commit.hash)
		}
	}

	return pushed, nil
}

// checkMergeCommits flags merges by live parent count. The persisted
// IsMergeCommit flag is only a hint; the repository is the authority.
func (e *Engine) checkMergeCommits(ctx context.Context, commits []resolvedCommit, preview *Preview) error {
	var merges []string

	for _, commit := range commits {
		parents, err := e.adapter.ParentHashesOf(ctx, commit.hash)
		if err != nil {
			return fmt.Errorf("parent hashes of %s: %w", commit.hash, err)
		}

		if len(parents) > 1 {
			merges = append(merges, commit.hash)
		}
	}

	if len(merges) == 0 {
		return nil
	}

	preview.Warnings = append(preview.Warnings, Warning{
		Kind:     WarningMergeCommit,
		Severity: SeverityMedium,
		Message: fmt.Sprintf("%d merge commit(s) in scope; rolling back merges needs manual confirmation: %s",
			len(merges), strings.Join(merges, ", ")),
	})

	return nil
}

// checkExternalCommits walks the full range from the oldest resolved
// commit's parent to the newest resolved commit, flagging hashes the
// provenance store has never seen. The resolved set is not consulted:
// checkpoint scope resolves untracked commits too, and those are exactly
// the ones to warn about.
func (e *Engine) checkExternalCommits(ctx context.Context, commits []resolvedCommit, preview *Preview) error {
	newest := commits[0].hash
	oldest := commits[len(commits)-1].hash

	fromRef := ""

	parents, err := e.adapter.ParentHashesOf(ctx, oldest)
	if err != nil {
		return fmt.Errorf("parent hashes of %s: %w", oldest, err)
	}

	if len(parents) > 0 {
		fromRef = parents[0]
	}

	rangeHashes, err := e.adapter.LogRange(ctx, fromRef, newest)
	if err != nil {
		return fmt.Errorf("log range for external check: %w", err)
	}

	records, err := e.store.Load(ctx)
	if err != nil {
		return err
	}

	tracked := make(map[string]struct{}, len(records))
	for i := range records {
		tracked[records[i].CommitHash] = struct{}{}
	}

	var external []string

	for _, hash := range rangeHashes {
		if _, inStore := tracked[hash]; !inStore {
			external = append(external, hash)
		}
	}

	if len(external) == 0 {
		return nil
	}

	preview.Warnings = append(preview.Warnings, Warning{
		Kind:     WarningExternalCommits,
		Severity: SeverityMedium,
		Message: fmt.Sprintf("%d commit(s) in range were not produced by the agent: %s",
			len(external), strings.Join(external, ", ")),
	})

	return nil
}

// checkConflicts dry-runs the inverse of the newest commit. The adapter
// restores the working tree regardless of outcome.
func (e *Engine) checkConflicts(ctx context.Context, commits []resolvedCommit, preview *Preview) error {
	err := e.adapter.DryRunCherryPick(ctx, commits[0].hash)
	if err == nil {
		return nil
	}

	if !errors.Is(err, vcs.ErrConflict) {
		return fmt.Errorf("conflict dry-run: %w", err)
	}

	preview.Warnings = append(preview.Warnings, Warning{
		Kind:     WarningConflicts,
		Severity: SeverityMedium,
		Message:  "reverting the newest commit would conflict; manual resolution will be required",
	})

	return nil
}
