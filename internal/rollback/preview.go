package rollback

import (
	"context"
	"time"
)

// PreviewRollback resolves the commit set for a scope and computes the
// rollback plan: per-file impact, aggregate line deltas, and classified
// warnings. Previews have no side effects on the repository beyond the
// self-restoring conflict dry-run, and are never cached.
func (e *Engine) PreviewRollback(ctx context.Context, scope Scope, target Target) (*Preview, error) {
	ctx, span := e.span(ctx, "rollback.preview")
	defer endSpan(span)

	start := time.Now()

	var preview *Preview

	err := e.mu.WithLock(ctx, func() error {
		built, buildErr := e.buildPreview(ctx, scope, target)
		if buildErr != nil {
			return buildErr
		}

		preview = built

		return nil
	})

	e.observe(ctx, "rollback.preview", start, err != nil)

	if err != nil {
		return nil, err
	}

	return preview, nil
}

// buildPreview does the preview work. Callers hold the FIFO lock.
func (e *Engine) buildPreview(ctx context.Context, scope Scope, target Target) (*Preview, error) {
	preview := &Preview{
		Scope:          scope,
		Target:         target,
		Commits:        []string{},
		Files:          []FileImpact{},
		Warnings:       []Warning{},
		BlockedReasons: []string{},
	}

	commits, err := e.resolveCommits(ctx, scope, target)
	if err != nil {
		return nil, err
	}

	if len(commits) == 0 {
		preview.CanRollback = false
		preview.BlockedReasons = append(preview.BlockedReasons, reasonNoCommits)

		return preview, nil
	}

	for _, commit := range commits {
		preview.Commits = append(preview.Commits, commit.hash)
	}

	err = e.collectImpact(ctx, commits, preview)
	if err != nil {
		return nil, err
	}

	err = e.classifyWarnings(ctx, commits, preview)
	if err != nil {
		return nil, err
	}

	preview.CanRollback = !preview.HasWarning(WarningDirtyWorkingTree)

	if !preview.CanRollback {
		preview.BlockedReasons = append(preview.BlockedReasons, "working tree has uncommitted changes")
	}

	return preview, nil
}

// collectImpact aggregates per-file changes and line deltas across the
// resolved commits. Commits are folded oldest to newest so the final
// status per path reflects the net change; the post-rollback state
// inverts that status.
func (e *Engine) collectImpact(ctx context.Context, commits []resolvedCommit, preview *Preview) error {
	type fileAgg struct {
		status  string
		added   int
		removed int
	}

	byPath := make(map[string]*fileAgg)

	order := make([]string, 0)

	for i := len(commits) - 1; i >= 0; i-- {
		hash := commits[i].hash

		statuses, err := e.adapter.NameStatus(ctx, hash)
		if err != nil {
			return err
		}

		stats, err := e.adapter.DiffStat(ctx, hash)
		if err != nil {
			return err
		}

		lines := make(map[string]fileAgg, len(stats))
		for _, stat := range stats {
			lines[stat.Path] = fileAgg{added: stat.AddedLines, removed: stat.RemovedLines}

			preview.AddedLines += stat.AddedLines
			preview.RemovedLines += stat.RemovedLines
		}

		for _, st := range statuses {
			agg, seen := byPath[st.Path]
			if !seen {
				agg = &fileAgg{status: st.StatusCode}
				byPath[st.Path] = agg

				order = append(order, st.Path)
			} else if agg.status != "A" || st.StatusCode == "D" {
				// A file added inside the rollback range stays "added"
				// unless a later commit deleted it again.
				agg.status = st.StatusCode
			}

			agg.added += lines[st.Path].added
			agg.removed += lines[st.Path].removed
		}
	}

	for _, path := range order {
		agg := byPath[path]

		preview.Files = append(preview.Files, FileImpact{
			Path:         path,
			StatusCode:   agg.status,
			PostState:    invertStatus(agg.status),
			AddedLines:   agg.added,
			RemovedLines: agg.removed,
		})
	}

	return nil
}

// invertStatus maps what a commit did to a file onto what the rollback
// will do to it: added files get deleted, deleted files are restored,
// modified and renamed files are modified.
func invertStatus(statusCode string) PostRollbackState {
	switch statusCode {
	case "A":
		return StateDeleted
	case "D":
		return StateRestored
	default:
		return StateModified
	}
}
