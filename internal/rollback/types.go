// Package rollback resolves, previews, and executes undo operations over
// commits recorded in the provenance store or anchored by checkpoints.
// Previews are computed fresh on every call; execution re-resolves and
// re-validates instead of trusting a previously returned preview, because
// the repository may have changed in between.
package rollback

import "errors"

// Scope selects which commits a rollback covers.
type Scope string

// Rollback scopes.
const (
	// ScopePhase covers the tracked commits of one phase of one issue.
	ScopePhase Scope = "phase"

	// ScopeIssue covers all tracked commits of one issue.
	ScopeIssue Scope = "issue"

	// ScopeCheckpoint covers everything between a checkpoint's commit and
	// the current tip, including commits the agent did not produce.
	ScopeCheckpoint Scope = "checkpoint"
)

// Method selects how a rollback is executed.
type Method string

// Rollback methods.
const (
	// MethodRevert creates one inverse commit per resolved commit,
	// preserving history.
	MethodRevert Method = "revert"

	// MethodReset moves the branch pointer backward, discarding the
	// resolved commits. A backup branch is created first.
	MethodReset Method = "reset"
)

// Target identifies what a scope applies to. Exactly the fields the scope
// requires must be set.
type Target struct {
	IssueNumber  int    `json:"issueNumber,omitempty"`
	PhaseNumber  int    `json:"phaseNumber,omitempty"`
	CheckpointID string `json:"checkpointId,omitempty"`
}

// Input validation errors.
var (
	ErrUnknownScope  = errors.New("unknown rollback scope")
	ErrUnknownMethod = errors.New("unknown rollback method")
	ErrMissingTarget = errors.New("scope target is incomplete")
)

// reasonNoCommits is the blocking reason for an empty resolved commit set.
const reasonNoCommits = "no commits found for the specified scope"

// WarningKind classifies a preview warning.
type WarningKind string

// Preview warning kinds.
const (
	// WarningPushed fires when a resolved commit is reachable from a
	// remote-tracking branch. Blocks the reset path entirely.
	WarningPushed WarningKind = "pushed"

	// WarningMergeCommit fires when a resolved commit has more than one
	// parent.
	WarningMergeCommit WarningKind = "merge_commit"

	// WarningExternalCommits fires when the commit range contains hashes
	// the provenance store does not know about.
	WarningExternalCommits WarningKind = "external_commits"

	// WarningConflicts fires when a dry-run of the newest commit's
	// inverse hits conflicts.
	WarningConflicts WarningKind = "conflicts"

	// WarningDirtyWorkingTree fires on any uncommitted change. The only
	// warning that blocks a preview's CanRollback.
	WarningDirtyWorkingTree WarningKind = "dirty_working_tree"
)

// Severity grades a warning.
type Severity string

// Warning severities.
const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Warning is one classified risk surfaced by a preview.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
}

// PostRollbackState describes what happens to a file if the rollback runs.
type PostRollbackState string

// Post-rollback file states: added files get deleted, deleted files come
// back, modified and renamed files change content.
const (
	StateRestored PostRollbackState = "restored"
	StateDeleted  PostRollbackState = "deleted"
	StateModified PostRollbackState = "modified"
)

// FileImpact is the preview's per-file change summary.
type FileImpact struct {
	Path         string            `json:"path"`
	StatusCode   string            `json:"statusCode"`
	PostState    PostRollbackState `json:"postState"`
	AddedLines   int               `json:"addedLines"`
	RemovedLines int               `json:"removedLines"`
}

// Preview is the computed rollback plan. Transient: never cached across
// calls.
type Preview struct {
	Scope          Scope        `json:"scope"`
	Target         Target       `json:"target"`
	Commits        []string     `json:"commits"` // Newest first.
	Files          []FileImpact `json:"files"`
	AddedLines     int          `json:"addedLines"`
	RemovedLines   int          `json:"removedLines"`
	Warnings       []Warning    `json:"warnings"`
	CanRollback    bool         `json:"canRollback"`
	BlockedReasons []string     `json:"blockedReasons"`
}

// HasWarning reports whether the preview carries a warning of the given
// kind.
func (p *Preview) HasWarning(kind WarningKind) bool {
	for _, w := range p.Warnings {
		if w.Kind == kind {
			return true
		}
	}

	return false
}

// Options configures an execution request.
type Options struct {
	Method Method `json:"method"`
}

// Result describes what an execution changed. Expected failures (blocked
// reset, conflicts) are reported here, not as Go errors, so callers always
// get a renderable outcome.
type Result struct {
	Success bool `json:"success"`

	// RevertCommits lists the new commits created by the revert path, in
	// creation order. On a conflict failure it holds the reverts that
	// completed before the conflict.
	RevertCommits []string `json:"revertCommits,omitempty"`

	// BackupBranch is the branch created before a reset. Reported even
	// when the reset itself failed, so recovery is always possible.
	BackupBranch string `json:"backupBranch,omitempty"`

	// Error is the failure description for Success == false.
	Error string `json:"error,omitempty"`
}
