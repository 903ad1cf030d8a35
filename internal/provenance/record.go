// Package provenance is the durable record of which commits the agent
// produced, keyed by issue and phase. The store is an append-only ordered
// sequence persisted as one JSON document per project; the whole collection
// is rewritten atomically on save, records are never mutated in place.
package provenance

import (
	"errors"
	"fmt"
)

// Source classifies where a tracked commit came from.
type Source string

// Provenance classifications.
const (
	SourceAgent    Source = "agent"
	SourceExternal Source = "external"
	SourceUnknown  Source = "unknown"
)

// Record validation errors.
var (
	ErrEmptyHash     = errors.New("commit hash is required")
	ErrMissingIssue  = errors.New("issue number is required")
	ErrInvalidSource = errors.New("invalid source")
	ErrDuplicateHash = errors.New("commit hash already tracked")
	ErrCorruptStore  = errors.New("provenance store is corrupt")
)

// CommitRecord is one tracked commit. Immutable once appended.
type CommitRecord struct {
	// CommitHash is the unique commit identifier.
	CommitHash string `json:"commitHash"`

	// IssueNumber identifies the unit of work that produced the commit.
	IssueNumber int `json:"issueNumber"`

	// PhaseNumber is the optional sub-unit within the issue.
	PhaseNumber *int `json:"phaseNumber,omitempty"`

	// Timestamp is the creation time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Message is the commit summary.
	Message string `json:"message"`

	// Source is the provenance classification.
	Source Source `json:"source"`

	// ParentHashes lists parent commit identifiers in order. Empty for
	// root commits, two or more for merges.
	ParentHashes []string `json:"parentHashes"`

	// IsMergeCommit is derived from ParentHashes at track time. It is a
	// hint: destructive paths re-query the live parent count instead.
	IsMergeCommit bool `json:"isMergeCommit"`
}

// Validate checks the record's required fields.
func (r *CommitRecord) Validate() error {
	if r.CommitHash == "" {
		return ErrEmptyHash
	}

	if r.IssueNumber <= 0 {
		return fmt.Errorf("%w: got %d", ErrMissingIssue, r.IssueNumber)
	}

	switch r.Source {
	case SourceAgent, SourceExternal, SourceUnknown:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSource, r.Source)
	}
}

// ValidationResult reports which tracked commits still exist in the
// repository.
type ValidationResult struct {
	// Valid is true when every checked record's commit still resolves.
	Valid bool `json:"valid"`

	// MissingCommits lists hashes that no longer resolve, e.g. after a
	// rebase rewrote them away.
	MissingCommits []string `json:"missingCommits"`
}
