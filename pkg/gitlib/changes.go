package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeStatus classifies how a commit touched one file.
type ChangeStatus string

// File change statuses, matching git name-status letters.
const (
	StatusAdded    ChangeStatus = "A"
	StatusDeleted  ChangeStatus = "D"
	StatusModified ChangeStatus = "M"
	StatusRenamed  ChangeStatus = "R"
)

// FileChange describes one file touched by a commit, with line deltas.
type FileChange struct {
	Path    string
	OldPath string // Differs from Path only for renames.
	Status  ChangeStatus
	Added   int
	Removed int
}

// CommitChanges computes the per-file changes a commit introduced relative
// to its first parent. Root commits are diffed against the empty tree, so
// every file shows as added.
func (r *Repository) CommitChanges(hash Hash) ([]FileChange, error) {
	commit, err := r.LookupCommit(hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	newTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}
	defer newTree.Free()

	var oldTree *git2go.Tree

	if commit.ParentCount() > 0 {
		parent, lookupErr := r.LookupCommit(commit.ParentHashes()[0])
		if lookupErr != nil {
			return nil, lookupErr
		}
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("parent tree: %w", err)
		}
		defer oldTree.Free()
	}

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree, newTree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return nil, fmt.Errorf("diff find options: %w", err)
	}

	err = diff.FindSimilar(&findOpts)
	if err != nil {
		return nil, fmt.Errorf("detect renames: %w", err)
	}

	return collectChanges(diff)
}

// collectChanges walks the diff at line detail, accumulating per-file
// added/removed line counts.
func collectChanges(diff *git2go.Diff) ([]FileChange, error) {
	var changes []FileChange

	err := diff.ForEach(func(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		status, known := deltaStatus(delta.Status)
		if !known {
			// Unhandled delta kinds (unmodified, ignored) carry no hunks.
			return nil, nil
		}

		changes = append(changes, FileChange{
			Path:    delta.NewFile.Path,
			OldPath: delta.OldFile.Path,
			Status:  status,
		})

		current := &changes[len(changes)-1]

		return func(_ git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			return func(line git2go.DiffLine) error {
				switch line.Origin {
				case git2go.DiffLineAddition:
					current.Added++
				case git2go.DiffLineDeletion:
					current.Removed++
				default:
				}

				return nil
			}, nil
		}, nil
	}, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("walk diff: %w", err)
	}

	return changes, nil
}

// deltaStatus maps libgit2 delta kinds to name-status letters.
func deltaStatus(delta git2go.Delta) (ChangeStatus, bool) {
	switch delta {
	case git2go.DeltaAdded, git2go.DeltaCopied:
		return StatusAdded, true
	case git2go.DeltaDeleted:
		return StatusDeleted, true
	case git2go.DeltaModified, git2go.DeltaTypeChange:
		return StatusModified, true
	case git2go.DeltaRenamed:
		return StatusRenamed, true
	default:
		return "", false
	}
}
