package gitlib

import (
	"errors"
	"fmt"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository for read-only queries.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit hash HEAD points at.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// CommitExists reports whether the hash resolves to a commit object.
// Rebased-away commits stop resolving once they are garbage collected or
// the ref that held them moves on.
func (r *Repository) CommitExists(hash Hash) bool {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return false
	}

	commit.Free()

	return true
}

// ResolveRef resolves a revision spec ("HEAD", a branch name, a hash) to a
// commit hash.
func (r *Repository) ResolveRef(spec string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(spec)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %q: %w", spec, err)
	}
	defer obj.Free()

	return HashFromOid(obj.Id()), nil
}

// LogRange returns the hashes reachable from toRef but not fromRef,
// newest first. An empty fromRef walks the full history of toRef.
func (r *Repository) LogRange(fromRef, toRef string) ([]Hash, error) {
	toHash, err := r.ResolveRef(toRef)
	if err != nil {
		return nil, err
	}

	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	err = walk.Push(toHash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("push %q to revwalk: %w", toRef, err)
	}

	if fromRef != "" {
		fromHash, resolveErr := r.ResolveRef(fromRef)
		if resolveErr != nil {
			return nil, resolveErr
		}

		err = walk.Hide(fromHash.ToOid())
		if err != nil {
			return nil, fmt.Errorf("hide %q from revwalk: %w", fromRef, err)
		}
	}

	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	var hashes []Hash

	for {
		oid := new(git2go.Oid)

		err = walk.Next(oid)
		if err != nil {
			if git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
				return hashes, nil
			}

			return nil, fmt.Errorf("walk commits: %w", err)
		}

		hashes = append(hashes, HashFromOid(oid))
	}
}

// RemoteBranchesContaining returns the names of remote-tracking branches
// from which the given commit is reachable.
func (r *Repository) RemoteBranchesContaining(hash Hash) ([]string, error) {
	iter, err := r.repo.NewBranchIterator(git2go.BranchRemote)
	if err != nil {
		return nil, fmt.Errorf("list remote branches: %w", err)
	}
	defer iter.Free()

	var names []string

	err = iter.ForEach(func(branch *git2go.Branch, _ git2go.BranchType) error {
		target := branch.Target()
		if target == nil {
			return nil
		}

		name, nameErr := branch.Name()
		if nameErr != nil {
			return fmt.Errorf("branch name: %w", nameErr)
		}

		if target.Equal(hash.ToOid()) {
			names = append(names, name)

			return nil
		}

		reachable, descErr := r.repo.DescendantOf(target, hash.ToOid())
		if descErr != nil {
			return fmt.Errorf("descendant check for %s: %w", name, descErr)
		}

		if reachable {
			names = append(names, name)
		}

		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) && !git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
		return nil, err
	}

	return names, nil
}

// WorkingTreeIsDirty reports whether the working tree or index has any
// uncommitted change, including untracked files.
func (r *Repository) WorkingTreeIsDirty() (bool, error) {
	opts := &git2go.StatusOptions{
		Show:  git2go.StatusShowIndexAndWorkdir,
		Flags: git2go.StatusOptIncludeUntracked,
	}

	statusList, err := r.repo.StatusList(opts)
	if err != nil {
		return false, fmt.Errorf("repository status: %w", err)
	}
	defer statusList.Free()

	count, err := statusList.EntryCount()
	if err != nil {
		return false, fmt.Errorf("status entry count: %w", err)
	}

	return count > 0, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}
