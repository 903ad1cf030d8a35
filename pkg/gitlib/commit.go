package gitlib

import (
	"strings"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Message returns the full commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// Summary returns the first line of the commit message.
func (c *Commit) Summary() string {
	message := c.commit.Message()
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return message[:idx]
	}

	return message
}

// When returns the author timestamp.
func (c *Commit) When() time.Time {
	return c.commit.Author().When
}

// ParentCount returns the number of parent commits. Merge commits have
// more than one parent.
func (c *Commit) ParentCount() int {
	return int(c.commit.ParentCount())
}

// ParentHashes returns the hashes of all parents in order. Root commits
// return an empty slice.
func (c *Commit) ParentHashes() []Hash {
	count := c.commit.ParentCount()

	hashes := make([]Hash, 0, count)
	for i := uint(0); i < count; i++ {
		hashes = append(hashes, HashFromOid(c.commit.ParentId(i)))
	}

	return hashes
}

// Tree returns the tree of this commit. The caller must Free it.
func (c *Commit) Tree() (*git2go.Tree, error) {
	return c.commit.Tree()
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}
