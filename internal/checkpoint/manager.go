// Package checkpoint manages named rollback anchors: a user-supplied label
// pointing at the commit that was HEAD when the checkpoint was created.
// Checkpoints are persisted as one JSON document per project, alongside the
// provenance store.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tikihq/gitundo/internal/vcs"
	"github.com/tikihq/gitundo/pkg/fifo"
	"github.com/tikihq/gitundo/pkg/persist"
)

// storeBasename is the document name inside the project state directory.
const storeBasename = "checkpoints"

// Lookup errors. ErrCommitMissing is distinct from ErrNotFound: the
// checkpoint record exists, but its commit was rebased away.
var (
	ErrNotFound      = errors.New("checkpoint not found")
	ErrCommitMissing = errors.New("checkpoint commit no longer exists")
	ErrEmptyName     = errors.New("checkpoint name is required")
)

// Checkpoint is a named snapshot of the repository at creation time.
type Checkpoint struct {
	// ID is the generated unique identifier.
	ID string `json:"id"`

	// Name is the user-supplied label.
	Name string `json:"name"`

	// CommitHash is the HEAD commit at creation time. It may later become
	// unreachable in the repository; Resolve detects that.
	CommitHash string `json:"commitHash"`

	// IssueNumber is an optional association with a unit of work.
	IssueNumber *int `json:"issueNumber,omitempty"`

	// CreatedAt is the creation time.
	CreatedAt time.Time `json:"createdAt"`

	// Description is optional free text.
	Description string `json:"description,omitempty"`
}

// document is the persisted shape of the checkpoint collection.
type document struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// Manager owns the checkpoint document for one project.
type Manager struct {
	doc     *persist.Document[document]
	adapter vcs.Adapter
	logger  *slog.Logger
	mu      fifo.Mutex
}

// NewManager creates a manager persisted under dir, using adapter to
// verify commit existence on resolve.
func NewManager(dir string, adapter vcs.Adapter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		doc:     persist.NewDocument[document](dir, storeBasename, persist.NewJSONCodec()),
		adapter: adapter,
		logger:  logger,
	}
}

// CreateOptions carries the optional fields of a new checkpoint.
type CreateOptions struct {
	IssueNumber *int
	Description string
}

// Create captures current HEAD under the given name and returns the new
// checkpoint.
func (m *Manager) Create(ctx context.Context, name string, opts CreateOptions) (Checkpoint, error) {
	if name == "" {
		return Checkpoint{}, ErrEmptyName
	}

	head, err := m.adapter.Head(ctx)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("capture HEAD: %w", err)
	}

	cp := Checkpoint{
		ID:          uuid.NewString(),
		Name:        name,
		CommitHash:  head,
		IssueNumber: opts.IssueNumber,
		CreatedAt:   time.Now().UTC(),
		Description: opts.Description,
	}

	err = m.mu.WithLock(ctx, func() error {
		checkpoints, loadErr := m.load()
		if loadErr != nil {
			return loadErr
		}

		checkpoints = append(checkpoints, cp)

		return m.save(checkpoints)
	})
	if err != nil {
		return Checkpoint{}, err
	}

	m.logger.Info("checkpoint created",
		slog.String("id", cp.ID),
		slog.String("name", cp.Name),
		slog.String("commit", cp.CommitHash),
	)

	return cp, nil
}

// List returns all checkpoints in creation order.
func (m *Manager) List(ctx context.Context) ([]Checkpoint, error) {
	var checkpoints []Checkpoint

	err := m.mu.WithLock(ctx, func() error {
		loaded, loadErr := m.load()
		if loadErr != nil {
			return loadErr
		}

		checkpoints = loaded

		return nil
	})
	if err != nil {
		return nil, err
	}

	return checkpoints, nil
}

// Delete removes one checkpoint by id, reporting whether it existed.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	existed := false

	err := m.mu.WithLock(ctx, func() error {
		checkpoints, loadErr := m.load()
		if loadErr != nil {
			return loadErr
		}

		kept := checkpoints[:0]

		for _, cp := range checkpoints {
			if cp.ID == id {
				existed = true

				continue
			}

			kept = append(kept, cp)
		}

		if !existed {
			return nil
		}

		return m.save(kept)
	})
	if err != nil {
		return false, err
	}

	return existed, nil
}

// Resolve returns the checkpoint with the given id and verifies its commit
// still exists. A missing record is ErrNotFound; a record whose commit was
// rebased away is ErrCommitMissing.
func (m *Manager) Resolve(ctx context.Context, id string) (Checkpoint, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return Checkpoint{}, err
	}

	for _, cp := range checkpoints {
		if cp.ID != id {
			continue
		}

		exists, existsErr := m.adapter.CommitExists(ctx, cp.CommitHash)
		if existsErr != nil {
			return Checkpoint{}, fmt.Errorf("check checkpoint commit: %w", existsErr)
		}

		if !exists {
			return cp, fmt.Errorf("%w: %s at %s", ErrCommitMissing, cp.Name, cp.CommitHash)
		}

		return cp, nil
	}

	return Checkpoint{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// load reads the document without locking. Callers hold the FIFO lock.
func (m *Manager) load() ([]Checkpoint, error) {
	var state document

	err := m.doc.Load(&state)
	if err != nil {
		if errors.Is(err, persist.ErrNotExist) {
			return []Checkpoint{}, nil
		}

		return nil, err
	}

	return state.Checkpoints, nil
}

// save writes the document without locking. Callers hold the FIFO lock.
func (m *Manager) save(checkpoints []Checkpoint) error {
	state := document{Checkpoints: checkpoints}

	err := m.doc.Save(&state)
	if err != nil {
		return fmt.Errorf("save checkpoints: %w", err)
	}

	return nil
}
