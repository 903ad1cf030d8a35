package provenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tikihq/gitundo/internal/vcs"
	"github.com/tikihq/gitundo/pkg/fifo"
	"github.com/tikihq/gitundo/pkg/persist"
)

// storeBasename is the document name inside the project state directory.
const storeBasename = "provenance"

// document is the persisted shape of the store.
type document struct {
	Records []CommitRecord `json:"records"`
}

// Store is the per-project provenance store. Every operation that touches
// the on-disk document goes through a strict FIFO lock, so concurrent
// Track calls never interleave reads and writes.
type Store struct {
	doc     *persist.Document[document]
	adapter vcs.Adapter
	logger  *slog.Logger
	mu      fifo.Mutex
}

// NewStore creates a store persisted under dir, using adapter for live
// repository queries. A nil logger uses slog default.
func NewStore(dir string, adapter vcs.Adapter, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		doc:     persist.NewDocument[document](dir, storeBasename, persist.NewJSONCodec()),
		adapter: adapter,
		logger:  logger,
	}
}

// Track appends one record. The record's IsMergeCommit flag is derived
// from its parent hashes; duplicate hashes are rejected.
func (s *Store) Track(ctx context.Context, record CommitRecord) error {
	err := record.Validate()
	if err != nil {
		return err
	}

	record.IsMergeCommit = len(record.ParentHashes) > 1

	return s.mu.WithLock(ctx, func() error {
		records, loadErr := s.load()
		if loadErr != nil {
			return loadErr
		}

		for i := range records {
			if records[i].CommitHash == record.CommitHash {
				return fmt.Errorf("%w: %s", ErrDuplicateHash, record.CommitHash)
			}
		}

		records = append(records, record)

		return s.save(records)
	})
}

// Load returns a copy of all records. A missing document is an empty
// store; a present but corrupt document is a hard failure.
func (s *Store) Load(ctx context.Context) ([]CommitRecord, error) {
	var records []CommitRecord

	err := s.mu.WithLock(ctx, func() error {
		loaded, loadErr := s.load()
		if loadErr != nil {
			return loadErr
		}

		records = loaded

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Save atomically replaces the whole record collection.
func (s *Store) Save(ctx context.Context, records []CommitRecord) error {
	return s.mu.WithLock(ctx, func() error {
		return s.save(records)
	})
}

// CommitsForIssue returns copies of the records tracked for one issue.
func (s *Store) CommitsForIssue(ctx context.Context, issueNumber int) ([]CommitRecord, error) {
	return s.filter(ctx, func(r *CommitRecord) bool {
		return r.IssueNumber == issueNumber
	})
}

// CommitsForPhase returns copies of the records tracked for one phase of
// one issue.
func (s *Store) CommitsForPhase(ctx context.Context, issueNumber, phaseNumber int) ([]CommitRecord, error) {
	return s.filter(ctx, func(r *CommitRecord) bool {
		return r.IssueNumber == issueNumber && r.PhaseNumber != nil && *r.PhaseNumber == phaseNumber
	})
}

// ValidateHistory checks each record's continued existence in the
// repository and returns the subset that no longer resolves.
func (s *Store) ValidateHistory(ctx context.Context, records []CommitRecord) (ValidationResult, error) {
	result := ValidationResult{Valid: true, MissingCommits: []string{}}

	for i := range records {
		exists, err := s.adapter.CommitExists(ctx, records[i].CommitHash)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("check commit %s: %w", records[i].CommitHash, err)
		}

		if !exists {
			result.Valid = false
			result.MissingCommits = append(result.MissingCommits, records[i].CommitHash)
		}
	}

	return result, nil
}

// FindExternalCommits walks the repository log between two refs and
// returns the hashes the store does not know about, i.e. commits the agent
// did not produce.
func (s *Store) FindExternalCommits(ctx context.Context, fromRef, toRef string) ([]string, error) {
	logged, err := s.adapter.LogRange(ctx, fromRef, toRef)
	if err != nil {
		return nil, fmt.Errorf("log range %s..%s: %w", fromRef, toRef, err)
	}

	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]struct{}, len(records))
	for i := range records {
		tracked[records[i].CommitHash] = struct{}{}
	}

	external := make([]string, 0)

	for _, hash := range logged {
		if _, ok := tracked[hash]; !ok {
			external = append(external, hash)
		}
	}

	return external, nil
}

// DetectMergeCommit queries the live parent count of a commit. Ground
// truth from the repository takes precedence over the cached
// IsMergeCommit flag on any record.
func (s *Store) DetectMergeCommit(ctx context.Context, hash string) (bool, error) {
	parents, err := s.adapter.ParentHashesOf(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("parent hashes of %s: %w", hash, err)
	}

	return len(parents) > 1, nil
}

// Snapshot is the best-effort read path for status displays: a missing or
// corrupt document degrades to an empty store with a warning instead of an
// error.
func (s *Store) Snapshot(ctx context.Context) []CommitRecord {
	records, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn("provenance snapshot degraded to empty", slog.Any("error", err))

		return []CommitRecord{}
	}

	return records
}

// filter returns copies of the records matching pred, preserving order.
func (s *Store) filter(ctx context.Context, pred func(*CommitRecord) bool) ([]CommitRecord, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]CommitRecord, 0, len(records))

	for i := range records {
		if pred(&records[i]) {
			matched = append(matched, cloneRecord(&records[i]))
		}
	}

	return matched, nil
}

// load reads the document without locking. Callers hold the FIFO lock.
func (s *Store) load() ([]CommitRecord, error) {
	raw, err := s.doc.ReadRaw()
	if err != nil {
		if errors.Is(err, persist.ErrNotExist) {
			return []CommitRecord{}, nil
		}

		return nil, err
	}

	schemaErr := validateDocument(raw)
	if schemaErr != nil {
		return nil, schemaErr
	}

	var state document

	err = s.doc.Load(&state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}

	return state.Records, nil
}

// save writes the document without locking. Callers hold the FIFO lock.
func (s *Store) save(records []CommitRecord) error {
	state := document{Records: records}

	err := s.doc.Save(&state)
	if err != nil {
		return fmt.Errorf("save provenance store: %w", err)
	}

	return nil
}

// cloneRecord copies a record so callers never observe internal mutation.
func cloneRecord(r *CommitRecord) CommitRecord {
	clone := *r
	clone.ParentHashes = slices.Clone(r.ParentHashes)

	if r.PhaseNumber != nil {
		phase := *r.PhaseNumber
		clone.PhaseNumber = &phase
	}

	return clone
}
