package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tikihq/gitundo/internal/checkpoint"
	"github.com/tikihq/gitundo/internal/observability"
	"github.com/tikihq/gitundo/internal/provenance"
	"github.com/tikihq/gitundo/internal/vcs"
	"github.com/tikihq/gitundo/pkg/fifo"
)

// defaultBackupPrefix names backup branches when none is configured.
const defaultBackupPrefix = "gitundo-backup"

// headRef is the revision spec for the current tip.
const headRef = "HEAD"

// Engine orchestrates rollback previews and executions for one project.
// Construct one engine per project path; engines for different paths are
// independent. All public operations are serialized through a strict FIFO
// queue so previews and executions never interleave repository commands.
type Engine struct {
	adapter      vcs.Adapter
	store        *provenance.Store
	checkpoints  *checkpoint.Manager
	logger       *slog.Logger
	metrics      *observability.REDMetrics
	tracer       trace.Tracer
	backupPrefix string
	mu           fifo.Mutex
}

// EngineOptions holds optional engine dependencies. Zero values disable
// the corresponding concern.
type EngineOptions struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-operation spans.
	Tracer trace.Tracer

	// BackupPrefix overrides the backup branch name prefix.
	BackupPrefix string
}

// NewEngine builds an engine over the given adapter, store, and
// checkpoint manager.
func NewEngine(
	adapter vcs.Adapter,
	store *provenance.Store,
	checkpoints *checkpoint.Manager,
	opts EngineOptions,
) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefix := opts.BackupPrefix
	if prefix == "" {
		prefix = defaultBackupPrefix
	}

	return &Engine{
		adapter:      adapter,
		store:        store,
		checkpoints:  checkpoints,
		logger:       logger,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		backupPrefix: prefix,
	}
}

// resolvedCommit is one commit in the resolved rollback set.
type resolvedCommit struct {
	hash    string
	tracked bool
}

// resolveCommits returns the commit set for a scope, newest first. An
// empty set is not an error here; preview and execute handle it.
func (e *Engine) resolveCommits(ctx context.Context, scope Scope, target Target) ([]resolvedCommit, error) {
	switch scope {
	case ScopePhase:
		if target.IssueNumber <= 0 || target.PhaseNumber <= 0 {
			return nil, fmt.Errorf("%w: phase scope needs issue and phase numbers", ErrMissingTarget)
		}

		records, err := e.store.CommitsForPhase(ctx, target.IssueNumber, target.PhaseNumber)
		if err != nil {
			return nil, err
		}

		return trackedSet(records), nil

	case ScopeIssue:
		if target.IssueNumber <= 0 {
			return nil, fmt.Errorf("%w: issue scope needs an issue number", ErrMissingTarget)
		}

		records, err := e.store.CommitsForIssue(ctx, target.IssueNumber)
		if err != nil {
			return nil, err
		}

		return trackedSet(records), nil

	case ScopeCheckpoint:
		if target.CheckpointID == "" {
			return nil, fmt.Errorf("%w: checkpoint scope needs a checkpoint id", ErrMissingTarget)
		}

		cp, err := e.checkpoints.Resolve(ctx, target.CheckpointID)
		if err != nil {
			return nil, err
		}

		// Queried live: the intent is "undo everything since this point",
		// including commits the store never saw.
		hashes, err := e.adapter.LogRange(ctx, cp.CommitHash, headRef)
		if err != nil {
			return nil, err
		}

		records, err := e.store.Load(ctx)
		if err != nil {
			return nil, err
		}

		tracked := make(map[string]struct{}, len(records))
		for i := range records {
			tracked[records[i].CommitHash] = struct{}{}
		}

		commits := make([]resolvedCommit, 0, len(hashes))
		for _, hash := range hashes {
			_, isTracked := tracked[hash]
			commits = append(commits, resolvedCommit{hash: hash, tracked: isTracked})
		}

		return commits, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
}

// trackedSet orders provenance records newest first by timestamp.
func trackedSet(records []provenance.CommitRecord) []resolvedCommit {
	sorted := make([]provenance.CommitRecord, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	commits := make([]resolvedCommit, 0, len(sorted))
	for i := range sorted {
		commits = append(commits, resolvedCommit{hash: sorted[i].CommitHash, tracked: true})
	}

	return commits
}

// checkpointTarget returns the checkpoint a target references, for the
// reset path's destination.
func (e *Engine) checkpointTarget(ctx context.Context, target Target) (checkpoint.Checkpoint, error) {
	return e.checkpoints.Resolve(ctx, target.CheckpointID)
}

// observe records RED metrics and a debug log for one engine operation.
func (e *Engine) observe(ctx context.Context, op string, start time.Time, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}

	if e.metrics != nil {
		e.metrics.RecordRequest(ctx, op, status, time.Since(start))
	}

	e.logger.Debug("rollback operation finished",
		slog.String("op", op),
		slog.String("status", status),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// span starts a tracing span when a tracer is configured.
func (e *Engine) span(ctx context.Context, name string) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, nil
	}

	return e.tracer.Start(ctx, name)
}

// endSpan ends a span if one was started.
func endSpan(span trace.Span) {
	if span != nil {
		span.End()
	}
}
