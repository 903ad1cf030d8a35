// Package mcp implements a Model Context Protocol server exposing gitundo
// rollback, checkpoint, and provenance operations as MCP tools over stdio
// transport, for UI layers and agent frameworks.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tikihq/gitundo/internal/checkpoint"
	"github.com/tikihq/gitundo/internal/observability"
	"github.com/tikihq/gitundo/internal/provenance"
	"github.com/tikihq/gitundo/internal/rollback"
	"github.com/tikihq/gitundo/internal/vcs"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "gitundo"
	// serverVersion is the MCP server implementation version.
	serverVersion = "1.0.0"

	// toolCount is the expected number of registered tools.
	toolCount = 7
)

// ServerDeps holds injectable dependencies for the MCP server.
// Engine, Store, Checkpoints, and Adapter are required; the rest default.
type ServerDeps struct {
	// Engine previews and executes rollbacks.
	Engine *rollback.Engine

	// Store is the provenance store.
	Store *provenance.Store

	// Checkpoints manages named rollback anchors.
	Checkpoints *checkpoint.Manager

	// Adapter answers live repository queries for track requests.
	Adapter vcs.Adapter

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with gitundo tool registrations.
type Server struct {
	inner       *mcpsdk.Server
	engine      *rollback.Engine
	store       *provenance.Store
	checkpoints *checkpoint.Manager
	adapter     vcs.Adapter
	metrics     *observability.REDMetrics
	tracer      trace.Tracer
	mu          sync.RWMutex
	tools       []string
}

// NewServer creates a new MCP server with all gitundo tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		opts,
	)

	srv := &Server{
		inner:       inner,
		engine:      deps.Engine,
		store:       deps.Store,
		checkpoints: deps.Checkpoints,
		adapter:     deps.Adapter,
		metrics:     deps.Metrics,
		tracer:      deps.Tracer,
		tools:       make([]string, 0, toolCount),
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all gitundo MCP tools to the server.
func (s *Server) registerTools() {
	register(s, ToolNameRollbackPreview, previewToolDescription, s.handleRollbackPreview)
	register(s, ToolNameRollbackExecute, executeToolDescription, s.handleRollbackExecute)
	register(s, ToolNameCheckpointCreate, checkpointCreateDescription, s.handleCheckpointCreate)
	register(s, ToolNameCheckpointList, checkpointListDescription, s.handleCheckpointList)
	register(s, ToolNameCheckpointDelete, checkpointDeleteDescription, s.handleCheckpointDelete)
	register(s, ToolNameProvenanceTrack, provenanceTrackDescription, s.handleProvenanceTrack)
	register(s, ToolNameProvenanceStatus, provenanceStatusDescription, s.handleProvenanceStatus)
}

// register adds one tool with metrics and tracing wrappers applied.
func register[Input any](
	s *Server,
	name, description string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        name,
		Description: description,
	}, withMetrics(s.metrics, name, withTracing(s.tracer, name, handler)))

	s.trackTool(name)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		// Include trace_id in response when span is sampled.
		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	previewToolDescription = "Preview a rollback before running it: the commits in scope, " +
		"per-file impact with post-rollback state, and classified safety warnings " +
		"(pushed commits, merges, external commits, conflicts, dirty tree)."

	executeToolDescription = "Execute a rollback for a phase, issue, or checkpoint scope " +
		"using revert (history-preserving inverse commits) or reset " +
		"(discard commits after creating a backup branch)."

	checkpointCreateDescription = "Create a named checkpoint at the current HEAD commit, " +
		"optionally associated with an issue."

	checkpointListDescription = "List all checkpoints in creation order."

	checkpointDeleteDescription = "Delete a checkpoint by id. The underlying commits are untouched."

	provenanceTrackDescription = "Record a commit as agent-produced in the provenance store, " +
		"with its issue and optional phase association."

	provenanceStatusDescription = "Report tracked commits (optionally for one issue) and " +
		"whether each still exists in the repository."
)
