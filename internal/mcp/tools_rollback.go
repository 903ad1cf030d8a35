package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tikihq/gitundo/internal/rollback"
)

// scopeFromInput maps the shared scope fields onto an engine scope and target.
func scopeFromInput(input ScopeInput) (rollback.Scope, rollback.Target, error) {
	if input.Scope == "" {
		return "", rollback.Target{}, ErrEmptyScope
	}

	target := rollback.Target{
		IssueNumber:  input.IssueNumber,
		PhaseNumber:  input.PhaseNumber,
		CheckpointID: input.CheckpointID,
	}

	return rollback.Scope(input.Scope), target, nil
}

// handleRollbackPreview processes rollback_preview tool calls.
func (s *Server) handleRollbackPreview(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input PreviewInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	scope, target, err := scopeFromInput(input.ScopeInput)
	if err != nil {
		return errorResult(err)
	}

	preview, err := s.engine.PreviewRollback(ctx, scope, target)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(preview)
}

// handleRollbackExecute processes rollback_execute tool calls. Expected
// failures (blocked reset, conflicts, dirty tree) come back as a Result
// with success=false, not as a tool error.
func (s *Server) handleRollbackExecute(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ExecuteInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	scope, target, err := scopeFromInput(input.ScopeInput)
	if err != nil {
		return errorResult(err)
	}

	if input.Method == "" {
		return errorResult(ErrEmptyMethod)
	}

	result, err := s.engine.ExecuteRollback(ctx, scope, target, rollback.Options{
		Method: rollback.Method(input.Method),
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}
