package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameRollbackPreview  = "rollback_preview"
	ToolNameRollbackExecute  = "rollback_execute"
	ToolNameCheckpointCreate = "checkpoint_create"
	ToolNameCheckpointList   = "checkpoint_list"
	ToolNameCheckpointDelete = "checkpoint_delete"
	ToolNameProvenanceTrack  = "provenance_track"
	ToolNameProvenanceStatus = "provenance_status"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyScope indicates the scope parameter is empty.
	ErrEmptyScope = errors.New("scope parameter is required and must not be empty")
	// ErrEmptyMethod indicates the method parameter is empty.
	ErrEmptyMethod = errors.New("method parameter is required and must not be empty")
	// ErrEmptyCommitHash indicates the commit_hash parameter is empty.
	ErrEmptyCommitHash = errors.New("commit_hash parameter is required and must not be empty")
	// ErrEmptyCheckpointID indicates the checkpoint_id parameter is empty.
	ErrEmptyCheckpointID = errors.New("checkpoint_id parameter is required and must not be empty")
	// ErrEmptyName indicates the name parameter is empty.
	ErrEmptyName = errors.New("name parameter is required and must not be empty")
)

// Input types (auto-generate JSON schemas via struct tags).

// ScopeInput carries the shared rollback scope fields.
type ScopeInput struct {
	Scope        string `json:"scope"                   jsonschema:"rollback scope: phase issue or checkpoint"`
	IssueNumber  int    `json:"issue_number,omitempty"  jsonschema:"issue number for phase and issue scopes"`
	PhaseNumber  int    `json:"phase_number,omitempty"  jsonschema:"phase number for phase scope"`
	CheckpointID string `json:"checkpoint_id,omitempty" jsonschema:"checkpoint id for checkpoint scope"`
}

// PreviewInput is the input schema for the rollback_preview tool.
type PreviewInput struct {
	ScopeInput
}

// ExecuteInput is the input schema for the rollback_execute tool.
type ExecuteInput struct {
	ScopeInput

	Method string `json:"method" jsonschema:"rollback method: revert or reset"`
}

// CheckpointCreateInput is the input schema for the checkpoint_create tool.
type CheckpointCreateInput struct {
	Name        string `json:"name"                   jsonschema:"checkpoint label"`
	IssueNumber int    `json:"issue_number,omitempty" jsonschema:"optional issue association"`
	Description string `json:"description,omitempty"  jsonschema:"optional free-text description"`
}

// CheckpointListInput is the input schema for the checkpoint_list tool.
type CheckpointListInput struct{}

// CheckpointDeleteInput is the input schema for the checkpoint_delete tool.
type CheckpointDeleteInput struct {
	CheckpointID string `json:"checkpoint_id" jsonschema:"id of the checkpoint to delete"`
}

// TrackInput is the input schema for the provenance_track tool.
type TrackInput struct {
	CommitHash  string `json:"commit_hash"            jsonschema:"hash of the commit to record"`
	IssueNumber int    `json:"issue_number"           jsonschema:"issue the commit belongs to"`
	PhaseNumber int    `json:"phase_number,omitempty" jsonschema:"optional phase within the issue"`
	Message     string `json:"message,omitempty"      jsonschema:"commit message; queried from the repository when empty"`
	Source      string `json:"source,omitempty"       jsonschema:"commit source: agent external or unknown (default agent)"`
}

// StatusInput is the input schema for the provenance_status tool.
type StatusInput struct {
	IssueNumber int `json:"issue_number,omitempty" jsonschema:"restrict the report to one issue"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
