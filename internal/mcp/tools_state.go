package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tikihq/gitundo/internal/checkpoint"
	"github.com/tikihq/gitundo/internal/provenance"
)

// handleCheckpointCreate processes checkpoint_create tool calls.
func (s *Server) handleCheckpointCreate(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input CheckpointCreateInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Name == "" {
		return errorResult(ErrEmptyName)
	}

	opts := checkpoint.CreateOptions{Description: input.Description}
	if input.IssueNumber > 0 {
		issue := input.IssueNumber
		opts.IssueNumber = &issue
	}

	cp, err := s.checkpoints.Create(ctx, input.Name, opts)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(cp)
}

// handleCheckpointList processes checkpoint_list tool calls.
func (s *Server) handleCheckpointList(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	_ CheckpointListInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	checkpoints, err := s.checkpoints.List(ctx)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(checkpoints)
}

// checkpointDeleteOutput reports the outcome of a delete call.
type checkpointDeleteOutput struct {
	Deleted bool `json:"deleted"`
}

// handleCheckpointDelete processes checkpoint_delete tool calls.
func (s *Server) handleCheckpointDelete(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input CheckpointDeleteInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.CheckpointID == "" {
		return errorResult(ErrEmptyCheckpointID)
	}

	existed, err := s.checkpoints.Delete(ctx, input.CheckpointID)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(checkpointDeleteOutput{Deleted: existed})
}

// handleProvenanceTrack processes provenance_track tool calls. Parent
// hashes are queried live so the merge flag is derived from the repository,
// not from caller input.
func (s *Server) handleProvenanceTrack(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input TrackInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.CommitHash == "" {
		return errorResult(ErrEmptyCommitHash)
	}

	exists, err := s.adapter.CommitExists(ctx, input.CommitHash)
	if err != nil {
		return errorResult(err)
	}

	if !exists {
		return errorResult(fmt.Errorf("commit %s does not exist in the repository", input.CommitHash))
	}

	parents, err := s.adapter.ParentHashesOf(ctx, input.CommitHash)
	if err != nil {
		return errorResult(err)
	}

	record := provenance.CommitRecord{
		CommitHash:   input.CommitHash,
		IssueNumber:  input.IssueNumber,
		Timestamp:    time.Now().UnixMilli(),
		Message:      input.Message,
		Source:       provenance.SourceAgent,
		ParentHashes: parents,
	}

	if input.PhaseNumber > 0 {
		phase := input.PhaseNumber
		record.PhaseNumber = &phase
	}

	if input.Source != "" {
		record.Source = provenance.Source(input.Source)
	}

	err = s.store.Track(ctx, record)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(record)
}

// statusOutput is the provenance_status report.
type statusOutput struct {
	Records        []provenance.CommitRecord `json:"records"`
	Valid          bool                      `json:"valid"`
	MissingCommits []string                  `json:"missingCommits"`
}

// handleProvenanceStatus processes provenance_status tool calls.
func (s *Server) handleProvenanceStatus(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input StatusInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var (
		records []provenance.CommitRecord
		err     error
	)

	if input.IssueNumber > 0 {
		records, err = s.store.CommitsForIssue(ctx, input.IssueNumber)
	} else {
		records, err = s.store.Load(ctx)
	}

	if err != nil {
		return errorResult(err)
	}

	validation, err := s.store.ValidateHistory(ctx, records)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(statusOutput{
		Records:        records,
		Valid:          validation.Valid,
		MissingCommits: validation.MissingCommits,
	})
}
