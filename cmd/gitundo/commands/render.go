package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/tikihq/gitundo/internal/checkpoint"
	"github.com/tikihq/gitundo/internal/provenance"
	"github.com/tikihq/gitundo/internal/rollback"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an unrecognized --format value.
var ErrUnknownFormat = errors.New("unknown output format")

// hashDisplayLen abbreviates hashes in tables.
const hashDisplayLen = 8

var (
	warnHigh   = color.New(color.FgRed, color.Bold)
	warnMedium = color.New(color.FgYellow)
	okGreen    = color.New(color.FgGreen)
)

// renderStructured writes value as JSON or YAML.
func renderStructured(w io.Writer, format string, value any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case formatYAML:
		enc := yaml.NewEncoder(w)

		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// renderPreview writes a rollback preview in the requested format.
func renderPreview(w io.Writer, format string, preview *rollback.Preview) error {
	if format != formatTable {
		return renderStructured(w, format, preview)
	}

	fmt.Fprintf(w, "Rollback preview: %d commit(s), +%s/-%s lines\n\n",
		len(preview.Commits),
		humanize.Comma(int64(preview.AddedLines)),
		humanize.Comma(int64(preview.RemovedLines)),
	)

	if len(preview.Files) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.AppendHeader(table.Row{"File", "Change", "After Rollback", "+Lines", "-Lines"})

		for _, file := range preview.Files {
			tw.AppendRow(table.Row{file.Path, file.StatusCode, file.PostState, file.AddedLines, file.RemovedLines})
		}

		tw.Render()
	}

	for _, warning := range preview.Warnings {
		painter := warnMedium
		if warning.Severity == rollback.SeverityHigh {
			painter = warnHigh
		}

		fmt.Fprintf(w, "%s %s\n", painter.Sprintf("[%s/%s]", warning.Kind, warning.Severity), warning.Message)
	}

	if preview.CanRollback {
		fmt.Fprintln(w, okGreen.Sprint("Rollback is possible."))
	} else {
		for _, reason := range preview.BlockedReasons {
			fmt.Fprintf(w, "%s %s\n", warnHigh.Sprint("Blocked:"), reason)
		}
	}

	return nil
}

// renderResult writes an execution result in the requested format.
func renderResult(w io.Writer, format string, result *rollback.Result) error {
	if format != formatTable {
		return renderStructured(w, format, result)
	}

	if result.Success {
		fmt.Fprintln(w, okGreen.Sprint("Rollback complete."))
	} else {
		fmt.Fprintf(w, "%s %s\n", warnHigh.Sprint("Rollback failed:"), result.Error)
	}

	if len(result.RevertCommits) > 0 {
		fmt.Fprintf(w, "Created %d revert commit(s):\n", len(result.RevertCommits))

		for _, hash := range result.RevertCommits {
			fmt.Fprintf(w, "  %s\n", shortHash(hash))
		}
	}

	if result.BackupBranch != "" {
		fmt.Fprintf(w, "Backup branch: %s\n", result.BackupBranch)
	}

	return nil
}

// renderCheckpoints writes the checkpoint list in the requested format.
func renderCheckpoints(w io.Writer, format string, checkpoints []checkpoint.Checkpoint) error {
	if format != formatTable {
		return renderStructured(w, format, checkpoints)
	}

	if len(checkpoints) == 0 {
		fmt.Fprintln(w, "No checkpoints.")

		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Commit", "Issue", "Created"})

	for _, cp := range checkpoints {
		issue := ""
		if cp.IssueNumber != nil {
			issue = fmt.Sprintf("#%d", *cp.IssueNumber)
		}

		tw.AppendRow(table.Row{cp.ID, cp.Name, shortHash(cp.CommitHash), issue, humanize.Time(cp.CreatedAt)})
	}

	tw.Render()

	return nil
}

// statusReport is the status command output.
type statusReport struct {
	Records         []provenance.CommitRecord `json:"records"         yaml:"records"`
	Valid           bool                      `json:"valid"           yaml:"valid"`
	MissingCommits  []string                  `json:"missingCommits"  yaml:"missingCommits"`
	ExternalCommits int                       `json:"externalCommits" yaml:"externalCommits"`
}

// renderStatus writes the provenance status in the requested format.
func renderStatus(w io.Writer, format string, report statusReport) error {
	if format != formatTable {
		return renderStructured(w, format, report)
	}

	if len(report.Records) == 0 {
		fmt.Fprintln(w, "No tracked commits.")
	} else {
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.AppendHeader(table.Row{"Commit", "Issue", "Phase", "Source", "When", "Message"})

		for _, record := range report.Records {
			phase := ""
			if record.PhaseNumber != nil {
				phase = fmt.Sprintf("%d", *record.PhaseNumber)
			}

			when := humanize.Time(time.UnixMilli(record.Timestamp))

			tw.AppendRow(table.Row{
				shortHash(record.CommitHash),
				fmt.Sprintf("#%d", record.IssueNumber),
				phase,
				record.Source,
				when,
				record.Message,
			})
		}

		tw.Render()
	}

	if report.Valid {
		fmt.Fprintln(w, okGreen.Sprint("All tracked commits exist in the repository."))
	} else {
		fmt.Fprintf(w, "%s %d tracked commit(s) no longer resolve:\n",
			warnHigh.Sprint("Warning:"), len(report.MissingCommits))

		for _, hash := range report.MissingCommits {
			fmt.Fprintf(w, "  %s\n", shortHash(hash))
		}
	}

	if report.ExternalCommits > 0 {
		fmt.Fprintf(w, "%s commit(s) in history were not produced by the agent.\n",
			humanize.Comma(int64(report.ExternalCommits)))
	}

	return nil
}

// shortHash abbreviates a hash for display.
func shortHash(hash string) string {
	if len(hash) <= hashDisplayLen {
		return hash
	}

	return hash[:hashDisplayLen]
}
