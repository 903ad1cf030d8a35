package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tikihq/gitundo/internal/provenance"
)

// ErrIssueRequired is returned when track is called without --issue.
var ErrIssueRequired = errors.New("--issue is required")

// NewTrackCommand creates the track command.
func NewTrackCommand() *cobra.Command {
	common := &commonFlags{}

	var (
		issueNumber int
		phaseNumber int
		message     string
		source      string
	)

	cmd := &cobra.Command{
		Use:   "track <commit-hash>",
		Short: "Record a commit in the provenance store",
		Long: `Record a commit as agent-produced, associated with an issue and an
optional phase. Parent hashes are read from the repository, so merge
commits are detected from the actual commit graph.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if issueNumber <= 0 {
				return ErrIssueRequired
			}

			application, err := newApp(common, modeCLI)
			if err != nil {
				return err
			}
			defer application.shutdown(cmd.Context())

			hash := args[0]

			exists, err := application.adapter.CommitExists(cmd.Context(), hash)
			if err != nil {
				return err
			}

			if !exists {
				return fmt.Errorf("commit %s does not exist in the repository", hash)
			}

			parents, err := application.adapter.ParentHashesOf(cmd.Context(), hash)
			if err != nil {
				return err
			}

			record := provenance.CommitRecord{
				CommitHash:   hash,
				IssueNumber:  issueNumber,
				Timestamp:    time.Now().UnixMilli(),
				Message:      message,
				Source:       provenance.Source(source),
				ParentHashes: parents,
			}

			if phaseNumber > 0 {
				phase := phaseNumber
				record.PhaseNumber = &phase
			}

			err = application.store.Track(cmd.Context(), record)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tracked %s for issue #%d.\n", shortHash(hash), issueNumber)

			return nil
		},
	}

	common.register(cmd)

	cmd.Flags().IntVar(&issueNumber, "issue", 0, "issue the commit belongs to (required)")
	cmd.Flags().IntVar(&phaseNumber, "phase", 0, "phase within the issue")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit summary to store")
	cmd.Flags().StringVar(&source, "source", string(provenance.SourceAgent), "commit source: agent, external, or unknown")

	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	common := &commonFlags{}

	var issueNumber int

	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show tracked commits and their repository state",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp(common, modeCLI)
			if err != nil {
				return err
			}
			defer application.shutdown(cmd.Context())

			var records []provenance.CommitRecord

			if issueNumber > 0 {
				records, err = application.store.CommitsForIssue(cmd.Context(), issueNumber)
			} else {
				records, err = application.store.Load(cmd.Context())
			}

			if err != nil {
				return err
			}

			validation, err := application.store.ValidateHistory(cmd.Context(), records)
			if err != nil {
				return err
			}

			external, err := application.store.FindExternalCommits(cmd.Context(), "", "HEAD")
			if err != nil {
				return err
			}

			return renderStatus(cmd.OutOrStdout(), common.format, statusReport{
				Records:         records,
				Valid:           validation.Valid,
				MissingCommits:  validation.MissingCommits,
				ExternalCommits: len(external),
			})
		},
	}

	common.register(cmd)

	cmd.Flags().IntVar(&issueNumber, "issue", 0, "restrict the report to one issue")

	return cmd
}
