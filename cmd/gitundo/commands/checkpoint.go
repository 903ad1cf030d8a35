package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tikihq/gitundo/internal/checkpoint"
)

// ErrCheckpointNotFound is returned when deleting a checkpoint id that
// does not exist.
var ErrCheckpointNotFound = errors.New("no checkpoint with that id")

// NewCheckpointCommand creates the checkpoint command with its create,
// list, and delete subcommands.
func NewCheckpointCommand() *cobra.Command {
	common := &commonFlags{}

	cmd := &cobra.Command{
		Use:           "checkpoint",
		Short:         "Create, list, and delete named rollback anchors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	common.register(cmd)

	cmd.AddCommand(newCheckpointCreateCommand(common))
	cmd.AddCommand(newCheckpointListCommand(common))
	cmd.AddCommand(newCheckpointDeleteCommand(common))

	return cmd
}

func newCheckpointCreateCommand(common *commonFlags) *cobra.Command {
	var (
		issueNumber int
		description string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a checkpoint at the current HEAD commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp(common, modeCLI)
			if err != nil {
				return err
			}
			defer application.shutdown(cmd.Context())

			opts := checkpoint.CreateOptions{Description: description}
			if issueNumber > 0 {
				issue := issueNumber
				opts.IssueNumber = &issue
			}

			cp, err := application.checkpoints.Create(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			if common.format != formatTable {
				return renderStructured(cmd.OutOrStdout(), common.format, cp)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %q created at %s (id %s)\n",
				cp.Name, shortHash(cp.CommitHash), cp.ID)

			return nil
		},
	}

	cmd.Flags().IntVar(&issueNumber, "issue", 0, "associate the checkpoint with an issue")
	cmd.Flags().StringVar(&description, "description", "", "free-text description")

	return cmd
}

func newCheckpointListCommand(common *commonFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp(common, modeCLI)
			if err != nil {
				return err
			}
			defer application.shutdown(cmd.Context())

			checkpoints, err := application.checkpoints.List(cmd.Context())
			if err != nil {
				return err
			}

			return renderCheckpoints(cmd.OutOrStdout(), common.format, checkpoints)
		},
	}
}

func newCheckpointDeleteCommand(common *commonFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a checkpoint; the underlying commits are untouched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp(common, modeCLI)
			if err != nil {
				return err
			}
			defer application.shutdown(cmd.Context())

			existed, err := application.checkpoints.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if !existed {
				return fmt.Errorf("%w: %s", ErrCheckpointNotFound, args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s deleted.\n", args[0])

			return nil
		},
	}
}
