package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tikihq/gitundo/internal/rollback"
)

// rollbackFlags are the scope selectors shared by preview and execute.
type rollbackFlags struct {
	scope        string
	issueNumber  int
	phaseNumber  int
	checkpointID string
}

// target maps the flags onto an engine scope and target.
func (f *rollbackFlags) target() (rollback.Scope, rollback.Target) {
	return rollback.Scope(f.scope), rollback.Target{
		IssueNumber:  f.issueNumber,
		PhaseNumber:  f.phaseNumber,
		CheckpointID: f.checkpointID,
	}
}

// NewRollbackCommand creates the rollback command with its preview and
// execute subcommands.
func NewRollbackCommand() *cobra.Command {
	common := &commonFlags{}
	flags := &rollbackFlags{}

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Preview or execute a rollback by phase, issue, or checkpoint",
		Long: `Preview shows the commits in scope, the per-file impact, and classified
safety warnings without touching the repository. Execute re-resolves the
scope and performs the rollback with the chosen method:

  revert  one inverse commit per rolled-back commit, history preserved
  reset   discard the commits after creating a backup branch; refused
          when any commit in scope was already pushed`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	common.register(cmd)

	cmd.PersistentFlags().StringVar(&flags.scope, "scope", "", "rollback scope: phase, issue, or checkpoint")
	cmd.PersistentFlags().IntVar(&flags.issueNumber, "issue", 0, "issue number (phase and issue scopes)")
	cmd.PersistentFlags().IntVar(&flags.phaseNumber, "phase", 0, "phase number (phase scope)")
	cmd.PersistentFlags().StringVar(&flags.checkpointID, "checkpoint", "", "checkpoint id (checkpoint scope)")

	cmd.AddCommand(newRollbackPreviewCommand(common, flags))
	cmd.AddCommand(newRollbackExecuteCommand(common, flags))

	return cmd
}

func newRollbackPreviewCommand(common *commonFlags, flags *rollbackFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show what a rollback would change, without changing anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp(common, modeCLI)
			if err != nil {
				return err
			}
			defer application.shutdown(cmd.Context())

			scope, target := flags.target()

			preview, err := application.engine.PreviewRollback(cmd.Context(), scope, target)
			if err != nil {
				return err
			}

			return renderPreview(cmd.OutOrStdout(), common.format, preview)
		},
	}
}

func newRollbackExecuteCommand(common *commonFlags, flags *rollbackFlags) *cobra.Command {
	var (
		method string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Perform the rollback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp(common, modeCLI)
			if err != nil {
				return err
			}
			defer application.shutdown(cmd.Context())

			scope, target := flags.target()

			preview, err := application.engine.PreviewRollback(cmd.Context(), scope, target)
			if err != nil {
				return err
			}

			renderErr := renderPreview(cmd.OutOrStdout(), common.format, preview)
			if renderErr != nil {
				return renderErr
			}

			if !yes && !confirm(cmd) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")

				return nil
			}

			result, err := application.engine.ExecuteRollback(cmd.Context(), scope, target, rollback.Options{
				Method: rollback.Method(method),
			})
			if err != nil {
				return err
			}

			return renderResult(cmd.OutOrStdout(), common.format, result)
		},
	}

	cmd.Flags().StringVar(&method, "method", string(rollback.MethodRevert), "rollback method: revert or reset")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// confirm prompts on the command's input stream and accepts y/yes.
func confirm(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "Proceed with rollback? [y/N]: ")

	reader := bufio.NewReader(cmd.InOrStdin())

	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes"
}
