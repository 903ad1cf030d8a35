// Package main provides the entry point for the gitundo CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tikihq/gitundo/cmd/gitundo/commands"
	"github.com/tikihq/gitundo/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "gitundo",
		Short: "Rollback safety layer for agent-produced git commits",
		Long: `gitundo tracks which commits an automated coding agent produced and
makes undoing them safe: previews with per-file impact and risk warnings,
history-preserving reverts, and gated hard resets with backup branches.

Commands:
  rollback    Preview or execute a rollback by phase, issue, or checkpoint
  checkpoint  Create, list, and delete named rollback anchors
  track       Record a commit in the provenance store
  status      Show tracked commits and their repository state
  mcp         Start the MCP stdio server for agent integration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRollbackCommand())
	rootCmd.AddCommand(commands.NewCheckpointCommand())
	rootCmd.AddCommand(commands.NewTrackCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "gitundo %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
