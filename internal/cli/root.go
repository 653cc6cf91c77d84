// Package cli implements the agentmux command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/agentmux/agentmux/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"                         _                       \n" +
		"   __ _  __ _  ___ _ __ | |_ _ __ ___  _   ___  __\n" +
		"  / _` |/ _` |/ _ \\ '_ \\| __| '_ ` _ \\| | | \\ \\/ /\n" +
		" | (_| | (_| |  __/ | | | |_| | | | | | |_| |>  < \n" +
		"  \\__,_|\\__, |\\___|_| |_|\\__|_| |_| |_|\\__,_/_/\\_\\\n" +
		"        |___/                                     \n"
)

var rootCmd = &cobra.Command{
	Use:   "agentmux",
	Short: "agentmux - multi-agent orchestration host",
	Long:  color.CyanString(logo) + "\nOrchestrates user requests across remote agents: triage, planning with clarification rounds, task execution, and recurring schedules.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agentmux version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "agentmux", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(tasksCmd)
}
