package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List available agents and their skills",
	RunE:  runAgents,
}

func init() {
	agentsCmd.Flags().Bool("remote", false, "Also probe the configured remote base URL")
}

func runAgents(cmd *cobra.Command, args []string) error {
	probeRemote, _ := cmd.Flags().GetBool("remote")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if probeRemote {
		if _, err := a.registry.ListRemoteAgents(cmd.Context()); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("remote discovery failed: %v", err))
		}
	}

	cards := a.registry.ListAvailableAgents()
	if len(cards) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No agents registered. Add descriptors under", a.cfg.Paths.AgentsDir)
		return nil
	}

	for _, card := range cards {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", color.CyanString(card.Name), card.Description)
		for _, skill := range card.Skills {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s: %s\n", skill.ID, skill.Description)
		}
	}
	return nil
}
