package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentmux/agentmux/internal/store"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List and cancel tasks",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().String("conversation", "", "Filter by conversation id")
	tasksCmd.Flags().String("state", "", "Filter by state")
	tasksCmd.Flags().Int("limit", 50, "Maximum number of tasks to list")
	tasksCmd.Flags().String("cancel", "", "Cancel the task with this id")
	tasksCmd.Flags().String("cancel-conversation", "", "Cancel every active task of this conversation")
}

func runTasks(cmd *cobra.Command, args []string) error {
	conversationID, _ := cmd.Flags().GetString("conversation")
	state, _ := cmd.Flags().GetString("state")
	limit, _ := cmd.Flags().GetInt("limit")
	cancelID, _ := cmd.Flags().GetString("cancel")
	cancelConv, _ := cmd.Flags().GetString("cancel-conversation")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if cancelID != "" {
		ok, err := a.store.CancelTask(cancelID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "task not found or already terminal")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "task canceled")
		return nil
	}

	if cancelConv != "" {
		n, err := a.orchestrator.CancelConversation(cancelConv)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "canceled %d task(s)\n", n)
		return nil
	}

	tasks, err := a.store.ListTasks(conversationID, state, limit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
		return nil
	}

	for _, t := range tasks {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %s  %q\n",
			t.TaskID, colorState(t.State), t.Pattern, t.AgentName, t.Query)
		if t.ErrorReason != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "    reason: %s\n", t.ErrorReason)
		}
	}
	return nil
}

func colorState(state string) string {
	switch state {
	case store.TaskCompleted:
		return color.GreenString(state)
	case store.TaskFailed:
		return color.RedString(state)
	case store.TaskCanceled:
		return color.YellowString(state)
	case store.TaskWorking:
		return color.CyanString(state)
	default:
		return state
	}
}
