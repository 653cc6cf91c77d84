package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentmux/agentmux/internal/events"
	"github.com/agentmux/agentmux/internal/orchestrator"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat with the orchestrated agents",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().String("user", "local", "User id attached to the conversation")
	chatCmd.Flags().Bool("direct", false, "Skip triage and plan every message directly")
}

func runChat(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	direct, _ := cmd.Flags().GetBool("direct")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	conversationID := uuid.NewString()
	fmt.Fprintln(cmd.OutOrStdout(), color.CyanString("agentmux chat"), "- conversation", conversationID)
	fmt.Fprintln(cmd.OutOrStdout(), "Type a message, 'cancel' to cancel the conversation's tasks, 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	readLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}
	submit := func(content string) <-chan events.Response {
		return a.orchestrator.ProcessUserInput(cmd.Context(), orchestrator.UserInput{
			ConversationID: conversationID,
			UserID:         userID,
			Content:        content,
			SkipTriage:     direct,
		})
	}

	for {
		fmt.Fprint(cmd.OutOrStdout(), color.GreenString("you> "))
		line, ok := readLine()
		if !ok {
			return scanner.Err()
		}
		if line == "" {
			continue
		}
		switch line {
		case "exit", "quit":
			return nil
		case "cancel":
			n, err := a.orchestrator.CancelConversation(conversationID)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), color.RedString("cancel failed: %v", err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "canceled %d task(s)\n", n)
			continue
		}

		if !drainRound(cmd, submit(line), readLine, submit) {
			// Input ended while a round was paused on a prompt.
			_, _ = a.orchestrator.CancelConversation(conversationID)
			return scanner.Err()
		}
	}
}

// drainRound prints a round's responses until its stream closes. A
// clarification prompt is answered inline: the next input line is submitted
// as a fresh user message, which resolves the pending request so the paused
// round can resume on the same stream. Returns false when input ends
// mid-round.
func drainRound(cmd *cobra.Command, responses <-chan events.Response, readLine func() (string, bool), submit func(string) <-chan events.Response) bool {
	for resp := range responses {
		printResponse(cmd, resp)
		if resp.Kind != events.KindClarification {
			continue
		}
		fmt.Fprint(cmd.OutOrStdout(), color.GreenString("you> "))
		answer, ok := readLine()
		if !ok {
			return false
		}
		// The answer's own stream normally closes empty; when the paused
		// round is already gone it carries a full round of its own.
		if !drainRound(cmd, submit(answer), readLine, submit) {
			return false
		}
	}
	return true
}

func printResponse(cmd *cobra.Command, resp events.Response) {
	out := cmd.OutOrStdout()
	label := resp.AgentName
	if label == "" {
		label = "agentmux"
	}

	switch resp.Kind {
	case events.KindMessage:
		fmt.Fprintf(out, "%s %s\n", color.BlueString("%s>", label), resp.Content)
	case events.KindReasoning:
		fmt.Fprintf(out, "%s %s\n", color.HiBlackString("[thinking]"), color.HiBlackString(resp.Content))
	case events.KindToolCall:
		fmt.Fprintf(out, "%s %s %s\n", color.YellowString("[tool]"), resp.ToolName, resp.ToolResult)
	case events.KindComponentGenerator:
		fmt.Fprintf(out, "%s %s\n", color.MagentaString("[component:%s]", resp.ComponentType), resp.Content)
	case events.KindClarification:
		fmt.Fprintf(out, "%s %s\n", color.CyanString("[input needed]"), resp.Content)
	case events.KindGuidance:
		fmt.Fprintf(out, "%s %s\n", color.CyanString("[guidance]"), resp.Content)
	case events.KindTaskFailed:
		fmt.Fprintf(out, "%s %s\n", color.RedString("[failed]"), resp.Content)
	default:
		fmt.Fprintf(out, "[%s] %s\n", resp.Kind, resp.Content)
	}
}
