// Package planner turns a user request plus available agent capabilities
// into task specifications, pausing for clarification rounds when the
// request is missing required information.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/llm"
	"github.com/agentmux/agentmux/internal/protocol"
	"github.com/agentmux/agentmux/internal/store"
)

// CardSource lists the agent capability cards the planner may target.
type CardSource interface {
	ListAvailableAgents() []protocol.AgentCard
}

// InputFunc resolves one clarification prompt with a user answer. The
// implementation blocks until the answer arrives or ctx expires.
type InputFunc func(ctx context.Context, prompt string) (string, error)

// PlanInput carries the request context into plan creation.
type PlanInput struct {
	Query          string
	ConversationID string
	ThreadID       string
	UserID         string
	Handoff        bool // the plan resulted from a triage handoff
}

// PlanResult is the tagged planning outcome. Inadequacy is a successful
// terminal outcome carrying guidance, not an error.
type PlanResult struct {
	Adequate        bool
	Reason          string
	GuidanceMessage string
	Tasks           []store.Task
}

// planReply is the JSON shape the model must produce.
type planReply struct {
	Adequate      bool   `json:"adequate"`
	Reason        string `json:"reason"`
	MissingFields []struct {
		Prompt string `json:"prompt"`
	} `json:"missing_fields"`
	Tasks []struct {
		AgentName       string `json:"agent_name"`
		Query           string `json:"query"`
		Pattern         string `json:"pattern"`
		IntervalMinutes int    `json:"interval_minutes"`
		DailyTime       string `json:"daily_time"`
		Cron            string `json:"cron"`
	} `json:"tasks"`
	GuidanceMessage string `json:"guidance_message"`
}

// Planner generates execution plans against the available agent cards.
type Planner struct {
	gen   llm.Generator
	cards CardSource
	cfg   config.ModelConfig
}

// New creates a planner.
func New(gen llm.Generator, cards CardSource, cfg config.ModelConfig) *Planner {
	return &Planner{gen: gen, cards: cards, cfg: cfg}
}

// CreatePlan runs the planning loop. It never returns an error: backend
// failures, exhausted clarification rounds, and unusable model output all
// surface as Adequate=false with a diagnostic reason. provideInput is
// invoked once per missing field; each resolved answer is appended to the
// planning context so the model does not re-ask.
func (p *Planner) CreatePlan(ctx context.Context, in PlanInput, provideInput InputFunc) *PlanResult {
	cards := p.cards.ListAvailableAgents()
	if len(cards) == 0 {
		return &PlanResult{
			Adequate:        false,
			Reason:          "no agents available",
			GuidanceMessage: "No agents are currently registered, so this request cannot be delegated. Register at least one agent and try again.",
		}
	}

	messages := []llm.Message{
		{Role: "system", Content: buildSystemPrompt(cards)},
		{Role: "user", Content: in.Query},
	}

	maxRounds := p.cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 5
	}

	for round := 0; round < maxRounds; round++ {
		resp, err := p.gen.Chat(ctx, &llm.ChatRequest{
			Messages:    messages,
			Model:       p.cfg.Name,
			MaxTokens:   p.cfg.MaxTokens,
			Temperature: p.cfg.Temperature,
		})
		if err != nil {
			return inadequate(fmt.Sprintf("planning backend error: %v", err))
		}

		reply, err := parseReply(resp.Content)
		if err != nil {
			return inadequate(fmt.Sprintf("planning reply unusable: %v", err))
		}

		if len(reply.MissingFields) > 0 {
			answers, err := p.resolveMissing(ctx, reply, provideInput)
			if err != nil {
				return inadequate(fmt.Sprintf("clarification not resolved: %v", err))
			}
			messages = append(messages,
				llm.Message{Role: "assistant", Content: resp.Content},
				llm.Message{Role: "user", Content: answers},
			)
			continue
		}

		return p.finalize(in, reply, cards)
	}

	return inadequate(fmt.Sprintf("planning did not converge after %d rounds", maxRounds))
}

// resolveMissing runs one clarification round: every missing field is
// surfaced through provideInput and the answers are folded into a single
// user message for the next generation pass.
func (p *Planner) resolveMissing(ctx context.Context, reply *planReply, provideInput InputFunc) (string, error) {
	if provideInput == nil {
		return "", fmt.Errorf("plan requires user input but no input channel is available")
	}

	var b strings.Builder
	b.WriteString("Answers to your questions:\n")
	for _, field := range reply.MissingFields {
		if field.Prompt == "" {
			continue
		}
		answer, err := provideInput(ctx, field.Prompt)
		if err != nil {
			return "", err
		}
		slog.Debug("Clarification resolved", "prompt", field.Prompt)
		fmt.Fprintf(&b, "- %s: %s\n", field.Prompt, answer)
	}
	return b.String(), nil
}

// finalize validates the unpaused reply and materializes its task briefs.
func (p *Planner) finalize(in PlanInput, reply *planReply, cards []protocol.AgentCard) *PlanResult {
	if !reply.Adequate {
		guidance := reply.GuidanceMessage
		if guidance == "" {
			guidance = "This request cannot be fulfilled with the available agents."
		}
		return &PlanResult{
			Adequate:        false,
			Reason:          reply.Reason,
			GuidanceMessage: guidance,
		}
	}
	if len(reply.Tasks) == 0 {
		return inadequate("plan was marked adequate but contained no tasks")
	}

	known := make(map[string]bool, len(cards))
	for _, card := range cards {
		known[card.Name] = true
	}

	tasks := make([]store.Task, 0, len(reply.Tasks))
	for _, brief := range reply.Tasks {
		if !known[brief.AgentName] {
			return inadequate(fmt.Sprintf("plan references unknown agent %q", brief.AgentName))
		}

		// Each task gets its own conversation except when the plan is
		// the root of a direct conversation; the thread is always
		// inherited so one round groups its items together.
		conversationID := uuid.NewString()
		if !in.Handoff {
			conversationID = in.ConversationID
		}

		pattern := store.PatternOnce
		if strings.EqualFold(brief.Pattern, store.PatternRecurring) {
			pattern = store.PatternRecurring
		}

		tasks = append(tasks, store.Task{
			TaskID:         uuid.NewString(),
			ConversationID: conversationID,
			ThreadID:       in.ThreadID,
			UserID:         in.UserID,
			AgentName:      brief.AgentName,
			Query:          brief.Query,
			Pattern:        pattern,
			Schedule: store.Schedule{
				IntervalMinutes: brief.IntervalMinutes,
				DailyTime:       brief.DailyTime,
				Cron:            brief.Cron,
			},
			HandoffFromSuperAgent: in.Handoff,
			State:                 store.TaskCreated,
		})
	}

	return &PlanResult{Adequate: true, Reason: reply.Reason, Tasks: tasks}
}

func inadequate(reason string) *PlanResult {
	return &PlanResult{
		Adequate:        false,
		Reason:          reason,
		GuidanceMessage: "I could not turn this request into an executable plan. Please rephrase or provide more detail.",
	}
}

func buildSystemPrompt(cards []protocol.AgentCard) string {
	var b strings.Builder
	b.WriteString(`You are the execution planner of a multi-agent assistant. Turn the user's request into tasks for the agents below, or ask for the missing information you need.

Available agents:
`)
	for _, card := range cards {
		fmt.Fprintf(&b, "- %s: %s\n", card.Name, card.Description)
		for _, skill := range card.Skills {
			fmt.Fprintf(&b, "  - skill %s: %s\n", skill.ID, skill.Description)
		}
	}
	b.WriteString(`
Respond with ONLY a JSON object:
{"adequate": bool, "reason": "...", "missing_fields": [{"prompt": "..."}], "tasks": [{"agent_name": "...", "query": "...", "pattern": "once"|"recurring", "interval_minutes": 0, "daily_time": "", "cron": ""}], "guidance_message": "..."}

Rules:
- Use missing_fields ONLY for information you genuinely cannot proceed without; leave it empty otherwise. Do not re-ask a question that has already been answered in this conversation.
- If no available agent can serve the request, set adequate=false with a helpful guidance_message and no tasks.
- For recurring work set pattern="recurring" and exactly one of interval_minutes, daily_time ("HH:MM", 24h) or cron (5 fields).`)
	return b.String()
}

// parseReply extracts the plan JSON from a model reply.
func parseReply(content string) (*planReply, error) {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		content = strings.TrimPrefix(content, "json")
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var reply planReply
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &reply, nil
}
