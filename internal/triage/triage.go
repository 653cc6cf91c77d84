// Package triage implements the lightweight first-pass classifier that
// decides between answering a user query directly and handing it off to
// the planner.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/llm"
	"github.com/agentmux/agentmux/internal/session"
)

// Decision actions.
const (
	ActionAnswer  = "answer"
	ActionHandoff = "handoff"
)

// Decision is the triage outcome for one user query.
type Decision struct {
	Action        string `json:"action"`
	AnswerContent string `json:"answer_content,omitempty"`
	EnrichedQuery string `json:"enriched_query,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

const systemPrompt = `You are the triage layer of a multi-agent assistant. Decide whether the user's message can be answered directly from general knowledge and conversation context, or must be delegated to specialized agents.

Respond with ONLY a JSON object:
{"action": "answer", "answer_content": "<the full answer>"}
or
{"action": "handoff", "enriched_query": "<concise restatement of the user's intent, no invented details>", "reason": "<why delegation is needed>"}

Rules:
- Hand off anything requiring tools, live data, long-running work, or agent skills.
- Never ask the user a question. If context is insufficient, hand off with a short reason.
- The enriched query must restate intent without fabricating requirements.`

// Agent performs triage decisions with per-conversation memory.
type Agent struct {
	gen      llm.Generator
	sessions *session.Manager
	cfg      config.ModelConfig
}

// New creates a triage agent.
func New(gen llm.Generator, sessions *session.Manager, cfg config.ModelConfig) *Agent {
	return &Agent{gen: gen, sessions: sessions, cfg: cfg}
}

// Decide classifies one user query. Backend errors are returned to the
// caller, which falls back to handoff; an unparseable model reply
// degrades to handoff directly, never to a user-facing question.
func (a *Agent) Decide(ctx context.Context, query, conversationID, userID string) (*Decision, error) {
	sess := a.sessions.GetOrCreate("triage:" + conversationID)

	messages := []llm.Message{{Role: "system", Content: systemPrompt}}
	messages = append(messages, sess.History(20)...)
	messages = append(messages, llm.Message{Role: "user", Content: query})

	resp, err := a.gen.Chat(ctx, &llm.ChatRequest{
		Messages:    messages,
		Model:       a.cfg.Name,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("triage generation: %w", err)
	}

	sess.AddMessage("user", query)
	sess.AddMessage("assistant", resp.Content)
	if err := a.sessions.Save(sess); err != nil {
		slog.Warn("Save triage session failed", "conversation_id", conversationID, "error", err)
	}

	decision := parseDecision(resp.Content)
	if decision.Action == ActionHandoff && decision.EnrichedQuery == "" {
		decision.EnrichedQuery = query
	}
	return decision, nil
}

// parseDecision extracts the decision JSON from a model reply. Anything
// unparseable becomes a handoff carrying the raw difficulty as reason.
func parseDecision(content string) *Decision {
	var d Decision
	if err := json.Unmarshal([]byte(extractJSON(content)), &d); err != nil {
		return &Decision{
			Action: ActionHandoff,
			Reason: "triage reply was not valid JSON",
		}
	}

	switch d.Action {
	case ActionAnswer:
		if d.AnswerContent == "" {
			return &Decision{Action: ActionHandoff, Reason: "triage answered without content"}
		}
	case ActionHandoff:
	default:
		return &Decision{Action: ActionHandoff, Reason: fmt.Sprintf("unknown triage action %q", d.Action)}
	}
	return &d
}

// extractJSON strips markdown code fences and surrounding prose, keeping
// the outermost JSON object.
func extractJSON(content string) string {
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
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return strings.TrimSpace(content)
}
