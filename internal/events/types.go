// Package events carries the typed domain responses produced while
// processing user input: routing from raw protocol status events,
// coalescing of streamed text chunks, persistence, and delivery to the
// caller's response stream.
package events

import (
	"encoding/json"
	"time"

	"github.com/agentmux/agentmux/internal/store"
)

// Response kinds, persisted as the item event.
const (
	KindMessage            = "message"
	KindReasoning          = "reasoning"
	KindToolCall           = "tool_call"
	KindComponentGenerator = "component_generator"
	KindTaskFailed         = "task_failed"
	KindClarification      = "clarification"
	KindGuidance           = "guidance"
)

// Response is one typed domain response event.
type Response struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	ConversationID string         `json:"conversation_id"`
	ThreadID       string         `json:"thread_id,omitempty"`
	TaskID         string         `json:"task_id,omitempty"`
	AgentName      string         `json:"agent_name,omitempty"`
	Content        string         `json:"content,omitempty"`
	ToolCallID     string         `json:"tool_call_id,omitempty"`
	ToolName       string         `json:"tool_name,omitempty"`
	ToolResult     string         `json:"tool_result,omitempty"`
	ComponentType  string         `json:"component_type,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// item converts the response into a conversation item for persistence.
func (r *Response) item() *store.Item {
	payload := map[string]any{"content": r.Content}
	if r.ToolCallID != "" {
		payload["tool_call_id"] = r.ToolCallID
	}
	if r.ToolName != "" {
		payload["tool_name"] = r.ToolName
	}
	if r.ToolResult != "" {
		payload["tool_result"] = r.ToolResult
	}
	if r.ComponentType != "" {
		payload["component_type"] = r.ComponentType
	}
	payloadJSON, _ := json.Marshal(payload)

	meta := ""
	if len(r.Metadata) > 0 {
		if b, err := json.Marshal(r.Metadata); err == nil {
			meta = string(b)
		}
	}

	role := store.RoleAgent
	if r.Kind == KindTaskFailed {
		role = store.RoleSystem
	}

	return &store.Item{
		ItemID:         r.ID,
		ConversationID: r.ConversationID,
		ThreadID:       r.ThreadID,
		TaskID:         r.TaskID,
		Role:           role,
		Event:          r.Kind,
		Payload:        string(payloadJSON),
		AgentName:      r.AgentName,
		Metadata:       meta,
		CreatedAt:      r.CreatedAt,
	}
}
