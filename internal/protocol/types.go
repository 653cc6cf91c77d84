// Package protocol defines the remote agent wire types and streaming client.
package protocol

import "time"

// WellKnownPath is the discovery path every agent serves its card on.
const WellKnownPath = "/.well-known/agent.json"

// AgentCard is the capability descriptor for a callable agent.
type AgentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	Version            string       `json:"version"`
	Capabilities       Capabilities `json:"capabilities"`
	Skills             []Skill      `json:"skills"`
	DefaultInputModes  []string     `json:"default_input_modes"`
	DefaultOutputModes []string     `json:"default_output_modes"`
}

// Capabilities holds the card's capability flags.
type Capabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"push_notifications"`
}

// Skill describes one capability a remote agent advertises.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TaskState enumerates the remote task states carried on status events.
type TaskState string

const (
	StateSubmitted TaskState = "submitted"
	StateWorking   TaskState = "working"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
)

// Well-known metadata keys on status events.
const (
	MetaResponseEvent = "response_event"
	MetaToolCallID    = "tool_call_id"
	MetaToolName      = "tool_name"
	MetaToolResult    = "tool_result"
	MetaComponentType = "component_type"

	EventToolCall           = "tool_call"
	EventReasoning          = "reasoning"
	EventComponentGenerator = "component_generator"
)

// SendRequest is the request body for a streaming task send.
type SendRequest struct {
	Query     string         `json:"query"`
	TaskID    string         `json:"task_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// StatusEvent is one element of the remote agent's response stream.
type StatusEvent struct {
	State     TaskState      `json:"state"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

// MetaString returns a string metadata value, or "" when absent.
func (e *StatusEvent) MetaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// ResponseEvent returns the response_event tag, or "" for plain messages.
func (e *StatusEvent) ResponseEvent() string {
	return e.MetaString(MetaResponseEvent)
}

// Terminal reports whether the event ends the stream.
func (e *StatusEvent) Terminal() bool {
	return e.State == StateCompleted || e.State == StateFailed
}
