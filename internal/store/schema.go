// Package store provides the durable conversation item log and task store.
package store

import "time"

// Conversation is a logical multi-round exchange between a user and the system.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	ConversationActive       = "active"
	ConversationAwaitingUser = "awaiting_user_input"
)

// Item is one immutable conversation timeline entry. Append-only; ordering
// within a conversation follows the autoincrement sequence.
type Item struct {
	Seq            int64     `json:"seq"`
	ItemID         string    `json:"item_id"`
	ConversationID string    `json:"conversation_id"`
	ThreadID       string    `json:"thread_id,omitempty"`
	TaskID         string    `json:"task_id,omitempty"`
	Role           string    `json:"role"`
	Event          string    `json:"event"`
	Payload        string    `json:"payload"`            // JSON, shape depends on Event
	AgentName      string    `json:"agent_name,omitempty"`
	Metadata       string    `json:"metadata,omitempty"` // JSON object
	CreatedAt      time.Time `json:"created_at"`
}

const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// Task is one unit of delegated work assigned to a remote agent.
type Task struct {
	ID                    int64      `json:"id"`
	TaskID                string     `json:"task_id"`
	ConversationID        string     `json:"conversation_id"`
	ThreadID              string     `json:"thread_id"`
	UserID                string     `json:"user_id"`
	AgentName             string     `json:"agent_name"`
	Query                 string     `json:"query"`
	Pattern               string     `json:"pattern"` // once | recurring
	Schedule              Schedule   `json:"schedule"`
	HandoffFromSuperAgent bool       `json:"handoff_from_super_agent"`
	State                 string     `json:"state"`
	ErrorReason           string     `json:"error_reason,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// Schedule describes the recurrence rule for a recurring task. At most one
// field is expected to be set; precedence is interval, then daily time, then
// cron.
type Schedule struct {
	IntervalMinutes int    `json:"interval_minutes,omitempty"`
	DailyTime       string `json:"daily_time,omitempty"` // "HH:MM"
	Cron            string `json:"cron,omitempty"`       // 5-field cron expression
}

// IsZero reports whether no scheduling rule is configured.
func (s Schedule) IsZero() bool {
	return s.IntervalMinutes == 0 && s.DailyTime == "" && s.Cron == ""
}

const (
	PatternOnce      = "once"
	PatternRecurring = "recurring"

	TaskCreated   = "created"
	TaskSubmitted = "submitted"
	TaskWorking   = "working"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
	TaskCanceled  = "canceled"
)

// TerminalState reports whether a task state admits no further transitions
// (modulo recurring rearm, which is an explicit separate operation).
func TerminalState(state string) bool {
	return state == TaskCompleted || state == TaskFailed || state == TaskCanceled
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	conversation_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversation_items (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT UNIQUE NOT NULL,
	conversation_id TEXT NOT NULL,
	thread_id TEXT NOT NULL DEFAULT '',
	task_id TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	event TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '',
	agent_name TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_conversation ON conversation_items(conversation_id);
CREATE INDEX IF NOT EXISTS idx_items_thread ON conversation_items(thread_id);
CREATE INDEX IF NOT EXISTS idx_items_event ON conversation_items(event);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT UNIQUE NOT NULL,
	conversation_id TEXT NOT NULL,
	thread_id TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	agent_name TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	pattern TEXT NOT NULL DEFAULT 'once',
	interval_minutes INTEGER NOT NULL DEFAULT 0,
	daily_time TEXT NOT NULL DEFAULT '',
	cron TEXT NOT NULL DEFAULT '',
	handoff BOOLEAN NOT NULL DEFAULT 0,
	state TEXT NOT NULL DEFAULT 'created',
	error_reason TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_conversation ON tasks(conversation_id);
CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
`
