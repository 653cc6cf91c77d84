// Package session provides per-conversation LLM message history.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentmux/agentmux/internal/llm"
)

// Session holds the message history for one conversation.
type Session struct {
	Key       string         `json:"key"`
	Messages  []llm.Message  `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	mu        sync.RWMutex
}

// NewSession creates a new session with the given key.
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		Messages:  []llm.Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
}

// AddMessage appends a message to the session.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages = append(s.Messages, llm.Message{Role: role, Content: content})
	s.UpdatedAt = time.Now()
}

// History returns up to maxMessages of the most recent messages.
func (s *Session) History(maxMessages int) []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxMessages <= 0 || len(s.Messages) <= maxMessages {
		out := make([]llm.Message, len(s.Messages))
		copy(out, s.Messages)
		return out
	}
	out := make([]llm.Message, maxMessages)
	copy(out, s.Messages[len(s.Messages)-maxMessages:])
	return out
}

// Clear removes all messages from the session.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages = []llm.Message{}
	s.UpdatedAt = time.Now()
}

// Manager manages session persistence.
type Manager struct {
	sessionsDir string
	cache       map[string]*Session
	mu          sync.RWMutex
}

// NewManager creates a session manager persisting under sessionsDir.
func NewManager(sessionsDir string) *Manager {
	if sessionsDir == "" {
		home, _ := os.UserHomeDir()
		sessionsDir = filepath.Join(home, ".agentmux", "sessions")
	}
	os.MkdirAll(sessionsDir, 0755)

	return &Manager{
		sessionsDir: sessionsDir,
		cache:       make(map[string]*Session),
	}
}

// GetOrCreate returns an existing session or creates a new one.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.cache[key]; ok {
		return session
	}

	session := m.load(key)
	if session == nil {
		session = NewSession(key)
	}

	m.cache[key] = session
	return session
}

// Save persists a session to disk as JSONL: a metadata line followed by one
// line per message.
func (m *Manager) Save(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.sessionPath(session.Key)

	session.mu.RLock()
	defer session.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer file.Close()

	meta := map[string]any{
		"_type":      "metadata",
		"created_at": session.CreatedAt.Format(time.RFC3339),
		"updated_at": session.UpdatedAt.Format(time.RFC3339),
		"metadata":   session.Metadata,
	}
	metaLine, _ := json.Marshal(meta)
	file.WriteString(string(metaLine) + "\n")

	for _, msg := range session.Messages {
		msgLine, _ := json.Marshal(msg)
		file.WriteString(string(msgLine) + "\n")
	}

	m.cache[session.Key] = session
	return nil
}

// Delete removes a session from cache and disk.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cache, key)

	if err := os.Remove(m.sessionPath(key)); err != nil {
		return false
	}
	return true
}

func (m *Manager) sessionPath(key string) string {
	safeKey := strings.ReplaceAll(key, ":", "_")
	// Strip path separators and traversal components to prevent path injection.
	safeKey = strings.ReplaceAll(safeKey, "/", "_")
	safeKey = strings.ReplaceAll(safeKey, "\\", "_")
	safeKey = strings.ReplaceAll(safeKey, "..", "_")
	return filepath.Join(m.sessionsDir, filepath.Base(safeKey)+".jsonl")
}

func (m *Manager) load(key string) *Session {
	file, err := os.Open(m.sessionPath(key))
	if err != nil {
		return nil
	}
	defer file.Close()

	session := NewSession(key)
	decoder := json.NewDecoder(file)

	for decoder.More() {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			break
		}

		var check map[string]any
		if json.Unmarshal(raw, &check) == nil && check["_type"] == "metadata" {
			if created, ok := check["created_at"].(string); ok {
				session.CreatedAt, _ = time.Parse(time.RFC3339, created)
			}
			if updated, ok := check["updated_at"].(string); ok {
				session.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
			}
			if meta, ok := check["metadata"].(map[string]any); ok {
				session.Metadata = meta
			}
			continue
		}

		var msg llm.Message
		if json.Unmarshal(raw, &msg) == nil {
			session.Messages = append(session.Messages, msg)
		}
	}

	return session
}
