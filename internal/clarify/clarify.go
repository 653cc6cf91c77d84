// Package clarify provides the in-memory registry of pending user-input
// requests raised during planning.
package clarify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Request represents one pending piece of missing user input. The prompt is
// surfaced to the user; the answer arrives asynchronously through Resolve.
type Request struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ThreadID       string    `json:"thread_id"`
	Prompt         string    `json:"prompt"`
	CreatedAt      time.Time `json:"created_at"`
}

// Manager handles the clarification lifecycle: create, wait, resolve.
// Requests live only in memory, keyed by conversation id; the eventual
// answer becomes a user-role item through the normal input path.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest // keyed by conversation id
}

type pendingRequest struct {
	req *Request
	ch  chan string
}

// NewManager creates a clarification manager.
func NewManager() *Manager {
	return &Manager{
		pending: make(map[string]*pendingRequest),
	}
}

// Create registers a new request for the conversation and returns it.
// A conversation holds at most one pending request at a time; creating a
// second one replaces the first (its waiter receives an empty answer).
func (m *Manager) Create(conversationID, threadID, prompt string) *Request {
	req := &Request{
		ID:             newRequestID(),
		ConversationID: conversationID,
		ThreadID:       threadID,
		Prompt:         prompt,
		CreatedAt:      time.Now(),
	}

	m.mu.Lock()
	if old, ok := m.pending[conversationID]; ok {
		// Non-blocking: unblock a stale waiter rather than leaking it.
		select {
		case old.ch <- "":
		default:
		}
	}
	m.pending[conversationID] = &pendingRequest{req: req, ch: make(chan string, 1)}
	m.mu.Unlock()

	return req
}

// Wait blocks until the conversation's pending request is resolved or the
// context expires.
func (m *Manager) Wait(ctx context.Context, conversationID string) (string, error) {
	m.mu.Lock()
	p, ok := m.pending[conversationID]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no pending clarification for conversation %s", conversationID)
	}

	select {
	case answer := <-p.ch:
		m.cleanup(conversationID, p)
		return answer, nil
	case <-ctx.Done():
		m.cleanup(conversationID, p)
		return "", ctx.Err()
	}
}

// Resolve delivers the answer for a conversation's pending request.
// Returns false when nothing is pending; a request resolves exactly once.
func (m *Manager) Resolve(conversationID, answer string) bool {
	m.mu.Lock()
	p, ok := m.pending[conversationID]
	m.mu.Unlock()
	if !ok {
		return false
	}

	// Non-blocking send (channel is buffered with size 1); a duplicate
	// Resolve for the same request is dropped here.
	select {
	case p.ch <- answer:
		return true
	default:
		return false
	}
}

// Pending returns the conversation's pending request, or nil.
func (m *Manager) Pending(conversationID string) *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[conversationID]; ok {
		return p.req
	}
	return nil
}

// cleanup removes the entry only while it is still the one the waiter was
// blocked on; a replacement created in the meantime must stay pending.
func (m *Manager) cleanup(conversationID string, p *pendingRequest) {
	m.mu.Lock()
	if cur, ok := m.pending[conversationID]; ok && cur == p {
		delete(m.pending, conversationID)
	}
	m.mu.Unlock()
}

func newRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("clar-%d", time.Now().UnixNano())
}
