package events

import (
	"strings"
	"sync"
	"time"
)

type bufferKey struct {
	conversationID string
	threadID       string
	taskID         string
	agentName      string
}

type bufferEntry struct {
	base    Response // ids and timestamp from the first chunk
	content strings.Builder
	chunks  int
	timer   *time.Timer
}

// Buffer coalesces streamed message chunks so that one persisted item
// results per run instead of one per fragment. Chunks accumulate per
// (conversation, thread, task, agent) key and flush on an explicit call,
// on reaching maxChunks, or after maxAge since the first chunk.
type Buffer struct {
	mu        sync.Mutex
	maxChunks int
	maxAge    time.Duration
	flushFn   func(Response)
	entries   map[bufferKey]*bufferEntry
}

// NewBuffer creates a buffer that delivers coalesced responses to flushFn.
func NewBuffer(maxChunks int, maxAge time.Duration, flushFn func(Response)) *Buffer {
	if maxChunks <= 0 {
		maxChunks = 32
	}
	if maxAge <= 0 {
		maxAge = 2 * time.Second
	}
	return &Buffer{
		maxChunks: maxChunks,
		maxAge:    maxAge,
		flushFn:   flushFn,
		entries:   make(map[bufferKey]*bufferEntry),
	}
}

// Add accumulates one message chunk, flushing when the chunk cap is hit.
func (b *Buffer) Add(resp Response) {
	key := bufferKey{resp.ConversationID, resp.ThreadID, resp.TaskID, resp.AgentName}

	b.mu.Lock()
	entry, ok := b.entries[key]
	if !ok {
		entry = &bufferEntry{base: resp}
		entry.timer = time.AfterFunc(b.maxAge, func() { b.flushKey(key) })
		b.entries[key] = entry
	}
	entry.content.WriteString(resp.Content)
	entry.chunks++

	if entry.chunks >= b.maxChunks {
		b.mu.Unlock()
		b.flushKey(key)
		return
	}
	b.mu.Unlock()
}

// Flush drains any buffered run for the given task scope. Safe to call when
// nothing is buffered.
func (b *Buffer) Flush(conversationID, threadID, taskID string) {
	b.mu.Lock()
	var keys []bufferKey
	for key := range b.entries {
		if key.conversationID == conversationID && key.threadID == threadID && key.taskID == taskID {
			keys = append(keys, key)
		}
	}
	b.mu.Unlock()

	for _, key := range keys {
		b.flushKey(key)
	}
}

// FlushAll drains every buffered run.
func (b *Buffer) FlushAll() {
	b.mu.Lock()
	keys := make([]bufferKey, 0, len(b.entries))
	for key := range b.entries {
		keys = append(keys, key)
	}
	b.mu.Unlock()

	for _, key := range keys {
		b.flushKey(key)
	}
}

func (b *Buffer) flushKey(key bufferKey) {
	b.mu.Lock()
	entry, ok := b.entries[key]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.entries, key)
	entry.timer.Stop()
	resp := entry.base
	resp.Content = entry.content.String()
	b.mu.Unlock()

	b.flushFn(resp)
}
