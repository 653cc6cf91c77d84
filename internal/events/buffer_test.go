package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushed []Response
}

func (r *flushRecorder) record(resp Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed = append(r.flushed, resp)
}

func (r *flushRecorder) all() []Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Response, len(r.flushed))
	copy(out, r.flushed)
	return out
}

func chunk(content string) Response {
	return Response{
		Kind:           KindMessage,
		ConversationID: "conv-1",
		ThreadID:       "thread-1",
		TaskID:         "task-1",
		AgentName:      "coder",
		Content:        content,
	}
}

func TestBufferCoalescesIntoSingleFlush(t *testing.T) {
	rec := &flushRecorder{}
	buf := NewBuffer(100, time.Hour, rec.record)

	for _, c := range []string{"hel", "lo ", "wor", "ld"} {
		buf.Add(chunk(c))
	}
	require.Empty(t, rec.all(), "nothing should flush before a trigger")

	buf.Flush("conv-1", "thread-1", "task-1")
	flushed := rec.all()
	require.Len(t, flushed, 1, "exactly one item per coalesced run")
	assert.Equal(t, "hello world", flushed[0].Content)
	assert.Equal(t, "coder", flushed[0].AgentName)

	// Flushing again must not duplicate.
	buf.Flush("conv-1", "thread-1", "task-1")
	assert.Len(t, rec.all(), 1)
}

func TestBufferFlushesOnChunkCap(t *testing.T) {
	rec := &flushRecorder{}
	buf := NewBuffer(3, time.Hour, rec.record)

	buf.Add(chunk("a"))
	buf.Add(chunk("b"))
	require.Empty(t, rec.all())
	buf.Add(chunk("c"))

	flushed := rec.all()
	require.Len(t, flushed, 1)
	assert.Equal(t, "abc", flushed[0].Content)
}

func TestBufferFlushesOnAge(t *testing.T) {
	rec := &flushRecorder{}
	buf := NewBuffer(100, 30*time.Millisecond, rec.record)

	buf.Add(chunk("slow"))
	assert.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "slow", rec.all()[0].Content)
}

func TestBufferKeysAreIndependent(t *testing.T) {
	rec := &flushRecorder{}
	buf := NewBuffer(100, time.Hour, rec.record)

	buf.Add(chunk("one"))
	other := chunk("two")
	other.AgentName = "reviewer"
	buf.Add(other)

	buf.Flush("conv-1", "thread-1", "task-1")
	flushed := rec.all()
	require.Len(t, flushed, 2, "both agents' runs share the task scope")

	contents := []string{flushed[0].Content, flushed[1].Content}
	assert.ElementsMatch(t, []string{"one", "two"}, contents)
}

func TestBufferFlushAll(t *testing.T) {
	rec := &flushRecorder{}
	buf := NewBuffer(100, time.Hour, rec.record)

	buf.Add(chunk("a"))
	b := chunk("b")
	b.TaskID = "task-2"
	buf.Add(b)

	buf.FlushAll()
	assert.Len(t, rec.all(), 2)
}
