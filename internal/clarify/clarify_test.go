package clarify

import (
	"context"
	"testing"
	"time"
)

func TestResolveDeliversAnswerOnce(t *testing.T) {
	m := NewManager()
	req := m.Create("conv-1", "thread-1", "Which repository?")
	if req.ID == "" || req.ConversationID != "conv-1" || req.ThreadID != "thread-1" {
		t.Fatalf("bad request: %+v", req)
	}

	if !m.Resolve("conv-1", "the main one") {
		t.Fatal("first resolve should succeed")
	}
	if m.Resolve("conv-1", "again") {
		t.Fatal("duplicate resolve must return false")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	answer, err := m.Wait(ctx, "conv-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if answer != "the main one" {
		t.Fatalf("answer = %q", answer)
	}

	if m.Pending("conv-1") != nil {
		t.Fatal("request should be cleared after wait")
	}
}

func TestResolveWithoutPending(t *testing.T) {
	m := NewManager()
	if m.Resolve("conv-1", "answer") {
		t.Fatal("resolve without a pending request must return false")
	}
}

func TestWaitBlocksUntilResolved(t *testing.T) {
	m := NewManager()
	m.Create("conv-1", "thread-1", "When?")

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Resolve("conv-1", "tomorrow")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	answer, err := m.Wait(ctx, "conv-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if answer != "tomorrow" {
		t.Fatalf("answer = %q", answer)
	}
}

func TestWaitContextCancellation(t *testing.T) {
	m := NewManager()
	m.Create("conv-1", "thread-1", "When?")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Wait(ctx, "conv-1"); err == nil {
		t.Fatal("expected context error")
	}
	if m.Pending("conv-1") != nil {
		t.Fatal("abandoned request should be cleared")
	}
}

func TestWaitWithoutPending(t *testing.T) {
	m := NewManager()
	if _, err := m.Wait(context.Background(), "conv-1"); err == nil {
		t.Fatal("expected error for missing request")
	}
}

func TestCreateReplacesPending(t *testing.T) {
	m := NewManager()
	m.Create("conv-1", "thread-1", "first?")
	second := m.Create("conv-1", "thread-2", "second?")

	if got := m.Pending("conv-1"); got == nil || got.ID != second.ID {
		t.Fatal("second request should replace the first")
	}
}

func TestCreateReplacementSurvivesStaleWaiter(t *testing.T) {
	m := NewManager()
	m.Create("conv-1", "thread-1", "first?")

	waited := make(chan string, 1)
	go func() {
		answer, _ := m.Wait(context.Background(), "conv-1")
		waited <- answer
	}()
	// Let the waiter block on the first request before replacing it.
	time.Sleep(20 * time.Millisecond)

	second := m.Create("conv-1", "thread-2", "second?")

	if answer := <-waited; answer != "" {
		t.Fatalf("stale waiter answer = %q, want empty", answer)
	}
	if got := m.Pending("conv-1"); got == nil || got.ID != second.ID {
		t.Fatal("replacement must stay pending after the stale waiter cleans up")
	}
	if !m.Resolve("conv-1", "ok") {
		t.Fatal("resolving the replacement must succeed")
	}
}
