package triage

import (
	"context"
	"fmt"
	"testing"

	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/llm"
	"github.com/agentmux/agentmux/internal/session"
)

type stubGen struct {
	reply string
	err   error
	last  *llm.ChatRequest
}

func (g *stubGen) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &llm.ChatResponse{Content: g.reply}, nil
}

func (g *stubGen) DefaultModel() string { return "test-model" }

func newTestAgent(t *testing.T, gen llm.Generator) *Agent {
	t.Helper()
	return New(gen, session.NewManager(t.TempDir()), config.ModelConfig{Name: "test-model"})
}

func TestDecideAnswer(t *testing.T) {
	gen := &stubGen{reply: `{"action": "answer", "answer_content": "Paris."}`}
	agent := newTestAgent(t, gen)

	d, err := agent.Decide(context.Background(), "capital of France?", "conv-1", "u1")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Action != ActionAnswer || d.AnswerContent != "Paris." {
		t.Fatalf("decision = %+v", d)
	}
}

func TestDecideHandoff(t *testing.T) {
	gen := &stubGen{reply: `{"action": "handoff", "enriched_query": "check the build status", "reason": "needs CI access"}`}
	agent := newTestAgent(t, gen)

	d, err := agent.Decide(context.Background(), "is the build green?", "conv-1", "u1")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Action != ActionHandoff || d.EnrichedQuery != "check the build status" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestDecideHandoffDefaultsEnrichedQuery(t *testing.T) {
	gen := &stubGen{reply: `{"action": "handoff"}`}
	agent := newTestAgent(t, gen)

	d, err := agent.Decide(context.Background(), "do the thing", "conv-1", "u1")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.EnrichedQuery != "do the thing" {
		t.Fatalf("enriched query = %q", d.EnrichedQuery)
	}
}

func TestDecideBackendError(t *testing.T) {
	agent := newTestAgent(t, &stubGen{err: fmt.Errorf("rate limited")})
	if _, err := agent.Decide(context.Background(), "hello", "conv-1", "u1"); err == nil {
		t.Fatal("backend errors must surface to the caller")
	}
}

func TestDecideKeepsConversationMemory(t *testing.T) {
	gen := &stubGen{reply: `{"action": "answer", "answer_content": "ok"}`}
	agent := newTestAgent(t, gen)

	if _, err := agent.Decide(context.Background(), "first", "conv-1", "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := agent.Decide(context.Background(), "second", "conv-1", "u1"); err != nil {
		t.Fatal(err)
	}

	// system + first user + first reply + second user
	if got := len(gen.last.Messages); got != 4 {
		t.Fatalf("got %d messages, want prior turns included (4)", got)
	}
}

func TestParseDecisionUnparseable(t *testing.T) {
	d := parseDecision("I think you should just do it yourself")
	if d.Action != ActionHandoff {
		t.Fatalf("unparseable reply should hand off, got %+v", d)
	}
	if d.Reason == "" {
		t.Fatal("reason should explain the degradation")
	}
}

func TestParseDecisionFenced(t *testing.T) {
	d := parseDecision("```json\n{\"action\": \"answer\", \"answer_content\": \"42\"}\n```")
	if d.Action != ActionAnswer || d.AnswerContent != "42" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestParseDecisionAnswerWithoutContent(t *testing.T) {
	d := parseDecision(`{"action": "answer"}`)
	if d.Action != ActionHandoff {
		t.Fatal("empty answers must degrade to handoff")
	}
}

func TestParseDecisionUnknownAction(t *testing.T) {
	d := parseDecision(`{"action": "escalate"}`)
	if d.Action != ActionHandoff {
		t.Fatal("unknown actions must degrade to handoff")
	}
}
