package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/llm"
	"github.com/agentmux/agentmux/internal/protocol"
	"github.com/agentmux/agentmux/internal/store"
)

// scriptedGen replays canned replies in order, repeating the last one.
type scriptedGen struct {
	replies []string
	err     error
	calls   int
	seen    []*llm.ChatRequest
}

func (g *scriptedGen) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	g.seen = append(g.seen, req)
	if g.err != nil {
		return nil, g.err
	}
	idx := g.calls
	if idx >= len(g.replies) {
		idx = len(g.replies) - 1
	}
	g.calls++
	return &llm.ChatResponse{Content: g.replies[idx]}, nil
}

func (g *scriptedGen) DefaultModel() string { return "test-model" }

type cardList []protocol.AgentCard

func (c cardList) ListAvailableAgents() []protocol.AgentCard { return c }

func testCards() cardList {
	return cardList{
		{Name: "coder", Description: "Writes code", Skills: []protocol.Skill{{ID: "code", Description: "coding"}}},
		{Name: "monitor", Description: "Watches things"},
	}
}

func testInput(handoff bool) PlanInput {
	return PlanInput{
		Query:          "build a report",
		ConversationID: "conv-1",
		ThreadID:       "thread-1",
		UserID:         "u1",
		Handoff:        handoff,
	}
}

func modelCfg() config.ModelConfig {
	return config.ModelConfig{Name: "test-model", MaxRounds: 3}
}

func TestCreatePlanNoAgents(t *testing.T) {
	p := New(&scriptedGen{replies: []string{"{}"}}, cardList{}, modelCfg())

	result := p.CreatePlan(context.Background(), testInput(true), nil)
	require.False(t, result.Adequate)
	assert.NotEmpty(t, result.GuidanceMessage)
	assert.Empty(t, result.Tasks)
}

func TestCreatePlanAdequateHandoff(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		`{"adequate": true, "reason": "fits", "tasks": [
			{"agent_name": "coder", "query": "write it", "pattern": "once"},
			{"agent_name": "monitor", "query": "watch it", "pattern": "RECURRING", "interval_minutes": 5}
		]}`,
	}}
	p := New(gen, testCards(), modelCfg())

	result := p.CreatePlan(context.Background(), testInput(true), nil)
	require.True(t, result.Adequate)
	require.Len(t, result.Tasks, 2)

	first := result.Tasks[0]
	assert.NotEqual(t, "conv-1", first.ConversationID, "handoff plans mint fresh conversations")
	assert.Equal(t, "thread-1", first.ThreadID, "thread is always inherited")
	assert.True(t, first.HandoffFromSuperAgent)
	assert.Equal(t, store.PatternOnce, first.Pattern)

	second := result.Tasks[1]
	assert.Equal(t, store.PatternRecurring, second.Pattern)
	assert.Equal(t, 5, second.Schedule.IntervalMinutes)
	assert.NotEqual(t, first.ConversationID, second.ConversationID)
}

func TestCreatePlanDirectKeepsConversation(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		`{"adequate": true, "tasks": [{"agent_name": "coder", "query": "go"}]}`,
	}}
	p := New(gen, testCards(), modelCfg())

	result := p.CreatePlan(context.Background(), testInput(false), nil)
	require.True(t, result.Adequate)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "conv-1", result.Tasks[0].ConversationID)
	assert.False(t, result.Tasks[0].HandoffFromSuperAgent)
}

func TestCreatePlanClarificationResumesOnce(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		`{"adequate": false, "missing_fields": [{"prompt": "Which repo?"}]}`,
		`{"adequate": true, "tasks": [{"agent_name": "coder", "query": "fix main repo"}]}`,
	}}
	p := New(gen, testCards(), modelCfg())

	var prompts []string
	provide := func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "the main repo", nil
	}

	result := p.CreatePlan(context.Background(), testInput(true), provide)
	require.True(t, result.Adequate)
	require.Len(t, result.Tasks, 1)

	require.Equal(t, []string{"Which repo?"}, prompts, "each field is asked exactly once")
	require.Equal(t, 2, gen.calls)

	// The answered prompt is carried into the second generation pass.
	second := gen.seen[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "Which repo?")
	assert.Contains(t, last.Content, "the main repo")
}

func TestCreatePlanClarificationError(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		`{"missing_fields": [{"prompt": "Which repo?"}]}`,
	}}
	p := New(gen, testCards(), modelCfg())

	provide := func(_ context.Context, _ string) (string, error) {
		return "", fmt.Errorf("user went away")
	}

	result := p.CreatePlan(context.Background(), testInput(true), provide)
	require.False(t, result.Adequate)
	assert.Contains(t, result.Reason, "user went away")
}

func TestCreatePlanWithoutInputChannel(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		`{"missing_fields": [{"prompt": "Which repo?"}]}`,
	}}
	p := New(gen, testCards(), modelCfg())

	result := p.CreatePlan(context.Background(), testInput(true), nil)
	require.False(t, result.Adequate)
	assert.NotEmpty(t, result.GuidanceMessage)
}

func TestCreatePlanRoundsExhausted(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		`{"missing_fields": [{"prompt": "And then?"}]}`,
	}}
	p := New(gen, testCards(), modelCfg())

	provide := func(_ context.Context, _ string) (string, error) { return "more", nil }

	result := p.CreatePlan(context.Background(), testInput(true), provide)
	require.False(t, result.Adequate)
	assert.Equal(t, 3, gen.calls, "loop is bounded by MaxRounds")
}

func TestCreatePlanBackendError(t *testing.T) {
	p := New(&scriptedGen{err: fmt.Errorf("upstream 500")}, testCards(), modelCfg())

	result := p.CreatePlan(context.Background(), testInput(true), nil)
	require.False(t, result.Adequate)
	assert.Contains(t, result.Reason, "upstream 500")
	assert.NotEmpty(t, result.GuidanceMessage)
}

func TestCreatePlanUnparseableReply(t *testing.T) {
	p := New(&scriptedGen{replies: []string{"sure, here is a plan!"}}, testCards(), modelCfg())

	result := p.CreatePlan(context.Background(), testInput(true), nil)
	require.False(t, result.Adequate)
}

func TestCreatePlanUnknownAgent(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		`{"adequate": true, "tasks": [{"agent_name": "ghost", "query": "boo"}]}`,
	}}
	p := New(gen, testCards(), modelCfg())

	result := p.CreatePlan(context.Background(), testInput(true), nil)
	require.False(t, result.Adequate)
	assert.Contains(t, result.Reason, "ghost")
}

func TestCreatePlanInadequateWithGuidance(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		`{"adequate": false, "reason": "no capable agent", "guidance_message": "Try registering a browsing agent."}`,
	}}
	p := New(gen, testCards(), modelCfg())

	result := p.CreatePlan(context.Background(), testInput(true), nil)
	require.False(t, result.Adequate)
	assert.Equal(t, "Try registering a browsing agent.", result.GuidanceMessage)
	assert.Empty(t, result.Tasks)
}

func TestParseReplyWithFences(t *testing.T) {
	reply, err := parseReply("Here you go:\n```json\n{\"adequate\": true, \"tasks\": [{\"agent_name\": \"coder\", \"query\": \"x\"}]}\n```")
	require.NoError(t, err)
	assert.True(t, reply.Adequate)
	require.Len(t, reply.Tasks, 1)
}
