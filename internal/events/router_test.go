package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmux/agentmux/internal/protocol"
	"github.com/agentmux/agentmux/internal/store"
)

func routeTask() *store.Task {
	return &store.Task{
		TaskID:         "task-1",
		ConversationID: "conv-1",
		AgentName:      "coder",
	}
}

func TestRouteBookkeepingStates(t *testing.T) {
	task := routeTask()

	result := Route(task, "thread-1", &protocol.StatusEvent{State: protocol.StateSubmitted})
	assert.Empty(t, result.Responses)
	assert.False(t, result.Done)

	result = Route(task, "thread-1", &protocol.StatusEvent{State: protocol.StateCompleted, Message: "ignored"})
	assert.Empty(t, result.Responses, "completed carries no user-visible response")
	assert.True(t, result.Done)
	assert.False(t, result.FailTask)
}

func TestRouteFailed(t *testing.T) {
	result := Route(routeTask(), "thread-1", &protocol.StatusEvent{
		State:   protocol.StateFailed,
		Message: "tool exploded",
	})

	require.Len(t, result.Responses, 1)
	assert.Equal(t, KindTaskFailed, result.Responses[0].Kind)
	assert.Equal(t, "tool exploded", result.Responses[0].Content)
	assert.True(t, result.Done)
	assert.True(t, result.FailTask)
	assert.Equal(t, "tool exploded", result.FailReason)
}

func TestRouteFailedWithoutMessage(t *testing.T) {
	result := Route(routeTask(), "thread-1", &protocol.StatusEvent{State: protocol.StateFailed})
	require.Len(t, result.Responses, 1)
	assert.NotEmpty(t, result.FailReason)
}

func TestRouteToolCallPriority(t *testing.T) {
	// Tool metadata wins even when message content is present.
	result := Route(routeTask(), "thread-1", &protocol.StatusEvent{
		State:   protocol.StateWorking,
		Message: "running grep",
		Metadata: map[string]any{
			protocol.MetaResponseEvent: protocol.EventToolCall,
			protocol.MetaToolCallID:    "call-9",
			protocol.MetaToolName:      "grep",
			protocol.MetaToolResult:    "3 matches",
		},
	})

	require.Len(t, result.Responses, 1)
	resp := result.Responses[0]
	assert.Equal(t, KindToolCall, resp.Kind)
	assert.Equal(t, "call-9", resp.ToolCallID)
	assert.Equal(t, "grep", resp.ToolName)
	assert.Equal(t, "3 matches", resp.ToolResult)
	assert.False(t, result.Done)
}

func TestRouteToolCallByMetadataAlone(t *testing.T) {
	result := Route(routeTask(), "thread-1", &protocol.StatusEvent{
		State:    protocol.StateWorking,
		Metadata: map[string]any{protocol.MetaToolName: "fetch"},
	})
	require.Len(t, result.Responses, 1)
	assert.Equal(t, KindToolCall, result.Responses[0].Kind)
}

func TestRouteReasoning(t *testing.T) {
	result := Route(routeTask(), "thread-1", &protocol.StatusEvent{
		State:    protocol.StateWorking,
		Message:  "thinking about it",
		Metadata: map[string]any{protocol.MetaResponseEvent: protocol.EventReasoning},
	})
	require.Len(t, result.Responses, 1)
	assert.Equal(t, KindReasoning, result.Responses[0].Kind)
}

func TestRouteComponentGenerator(t *testing.T) {
	result := Route(routeTask(), "thread-1", &protocol.StatusEvent{
		State:   protocol.StateWorking,
		Message: "{}",
		Metadata: map[string]any{
			protocol.MetaResponseEvent: protocol.EventComponentGenerator,
			protocol.MetaComponentType: "chart",
		},
	})
	require.Len(t, result.Responses, 1)
	assert.Equal(t, KindComponentGenerator, result.Responses[0].Kind)
	assert.Equal(t, "chart", result.Responses[0].ComponentType)
}

func TestRoutePlainMessage(t *testing.T) {
	result := Route(routeTask(), "thread-1", &protocol.StatusEvent{
		State:   protocol.StateWorking,
		Message: "partial answer",
	})
	require.Len(t, result.Responses, 1)
	resp := result.Responses[0]
	assert.Equal(t, KindMessage, resp.Kind)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "thread-1", resp.ThreadID)
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "coder", resp.AgentName)
}

func TestRouteEmptyWorkingEvent(t *testing.T) {
	result := Route(routeTask(), "thread-1", &protocol.StatusEvent{State: protocol.StateWorking})
	assert.Empty(t, result.Responses, "empty working events are tolerated silently")
	assert.False(t, result.Done)
}
