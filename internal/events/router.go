package events

import (
	"github.com/agentmux/agentmux/internal/protocol"
	"github.com/agentmux/agentmux/internal/store"
)

// RouteResult is the outcome of translating one status event.
type RouteResult struct {
	Responses  []Response
	Done       bool   // the stream reached a terminal event
	FailTask   bool   // the task should transition to failed
	FailReason string // reason carried on the failed transition
}

// Route translates a raw protocol status event into zero or more domain
// responses. Pure: no persistence, no state transitions; callers apply the
// fail side effect themselves. The classification is a strict priority
// list, only the first matching rule fires.
func Route(task *store.Task, threadID string, ev *protocol.StatusEvent) RouteResult {
	base := Response{
		ConversationID: task.ConversationID,
		ThreadID:       threadID,
		TaskID:         task.TaskID,
		AgentName:      task.AgentName,
	}

	switch ev.State {
	case protocol.StateSubmitted:
		// Transport bookkeeping, not user-visible.
		return RouteResult{}

	case protocol.StateCompleted:
		return RouteResult{Done: true}

	case protocol.StateFailed:
		reason := ev.Message
		if reason == "" {
			reason = "task failed"
		}
		base.Kind = KindTaskFailed
		base.Content = reason
		return RouteResult{
			Responses:  []Response{base},
			Done:       true,
			FailTask:   true,
			FailReason: reason,
		}

	case protocol.StateWorking:
		switch {
		case isToolCall(ev):
			base.Kind = KindToolCall
			base.Content = ev.Message
			base.ToolCallID = ev.MetaString(protocol.MetaToolCallID)
			base.ToolName = ev.MetaString(protocol.MetaToolName)
			base.ToolResult = ev.MetaString(protocol.MetaToolResult)
			return RouteResult{Responses: []Response{base}}

		case ev.ResponseEvent() == protocol.EventReasoning:
			base.Kind = KindReasoning
			base.Content = ev.Message
			return RouteResult{Responses: []Response{base}}

		case ev.ResponseEvent() == protocol.EventComponentGenerator:
			base.Kind = KindComponentGenerator
			base.Content = ev.Message
			base.ComponentType = ev.MetaString(protocol.MetaComponentType)
			return RouteResult{Responses: []Response{base}}

		case ev.Message != "":
			base.Kind = KindMessage
			base.Content = ev.Message
			return RouteResult{Responses: []Response{base}}
		}
	}

	// Unknown states and empty working events are tolerated silently.
	return RouteResult{}
}

func isToolCall(ev *protocol.StatusEvent) bool {
	if ev.ResponseEvent() == protocol.EventToolCall {
		return true
	}
	return ev.MetaString(protocol.MetaToolCallID) != "" || ev.MetaString(protocol.MetaToolName) != ""
}
