// Package orchestrator composes triage, planning, clarification, task
// execution, and the event pipeline into one request-processing façade.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agentmux/agentmux/internal/clarify"
	"github.com/agentmux/agentmux/internal/events"
	"github.com/agentmux/agentmux/internal/executor"
	"github.com/agentmux/agentmux/internal/planner"
	"github.com/agentmux/agentmux/internal/registry"
	"github.com/agentmux/agentmux/internal/store"
	"github.com/agentmux/agentmux/internal/triage"
)

// UserInput is one message from the user.
type UserInput struct {
	ConversationID string
	ThreadID       string // minted when empty; one thread per processing round
	UserID         string
	Content        string

	// SkipTriage plans directly without the triage pass. Tasks planned
	// this way stay in the parent conversation.
	SkipTriage bool
}

// Orchestrator is the top-level request pipeline.
type Orchestrator struct {
	store    *store.Store
	registry *registry.Registry
	triage   *triage.Agent
	planner  *planner.Planner
	clarify  *clarify.Manager
	events   *events.Service
	executor *executor.Executor
}

// New assembles an orchestrator from its components.
func New(
	st *store.Store,
	reg *registry.Registry,
	tri *triage.Agent,
	pl *planner.Planner,
	cl *clarify.Manager,
	ev *events.Service,
	ex *executor.Executor,
) *Orchestrator {
	return &Orchestrator{
		store:    st,
		registry: reg,
		triage:   tri,
		planner:  pl,
		clarify:  cl,
		events:   ev,
		executor: ex,
	}
}

// ProcessUserInput runs the pipeline for one user message and returns the
// stream of domain responses it produces. The channel is closed when the
// round ends. Errors never escape: any failure inside the pipeline is
// converted into a persisted failure response on the stream.
func (o *Orchestrator) ProcessUserInput(ctx context.Context, in UserInput) <-chan events.Response {
	if in.ConversationID == "" {
		in.ConversationID = uuid.NewString()
	}
	if in.ThreadID == "" {
		in.ThreadID = uuid.NewString()
	}

	out := events.NewStream(64)
	go func() {
		defer out.Close()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Pipeline panic", "conversation_id", in.ConversationID, "panic", r)
				resp := o.events.Emit(events.Response{
					Kind:           events.KindTaskFailed,
					ConversationID: in.ConversationID,
					ThreadID:       in.ThreadID,
					Content:        fmt.Sprintf("internal error: %v", r),
				})
				out.Send(ctx, resp)
			}
		}()
		o.process(ctx, in, out)
	}()
	return out.Ch()
}

// CancelConversation cancels the conversation's tasks, drops its pending
// recurring timers, and abandons any pending clarification.
func (o *Orchestrator) CancelConversation(conversationID string) (int, error) {
	o.clarify.Resolve(conversationID, "")
	_, _ = o.store.SetConversationStatus(conversationID, store.ConversationActive)
	return o.executor.CancelConversation(conversationID)
}

// Close shuts down execution and event delivery and stops spawned agents.
func (o *Orchestrator) Close() {
	o.executor.Close()
	o.registry.StopAll()
	o.events.Close()
}

func (o *Orchestrator) process(ctx context.Context, in UserInput, out *events.Stream) {
	if _, err := o.store.EnsureConversation(in.ConversationID, in.UserID, ""); err != nil {
		slog.Warn("Ensure conversation failed", "conversation_id", in.ConversationID, "error", err)
	}
	// A conversation waiting on a clarification treats the next user
	// message as the answer; the original round resumes on its own stream.
	// The answer item is stamped with the paused round's thread so the
	// whole exchange stays grouped. When the resolve loses a race against
	// the round ending, the message falls through as a normal input.
	if p := o.clarify.Pending(in.ConversationID); p != nil {
		answer := in
		answer.ThreadID = p.ThreadID
		o.appendUserItem(answer)
		if o.clarify.Resolve(in.ConversationID, in.Content) {
			return
		}
	} else {
		o.appendUserItem(in)
	}

	query := in.Content
	handoff := true
	if !in.SkipTriage {
		decision := o.runTriage(ctx, in)
		if decision.Action == triage.ActionAnswer {
			resp := o.events.Emit(events.Response{
				Kind:           events.KindMessage,
				ConversationID: in.ConversationID,
				ThreadID:       in.ThreadID,
				Content:        decision.AnswerContent,
			})
			out.Send(ctx, resp)
			return
		}
		if decision.EnrichedQuery != "" {
			query = decision.EnrichedQuery
		}
	} else {
		handoff = false
	}

	plan := o.planner.CreatePlan(ctx, planner.PlanInput{
		Query:          query,
		ConversationID: in.ConversationID,
		ThreadID:       in.ThreadID,
		UserID:         in.UserID,
		Handoff:        handoff,
	}, o.provideInputFunc(in, out))

	if !plan.Adequate {
		slog.Info("Plan inadequate", "conversation_id", in.ConversationID, "reason", plan.Reason)
		resp := o.events.Emit(events.Response{
			Kind:           events.KindGuidance,
			ConversationID: in.ConversationID,
			ThreadID:       in.ThreadID,
			Content:        plan.GuidanceMessage,
		})
		out.Send(ctx, resp)
		return
	}

	tasks := make([]store.Task, 0, len(plan.Tasks))
	for i := range plan.Tasks {
		task := plan.Tasks[i]
		if task.ConversationID != in.ConversationID {
			if _, err := o.store.EnsureConversation(task.ConversationID, in.UserID, ""); err != nil {
				slog.Warn("Ensure task conversation failed", "conversation_id", task.ConversationID, "error", err)
			}
		}
		created, err := o.store.CreateTask(&task)
		if err != nil {
			o.emitFailure(ctx, in, out, fmt.Sprintf("create task for agent %s: %v", task.AgentName, err))
			continue
		}
		tasks = append(tasks, *created)
	}
	if len(tasks) == 0 {
		return
	}

	if err := o.executor.ExecuteAll(ctx, tasks, out); err != nil && ctx.Err() == nil {
		o.emitFailure(ctx, in, out, fmt.Sprintf("task execution aborted: %v", err))
	}
}

// runTriage never fails the pipeline: backend errors degrade to handoff.
func (o *Orchestrator) runTriage(ctx context.Context, in UserInput) *triage.Decision {
	decision, err := o.triage.Decide(ctx, in.Content, in.ConversationID, in.UserID)
	if err != nil {
		slog.Warn("Triage failed, handing off", "conversation_id", in.ConversationID, "error", err)
		return &triage.Decision{Action: triage.ActionHandoff, Reason: err.Error()}
	}
	return decision
}

// provideInputFunc bridges the planner's clarification pauses to the
// caller: the prompt is surfaced as a response, the conversation is
// marked awaiting input, and the answer arrives through a later
// ProcessUserInput call resolving the pending request.
func (o *Orchestrator) provideInputFunc(in UserInput, out *events.Stream) planner.InputFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		o.clarify.Create(in.ConversationID, in.ThreadID, prompt)

		resp := o.events.Emit(events.Response{
			Kind:           events.KindClarification,
			ConversationID: in.ConversationID,
			ThreadID:       in.ThreadID,
			Content:        prompt,
		})
		out.Send(ctx, resp)

		_, _ = o.store.SetConversationStatus(in.ConversationID, store.ConversationAwaitingUser)
		answer, err := o.clarify.Wait(ctx, in.ConversationID)
		_, _ = o.store.SetConversationStatus(in.ConversationID, store.ConversationActive)
		if err != nil {
			return "", err
		}
		if answer == "" {
			return "", fmt.Errorf("clarification abandoned")
		}
		return answer, nil
	}
}

func (o *Orchestrator) appendUserItem(in UserInput) {
	payload, _ := json.Marshal(map[string]string{"content": in.Content})
	if _, err := o.store.AppendItem(&store.Item{
		ConversationID: in.ConversationID,
		ThreadID:       in.ThreadID,
		Role:           store.RoleUser,
		Event:          events.KindMessage,
		Payload:        string(payload),
	}); err != nil {
		slog.Warn("Persist user item failed", "conversation_id", in.ConversationID, "error", err)
	}
}

func (o *Orchestrator) emitFailure(ctx context.Context, in UserInput, out *events.Stream, reason string) {
	resp := o.events.Emit(events.Response{
		Kind:           events.KindTaskFailed,
		ConversationID: in.ConversationID,
		ThreadID:       in.ThreadID,
		Content:        reason,
	})
	out.Send(ctx, resp)
}
