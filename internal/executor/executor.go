// Package executor drives task execution against remote agents: protocol
// streaming, status-event routing, lifecycle transitions, and recurring
// re-invocation.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/events"
	"github.com/agentmux/agentmux/internal/protocol"
	"github.com/agentmux/agentmux/internal/store"
)

// ClientSource resolves protocol clients by agent name.
type ClientSource interface {
	GetClient(ctx context.Context, name string) (*protocol.Client, error)
}

// pendingRearm is one scheduled recurring re-invocation.
type pendingRearm struct {
	timer          *time.Timer
	conversationID string
}

// Executor runs tasks. Concurrent rounds are capped by a counting
// semaphore; recurring tasks are rearmed through per-task timers.
type Executor struct {
	store   *store.Store
	clients ClientSource
	events  *events.Service
	sem     *semaphore

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	rearms map[string]*pendingRearm // keyed by task id
}

// New creates an executor. Close must be called to drop pending rearm
// timers.
func New(st *store.Store, clients ClientSource, ev *events.Service, cfg config.ExecutorConfig) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		store:   st,
		clients: clients,
		events:  ev,
		sem:     newSemaphore(cfg.MaxConcurrentTasks),
		baseCtx: ctx,
		cancel:  cancel,
		rearms:  make(map[string]*pendingRearm),
	}
}

// Execute runs one task round to its terminal state, forwarding every
// routed response to out. Remote failures (explicit failed status,
// transport error, timeout) are routed to the failed path and do not
// surface as an error; the returned error covers only cancellation and
// executor shutdown.
func (e *Executor) Execute(ctx context.Context, task *store.Task, out *events.Stream) error {
	if err := e.sem.acquire(ctx); err != nil {
		return err
	}
	defer e.sem.release()

	return e.runRound(ctx, task, out)
}

// ExecuteAll runs tasks concurrently and waits for every round to end.
func (e *Executor) ExecuteAll(ctx context.Context, tasks []store.Task, out *events.Stream) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range tasks {
		task := tasks[i]
		g.Go(func() error {
			return e.Execute(ctx, &task, out)
		})
	}
	return g.Wait()
}

// CancelConversation cancels every non-terminal task of the conversation
// and drops all of its pending recurring timers. Returns the number of
// tasks transitioned.
func (e *Executor) CancelConversation(conversationID string) (int, error) {
	e.mu.Lock()
	for taskID, rearm := range e.rearms {
		if rearm.conversationID == conversationID {
			rearm.timer.Stop()
			delete(e.rearms, taskID)
		}
	}
	e.mu.Unlock()

	return e.store.CancelConversationTasks(conversationID)
}

// Close drops all pending rearm timers. Running rounds finish normally.
func (e *Executor) Close() {
	e.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	for taskID, rearm := range e.rearms {
		rearm.timer.Stop()
		delete(e.rearms, taskID)
	}
}

func (e *Executor) runRound(ctx context.Context, task *store.Task, out *events.Stream) error {
	_, _ = e.store.SubmitTask(task.TaskID)

	client, err := e.clients.GetClient(ctx, task.AgentName)
	if err != nil {
		e.failRound(ctx, task, fmt.Sprintf("agent %s unavailable: %v", task.AgentName, err), out)
		return nil
	}

	if _, err := e.store.StartTask(task.TaskID); err != nil {
		return fmt.Errorf("start task %s: %w", task.TaskID, err)
	}

	stream, err := client.SendStream(ctx, &protocol.SendRequest{
		Query:     task.Query,
		TaskID:    task.TaskID,
		SessionID: task.ConversationID,
	})
	if err != nil {
		e.failRound(ctx, task, fmt.Sprintf("send to agent %s failed: %v", task.AgentName, err), out)
		return nil
	}

	slog.Info("Task round started", "task_id", task.TaskID, "agent", task.AgentName, "pattern", task.Pattern)

	terminal := false
	failed := false
	for ev := range stream {
		if e.canceled(task.TaskID) {
			// Stop forwarding; a canceled task never rearms.
			e.events.FlushTaskResponse(task.ConversationID, task.ThreadID, task.TaskID)
			return nil
		}

		result := events.Route(task, task.ThreadID, &ev)
		for _, resp := range result.Responses {
			annotated := e.events.Emit(resp)
			e.forward(ctx, out, annotated)
		}
		if result.FailTask {
			_, _ = e.store.FailTask(task.TaskID, result.FailReason)
			failed = true
		}
		if result.Done {
			terminal = true
			break
		}
	}

	e.events.FlushTaskResponse(task.ConversationID, task.ThreadID, task.TaskID)

	if !terminal {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.failRound(ctx, task, fmt.Sprintf("agent %s stream ended without a terminal status", task.AgentName), out)
		return nil
	}
	if failed {
		// A failed round also terminates a recurring schedule.
		return nil
	}

	if _, err := e.store.CompleteTask(task.TaskID); err != nil {
		return fmt.Errorf("complete task %s: %w", task.TaskID, err)
	}
	slog.Info("Task round completed", "task_id", task.TaskID, "agent", task.AgentName)

	if task.Pattern == store.PatternRecurring {
		e.scheduleRearm(task)
	}
	return nil
}

// failRound transitions the task to failed and emits the matching
// task_failed response, mirroring the routed path for explicit failures.
func (e *Executor) failRound(ctx context.Context, task *store.Task, reason string, out *events.Stream) {
	_, _ = e.store.FailTask(task.TaskID, reason)
	resp := e.events.Emit(events.Response{
		Kind:           events.KindTaskFailed,
		ConversationID: task.ConversationID,
		ThreadID:       task.ThreadID,
		TaskID:         task.TaskID,
		AgentName:      task.AgentName,
		Content:        reason,
	})
	e.forward(ctx, out, resp)
	slog.Warn("Task round failed", "task_id", task.TaskID, "agent", task.AgentName, "reason", reason)
}

func (e *Executor) forward(ctx context.Context, out *events.Stream, resp events.Response) {
	if out != nil {
		out.Send(ctx, resp)
	}
}

func (e *Executor) canceled(taskID string) bool {
	task, err := e.store.GetTask(taskID)
	if err != nil || task == nil {
		return true
	}
	return task.State == store.TaskCanceled
}

// scheduleRearm arms the timer for a recurring task's next round. Rearmed
// rounds run detached from the originating request: their responses are
// persisted through the event service but have no live stream to reach.
func (e *Executor) scheduleRearm(task *store.Task) {
	delay, ok := NextExecutionDelay(task.Schedule, time.Now())
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rearms[task.TaskID]; exists {
		return
	}

	taskID := task.TaskID
	e.rearms[taskID] = &pendingRearm{
		conversationID: task.ConversationID,
		timer:          time.AfterFunc(delay, func() { e.fireRearm(taskID) }),
	}
	slog.Info("Recurring task scheduled", "task_id", taskID, "delay", delay)
}

func (e *Executor) fireRearm(taskID string) {
	e.mu.Lock()
	delete(e.rearms, taskID)
	e.mu.Unlock()

	ok, err := e.store.RearmTask(taskID)
	if err != nil {
		slog.Warn("Rearm failed", "task_id", taskID, "error", err)
		return
	}
	if !ok {
		// Task was canceled or otherwise left the completed state.
		return
	}

	task, err := e.store.GetTask(taskID)
	if err != nil || task == nil {
		return
	}
	if err := e.Execute(e.baseCtx, task, nil); err != nil {
		slog.Warn("Recurring round aborted", "task_id", taskID, "error", err)
	}
}
