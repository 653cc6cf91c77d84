package events

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/store"
)

// Service is the event pipeline entry point: it annotates responses,
// coalesces streamed message chunks, and persists everything to the item
// log. Persistence is best-effort: a store failure is logged and the
// response still reaches the caller.
type Service struct {
	store  *store.Store
	buf    *Buffer
	mirror *Mirror
}

// NewService creates the event service. The mirror is optional and enabled
// by configuration.
func NewService(st *store.Store, cfg config.EventsConfig) *Service {
	s := &Service{store: st}
	s.buf = NewBuffer(cfg.BufferMaxChunks, cfg.BufferMaxAge, s.persist)
	if cfg.Kafka.Enabled && cfg.Kafka.Brokers != "" {
		s.mirror = NewMirror(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		slog.Info("Event mirror enabled", "topic", cfg.Kafka.Topic)
	}
	return s
}

// Emit annotates the response with an id and timestamp and routes it to
// persistence. Streamed task message chunks are buffered; every other kind
// first flushes the task's buffered run (so flush order matches arrival
// order) and is then persisted directly. The annotated response is
// returned for forwarding to the caller regardless of persistence outcome.
func (s *Service) Emit(resp Response) Response {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}

	if resp.Kind == KindMessage && resp.TaskID != "" {
		s.buf.Add(resp)
		return resp
	}

	if resp.TaskID != "" {
		s.buf.Flush(resp.ConversationID, resp.ThreadID, resp.TaskID)
	}
	s.persist(resp)
	return resp
}

// EmitMany emits responses in order.
func (s *Service) EmitMany(resps []Response) []Response {
	out := make([]Response, 0, len(resps))
	for _, resp := range resps {
		out = append(out, s.Emit(resp))
	}
	return out
}

// FlushTaskResponse drains any buffered content for a task's round. Called
// when the round ends so no buffered content outlives the task.
func (s *Service) FlushTaskResponse(conversationID, threadID, taskID string) {
	s.buf.Flush(conversationID, threadID, taskID)
}

// Close flushes all buffered runs and releases the mirror.
func (s *Service) Close() {
	s.buf.FlushAll()
	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			slog.Warn("Event mirror close failed", "error", err)
		}
	}
}

func (s *Service) persist(resp Response) {
	if resp.Content == "" && resp.Kind == KindMessage {
		return
	}

	if _, err := s.store.AppendItem(resp.item()); err != nil {
		slog.Warn("Persist response failed",
			"conversation_id", resp.ConversationID,
			"kind", resp.Kind,
			"error", err)
	}
	if s.mirror != nil {
		s.mirror.Publish(resp)
	}
}
