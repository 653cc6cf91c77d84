package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CreateTask persists a new task in the created state.
func (s *Store) CreateTask(task *Task) (*Task, error) {
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.Pattern == "" {
		task.Pattern = PatternOnce
	}
	if task.State == "" {
		task.State = TaskCreated
	}

	_, err := s.db.Exec(`
		INSERT INTO tasks
			(task_id, conversation_id, thread_id, user_id, agent_name, query, pattern,
			 interval_minutes, daily_time, cron, handoff, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.TaskID,
		task.ConversationID,
		task.ThreadID,
		task.UserID,
		task.AgentName,
		task.Query,
		task.Pattern,
		task.Schedule.IntervalMinutes,
		task.Schedule.DailyTime,
		task.Schedule.Cron,
		task.HandoffFromSuperAgent,
		task.State,
	)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return s.GetTask(task.TaskID)
}

// GetTask returns a task by task_id, or (nil, nil) if not found.
func (s *Store) GetTask(taskID string) (*Task, error) {
	var t Task
	var completedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, task_id, conversation_id, thread_id, user_id, agent_name, query, pattern,
			interval_minutes, daily_time, cron, handoff, state, error_reason,
			created_at, updated_at, completed_at
		FROM tasks WHERE task_id = ?
	`, taskID).Scan(
		&t.ID, &t.TaskID, &t.ConversationID, &t.ThreadID, &t.UserID, &t.AgentName,
		&t.Query, &t.Pattern,
		&t.Schedule.IntervalMinutes, &t.Schedule.DailyTime, &t.Schedule.Cron,
		&t.HandoffFromSuperAgent, &t.State, &t.ErrorReason,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// transition moves a task into the target state if its current state is one
// of the allowed source states. Returns false (no error) when the task is
// missing or the transition is not allowed.
func (s *Store) transition(taskID, target, errorReason string, terminal bool, from ...string) (bool, error) {
	query := `UPDATE tasks SET state = ?, error_reason = ?, updated_at = datetime('now')`
	if terminal {
		query += `, completed_at = datetime('now')`
	}
	query += ` WHERE task_id = ? AND state IN (`
	args := []any{target, errorReason, taskID}
	for i, st := range from {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, st)
	}
	query += ")"

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("transition task to %s: %w", target, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SubmitTask moves a created task to submitted.
func (s *Store) SubmitTask(taskID string) (bool, error) {
	return s.transition(taskID, TaskSubmitted, "", false, TaskCreated)
}

// StartTask moves a submitted (or freshly created) task to working.
func (s *Store) StartTask(taskID string) (bool, error) {
	return s.transition(taskID, TaskWorking, "", false, TaskCreated, TaskSubmitted)
}

// CompleteTask moves a working task to completed.
func (s *Store) CompleteTask(taskID string) (bool, error) {
	return s.transition(taskID, TaskCompleted, "", true, TaskSubmitted, TaskWorking)
}

// FailTask moves a non-terminal task to failed with the given reason.
func (s *Store) FailTask(taskID, reason string) (bool, error) {
	return s.transition(taskID, TaskFailed, reason, true, TaskCreated, TaskSubmitted, TaskWorking)
}

// CancelTask moves a non-terminal task to canceled. Canceling a task that is
// already terminal (including completed) returns false and changes nothing.
func (s *Store) CancelTask(taskID string) (bool, error) {
	return s.transition(taskID, TaskCanceled, "", true, TaskCreated, TaskSubmitted, TaskWorking)
}

// RearmTask returns a completed recurring task to submitted for its next
// scheduled round, retaining its task_id and history.
func (s *Store) RearmTask(taskID string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE tasks SET state = ?, completed_at = NULL, updated_at = datetime('now')
		WHERE task_id = ? AND state = ? AND pattern = ?
	`, TaskSubmitted, taskID, TaskCompleted, PatternRecurring)
	if err != nil {
		return false, fmt.Errorf("rearm task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CancelConversationTasks cancels every non-terminal task belonging to the
// conversation and returns the exact number of tasks transitioned.
func (s *Store) CancelConversationTasks(conversationID string) (int, error) {
	res, err := s.db.Exec(`
		UPDATE tasks SET state = ?, completed_at = datetime('now'), updated_at = datetime('now')
		WHERE conversation_id = ? AND state IN (?, ?, ?)
	`, TaskCanceled, conversationID, TaskCreated, TaskSubmitted, TaskWorking)
	if err != nil {
		return 0, fmt.Errorf("cancel conversation tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListTasks returns tasks filtered by conversation and/or state, newest first.
func (s *Store) ListTasks(conversationID, state string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, task_id, conversation_id, thread_id, user_id, agent_name, query, pattern,
		interval_minutes, daily_time, cron, handoff, state, error_reason,
		created_at, updated_at, completed_at
	FROM tasks WHERE 1=1`
	args := []any{}
	if conversationID != "" {
		query += " AND conversation_id = ?"
		args = append(args, conversationID)
	}
	if state != "" {
		query += " AND state = ?"
		args = append(args, state)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var completedAt sql.NullTime
		err := rows.Scan(
			&t.ID, &t.TaskID, &t.ConversationID, &t.ThreadID, &t.UserID, &t.AgentName,
			&t.Query, &t.Pattern,
			&t.Schedule.IntervalMinutes, &t.Schedule.DailyTime, &t.Schedule.Cron,
			&t.HandoffFromSuperAgent, &t.State, &t.ErrorReason,
			&t.CreatedAt, &t.UpdatedAt, &completedAt,
		)
		if err != nil {
			return nil, err
		}
		if completedAt.Valid {
			ts := completedAt.Time
			t.CompletedAt = &ts
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
