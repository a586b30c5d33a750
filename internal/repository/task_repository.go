package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// TaskRepository manages batch task records and the admission check.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs a TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListNonTerminal returns every task sharing the key that has not
// reached a terminal state, newest first, skipping the given task
// types. More than one result means the key was double-admitted
// through the check-then-act window; callers decide how to report it.
func (r *TaskRepository) ListNonTerminal(ctx context.Context, key string, excludeTypes []string) ([]models.Task, error) {
	const query = `SELECT id, task_type, task_key, task_state, task_input, task_output, requester_id, requester, created_at, updated_at
        FROM tasks WHERE task_key = $1 AND task_state <> ALL($2) AND task_type <> ALL($3)
        ORDER BY created_at DESC`

	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, key, pq.Array(models.TerminalTaskStates), pq.Array(excludeTypes)); err != nil {
		return nil, fmt.Errorf("find running tasks: %w", err)
	}
	return tasks, nil
}

// Create inserts a new task record in PENDING state.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.State == "" {
		task.State = models.TaskStatePending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO tasks (id, task_type, task_key, task_state, task_input, requester_id, requester, created_at)
        VALUES (:id, :task_type, :task_key, :task_state, :task_input, :requester_id, :requester, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateState transitions a task and optionally stores its output summary.
func (r *TaskRepository) UpdateState(ctx context.Context, id, state string, output *string) error {
	const query = `UPDATE tasks SET task_state = $2, task_output = COALESCE($3, task_output), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, output, time.Now().UTC()); err != nil {
		return fmt.Errorf("update task state: %w", err)
	}
	return nil
}

// FindByID fetches one task record.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	const query = `SELECT id, task_type, task_key, task_state, task_input, task_output, requester_id, requester, created_at, updated_at
        FROM tasks WHERE id = $1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// History returns the latest task records for a key, newest first.
func (r *TaskRepository) History(ctx context.Context, key string, limit int) ([]models.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, task_type, task_key, task_state, task_input, task_output, requester_id, requester, created_at, updated_at
        FROM tasks WHERE task_key = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, key); err != nil {
		return nil, fmt.Errorf("task history: %w", err)
	}
	return tasks, nil
}
