package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/jobs"
)

type taskStore interface {
	ListNonTerminal(ctx context.Context, key string, excludeTypes []string) ([]models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	UpdateState(ctx context.Context, id, state string, output *string) error
	History(ctx context.Context, key string, limit int) ([]models.Task, error)
}

type taskQueue interface {
	Enqueue(job jobs.Job) error
}

// TaskInput is the envelope handed to runners: the operation payload plus
// the scope it was submitted under.
type TaskInput struct {
	OrgID      int64  `json:"org_id"`
	ContractID int64  `json:"contract_id"`
	Payload    string `json:"payload"`
}

// TaskRunner executes one batch operation kind.
type TaskRunner func(ctx context.Context, input TaskInput) (models.TaskOutput, error)

// TaskKey derives the admission key for a contract. All mutating batch
// operations on the same contract share one key, so at most one can be
// in flight.
func TaskKey(contractID int64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d", contractID)))
	return hex.EncodeToString(sum[:])
}

// OrgTaskKey derives the admission key for org-level operations such as
// member registration, which run outside any single contract.
func OrgTaskKey(orgCode string) string {
	sum := md5.Sum([]byte(orgCode))
	return hex.EncodeToString(sum[:])
}

// keyForScope picks the contract key when the scope carries a contract
// and falls back to the org key for org-level routes.
func keyForScope(scope models.RequestScope) string {
	if scope.Contract.ID != 0 {
		return TaskKey(scope.Contract.ID)
	}
	return OrgTaskKey(scope.Org.Code)
}

// TaskService admits, dispatches and tracks batch operations. Admission is
// check-then-act over the task table: a small race window exists between
// the check and the insert, matching the task-history semantics callers
// rely on.
type TaskService struct {
	repo      taskStore
	queue     taskQueue
	runners   map[string]TaskRunner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService builds a TaskService. Runners are registered per task
// type before the queue starts.
func NewTaskService(repo taskStore, queue taskQueue, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		repo:      repo,
		queue:     queue,
		runners:   make(map[string]TaskRunner),
		validator: validate,
		logger:    logger,
	}
}

// RegisterRunner binds a task type to its executor.
func (s *TaskService) RegisterRunner(taskType string, runner TaskRunner) {
	s.runners[taskType] = runner
}

// Submit admits one batch operation for the scoped contract. Reminder
// emails are exempt from the mutex in both directions: they never
// mutate the roster, so they neither wait for nor block other batches.
func (s *TaskService) Submit(ctx context.Context, scope models.RequestScope, req dto.TaskSubmitRequest) (*dto.TaskSubmitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	key := keyForScope(scope)
	if req.TaskType != models.TaskTypeReminderEmail {
		running, err := s.repo.ListNonTerminal(ctx, key, []string{models.TaskTypeReminderEmail})
		if err != nil {
			return nil, appErrors.ErrRetryLater
		}
		switch {
		case len(running) == 1:
			label := models.TaskTypeLabels[running[0].Type]
			if label == "" {
				label = "Another task"
			}
			return nil, appErrors.Clone(appErrors.ErrTaskRunning,
				fmt.Sprintf("%s is being processed. Please wait a moment and try again.", label))
		case len(running) > 1:
			s.logger.Warn("running task is too many",
				zap.String("task_key", key), zap.Int("count", len(running)))
			return nil, appErrors.Clone(appErrors.ErrTaskRunning,
				"Another task is being processed. Please wait a moment and try again.")
		}
	}

	input := TaskInput{OrgID: scope.Org.ID, ContractID: scope.Contract.ID, Payload: req.Payload}
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode task input")
	}

	task := &models.Task{
		Type:        req.TaskType,
		Key:         key,
		Input:       string(encoded),
		RequesterID: scope.Manager.UserID,
		Requester:   scope.Manager.Username,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: task.ID, Type: task.Type, Payload: input}); err != nil {
		s.failTask(ctx, task.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue task")
	}

	return &dto.TaskSubmitResponse{
		TaskID:  task.ID,
		State:   task.State,
		Message: fmt.Sprintf("%s has been accepted.", models.TaskTypeLabels[req.TaskType]),
	}, nil
}

// Execute is the queue handler: it transitions the record through
// RUNNING and stores the runner's summary on success. Runner errors
// propagate so the queue's retry policy applies.
func (s *TaskService) Execute(ctx context.Context, job jobs.Job) error {
	input, ok := job.Payload.(TaskInput)
	if !ok {
		s.failTask(ctx, job.ID, fmt.Errorf("malformed task payload"))
		return nil
	}
	runner, ok := s.runners[job.Type]
	if !ok {
		s.failTask(ctx, job.ID, fmt.Errorf("no runner for task type %s", job.Type))
		return nil
	}

	if err := s.repo.UpdateState(ctx, job.ID, models.TaskStateRunning, nil); err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}

	output, err := runner(ctx, input)
	if err != nil {
		return fmt.Errorf("run %s: %w", job.Type, err)
	}

	encoded, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode task output: %w", err)
	}
	summary := string(encoded)
	if err := s.repo.UpdateState(ctx, job.ID, models.TaskStateSuccess, &summary); err != nil {
		return fmt.Errorf("mark task success: %w", err)
	}
	return nil
}

// HandleExhausted marks a task failed after its final retry. Wired as the
// queue's OnExhausted callback.
func (s *TaskService) HandleExhausted(job jobs.Job, cause error) {
	s.failTask(context.Background(), job.ID, cause)
}

func (s *TaskService) failTask(ctx context.Context, id string, cause error) {
	msg := cause.Error()
	if err := s.repo.UpdateState(ctx, id, models.TaskStateFailure, &msg); err != nil {
		s.logger.Error("failed to mark task failure", zap.String("task_id", id), zap.Error(err))
	}
}

// History returns the scoped contract's recent task records, newest first.
func (s *TaskService) History(ctx context.Context, scope models.RequestScope, limit int) ([]dto.TaskHistoryItem, error) {
	tasks, err := s.repo.History(ctx, keyForScope(scope), limit)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}

	items := make([]dto.TaskHistoryItem, 0, len(tasks))
	for _, task := range tasks {
		output := ""
		if task.Output != nil {
			output = *task.Output
		}
		items = append(items, dto.TaskHistoryItem{
			TaskID:    task.ID,
			TypeLabel: models.TaskTypeLabels[task.Type],
			State:     task.State,
			Requester: task.Requester,
			Output:    output,
			CreatedAt: task.CreatedAt,
			UpdatedAt: task.UpdatedAt,
		})
	}
	return items, nil
}
