package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/jobs"
)

type taskStoreStub struct {
	running   []models.Task
	created   []*models.Task
	states    map[string]string
	outputs   map[string]string
	history   []models.Task
	findErr   error
	createErr error
}

func newTaskStoreStub() *taskStoreStub {
	return &taskStoreStub{states: map[string]string{}, outputs: map[string]string{}}
}

func (s *taskStoreStub) ListNonTerminal(ctx context.Context, key string, excludeTypes []string) ([]models.Task, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	excluded := make(map[string]bool, len(excludeTypes))
	for _, t := range excludeTypes {
		excluded[t] = true
	}
	var out []models.Task
	for _, task := range s.running {
		if !excluded[task.Type] {
			out = append(out, task)
		}
	}
	return out, nil
}

func (s *taskStoreStub) Create(ctx context.Context, task *models.Task) error {
	if s.createErr != nil {
		return s.createErr
	}
	task.ID = "t-1"
	task.State = models.TaskStatePending
	s.created = append(s.created, task)
	return nil
}

func (s *taskStoreStub) UpdateState(ctx context.Context, id, state string, output *string) error {
	s.states[id] = state
	if output != nil {
		s.outputs[id] = *output
	}
	return nil
}

func (s *taskStoreStub) History(ctx context.Context, key string, limit int) ([]models.Task, error) {
	return s.history, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func taskScope() models.RequestScope {
	return models.RequestScope{
		Org:      models.Organization{ID: 10},
		Contract: models.Contract{ID: 42},
		Manager:  models.Manager{UserID: "u-1", Username: "alice", Role: models.RoleDirector},
	}
}

func TestTaskKeyStable(t *testing.T) {
	assert.Equal(t, TaskKey(42), TaskKey(42))
	assert.NotEqual(t, TaskKey(42), TaskKey(43))
	assert.Len(t, TaskKey(42), 32)
}

func TestTaskSubmitAdmits(t *testing.T) {
	store := newTaskStoreStub()
	queue := &queueStub{}
	svc := NewTaskService(store, queue, nil, zap.NewNop())

	resp, err := svc.Submit(context.Background(), taskScope(), dto.TaskSubmitRequest{
		TaskType: models.TaskTypeMemberRegister,
		Payload:  "tsv-content",
	})
	require.NoError(t, err)
	assert.Equal(t, "t-1", resp.TaskID)
	assert.Equal(t, models.TaskStatePending, resp.State)

	require.Len(t, queue.jobs, 1)
	input, ok := queue.jobs[0].Payload.(TaskInput)
	require.True(t, ok)
	assert.Equal(t, int64(10), input.OrgID)
	assert.Equal(t, "tsv-content", input.Payload)

	require.Len(t, store.created, 1)
	assert.Equal(t, TaskKey(42), store.created[0].Key)
}

func TestTaskSubmitOrgScopeUsesOrgKey(t *testing.T) {
	store := newTaskStoreStub()
	queue := &queueStub{}
	svc := NewTaskService(store, queue, nil, zap.NewNop())

	scope := models.RequestScope{
		Org:     models.Organization{ID: 10, Code: "ORG01"},
		Manager: models.Manager{UserID: "u-1", Username: "alice", Role: models.RoleDirector},
	}
	_, err := svc.Submit(context.Background(), scope, dto.TaskSubmitRequest{
		TaskType: models.TaskTypeMemberRegister,
		Payload:  "tsv-content",
	})
	require.NoError(t, err)
	require.Len(t, store.created, 1)
	assert.Equal(t, OrgTaskKey("ORG01"), store.created[0].Key)
	assert.NotEqual(t, TaskKey(0), store.created[0].Key)
}

func TestTaskSubmitRejectsWhileRunning(t *testing.T) {
	store := newTaskStoreStub()
	store.running = []models.Task{{Type: models.TaskTypeStudentRegister, State: models.TaskStateRunning}}
	svc := NewTaskService(store, &queueStub{}, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), taskScope(), dto.TaskSubmitRequest{
		TaskType: models.TaskTypeMemberRegister,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTaskRunning.Code, appErr.Code)
	// The duplicate message names the running task's type, not the
	// submitted one.
	assert.Contains(t, appErr.Message, "Student Register")
}

func TestTaskSubmitGenericMessageWhenSeveralRunning(t *testing.T) {
	store := newTaskStoreStub()
	store.running = []models.Task{
		{Type: models.TaskTypeStudentRegister, State: models.TaskStateRunning},
		{Type: models.TaskTypePersonalinfoMask, State: models.TaskStatePending},
	}
	svc := NewTaskService(store, &queueStub{}, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), taskScope(), dto.TaskSubmitRequest{
		TaskType: models.TaskTypeMemberRegister,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTaskRunning.Code, appErr.Code)
	// Several simultaneous holders mean the key was double-admitted;
	// no single type can be named.
	assert.Contains(t, appErr.Message, "Another task")
	assert.NotContains(t, appErr.Message, "Student Register")
}

func TestTaskSubmitReminderEmailBypassesMutex(t *testing.T) {
	store := newTaskStoreStub()
	store.running = []models.Task{{Type: models.TaskTypeStudentRegister, State: models.TaskStateRunning}}
	queue := &queueStub{}
	svc := NewTaskService(store, queue, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), taskScope(), dto.TaskSubmitRequest{
		TaskType: models.TaskTypeReminderEmail,
	})
	require.NoError(t, err)
	assert.Len(t, queue.jobs, 1)
}

func TestTaskSubmitAdmitsWhileReminderEmailRunning(t *testing.T) {
	store := newTaskStoreStub()
	store.running = []models.Task{{Type: models.TaskTypeReminderEmail, State: models.TaskStateRunning}}
	queue := &queueStub{}
	svc := NewTaskService(store, queue, nil, zap.NewNop())

	// A running reminder does not hold the key against mutating batches.
	resp, err := svc.Submit(context.Background(), taskScope(), dto.TaskSubmitRequest{
		TaskType: models.TaskTypeStudentRegister,
		Payload:  "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatePending, resp.State)
	assert.Len(t, queue.jobs, 1)
}

func TestTaskSubmitRejectsUnknownType(t *testing.T) {
	svc := NewTaskService(newTaskStoreStub(), &queueStub{}, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), taskScope(), dto.TaskSubmitRequest{TaskType: "destroy_everything"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTaskSubmitEnqueueFailureMarksFailed(t *testing.T) {
	store := newTaskStoreStub()
	queue := &queueStub{err: assert.AnError}
	svc := NewTaskService(store, queue, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), taskScope(), dto.TaskSubmitRequest{
		TaskType: models.TaskTypeMemberRegister,
	})
	require.Error(t, err)
	assert.Equal(t, models.TaskStateFailure, store.states["t-1"])
}

func TestTaskExecuteSuccess(t *testing.T) {
	store := newTaskStoreStub()
	svc := NewTaskService(store, &queueStub{}, nil, zap.NewNop())
	svc.RegisterRunner(models.TaskTypeMemberRegister, func(ctx context.Context, input TaskInput) (models.TaskOutput, error) {
		return models.TaskOutput{Total: 3, Succeeded: 2, Skipped: 1}, nil
	})

	job := jobs.Job{ID: "t-1", Type: models.TaskTypeMemberRegister, Payload: TaskInput{OrgID: 10}}
	require.NoError(t, svc.Execute(context.Background(), job))

	assert.Equal(t, models.TaskStateSuccess, store.states["t-1"])
	var output models.TaskOutput
	require.NoError(t, json.Unmarshal([]byte(store.outputs["t-1"]), &output))
	assert.Equal(t, 3, output.Total)
	assert.Equal(t, 1, output.Skipped)
}

func TestTaskExecuteRunnerErrorPropagates(t *testing.T) {
	store := newTaskStoreStub()
	svc := NewTaskService(store, &queueStub{}, nil, zap.NewNop())
	svc.RegisterRunner(models.TaskTypeMemberRegister, func(ctx context.Context, input TaskInput) (models.TaskOutput, error) {
		return models.TaskOutput{}, assert.AnError
	})

	job := jobs.Job{ID: "t-1", Type: models.TaskTypeMemberRegister, Payload: TaskInput{}}
	err := svc.Execute(context.Background(), job)
	require.Error(t, err)
	// Still RUNNING; the queue decides between retry and HandleExhausted.
	assert.Equal(t, models.TaskStateRunning, store.states["t-1"])

	svc.HandleExhausted(job, err)
	assert.Equal(t, models.TaskStateFailure, store.states["t-1"])
}

func TestTaskExecuteUnknownRunnerFails(t *testing.T) {
	store := newTaskStoreStub()
	svc := NewTaskService(store, &queueStub{}, nil, zap.NewNop())

	job := jobs.Job{ID: "t-1", Type: "mystery", Payload: TaskInput{}}
	require.NoError(t, svc.Execute(context.Background(), job))
	assert.Equal(t, models.TaskStateFailure, store.states["t-1"])
}

func TestTaskHistoryLabels(t *testing.T) {
	store := newTaskStoreStub()
	output := `{"total":1}`
	store.history = []models.Task{
		{ID: "t-2", Type: models.TaskTypePersonalinfoMask, State: models.TaskStateSuccess, Requester: "alice", Output: &output},
	}
	svc := NewTaskService(store, &queueStub{}, nil, zap.NewNop())

	items, err := svc.History(context.Background(), taskScope(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Personal Information Mask", items[0].TypeLabel)
	assert.Equal(t, output, items[0].Output)
}
