package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/response"
)

const defaultHistoryLimit = 20

func historyLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 || limit > 100 {
		return defaultHistoryLimit
	}
	return limit
}

// TaskHandler serves contract-scoped batch task submission and history.
type TaskHandler struct {
	tasks taskSubmitter
}

// NewTaskHandler builds a new handler.
func NewTaskHandler(tasks taskSubmitter) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Submit godoc
// @Summary Submit a batch operation
// @Description Rejected with 409 while another mutating task holds the contract's key
// @Tags Tasks
// @Accept json
// @Produce json
// @Param contract path int true "Contract ID"
// @Param payload body dto.TaskSubmitRequest true "Task payload"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts/{contract}/tasks [post]
func (h *TaskHandler) Submit(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.TaskSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid task payload"))
		return
	}

	res, err := h.tasks.Submit(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, res, nil)
}

// Reminder godoc
// @Summary Submit a reminder email batch
// @Description Exempt from the task mutex, still recorded in history
// @Tags Tasks
// @Accept json
// @Produce json
// @Param contract path int true "Contract ID"
// @Param payload body dto.ReminderRequest true "Reminder payload"
// @Success 202 {object} response.Envelope
// @Router /contracts/{contract}/tasks/reminder [post]
func (h *TaskHandler) Reminder(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reminder payload"))
		return
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	res, err := h.tasks.Submit(c.Request.Context(), scope, dto.TaskSubmitRequest{
		TaskType: models.TaskTypeReminderEmail,
		Payload:  string(encoded),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, res, nil)
}

// History godoc
// @Summary Contract task history
// @Tags Tasks
// @Produce json
// @Param contract path int true "Contract ID"
// @Param limit query int false "Max rows (default 20)"
// @Success 200 {object} response.Envelope
// @Router /contracts/{contract}/tasks [get]
func (h *TaskHandler) History(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	items, err := h.tasks.History(c.Request.Context(), scope, historyLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
