package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/response"
)

type memberService interface {
	List(ctx context.Context, scope models.RequestScope, req dto.MemberListRequest) (*dto.MemberListResponse, error)
	DownloadTSV(ctx context.Context, scope models.RequestScope) (string, []byte, error)
}

type taskSubmitter interface {
	Submit(ctx context.Context, scope models.RequestScope, req dto.TaskSubmitRequest) (*dto.TaskSubmitResponse, error)
	History(ctx context.Context, scope models.RequestScope, limit int) ([]dto.TaskHistoryItem, error)
}

// MemberHandler serves the org roster and the member batch operations.
type MemberHandler struct {
	service memberService
	tasks   taskSubmitter
}

// NewMemberHandler builds a new handler.
func NewMemberHandler(service memberService, tasks taskSubmitter) *MemberHandler {
	return &MemberHandler{service: service, tasks: tasks}
}

// List godoc
// @Summary List org members
// @Tags Members
// @Produce json
// @Param group_id query int false "Group ID filter"
// @Param search query string false "Name/code/email search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /members [get]
func (h *MemberHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.MemberListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid member filter"))
		return
	}
	if attrs := c.QueryMap("attrs"); len(attrs) > 0 {
		req.Attrs = attrs
	}

	res, err := h.service.List(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res.Members, &res.Pagination)
}

// Download godoc
// @Summary Download the org roster as TSV
// @Tags Members
// @Produce text/tab-separated-values
// @Success 200 {file} file
// @Router /members/download [get]
func (h *MemberHandler) Download(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filename, data, err := h.service.DownloadTSV(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDownload(c, filename, data)
}

// Register godoc
// @Summary Submit a member register batch
// @Description Uploads TSV content and enqueues the register task
// @Tags Members
// @Accept mpfd
// @Accept json
// @Produce json
// @Param file formData file false "TSV file"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /members/register [post]
func (h *MemberHandler) Register(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payload, err := registerPayload(c)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "tsv payload required"))
		return
	}

	res, err := h.tasks.Submit(c.Request.Context(), scope, dto.TaskSubmitRequest{
		TaskType: models.TaskTypeMemberRegister,
		Payload:  payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, res, nil)
}

// registerPayload reads the uploaded roster. File uploads carry the
// UTF-16 bytes untouched; a JSON body would replace the byte order
// mark, so multipart is the primary path and JSON stays for plain-text
// clients.
func registerPayload(c *gin.Context) (string, error) {
	if c.ContentType() == "multipart/form-data" {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return "", err
		}
		f, err := fileHeader.Open()
		if err != nil {
			return "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var body struct {
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return "", err
	}
	return body.Payload, nil
}

// Tasks godoc
// @Summary Org-level task history
// @Tags Members
// @Produce json
// @Param limit query int false "Max rows (default 20)"
// @Success 200 {object} response.Envelope
// @Router /members/tasks [get]
func (h *MemberHandler) Tasks(c *gin.Context) {
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
