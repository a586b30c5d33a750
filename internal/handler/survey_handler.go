package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/response"
)

type surveyService interface {
	Search(ctx context.Context, scope models.RequestScope, courseID string, req dto.SurveySearchRequest) (*dto.SurveyGrid, error)
	Download(ctx context.Context, scope models.RequestScope, courseID string, req dto.SurveySearchRequest) (string, []byte, error)
}

// SurveyHandler serves the survey answer-status grid and its TSV export.
type SurveyHandler struct {
	service surveyService
}

// NewSurveyHandler builds a new handler.
func NewSurveyHandler(service surveyService) *SurveyHandler {
	return &SurveyHandler{service: service}
}

// Search godoc
// @Summary Survey answer status grid
// @Tags Surveys
// @Accept json
// @Produce json
// @Param contract path int true "Contract ID"
// @Param course path string true "Course ID"
// @Param payload body dto.SurveySearchRequest true "Search payload"
// @Success 200 {object} response.Envelope
// @Router /surveys/{contract}/{course}/search [post]
func (h *SurveyHandler) Search(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SurveySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid survey search payload"))
		return
	}

	grid, err := h.service.Search(c.Request.Context(), scope, c.Param("course"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// Download godoc
// @Summary Survey answer status TSV export
// @Tags Surveys
// @Accept json
// @Produce text/tab-separated-values
// @Param contract path int true "Contract ID"
// @Param course path string true "Course ID"
// @Param payload body dto.SurveySearchRequest true "Search payload"
// @Success 200 {file} file
// @Router /surveys/{contract}/{course}/download [post]
func (h *SurveyHandler) Download(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SurveySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid survey search payload"))
		return
	}

	filename, data, err := h.service.Download(c.Request.Context(), scope, c.Param("course"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDownload(c, filename, data)
}
