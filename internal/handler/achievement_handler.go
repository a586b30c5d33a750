package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/response"
)

type achievementService interface {
	Search(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID string, req dto.AchievementSearchRequest) (*dto.AchievementGrid, error)
	Download(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID string, req dto.AchievementSearchRequest, format string) (string, []byte, error)
	Report(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID, username string) ([]byte, error)
}

// AchievementHandler serves the score and playback grids, their exports
// and the per-student PDF report.
type AchievementHandler struct {
	service achievementService
}

// NewAchievementHandler builds a new handler.
func NewAchievementHandler(service achievementService) *AchievementHandler {
	return &AchievementHandler{service: service}
}

func targetFromParam(c *gin.Context) (models.AchievementTarget, error) {
	switch c.Param("target") {
	case string(models.TargetScore):
		return models.TargetScore, nil
	case string(models.TargetPlayback):
		return models.TargetPlayback, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "target must be score or playback")
	}
}

// Grid godoc
// @Summary Achievement grid default page
// @Tags Achievement
// @Produce json
// @Param contract path int true "Contract ID"
// @Param course path string true "Course ID"
// @Param target path string true "score or playback"
// @Success 200 {object} response.Envelope
// @Router /achievement/{contract}/{course}/{target} [get]
func (h *AchievementHandler) Grid(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	target, err := targetFromParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	grid, err := h.service.Search(c.Request.Context(), scope, target, c.Param("course"), dto.AchievementSearchRequest{})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// Search godoc
// @Summary Filter the achievement grid
// @Tags Achievement
// @Accept json
// @Produce json
// @Param contract path int true "Contract ID"
// @Param course path string true "Course ID"
// @Param target path string true "score or playback"
// @Param payload body dto.AchievementSearchRequest true "Search payload"
// @Success 200 {object} response.Envelope
// @Router /achievement/{contract}/{course}/{target}/search [post]
func (h *AchievementHandler) Search(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	target, err := targetFromParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.AchievementSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search payload"))
		return
	}

	grid, err := h.service.Search(c.Request.Context(), scope, target, c.Param("course"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// Download godoc
// @Summary Export the achievement grid
// @Description Renders the filtered grid as Shift_JIS CSV or UTF-16 TSV
// @Tags Achievement
// @Accept json
// @Produce text/csv
// @Param contract path int true "Contract ID"
// @Param course path string true "Course ID"
// @Param target path string true "score or playback"
// @Param payload body dto.AchievementDownloadRequest true "Download payload"
// @Success 200 {file} file
// @Router /achievement/{contract}/{course}/{target}/download [post]
func (h *AchievementHandler) Download(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	target, err := targetFromParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.AchievementDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid download payload"))
		return
	}
	format := req.Format
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "tsv" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or tsv"))
		return
	}

	filename, data, err := h.service.Download(c.Request.Context(), scope, target, c.Param("course"), req.AchievementSearchRequest, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDownload(c, filename, data)
}

// Report godoc
// @Summary Per-student achievement report PDF
// @Tags Achievement
// @Produce application/pdf
// @Param contract path int true "Contract ID"
// @Param course path string true "Course ID"
// @Param target path string true "score or playback"
// @Param username path string true "Username"
// @Success 200 {file} file
// @Router /achievement/{contract}/{course}/{target}/report/{username} [get]
func (h *AchievementHandler) Report(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	target, err := targetFromParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	username := c.Param("username")
	if username == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "username required"))
		return
	}

	data, err := h.service.Report(c.Request.Context(), scope, target, c.Param("course"), username)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDownload(c, fmt.Sprintf("%s_report.pdf", username), data)
}
