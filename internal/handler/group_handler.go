package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/response"
)

type groupService interface {
	List(ctx context.Context, scope models.RequestScope) ([]models.Group, error)
	GrantRight(ctx context.Context, scope models.RequestScope, groupID int64, userID string) error
	RevokeRight(ctx context.Context, scope models.RequestScope, groupID int64, userID string) error
	ListRights(ctx context.Context, scope models.RequestScope, groupID int64) ([]models.Right, error)
}

// GroupHandler serves the org group hierarchy and visibility rights.
type GroupHandler struct {
	service groupService
}

// NewGroupHandler builds a new handler.
func NewGroupHandler(service groupService) *GroupHandler {
	return &GroupHandler{service: service}
}

// List godoc
// @Summary List org groups
// @Description Restricted managers see only their visible subtree
// @Tags Groups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	groups, err := h.service.List(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GroupListResponse{Groups: groups}, nil)
}

// SetRight godoc
// @Summary Grant or revoke a visibility right
// @Description Directors only; revoke=true removes the right
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body dto.RightRequest true "Right payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/rights [put]
func (h *GroupHandler) SetRight(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid right payload"))
		return
	}

	var err error
	if req.Revoke {
		err = h.service.RevokeRight(c.Request.Context(), scope, req.GroupID, req.UserID)
	} else {
		err = h.service.GrantRight(c.Request.Context(), scope, req.GroupID, req.UserID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Rights godoc
// @Summary List rights granted on a group
// @Tags Groups
// @Produce json
// @Param group path int true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/rights/{group} [get]
func (h *GroupHandler) Rights(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	groupID, err := strconv.ParseInt(c.Param("group"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group id"))
		return
	}

	rights, err := h.service.ListRights(c.Request.Context(), scope, groupID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rights, nil)
}
