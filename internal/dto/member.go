package dto

import "github.com/gakuen-dev/biz-ops-api/internal/models"

// MemberListRequest filters the roster listing.
type MemberListRequest struct {
	GroupID  *int64            `form:"group_id" json:"group_id"`
	Search   string            `form:"search" json:"search"`
	Attrs    map[string]string `json:"attrs"`
	Page     int               `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize int               `form:"page_size" json:"page_size" validate:"omitempty,min=1,max=100"`
}

// MemberListResponse returns one roster page.
type MemberListResponse struct {
	Members    []models.Member   `json:"members"`
	Pagination models.Pagination `json:"pagination"`
}

// GroupListResponse returns the group hierarchy for an organization.
type GroupListResponse struct {
	Groups []models.Group `json:"groups"`
}

// RightRequest grants or revokes a manager's visibility over a group.
// Revoke false grants the right; true removes it.
type RightRequest struct {
	GroupID int64  `json:"group_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
	Revoke  bool   `json:"revoke"`
}
