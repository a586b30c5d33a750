package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// GroupRepository manages the organization group hierarchy and visibility
// rights.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// ListByOrg returns all groups of an organization ordered by group code.
func (r *GroupRepository) ListByOrg(ctx context.Context, orgID int64) ([]models.Group, error) {
	const query = `SELECT id, org_id, parent_id, level_no, group_code, group_name, notes, created_at
        FROM groups WHERE org_id = $1 ORDER BY group_code`
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, orgID); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// ListByIDs returns groups by id ordered by group code.
func (r *GroupRepository) ListByIDs(ctx context.Context, orgID int64, ids []int64) ([]models.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, org_id, parent_id, level_no, group_code, group_name, notes, created_at
        FROM groups WHERE org_id = $1 AND id = ANY($2) ORDER BY group_code`
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, orgID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list groups by ids: %w", err)
	}
	return groups, nil
}

// Exists reports whether the organization has any groups at all. An
// organization without groups applies no visibility restriction.
func (r *GroupRepository) Exists(ctx context.Context, orgID int64) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM groups WHERE org_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, orgID); err != nil {
		return false, fmt.Errorf("check groups exist: %w", err)
	}
	return exists, nil
}

// VisibleGroupIDs computes the closure of group ids a manager may see:
// every group a right row grants plus all descendants.
func (r *GroupRepository) VisibleGroupIDs(ctx context.Context, orgID int64, userID string) ([]int64, error) {
	const query = `WITH RECURSIVE visible AS (
            SELECT g.id FROM groups g
            JOIN rights r ON r.group_id = g.id
            WHERE g.org_id = $1 AND r.user_id = $2
            UNION
            SELECT c.id FROM groups c
            JOIN visible v ON c.parent_id = v.id
        )
        SELECT id FROM visible ORDER BY id`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, orgID, userID); err != nil {
		return nil, fmt.Errorf("visible group ids: %w", err)
	}
	return ids, nil
}

// GrantRight adds a visibility grant for a manager over a group subtree.
func (r *GroupRepository) GrantRight(ctx context.Context, right *models.Right) error {
	const query = `INSERT INTO rights (org_id, group_id, user_id, created_at)
        VALUES ($1, $2, $3, NOW()) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, right.OrgID, right.GroupID, right.UserID); err != nil {
		return fmt.Errorf("grant right: %w", err)
	}
	return nil
}

// RevokeRight removes a visibility grant.
func (r *GroupRepository) RevokeRight(ctx context.Context, orgID, groupID int64, userID string) error {
	const query = `DELETE FROM rights WHERE org_id = $1 AND group_id = $2 AND user_id = $3`
	if _, err := r.db.ExecContext(ctx, query, orgID, groupID, userID); err != nil {
		return fmt.Errorf("revoke right: %w", err)
	}
	return nil
}

// ListRights returns the grants configured for a group.
func (r *GroupRepository) ListRights(ctx context.Context, orgID, groupID int64) ([]models.Right, error) {
	const query = `SELECT id, org_id, group_id, user_id, created_at
        FROM rights WHERE org_id = $1 AND group_id = $2 ORDER BY created_at`
	var rights []models.Right
	if err := r.db.SelectContext(ctx, &rights, query, orgID, groupID); err != nil {
		return nil, fmt.Errorf("list rights: %w", err)
	}
	return rights, nil
}
