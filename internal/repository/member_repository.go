package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// memberColumns is the full select list shared by member queries. Group
// columns come from the optional group join.
const memberColumns = `m.id, m.org_id, m.group_id, g.group_code, g.group_name,
        m.user_id, m.username, m.email, m.full_name, m.login_code, m.code,
        m.org1, m.org2, m.org3, m.org4, m.org5, m.org6, m.org7, m.org8, m.org9, m.org10,
        m.item1, m.item2, m.item3, m.item4, m.item5, m.item6, m.item7, m.item8, m.item9, m.item10,
        m.active, m.deleted, m.created_at, m.updated_at`

// MemberRepository manages persistence for organization roster rows.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository constructs a MemberRepository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// attrColumns whitelists the filterable free-form attribute columns.
var attrColumns = func() map[string]struct{} {
	cols := make(map[string]struct{}, models.MaxMemberAttrs*2)
	for i := 1; i <= models.MaxMemberAttrs; i++ {
		cols[fmt.Sprintf("org%d", i)] = struct{}{}
		cols[fmt.Sprintf("item%d", i)] = struct{}{}
	}
	return cols
}()

// List returns active members of an organization matching the filter, with
// the total count before pagination.
func (r *MemberRepository) List(ctx context.Context, orgID int64, filter models.MemberFilter) ([]models.Member, int, error) {
	base := "FROM members m LEFT JOIN groups g ON g.id = m.group_id WHERE m.org_id = $1 AND m.active = true AND m.deleted = false"
	args := []interface{}{orgID}

	if filter.GroupID != nil {
		base += fmt.Sprintf(" AND m.group_id = $%d", len(args)+1)
		args = append(args, *filter.GroupID)
	}
	if filter.GroupIDs != nil {
		base += fmt.Sprintf(" AND m.group_id = ANY($%d)", len(args)+1)
		args = append(args, pq.Array(filter.GroupIDs))
	}
	if filter.Search != "" {
		n := len(args) + 1
		base += fmt.Sprintf(" AND (LOWER(m.full_name) LIKE $%d OR LOWER(m.username) LIKE $%d OR LOWER(m.email) LIKE $%d)", n, n, n)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	// Attribute matches use "contains" semantics over the whitelisted
	// org/item columns only.
	for field, value := range filter.AttrMatch {
		if _, ok := attrColumns[field]; !ok {
			return nil, 0, fmt.Errorf("unknown member attribute %q", field)
		}
		base += fmt.Sprintf(" AND m.%s LIKE $%d", field, len(args)+1)
		args = append(args, "%"+value+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY g.group_code NULLS LAST, m.code, m.username LIMIT %d OFFSET %d",
		memberColumns, base, size, offset)

	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}
	return members, total, nil
}

// FindByUsernames bulk-loads active members by username. Absent usernames
// simply have no row; callers treat those students as non-roster enrollees.
func (r *MemberRepository) FindByUsernames(ctx context.Context, orgID int64, usernames []string) ([]models.Member, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM members m LEFT JOIN groups g ON g.id = m.group_id
        WHERE m.org_id = $1 AND m.active = true AND m.deleted = false AND m.username = ANY($2)`, memberColumns)

	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, orgID, pq.Array(usernames)); err != nil {
		return nil, fmt.Errorf("find members by usernames: %w", err)
	}
	return members, nil
}

// FindByCode fetches an active member by member code.
func (r *MemberRepository) FindByCode(ctx context.Context, orgID int64, code string) (*models.Member, error) {
	query := fmt.Sprintf(`SELECT %s FROM members m LEFT JOIN groups g ON g.id = m.group_id
        WHERE m.org_id = $1 AND m.code = $2 AND m.active = true AND m.deleted = false`, memberColumns)

	var member models.Member
	if err := r.db.GetContext(ctx, &member, query, orgID, code); err != nil {
		return nil, err
	}
	return &member, nil
}

// Upsert inserts or replaces a roster row keyed by (org_id, code). Used by
// the bulk register task.
func (r *MemberRepository) Upsert(ctx context.Context, member *models.Member) error {
	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = now
	const query = `INSERT INTO members (org_id, group_id, user_id, username, email, full_name, login_code, code,
            org1, org2, org3, org4, org5, org6, org7, org8, org9, org10,
            item1, item2, item3, item4, item5, item6, item7, item8, item9, item10,
            active, deleted, created_at, updated_at)
        VALUES (:org_id, :group_id, :user_id, :username, :email, :full_name, :login_code, :code,
            :org1, :org2, :org3, :org4, :org5, :org6, :org7, :org8, :org9, :org10,
            :item1, :item2, :item3, :item4, :item5, :item6, :item7, :item8, :item9, :item10,
            :active, :deleted, :created_at, :updated_at)
        ON CONFLICT (org_id, code) DO UPDATE SET
            group_id = EXCLUDED.group_id, user_id = EXCLUDED.user_id, username = EXCLUDED.username,
            email = EXCLUDED.email, full_name = EXCLUDED.full_name, login_code = EXCLUDED.login_code,
            org1 = EXCLUDED.org1, org2 = EXCLUDED.org2, org3 = EXCLUDED.org3, org4 = EXCLUDED.org4,
            org5 = EXCLUDED.org5, org6 = EXCLUDED.org6, org7 = EXCLUDED.org7, org8 = EXCLUDED.org8,
            org9 = EXCLUDED.org9, org10 = EXCLUDED.org10,
            item1 = EXCLUDED.item1, item2 = EXCLUDED.item2, item3 = EXCLUDED.item3, item4 = EXCLUDED.item4,
            item5 = EXCLUDED.item5, item6 = EXCLUDED.item6, item7 = EXCLUDED.item7, item8 = EXCLUDED.item8,
            item9 = EXCLUDED.item9, item10 = EXCLUDED.item10,
            active = true, deleted = false, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// MaskPersonalInfo blanks a member's identity fields, keeping the row for
// history. Used by the personal information mask task.
func (r *MemberRepository) MaskPersonalInfo(ctx context.Context, orgID int64, username string) error {
	const query = `UPDATE members SET email = '', full_name = '', login_code = NULL, deleted = true, updated_at = $3
        WHERE org_id = $1 AND username = $2`
	if _, err := r.db.ExecContext(ctx, query, orgID, username, time.Now().UTC()); err != nil {
		return fmt.Errorf("mask member: %w", err)
	}
	return nil
}
