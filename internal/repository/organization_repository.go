package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// OrganizationRepository reads contractor organizations.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs an OrganizationRepository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// FindByID fetches one organization.
func (r *OrganizationRepository) FindByID(ctx context.Context, id int64) (*models.Organization, error) {
	const query = `SELECT id, code, name, created_at FROM orgs WHERE id = $1`
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, err
	}
	return &org, nil
}
