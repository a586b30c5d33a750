package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// ContractRepository reads contracts and their course links.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository constructs a ContractRepository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// FindByID fetches one contract.
func (r *ContractRepository) FindByID(ctx context.Context, id int64) (*models.Contract, error) {
	const query = `SELECT id, code, name, contractor_org_id, start_date, end_date, enabled
        FROM contracts WHERE id = $1`
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		return nil, err
	}
	return &contract, nil
}

// ListEnabledByOrg returns a contractor organization's contracts that are
// currently inside their start/end window.
func (r *ContractRepository) ListEnabledByOrg(ctx context.Context, orgID int64) ([]models.Contract, error) {
	const query = `SELECT id, code, name, contractor_org_id, start_date, end_date, enabled
        FROM contracts
        WHERE contractor_org_id = $1 AND enabled = true
          AND start_date <= CURRENT_DATE AND end_date >= CURRENT_DATE
        ORDER BY id`
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, orgID); err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return contracts, nil
}

// Courses returns the course links of a contract.
func (r *ContractRepository) Courses(ctx context.Context, contractID int64) ([]models.ContractCourse, error) {
	const query = `SELECT id, contract_id, course_id, is_status_managed
        FROM contract_courses WHERE contract_id = $1 ORDER BY id`
	var courses []models.ContractCourse
	if err := r.db.SelectContext(ctx, &courses, query, contractID); err != nil {
		return nil, fmt.Errorf("list contract courses: %w", err)
	}
	return courses, nil
}

// FindCourse fetches one contract/course link, enforcing that the course
// actually belongs to the contract.
func (r *ContractRepository) FindCourse(ctx context.Context, contractID int64, courseID string) (*models.ContractCourse, error) {
	const query = `SELECT id, contract_id, course_id, is_status_managed
        FROM contract_courses WHERE contract_id = $1 AND course_id = $2`
	var course models.ContractCourse
	if err := r.db.GetContext(ctx, &course, query, contractID, courseID); err != nil {
		return nil, err
	}
	return &course, nil
}
