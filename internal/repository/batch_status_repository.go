package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// BatchStatusRepository reads the status rows the nightly achievement
// recompute job leaves behind.
type BatchStatusRepository struct {
	db *sqlx.DB
}

// NewBatchStatusRepository constructs a BatchStatusRepository.
func NewBatchStatusRepository(db *sqlx.DB) *BatchStatusRepository {
	return &BatchStatusRepository{db: db}
}

// Latest returns the most recent batch status for a contract, course and
// target, or nil when no batch has ever run.
func (r *BatchStatusRepository) Latest(ctx context.Context, contractID int64, courseID string, target models.AchievementTarget) (*models.BatchStatus, error) {
	const query = `SELECT id, contract_id, course_id, target, status, student_count, created_at
        FROM batch_statuses WHERE contract_id = $1 AND course_id = $2 AND target = $3
        ORDER BY created_at DESC LIMIT 1`

	var status models.BatchStatus
	if err := r.db.GetContext(ctx, &status, query, contractID, courseID, target); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest batch status: %w", err)
	}
	return &status, nil
}
