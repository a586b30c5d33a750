package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// SurveyRepository reads survey units and per-user submissions for the
// answer-status grid and export.
type SurveyRepository struct {
	db *sqlx.DB
}

// NewSurveyRepository constructs a SurveyRepository.
func NewSurveyRepository(db *sqlx.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

// Units returns the distinct survey units in a course, keeping the most
// recent display name when a unit was renamed between submissions.
func (r *SurveyRepository) Units(ctx context.Context, courseID string) ([]models.SurveyUnit, error) {
	const query = `SELECT DISTINCT ON (unit_id) unit_id, survey_name
        FROM survey_submissions WHERE course_id = $1
        ORDER BY unit_id, created_at DESC`
	var units []models.SurveyUnit
	if err := r.db.SelectContext(ctx, &units, query, courseID); err != nil {
		return nil, fmt.Errorf("survey units: %w", err)
	}
	return units, nil
}

// Submissions returns all submissions in a course for the given user ids.
func (r *SurveyRepository) Submissions(ctx context.Context, courseID string, userIDs []string) ([]models.SurveySubmission, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, unit_id, survey_name, user_id, course_id, created_at
        FROM survey_submissions WHERE course_id = $1 AND user_id = ANY($2)
        ORDER BY created_at`
	var submissions []models.SurveySubmission
	if err := r.db.SelectContext(ctx, &submissions, query, courseID, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("survey submissions: %w", err)
	}
	return submissions, nil
}
