package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// EnrollmentRepository reads course enrollments and their attendance
// attribute values.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByCourseAndUsers returns enrollments for the given usernames in one
// course.
func (r *EnrollmentRepository) FindByCourseAndUsers(ctx context.Context, courseID string, usernames []string) ([]models.Enrollment, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	const query = `SELECT id, user_id, username, course_id, active, created_at
        FROM enrollments WHERE course_id = $1 AND username = ANY($2)`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID, pq.Array(usernames)); err != nil {
		return nil, fmt.Errorf("find enrollments: %w", err)
	}
	return enrollments, nil
}

// Upsert activates an enrollment, creating the row when absent.
func (r *EnrollmentRepository) Upsert(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `INSERT INTO enrollments (user_id, username, course_id, active, created_at)
        VALUES ($1, $2, $3, true, NOW())
        ON CONFLICT (username, course_id) DO UPDATE SET active = true`
	if _, err := r.db.ExecContext(ctx, query, enrollment.UserID, enrollment.Username, enrollment.CourseID); err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}
	return nil
}

// Deactivate unenrolls a student from one course.
func (r *EnrollmentRepository) Deactivate(ctx context.Context, courseID, username string) error {
	const query = `UPDATE enrollments SET active = false WHERE course_id = $1 AND username = $2`
	if _, err := r.db.ExecContext(ctx, query, courseID, username); err != nil {
		return fmt.Errorf("deactivate enrollment: %w", err)
	}
	return nil
}

// AttendanceValues bulk-loads the raw attendance attribute for enrollment
// ids. Enrollments without an attribute row are absent from the map.
func (r *EnrollmentRepository) AttendanceValues(ctx context.Context, enrollmentIDs []int64) (map[int64]models.AttendanceValue, error) {
	if len(enrollmentIDs) == 0 {
		return map[int64]models.AttendanceValue{}, nil
	}
	const query = `SELECT enrollment_id, value FROM enrollment_attributes
        WHERE namespace = 'ga' AND name = 'attended_status' AND enrollment_id = ANY($1)`

	rows, err := r.db.QueryxContext(ctx, query, pq.Array(enrollmentIDs))
	if err != nil {
		return nil, fmt.Errorf("attendance values: %w", err)
	}
	defer rows.Close()

	values := make(map[int64]models.AttendanceValue, len(enrollmentIDs))
	for rows.Next() {
		var id int64
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scan attendance value: %w", err)
		}
		values[id] = models.AttendanceValue(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance values: %w", err)
	}
	return values, nil
}
