package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

func TestEnrollmentRepositoryFindByCourseAndUsers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "username", "course_id", "active", "created_at"}).
		AddRow(int64(3), "u-1", "alice", "course-1", true, time.Now())
	mock.ExpectQuery(`FROM enrollments WHERE course_id = \$1 AND username = ANY\(\$2\)`).
		WithArgs("course-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	enrollments, err := repo.FindByCourseAndUsers(context.Background(), "course-1", []string{"alice"})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, int64(3), enrollments[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAttendanceValues(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"enrollment_id", "value"}).
		AddRow(int64(3), `{"attended_date":"2024-01-10","completed_date":"2024-02-01"}`).
		AddRow(int64(4), `{"attended_date":"2024-01-12"}`)
	mock.ExpectQuery(`FROM enrollment_attributes`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	values, err := repo.AttendanceValues(context.Background(), []int64{3, 4, 5})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, models.StudentStatusFinishEnrolled, values[3].StudentStatus())
	assert.Equal(t, models.StudentStatusEnrolled, values[4].StudentStatus())
	// Enrollment 5 has no attribute row.
	_, ok := values[5]
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAttendanceValuesEmptyInput(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	values, err := repo.AttendanceValues(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.NoError(t, mock.ExpectationsWereMet())
}
