package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/export"
)

type surveyStoreStub struct {
	units       []models.SurveyUnit
	submissions []models.SurveySubmission
}

func (s *surveyStoreStub) Units(ctx context.Context, courseID string) ([]models.SurveyUnit, error) {
	return s.units, nil
}

func (s *surveyStoreStub) Submissions(ctx context.Context, courseID string, userIDs []string) ([]models.SurveySubmission, error) {
	return s.submissions, nil
}

type surveyRosterStub struct {
	members    []models.Member
	lastFilter models.MemberFilter
}

func (s *surveyRosterStub) List(ctx context.Context, orgID int64, filter models.MemberFilter) ([]models.Member, int, error) {
	s.lastFilter = filter
	if filter.Page > 1 {
		return nil, len(s.members), nil
	}
	return s.members, len(s.members), nil
}

func surveyMember(username, code, userID string, groupCode string) models.Member {
	m := models.Member{
		OrgID:    10,
		UserID:   userID,
		Username: username,
		Email:    username + "@example.com",
		FullName: "Name " + username,
		Code:     code,
	}
	if groupCode != "" {
		m.GroupCode = &groupCode
	}
	return m
}

func newSurveyService(t *testing.T, surveys *surveyStoreStub, roster *surveyRosterStub, attendance attendanceStub) *SurveyService {
	t.Helper()
	formatter, err := export.NewFormatter("UTC")
	require.NoError(t, err)
	return NewSurveyService(
		surveys,
		roster,
		attendance,
		contractCourseStub{course: &models.ContractCourse{ContractID: 42, CourseID: "course-1"}},
		formatter,
		zap.NewNop(),
	)
}

func TestSurveySearchMergesAnswers(t *testing.T) {
	answeredAt := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	surveys := &surveyStoreStub{
		units: []models.SurveyUnit{{UnitID: "u1", SurveyName: "Satisfaction"}},
		submissions: []models.SurveySubmission{
			{UnitID: "u1", UserID: "uid-bob", CreatedAt: answeredAt},
		},
	}
	roster := &surveyRosterStub{members: []models.Member{
		surveyMember("bob", "M001", "uid-bob", "G001"),
		surveyMember("carol", "M002", "uid-carol", "G001"),
	}}
	svc := newSurveyService(t, surveys, roster, attendanceStub{})

	grid, err := svc.Search(context.Background(), directorScope(), "course-1", dto.SurveySearchRequest{})
	require.NoError(t, err)
	require.Len(t, grid.Records, 2)
	assert.Equal(t, 2, grid.Total)
	assert.Contains(t, grid.Columns, "Satisfaction")

	bob := grid.Records[0]
	assert.Equal(t, "bob", bob["Username"])
	assert.Equal(t, "2024/03/05 10:30", bob["Satisfaction"])
	carol := grid.Records[1]
	assert.Equal(t, "", carol["Satisfaction"])
}

func TestSurveySearchSortsByGroupMemberUsername(t *testing.T) {
	roster := &surveyRosterStub{members: []models.Member{
		surveyMember("zoe", "M003", "uid-z", "G002"),
		surveyMember("amy", "M002", "uid-a", "G001"),
		surveyMember("bob", "M001", "uid-b", ""),
	}}
	svc := newSurveyService(t, &surveyStoreStub{}, roster, attendanceStub{})

	grid, err := svc.Search(context.Background(), directorScope(), "course-1", dto.SurveySearchRequest{})
	require.NoError(t, err)
	require.Len(t, grid.Records, 3)
	assert.Equal(t, "amy", grid.Records[0]["Username"])
	assert.Equal(t, "zoe", grid.Records[1]["Username"])
	// Ungrouped members sort after grouped ones.
	assert.Equal(t, "bob", grid.Records[2]["Username"])
}

func TestSurveySearchAnsweredFilter(t *testing.T) {
	surveys := &surveyStoreStub{
		units: []models.SurveyUnit{{UnitID: "u1", SurveyName: "Satisfaction"}},
		submissions: []models.SurveySubmission{
			{UnitID: "u1", UserID: "uid-bob", CreatedAt: time.Now()},
		},
	}
	roster := &surveyRosterStub{members: []models.Member{
		surveyMember("bob", "M001", "uid-bob", "G001"),
		surveyMember("carol", "M002", "uid-carol", "G001"),
	}}
	svc := newSurveyService(t, surveys, roster, attendanceStub{})

	grid, err := svc.Search(context.Background(), directorScope(), "course-1", dto.SurveySearchRequest{
		SurveyName: "Satisfaction", Answered: true,
	})
	require.NoError(t, err)
	require.Len(t, grid.Records, 1)
	assert.Equal(t, "bob", grid.Records[0]["Username"])

	grid, err = svc.Search(context.Background(), directorScope(), "course-1", dto.SurveySearchRequest{
		SurveyName: "Satisfaction", NotAnswered: true,
	})
	require.NoError(t, err)
	require.Len(t, grid.Records, 1)
	assert.Equal(t, "carol", grid.Records[0]["Username"])

	// Both sides requested keeps every row.
	grid, err = svc.Search(context.Background(), directorScope(), "course-1", dto.SurveySearchRequest{
		SurveyName: "Satisfaction", Answered: true, NotAnswered: true,
	})
	require.NoError(t, err)
	assert.Len(t, grid.Records, 2)
}

func TestSurveySearchRestrictedScopesRoster(t *testing.T) {
	roster := &surveyRosterStub{members: []models.Member{
		surveyMember("bob", "M001", "uid-bob", "G001"),
	}}
	svc := newSurveyService(t, &surveyStoreStub{}, roster, attendanceStub{})

	_, err := svc.Search(context.Background(), restrictedScope(5), "course-1", dto.SurveySearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, roster.lastFilter.GroupIDs)

	grid, err := svc.Search(context.Background(), restrictedScope(), "course-1", dto.SurveySearchRequest{})
	require.NoError(t, err)
	assert.Empty(t, grid.Records)
}

func TestSurveyDuplicateNamesGetUnitSuffix(t *testing.T) {
	surveys := &surveyStoreStub{units: []models.SurveyUnit{
		{UnitID: "u1", SurveyName: "Quiz"},
		{UnitID: "u2", SurveyName: "Quiz"},
	}}
	svc := newSurveyService(t, surveys, &surveyRosterStub{}, attendanceStub{})

	grid, err := svc.Search(context.Background(), directorScope(), "course-1", dto.SurveySearchRequest{})
	require.NoError(t, err)
	assert.Contains(t, grid.Columns, "Quiz (u1)")
	assert.Contains(t, grid.Columns, "Quiz (u2)")
}

func TestSurveyDownloadTSV(t *testing.T) {
	enrolledAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	surveys := &surveyStoreStub{
		units: []models.SurveyUnit{{UnitID: "u1", SurveyName: "Satisfaction"}},
	}
	roster := &surveyRosterStub{members: []models.Member{
		surveyMember("bob", "M001", "uid-bob", "G001"),
	}}
	attendance := attendanceStub{enrollments: []models.Enrollment{
		{ID: 1, Username: "bob", CourseID: "course-1", Active: true, CreatedAt: enrolledAt},
	}}
	svc := newSurveyService(t, surveys, roster, attendance)

	filename, data, err := svc.Download(context.Background(), directorScope(), "course-1", dto.SurveySearchRequest{})
	require.NoError(t, err)
	assert.Contains(t, filename, "_survey_")

	rows, err := export.DecodeTSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Group Code", rows[0][0])
	assert.Equal(t, "G001", rows[1][0])
	assert.Equal(t, "2024/02/01", rows[1][6])
}

func TestSurveyUnknownCourse(t *testing.T) {
	formatter, err := export.NewFormatter("UTC")
	require.NoError(t, err)
	svc := NewSurveyService(
		&surveyStoreStub{},
		&surveyRosterStub{},
		attendanceStub{},
		contractCourseStub{},
		formatter,
		zap.NewNop(),
	)

	_, err = svc.Search(context.Background(), directorScope(), "missing", dto.SurveySearchRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
