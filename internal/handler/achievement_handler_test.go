package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/middleware"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
)

type achievementServiceMock struct {
	grid        *dto.AchievementGrid
	searchErr   error
	downloadErr error
	lastTarget  models.AchievementTarget
	lastCourse  string
	lastFormat  string
	lastReq     dto.AchievementSearchRequest
}

func (m *achievementServiceMock) Search(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID string, req dto.AchievementSearchRequest) (*dto.AchievementGrid, error) {
	m.lastTarget = target
	m.lastCourse = courseID
	m.lastReq = req
	return m.grid, m.searchErr
}

func (m *achievementServiceMock) Download(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID string, req dto.AchievementSearchRequest, format string) (string, []byte, error) {
	m.lastTarget = target
	m.lastFormat = format
	return "C01_score_20240101-000000.csv", []byte("csv-bytes"), m.downloadErr
}

func (m *achievementServiceMock) Report(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID, username string) ([]byte, error) {
	m.lastTarget = target
	m.lastCourse = courseID
	return []byte("%PDF-1.4"), nil
}

func achievementTestContext(t *testing.T, method, path string, body []byte, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextScopeKey, models.RequestScope{
		Org:      models.Organization{ID: 1, Code: "ORG"},
		Contract: models.Contract{ID: 7, Code: "C01"},
		Manager:  models.Manager{UserID: "u1", Role: models.RoleDirector},
	})
	return c, w
}

func TestAchievementHandlerGrid(t *testing.T) {
	mockSvc := &achievementServiceMock{grid: &dto.AchievementGrid{Total: 2}}
	handler := NewAchievementHandler(mockSvc)

	c, w := achievementTestContext(t, http.MethodGet, "/achievement/7/course-1/score", nil, gin.Params{
		{Key: "contract", Value: "7"},
		{Key: "course", Value: "course-1"},
		{Key: "target", Value: "score"},
	})

	handler.Grid(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TargetScore, mockSvc.lastTarget)
	assert.Equal(t, "course-1", mockSvc.lastCourse)
}

func TestAchievementHandlerGridBadTarget(t *testing.T) {
	handler := NewAchievementHandler(&achievementServiceMock{})

	c, w := achievementTestContext(t, http.MethodGet, "/achievement/7/course-1/bogus", nil, gin.Params{
		{Key: "target", Value: "bogus"},
	})

	handler.Grid(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAchievementHandlerSearchPassesConditions(t *testing.T) {
	mockSvc := &achievementServiceMock{grid: &dto.AchievementGrid{}}
	handler := NewAchievementHandler(mockSvc)

	from := 50.0
	payload, _ := json.Marshal(dto.AchievementSearchRequest{
		Conditions: []models.FilterCondition{{Field: "Total Score", From: &from}},
		Page:       2,
	})
	c, w := achievementTestContext(t, http.MethodPost, "/achievement/7/course-1/playback/search", payload, gin.Params{
		{Key: "course", Value: "course-1"},
		{Key: "target", Value: "playback"},
	})

	handler.Search(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TargetPlayback, mockSvc.lastTarget)
	require.Len(t, mockSvc.lastReq.Conditions, 1)
	assert.Equal(t, "Total Score", mockSvc.lastReq.Conditions[0].Field)
	assert.Equal(t, 2, mockSvc.lastReq.Page)
}

func TestAchievementHandlerSearchError(t *testing.T) {
	mockSvc := &achievementServiceMock{searchErr: appErrors.ErrRetryLater}
	handler := NewAchievementHandler(mockSvc)

	c, w := achievementTestContext(t, http.MethodPost, "/achievement/7/course-1/score/search", []byte(`{}`), gin.Params{
		{Key: "target", Value: "score"},
	})

	handler.Search(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "RETRY_LATER")
}

func TestAchievementHandlerDownloadHeaders(t *testing.T) {
	mockSvc := &achievementServiceMock{}
	handler := NewAchievementHandler(mockSvc)

	payload, _ := json.Marshal(dto.AchievementDownloadRequest{Format: "csv"})
	c, w := achievementTestContext(t, http.MethodPost, "/achievement/7/course-1/score/download", payload, gin.Params{
		{Key: "course", Value: "course-1"},
		{Key: "target", Value: "score"},
	})

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.lastFormat)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "filename*=UTF-8''C01_score_20240101-000000.csv")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Set-Cookie"), "fileDownload=true")
	assert.Equal(t, "csv-bytes", w.Body.String())
}

func TestAchievementHandlerDownloadDefaultsToCSV(t *testing.T) {
	mockSvc := &achievementServiceMock{}
	handler := NewAchievementHandler(mockSvc)

	c, w := achievementTestContext(t, http.MethodPost, "/achievement/7/course-1/score/download", []byte(`{}`), gin.Params{
		{Key: "target", Value: "score"},
	})

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.lastFormat)
}

func TestAchievementHandlerReport(t *testing.T) {
	mockSvc := &achievementServiceMock{}
	handler := NewAchievementHandler(mockSvc)

	c, w := achievementTestContext(t, http.MethodGet, "/achievement/7/course-1/score/report/alice", nil, gin.Params{
		{Key: "course", Value: "course-1"},
		{Key: "target", Value: "score"},
		{Key: "username", Value: "alice"},
	})

	handler.Report(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "alice_report.pdf")
}

func TestAchievementHandlerMissingScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAchievementHandler(&achievementServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/achievement/7/course-1/score", nil)
	c.Request = req

	handler.Grid(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
