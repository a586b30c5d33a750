package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
)

type surveyServiceMock struct {
	grid       *dto.SurveyGrid
	err        error
	lastCourse string
	lastReq    dto.SurveySearchRequest
}

func (m *surveyServiceMock) Search(ctx context.Context, scope models.RequestScope, courseID string, req dto.SurveySearchRequest) (*dto.SurveyGrid, error) {
	m.lastCourse = courseID
	m.lastReq = req
	return m.grid, m.err
}

func (m *surveyServiceMock) Download(ctx context.Context, scope models.RequestScope, courseID string, req dto.SurveySearchRequest) (string, []byte, error) {
	m.lastCourse = courseID
	return "C01_survey_20240101-000000.tsv", []byte("survey-tsv"), m.err
}

func TestSurveyHandlerSearch(t *testing.T) {
	mockSvc := &surveyServiceMock{grid: &dto.SurveyGrid{Total: 3}}
	handler := NewSurveyHandler(mockSvc)

	payload, _ := json.Marshal(dto.SurveySearchRequest{SurveyName: "Quiz", Answered: true})
	c, w := orgTestContext(t, http.MethodPost, "/surveys/7/course-1/search", payload)
	c.Params = gin.Params{{Key: "contract", Value: "7"}, {Key: "course", Value: "course-1"}}

	handler.Search(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "course-1", mockSvc.lastCourse)
	assert.Equal(t, "Quiz", mockSvc.lastReq.SurveyName)
	assert.True(t, mockSvc.lastReq.Answered)
}

func TestSurveyHandlerSearchUnknownCourse(t *testing.T) {
	mockSvc := &surveyServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "course not found in contract")}
	handler := NewSurveyHandler(mockSvc)

	c, w := orgTestContext(t, http.MethodPost, "/surveys/7/missing/search", []byte(`{}`))
	c.Params = gin.Params{{Key: "course", Value: "missing"}}

	handler.Search(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSurveyHandlerDownloadHeaders(t *testing.T) {
	mockSvc := &surveyServiceMock{}
	handler := NewSurveyHandler(mockSvc)

	c, w := orgTestContext(t, http.MethodPost, "/surveys/7/course-1/download", []byte(`{}`))
	c.Params = gin.Params{{Key: "course", Value: "course-1"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "C01_survey_20240101-000000.tsv")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/tab-separated-values")
	assert.Equal(t, "survey-tsv", w.Body.String())
}

func TestSurveyHandlerMissingScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSurveyHandler(&surveyServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/surveys/7/course-1/search", nil)
	c.Request = req

	handler.Search(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
