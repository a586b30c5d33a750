package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/export"
)

type surveyStore interface {
	Units(ctx context.Context, courseID string) ([]models.SurveyUnit, error)
	Submissions(ctx context.Context, courseID string, userIDs []string) ([]models.SurveySubmission, error)
}

type surveyRoster interface {
	List(ctx context.Context, orgID int64, filter models.MemberFilter) ([]models.Member, int, error)
}

// Fixed roster prefix of the answer-status grid.
var surveyPrefixColumns = []string{
	"Group Code", "Group Name", "Member Code", "Username", "Full Name",
	"Email", "Enroll Date", models.FieldStudentStatus,
}

// SurveyService merges the member roster with survey submissions into
// the answer-status grid and its TSV export.
type SurveyService struct {
	surveys     surveyStore
	members     surveyRoster
	enrollments attendanceResolver
	contracts   contractCourseReader
	formatter   *export.Formatter
	logger      *zap.Logger
}

// NewSurveyService wires the answer-status pipeline.
func NewSurveyService(
	surveys surveyStore,
	members surveyRoster,
	enrollments attendanceResolver,
	contracts contractCourseReader,
	formatter *export.Formatter,
	logger *zap.Logger,
) *SurveyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyService{
		surveys:     surveys,
		members:     members,
		enrollments: enrollments,
		contracts:   contracts,
		formatter:   formatter,
		logger:      logger,
	}
}

// surveyGrid holds the full surviving row set before pagination.
type surveyGrid struct {
	units []models.SurveyUnit
	// labels maps a unit id to its display column label.
	labels map[string]string
	rows   []models.SurveyRow
}

// Search returns one page of the answer-status grid.
func (s *SurveyService) Search(ctx context.Context, scope models.RequestScope, courseID string, req dto.SurveySearchRequest) (*dto.SurveyGrid, error) {
	grid, err := s.build(ctx, scope, courseID, req)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	total := len(grid.rows)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	records := make([]map[string]interface{}, 0, end-start)
	for _, row := range grid.rows[start:end] {
		records = append(records, s.toRecord(grid, row))
	}
	return &dto.SurveyGrid{
		Columns: s.columns(grid),
		Records: records,
		Total:   total,
	}, nil
}

// Download renders the full surviving row set as TSV.
func (s *SurveyService) Download(ctx context.Context, scope models.RequestScope, courseID string, req dto.SurveySearchRequest) (string, []byte, error) {
	grid, err := s.build(ctx, scope, courseID, req)
	if err != nil {
		return "", nil, err
	}

	header := s.columns(grid)
	rows := make([][]string, 0, len(grid.rows))
	for _, row := range grid.rows {
		record := s.toRecord(grid, row)
		cells := make([]string, len(header))
		for i, col := range header {
			if v, ok := record[col].(string); ok {
				cells[i] = v
			}
		}
		rows = append(rows, cells)
	}

	data, err := export.EncodeTSV(header, rows)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode export")
	}
	filename := fmt.Sprintf("%s_survey_%s.tsv", scope.Contract.Code, time.Now().Format("20060102-150405"))
	return filename, data, nil
}

// build loads the visible roster, joins enrollments and submissions,
// applies the answered filter, and sorts by (group code, member code,
// username).
func (s *SurveyService) build(ctx context.Context, scope models.RequestScope, courseID string, req dto.SurveySearchRequest) (*surveyGrid, error) {
	course, err := s.contracts.FindCourse(ctx, scope.Contract.ID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found in contract")
		}
		return nil, appErrors.ErrRetryLater
	}

	units, err := s.surveys.Units(ctx, courseID)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}

	members, err := s.visibleMembers(ctx, scope)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	grid := &surveyGrid{units: units, labels: unitLabels(units)}
	if len(members) == 0 {
		return grid, nil
	}

	usernames := make([]string, 0, len(members))
	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		usernames = append(usernames, m.Username)
		userIDs = append(userIDs, m.UserID)
	}

	enrollments, err := s.enrollments.FindByCourseAndUsers(ctx, courseID, usernames)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	enrollByUsername := make(map[string]models.Enrollment, len(enrollments))
	for _, e := range enrollments {
		enrollByUsername[e.Username] = e
	}

	var attendance map[int64]models.AttendanceValue
	if course.IsStatusManaged {
		ids := make([]int64, 0, len(enrollments))
		for _, e := range enrollments {
			ids = append(ids, e.ID)
		}
		attendance, err = s.enrollments.AttendanceValues(ctx, ids)
		if err != nil {
			return nil, appErrors.ErrRetryLater
		}
	}

	submissions, err := s.surveys.Submissions(ctx, courseID, userIDs)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	answered := firstAnswerTimes(submissions)

	filter := models.SurveyFilter{
		SurveyName:  req.SurveyName,
		Answered:    req.Answered,
		NotAnswered: req.NotAnswered,
	}
	filterUnits := unitsNamed(units, filter.SurveyName)

	rows := make([]models.SurveyRow, 0, len(members))
	for _, m := range members {
		row := models.SurveyRow{Member: m, AnsweredAt: answered[m.UserID]}

		if e, ok := enrollByUsername[m.Username]; ok && e.Active {
			created := e.CreatedAt
			row.EnrollDate = &created
			row.Status = models.StudentStatusEnrolled
			if course.IsStatusManaged {
				row.Status = attendance[e.ID].StudentStatus()
			}
		} else {
			row.Status = models.StudentStatusNotEnrolled
		}

		if !matchSurveyFilter(row, filter, filterUnits) {
			continue
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Member, rows[j].Member
		if ac, bc := groupCodeOf(a), groupCodeOf(b); ac != bc {
			return ac < bc
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Username < b.Username
	})

	grid.rows = rows
	return grid, nil
}

// visibleMembers loads the caller's full visible roster, page by page.
func (s *SurveyService) visibleMembers(ctx context.Context, scope models.RequestScope) ([]models.Member, error) {
	filter := models.MemberFilter{PageSize: 100}
	if scope.Restricted() {
		if len(scope.VisibleGroupIDs) == 0 {
			return nil, nil
		}
		filter.GroupIDs = scope.VisibleGroupIDs
	}

	var members []models.Member
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := s.members.List(ctx, scope.Org.ID, filter)
		if err != nil {
			return nil, err
		}
		members = append(members, batch...)
		if page*100 >= total || len(batch) == 0 {
			break
		}
	}
	return members, nil
}

// unitLabels assigns each unit a display label: the survey name, with
// the unit id appended when two units share a name.
func unitLabels(units []models.SurveyUnit) map[string]string {
	nameCount := make(map[string]int, len(units))
	for _, u := range units {
		nameCount[u.SurveyName]++
	}
	labels := make(map[string]string, len(units))
	for _, u := range units {
		if nameCount[u.SurveyName] > 1 {
			labels[u.UnitID] = fmt.Sprintf("%s (%s)", u.SurveyName, u.UnitID)
		} else {
			labels[u.UnitID] = u.SurveyName
		}
	}
	return labels
}

// firstAnswerTimes keeps the earliest submission per (user, unit).
// Submissions arrive ordered by created_at.
func firstAnswerTimes(submissions []models.SurveySubmission) map[string]map[string]time.Time {
	answered := make(map[string]map[string]time.Time)
	for _, sub := range submissions {
		units := answered[sub.UserID]
		if units == nil {
			units = make(map[string]time.Time)
			answered[sub.UserID] = units
		}
		if _, ok := units[sub.UnitID]; !ok {
			units[sub.UnitID] = sub.CreatedAt
		}
	}
	return answered
}

func unitsNamed(units []models.SurveyUnit, name string) []string {
	var ids []string
	for _, u := range units {
		if u.SurveyName == name {
			ids = append(ids, u.UnitID)
		}
	}
	return ids
}

// matchSurveyFilter keeps a row when the filter is inert, or when the
// row's answered state for the named survey matches the requested side.
func matchSurveyFilter(row models.SurveyRow, filter models.SurveyFilter, filterUnits []string) bool {
	if filter.All() {
		return true
	}
	answered := false
	for _, unitID := range filterUnits {
		if _, ok := row.AnsweredAt[unitID]; ok {
			answered = true
			break
		}
	}
	if answered {
		return filter.Answered
	}
	return filter.NotAnswered
}

func groupCodeOf(m models.Member) string {
	if m.GroupCode == nil {
		// Ungrouped members sort last.
		return "\uffff"
	}
	return *m.GroupCode
}

func (s *SurveyService) columns(grid *surveyGrid) []string {
	columns := append([]string{}, surveyPrefixColumns...)
	for _, u := range grid.units {
		columns = append(columns, grid.labels[u.UnitID])
	}
	return columns
}

func (s *SurveyService) toRecord(grid *surveyGrid, row models.SurveyRow) map[string]interface{} {
	m := row.Member
	record := make(map[string]interface{}, len(surveyPrefixColumns)+len(grid.units))
	record["Group Code"] = stringOf(m.GroupCode)
	record["Group Name"] = stringOf(m.GroupName)
	record["Member Code"] = m.Code
	record["Username"] = m.Username
	record["Full Name"] = m.FullName
	record["Email"] = m.Email
	record[models.FieldStudentStatus] = row.Status

	enrollDate := ""
	if row.EnrollDate != nil {
		enrollDate = s.formatter.Cell(export.ColumnSpec{Type: export.TypeDate}, *row.EnrollDate)
	}
	record["Enroll Date"] = enrollDate

	for _, u := range grid.units {
		answeredAt := ""
		if t, ok := row.AnsweredAt[u.UnitID]; ok {
			answeredAt = s.formatter.Timestamp(t)
		}
		record[grid.labels[u.UnitID]] = answeredAt
	}
	return record
}

func stringOf(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
