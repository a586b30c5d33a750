package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/export"
)

type achievementRecordStore interface {
	Columns(ctx context.Context, target models.AchievementTarget, contractID int64, courseID string) ([]export.ColumnSpec, error)
	Records(ctx context.Context, q models.AchievementQuery, usernames []string) ([]models.AchievementRecord, error)
	Count(ctx context.Context, q models.AchievementQuery, usernames []string) (int64, error)
}

type memberDirectory interface {
	FindByUsernames(ctx context.Context, orgID int64, usernames []string) ([]models.Member, error)
}

type attendanceResolver interface {
	FindByCourseAndUsers(ctx context.Context, courseID string, usernames []string) ([]models.Enrollment, error)
	AttendanceValues(ctx context.Context, enrollmentIDs []int64) (map[int64]models.AttendanceValue, error)
}

type batchStatusReader interface {
	Latest(ctx context.Context, contractID int64, courseID string, target models.AchievementTarget) (*models.BatchStatus, error)
}

type contractCourseReader interface {
	FindCourse(ctx context.Context, contractID int64, courseID string) (*models.ContractCourse, error)
}

// AchievementService produces the merged grid and exports for score and
// playback reporting.
type AchievementService struct {
	store       achievementRecordStore
	members     memberDirectory
	enrollments attendanceResolver
	batches     batchStatusReader
	contracts   contractCourseReader
	formatter   *export.Formatter
	pdf         *export.PDFExporter
	metrics     *MetricsService
	logger      *zap.Logger
}

// SetMetrics attaches the Prometheus instrumentation. Optional; a nil
// MetricsService disables observation.
func (s *AchievementService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewAchievementService wires the reporting pipeline.
func NewAchievementService(
	store achievementRecordStore,
	members memberDirectory,
	enrollments attendanceResolver,
	batches batchStatusReader,
	contracts contractCourseReader,
	formatter *export.Formatter,
	pdf *export.PDFExporter,
	logger *zap.Logger,
) *AchievementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementService{
		store:       store,
		members:     members,
		enrollments: enrollments,
		batches:     batches,
		contracts:   contracts,
		formatter:   formatter,
		pdf:         pdf,
		logger:      logger,
	}
}

// Labels of the roster columns appended after the record store schema.
const fieldOrgPrefix = "Organization "
const fieldItemPrefix = "Item "

// memberColumnSpecs lists the appended roster columns. The grid hides the
// rarely used attribute columns past the third; exports show them all.
func memberColumnSpecs(detail bool) []export.ColumnSpec {
	specs := []export.ColumnSpec{{Field: models.FieldOrganizationGroup, Type: export.TypeText}}
	appendAttrs := func(prefix string) {
		for i := 1; i <= models.MaxMemberAttrs; i++ {
			typ := export.TypeText
			if !detail && i > 3 {
				typ = export.TypeHidden
			}
			specs = append(specs, export.ColumnSpec{Field: fmt.Sprintf("%s%d", prefix, i), Type: typ})
		}
	}
	appendAttrs(fieldOrgPrefix)
	appendAttrs(fieldItemPrefix)
	return specs
}

// memberAttrKey translates a display label like "Organization 3" to the
// roster attribute key "org3". Returns false for non-roster labels.
func memberAttrKey(field string) (string, bool) {
	if n, ok := strings.CutPrefix(field, fieldOrgPrefix); ok {
		return "org" + n, true
	}
	if n, ok := strings.CutPrefix(field, fieldItemPrefix); ok {
		return "item" + n, true
	}
	return "", false
}

// isMemberField reports whether a filter field targets a roster column
// evaluated after the merge rather than in the record store.
func isMemberField(field string) bool {
	if field == models.FieldOrganizationGroup {
		return true
	}
	_, ok := memberAttrKey(field)
	return ok
}

func splitConditions(conditions []models.FilterCondition) (adapter, member []models.FilterCondition) {
	for _, cond := range conditions {
		if isMemberField(cond.Field) {
			member = append(member, cond)
		} else {
			adapter = append(adapter, cond)
		}
	}
	return adapter, member
}

// mergedGrid holds the full surviving row set before pagination.
type mergedGrid struct {
	columns []export.ColumnSpec
	records []map[string]interface{}
	batch   *models.BatchStatus
	// stored counts raw record documents matching the pushdown filter,
	// before the roster merge drops anything.
	stored int64
}

// Search returns one page of the merged grid.
func (s *AchievementService) Search(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID string, req dto.AchievementSearchRequest) (*dto.AchievementGrid, error) {
	grid, err := s.merge(ctx, scope, target, courseID, req, false)
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
	total := len(grid.records)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return s.toResponse(grid, grid.records[start:end], total), nil
}

// Download renders the full surviving row set as CSV or TSV.
func (s *AchievementService) Download(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID string, req dto.AchievementSearchRequest, format string) (string, []byte, error) {
	grid, err := s.merge(ctx, scope, target, courseID, req, true)
	if err != nil {
		return "", nil, err
	}

	header, rows := s.formatter.Table(grid.columns, grid.records)

	var data []byte
	var ext string
	switch format {
	case "tsv":
		data, err = export.EncodeTSV(header, rows)
		ext = "tsv"
	default:
		data, err = export.EncodeCSV(header, rows)
		ext = "csv"
	}
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode export")
	}

	s.metrics.ObserveExport(ext, len(data))

	filename := fmt.Sprintf("%s_%s_status_%s.%s",
		scope.Contract.Code, target, time.Now().Format("20060102-150405"), ext)
	return filename, data, nil
}

// Report renders one student's record as a PDF field/value sheet.
func (s *AchievementService) Report(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID, username string) ([]byte, error) {
	req := dto.AchievementSearchRequest{
		Conditions: []models.FilterCondition{{Field: models.FieldUsername, Text: username}},
	}
	grid, err := s.merge(ctx, scope, target, courseID, req, true)
	if err != nil {
		return nil, err
	}
	if len(grid.records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
	}

	record := grid.records[0]
	fields := make([]string, 0, len(grid.columns))
	values := make([]string, 0, len(grid.columns))
	for _, col := range grid.columns {
		fields = append(fields, col.Field)
		values = append(values, s.formatter.Cell(col, record[col.Field]))
	}

	title := fmt.Sprintf("%s - %s", scope.Contract.Name, username)
	data, err := s.pdf.Render(title, fields, values)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return data, nil
}

// merge runs the full pipeline: record fetch with pushdown, roster merge,
// visibility filtering, status derivation, and post-merge conditions.
// Row order is the record store's native order throughout.
func (s *AchievementService) merge(ctx context.Context, scope models.RequestScope, target models.AchievementTarget, courseID string, req dto.AchievementSearchRequest, detail bool) (*mergedGrid, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveMerge(string(target), time.Since(start))
	}()

	course, err := s.contracts.FindCourse(ctx, scope.Contract.ID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found in contract")
		}
		return nil, appErrors.ErrRetryLater
	}

	batch, err := s.batches.Latest(ctx, scope.Contract.ID, courseID, target)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	memberSpecs := memberColumnSpecs(detail)
	if batch == nil {
		// No batch has ever produced output for this course.
		return &mergedGrid{columns: memberSpecs}, nil
	}

	columns, err := s.store.Columns(ctx, target, scope.Contract.ID, courseID)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	if columns == nil {
		return &mergedGrid{columns: memberSpecs, batch: batch}, nil
	}

	adapterConds, memberConds := splitConditions(req.Conditions)
	query := models.AchievementQuery{
		ContractID:        scope.Contract.ID,
		CourseID:          courseID,
		Target:            target,
		Conditions:        adapterConds,
		CertificateStatus: req.CertificateStatus,
		Limit:             -1,
	}
	records, err := s.store.Records(ctx, query, nil)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	stored, err := s.store.Count(ctx, query, nil)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}

	usernames := make([]string, 0, len(records))
	for _, record := range records {
		if u := record.Username(); u != "" {
			usernames = append(usernames, u)
		}
	}

	memberByUsername, err := s.loadMembers(ctx, scope.Org.ID, usernames)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}

	var statusByUsername map[string]string
	if course.IsStatusManaged {
		statusByUsername, err = s.loadStatuses(ctx, courseID, usernames)
		if err != nil {
			return nil, appErrors.ErrRetryLater
		}
	}

	merged := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		username := record.Username()
		member, hasMember := memberByUsername[username]

		if !hasMember && scope.Restricted() {
			// A restricted manager only sees roster members.
			continue
		}
		if hasMember && !scope.CanSeeGroup(member.GroupID) {
			continue
		}

		row := make(map[string]interface{}, len(record)+len(memberSpecs))
		for k, v := range record {
			row[k] = v
		}
		decorateMember(row, member, hasMember)

		if status, ok := statusByUsername[username]; ok {
			row[models.FieldStudentStatus] = status
		} else if _, ok := row[models.FieldStudentStatus]; !ok {
			row[models.FieldStudentStatus] = models.StudentStatusNotEnrolled
		}

		if !matchMemberConditions(row, memberConds) {
			continue
		}
		if req.StudentStatus != "" && row[models.FieldStudentStatus] != req.StudentStatus {
			continue
		}
		merged = append(merged, row)
	}

	return &mergedGrid{
		columns: append(columns, memberSpecs...),
		records: merged,
		batch:   batch,
		stored:  stored,
	}, nil
}

func (s *AchievementService) loadMembers(ctx context.Context, orgID int64, usernames []string) (map[string]models.Member, error) {
	members, err := s.members.FindByUsernames(ctx, orgID, usernames)
	if err != nil {
		return nil, err
	}
	byUsername := make(map[string]models.Member, len(members))
	for _, m := range members {
		byUsername[m.Username] = m
	}
	return byUsername, nil
}

func (s *AchievementService) loadStatuses(ctx context.Context, courseID string, usernames []string) (map[string]string, error) {
	enrollments, err := s.enrollments.FindByCourseAndUsers(ctx, courseID, usernames)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.ID)
	}
	values, err := s.enrollments.AttendanceValues(ctx, ids)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]string, len(enrollments))
	for _, e := range enrollments {
		if value, ok := values[e.ID]; ok {
			statuses[e.Username] = value.StudentStatus()
		}
	}
	return statuses, nil
}

// decorateMember writes the roster columns onto a merged row. A student
// outside the roster gets empty attributes.
func decorateMember(row map[string]interface{}, member models.Member, hasMember bool) {
	groupName := ""
	orgAttrs := make([]string, models.MaxMemberAttrs)
	itemAttrs := make([]string, models.MaxMemberAttrs)
	if hasMember {
		if member.GroupName != nil {
			groupName = *member.GroupName
		}
		copy(orgAttrs, member.OrgAttrs())
		copy(itemAttrs, member.ItemAttrs())
	}

	row[models.FieldOrganizationGroup] = groupName
	for i := 0; i < models.MaxMemberAttrs; i++ {
		row[fmt.Sprintf("%s%d", fieldOrgPrefix, i+1)] = orgAttrs[i]
		row[fmt.Sprintf("%s%d", fieldItemPrefix, i+1)] = itemAttrs[i]
	}
}

// matchMemberConditions applies post-merge roster conditions with
// "contains" semantics, honoring each condition's invert flag.
func matchMemberConditions(row map[string]interface{}, conditions []models.FilterCondition) bool {
	for _, cond := range conditions {
		if cond.Text == "" {
			continue
		}
		value, _ := row[cond.Field].(string)
		match := strings.Contains(value, cond.Text)
		if cond.Invert {
			match = !match
		}
		if !match {
			return false
		}
	}
	return true
}

func (s *AchievementService) toResponse(grid *mergedGrid, page []map[string]interface{}, total int) *dto.AchievementGrid {
	columns := make([]dto.ColumnDef, len(grid.columns))
	for i, col := range grid.columns {
		columns[i] = dto.ColumnDef{Field: col.Field, Type: string(col.Type)}
	}

	status := ""
	timestamp := ""
	if grid.batch != nil {
		status = grid.batch.Status
		timestamp = s.formatter.Timestamp(grid.batch.CreatedAt)
	}

	records := page
	if records == nil {
		records = []map[string]interface{}{}
	}
	return &dto.AchievementGrid{
		Columns:        columns,
		Records:        records,
		Total:          total,
		StoredRecords:  grid.stored,
		BatchStatus:    status,
		BatchTimestamp: timestamp,
	}
}
