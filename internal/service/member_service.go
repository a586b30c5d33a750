package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gakuen-dev/biz-ops-api/internal/dto"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	appErrors "github.com/gakuen-dev/biz-ops-api/pkg/errors"
	"github.com/gakuen-dev/biz-ops-api/pkg/export"
	"github.com/gakuen-dev/biz-ops-api/pkg/mail"
)

type memberStore interface {
	List(ctx context.Context, orgID int64, filter models.MemberFilter) ([]models.Member, int, error)
	FindByUsernames(ctx context.Context, orgID int64, usernames []string) ([]models.Member, error)
	Upsert(ctx context.Context, member *models.Member) error
	MaskPersonalInfo(ctx context.Context, orgID int64, username string) error
}

type memberGroupLister interface {
	ListByOrg(ctx context.Context, orgID int64) ([]models.Group, error)
}

type enrollmentWriter interface {
	Upsert(ctx context.Context, enrollment *models.Enrollment) error
	Deactivate(ctx context.Context, courseID, username string) error
}

type contractCoursesLister interface {
	Courses(ctx context.Context, contractID int64) ([]models.ContractCourse, error)
}

// MemberService manages the organization roster: scoped listing, TSV
// interchange, and the batch operation runners.
type MemberService struct {
	repo        memberStore
	groups      memberGroupLister
	enrollments enrollmentWriter
	contracts   contractCoursesLister
	mailer      mail.Sender
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMemberService builds a MemberService.
func NewMemberService(
	repo memberStore,
	groups memberGroupLister,
	enrollments enrollmentWriter,
	contracts contractCoursesLister,
	mailer mail.Sender,
	validate *validator.Validate,
	logger *zap.Logger,
) *MemberService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = mail.NewLogSender(logger)
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MemberService{
		repo:        repo,
		groups:      groups,
		enrollments: enrollments,
		contracts:   contracts,
		mailer:      mailer,
		validator:   validate,
		logger:      logger,
	}
}

// List returns one roster page with the caller's visibility applied.
func (s *MemberService) List(ctx context.Context, scope models.RequestScope, req dto.MemberListRequest) (*dto.MemberListResponse, error) {
	filter := models.MemberFilter{
		GroupID:   req.GroupID,
		Search:    req.Search,
		AttrMatch: req.Attrs,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if scope.Restricted() {
		if len(scope.VisibleGroupIDs) == 0 {
			return &dto.MemberListResponse{Members: []models.Member{}, Pagination: models.Pagination{Page: 1}}, nil
		}
		filter.GroupIDs = scope.VisibleGroupIDs
	}

	members, total, err := s.repo.List(ctx, scope.Org.ID, filter)
	if err != nil {
		return nil, appErrors.ErrRetryLater
	}
	if members == nil {
		members = []models.Member{}
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return &dto.MemberListResponse{
		Members:    members,
		Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}, nil
}

// memberTSVHeader is the fixed bulk-interchange column layout: identity
// columns then the 10+10 free-form attributes.
func memberTSVHeader() []string {
	header := []string{"Email", "Username", "Full Name", "Login Code", "Member Code", "Group Code"}
	for i := 1; i <= models.MaxMemberAttrs; i++ {
		header = append(header, fmt.Sprintf("Organization %d", i))
	}
	for i := 1; i <= models.MaxMemberAttrs; i++ {
		header = append(header, fmt.Sprintf("Item %d", i))
	}
	return header
}

// DownloadTSV renders the caller's visible roster in the bulk
// interchange layout.
func (s *MemberService) DownloadTSV(ctx context.Context, scope models.RequestScope) (string, []byte, error) {
	var rows [][]string
	page := 1
	for {
		resp, err := s.List(ctx, scope, dto.MemberListRequest{Page: page, PageSize: 100})
		if err != nil {
			return "", nil, err
		}
		for _, m := range resp.Members {
			loginCode := ""
			if m.LoginCode != nil {
				loginCode = *m.LoginCode
			}
			groupCode := ""
			if m.GroupCode != nil {
				groupCode = *m.GroupCode
			}
			row := []string{m.Email, m.Username, m.FullName, loginCode, m.Code, groupCode}
			row = append(row, m.OrgAttrs()...)
			row = append(row, m.ItemAttrs()...)
			rows = append(rows, row)
		}
		if page*100 >= resp.Pagination.TotalCount {
			break
		}
		page++
	}

	data, err := export.EncodeTSV(memberTSVHeader(), rows)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode roster")
	}
	filename := fmt.Sprintf("%s_members_%s.tsv", scope.Org.Code, time.Now().Format("20060102-150405"))
	return filename, data, nil
}

// RunMemberRegister is the member_register task runner: it parses the
// uploaded TSV and upserts roster rows keyed by member code. Malformed
// rows are counted as failed without aborting the batch.
func (s *MemberService) RunMemberRegister(ctx context.Context, input TaskInput) (models.TaskOutput, error) {
	rows, err := export.DecodeTSV([]byte(input.Payload))
	if err != nil {
		return models.TaskOutput{}, fmt.Errorf("decode roster upload: %w", err)
	}

	groupsByCode, err := s.groupCodeIndex(ctx, input.OrgID)
	if err != nil {
		return models.TaskOutput{}, err
	}

	var output models.TaskOutput
	for _, cells := range rows {
		if len(cells) > 0 && cells[0] == "Email" {
			// Header row.
			continue
		}
		output.Total++
		row, err := parseMemberRow(cells)
		if err != nil {
			output.Failed++
			continue
		}
		if err := s.validator.Struct(row); err != nil {
			output.Failed++
			continue
		}

		member := rowToMember(row, input.OrgID)
		if row.GroupCode != "" {
			group, ok := groupsByCode[row.GroupCode]
			if !ok {
				output.Failed++
				continue
			}
			member.GroupID = &group.ID
		}
		if err := s.repo.Upsert(ctx, member); err != nil {
			s.logger.Warn("member upsert failed", zap.String("code", row.Code), zap.Error(err))
			output.Failed++
			continue
		}
		output.Succeeded++
	}
	return output, nil
}

// RunPersonalinfoMask is the personalinfo_mask task runner: the payload
// is one username per line.
func (s *MemberService) RunPersonalinfoMask(ctx context.Context, input TaskInput) (models.TaskOutput, error) {
	var output models.TaskOutput
	for _, username := range splitLines(input.Payload) {
		output.Total++
		if err := s.repo.MaskPersonalInfo(ctx, input.OrgID, username); err != nil {
			s.logger.Warn("mask failed", zap.String("username", username), zap.Error(err))
			output.Failed++
			continue
		}
		output.Succeeded++
	}
	return output, nil
}

// RunStudentRegister enrolls the listed usernames into every course of
// the contract.
func (s *MemberService) RunStudentRegister(ctx context.Context, input TaskInput) (models.TaskOutput, error) {
	return s.runEnrollmentOp(ctx, input, func(courseID, username string) error {
		return s.enrollments.Upsert(ctx, &models.Enrollment{Username: username, CourseID: courseID})
	})
}

// RunStudentUnregister unenrolls the listed usernames from every course
// of the contract.
func (s *MemberService) RunStudentUnregister(ctx context.Context, input TaskInput) (models.TaskOutput, error) {
	return s.runEnrollmentOp(ctx, input, func(courseID, username string) error {
		return s.enrollments.Deactivate(ctx, courseID, username)
	})
}

// reminderPayload is the reminder_email task envelope: the subject and
// body to send, plus the selected usernames.
type reminderPayload struct {
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Usernames []string `json:"usernames"`
}

// RunReminderEmail is the reminder_email task runner. Usernames without
// a roster row or email address are skipped so a stale selection does
// not fail the batch.
func (s *MemberService) RunReminderEmail(ctx context.Context, input TaskInput) (models.TaskOutput, error) {
	var payload reminderPayload
	if err := json.Unmarshal([]byte(input.Payload), &payload); err != nil {
		return models.TaskOutput{}, fmt.Errorf("decode reminder payload: %w", err)
	}

	members, err := s.repo.FindByUsernames(ctx, input.OrgID, payload.Usernames)
	if err != nil {
		return models.TaskOutput{}, fmt.Errorf("resolve recipients: %w", err)
	}
	byUsername := make(map[string]models.Member, len(members))
	for _, m := range members {
		byUsername[m.Username] = m
	}

	var output models.TaskOutput
	for _, username := range payload.Usernames {
		output.Total++
		member, ok := byUsername[username]
		if !ok || member.Email == "" {
			output.Skipped++
			continue
		}
		msg := mail.Message{
			ToName:  member.FullName,
			ToEmail: member.Email,
			Subject: payload.Subject,
			Body:    payload.Body,
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.logger.Warn("reminder email failed",
				zap.String("username", member.Username), zap.Error(err))
			output.Failed++
			continue
		}
		output.Succeeded++
	}
	return output, nil
}

func (s *MemberService) runEnrollmentOp(ctx context.Context, input TaskInput, op func(courseID, username string) error) (models.TaskOutput, error) {
	courses, err := s.contracts.Courses(ctx, input.ContractID)
	if err != nil {
		return models.TaskOutput{}, fmt.Errorf("list contract courses: %w", err)
	}

	var output models.TaskOutput
	for _, username := range splitLines(input.Payload) {
		output.Total++
		failed := false
		for _, course := range courses {
			if err := op(course.CourseID, username); err != nil {
				s.logger.Warn("enrollment operation failed",
					zap.String("course_id", course.CourseID), zap.String("username", username), zap.Error(err))
				failed = true
				break
			}
		}
		if failed {
			output.Failed++
		} else {
			output.Succeeded++
		}
	}
	return output, nil
}

func (s *MemberService) groupCodeIndex(ctx context.Context, orgID int64) (map[string]models.Group, error) {
	groups, err := s.groups.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	index := make(map[string]models.Group, len(groups))
	for _, g := range groups {
		index[g.GroupCode] = g
	}
	return index, nil
}

func parseMemberRow(cells []string) (*models.MemberRow, error) {
	if len(cells) < 5 {
		return nil, fmt.Errorf("row has %d columns, need at least 5", len(cells))
	}
	row := &models.MemberRow{
		Email:    cells[0],
		Username: cells[1],
		FullName: cells[2],
		Code:     cells[4],
	}
	row.LoginCode = cells[3]
	if len(cells) > 5 {
		row.GroupCode = cells[5]
	}
	row.Orgs = sliceAt(cells, 6, models.MaxMemberAttrs)
	row.Items = sliceAt(cells, 6+models.MaxMemberAttrs, models.MaxMemberAttrs)
	return row, nil
}

func sliceAt(cells []string, start, count int) []string {
	out := make([]string, 0, count)
	for i := start; i < start+count && i < len(cells); i++ {
		out = append(out, cells[i])
	}
	return out
}

func rowToMember(row *models.MemberRow, orgID int64) *models.Member {
	member := &models.Member{
		OrgID:    orgID,
		Username: row.Username,
		Email:    row.Email,
		FullName: row.FullName,
		Code:     row.Code,
		Active:   true,
	}
	if row.LoginCode != "" {
		member.LoginCode = &row.LoginCode
	}

	orgs := make([]string, models.MaxMemberAttrs)
	copy(orgs, row.Orgs)
	items := make([]string, models.MaxMemberAttrs)
	copy(items, row.Items)
	member.Org1, member.Org2, member.Org3, member.Org4, member.Org5 = orgs[0], orgs[1], orgs[2], orgs[3], orgs[4]
	member.Org6, member.Org7, member.Org8, member.Org9, member.Org10 = orgs[5], orgs[6], orgs[7], orgs[8], orgs[9]
	member.Item1, member.Item2, member.Item3, member.Item4, member.Item5 = items[0], items[1], items[2], items[3], items[4]
	member.Item6, member.Item7, member.Item8, member.Item9, member.Item10 = items[5], items[6], items[7], items[8], items[9]
	return member
}

func splitLines(payload string) []string {
	var out []string
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
