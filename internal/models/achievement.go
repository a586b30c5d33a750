package models

// Fixed field labels shared by the score and playback collections. The
// batch job writes documents keyed by these display labels, so they double
// as column headers.
const (
	FieldFullName          = "Full Name"
	FieldUsername          = "Username"
	FieldEmail             = "Email"
	FieldAdditionalInfo    = "Additional Info"
	FieldStudentStatus     = "Student Status"
	FieldCertificateStatus = "Certificate Status"
	FieldEnrollDate        = "Enroll Date"
	FieldCertificateIssue  = "Certificate Issue Date"
	FieldTotalScore        = "Total Score"
	FieldTotalPlaybackTime = "Total Playback Time"
	FieldOrganizationGroup = "Organization Groups"
)

// Student status values.
const (
	StudentStatusNotEnrolled    = "Not Enrolled"
	StudentStatusEnrolled       = "Enrolled"
	StudentStatusFinishEnrolled = "Finish Enrolled"
	StudentStatusUnenrolled     = "Unenrolled"
	StudentStatusDisabled       = "Disabled"
)

// Certificate status values.
const (
	CertStatusDownloadable = "Downloadable"
	CertStatusUnpublished  = "Unpublished"
)

// NotAttempted is the distinguished percent-cell sentinel emitted for
// sections a student never opened. The formatter passes it through
// unchanged.
const NotAttempted = "Not Attempted"

// AchievementTarget selects which collection a request reads.
type AchievementTarget string

const (
	TargetScore    AchievementTarget = "score"
	TargetPlayback AchievementTarget = "playback"
)

// AchievementRecord is one student's row as stored by the batch job:
// fixed fields plus per-course dynamic section fields. Field order is
// carried by the ColumnSpec list, not the map.
type AchievementRecord map[string]interface{}

// Username returns the record's username key, or "" when missing.
func (r AchievementRecord) Username() string {
	if v, ok := r[FieldUsername].(string); ok {
		return v
	}
	return ""
}

// FilterCondition restricts which achievement records are retained.
// Numeric bounds are inclusive; a nil bound is unbounded on that side.
// Invert negates this one predicate before conjunction.
type FilterCondition struct {
	Field  string   `json:"field"`
	From   *float64 `json:"from,omitempty"`
	To     *float64 `json:"to,omitempty"`
	Text   string   `json:"text,omitempty"`
	Invert bool     `json:"invert"`
}

// AchievementQuery is the full request for a grid page or export.
type AchievementQuery struct {
	ContractID        int64
	CourseID          string
	Target            AchievementTarget
	Conditions        []FilterCondition
	CertificateStatus string
	StudentStatus     string
	Offset            int
	Limit             int
}
