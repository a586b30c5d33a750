package models

import "time"

// SurveySubmission is one answered survey unit for a user in a course.
type SurveySubmission struct {
	ID         int64     `db:"id" json:"id"`
	UnitID     string    `db:"unit_id" json:"unit_id"`
	SurveyName string    `db:"survey_name" json:"survey_name"`
	UserID     string    `db:"user_id" json:"user_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SurveyUnit pairs a unit with its current survey display name.
type SurveyUnit struct {
	UnitID     string `db:"unit_id" json:"unit_id"`
	SurveyName string `db:"survey_name" json:"survey_name"`
}

// SurveyFilter selects rows by answered state for one survey name. When
// Answered and NotAnswered agree (both set or both clear), no filtering
// applies.
type SurveyFilter struct {
	SurveyName  string `json:"survey_name"`
	Answered    bool   `json:"answered"`
	NotAnswered bool   `json:"not_answered"`
}

// All reports whether the filter keeps every row.
func (f SurveyFilter) All() bool {
	if f.SurveyName == "" {
		return true
	}
	return f.Answered == f.NotAnswered
}

// SurveyRow is one merged roster row for the answer-status grid.
type SurveyRow struct {
	Member     Member
	EnrollDate *time.Time
	Status     string
	AnsweredAt map[string]time.Time
}
