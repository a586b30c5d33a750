package models

import (
	"encoding/json"
	"time"
)

// Enrollment is a student's enrollment row for one course.
type Enrollment struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AttendanceValue is the raw attendance attribute stored per enrollment:
// a JSON object optionally carrying attended/completed timestamps.
type AttendanceValue string

type attendancePayload struct {
	AttendedDate  string `json:"attended_date"`
	CompletedDate string `json:"completed_date"`
}

func (v AttendanceValue) payload() attendancePayload {
	var p attendancePayload
	// Malformed values count as never attended.
	_ = json.Unmarshal([]byte(v), &p)
	return p
}

// IsAttended reports whether the student has opened the course.
func (v AttendanceValue) IsAttended() bool {
	return v.payload().AttendedDate != ""
}

// IsCompleted reports whether the student finished the course.
func (v AttendanceValue) IsCompleted() bool {
	return v.payload().CompletedDate != ""
}

// StudentStatus resolves the tri-state display status.
func (v AttendanceValue) StudentStatus() string {
	switch {
	case v.IsCompleted():
		return StudentStatusFinishEnrolled
	case v.IsAttended():
		return StudentStatusEnrolled
	default:
		return StudentStatusNotEnrolled
	}
}
