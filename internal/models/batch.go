package models

import "time"

// Batch status values written by the nightly achievement recompute job.
const (
	BatchStatusStarted  = "Started"
	BatchStatusFinished = "Finished"
	BatchStatusError    = "Error"
)

// BatchStatus records when/whether the external job last recomputed an
// achievement collection for a contract+course.
type BatchStatus struct {
	ID           int64             `db:"id" json:"id"`
	ContractID   int64             `db:"contract_id" json:"contract_id"`
	CourseID     string            `db:"course_id" json:"course_id"`
	Target       AchievementTarget `db:"target" json:"target"`
	Status       string            `db:"status" json:"status"`
	StudentCount *int              `db:"student_count" json:"student_count,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}
