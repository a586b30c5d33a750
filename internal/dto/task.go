package dto

import "time"

// TaskSubmitRequest starts a batch operation for the scoped contract.
type TaskSubmitRequest struct {
	TaskType string `json:"task_type" validate:"required,oneof=student_register student_unregister member_register personalinfo_mask reminder_email"`
	// Payload is the raw operation input: uploaded TSV content for the
	// register types, target usernames for the mask, mail parameters for
	// the reminder.
	Payload string `json:"payload"`
}

// ReminderRequest is the reminder email batch input. Field names line up
// with the runner's payload envelope.
type ReminderRequest struct {
	Subject   string   `json:"subject" validate:"required"`
	Body      string   `json:"body" validate:"required"`
	Usernames []string `json:"usernames" validate:"required,min=1"`
}

// TaskSubmitResponse acknowledges an admitted task.
type TaskSubmitResponse struct {
	TaskID  string `json:"task_id"`
	State   string `json:"state"`
	Message string `json:"message"`
}

// TaskHistoryItem is one row of the task history view.
type TaskHistoryItem struct {
	TaskID    string     `json:"task_id"`
	TypeLabel string     `json:"type_label"`
	State     string     `json:"state"`
	Requester string     `json:"requester"`
	Output    string     `json:"output,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
