package models

import "time"

// Task states. Terminal ("ready") states mean the task no longer blocks
// admission of a new one with the same key.
const (
	TaskStatePending = "PENDING"
	TaskStateRunning = "RUNNING"
	TaskStateSuccess = "SUCCESS"
	TaskStateFailure = "FAILURE"
	TaskStateRevoked = "REVOKED"
)

// TerminalTaskStates is the set of states that release the admission check.
var TerminalTaskStates = []string{TaskStateSuccess, TaskStateFailure, TaskStateRevoked}

// Task types submitted through the batch queue.
const (
	TaskTypeStudentRegister   = "student_register"
	TaskTypeStudentUnregister = "student_unregister"
	TaskTypeMemberRegister    = "member_register"
	TaskTypePersonalinfoMask  = "personalinfo_mask"
	TaskTypeReminderEmail     = "reminder_email"
)

// TaskTypeLabels maps task types to their display names for history rows
// and duplicate-submission messages.
var TaskTypeLabels = map[string]string{
	TaskTypeStudentRegister:   "Student Register",
	TaskTypeStudentUnregister: "Student Unregister",
	TaskTypeMemberRegister:    "Member Register",
	TaskTypePersonalinfoMask:  "Personal Information Mask",
	TaskTypeReminderEmail:     "Reminder Email",
}

// Task is one batch operation record. Key is the md5 hash of the contract
// id or organization code the operation is scoped to; the admission check
// looks for non-terminal rows sharing the key.
type Task struct {
	ID          string     `db:"id" json:"id"`
	Type        string     `db:"task_type" json:"task_type"`
	Key         string     `db:"task_key" json:"task_key"`
	State       string     `db:"task_state" json:"task_state"`
	Input       string     `db:"task_input" json:"task_input"`
	Output      *string    `db:"task_output" json:"task_output,omitempty"`
	RequesterID string     `db:"requester_id" json:"requester_id"`
	Requester   string     `db:"requester" json:"requester"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// IsTerminal reports whether the task has reached a terminal state.
func (t Task) IsTerminal() bool {
	for _, s := range TerminalTaskStates {
		if t.State == s {
			return true
		}
	}
	return false
}

// TaskOutput is the structured result summary stored on completion.
type TaskOutput struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
