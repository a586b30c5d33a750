package models

import "time"

// Group is a node in the organization group hierarchy. ParentID is 0 for
// root groups.
type Group struct {
	ID        int64     `db:"id" json:"id"`
	OrgID     int64     `db:"org_id" json:"org_id"`
	ParentID  int64     `db:"parent_id" json:"parent_id"`
	LevelNo   int       `db:"level_no" json:"level_no"`
	GroupCode string    `db:"group_code" json:"group_code"`
	GroupName string    `db:"group_name" json:"group_name"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Right grants a manager visibility over a group subtree.
type Right struct {
	ID        int64     `db:"id" json:"id"`
	OrgID     int64     `db:"org_id" json:"org_id"`
	GroupID   int64     `db:"group_id" json:"group_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
