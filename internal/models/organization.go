package models

import "time"

// Organization is a contractor organization owning members and contracts.
type Organization struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Contract scopes which organization, courses, and students a report
// view applies to.
type Contract struct {
	ID              int64     `db:"id" json:"id"`
	Code            string    `db:"code" json:"code"`
	Name            string    `db:"name" json:"name"`
	ContractorOrgID int64     `db:"contractor_org_id" json:"contractor_org_id"`
	StartDate       time.Time `db:"start_date" json:"start_date"`
	EndDate         time.Time `db:"end_date" json:"end_date"`
	Enabled         bool      `db:"enabled" json:"enabled"`
}

// ContractCourse links a course to a contract.
type ContractCourse struct {
	ID              int64  `db:"id" json:"id"`
	ContractID      int64  `db:"contract_id" json:"contract_id"`
	CourseID        string `db:"course_id" json:"course_id"`
	IsStatusManaged bool   `db:"is_status_managed" json:"is_status_managed"`
}

// Manager ties a user to an organization with a permission tier.
type Manager struct {
	ID       int64    `db:"id" json:"id"`
	OrgID    int64    `db:"org_id" json:"org_id"`
	UserID   string   `db:"user_id" json:"user_id"`
	Username string   `db:"username" json:"username"`
	Role     UserRole `db:"role" json:"role"`
}

// IsDirector reports whether the manager sees all records for the contract.
func (m Manager) IsDirector() bool {
	return m.Role == RoleDirector || m.Role == RolePlatformer
}

// IsManager reports whether the manager is group-restricted.
func (m Manager) IsManager() bool {
	return m.Role == RoleManager
}
