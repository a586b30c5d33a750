package models

import "time"

// MaxMemberAttrs is the fixed arity of the free-form organization/item
// attribute columns.
const MaxMemberAttrs = 10

// Member is an organization roster row decorated with user identity and
// up to 10 "organization" and 10 "item" free-text attributes.
type Member struct {
	ID        int64     `db:"id" json:"id"`
	OrgID     int64     `db:"org_id" json:"org_id"`
	GroupID   *int64    `db:"group_id" json:"group_id,omitempty"`
	GroupCode *string   `db:"group_code" json:"group_code,omitempty"`
	GroupName *string   `db:"group_name" json:"group_name,omitempty"`
	UserID    string    `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	LoginCode *string   `db:"login_code" json:"login_code,omitempty"`
	Code      string    `db:"code" json:"code"`
	Org1      string    `db:"org1" json:"org1"`
	Org2      string    `db:"org2" json:"org2"`
	Org3      string    `db:"org3" json:"org3"`
	Org4      string    `db:"org4" json:"org4"`
	Org5      string    `db:"org5" json:"org5"`
	Org6      string    `db:"org6" json:"org6"`
	Org7      string    `db:"org7" json:"org7"`
	Org8      string    `db:"org8" json:"org8"`
	Org9      string    `db:"org9" json:"org9"`
	Org10     string    `db:"org10" json:"org10"`
	Item1     string    `db:"item1" json:"item1"`
	Item2     string    `db:"item2" json:"item2"`
	Item3     string    `db:"item3" json:"item3"`
	Item4     string    `db:"item4" json:"item4"`
	Item5     string    `db:"item5" json:"item5"`
	Item6     string    `db:"item6" json:"item6"`
	Item7     string    `db:"item7" json:"item7"`
	Item8     string    `db:"item8" json:"item8"`
	Item9     string    `db:"item9" json:"item9"`
	Item10    string    `db:"item10" json:"item10"`
	Active    bool      `db:"active" json:"active"`
	Deleted   bool      `db:"deleted" json:"deleted"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrgAttrs flattens the discrete organization columns into an ordered slice.
func (m Member) OrgAttrs() []string {
	return []string{m.Org1, m.Org2, m.Org3, m.Org4, m.Org5, m.Org6, m.Org7, m.Org8, m.Org9, m.Org10}
}

// ItemAttrs flattens the discrete item columns into an ordered slice.
func (m Member) ItemAttrs() []string {
	return []string{m.Item1, m.Item2, m.Item3, m.Item4, m.Item5, m.Item6, m.Item7, m.Item8, m.Item9, m.Item10}
}

// Attr returns the org or item attribute addressed by a filter field name
// such as "org3" or "item10". Unknown fields return false.
func (m Member) Attr(field string) (string, bool) {
	attrs := map[string]string{
		"org1": m.Org1, "org2": m.Org2, "org3": m.Org3, "org4": m.Org4, "org5": m.Org5,
		"org6": m.Org6, "org7": m.Org7, "org8": m.Org8, "org9": m.Org9, "org10": m.Org10,
		"item1": m.Item1, "item2": m.Item2, "item3": m.Item3, "item4": m.Item4, "item5": m.Item5,
		"item6": m.Item6, "item7": m.Item7, "item8": m.Item8, "item9": m.Item9, "item10": m.Item10,
	}
	v, ok := attrs[field]
	return v, ok
}

// MemberFilter captures filtering criteria for listing members.
type MemberFilter struct {
	GroupID   *int64
	GroupIDs  []int64
	Search    string
	AttrMatch map[string]string
	Page      int
	PageSize  int
}

// MemberRow is the bulk-register interchange shape parsed from TSV input.
type MemberRow struct {
	Email     string   `json:"email" validate:"required,email"`
	Username  string   `json:"username" validate:"required"`
	FullName  string   `json:"full_name"`
	LoginCode string   `json:"login_code"`
	Code      string   `json:"code" validate:"required"`
	GroupCode string   `json:"group_code"`
	Orgs      []string `json:"orgs" validate:"max=10"`
	Items     []string `json:"items" validate:"max=10"`
}
