package models

// RequestScope is the resolved caller context for contract-scoped
// endpoints. Middleware builds it once per request and handlers pass it
// into services explicitly; nothing is read from ambient state.
type RequestScope struct {
	Org      Organization
	Contract Contract
	Manager  Manager
	// VisibleGroupIDs is the closure of groups the manager may see. Empty
	// means "no visibility" for a group-restricted manager and
	// "unrestricted" for a director.
	VisibleGroupIDs []int64
	// GroupsExist records whether the org has any groups at all; a manager
	// in an org without groups is treated as unrestricted.
	GroupsExist bool
}

// Restricted reports whether roster visibility must be scoped to
// VisibleGroupIDs.
func (s RequestScope) Restricted() bool {
	return s.Manager.IsManager() && !s.Manager.IsDirector() && s.GroupsExist
}

// CanSeeGroup reports whether a member's group is inside the caller's
// visible set. Unrestricted callers see everything.
func (s RequestScope) CanSeeGroup(groupID *int64) bool {
	if !s.Restricted() {
		return true
	}
	if groupID == nil {
		return false
	}
	for _, id := range s.VisibleGroupIDs {
		if id == *groupID {
			return true
		}
	}
	return false
}
