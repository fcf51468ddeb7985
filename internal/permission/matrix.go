// AngelaMos | 2026
// matrix.go

package permission

// CapabilitySet is the full bundle of capability flags granted to a role.
type CapabilitySet struct {
	ManageUsers   bool `json:"can_manage_users"`
	ManageRoles   bool `json:"can_manage_roles"`
	ViewAnalytics bool `json:"can_view_analytics"`
	ManageDAFs    bool `json:"can_manage_dafs"`
	ApproveGrants bool `json:"can_approve_grants"`
	ViewDocuments bool `json:"can_view_documents"`
}

func (s CapabilitySet) Has(c Capability) bool {
	switch c {
	case ManageUsers:
		return s.ManageUsers
	case ManageRoles:
		return s.ManageRoles
	case ViewAnalytics:
		return s.ViewAnalytics
	case ManageDAFs:
		return s.ManageDAFs
	case ApproveGrants:
		return s.ApproveGrants
	case ViewDocuments:
		return s.ViewDocuments
	default:
		return false
	}
}

// All reports whether every capability in caps is granted. An empty list is
// always satisfied.
func (s CapabilitySet) All(caps ...Capability) bool {
	for _, c := range caps {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Missing returns the capabilities in caps that are not granted.
func (s CapabilitySet) Missing(caps ...Capability) []Capability {
	var out []Capability
	for _, c := range caps {
		if !s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

var matrix = [...]CapabilitySet{
	RoleAdmin: {
		ManageUsers:   true,
		ManageRoles:   true,
		ViewAnalytics: true,
		ManageDAFs:    true,
		ApproveGrants: true,
		ViewDocuments: true,
	},
	RoleManager: {
		ManageUsers:   true,
		ViewAnalytics: true,
		ManageDAFs:    true,
		ApproveGrants: true,
		ViewDocuments: true,
	},
	RoleAdvisor: {
		ViewAnalytics: true,
		ManageDAFs:    true,
		ViewDocuments: true,
	},
	RoleClient: {
		ViewAnalytics: true,
		ViewDocuments: true,
	},
	RoleFamilyMember: {
		ViewDocuments: true,
	},
}

// For returns the capability set of r. The result is a copy; mutating it has
// no effect on later lookups. An invalid role has no capabilities.
func For(r Role) CapabilitySet {
	if !r.Valid() {
		return CapabilitySet{}
	}
	return matrix[r]
}
