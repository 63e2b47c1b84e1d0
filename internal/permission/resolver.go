package permission

import (
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

// Permission keys. Every gate in the API references one of these.
const (
	KeyViewDashboard    = "view_dashboard"
	KeyViewEmployees    = "view_employees"
	KeyViewCandidates   = "view_candidates"
	KeyViewAnalytics    = "view_analytics"
	KeyViewSurveys      = "view_surveys"
	KeyViewSubscription = "view_subscription"
	KeyCreateSurvey     = "create_survey"
	KeyManageSurvey     = "manage_survey"
	KeyCreateEmployee   = "create_employee"
	KeyManageEmployee   = "manage_employee"
	KeyCreateCandidate  = "create_candidate"
	KeyManageCandidate  = "manage_candidate"
)

// AllKeys is the closed set of permission keys, in display order.
var AllKeys = []string{
	KeyViewDashboard,
	KeyViewEmployees,
	KeyViewCandidates,
	KeyViewAnalytics,
	KeyViewSurveys,
	KeyViewSubscription,
	KeyCreateSurvey,
	KeyManageSurvey,
	KeyCreateEmployee,
	KeyManageEmployee,
	KeyCreateCandidate,
	KeyManageCandidate,
}

// defaultMatrix holds the hard-coded fallbacks used when no role-level or
// user-level override exists. Admin is always-allow and never consults it.
var defaultMatrix = map[string]map[string]bool{
	userdm.RoleManager: {
		KeyViewDashboard:    true,
		KeyViewEmployees:    true,
		KeyViewCandidates:   true,
		KeyViewAnalytics:    false,
		KeyViewSurveys:      true,
		KeyViewSubscription: true,
		KeyCreateSurvey:     false,
		KeyManageSurvey:     false,
		KeyCreateEmployee:   false,
		KeyManageEmployee:   false,
		KeyCreateCandidate:  true,
		KeyManageCandidate:  true,
	},
	userdm.RoleCorporate: {
		KeyViewDashboard:    true,
		KeyViewEmployees:    true,
		KeyViewCandidates:   true,
		KeyViewAnalytics:    true,
		KeyViewSurveys:      true,
		KeyViewSubscription: true,
		KeyCreateSurvey:     false,
		KeyManageSurvey:     false,
		KeyCreateEmployee:   false,
		KeyManageEmployee:   false,
		KeyCreateCandidate:  false,
		KeyManageCandidate:  false,
	},
}

// IsValidKey reports whether key belongs to the closed permission-key set.
func IsValidKey(key string) bool {
	for _, k := range AllKeys {
		if k == key {
			return true
		}
	}
	return false
}

// DefaultFor returns the hard-coded fallback for a role and key. Unknown
// roles and keys deny.
func DefaultFor(role, key string) bool {
	roleDefaults, ok := defaultMatrix[role]
	if !ok {
		return false
	}
	return roleDefaults[key]
}
