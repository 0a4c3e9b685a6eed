// Package rbac holds the project permission model. Every project member
// carries exactly one role; checks are pure predicates over role and action.
package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionGenerate Action = "generate"
	ActionManage   Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite || action == ActionGenerate
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleOwner:
		return Role(role)
	default:
		return RoleViewer
	}
}

// Scope is the permission attached to an API key. Keys are narrower than
// member roles: a key never manages members or other keys.
type Scope string

const (
	ScopeRead     Scope = "read"
	ScopeWrite    Scope = "write"
	ScopeGenerate Scope = "generate"
)

func ValidScope(scope string) bool {
	switch Scope(scope) {
	case ScopeRead, ScopeWrite, ScopeGenerate:
		return true
	default:
		return false
	}
}

// ScopesAllow reports whether a key with the given scopes may perform the
// action. Manage is never granted to keys.
func ScopesAllow(scopes []string, action Action) bool {
	for _, scope := range scopes {
		switch Scope(scope) {
		case ScopeRead:
			if action == ActionRead {
				return true
			}
		case ScopeWrite:
			if action == ActionRead || action == ActionWrite {
				return true
			}
		case ScopeGenerate:
			if action == ActionGenerate {
				return true
			}
		}
	}
	return false
}
