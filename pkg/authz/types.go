package authz

import (
	"net/http"
	"time"
)

// Role represents organization-level roles, ordered by privilege:
// super_admin > admin > {member, viewer}
type Role string

const (
	RoleSuperAdmin Role = "super_admin" // Full control, including destructive membership operations
	RoleAdmin      Role = "admin"       // Manage organization resources
	RoleMember     Role = "member"      // Regular participant
	RoleViewer     Role = "viewer"      // Read-only access

	// RoleNone is the zero value: the user holds no role in the
	// organization under consideration.
	RoleNone Role = ""
)

// Valid reports whether r is one of the closed set of assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Session records a user's currently active organization. At most one
// session exists per user; changing organizations overwrites it.
type Session struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Membership is a user's role within a specific organization. A user may
// belong to many organizations but holds exactly one role per organization.
type Membership struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           Role      `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}

// Resolution is the Resolver's answer for a single user: the active session
// (nil when absent), the role held in the session's organization (RoleNone
// when absent), and the resolved organization ID ("" when absent).
type Resolution struct {
	Session        *Session `json:"session,omitempty"`
	Role           Role     `json:"role,omitempty"`
	OrganizationID string   `json:"organization_id,omitempty"`
}

// DenialKind classifies why a request was denied. Kinds are distinguishable
// because remediation differs: NoAuth means re-authenticate, NoRole means an
// administrator must grant a role, and so on.
type DenialKind string

const (
	DenyNoAuth                DenialKind = "no_auth"
	DenyNoActiveOrganization  DenialKind = "no_active_organization"
	DenyNoRole                DenialKind = "no_role"
	DenyInsufficientRole      DenialKind = "insufficient_role"
	DenyCrossOrganization     DenialKind = "cross_organization_access"
	DenyStoreUnavailable      DenialKind = "store_unavailable"
)

// HTTPStatus maps a denial kind to its HTTP status code.
func (k DenialKind) HTTPStatus() int {
	switch k {
	case DenyNoAuth:
		return http.StatusUnauthorized
	case DenyNoActiveOrganization:
		return http.StatusBadRequest
	case DenyNoRole, DenyInsufficientRole, DenyCrossOrganization:
		return http.StatusForbidden
	case DenyStoreUnavailable:
		return http.StatusInternalServerError
	}
	return http.StatusForbidden
}

// Message returns the user-visible remediation message for a denial kind.
// Messages name the remediation class without revealing whether a resource
// exists.
func (k DenialKind) Message() string {
	switch k {
	case DenyNoAuth:
		return "authentication required; sign in and retry"
	case DenyNoActiveOrganization:
		return "no active organization; sign in again to select one"
	case DenyNoRole:
		return "no role in the active organization; contact an administrator"
	case DenyInsufficientRole:
		return "insufficient role for this operation; contact an administrator"
	case DenyCrossOrganization:
		return "operation not permitted for the active organization"
	case DenyStoreUnavailable:
		return "authorization is temporarily unavailable; retry later"
	}
	return "access denied"
}

// Authorized is the terminal success state of the Gate's state machine.
type Authorized struct {
	UserID         string `json:"user_id"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id"`
}

// Denial is the terminal failure state of the Gate's state machine.
type Denial struct {
	Kind            DenialKind `json:"kind"`
	Status          int        `json:"status"`
	Message         string     `json:"message"`
	AcceptableRoles []Role     `json:"acceptable_roles,omitempty"`
}

// Decision is the tagged result surfaced to route handlers: exactly one of
// Authorized or Denied is set.
type Decision struct {
	Authorized *Authorized `json:"authorized,omitempty"`
	Denied     *Denial     `json:"denied,omitempty"`
}

// Allowed reports whether the decision is the terminal Authorized state.
func (d Decision) Allowed() bool {
	return d.Authorized != nil
}

func deny(kind DenialKind, acceptable ...Role) Decision {
	return Decision{Denied: &Denial{
		Kind:            kind,
		Status:          kind.HTTPStatus(),
		Message:         kind.Message(),
		AcceptableRoles: acceptable,
	}}
}
