// internal/identity/identity.go
// Roles, permissions, and the per-request caller identity.
package identity

import (
	"fmt"
	"time"
)

// Role is the caller's role as carried in token claims.
type Role string

const (
	RoleAdmin          Role = "Admin"
	RoleDeveloper      Role = "Developer"
	RoleReadOnly       Role = "ReadOnly"
	RoleServiceAccount Role = "ServiceAccount"
)

// Permission is a capability granted to a role.
type Permission string

const (
	PermissionRead            Permission = "read"
	PermissionWrite           Permission = "write"
	PermissionAdmin           Permission = "admin"
	PermissionMetrics         Permission = "metrics"
	PermissionManageSchemas   Permission = "manage_schemas"
	PermissionManagePipelines Permission = "manage_pipelines"
	PermissionManageTenants   Permission = "manage_tenants"
)

// ErrInvalidRole is returned when an unknown role literal is deserialized.
type ErrInvalidRole struct {
	Value string
}

func (e *ErrInvalidRole) Error() string {
	return fmt.Sprintf("invalid role: %q", e.Value)
}

// ParseRole converts a claim literal into a Role. Unknown literals are
// rejected rather than mapped to a default.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleDeveloper, RoleReadOnly, RoleServiceAccount:
		return Role(s), nil
	}
	return "", &ErrInvalidRole{Value: s}
}

// rolePermissions is the fixed role/permission table. It is the only place
// permissions are derived from roles.
var rolePermissions = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermissionRead:            true,
		PermissionWrite:           true,
		PermissionAdmin:           true,
		PermissionMetrics:         true,
		PermissionManageSchemas:   true,
		PermissionManagePipelines: true,
		PermissionManageTenants:   true,
	},
	RoleDeveloper: {
		PermissionRead:            true,
		PermissionWrite:           true,
		PermissionMetrics:         true,
		PermissionManageSchemas:   true,
		PermissionManagePipelines: true,
	},
	RoleReadOnly: {
		PermissionRead:    true,
		PermissionMetrics: true,
	},
	RoleServiceAccount: {
		PermissionRead:  true,
		PermissionWrite: true,
	},
}

// HasPermission reports whether role grants perm. Unknown roles grant
// nothing.
func HasPermission(role Role, perm Permission) bool {
	return rolePermissions[role][perm]
}

// AuthContext is the immutable caller identity attached to a request after
// token verification.
type AuthContext struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	IsAPIKey bool   `json:"is_api_key"`
}

// User is the control plane's view of an account. Credentials live in the
// core service; only presented claims are trusted here.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	TenantID  string    `json:"tenant_id"`
	Role      Role      `json:"role"`
	IsAPIKey  bool      `json:"is_api_key"`
	CreatedAt time.Time `json:"created_at"`
}
