package kernel

import (
	"fmt"
	"strings"
)

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

// TenantIDPtr returns nil for an empty id
func TenantIDPtr(id string) *TenantID {
	if id == "" {
		return nil
	}
	t := TenantID(id)
	return &t
}

// Role is the authorization role carried by an identity and its access tokens
type Role string

const (
	RoleCustomer    Role = "CUSTOMER"
	RoleProvider    Role = "PROVIDER"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleSuperAdmin  Role = "SUPER_ADMIN"
)

func (r Role) String() string { return string(r) }

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleTenantAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsTenantScoped is true for every role except SuperAdmin
func (r Role) IsTenantScoped() bool {
	return r.IsValid() && r != RoleSuperAdmin
}

// ParseRole accepts the canonical names case-insensitively
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
