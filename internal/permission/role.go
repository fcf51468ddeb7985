// AngelaMos | 2026
// role.go

package permission

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// Role is a closed set. The zero value is not a valid role; the only way to
// obtain one from text is ParseRole.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleManager
	RoleAdvisor
	RoleClient
	RoleFamilyMember
)

var ErrUnknownRole = errors.New("unknown role")

var roleNames = [...]string{
	RoleAdmin:        "admin",
	RoleManager:      "manager",
	RoleAdvisor:      "advisor",
	RoleClient:       "client",
	RoleFamilyMember: "family_member",
}

// Roles lists every defined role in declaration order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleAdvisor, RoleClient, RoleFamilyMember}
}

func ParseRole(s string) (Role, error) {
	for r := RoleAdmin; r <= RoleFamilyMember; r++ {
		if roleNames[r] == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) Valid() bool {
	return r >= RoleAdmin && r <= RoleFamilyMember
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return roleNames[r]
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(roleNames[r]), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
}

func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return roleNames[r], nil
}
