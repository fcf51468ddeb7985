// AngelaMos | 2026
// capability.go

package permission

import (
	"errors"
	"fmt"
)

type Capability uint8

const (
	ManageUsers Capability = iota + 1
	ManageRoles
	ViewAnalytics
	ManageDAFs
	ApproveGrants
	ViewDocuments
)

var ErrUnknownCapability = errors.New("unknown capability")

var capabilityNames = [...]string{
	ManageUsers:   "manage_users",
	ManageRoles:   "manage_roles",
	ViewAnalytics: "view_analytics",
	ManageDAFs:    "manage_dafs",
	ApproveGrants: "approve_grants",
	ViewDocuments: "view_documents",
}

func Capabilities() []Capability {
	return []Capability{
		ManageUsers,
		ManageRoles,
		ViewAnalytics,
		ManageDAFs,
		ApproveGrants,
		ViewDocuments,
	}
}

func ParseCapability(s string) (Capability, error) {
	for c := ManageUsers; c <= ViewDocuments; c++ {
		if capabilityNames[c] == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, s)
}

func ParseCapabilities(names []string) ([]Capability, error) {
	caps := make([]Capability, 0, len(names))
	for _, n := range names {
		c, err := ParseCapability(n)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func (c Capability) String() string {
	if c < ManageUsers || c > ViewDocuments {
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
	return capabilityNames[c]
}

func (c Capability) MarshalText() ([]byte, error) {
	if c < ManageUsers || c > ViewDocuments {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCapability, uint8(c))
	}
	return []byte(capabilityNames[c]), nil
}

func (c *Capability) UnmarshalText(text []byte) error {
	parsed, err := ParseCapability(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
