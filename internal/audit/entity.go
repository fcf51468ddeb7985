// AngelaMos | 2026
// entity.go

package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventUserCreated        = "user.created"
	EventUserUpdated        = "user.updated"
	EventUserDeleted        = "user.deleted"
	EventUserRoleChanged    = "user.role_changed"
	EventUserUnlocked       = "user.unlocked"
	EventUserPasswordReset  = "user.password_reset"
	EventBrandingUpdated    = "branding.updated"
	EventClientCreated      = "client.created"
	EventClientUpdated      = "client.updated"
	EventClientDeleted      = "client.deleted"
	EventClientArchived     = "client.archived"
	EventClientChildAdded   = "client.child_added"
	EventGrantRequested     = "grant.requested"
	EventGrantApproved      = "grant.approved"
	EventGrantRejected      = "grant.rejected"
	EventAccountLocked      = "auth.account_locked"
	EventTwoFactorEnabled   = "auth.two_factor_enabled"
	EventTwoFactorDisabled  = "auth.two_factor_disabled"
	EventInvitationCreated  = "invitation.created"
	EventInvitationAccepted = "invitation.accepted"
)

// Event is an immutable audit record.
type Event struct {
	ID        string    `db:"id"         json:"id"`
	Type      string    `db:"event_type" json:"event_type"`
	ActorID   string    `db:"actor_id"   json:"actor_id"`
	ActorRole string    `db:"actor_role" json:"actor_role"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	Metadata  Metadata  `db:"metadata"   json:"metadata"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Metadata is stored as JSONB.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode audit metadata: %w", err)
	}
	return b, nil
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan audit metadata: unsupported type %T", src)
	}

	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode audit metadata: %w", err)
	}
	*m = out
	return nil
}
