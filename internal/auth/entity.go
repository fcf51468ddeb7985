// AngelaMos | 2026
// entity.go

package auth

import (
	"time"

	"github.com/carterperez-dev/daf-manager/internal/permission"
)

// RefreshToken is one link in a rotation family. Reusing a consumed link
// revokes the whole family.
type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.IsUsed && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// UserInfo is the slice of a user account the identity boundary needs,
// including its security state.
type UserInfo struct {
	ID                    string
	Email                 string
	Name                  string
	PasswordHash          string
	Role                  permission.Role
	ClientID              *string
	TokenVersion          int
	FailedLoginAttempts   int
	TwoFactorEnabled      bool
	TwoFactorSecret       *string
	SessionExpiresAt      *time.Time
	PasswordResetRequired bool
	CreatedAt             time.Time
}

func (u *UserInfo) SessionActive(now time.Time) bool {
	return u.SessionExpiresAt != nil && now.Before(*u.SessionExpiresAt)
}
