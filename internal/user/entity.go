// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/daf-manager/internal/permission"
)

// User is an account record together with its security state.
type User struct {
	ID                    string          `db:"id"`
	Email                 string          `db:"email"`
	PasswordHash          string          `db:"password_hash"`
	Name                  string          `db:"name"`
	Role                  permission.Role `db:"role"`
	ClientID              *string         `db:"client_id"`
	TokenVersion          int             `db:"token_version"`
	SessionExpiresAt      *time.Time      `db:"session_expires_at"`
	FailedLoginAttempts   int             `db:"failed_login_attempts"`
	TwoFactorEnabled      bool            `db:"two_factor_enabled"`
	TwoFactorSecret       *string         `db:"two_factor_secret"`
	PasswordResetRequired bool            `db:"password_reset_required"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
	DeletedAt             *time.Time      `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}
