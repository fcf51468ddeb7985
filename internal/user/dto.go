// AngelaMos | 2026
// dto.go

package user

import (
	"time"

	"github.com/carterperez-dev/daf-manager/internal/permission"
)

type CreateUserRequest struct {
	Email    string  `json:"email"     validate:"required,email,max=255"`
	Name     string  `json:"name"      validate:"required,min=1,max=100"`
	Role     string  `json:"role"      validate:"required,oneof=admin manager advisor client family_member"`
	ClientID *string `json:"client_id" validate:"omitempty,uuid"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty"      validate:"omitempty,min=1,max=100"`
	ClientID *string `json:"client_id,omitempty" validate:"omitempty,uuid"`
}

type UpdateMeRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin manager advisor client family_member"`
}

type UserResponse struct {
	ID                    string          `json:"id"`
	Email                 string          `json:"email"`
	Name                  string          `json:"name"`
	Role                  permission.Role `json:"role"`
	ClientID              *string         `json:"client_id,omitempty"`
	FailedLoginAttempts   int             `json:"failed_login_attempts"`
	TwoFactorEnabled      bool            `json:"two_factor_enabled"`
	PasswordResetRequired bool            `json:"password_reset_required"`
	SessionExpiresAt      *time.Time      `json:"session_expires_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// CreatedUserResponse is returned once, when an administrator creates an
// account or resets its password. The temporary password is never stored
// in clear text.
type CreatedUserResponse struct {
	User              UserResponse `json:"user"`
	TemporaryPassword string       `json:"temporary_password"`
}

type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     permission.Role
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:                    u.ID,
		Email:                 u.Email,
		Name:                  u.Name,
		Role:                  u.Role,
		ClientID:              u.ClientID,
		FailedLoginAttempts:   u.FailedLoginAttempts,
		TwoFactorEnabled:      u.TwoFactorEnabled,
		PasswordResetRequired: u.PasswordResetRequired,
		SessionExpiresAt:      u.SessionExpiresAt,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}
