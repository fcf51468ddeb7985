// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/carterperez-dev/daf-manager/internal/permission"
)

type LoginRequest struct {
	Email    string `json:"email"     validate:"required,email,max=255"`
	Password string `json:"password"  validate:"required,min=8,max=128"`
	TOTPCode string `json:"totp_code" validate:"omitempty,len=6,numeric"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type UserResponse struct {
	ID                    string          `json:"id"`
	Email                 string          `json:"email"`
	Name                  string          `json:"name"`
	Role                  permission.Role `json:"role"`
	TwoFactorEnabled      bool            `json:"two_factor_enabled"`
	PasswordResetRequired bool            `json:"password_reset_required"`
	SessionExpiresAt      *time.Time      `json:"session_expires_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=12,max=128,nefield=CurrentPassword"`
}

type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type TwoFactorEnrollResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:                    u.ID,
		Email:                 u.Email,
		Name:                  u.Name,
		Role:                  u.Role,
		TwoFactorEnabled:      u.TwoFactorEnabled,
		PasswordResetRequired: u.PasswordResetRequired,
		SessionExpiresAt:      u.SessionExpiresAt,
		CreatedAt:             u.CreatedAt,
	}
}
