// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/audit"
	"github.com/carterperez-dev/daf-manager/internal/auth"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

const temporaryPasswordLength = 16

var ErrSelfModification = errors.New("cannot change your own role or delete your own account")

type Auditor interface {
	RecordFor(
		ctx context.Context,
		ac *access.AuthContext,
		eventType string,
		metadata map[string]any,
	)
}

type Service struct {
	repo    Repository
	auditor Auditor
}

func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, auditor: auditor}
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePasswordHash(ctx, userID, passwordHash)
}

func (s *Service) SetPassword(
	ctx context.Context,
	userID, passwordHash string,
	resetRequired bool,
) error {
	return s.repo.SetPassword(ctx, userID, passwordHash, resetRequired)
}

func (s *Service) RecordFailedLogin(ctx context.Context, userID string) (int, error) {
	return s.repo.IncrementFailedLogins(ctx, userID)
}

func (s *Service) StartSession(ctx context.Context, userID string, until time.Time) error {
	return s.repo.StartSession(ctx, userID, until)
}

func (s *Service) SetTwoFactor(
	ctx context.Context,
	userID string,
	enabled bool,
	secret *string,
) error {
	return s.repo.SetTwoFactor(ctx, userID, enabled, secret)
}

// GetAccount exposes the security state the account guard evaluates.
func (s *Service) GetAccount(ctx context.Context, userID string) (*access.Account, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &access.Account{
		UserID:                user.ID,
		Role:                  user.Role,
		ClientID:              user.ClientID,
		SessionExpiresAt:      user.SessionExpiresAt,
		FailedLoginAttempts:   user.FailedLoginAttempts,
		TwoFactorEnabled:      user.TwoFactorEnabled,
		PasswordResetRequired: user.PasswordResetRequired,
	}, nil
}

func (s *Service) ExtendSession(ctx context.Context, userID string, until time.Time) error {
	return s.repo.ExtendSession(ctx, userID, until)
}

// CreateUser provisions an account with a generated temporary password that
// must be changed at first sign-in.
func (s *Service) CreateUser(
	ctx context.Context,
	ac *access.AuthContext,
	req CreateUserRequest,
) (*User, string, error) {
	role, err := permission.ParseRole(req.Role)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", core.ErrInvalidInput)
	}

	temp, err := core.GenerateTemporaryPassword(temporaryPasswordLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate temporary password: %w", err)
	}

	hash, err := core.HashPassword(temp)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:                    uuid.New().String(),
		Email:                 normalizeEmail(req.Email),
		PasswordHash:          hash,
		Name:                  req.Name,
		Role:                  role,
		ClientID:              req.ClientID,
		PasswordResetRequired: true,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	s.auditor.RecordFor(ctx, ac, audit.EventUserCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role.String(),
	})

	return user, temp, nil
}

// CreateFamilyMember creates an account linked to a client profile. It is
// used when an access invitation is accepted.
func (s *Service) CreateFamilyMember(
	ctx context.Context,
	email, name, passwordHash, clientID string,
) (string, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         name,
		Role:         permission.RoleFamilyMember,
		ClientID:     &clientID,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return "", err
	}

	return user.ID, nil
}

// BootstrapAdmin creates the first administrator when no account with the
// configured email exists. It reports whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password, name string) (bool, error) {
	email = normalizeEmail(email)

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := core.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	admin := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         permission.RoleAdmin,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	ac *access.AuthContext,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{"user_id": id}
	if req.Name != nil {
		user.Name = *req.Name
		changed["name"] = *req.Name
	}
	if req.ClientID != nil {
		user.ClientID = req.ClientID
		changed["client_id"] = *req.ClientID
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.auditor.RecordFor(ctx, ac, audit.EventUserUpdated, changed)
	return user, nil
}

func (s *Service) UpdateMe(ctx context.Context, ac *access.AuthContext, req UpdateMeRequest) (*User, error) {
	return s.UpdateUser(ctx, ac, ac.UserID, UpdateUserRequest{Name: req.Name})
}

func (s *Service) ChangeRole(
	ctx context.Context,
	ac *access.AuthContext,
	id, roleName string,
) (*User, error) {
	if id == ac.UserID {
		return nil, fmt.Errorf("change role: %w", ErrSelfModification)
	}

	role, err := permission.ParseRole(roleName)
	if err != nil {
		return nil, fmt.Errorf("change role: %w", core.ErrInvalidInput)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := user.Role
	user.Role = role

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.auditor.RecordFor(ctx, ac, audit.EventUserRoleChanged, map[string]any{
		"user_id":  id,
		"previous": previous.String(),
		"role":     role.String(),
	})

	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, ac *access.AuthContext, id string) error {
	if id == ac.UserID {
		return fmt.Errorf("delete user: %w", ErrSelfModification)
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.auditor.RecordFor(ctx, ac, audit.EventUserDeleted, map[string]any{"user_id": id})
	return nil
}

// Unlock clears the failed sign-in counter of a locked account.
func (s *Service) Unlock(ctx context.Context, ac *access.AuthContext, id string) error {
	if err := s.repo.ResetFailedLogins(ctx, id); err != nil {
		return err
	}

	s.auditor.RecordFor(ctx, ac, audit.EventUserUnlocked, map[string]any{"user_id": id})
	return nil
}

// ResetPassword replaces the password with a temporary one, forces a change
// at next sign-in and invalidates every issued access token.
func (s *Service) ResetPassword(ctx context.Context, ac *access.AuthContext, id string) (*User, string, error) {
	temp, err := core.GenerateTemporaryPassword(temporaryPasswordLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate temporary password: %w", err)
	}

	hash, err := core.HashPassword(temp)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.SetPassword(ctx, id, hash, true); err != nil {
		return nil, "", err
	}
	if err := s.repo.IncrementTokenVersion(ctx, id); err != nil {
		return nil, "", err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	s.auditor.RecordFor(ctx, ac, audit.EventUserPasswordReset, map[string]any{"user_id": id})
	return user, temp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:                    u.ID,
		Email:                 u.Email,
		Name:                  u.Name,
		PasswordHash:          u.PasswordHash,
		Role:                  u.Role,
		ClientID:              u.ClientID,
		TokenVersion:          u.TokenVersion,
		FailedLoginAttempts:   u.FailedLoginAttempts,
		TwoFactorEnabled:      u.TwoFactorEnabled,
		TwoFactorSecret:       u.TwoFactorSecret,
		SessionExpiresAt:      u.SessionExpiresAt,
		PasswordResetRequired: u.PasswordResetRequired,
		CreatedAt:             u.CreatedAt,
	}
}

var (
	_ auth.UserProvider   = (*Service)(nil)
	_ access.AccountStore = (*Service)(nil)
)
