// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/audit"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/middleware"
)

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrTokenReuse              = errors.New("token reuse detected")
	ErrTwoFactorCodeRequired   = errors.New("two-factor code required")
	ErrInvalidTwoFactorCode    = errors.New("invalid two-factor code")
	ErrTwoFactorNotEnrolled    = errors.New("two-factor authentication not enrolled")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
)

// UserProvider is the account storage the identity boundary relies on.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SetPassword(ctx context.Context, userID, passwordHash string, resetRequired bool) error
	RecordFailedLogin(ctx context.Context, userID string) (int, error)
	StartSession(ctx context.Context, userID string, until time.Time) error
	SetTwoFactor(ctx context.Context, userID string, enabled bool, secret *string) error
}

// Auditor receives security events raised during sign-in flows.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry)
}

type ServiceConfig struct {
	Policy     access.Policy
	TOTPIssuer string
}

type Service struct {
	repo       Repository
	jwt        *JWTManager
	users      UserProvider
	redis      *redis.Client
	auditor    Auditor
	policy     access.Policy
	totpIssuer string
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	users UserProvider,
	redisClient *redis.Client,
	auditor Auditor,
	cfg ServiceConfig,
) *Service {
	return &Service{
		repo:       repo,
		jwt:        jwt,
		users:      users,
		redis:      redisClient,
		auditor:    auditor,
		policy:     cfg.Policy,
		totpIssuer: cfg.TOTPIssuer,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// Login authenticates by password and, when enrolled, a TOTP code. Locked
// accounts are refused before the password is checked so a locked account
// cannot be used as a password oracle. Every failure moves the account
// closer to lockout; success resets the counter and opens a session.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	meta access.RequestMeta,
) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			core.LoginAttempts.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if s.policy.Locked(user.FailedLoginAttempts) {
		core.LoginAttempts.WithLabelValues("locked").Inc()
		return nil, fmt.Errorf("login: %w", core.ErrAccountLocked)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(req.Password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, s.failLogin(ctx, user, meta, ErrInvalidCredentials)
	}

	if user.TwoFactorEnabled {
		if req.TOTPCode == "" {
			core.LoginAttempts.WithLabelValues("two_factor_required").Inc()
			return nil, ErrTwoFactorCodeRequired
		}
		if !s.validTOTP(user, req.TOTPCode) {
			return nil, s.failLogin(ctx, user, meta, ErrInvalidTwoFactorCode)
		}
	}

	if newHash != "" {
		if err := s.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
			s.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
		}
	}

	until := s.now().Add(s.policy.SessionWindow)
	if err := s.users.StartSession(ctx, user.ID, until); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	user.SessionExpiresAt = &until
	user.FailedLoginAttempts = 0

	core.LoginAttempts.WithLabelValues("success").Inc()

	return s.issue(ctx, user, meta, "", nil)
}

func (s *Service) failLogin(
	ctx context.Context,
	user *UserInfo,
	meta access.RequestMeta,
	cause error,
) error {
	core.LoginAttempts.WithLabelValues("invalid").Inc()

	attempts, err := s.users.RecordFailedLogin(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}

	if attempts == s.policy.MaxFailedLogins && s.auditor != nil {
		s.auditor.Record(ctx, audit.Entry{
			Type:      audit.EventAccountLocked,
			ActorID:   user.ID,
			ActorRole: user.Role.String(),
			Meta:      meta,
			Metadata:  map[string]any{"failed_login_attempts": attempts},
		})
	}

	return cause
}

// Refresh rotates a refresh token. Presenting an already consumed token
// revokes its whole family. The account must still have a live session
// and must not be locked.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken string,
	meta access.RequestMeta,
) (*AuthResponse, error) {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if stored.IsUsed {
		if err := s.repo.RevokeByFamilyID(ctx, stored.FamilyID); err != nil {
			s.logger.Error("revoke token family failed",
				"family_id", stored.FamilyID, "error", err)
		}
		return nil, ErrTokenReuse
	}

	now := s.now()
	if !stored.Usable(now) {
		if stored.RevokedAt != nil {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if s.policy.Locked(user.FailedLoginAttempts) {
		return nil, fmt.Errorf("refresh: %w", core.ErrAccountLocked)
	}
	if !user.SessionActive(now) {
		return nil, fmt.Errorf("refresh: %w", core.ErrSessionExpired)
	}

	return s.issue(ctx, user, meta, stored.FamilyID, &stored.ID)
}

// VerifyAccessToken implements middleware.TokenVerifier. Beyond signature
// checks it rejects blacklisted tokens and tokens minted before the user's
// last global sign-out.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.ParseAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.isBlacklisted(ctx, claims.JTI)
	if err != nil {
		s.logger.Warn("token blacklist unavailable", "error", err)
	}
	if revoked {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if claims.TokenVersion < user.TokenVersion {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

// Logout revokes the refresh token and blacklists the access token that
// made the request.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	claims *middleware.AccessTokenClaims,
) error {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	switch {
	case errors.Is(err, core.ErrNotFound):
	case err != nil:
		return fmt.Errorf("find token: %w", err)
	case stored.UserID != claims.UserID:
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	default:
		if err := s.repo.RevokeForUser(ctx, stored.ID, claims.UserID); err != nil &&
			!errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("revoke token: %w", err)
		}
	}

	return s.RevokeAccessToken(ctx, claims.JTI, claims.ExpiresAt)
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 || s.redis == nil {
		return nil
	}

	if err := s.redis.Set(ctx, blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) isBlacklisted(ctx context.Context, jti string) (bool, error) {
	if s.redis == nil {
		return false, nil
	}

	n, err := s.redis.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return n > 0, nil
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

func (s *Service) ActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	tokens, err := s.repo.ActiveSessions(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if err := s.repo.RevokeForUser(ctx, sessionID, userID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// ChangePassword replaces the password, clears any forced reset and signs
// the user out everywhere.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, _, err := core.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.SetPassword(ctx, userID, newHash, false); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) issue(
	ctx context.Context,
	user *UserInfo,
	meta access.RequestMeta,
	familyID string,
	previousID *string,
) (*AuthResponse, error) {
	issued, err := s.jwt.CreateAccessToken(user.ID, user.Role, user.TokenVersion)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refresh, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	entity := &RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: refresh.Hash,
		FamilyID:  refresh.FamilyID,
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}

	if err := s.repo.Create(ctx, entity); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if previousID != nil {
		if err := s.repo.MarkAsUsed(ctx, *previousID, entity.ID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				//nolint:errcheck // the new token is discarded either way
				_ = s.repo.RevokeByFamilyID(ctx, entity.FamilyID)
				return nil, ErrTokenReuse
			}
			return nil, fmt.Errorf("rotate refresh token: %w", err)
		}
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  issued.Token,
			RefreshToken: refresh.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
			ExpiresAt:    issued.ExpiresAt,
		},
	}, nil
}
