// AngelaMos | 2026
// auth_test.go

package auth

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/audit"
	"github.com/carterperez-dev/daf-manager/internal/config"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

type fakeUsers struct {
	mu          sync.Mutex
	users       map[string]*UserInfo
	failedCalls int
}

func (f *fakeUsers) get(id string) (*UserInfo, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.get(id)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) IncrementTokenVersion(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.TokenVersion++
	return nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) SetPassword(_ context.Context, id, hash string, reset bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.PasswordHash, u.PasswordResetRequired = hash, reset
	return nil
}

func (f *fakeUsers) RecordFailedLogin(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedCalls++
	u, err := f.get(id)
	if err != nil {
		return 0, err
	}
	u.FailedLoginAttempts++
	return u.FailedLoginAttempts, nil
}

func (f *fakeUsers) StartSession(_ context.Context, id string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.FailedLoginAttempts = 0
	u.SessionExpiresAt = &until
	return nil
}

func (f *fakeUsers) SetTwoFactor(_ context.Context, id string, enabled bool, secret *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.TwoFactorEnabled, u.TwoFactorSecret = enabled, secret
	return nil
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func (f *fakeTokens) Create(_ context.Context, t *RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.CreatedAt = time.Now()
	cp := *t
	f.tokens[t.ID] = &cp
	return nil
}

func (f *fakeTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeTokens) MarkAsUsed(_ context.Context, id, replacedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok || t.IsUsed {
		return core.ErrNotFound
	}
	now := time.Now()
	t.IsUsed, t.UsedAt, t.ReplacedByID = true, &now, &replacedBy
	return nil
}

func (f *fakeTokens) revoke(match func(*RefreshToken) bool) int {
	now := time.Now()
	n := 0
	for _, t := range f.tokens {
		if t.RevokedAt == nil && match(t) {
			t.RevokedAt = &now
			n++
		}
	}
	return n
}

func (f *fakeTokens) RevokeForUser(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoke(func(t *RefreshToken) bool { return t.ID == id && t.UserID == userID }) == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (f *fakeTokens) RevokeByFamilyID(_ context.Context, familyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoke(func(t *RefreshToken) bool { return t.FamilyID == familyID })
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoke(func(t *RefreshToken) bool { return t.UserID == userID })
	return nil
}

func (f *fakeTokens) ActiveSessions(_ context.Context, userID string, now time.Time) ([]RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RefreshToken
	for _, t := range f.tokens {
		if t.UserID == userID && t.Usable(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

type auditSpy struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *auditSpy) Record(_ context.Context, e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

const password = "correct horse battery staple"

type fixture struct {
	svc    *Service
	users  *fakeUsers
	tokens *fakeTokens
	audit  *auditSpy
}

func newFixture(t *testing.T, users ...*UserInfo) *fixture {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	jwtManager, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "daf-manager",
		Audience:           "daf-manager-api",
	})
	require.NoError(t, err)

	hash, err := core.HashPassword(password)
	require.NoError(t, err)

	fu := &fakeUsers{users: make(map[string]*UserInfo)}
	for _, u := range users {
		u.PasswordHash = hash
		fu.users[u.ID] = u
	}

	ft := &fakeTokens{tokens: make(map[string]*RefreshToken)}
	spy := &auditSpy{}

	svc := NewService(ft, jwtManager, fu, nil, spy, ServiceConfig{
		Policy:     access.DefaultPolicy(),
		TOTPIssuer: "DAF Manager",
	})

	return &fixture{svc: svc, users: fu, tokens: ft, audit: spy}
}

func advisor() *UserInfo {
	return &UserInfo{ID: "u-1", Email: "advisor@example.org", Name: "Ada", Role: permission.RoleAdvisor}
}

func TestLoginLockedAccountSkipsPasswordCheck(t *testing.T) {
	u := advisor()
	u.FailedLoginAttempts = 5
	f := newFixture(t, u)

	_, err := f.svc.Login(context.Background(), LoginRequest{
		Email: u.Email, Password: password,
	}, access.RequestMeta{})
	require.ErrorIs(t, err, core.ErrAccountLocked)
	require.Zero(t, f.users.failedCalls)
}

func TestLoginFailuresLeadToLockout(t *testing.T) {
	u := advisor()
	f := newFixture(t, u)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: "wrong password!"}, access.RequestMeta{})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	require.Equal(t, 5, f.users.users[u.ID].FailedLoginAttempts)
	require.Len(t, f.audit.entries, 1)
	require.Equal(t, audit.EventAccountLocked, f.audit.entries[0].Type)

	_, err := f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: password}, access.RequestMeta{})
	require.ErrorIs(t, err, core.ErrAccountLocked)
}

func TestLoginStartsSessionAndResetsCounter(t *testing.T) {
	u := advisor()
	u.FailedLoginAttempts = 3
	f := newFixture(t, u)

	before := time.Now()
	resp, err := f.svc.Login(context.Background(), LoginRequest{
		Email: u.Email, Password: password,
	}, access.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.Tokens.TokenType)

	stored := f.users.users[u.ID]
	require.Zero(t, stored.FailedLoginAttempts)
	require.NotNil(t, stored.SessionExpiresAt)
	require.WithinDuration(t, before.Add(30*time.Minute), *stored.SessionExpiresAt, 5*time.Second)

	claims, err := f.svc.VerifyAccessToken(context.Background(), resp.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)
	require.Equal(t, "advisor", claims.Role)
	require.NotEmpty(t, claims.JTI)
}

func TestLoginRequiresTOTPWhenEnrolled(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "DAF Manager", AccountName: "advisor@example.org"})
	require.NoError(t, err)
	secret := key.Secret()

	u := advisor()
	u.TwoFactorEnabled = true
	u.TwoFactorSecret = &secret
	f := newFixture(t, u)
	ctx := context.Background()

	_, err = f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: password}, access.RequestMeta{})
	require.ErrorIs(t, err, ErrTwoFactorCodeRequired)
	require.Zero(t, f.users.failedCalls)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	wrong := code[:5] + string(rune('0'+(code[5]-'0'+1)%10))

	_, err = f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: password, TOTPCode: wrong}, access.RequestMeta{})
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	require.Equal(t, 1, f.users.failedCalls)

	_, err = f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: password, TOTPCode: code}, access.RequestMeta{})
	require.NoError(t, err)
}

func TestLogoutAllRevokesIssuedAccessTokens(t *testing.T) {
	u := advisor()
	f := newFixture(t, u)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: password}, access.RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.LogoutAll(ctx, u.ID))

	_, err = f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, resp.Tokens.RefreshToken, access.RequestMeta{})
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestRefreshRotationDetectsReuse(t *testing.T) {
	u := advisor()
	f := newFixture(t, u)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: password}, access.RequestMeta{})
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.Tokens.RefreshToken, access.RequestMeta{})
	require.NoError(t, err)
	require.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken, access.RequestMeta{})
	require.ErrorIs(t, err, ErrTokenReuse)

	_, err = f.svc.Refresh(ctx, second.Tokens.RefreshToken, access.RequestMeta{})
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestRefreshRequiresLiveSession(t *testing.T) {
	u := advisor()
	f := newFixture(t, u)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: password}, access.RequestMeta{})
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	f.users.users[u.ID].SessionExpiresAt = &past

	_, err = f.svc.Refresh(ctx, resp.Tokens.RefreshToken, access.RequestMeta{})
	require.ErrorIs(t, err, core.ErrSessionExpired)
}

func TestChangePasswordClearsResetFlag(t *testing.T) {
	u := advisor()
	u.PasswordResetRequired = true
	f := newFixture(t, u)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, u.ID, "not the password", "a brand new passphrase")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, password, "a brand new passphrase"))

	stored := f.users.users[u.ID]
	require.False(t, stored.PasswordResetRequired)
	require.Equal(t, 1, stored.TokenVersion)
}

func TestTwoFactorEnrollment(t *testing.T) {
	u := advisor()
	f := newFixture(t, u)
	ctx := context.Background()
	ac := &access.AuthContext{UserID: u.ID, Role: u.Role}

	require.ErrorIs(t, f.svc.VerifyTwoFactor(ctx, ac, "123456"), ErrTwoFactorNotEnrolled)

	enroll, err := f.svc.EnrollTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	require.Contains(t, enroll.OTPAuthURL, "otpauth://totp/")
	require.False(t, f.users.users[u.ID].TwoFactorEnabled)

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyTwoFactor(ctx, ac, code))
	require.True(t, f.users.users[u.ID].TwoFactorEnabled)

	_, err = f.svc.EnrollTwoFactor(ctx, u.ID)
	require.ErrorIs(t, err, ErrTwoFactorAlreadyEnabled)

	code, err = totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.DisableTwoFactor(ctx, ac, code))
	require.False(t, f.users.users[u.ID].TwoFactorEnabled)
	require.Nil(t, f.users.users[u.ID].TwoFactorSecret)

	require.Len(t, f.audit.entries, 2)
	require.Equal(t, audit.EventTwoFactorEnabled, f.audit.entries[0].Type)
	require.Equal(t, audit.EventTwoFactorDisabled, f.audit.entries[1].Type)
}
