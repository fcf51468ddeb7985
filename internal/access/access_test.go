// AngelaMos | 2026
// access_test.go

package access_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/config"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/middleware"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

var now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type memStore struct {
	mu       sync.Mutex
	accounts map[string]access.Account
	extended map[string]time.Time
	getErr   error
}

func newMemStore(accts ...access.Account) *memStore {
	s := &memStore{
		accounts: make(map[string]access.Account),
		extended: make(map[string]time.Time),
	}
	for _, a := range accts {
		s.accounts[a.UserID] = a
	}
	return s
}

func (s *memStore) GetAccount(_ context.Context, userID string) (*access.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	a, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	return &a, nil
}

func (s *memStore) ExtendSession(_ context.Context, userID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extended[userID] = until
	return nil
}

type lookupSpy struct {
	calls int
}

func (l *lookupSpy) lookup(r permission.Role) permission.CapabilitySet {
	l.calls++
	return permission.For(r)
}

func account(id string, role permission.Role, mutate ...func(*access.Account)) access.Account {
	exp := now.Add(10 * time.Minute)
	a := access.Account{
		UserID:           id,
		Role:             role,
		SessionExpiresAt: &exp,
		TwoFactorEnabled: true,
	}
	for _, m := range mutate {
		m(&a)
	}
	return a
}

func newGate(store access.AccountStore, spy *lookupSpy) *access.Gate {
	policy := access.DefaultPolicy()
	return access.NewGate(
		access.NewGuard(store, policy),
		policy,
		access.WithLookup(spy.lookup),
		access.WithClock(func() time.Time { return now }),
	)
}

func TestGuardOrdering(t *testing.T) {
	past := now.Add(-time.Second)

	tests := []struct {
		name string
		acct access.Account
		id   string
		want error
	}{
		{
			name: "missing identity",
			acct: account("u1", permission.RoleAdmin),
			id:   "",
			want: core.ErrUnauthorized,
		},
		{
			name: "unknown account",
			acct: account("u1", permission.RoleAdmin),
			id:   "ghost",
			want: core.ErrUnauthorized,
		},
		{
			name: "expired beats locked and reset",
			acct: account("u1", permission.RoleAdmin, func(a *access.Account) {
				a.SessionExpiresAt = &past
				a.FailedLoginAttempts = 9
				a.PasswordResetRequired = true
			}),
			id:   "u1",
			want: core.ErrSessionExpired,
		},
		{
			name: "no session at all",
			acct: account("u1", permission.RoleAdmin, func(a *access.Account) {
				a.SessionExpiresAt = nil
			}),
			id:   "u1",
			want: core.ErrSessionExpired,
		},
		{
			name: "expiry equal to now is expired",
			acct: account("u1", permission.RoleAdmin, func(a *access.Account) {
				exp := now
				a.SessionExpiresAt = &exp
			}),
			id:   "u1",
			want: core.ErrSessionExpired,
		},
		{
			name: "locked beats reset",
			acct: account("u1", permission.RoleAdmin, func(a *access.Account) {
				a.FailedLoginAttempts = 5
				a.PasswordResetRequired = true
			}),
			id:   "u1",
			want: core.ErrAccountLocked,
		},
		{
			name: "reset required",
			acct: account("u1", permission.RoleAdmin, func(a *access.Account) {
				a.FailedLoginAttempts = 4
				a.PasswordResetRequired = true
			}),
			id:   "u1",
			want: core.ErrPasswordResetRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(tt.acct)
			spy := &lookupSpy{}
			gate := newGate(store, spy)

			_, err := gate.Authorize(
				context.Background(),
				access.Identity{UserID: tt.id},
				access.RequestMeta{},
				permission.ManageUsers,
			)
			require.ErrorIs(t, err, tt.want)
			require.Zero(t, spy.calls, "capability lookup ran for a rejected account")
			require.Empty(t, store.extended, "session extended for a rejected account")
		})
	}
}

func TestLockedRegardlessOfCapabilities(t *testing.T) {
	store := newMemStore(account("admin", permission.RoleAdmin, func(a *access.Account) {
		a.FailedLoginAttempts = 5
	}))
	gate := newGate(store, &lookupSpy{})

	for _, caps := range [][]permission.Capability{
		nil,
		{permission.ViewDocuments},
		permission.Capabilities(),
	} {
		_, err := gate.Authorize(context.Background(), access.Identity{UserID: "admin"}, access.RequestMeta{}, caps...)
		require.ErrorIs(t, err, core.ErrAccountLocked)
	}
}

func TestTwoFactorRequiredForSensitive(t *testing.T) {
	store := newMemStore(account("mgr", permission.RoleManager, func(a *access.Account) {
		a.TwoFactorEnabled = false
	}))
	spy := &lookupSpy{}
	gate := newGate(store, spy)

	_, err := gate.Authorize(context.Background(), access.Identity{UserID: "mgr"}, access.RequestMeta{}, permission.ManageUsers)
	require.ErrorIs(t, err, core.ErrTwoFactorRequired)

	ac, err := gate.Authorize(context.Background(), access.Identity{UserID: "mgr"}, access.RequestMeta{}, permission.ManageDAFs)
	require.NoError(t, err)
	require.Equal(t, permission.RoleManager, ac.Role)
}

func TestAdvisorCannotApproveGrants(t *testing.T) {
	for _, twoFactor := range []bool{true, false} {
		store := newMemStore(account("adv", permission.RoleAdvisor, func(a *access.Account) {
			a.TwoFactorEnabled = twoFactor
		}))
		gate := newGate(store, &lookupSpy{})

		_, err := gate.Authorize(context.Background(), access.Identity{UserID: "adv"}, access.RequestMeta{}, permission.ApproveGrants)
		require.ErrorIs(t, err, core.ErrForbidden, "two-factor enabled: %v", twoFactor)
	}
}

func TestAuthorizeExtendsSession(t *testing.T) {
	store := newMemStore(account("adv", permission.RoleAdvisor))
	gate := newGate(store, &lookupSpy{})

	meta := access.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test", RequestID: "req-1"}
	ac, err := gate.Authorize(context.Background(), access.Identity{UserID: "adv"}, meta)
	require.NoError(t, err)

	want := now.Add(30 * time.Minute)
	require.Equal(t, want, store.extended["adv"])
	require.Equal(t, want, ac.SessionExpiresAt)
	require.Equal(t, meta, ac.Meta)
	require.True(t, ac.Can(permission.ManageDAFs))
	require.False(t, ac.Can(permission.ApproveGrants))
}

func TestGuardPropagatesStoreFailure(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection reset")
	gate := newGate(store, &lookupSpy{})

	_, err := gate.Authorize(context.Background(), access.Identity{UserID: "x"}, access.RequestMeta{})
	require.Error(t, err)
	require.NotErrorIs(t, err, core.ErrUnauthorized)
}

func TestPolicyFromConfig(t *testing.T) {
	p, err := access.PolicyFromConfig(config.AuthzConfig{
		MaxFailedLogins:       3,
		SessionWindow:         time.Hour,
		SensitiveCapabilities: []string{"manage_dafs"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, p.MaxFailedLogins)
	require.Equal(t, time.Hour, p.SessionWindow)
	require.Equal(t, []permission.Capability{permission.ManageDAFs}, p.Sensitive)
	require.True(t, p.Locked(3))
	require.False(t, p.Locked(2))

	_, err = access.PolicyFromConfig(config.AuthzConfig{SensitiveCapabilities: []string{"nope"}})
	require.ErrorIs(t, err, permission.ErrUnknownCapability)
}

func TestRequireMiddleware(t *testing.T) {
	store := newMemStore(
		account("adv", permission.RoleAdvisor),
		account("fam", permission.RoleFamilyMember),
	)
	gate := newGate(store, &lookupSpy{})

	var seen *access.AuthContext
	handler := access.Require(gate, permission.ManageDAFs)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = access.FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	serve := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/clients", nil)
		if userID != "" {
			req = req.WithContext(middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{UserID: userID}))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("adv")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "adv", seen.UserID)

	rec = serve("fam")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), `"FORBIDDEN"`)

	rec = serve("")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"UNAUTHENTICATED"`)
}
