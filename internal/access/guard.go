// AngelaMos | 2026
// guard.go

package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/daf-manager/internal/config"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

// Identity is what the identity provider vouches for: a stable user id.
type Identity struct {
	UserID string
}

// Account is the security state the guard evaluates.
type Account struct {
	UserID                string
	Role                  permission.Role
	ClientID              *string
	SessionExpiresAt      *time.Time
	FailedLoginAttempts   int
	TwoFactorEnabled      bool
	PasswordResetRequired bool
}

type AccountStore interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
	ExtendSession(ctx context.Context, userID string, until time.Time) error
}

type Policy struct {
	MaxFailedLogins int
	SessionWindow   time.Duration
	Sensitive       []permission.Capability
}

func DefaultPolicy() Policy {
	return Policy{
		MaxFailedLogins: 5,
		SessionWindow:   30 * time.Minute,
		Sensitive: []permission.Capability{
			permission.ManageUsers,
			permission.ManageRoles,
			permission.ApproveGrants,
		},
	}
}

func PolicyFromConfig(cfg config.AuthzConfig) (Policy, error) {
	p := DefaultPolicy()

	if cfg.MaxFailedLogins > 0 {
		p.MaxFailedLogins = cfg.MaxFailedLogins
	}
	if cfg.SessionWindow > 0 {
		p.SessionWindow = cfg.SessionWindow
	}
	if cfg.SensitiveCapabilities != nil {
		caps, err := permission.ParseCapabilities(cfg.SensitiveCapabilities)
		if err != nil {
			return Policy{}, fmt.Errorf("authz.sensitive_capabilities: %w", err)
		}
		p.Sensitive = caps
	}

	return p, nil
}

// Locked reports whether attempts has reached the lockout threshold.
func (p Policy) Locked(attempts int) bool {
	return attempts >= p.MaxFailedLogins
}

type Guard struct {
	store  AccountStore
	policy Policy
}

func NewGuard(store AccountStore, policy Policy) *Guard {
	return &Guard{store: store, policy: policy}
}

// Check runs the account gates in a fixed order and stops at the first
// failure: identity, session expiry, lockout, forced password reset. On
// success the session is extended by the policy window from now.
func (g *Guard) Check(ctx context.Context, id Identity, now time.Time) (*Account, error) {
	if id.UserID == "" {
		return nil, fmt.Errorf("guard: %w", core.ErrUnauthorized)
	}

	acct, err := g.store.GetAccount(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("guard: %w", core.ErrUnauthorized)
		}
		return nil, fmt.Errorf("guard: load account: %w", err)
	}

	if acct.SessionExpiresAt == nil || !now.Before(*acct.SessionExpiresAt) {
		return nil, fmt.Errorf("guard: %w", core.ErrSessionExpired)
	}

	if g.policy.Locked(acct.FailedLoginAttempts) {
		return nil, fmt.Errorf("guard: %w", core.ErrAccountLocked)
	}

	if acct.PasswordResetRequired {
		return nil, fmt.Errorf("guard: %w", core.ErrPasswordResetRequired)
	}

	until := now.Add(g.policy.SessionWindow)
	if err := g.store.ExtendSession(ctx, acct.UserID, until); err != nil {
		return nil, fmt.Errorf("guard: extend session: %w", err)
	}
	acct.SessionExpiresAt = &until

	return acct, nil
}
