// AngelaMos | 2026
// gate.go

package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

// RequestMeta describes where a request came from.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// AuthContext is handed to business handlers once a request is authorized.
type AuthContext struct {
	UserID           string
	Role             permission.Role
	ClientID         *string
	Capabilities     permission.CapabilitySet
	TwoFactorEnabled bool
	SessionExpiresAt time.Time
	Meta             RequestMeta
}

func (a *AuthContext) Can(c permission.Capability) bool {
	return a.Capabilities.Has(c)
}

// LinkedTo reports whether the caller's account is tied to clientID.
func (a *AuthContext) LinkedTo(clientID string) bool {
	return a.ClientID != nil && *a.ClientID == clientID
}

type CapabilityLookup func(permission.Role) permission.CapabilitySet

type GateOption func(*Gate)

func WithLookup(lookup CapabilityLookup) GateOption {
	return func(g *Gate) {
		g.lookup = lookup
	}
}

func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

type Gate struct {
	guard     *Guard
	lookup    CapabilityLookup
	sensitive map[permission.Capability]struct{}
	now       func() time.Time
}

func NewGate(guard *Guard, policy Policy, opts ...GateOption) *Gate {
	g := &Gate{
		guard:     guard,
		lookup:    permission.For,
		sensitive: make(map[permission.Capability]struct{}, len(policy.Sensitive)),
		now:       time.Now,
	}
	for _, c := range policy.Sensitive {
		g.sensitive[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize approves or denies a request for caps. Guard failures are
// returned unchanged and always precede the capability and two-factor
// checks. A role that can never hold a requested capability is Forbidden
// whatever its two-factor state; a role that can hold a sensitive one must
// have two-factor enabled.
func (g *Gate) Authorize(
	ctx context.Context,
	id Identity,
	meta RequestMeta,
	caps ...permission.Capability,
) (*AuthContext, error) {
	acct, err := g.guard.Check(ctx, id, g.now())
	if err != nil {
		core.AuthzDecisions.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	set := g.lookup(acct.Role)
	if missing := set.Missing(caps...); len(missing) > 0 {
		core.AuthzDecisions.WithLabelValues("forbidden").Inc()
		return nil, fmt.Errorf("authorize: missing %v: %w", missing, core.ErrForbidden)
	}

	if g.requiresTwoFactor(caps) && !acct.TwoFactorEnabled {
		core.AuthzDecisions.WithLabelValues("two_factor_required").Inc()
		return nil, fmt.Errorf("authorize: %w", core.ErrTwoFactorRequired)
	}

	core.AuthzDecisions.WithLabelValues("allowed").Inc()

	return &AuthContext{
		UserID:           acct.UserID,
		Role:             acct.Role,
		ClientID:         acct.ClientID,
		Capabilities:     set,
		TwoFactorEnabled: acct.TwoFactorEnabled,
		SessionExpiresAt: *acct.SessionExpiresAt,
		Meta:             meta,
	}, nil
}

func (g *Gate) requiresTwoFactor(caps []permission.Capability) bool {
	for _, c := range caps {
		if _, ok := g.sensitive[c]; ok {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return "unauthenticated"
	case errors.Is(err, core.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, core.ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, core.ErrPasswordResetRequired):
		return "password_reset_required"
	default:
		return "error"
	}
}
