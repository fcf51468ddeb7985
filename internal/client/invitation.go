// AngelaMos | 2026
// invitation.go

package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carterperez-dev/daf-manager/internal/config"
	"github.com/carterperez-dev/daf-manager/internal/core"
)

const defaultInviteTTL = 7 * 24 * time.Hour

type inviteClaims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses access-share invitation tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(cfg config.InviteConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("invite secret must be at least 32 bytes")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultInviteTTL
	}

	return &TokenIssuer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

func (t *TokenIssuer) Issue(invitationID, clientID string, expiresAt time.Time) (string, error) {
	claims := inviteClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        invitationID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(t.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign invitation: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, issuer and expiry and returns the invitation
// and client ids the token was issued for.
func (t *TokenIssuer) Parse(token string) (invitationID, clientID string, err error) {
	var claims inviteClaims
	_, err = jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", "", fmt.Errorf("parse invitation: %w", core.ErrTokenExpired)
	case err != nil:
		return "", "", fmt.Errorf("parse invitation: %w", core.ErrTokenInvalid)
	}

	if claims.ID == "" || claims.ClientID == "" {
		return "", "", fmt.Errorf("parse invitation: missing claims: %w", core.ErrTokenInvalid)
	}

	return claims.ID, claims.ClientID, nil
}
