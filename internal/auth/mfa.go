// AngelaMos | 2026
// mfa.go

package auth

import (
	"context"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/audit"
)

// EnrollTwoFactor provisions a new TOTP secret. Two-factor stays disabled
// until the user proves possession with VerifyTwoFactor.
func (s *Service) EnrollTwoFactor(
	ctx context.Context,
	userID string,
) (*TwoFactorEnrollResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: user.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	secret := key.Secret()
	if err := s.users.SetTwoFactor(ctx, userID, false, &secret); err != nil {
		return nil, fmt.Errorf("store totp secret: %w", err)
	}

	return &TwoFactorEnrollResponse{
		Secret:     secret,
		OTPAuthURL: key.URL(),
	}, nil
}

func (s *Service) VerifyTwoFactor(ctx context.Context, ac *access.AuthContext, code string) error {
	user, err := s.users.GetByID(ctx, ac.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == nil {
		return ErrTwoFactorNotEnrolled
	}
	if !s.validTOTP(user, code) {
		return ErrInvalidTwoFactorCode
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, true, user.TwoFactorSecret); err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}

	s.record(ctx, ac, audit.EventTwoFactorEnabled)
	return nil
}

func (s *Service) DisableTwoFactor(ctx context.Context, ac *access.AuthContext, code string) error {
	user, err := s.users.GetByID(ctx, ac.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnrolled
	}
	if !s.validTOTP(user, code) {
		return ErrInvalidTwoFactorCode
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, false, nil); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}

	s.record(ctx, ac, audit.EventTwoFactorDisabled)
	return nil
}

func (s *Service) validTOTP(user *UserInfo, code string) bool {
	if user.TwoFactorSecret == nil {
		return false
	}
	ok, err := totp.ValidateCustom(code, *user.TwoFactorSecret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *Service) record(ctx context.Context, ac *access.AuthContext, eventType string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		Type:      eventType,
		ActorID:   ac.UserID,
		ActorRole: ac.Role.String(),
		Meta:      ac.Meta,
	})
}
