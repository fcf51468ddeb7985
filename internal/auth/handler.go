// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts /auth. Sign-in endpoints sit behind limiter; the
// two-factor endpoints also pass the account guard so a locked or expired
// account cannot change its second factor.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	gate *access.Gate,
	limiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.With(limiter).Post("/login", h.Login)
		r.With(limiter).Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.GetSessions)
			r.Delete("/sessions/{sessionID}", h.RevokeSession)
			r.Post("/change-password", h.ChangePassword)

			r.Route("/2fa", func(r chi.Router) {
				r.Use(gate.Require())
				r.Post("/enroll", h.EnrollTwoFactor)
				r.Post("/verify", h.VerifyTwoFactor)
				r.Post("/disable", h.DisableTwoFactor)
			})
		})
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.ValidationFailed(w, err)
		return false
	}
	return true
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, access.MetaFromRequest(r))
	if err != nil {
		core.JSONError(w, authError(err))
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, access.MetaFromRequest(r))
	if err != nil {
		core.JSONError(w, authError(err))
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, claims); err != nil {
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "cannot revoke another user's token")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ActiveSessions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.service.RevokeSession(r.Context(), middleware.GetUserID(r.Context()), sessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "session")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(
		r.Context(),
		middleware.GetUserID(r.Context()),
		req.CurrentPassword,
		req.NewPassword,
	)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.Unauthorized(w, "current password is incorrect")
			return
		}
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, user)
}

func (h *Handler) EnrollTwoFactor(w http.ResponseWriter, r *http.Request) {
	ac, _ := access.FromContext(r.Context())

	resp, err := h.service.EnrollTwoFactor(r.Context(), ac.UserID)
	if err != nil {
		core.JSONError(w, authError(err))
		return
	}

	core.OK(w, resp)
}

func (h *Handler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req TwoFactorCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ac, _ := access.FromContext(r.Context())

	if err := h.service.VerifyTwoFactor(r.Context(), ac, req.Code); err != nil {
		core.JSONError(w, authError(err))
		return
	}

	core.NoContent(w)
}

func (h *Handler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req TwoFactorCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ac, _ := access.FromContext(r.Context())

	if err := h.service.DisableTwoFactor(r.Context(), ac, req.Code); err != nil {
		core.JSONError(w, authError(err))
		return
	}

	core.NoContent(w)
}

func authError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return core.UnauthorizedError("invalid email or password")
	case errors.Is(err, ErrTwoFactorCodeRequired):
		return core.NewAppError(err, "two-factor code required",
			http.StatusUnauthorized, "TWO_FACTOR_CODE_REQUIRED")
	case errors.Is(err, ErrInvalidTwoFactorCode):
		return core.NewAppError(err, "invalid two-factor code",
			http.StatusUnauthorized, "INVALID_TWO_FACTOR_CODE")
	case errors.Is(err, ErrTwoFactorNotEnrolled):
		return core.NewAppError(err, "two-factor authentication is not enrolled",
			http.StatusConflict, "TWO_FACTOR_NOT_ENROLLED")
	case errors.Is(err, ErrTwoFactorAlreadyEnabled):
		return core.NewAppError(err, "two-factor authentication is already enabled",
			http.StatusConflict, "TWO_FACTOR_ALREADY_ENABLED")
	case errors.Is(err, ErrTokenReuse):
		return core.NewAppError(core.ErrTokenRevoked,
			"security alert: token reuse detected, all sessions revoked",
			http.StatusUnauthorized, "TOKEN_REUSE_DETECTED")
	default:
		return err
	}
}
