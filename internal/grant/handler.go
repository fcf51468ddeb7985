// AngelaMos | 2026
// handler.go

package grant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
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

// RegisterRoutes mounts /grants. Decisions need approve_grants, which is a
// two-factor capability by default.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	gate *access.Gate,
) {
	r.Route("/grants", func(r chi.Router) {
		r.Use(authenticator)

		r.With(gate.Require(permission.ViewAnalytics)).Get("/", h.List)
		r.With(gate.Require(permission.ViewAnalytics)).Get("/{grantID}", h.Get)
		r.With(gate.Require(permission.ManageDAFs)).Post("/", h.Create)

		r.Group(func(r chi.Router) {
			r.Use(gate.Require(permission.ApproveGrants))
			r.Post("/{grantID}/approve", h.Approve)
			r.Post("/{grantID}/reject", h.Reject)
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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		ClientID: q.Get("client_id"),
	}
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			core.BadRequest(w, "unknown status")
			return
		}
		params.Status = status
	}
	params.Normalize()

	ac, _ := access.FromContext(r.Context())
	requests, total, err := h.service.List(r.Context(), ac, params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, requests, params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := access.FromContext(r.Context())

	req, err := h.service.Get(r.Context(), ac, chi.URLParam(r, "grantID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, req)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateRequest
	if !h.decode(w, r, &in) {
		return
	}

	ac, _ := access.FromContext(r.Context())
	req, err := h.service.Create(r.Context(), ac, in)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, req)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decideWith(w, r, h.service.Approve)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decideWith(w, r, h.service.Reject)
}

func (h *Handler) decideWith(
	w http.ResponseWriter,
	r *http.Request,
	decide func(ctx context.Context, ac *access.AuthContext, id string, in DecisionRequest) (*Request, error),
) {
	var in DecisionRequest
	if r.ContentLength != 0 && !h.decode(w, r, &in) {
		return
	}

	ac, _ := access.FromContext(r.Context())
	req, err := decide(r.Context(), ac, chi.URLParam(r, "grantID"), in)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, req)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "grant request")
	case errors.Is(err, ErrAlreadyDecided):
		core.JSONError(w, core.NewAppError(err, ErrAlreadyDecided.Error(), http.StatusConflict, "ALREADY_DECIDED"))
	case errors.Is(err, ErrSelfApproval):
		core.Forbidden(w, ErrSelfApproval.Error())
	case errors.Is(err, ErrInsufficientBalance):
		core.JSONError(w, core.NewAppError(err, ErrInsufficientBalance.Error(), http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"))
	default:
		core.JSONError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
