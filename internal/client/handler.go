// AngelaMos | 2026
// handler.go

package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
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

// RegisterRoutes mounts /clients and the public invitation endpoint. Reads
// and invitations need view_documents; every other write needs manage_dafs.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	gate *access.Gate,
	limiter func(http.Handler) http.Handler,
) {
	r.Route("/clients", func(r chi.Router) {
		r.Use(authenticator)

		r.Group(func(r chi.Router) {
			r.Use(gate.Require(permission.ViewDocuments))
			r.Get("/", h.List)
			r.Get("/{clientID}", h.Get)
			r.Post("/{clientID}/invitations", h.CreateInvitation)
		})

		r.Group(func(r chi.Router) {
			r.Use(gate.Require(permission.ManageDAFs))
			r.Post("/", h.Create)
			r.Put("/{clientID}", h.Update)
			r.Delete("/{clientID}", h.Delete)
			r.Post("/{clientID}/archive", h.Archive)
			r.Put("/{clientID}/alternate-address", h.SetAlternateAddress)
			r.Post("/{clientID}/daf-accounts", addChild(h, h.service.AddDAFAccount))
			r.Post("/{clientID}/other-accounts", addChild(h, h.service.AddOtherAccount))
			r.Post("/{clientID}/documents", addChild(h, h.service.AddDocument))
			r.Post("/{clientID}/family-members", addChild(h, h.service.AddFamilyMember))
			r.Post("/{clientID}/giving-goals", addChild(h, h.service.AddGivingGoal))
			r.Post("/{clientID}/grant-preferences", addChild(h, h.service.AddGrantPreference))
		})
	})

	r.With(limiter).Post("/invitations/accept", h.AcceptInvitation)
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
		Page:            parseIntQuery(r, "page", 1),
		PageSize:        parseIntQuery(r, "page_size", 20),
		Search:          q.Get("search"),
		IncludeArchived: q.Get("include_archived") == "true",
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
	clients, total, err := h.service.List(r.Context(), ac, params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, clients, params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := access.FromContext(r.Context())

	profile, err := h.service.Get(r.Context(), ac, chi.URLParam(r, "clientID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, profile)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !h.decode(w, r, &in) {
		return
	}

	ac, _ := access.FromContext(r.Context())
	profile, err := h.service.Create(r.Context(), ac, in)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, profile)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if !h.decode(w, r, &in) {
		return
	}

	ac, _ := access.FromContext(r.Context())
	profile, err := h.service.Update(r.Context(), ac, chi.URLParam(r, "clientID"), in)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, profile)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := access.FromContext(r.Context())

	if err := h.service.Delete(r.Context(), ac, chi.URLParam(r, "clientID")); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	ac, _ := access.FromContext(r.Context())

	profile, err := h.service.Archive(r.Context(), ac, chi.URLParam(r, "clientID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, profile)
}

func (h *Handler) SetAlternateAddress(w http.ResponseWriter, r *http.Request) {
	var in AddressInput
	if !h.decode(w, r, &in) {
		return
	}

	ac, _ := access.FromContext(r.Context())
	addr, err := h.service.SetAlternateAddress(r.Context(), ac, chi.URLParam(r, "clientID"), in)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, addr)
}

func addChild[Req, Out any](
	h *Handler,
	add func(context.Context, *access.AuthContext, string, Req) (Out, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if !h.decode(w, r, &req) {
			return
		}

		ac, _ := access.FromContext(r.Context())
		out, err := add(r.Context(), ac, chi.URLParam(r, "clientID"), req)
		if err != nil {
			writeError(w, err)
			return
		}

		core.Created(w, out)
	}
}

func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req CreateInvitationRequest
	if !h.decode(w, r, &req) {
		return
	}

	ac, _ := access.FromContext(r.Context())
	resp, err := h.service.CreateInvitation(r.Context(), ac, chi.URLParam(r, "clientID"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req AcceptInvitationRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.AcceptInvitation(r.Context(), access.MetaFromRequest(r), req)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("email"))
			return
		}
		writeError(w, err)
		return
	}

	core.Created(w, resp)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "client")
	case errors.Is(err, core.ErrCreateFailed):
		slog.Error("client create failed", "error", err)
		core.JSONError(w, core.CreateFailedError("client"))
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
