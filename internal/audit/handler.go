// AngelaMos | 2026
// handler.go

package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	gate *access.Gate,
) {
	r.With(authenticator, gate.Require(permission.ManageUsers)).
		Get("/audit-events", h.List)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	details := map[string]string{}

	params := ListParams{
		UserID:    q.Get("user_id"),
		EventType: q.Get("event_type"),
	}
	params.Page = intParam(q.Get("page"), 0, "page", details)
	params.Limit = intParam(q.Get("limit"), DefaultLimit, "limit", details)
	params.From = timeParam(q.Get("from"), "from", details)
	params.To = timeParam(q.Get("to"), "to", details)

	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		details["to"] = "must be after from"
	}

	if len(details) > 0 {
		core.JSONError(w, core.ValidationError("invalid query parameters", details))
		return
	}

	result, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, result)
}

func intParam(raw string, def int, name string, details map[string]string) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		details[name] = "must be a non-negative integer"
		return def
	}
	return n
}

func timeParam(raw, name string, details map[string]string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		details[name] = "must be an RFC 3339 timestamp"
		return nil
	}
	return &t
}
