// AngelaMos | 2026
// handler.go

package admin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/client"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

type Handler struct {
	db        DatabaseProbe
	redis     RedisProbe
	repo      Repository
	startedAt time.Time
}

// HandlerConfig wires the stats sources. Nil probes are reported as
// unhealthy with no pool stats.
type HandlerConfig struct {
	Database DatabaseProbe
	Redis    RedisProbe
	Repo     Repository
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		db:        cfg.Database,
		redis:     cfg.Redis,
		repo:      cfg.Repo,
		startedAt: time.Now(),
	}
}

// RegisterRoutes mounts /admin/stats. Infrastructure stats need
// manage_users; the portfolio summary needs view_analytics and is scoped to
// the clients the caller can see.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	gate *access.Gate,
) {
	r.Route("/admin/stats", func(r chi.Router) {
		r.Use(authenticator)

		r.With(gate.Require(permission.ViewAnalytics)).Get("/portfolio", h.GetPortfolio)

		r.Group(func(r chi.Router) {
			r.Use(gate.Require(permission.ManageUsers))
			r.Get("/", h.GetSystemStats)
			r.Get("/db", h.GetDatabaseStats)
			r.Get("/redis", h.GetRedisStats)
			r.Get("/runtime", h.GetRuntimeStats)
		})
	})
}

func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ac, _ := access.FromContext(r.Context())

	p, err := h.repo.Portfolio(r.Context(), client.ScopeFor(ac))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, p)
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.collect(r.Context()))
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, dbPoolStats(h.db))
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, redisPoolStats(h.redis))
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, runtimeStats(h.startedAt))
}
