// Package httptransport is the thin HTTP layer. Handlers delegate to the
// verification service without embedding business logic so transport
// concerns remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verify-gateway/internal/platform/metrics"
	"verify-gateway/internal/platform/middleware"
	platformredis "verify-gateway/internal/platform/redis"
	"verify-gateway/internal/verification"
	"verify-gateway/pkg/platform/httputil"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Service *verification.Service
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Redis is checked by /healthz when configured; nil is healthy.
	Redis *platformredis.Client

	// AppSecretHash gates session creation. Empty disables app
	// authentication for local development.
	AppSecretHash string
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	h := &Handler{
		service:       deps.Service,
		logger:        deps.Logger,
		redis:         deps.Redis,
		appSecretHash: deps.AppSecretHash,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/widget", func(r chi.Router) {
		r.With(middleware.ContentTypeJSON, h.requireAppSecret).
			Post("/session", h.handleStartSession)
		r.Get("/script", h.handleScript)
		r.With(middleware.ContentTypeJSON).Post("/open", h.handleOpen)
		r.With(middleware.ContentTypeJSON).Post("/result", h.handleResult)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.redis != nil {
		if err := h.redis.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"redis":  err.Error(),
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
