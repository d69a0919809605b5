// Package web exposes the daemon's operational HTTP surface: health
// probes, a status snapshot, the tracked-server list, and Prometheus
// metrics. Everything the handlers need is injected as functions so
// the package stays decoupled from the pipeline's concrete types.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/engine"
	"github.com/hlstatsd/hlstatsd/internal/listener"
	"github.com/hlstatsd/hlstatsd/internal/models"
)

const checkTimeout = 3 * time.Second

// Health states reported by /readyz.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type Config struct {
	AllowedOrigins []string

	Logger *zap.SugaredLogger

	// StorageCheck probes Postgres. Failure makes the daemon unhealthy.
	StorageCheck func(ctx context.Context) error
	// PublishCheck and ArchiveCheck probe Redis and ClickHouse. Nil
	// means the backend is not configured; failure only degrades.
	PublishCheck func(ctx context.Context) error
	ArchiveCheck func(ctx context.Context) error

	QueueDepth    func() int
	Counters      func() engine.Counters
	Sources       func() map[string]listener.SourceInfo
	Servers       func(ctx context.Context) ([]*models.Server, error)
	ActivePlayers func(serverID int32) int64

	Lanes int
}

type Handler struct {
	cfg       Config
	logger    *zap.SugaredLogger
	startedAt time.Time
}

func New(cfg Config) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    cfg.Logger,
		startedAt: time.Now(),
	}
}

// Router assembles the chi router with CORS and request logging.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/v1/status", h.Status)
	r.Get("/v1/servers", h.Servers)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Healthz is the liveness probe. Always ok while the process serves.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// Readyz is the readiness probe. Storage down means unhealthy;
// publisher or archive down only degrades.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := StatusHealthy
	checks := map[string]string{}

	if err := h.cfg.StorageCheck(ctx); err != nil {
		checks["postgres"] = err.Error()
		status = StatusUnhealthy
	} else {
		checks["postgres"] = "ok"
	}
	for name, check := range map[string]func(context.Context) error{
		"redis":      h.cfg.PublishCheck,
		"clickhouse": h.cfg.ArchiveCheck,
	} {
		if check == nil {
			checks[name] = "disabled"
			continue
		}
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			if status == StatusHealthy {
				status = StatusDegraded
			}
		} else {
			checks[name] = "ok"
		}
	}

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	h.jsonResponse(w, code, map[string]any{
		"status":     status,
		"checks":     checks,
		"queueDepth": h.cfg.QueueDepth(),
	})
}

// Status reports the runtime snapshot: uptime, lanes, queue depth,
// tracked sources and the engine counters.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sources := h.cfg.Sources()

	h.jsonResponse(w, http.StatusOK, map[string]any{
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"lanes":          h.cfg.Lanes,
		"queue_depth":    h.cfg.QueueDepth(),
		"sources":        len(sources),
		"counters":       h.cfg.Counters(),
	})
}

type serverStatus struct {
	*models.Server
	ActivePlayers int64 `json:"active_players"`
}

// Servers lists every registered server with its persisted counters
// and the in-memory active player count.
func (h *Handler) Servers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.cfg.Servers(r.Context())
	if err != nil {
		h.logger.Errorw("server list failed", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "server list unavailable")
		return
	}

	out := make([]serverStatus, 0, len(servers))
	for _, srv := range servers {
		out = append(out, serverStatus{
			Server:        srv,
			ActivePlayers: h.cfg.ActivePlayers(srv.ID),
		})
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"servers": out})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr)
	})
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
