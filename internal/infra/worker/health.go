package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"vaxslot-notifier/internal/observability/metrics"
	"vaxslot-notifier/internal/observability/tracing"
	"vaxslot-notifier/internal/usecase/notify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChannelHealthProvider reports notification channel state.
// notify.Service satisfies it.
type ChannelHealthProvider interface {
	GetChannelHealth() []notify.ChannelHealthStatus
}

// HealthServer is the worker's ops HTTP server.
//
// Endpoints:
//   - GET /: keepalive acknowledgement, {"message":"done"}
//   - GET /health: liveness probe (always 200)
//   - GET /health/ready: readiness probe (200 once the scheduler runs, 503 before)
//   - GET /health/channels: per-channel circuit breaker state
//   - GET /metrics: Prometheus metrics
type HealthServer struct {
	addr     string
	logger   *slog.Logger
	isReady  *atomic.Bool
	channels ChannelHealthProvider
	server   *http.Server
}

type healthResponse struct {
	Status string `json:"status"`
}

type rootResponse struct {
	Message string `json:"message"`
}

// ChannelHealthResponse is the /health/channels body.
type ChannelHealthResponse struct {
	Healthy  bool                         `json:"healthy"`
	Channels []notify.ChannelHealthStatus `json:"channels"`
}

// NewHealthServer creates an ops server listening on addr. channels may be
// nil, in which case /health/channels answers 503.
func NewHealthServer(addr string, logger *slog.Logger, channels ChannelHealthProvider) *HealthServer {
	isReady := &atomic.Bool{}
	isReady.Store(false)

	return &HealthServer{
		addr:     addr,
		logger:   logger,
		isReady:  isReady,
		channels: channels,
	}
}

// Handler returns the router with all ops endpoints mounted.
func (h *HealthServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracing.Middleware)
	r.Use(recordRequest)

	r.Get("/", h.handleRoot)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.handleLiveness)
		r.Get("/ready", h.handleReadiness)
		r.Get("/channels", h.handleChannels)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully within 5
// seconds. It returns http.ErrServerClosed after a graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("ops server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("ops server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("ops server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("ops server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return err
		}
		h.logger.Error("ops server failed", slog.Any("error", err))
		return err
	}
}

// SetReady sets the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("ops server readiness changed", slog.Bool("ready", ready))
}

func (h *HealthServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, rootResponse{Message: "done"})
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.isReady.Load() {
		h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
}

// handleChannels answers 503 when an enabled channel has its circuit open.
func (h *HealthServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "notification service not initialized",
		})
		return
	}

	statuses := h.channels.GetChannelHealth()
	healthy := true
	for _, s := range statuses {
		if s.Enabled && s.CircuitBreakerOpen {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, ChannelHealthResponse{Healthy: healthy, Channels: statuses})
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// recordRequest records request count and latency labelled by route pattern.
func recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(status), time.Since(start))
	})
}
