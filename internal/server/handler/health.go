package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/server/response"
)

// Service states reported by the detailed health check.
const (
	stateHealthy       = "healthy"
	stateUnhealthy     = "unhealthy"
	stateNotConfigured = "not_configured"
	stateEnabled       = "enabled"
	stateDisabled      = "disabled"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 3 * time.Second

// BlockReader reads the chain head.
type BlockReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// HealthConfig describes the deployment reported by the health endpoints.
type HealthConfig struct {
	Environment   string
	APIVersion    string
	OracleEnabled bool
	AIEnabled     bool
	StartedAt     time.Time
}

// HealthDeps are the probed dependencies. Nil entries are reported as not
// configured.
type HealthDeps struct {
	Database domain.Pinger
	Redis    domain.Pinger
	Chain    BlockReader
}

// HealthHandler serves the service info, health and 404 endpoints.
type HealthHandler struct {
	cfg    HealthConfig
	deps   HealthDeps
	now    func() time.Time
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg HealthConfig, deps HealthDeps, logger *slog.Logger) *HealthHandler {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	return &HealthHandler{cfg: cfg, deps: deps, now: time.Now, logger: logger}
}

type serviceInfo struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Endpoints map[string]string `json:"endpoints"`
}

type healthStatus struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
}

type detailedHealth struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Uptime      float64           `json:"uptime"`
	Environment string            `json:"environment"`
	Services    map[string]string `json:"services"`
	BlockNumber *uint64           `json:"blockNumber,omitempty"`
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

func (h *HealthHandler) uptime() float64 {
	return h.now().Sub(h.cfg.StartedAt).Seconds()
}

// Root describes the service. It is the only endpoint not wrapped in the
// response envelope.
// GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	apiPrefix := "/api/" + h.cfg.APIVersion
	writeJSON(w, http.StatusOK, serviceInfo{
		Name:      "PulseDelta Backend API",
		Version:   h.cfg.APIVersion,
		Status:    "running",
		Timestamp: h.timestamp(),
		Endpoints: map[string]string{
			"health": "/health",
			"api":    apiPrefix,
			"docs":   apiPrefix + "/docs",
		},
	})
}

// HealthCheck reports that the process is serving.
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, healthStatus{
		Status:    stateHealthy,
		Uptime:    h.uptime(),
		Timestamp: h.timestamp(),
	}, "Service is healthy")
}

// HealthDetailed probes every dependency concurrently. Any failing probe
// marks the service degraded; the reply is still 200.
// GET /health/detailed
func (h *HealthHandler) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	out := detailedHealth{
		Status:      stateHealthy,
		Timestamp:   h.timestamp(),
		Uptime:      h.uptime(),
		Environment: h.cfg.Environment,
		Services: map[string]string{
			"api":    stateHealthy,
			"oracle": flag(h.cfg.OracleEnabled),
			"ai":     flag(h.cfg.AIEnabled),
		},
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	set := func(name, state string) {
		mu.Lock()
		defer mu.Unlock()
		out.Services[name] = state
		if state == stateUnhealthy {
			out.Status = "degraded"
		}
	}
	probe := func(name string, p domain.Pinger) {
		if p == nil {
			set(name, stateNotConfigured)
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Ping(ctx); err != nil {
				h.logger.WarnContext(ctx, "handler: health probe failed",
					slog.String("service", name),
					slog.String("error", err.Error()),
				)
				set(name, stateUnhealthy)
				return
			}
			set(name, stateHealthy)
		}()
	}

	probe("database", h.deps.Database)
	probe("redis", h.deps.Redis)
	if h.deps.Chain == nil {
		set("blockchain", stateNotConfigured)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := h.deps.Chain.BlockNumber(ctx)
			if err != nil {
				h.logger.WarnContext(ctx, "handler: health probe failed",
					slog.String("service", "blockchain"),
					slog.String("error", err.Error()),
				)
				set("blockchain", stateUnhealthy)
				return
			}
			mu.Lock()
			out.BlockNumber = &n
			mu.Unlock()
			set("blockchain", stateHealthy)
		}()
	}
	wg.Wait()

	response.Success(w, http.StatusOK, out, "Health check completed")
}

// NotFound replies to every unmatched route.
func (h *HealthHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	response.Error(w, http.StatusNotFound, "Route "+r.URL.Path+" not found", nil)
}

func flag(enabled bool) string {
	if enabled {
		return stateEnabled
	}
	return stateDisabled
}
