package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/huangsam/codegrade/internal/api/dto"
	"github.com/huangsam/codegrade/internal/api/respond"
	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
)

// healthTimeout bounds the dependency checks of a health request.
const healthTimeout = 2 * time.Second

// CacheReporter reports the state of the cache.
type CacheReporter interface {
	Status(ctx context.Context) schema.CacheStatus
}

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	cache   CacheReporter
	store   contract.Store
	version string
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(c CacheReporter, store contract.Store, version string) *HealthHandler {
	return &HealthHandler{cache: c, store: store, version: version, started: time.Now(), now: time.Now}
}

// Health reports liveness and the state of the cache and store.
// A degraded cache does not make the service unhealthy; an unreachable store does.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	now := h.now()
	health := dto.Health{
		Status:    "ok",
		Version:   h.version,
		Uptime:    now.Sub(h.started).Round(time.Second).String(),
		Timestamp: now.UTC(),
		Cache:     h.cache.Status(ctx),
	}
	status := http.StatusOK
	if h.store != nil {
		st, err := h.store.Status(ctx)
		sh := &dto.StoreHealth{Backend: st.Backend, Connected: err == nil && st.Connected}
		if err != nil {
			sh.Error = err.Error()
		}
		if !sh.Connected {
			health.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		health.Store = sh
	}
	respond.Success(w, r, status, health, "")
}
