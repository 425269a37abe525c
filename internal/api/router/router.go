// Package router registers the HTTP routes and their middleware.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/huangsam/codegrade/internal/api/handlers"
	"github.com/huangsam/codegrade/internal/api/middleware"
	"github.com/huangsam/codegrade/internal/api/respond"
	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/ratelimit"
	"github.com/huangsam/codegrade/schema"
)

// Limits are the limiter rules applied to route groups.
type Limits struct {
	Basic         ratelimit.Rule
	Analysis      ratelimit.Rule
	Authenticated ratelimit.Rule
	Sliding       ratelimit.Rule
	Progressive   ratelimit.Rule
}

// DefaultLimits builds the standard rules over one limiter store.
func DefaultLimits(store ratelimit.Store) Limits {
	return Limits{
		Basic:         ratelimit.Basic(store),
		Analysis:      ratelimit.Analysis(store),
		Authenticated: ratelimit.Authenticated(store),
		Sliding:       ratelimit.Sliding(store, 60, time.Minute),
		Progressive:   ratelimit.ProgressiveTiers(store, ratelimit.DefaultTiers),
	}
}

// Handlers groups the route handlers.
type Handlers struct {
	Repositories *handlers.RepositoryHandler
	Analysis     *handlers.AnalysisHandler
	Badges       *handlers.BadgeHandler
	Health       *handlers.HealthHandler
}

// NewRouter creates the HTTP handler with every route registered.
func NewRouter(h Handlers, limits Limits, errs respond.Errors, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	limited := func(rule ratelimit.Rule, fn http.HandlerFunc) http.Handler {
		return middleware.RateLimit(rule, errs)(fn)
	}

	mux.HandleFunc("GET /api/health", h.Health.Health)

	// --- Analysis ---
	mux.Handle("POST /api/analysis", limited(limits.Analysis, h.Analysis.Analyze))
	mux.HandleFunc("GET /api/analysis/{id}", h.Analysis.Get)
	mux.HandleFunc("GET /api/analysis/history/{repoId}", h.Analysis.History)
	mux.HandleFunc("GET /api/analysis/compare/{id1}/{id2}", h.Analysis.Compare)

	// --- Badges ---
	mux.Handle("GET /api/analysis/badge/{owner}/{repo}", limited(limits.Sliding, h.Badges.Badge(schema.BadgeQuality)))
	for _, variant := range []schema.BadgeVariant{schema.BadgeSecurity, schema.BadgeCoverage, schema.BadgeComplexity} {
		mux.Handle("GET /api/analysis/badge/{owner}/{repo}/"+string(variant), limited(limits.Sliding, h.Badges.Badge(variant)))
	}
	mux.Handle("GET /api/analysis/badge/{owner}/{repo}/variants", limited(limits.Sliding, h.Badges.Variants))

	// --- Repositories ---
	mux.Handle("GET /api/repositories", limited(limits.Progressive, h.Repositories.List))
	mux.HandleFunc("GET /api/repositories/stats", h.Repositories.Stats)
	mux.HandleFunc("GET /api/repositories/{owner}/{name}", h.Repositories.GetByName)
	mux.HandleFunc("GET /api/repositories/{id}", h.Repositories.Get)
	mux.Handle("POST /api/repositories", limited(limits.Authenticated, h.Repositories.Add))
	mux.Handle("PUT /api/repositories/{id}", limited(limits.Authenticated, h.Repositories.Update))
	mux.Handle("DELETE /api/repositories/{id}", limited(limits.Authenticated, h.Repositories.Delete))
	mux.Handle("POST /api/repositories/{id}/sync", limited(limits.Authenticated, h.Repositories.Sync))
	mux.Handle("POST /api/repositories/{id}/analyze", limited(limits.Analysis, h.Repositories.Analyze))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		errs.Error(w, r, apperrors.NotFound("Route %s %s not found", r.Method, r.URL.Path))
	})

	return middleware.Chain(mux,
		middleware.RequestID(logger),
		middleware.AccessLog(),
		middleware.Recover(errs),
		middleware.RateLimit(limits.Basic, errs),
	)
}
