package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/huangsam/codegrade/core"
	"github.com/huangsam/codegrade/core/badge"
	"github.com/huangsam/codegrade/internal/api/respond"
	"github.com/huangsam/codegrade/schema"
)

// BadgeCacheControl lets clients and proxies keep a badge for an hour.
const BadgeCacheControl = "public, max-age=3600"

// BadgeHandler serves /api/analysis/badge.
type BadgeHandler struct {
	badges    *core.BadgeService
	errs      respond.Errors
	publicURL string
}

// NewBadgeHandler creates a BadgeHandler. An empty publicURL derives links from the request.
func NewBadgeHandler(badges *core.BadgeService, errs respond.Errors, publicURL string) *BadgeHandler {
	return &BadgeHandler{badges: badges, errs: errs, publicURL: strings.TrimSuffix(publicURL, "/")}
}

// Badge returns the handler of one badge variant. Badges are always served with 200.
func (h *BadgeHandler) Badge(variant schema.BadgeVariant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", BadgeCacheControl)

		owner, name, err := githubParams(r, "owner", "repo")
		svg := badge.Unknown(variant)
		if err == nil {
			svg = h.badges.Badge(r.Context(), owner, name, variant, r.URL.Query().Get("style"))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, svg); err != nil {
			respond.Logger(r.Context()).Warn("failed to write badge", "error", err)
		}
	}
}

// Variants handles GET /api/analysis/badge/{owner}/{repo}/variants.
func (h *BadgeHandler) Variants(w http.ResponseWriter, r *http.Request) {
	owner, name, err := githubParams(r, "owner", "repo")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	v, err := h.badges.Variants(r.Context(), owner, name, h.baseURL(r))
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, v, "")
}

func (h *BadgeHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
