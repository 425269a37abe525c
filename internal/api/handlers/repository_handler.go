package handlers

import (
	"net/http"
	"time"

	"github.com/huangsam/codegrade/core"
	"github.com/huangsam/codegrade/internal/api/dto"
	"github.com/huangsam/codegrade/internal/api/respond"
	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/schema"
)

// RepositoryHandler serves /api/repositories.
type RepositoryHandler struct {
	repos *core.RepositoryService
	errs  respond.Errors
	now   func() time.Time
}

// NewRepositoryHandler creates a RepositoryHandler.
func NewRepositoryHandler(repos *core.RepositoryService, errs respond.Errors) *RepositoryHandler {
	return &RepositoryHandler{repos: repos, errs: errs, now: time.Now}
}

// List handles GET /api/repositories.
func (h *RepositoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseRepositoryQuery(r)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	page, err := h.repos.List(r.Context(), q)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, dto.FromPage(page, h.now()), "")
}

// Stats handles GET /api/repositories/stats.
func (h *RepositoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repos.Stats(r.Context())
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, stats, "")
}

// Get handles GET /api/repositories/{id}.
func (h *RepositoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "repository")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	d, err := h.repos.Get(r.Context(), id)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, dto.FromDetail(d, h.now()), "")
}

// GetByName handles GET /api/repositories/{owner}/{name}.
func (h *RepositoryHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	owner, name, err := githubParams(r, "owner", "name")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	d, err := h.repos.GetByName(r.Context(), owner, name)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, dto.FromDetail(d, h.now()), "")
}

// Add handles POST /api/repositories.
func (h *RepositoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req dto.AddRepositoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	if req.RepoURL == "" {
		h.errs.Error(w, r, apperrors.Validation("repoUrl is required"))
		return
	}
	analyze := req.AutoAnalyze == nil || *req.AutoAnalyze

	res, err := h.repos.Add(r.Context(), core.AddRequest{URL: req.RepoURL, Analyze: analyze, AddedBy: userID(r)})
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusCreated, dto.FromAddResult(res, h.now()), "Repository added successfully")
}

// Update handles PUT /api/repositories/{id}. Only mutable fields are decoded.
func (h *RepositoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "repository")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	var upd schema.RepositoryUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	repo, err := h.repos.Update(r.Context(), id, upd)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, dto.FromRepository(repo, h.now()), "Repository updated successfully")
}

// Delete handles DELETE /api/repositories/{id}.
func (h *RepositoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "repository")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	if err := h.repos.Delete(r.Context(), id); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, nil, "Repository and all associated data deleted successfully")
}

// Sync handles POST /api/repositories/{id}/sync.
func (h *RepositoryHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "repository")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	repo, err := h.repos.Sync(r.Context(), id)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, dto.FromRepository(repo, h.now()), "Repository synced with GitHub successfully")
}

// Analyze handles POST /api/repositories/{id}/analyze.
func (h *RepositoryHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "repository")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	out, err := h.repos.Reanalyze(r.Context(), id)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, dto.FromOutcome(out, h.now()), "Analysis completed successfully")
}
