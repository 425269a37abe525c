package handlers

import (
	"net/http"
	"time"

	"github.com/huangsam/codegrade/core"
	"github.com/huangsam/codegrade/internal/api/dto"
	"github.com/huangsam/codegrade/internal/api/respond"
	"github.com/huangsam/codegrade/internal/apperrors"
)

// maxHistoryLimit caps the history query.
const maxHistoryLimit = 100

// AnalysisHandler serves /api/analysis.
type AnalysisHandler struct {
	repos *core.RepositoryService
	errs  respond.Errors
	now   func() time.Time
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(repos *core.RepositoryService, errs respond.Errors) *AnalysisHandler {
	return &AnalysisHandler{repos: repos, errs: errs, now: time.Now}
}

// Analyze handles POST /api/analysis: track the repository if needed and analyze it.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req dto.AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Error(w, r, err)
		return
	}
	if req.RepoURL == "" {
		h.errs.Error(w, r, apperrors.Validation("repoUrl is required"))
		return
	}
	out, _, err := h.repos.AnalyzeURL(r.Context(), req.RepoURL, userID(r), req.Force)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusCreated, dto.FromOutcome(out, h.now()), "Analysis completed successfully")
}

// Get handles GET /api/analysis/{id}.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "analysis")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	a, err := h.repos.GetAnalysis(r.Context(), id)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, dto.FromAnalysis(a), "")
}

// History handles GET /api/analysis/history/{repoId}.
func (h *AnalysisHandler) History(w http.ResponseWriter, r *http.Request) {
	repoID, err := pathID(r, "repoId", "repository")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	limit, err := queryInt(r.URL.Query(), "limit", 1, maxHistoryLimit, "Limit must be between 1 and 100")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	analyses, err := h.repos.History(r.Context(), repoID, limit)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, dto.FromAnalyses(analyses), "")
}

// Compare handles GET /api/analysis/compare/{id1}/{id2}.
func (h *AnalysisHandler) Compare(w http.ResponseWriter, r *http.Request) {
	base, err := pathID(r, "id1", "analysis")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	target, err := pathID(r, "id2", "analysis")
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	cmp, err := h.repos.Compare(r.Context(), base, target)
	if err != nil {
		h.errs.Error(w, r, err)
		return
	}
	respond.Success(w, r, http.StatusOK, cmp, "")
}
