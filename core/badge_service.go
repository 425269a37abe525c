package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/huangsam/codegrade/core/badge"
	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
)

// BadgePathPrefix is the route prefix of the badge endpoints.
const BadgePathPrefix = "/api/analysis/badge"

var badgeAltText = map[schema.BadgeVariant]string{
	schema.BadgeQuality:    "Code Quality",
	schema.BadgeSecurity:   "Security Score",
	schema.BadgeCoverage:   "Test Coverage",
	schema.BadgeComplexity: "Code Complexity",
}

// BadgeLink is where a badge variant is served and how to embed it.
type BadgeLink struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// BadgeVariants lists every badge of a repository with its current value.
type BadgeVariants struct {
	Repository string                             `json:"repository"`
	Badges     map[schema.BadgeVariant]BadgeLink `json:"badges"`
	Scores     map[schema.BadgeVariant]any       `json:"scores"`
}

// BadgeService renders cached status badges.
type BadgeService struct {
	store  contract.Store
	orch   *Orchestrator
	cache  contract.Cache
	logger *slog.Logger
}

// NewBadgeService creates a badge service.
func NewBadgeService(store contract.Store, orch *Orchestrator, c contract.Cache, logger *slog.Logger) *BadgeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgeService{store: store, orch: orch, cache: c, logger: logger}
}

// Badge returns the SVG badge of a repository. It never fails: anything that
// prevents reading a score renders the unknown badge instead.
func (s *BadgeService) Badge(ctx context.Context, owner, repo string, variant schema.BadgeVariant, style string) string {
	if _, ok := schema.ValidBadgeVariants[variant]; !ok {
		variant = schema.BadgeQuality
	}
	style = badge.NormalizeStyle(style)
	key := badge.CacheKey(owner, repo, style, variant)

	svg, err := s.cache.Wrap(ctx, key, BadgeCacheTTL, func(ctx context.Context) ([]byte, error) {
		a, err := s.latest(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		return []byte(badge.ForAnalysis(variant, a, style)), nil
	})
	if err != nil {
		s.logger.Warn("failed to render badge", "repository", schema.FullName(owner, repo), "variant", variant, "error", err)
		return badge.Unknown(variant)
	}
	return string(svg)
}

// latest returns the analysis behind a badge. Missing data yields a nil analysis,
// which renders and caches as unknown. Other errors are returned so that a
// transient failure is not cached.
func (s *BadgeService) latest(ctx context.Context, owner, repo string) (*schema.Analysis, error) {
	record, err := s.store.GetRepositoryByName(ctx, owner, repo)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out, err := s.orch.Analyze(ctx, owner, repo, AnalyzeOptions{
		AutoAnalyze: record.AutoAnalyze,
		TriggeredBy: schema.TriggerAPI,
	})
	if apperrors.HasCode(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Analysis, nil
}

// Variants returns the badge links and values of an analyzed repository.
func (s *BadgeService) Variants(ctx context.Context, owner, repo, baseURL string) (BadgeVariants, error) {
	out, err := s.orch.Analyze(ctx, owner, repo, AnalyzeOptions{})
	if apperrors.HasCode(err, apperrors.ErrNotFound) || (err == nil && out.Analysis == nil) {
		return BadgeVariants{}, apperrors.NotFound("Repository not found or not analyzed yet")
	}
	if err != nil {
		return BadgeVariants{}, err
	}

	owner, repo = schema.NormalizeName(owner), schema.NormalizeName(repo)
	baseURL = strings.TrimSuffix(baseURL, "/")
	v := BadgeVariants{
		Repository: owner + "/" + repo,
		Badges:     make(map[schema.BadgeVariant]BadgeLink, len(schema.AllBadgeVariants)),
		Scores:     make(map[schema.BadgeVariant]any, len(schema.AllBadgeVariants)),
	}
	for _, variant := range schema.AllBadgeVariants {
		path := BadgePath(owner, repo, variant)
		v.Badges[variant] = BadgeLink{
			URL:      path + "?style=" + badge.StyleFlat,
			Markdown: fmt.Sprintf("![%s](%s%s)", badgeAltText[variant], baseURL, path),
		}
		v.Scores[variant] = badge.Value(variant, out.Analysis)
	}
	return v, nil
}

// BadgePath is the route of a badge variant.
func BadgePath(owner, repo string, variant schema.BadgeVariant) string {
	path := fmt.Sprintf("%s/%s/%s", BadgePathPrefix, owner, repo)
	if variant != schema.BadgeQuality {
		path += "/" + string(variant)
	}
	return path
}
