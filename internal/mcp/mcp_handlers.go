package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/codegrade/core"
	"github.com/huangsam/codegrade/internal/api/dto"
	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	repos  *core.RepositoryService
	badges *core.BadgeService
}

// toolError turns a service error into a tool-level failure the client can read.
func toolError(action string, err error) *mcp.CallToolResult {
	appErr := apperrors.As(err)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed (%s): %s", action, appErr.Code, appErr.Message))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleAnalyzeRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoURL, err := request.RequireString("repo_url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _, err := h.repos.AnalyzeURL(ctx, repoURL, "mcp", request.GetBool("force", false))
	if err != nil {
		return toolError("analysis", err), nil
	}
	return jsonResult(dto.FromOutcome(out, time.Now()))
}

func (h *toolHandler) handleGetRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := h.repos.GetByName(ctx, owner, name)
	if err != nil {
		return toolError("lookup", err), nil
	}
	return jsonResult(dto.FromDetail(d, time.Now()))
}

func (h *toolHandler) handleListRepositories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := schema.RepositoryQuery{
		Search:    request.GetString("search", ""),
		Language:  request.GetString("language", ""),
		SortBy:    request.GetString("sort_by", ""),
		SortOrder: request.GetString("sort_order", ""),
		Page:      request.GetInt("page", 0),
		Limit:     request.GetInt("limit", 0),
	}
	page, err := h.repos.List(ctx, q)
	if err != nil {
		return toolError("listing", err), nil
	}
	return jsonResult(dto.FromPage(page, time.Now()))
}

func (h *toolHandler) handleGetBadge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	variant := schema.BadgeVariant(request.GetString("variant", string(schema.BadgeQuality)))
	svg := h.badges.Badge(ctx, owner, repo, variant, request.GetString("style", ""))
	return mcp.NewToolResultText(svg), nil
}
