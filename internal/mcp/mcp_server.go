// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/codegrade/core"
	"github.com/huangsam/codegrade/core/badge"
	"github.com/huangsam/codegrade/internal/api/handlers"
	"github.com/huangsam/codegrade/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the CodeGrade MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(repos *core.RepositoryService, badges *core.BadgeService, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"CodeGrade Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{repos: repos, badges: badges}

	// --- 1. Tool: analyze_repository ---
	s.AddTool(mcp.NewTool("analyze_repository",
		mcp.WithDescription("Track a GitHub repository if needed and return its latest code quality analysis."),
		mcp.WithString("repo_url", mcp.Description("GitHub repository URL, e.g. https://github.com/owner/name."), mcp.Required()),
		mcp.WithBoolean("force", mcp.Description("Run a new analysis even when a previous one exists.")),
	), h.handleAnalyzeRepository)

	// --- 2. Tool: get_repository ---
	s.AddTool(mcp.NewTool("get_repository",
		mcp.WithDescription("Get a tracked repository with its recent analyses."),
		mcp.WithString("owner", mcp.Description("Repository owner."), mcp.Required()),
		mcp.WithString("name", mcp.Description("Repository name."), mcp.Required()),
	), h.handleGetRepository)

	// --- 3. Tool: list_repositories ---
	s.AddTool(mcp.NewTool("list_repositories",
		mcp.WithDescription("List tracked repositories with filtering, sorting and paging."),
		mcp.WithString("search", mcp.Description("Substring matched against owner, name and description.")),
		mcp.WithString("language", mcp.Description("Exact primary language.")),
		mcp.WithString("sort_by", mcp.Description("Sort field."), mcp.Enum(handlers.SortFields...)),
		mcp.WithString("sort_order", mcp.Description("Sort order. Defaults to 'desc'."), mcp.Enum("asc", "desc")),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1.")),
		mcp.WithNumber("limit", mcp.Description("Page size, at most 100.")),
	), h.handleListRepositories)

	// --- 4. Tool: get_badge ---
	s.AddTool(mcp.NewTool("get_badge",
		mcp.WithDescription("Render the SVG badge of a repository."),
		mcp.WithString("owner", mcp.Description("Repository owner."), mcp.Required()),
		mcp.WithString("repo", mcp.Description("Repository name."), mcp.Required()),
		mcp.WithString("variant", mcp.Description("Badge variant. Defaults to 'quality'."), mcp.Enum(variantNames()...)),
		mcp.WithString("style", mcp.Description("Badge style. Defaults to 'flat'."), mcp.Enum(badge.StyleFlat, badge.StylePlastic)),
	), h.handleGetBadge)

	return s
}

// StartMCPServer starts the CodeGrade MCP server over stdio.
func StartMCPServer(_ context.Context, repos *core.RepositoryService, badges *core.BadgeService, version string) error {
	s := NewMCPServer(repos, badges, version)
	return server.ServeStdio(s)
}

func variantNames() []string {
	names := make([]string, 0, len(schema.AllBadgeVariants))
	for _, v := range schema.AllBadgeVariants {
		names = append(names, string(v))
	}
	return names
}
