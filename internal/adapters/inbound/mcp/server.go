package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/abdidvp/lintfix/internal/application"
	"github.com/abdidvp/lintfix/internal/domain"
)

// Linter runs lint requests on behalf of the tools.
type Linter interface {
	Lint(ctx context.Context, req application.LintRequest) (*domain.LintResult, error)
}

// NewLintfixMCPServer creates an MCP server with the lintfix tools and
// resources registered. projectPath is the base directory of every lint
// request.
func NewLintfixMCPServer(projectPath, version string, linter Linter, catalog domain.RuleCatalog) *server.MCPServer {
	s := server.NewMCPServer(
		"lintfix",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, projectPath, linter, catalog)
	registerResources(s, catalog)

	return s
}
