package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/abdidvp/lintfix/internal/domain"
	"github.com/abdidvp/lintfix/internal/domain/rules"
)

const rulesURI = "lintfix://rules"

// registerResources registers the lintfix MCP resources on the given server.
func registerResources(s *server.MCPServer, catalog domain.RuleCatalog) {
	s.AddResource(
		mcplib.NewResource(
			rulesURI,
			"Rules",
			mcplib.WithResourceDescription("Rule catalogue with fix priorities and scopes"),
			mcplib.WithMIMEType("application/json"),
		),
		handleRulesResource(catalog),
	)
}

func handleRulesResource(catalog domain.RuleCatalog) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		data, err := json.MarshalIndent(rules.Describe(catalog), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling rules: %w", err)
		}
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      rulesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}
