package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/abdidvp/lintfix/internal/application"
	"github.com/abdidvp/lintfix/internal/domain"
	"github.com/abdidvp/lintfix/internal/domain/rules"
)

// registerTools registers all lintfix MCP tools on the given server.
func registerTools(s *server.MCPServer, projectPath string, linter Linter, catalog domain.RuleCatalog) {
	// 1. lintfix_lint
	s.AddTool(
		mcplib.NewTool("lintfix_lint",
			mcplib.WithDescription("Lint Groovy source text or project files and return violations as JSON"),
			mcplib.WithString("source", mcplib.Description("Source text to lint instead of files")),
			mcplib.WithString("file_name", mcplib.Description("File name of the source text, used for rule matching")),
			mcplib.WithString("paths", mcplib.Description("Comma-separated files or directories relative to the project root")),
			mcplib.WithString("request_key", mcplib.Description("Key shared by requests that supersede each other")),
		),
		handleLint(projectPath, linter, false),
	)

	// 2. lintfix_fix
	s.AddTool(
		mcplib.NewTool("lintfix_fix",
			mcplib.WithDescription("Lint and auto-fix Groovy source text or project files. Returns the fixed source and remaining violations"),
			mcplib.WithString("source", mcplib.Description("Source text to fix instead of files")),
			mcplib.WithString("file_name", mcplib.Description("File name of the source text, used for rule matching")),
			mcplib.WithString("paths", mcplib.Description("Comma-separated files or directories relative to the project root")),
			mcplib.WithString("rules", mcplib.Description("Comma-separated rule names to fix (default: all)")),
			mcplib.WithBoolean("format", mcplib.Description("Also apply the formatting rules to every file")),
			mcplib.WithBoolean("write", mcplib.Description("Write fixed files back to disk (files only)")),
			mcplib.WithString("request_key", mcplib.Description("Key shared by requests that supersede each other")),
		),
		handleLint(projectPath, linter, true),
	)

	// 3. lintfix_list_rules
	s.AddTool(
		mcplib.NewTool("lintfix_list_rules",
			mcplib.WithDescription("List the known rules, fixable ones in the order fixes are applied"),
		),
		handleListRules(catalog),
	)
}

// toolResponse is the JSON body of the lint and fix tools.
type toolResponse struct {
	Status  int                `json:"status"`
	Message string             `json:"message,omitempty"`
	Result  *domain.LintResult `json:"result,omitempty"`
}

func handleLint(projectPath string, linter Linter, fix bool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		args := request.GetArguments()
		source, hasSource := args["source"].(string)
		fileName, _ := args["file_name"].(string)
		paths, _ := args["paths"].(string)
		requestKey, _ := args["request_key"].(string)

		if hasSource && paths != "" {
			return errorResult("source and paths are mutually exclusive"), nil
		}

		req := application.LintRequest{
			BaseDir:    projectPath,
			Paths:      splitAndTrim(paths),
			SourceName: fileName,
			RequestKey: requestKey,
		}
		if hasSource {
			req.Source = &source
		}
		if fix {
			ruleList, _ := args["rules"].(string)
			format, _ := args["format"].(bool)
			write, _ := args["write"].(bool)
			req.Fix = true
			req.FixOptions = domain.FixOptions{
				Rules:   splitAndTrim(ruleList),
				Format:  format,
				Persist: write && !hasSource,
			}
		}

		res, err := linter.Lint(ctx, req)
		resp := toolResponse{Status: domain.ExitCode(err), Result: res}
		var failOn *domain.FailOnError
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrCancelled):
			resp.Message = "superseded by a newer request with the same key"
		case errors.As(err, &failOn):
			resp.Message = failOn.Error()
		default:
			return errorResult(domain.Describe(err)), nil
		}
		return jsonResult(resp)
	}
}

func handleListRules(catalog domain.RuleCatalog) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return jsonResult(rules.Describe(catalog))
	}
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// jsonResult marshals v to JSON and returns it as a text content result.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
