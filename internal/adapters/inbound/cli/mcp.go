package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/abdidvp/lintfix/internal/adapters/inbound/mcp"
	"github.com/abdidvp/lintfix/internal/domain/rules"
)

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the lintfix MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd(a))
	return cmd
}

func newMCPServeCmd(a *app) *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start lintfix MCP server (stdio)",
		Long:  "Start the lintfix MCP server using stdio transport. This lets AI coding assistants lint and fix Groovy sources.",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseDir, err := absPath(projectPath)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(baseDir)
			if err != nil {
				return err
			}
			s := mcpadapter.NewLintfixMCPServer(baseDir, version, a.lintService(cfg, baseDir), rules.Default())
			return server.ServeStdio(s)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "Project path (defaults to current working directory)")

	return cmd
}
