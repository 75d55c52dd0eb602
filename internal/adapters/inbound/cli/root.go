package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdidvp/lintfix/internal/adapters/outbound/config"
	"github.com/abdidvp/lintfix/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// app holds what every command shares: the logger and its level.
type app struct {
	level    *slog.LevelVar
	logger   *slog.Logger
	levelSet bool
}

func newApp(stderr io.Writer) *app {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	return &app{
		level:  level,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}
}

// setLevel applies a level name; explicit flags win over config.
func (a *app) setLevel(name string, explicit bool) error {
	if name == "" || (a.levelSet && !explicit) {
		return nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", name)
	}
	a.level.Set(l)
	a.levelSet = a.levelSet || explicit
	return nil
}

func newRootCmd() *cobra.Command {
	var logLevel string
	a := newApp(os.Stderr)

	cmd := &cobra.Command{
		Use:   "lintfix",
		Short: "Lint and auto-fix Groovy sources",
		Long:  "lintfix runs an external Groovy analysis engine over your sources, filters suppressed violations and applies the fixes it knows about.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: a.level}))
			if logLevel != "" {
				return a.setLevel(logLevel, true)
			}
			return a.setLevel(strings.ToLower(os.Getenv(config.EnvLogLevel)), false)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (default warn)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLintCmd(a))
	cmd.AddCommand(newFixCmd(a))
	cmd.AddCommand(newFormatCmd(a))
	cmd.AddCommand(newKillCmd(a))
	cmd.AddCommand(newRulesCmd())
	cmd.AddCommand(newMCPCmd(a))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the CLI and returns the process status code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lintfix: "+describe(err))
	}
	return domain.ExitCode(err)
}

func describe(err error) string {
	if errors.Is(err, domain.ErrCancelled) {
		return "superseded by a newer request with the same key"
	}
	return domain.Describe(err)
}
