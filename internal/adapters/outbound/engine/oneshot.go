package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

// Runner executes a command and returns its output.
type Runner interface {
	Run(ctx context.Context, command []string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec, killing the process group when the
// context ends.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, command []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	setProcGroup(cmd)
	cmd.Cancel = func() error { return killProcGroup(cmd) }

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// OneShot invokes the engine as a plain command line that prints a
// response document on stdout.
type OneShot struct {
	command   []string
	secondary []string
	marker    string
	runner    Runner
	logger    *slog.Logger
}

// NewOneShot builds the runner from the engine config. A nil runner uses
// ExecRunner.
func NewOneShot(cfg domain.EngineConfig, runner Runner, logger *slog.Logger) *OneShot {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	marker := cfg.MissingEntryMarker
	if marker == "" {
		marker = domain.DefaultMissingMarker
	}
	return &OneShot{
		command:   cfg.OneShotCommand,
		secondary: cfg.SecondaryCommand,
		marker:    marker,
		runner:    runner,
		logger:    logger,
	}
}

// Configured reports whether a one-shot command is available.
func (o *OneShot) Configured() bool {
	return len(o.command) > 0
}

// Run analyzes req with a single process invocation. When the primary entry
// point is missing from the engine distribution, the secondary one is tried
// once.
func (o *OneShot) Run(ctx context.Context, req *domain.EngineRequest) (*domain.EngineResponse, error) {
	if !o.Configured() {
		return nil, &domain.TransportError{Kind: domain.TransportOther, Op: "oneshot", Err: errors.New("no one-shot command configured")}
	}

	stdout, stderr, err := o.runner.Run(ctx, append(append([]string(nil), o.command...), Args(req)...))
	if err != nil && len(o.secondary) > 0 && strings.Contains(string(stderr), o.marker) {
		o.logger.Info("engine entry point missing, trying secondary", "command", strings.Join(o.secondary, " "))
		stdout, stderr, err = o.runner.Run(ctx, append(append([]string(nil), o.secondary...), Args(req)...))
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(string(stderr))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &domain.TransportError{Kind: domain.TransportOther, Op: "oneshot", Err: err}
	}

	resp, derr := decodeResponse(stdout)
	if derr != nil {
		return nil, derr
	}
	return resp, nil
}

// Args renders a request as engine command-line flags.
func Args(req *domain.EngineRequest) []string {
	args := append([]string(nil), req.Args...)
	if req.BaseDir != "" {
		args = append(args, "-basedir="+req.BaseDir)
	}
	if len(req.Includes) > 0 {
		args = append(args, "-includes="+strings.Join(req.Includes, ","))
	}
	if len(req.Excludes) > 0 {
		args = append(args, "-excludes="+strings.Join(req.Excludes, ","))
	}
	if len(req.Files) > 0 {
		args = append(args, "-files="+strings.Join(req.Files, ","))
	}
	if req.Parse {
		args = append(args, "-parse")
	}
	return append(args, "-report=json:stdout")
}
