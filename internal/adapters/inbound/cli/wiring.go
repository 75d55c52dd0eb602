package cli

import (
	"fmt"
	"path/filepath"

	"github.com/abdidvp/lintfix/internal/adapters/outbound/config"
	"github.com/abdidvp/lintfix/internal/adapters/outbound/engine"
	"github.com/abdidvp/lintfix/internal/adapters/outbound/gitinfo"
	"github.com/abdidvp/lintfix/internal/adapters/outbound/scanner"
	"github.com/abdidvp/lintfix/internal/application"
	"github.com/abdidvp/lintfix/internal/domain"
	"github.com/abdidvp/lintfix/internal/domain/rules"
)

// loadConfig reads the project config and applies its log level unless
// one was given on the command line.
func (a *app) loadConfig(baseDir string) (domain.ProjectConfig, error) {
	cfg, err := config.New().Load(baseDir)
	if err != nil {
		return domain.ProjectConfig{}, err
	}
	if err := a.setLevel(cfg.LogLevel, false); err != nil {
		return domain.ProjectConfig{}, err
	}
	if !filepath.IsAbs(cfg.Engine.StateDir) {
		cfg.Engine.StateDir = filepath.Join(baseDir, cfg.Engine.StateDir)
	}
	return cfg, nil
}

// engineService builds the engine handle shared by every client of this
// process.
func (a *app) engineService(cfg domain.ProjectConfig, baseDir string) *engine.Service {
	return engine.NewService(cfg.Engine,
		engine.WithLogger(a.logger),
		engine.WithLauncher(engine.ExecLauncher{Dir: baseDir, Logger: a.logger}),
	)
}

// engineController exposes the engine service lifecycle to commands that
// only stop it.
func (a *app) engineController(cfg domain.ProjectConfig, baseDir string) domain.EngineController {
	return a.engineService(cfg, baseDir)
}

// lintService wires the outbound adapters into a LintService.
func (a *app) lintService(cfg domain.ProjectConfig, baseDir string) *application.LintService {
	client := engine.NewClient(a.engineService(cfg, baseDir), engine.NewOneShot(cfg.Engine, nil, a.logger))
	return application.NewLintService(
		client,
		scanner.New(),
		gitinfo.New(),
		rules.Default(),
		cfg,
		a.logger,
	)
}

func absPath(p string) (string, error) {
	if p == "" {
		p = "."
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}
