package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abdidvp/lintfix/internal/domain"
)

const (
	fileName = ".lintfix.yaml"
	envFile  = ".env"
)

// Environment variables that override the file.
const (
	EnvEngineURL     = "LINTFIX_ENGINE_URL"
	EnvEngineCommand = "LINTFIX_ENGINE_COMMAND"
	EnvLogLevel      = "LINTFIX_LOG_LEVEL"
)

// YAMLLoader implements domain.ConfigLoader by reading .lintfix.yaml.
type YAMLLoader struct {
	validate *validator.Validate
}

// New creates a YAMLLoader.
func New() *YAMLLoader { return &YAMLLoader{validate: validator.New()} }

// Load reads .lintfix.yaml from projectPath, applies .env and environment
// overrides, validates, and fills defaults. A missing file yields
// DefaultConfig with overrides applied.
func (l *YAMLLoader) Load(projectPath string) (domain.ProjectConfig, error) {
	cfg := domain.DefaultConfig()

	data, err := os.ReadFile(filepath.Join(projectPath, fileName))
	switch {
	case err == nil:
		cfg = domain.ProjectConfig{}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return domain.ProjectConfig{}, fmt.Errorf("parsing %s: %w", fileName, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return domain.ProjectConfig{}, err
	}

	if err := applyEnv(&cfg, projectPath); err != nil {
		return domain.ProjectConfig{}, err
	}

	// Validate before defaults so typos in the raw input surface.
	if err := l.validate.Struct(cfg); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("invalid %s: %w", fileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("invalid %s: %w", fileName, err)
	}

	return cfg.WithDefaults(), nil
}

// applyEnv overlays the project .env file, then the process environment.
func applyEnv(cfg *domain.ProjectConfig, projectPath string) error {
	dotenv, err := godotenv.Read(filepath.Join(projectPath, envFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", envFile, err)
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}

	if v := lookup(EnvEngineURL); v != "" {
		cfg.Engine.URL = v
	}
	if v := lookup(EnvEngineCommand); v != "" {
		cfg.Engine.Command = strings.Fields(v)
	}
	if v := lookup(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	return nil
}
