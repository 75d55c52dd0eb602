package domain

import (
	"fmt"
	"time"
)

// Engine defaults.
const (
	DefaultEngineURL      = "http://localhost:7484"
	DefaultStartTimeout   = 10 * time.Second
	DefaultRequestTimeout = 5 * time.Minute
	DefaultKillTimeout    = 10 * time.Second
	DefaultPollInterval   = 400 * time.Millisecond
	DefaultStateDir       = ".lintfix"
	DefaultMissingMarker  = "Could not find or load main class"
)

// DefaultIncludes are the file patterns linted when none are configured.
var DefaultIncludes = []string{"**/*.groovy", "**/*.gvy", "**/Jenkinsfile", "**/*.gradle"}

// ValidFailOn enumerates accepted fail_on thresholds.
var ValidFailOn = []string{"error", "warning", "info", "none"}

// ProjectConfig holds project-level configuration loaded from .lintfix.yaml.
type ProjectConfig struct {
	Engine   EngineConfig `yaml:"engine"   json:"engine"`
	Includes []string     `yaml:"includes" json:"includes,omitempty" validate:"dive,required"`
	Excludes []string     `yaml:"excludes" json:"excludes,omitempty" validate:"dive,required"`
	RuleSet  []string     `yaml:"ruleset"  json:"ruleset,omitempty"`
	Fix      FixConfig    `yaml:"fix"      json:"fix"`
	FailOn   string       `yaml:"fail_on"  json:"fail_on,omitempty"`
	LogLevel string       `yaml:"log_level" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// EngineConfig describes how to reach and start the analysis engine.
type EngineConfig struct {
	URL                string        `yaml:"url"                  json:"url"                            validate:"omitempty,url"`
	Command            []string      `yaml:"command"              json:"command,omitempty"`
	OneShotCommand     []string      `yaml:"oneshot_command"      json:"oneshot_command,omitempty"`
	SecondaryCommand   []string      `yaml:"secondary_command"    json:"secondary_command,omitempty"`
	MissingEntryMarker string        `yaml:"missing_entry_marker" json:"missing_entry_marker,omitempty"`
	StartTimeout       time.Duration `yaml:"start_timeout"        json:"start_timeout,omitempty"        validate:"gte=0"`
	RequestTimeout     time.Duration `yaml:"request_timeout"      json:"request_timeout,omitempty"      validate:"gte=0"`
	KillTimeout        time.Duration `yaml:"kill_timeout"         json:"kill_timeout,omitempty"         validate:"gte=0"`
	StateDir           string        `yaml:"state_dir"            json:"state_dir,omitempty"`
}

// FixConfig holds fix defaults.
type FixConfig struct {
	Rules     []string `yaml:"rules"      json:"rules,omitempty"`
	MaxPasses int      `yaml:"max_passes" json:"max_passes,omitempty" validate:"gte=0,lte=10"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		Engine:   DefaultEngineConfig(),
		Includes: append([]string(nil), DefaultIncludes...),
		FailOn:   "error",
		Fix:      FixConfig{MaxPasses: DefaultMaxFixPasses},
	}
}

// DefaultEngineConfig returns engine settings with every default applied.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		URL:                DefaultEngineURL,
		MissingEntryMarker: DefaultMissingMarker,
		StartTimeout:       DefaultStartTimeout,
		RequestTimeout:     DefaultRequestTimeout,
		KillTimeout:        DefaultKillTimeout,
		StateDir:           DefaultStateDir,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig. Explicit
// values always win.
func (c ProjectConfig) WithDefaults() ProjectConfig {
	d := DefaultConfig()
	if len(c.Includes) == 0 {
		c.Includes = d.Includes
	}
	if c.FailOn == "" {
		c.FailOn = d.FailOn
	}
	if c.Fix.MaxPasses == 0 {
		c.Fix.MaxPasses = d.Fix.MaxPasses
	}
	e := &c.Engine
	if e.URL == "" {
		e.URL = d.Engine.URL
	}
	if e.MissingEntryMarker == "" {
		e.MissingEntryMarker = d.Engine.MissingEntryMarker
	}
	if e.StartTimeout == 0 {
		e.StartTimeout = d.Engine.StartTimeout
	}
	if e.RequestTimeout == 0 {
		e.RequestTimeout = d.Engine.RequestTimeout
	}
	if e.KillTimeout == 0 {
		e.KillTimeout = d.Engine.KillTimeout
	}
	if e.StateDir == "" {
		e.StateDir = d.Engine.StateDir
	}
	return c
}

// FailOnSeverity returns the threshold severity and false for "none".
func (c ProjectConfig) FailOnSeverity() (Severity, bool) {
	switch c.FailOn {
	case "", "error":
		return SeverityError, true
	case "warning":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return "", false
	}
}

// Validate checks the config for semantic errors that struct tags cannot
// express.
func (c ProjectConfig) Validate() error {
	// 1. fail_on must be known or empty
	if c.FailOn != "" && !contains(ValidFailOn, c.FailOn) {
		return fmt.Errorf("unknown fail_on %q (valid: error, warning, info, none)", c.FailOn)
	}

	// 2. a secondary entry point only makes sense with a one-shot command
	if len(c.Engine.SecondaryCommand) > 0 && len(c.Engine.OneShotCommand) == 0 {
		return fmt.Errorf("engine.secondary_command requires engine.oneshot_command")
	}

	// 3. includes cannot all be excluded verbatim
	for _, inc := range c.Includes {
		if contains(c.Excludes, inc) {
			return fmt.Errorf("pattern %q is both included and excluded", inc)
		}
	}

	// 4. fix rule names must not be blank
	for i, r := range c.Fix.Rules {
		if r == "" {
			return fmt.Errorf("fix.rules[%d] must not be empty", i)
		}
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
