package domain

import "context"

// EngineClient obtains violations for a file set from the analysis engine.
type EngineClient interface {
	Analyze(ctx context.Context, req *EngineRequest) (*EngineResponse, error)
}

// EngineController manages the lifecycle of the engine service.
type EngineController interface {
	Kill(ctx context.Context) error
}

// ConfigLoader loads project configuration.
type ConfigLoader interface {
	Load(projectPath string) (ProjectConfig, error)
}

// FileScanner resolves include/exclude patterns to files under a base dir.
type FileScanner interface {
	Scan(baseDir string, includes, excludes []string) ([]string, error)
}

// ChangeDetector lists files with uncommitted changes in a project.
type ChangeDetector interface {
	ChangedFiles(projectPath string) ([]string, error)
}
