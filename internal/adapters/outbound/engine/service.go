// Package engine talks to the external analysis engine, either through its
// long-running HTTP service or through a one-shot command line.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/abdidvp/lintfix/internal/domain"
)

// ErrNotRunning is returned by Kill when no service answers.
var ErrNotRunning = errors.New("engine service is not running")

const pingTimeout = 2 * time.Second

// State is the lifecycle state of the engine service as seen from this
// process.
type State int

const (
	StateUnknown State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Process is a started engine service owned by this process.
type Process interface {
	Kill() error
}

// Launcher starts the engine service.
type Launcher interface {
	Launch(command []string) (Process, error)
}

// ExecLauncher starts the service as a child process in its own process
// group.
type ExecLauncher struct {
	Dir    string
	Logger *slog.Logger
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := killProcGroup(p.cmd); err != nil {
		return fmt.Errorf("killing engine process %d: %w", p.cmd.Process.Pid, err)
	}
	<-p.done
	return nil
}

// Launch starts command detached from any request context; the service
// outlives the request that started it.
func (l ExecLauncher) Launch(command []string) (Process, error) {
	if len(command) == 0 {
		return nil, errors.New("no engine command configured")
	}
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = l.Dir
	setProcGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting engine %q: %w", command[0], err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	logger := l.Logger
	go func() {
		err := cmd.Wait()
		close(p.done)
		if logger != nil {
			logger.Debug("engine process exited", "pid", cmd.Process.Pid, "error", err)
		}
	}()
	return p, nil
}

// Service is the handle on the engine's long-running service. One Service
// is shared by every Client of a process; cross-process starts are
// serialised with a lock file.
type Service struct {
	cfg          domain.EngineConfig
	baseURL      string
	http         *http.Client
	launcher     Launcher
	logger       *slog.Logger
	pollInterval time.Duration

	mu    sync.Mutex
	state State
	owned Process
}

// Option configures a Service.
type Option func(*Service)

func WithLauncher(l Launcher) Option          { return func(s *Service) { s.launcher = l } }
func WithHTTPClient(c *http.Client) Option    { return func(s *Service) { s.http = c } }
func WithLogger(l *slog.Logger) Option        { return func(s *Service) { s.logger = l } }
func WithPollInterval(d time.Duration) Option { return func(s *Service) { s.pollInterval = d } }

// NewService returns a Service for the configured engine. Zero config
// values take their defaults.
func NewService(cfg domain.EngineConfig, opts ...Option) *Service {
	cfg = domain.ProjectConfig{Engine: cfg}.WithDefaults().Engine
	s := &Service{
		cfg:          cfg,
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		http:         &http.Client{},
		pollInterval: domain.DefaultPollInterval,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.launcher == nil {
		s.launcher = ExecLauncher{Logger: s.logger}
	}
	return s
}

// Status returns the current lifecycle state.
func (s *Service) Status() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ping reports whether the service answers its health endpoint.
func (s *Service) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/ping", nil)
	if err != nil {
		return false
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Start makes sure the service is running, launching it at most once per
// call. Callers racing in the same process wait for the first one and
// reuse its outcome through the initial ping.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Ping(ctx) {
		s.state = StateRunning
		return nil
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		s.state = StateError
		return err
	}
	defer unlock()

	// Another process may have started it while we waited for the lock.
	if s.Ping(ctx) {
		s.state = StateRunning
		return nil
	}

	s.logger.Info("starting engine service", "command", strings.Join(s.cfg.Command, " "), "url", s.baseURL)
	proc, err := s.launcher.Launch(s.cfg.Command)
	if err != nil {
		s.state = StateError
		return fmt.Errorf("starting engine service: %w", err)
	}

	if err := s.waitUntil(ctx, s.cfg.StartTimeout, true); err != nil {
		if kerr := proc.Kill(); kerr != nil {
			s.logger.Warn("killing unresponsive engine", "error", kerr)
		}
		s.state = StateError
		return fmt.Errorf("engine service did not answer within %s: %w", s.cfg.StartTimeout, err)
	}

	s.owned = proc
	s.state = StateRunning
	s.logger.Info("engine service running", "url", s.baseURL)
	return nil
}

// lock takes the cross-process start lock under the state directory.
func (s *Service) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(s.cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	path := filepath.Join(s.cfg.StateDir, "engine.lock")
	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, s.pollInterval)
	if err != nil {
		return nil, fmt.Errorf("could not get file lock %q: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("could not lock %q", path)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("releasing engine lock", "path", path, "error", err)
		}
	}, nil
}

// waitUntil polls the health endpoint until its answer equals up or the
// timeout elapses. Each ping runs on the caller's context, so a ping cut off
// by the poll bound never reads as an answer.
func (s *Service) waitUntil(ctx context.Context, timeout time.Duration, up bool) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		answer := s.Ping(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if answer == up {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return context.DeadlineExceeded
		case <-ticker.C:
		}
	}
}

// Kill stops the service. The owned child is killed directly; otherwise a
// remote kill is sent and the service is polled until it stops answering.
func (s *Service) Kill(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owned != nil {
		err := s.owned.Kill()
		s.owned = nil
		s.state = StateUnknown
		if err != nil {
			return err
		}
		s.logger.Info("engine service killed", "how", "process")
		return nil
	}

	if err := s.remoteKill(ctx); err != nil {
		return err
	}
	if err := s.waitUntil(ctx, s.cfg.KillTimeout, false); err != nil {
		return fmt.Errorf("engine service still answering after %s: %w", s.cfg.KillTimeout, err)
	}
	s.state = StateUnknown
	s.logger.Info("engine service killed", "how", "remote")
	return nil
}

func (s *Service) remoteKill(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.KillTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/kill", bytes.NewReader([]byte("{}")))
	if err != nil {
		return fmt.Errorf("creating kill request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		switch te := classify("kill", err); te.Kind {
		case domain.TransportReset:
			// The service hung up while dying.
			return nil
		case domain.TransportRefused:
			return ErrNotRunning
		default:
			return te
		}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if classify("kill", err).Kind == domain.TransportReset {
			return nil
		}
		return fmt.Errorf("reading kill response: %w", err)
	}

	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return malformed(fmt.Sprintf("decoding kill response: %v", err), body)
	}
	if w.Status != wireKilled {
		if w.ErrorDetail != nil {
			return w.ErrorDetail
		}
		return fmt.Errorf("engine refused to stop: status %q", w.Status)
	}
	return nil
}

// markRunning records a successful round trip. An error state is left in
// place until Start succeeds again.
func (s *Service) markRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnknown {
		s.state = StateRunning
	}
}
