package application

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/abdidvp/lintfix/internal/domain"
)

// Sources gives the services read and write access to file contents. Files
// are read from disk unless an in-memory override exists; the single
// in-memory source lives under domain.SourceKey and is never written to disk.
type Sources struct {
	mu  sync.RWMutex
	mem map[string]string
}

// NewSources returns a file-backed source set.
func NewSources() *Sources {
	return &Sources{mem: make(map[string]string)}
}

// SetMemory registers in-memory content for key.
func (s *Sources) SetMemory(key, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[key] = content
}

// Read returns the current content of key.
func (s *Sources) Read(key string) (string, error) {
	s.mu.RLock()
	c, ok := s.mem[key]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}
	if key == domain.SourceKey {
		return "", fmt.Errorf("no in-memory source registered")
	}
	data, err := os.ReadFile(key)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return string(data), nil
}

// Write persists content. In-memory keys are updated in place; files keep
// their permissions.
func (s *Sources) Write(key, content string) error {
	s.mu.Lock()
	_, inMemory := s.mem[key]
	if inMemory || key == domain.SourceKey {
		s.mem[key] = content
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	mode := os.FileMode(0o644)
	if info, err := os.Stat(key); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(key, []byte(content), mode); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// staging holds copies of sources on disk so the engine, which only reads
// files, can analyze content that exists only in memory.
type staging struct {
	dir    string
	byPath map[string]string
}

// stage writes each key's content under a fresh temporary directory, keeping
// the original base name so filename-based engine rules still apply.
func stage(contents map[string]string, names map[string]string) (*staging, error) {
	dir, err := os.MkdirTemp("", "lintfix-")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	st := &staging{dir: dir, byPath: make(map[string]string, len(contents))}
	i := 0
	for _, key := range sortedKeys(contents) {
		sub := filepath.Join(dir, strconv.Itoa(i))
		i++
		if err := os.MkdirAll(sub, 0o755); err != nil {
			st.cleanup()
			return nil, fmt.Errorf("creating staging dir: %w", err)
		}
		name := names[key]
		if name == "" {
			name = filepath.Base(key)
		}
		p := filepath.Join(sub, name)
		if err := os.WriteFile(p, []byte(contents[key]), 0o644); err != nil {
			st.cleanup()
			return nil, fmt.Errorf("staging %s: %w", key, err)
		}
		st.byPath[p] = key
	}
	return st, nil
}

func (st *staging) files() []string {
	out := make([]string, 0, len(st.byPath))
	for p := range st.byPath {
		out = append(out, p)
	}
	return sortStrings(out)
}

// key maps an engine path back to the staged key. Unknown paths pass
// through unchanged.
func (st *staging) key(p string) string {
	if k, ok := st.byPath[p]; ok {
		return k
	}
	if k, ok := st.byPath[filepath.Join(st.dir, p)]; ok {
		return k
	}
	return p
}

func (st *staging) cleanup() {
	os.RemoveAll(st.dir)
}
