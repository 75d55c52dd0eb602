package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".gradle":      true,
	".idea":        true,
}

// FileScanner implements domain.FileScanner by walking the filesystem.
type FileScanner struct{}

func New() *FileScanner {
	return &FileScanner{}
}

// Scan returns the sorted absolute paths under baseDir whose relative path
// matches an include pattern and no exclude pattern.
func (s *FileScanner) Scan(baseDir string, includes, excludes []string) ([]string, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(absPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, _ := filepath.Rel(absPath, p)
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if p != absPath && (skipDirs[d.Name()] || excludedDir(excludes, relPath)) {
				return filepath.SkipDir
			}
			return nil
		}

		if MatchAny(includes, relPath) && !MatchAny(excludes, relPath) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", baseDir, err)
	}

	sort.Strings(files)
	return files, nil
}

// excludedDir reports whether a "dir/**" exclude covers the whole directory.
func excludedDir(excludes []string, rel string) bool {
	for _, ex := range excludes {
		if prefix, ok := strings.CutSuffix(ex, "/**"); ok && Match(prefix, rel) {
			return true
		}
	}
	return false
}
