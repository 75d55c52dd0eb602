package gitinfo

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
)

// GitInfoAdapter implements domain.ChangeDetector using go-git.
type GitInfoAdapter struct{}

func New() *GitInfoAdapter {
	return &GitInfoAdapter{}
}

// ChangedFiles returns the absolute paths of files that are modified,
// added, renamed or untracked in the worktree containing projectPath.
// Deleted files are left out since there is nothing to lint.
func (g *GitInfoAdapter) ChangedFiles(projectPath string) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(projectPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repo: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}

	root := wt.Filesystem.Root()
	var files []string
	for name, s := range status {
		if s.Worktree == git.Deleted || (s.Staging == git.Deleted && s.Worktree == git.Unmodified) {
			continue
		}
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(name)))
	}
	sort.Strings(files)
	return files, nil
}
