// Package provenance reports which git revision a catalog directory was read from.
package provenance

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/fulmenhq/guidekit/pkg/logger"
)

// Info describes the repository state of a path.
type Info struct {
	Commit   string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Ref      string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Dirty    bool   `json:"dirty" yaml:"dirty"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"` // non-git, no-head, worktree-dirty
	RepoRoot string `json:"repo_root,omitempty" yaml:"repo_root,omitempty"`
}

// Revision renders the info as a short revision string: the abbreviated commit,
// suffixed with "-dirty" when the worktree has uncommitted changes. Empty when
// the path is not inside a repository.
func (i *Info) Revision() string {
	if i == nil || i.Commit == "" {
		return ""
	}
	rev := i.Commit
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if i.Dirty {
		rev += "-dirty"
	}
	return rev
}

// Inspect opens the repository containing path (walking up to find .git) and
// reports HEAD and worktree cleanliness. A path outside any repository is not an
// error: the result has Reason "non-git".
func Inspect(path string) (*Info, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return &Info{Dirty: true, Reason: "non-git"}, nil
	}

	head, err := repo.Head()
	if err != nil {
		return &Info{Dirty: true, Reason: "no-head"}, fmt.Errorf("failed to get HEAD: %w", err)
	}
	info := &Info{Commit: head.Hash().String(), Ref: head.Name().Short()}

	worktree, err := repo.Worktree()
	if err != nil {
		info.Dirty, info.Reason = true, "no-worktree"
		return info, nil
	}
	info.RepoRoot = worktree.Filesystem.Root()

	status, err := worktree.Status()
	if err != nil {
		info.Dirty, info.Reason = true, "status-error"
		return info, nil
	}

	// go-git lists ignored untracked files too; filter with the repository's .gitignore
	patterns, err := gitignore.ReadPatterns(worktree.Filesystem, nil)
	if err != nil {
		logger.Debug(fmt.Sprintf("failed to read gitignore patterns: %v", err))
		patterns = []gitignore.Pattern{}
	}
	patterns = append(patterns, worktree.Excludes...)
	matcher := gitignore.NewMatcher(patterns)

	// Only changes under the inspected path make the catalog dirty
	scope := ""
	if abs, err := filepath.Abs(path); err == nil {
		if rel, err := filepath.Rel(info.RepoRoot, abs); err == nil && rel != "." {
			scope = filepath.ToSlash(rel) + "/"
		}
	}

	for p, fileStatus := range status {
		slash := filepath.ToSlash(p)
		if scope != "" && !strings.HasPrefix(slash, scope) {
			continue
		}
		if fileStatus.Worktree == git.Untracked {
			if matcher.Match(strings.Split(slash, "/"), false) {
				continue
			}
			info.Dirty, info.Reason = true, "worktree-dirty"
			break
		}
		if fileStatus.Staging != git.Unmodified || fileStatus.Worktree != git.Unmodified {
			info.Dirty, info.Reason = true, "worktree-dirty"
			break
		}
	}
	return info, nil
}
