package provenance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("manifest.json"); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("initial catalog", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir, repo
}

func TestInspect_NonGit(t *testing.T) {
	info, err := Inspect(t.TempDir())
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if info.Reason != "non-git" || info.Revision() != "" {
		t.Errorf("Inspect() = %+v, want non-git with empty revision", info)
	}
}

func TestInspect_CleanThenDirty(t *testing.T) {
	dir, _ := initRepo(t)

	info, err := Inspect(dir)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if info.Dirty {
		t.Fatalf("fresh commit reported dirty: %+v", info)
	}
	if len(info.Commit) != 40 {
		t.Errorf("commit = %q", info.Commit)
	}
	if rev := info.Revision(); len(rev) != 12 || strings.HasSuffix(rev, "-dirty") {
		t.Errorf("Revision() = %q", rev)
	}

	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"changed":true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err = Inspect(dir)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if !info.Dirty || !strings.HasSuffix(info.Revision(), "-dirty") {
		t.Errorf("modified worktree not reported dirty: %+v", info)
	}
}

func TestInspect_IgnoredFilesKeepClean(t *testing.T) {
	dir, repo := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.tmp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, _ := repo.Worktree()
	if _, err := wt.Add(".gitignore"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("ignore tmp", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(1, 0)},
	}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := Inspect(dir)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if info.Dirty {
		t.Errorf("ignored file made the worktree dirty: %+v", info)
	}
}
