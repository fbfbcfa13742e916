package safeio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/guidekit/pkg/guideerr"
)

// FileSystem is the whole-file I/O surface the engine depends on. Every method
// checks ctx before touching the disk; once a mutation has started it runs to
// completion. Failures are returned as *IOError and are never retried here.
type FileSystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	CopyFile(ctx context.Context, src, dst string) error
	DeleteFile(ctx context.Context, path string) error
	FileExists(ctx context.Context, path string) (bool, error)
	DirExists(ctx context.Context, path string) (bool, error)
	ListFiles(ctx context.Context, root, pattern string) ([]string, error)
}

// IOError wraps an operating system error with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is lets callers match the io-failure kind while errors.Is(err, fs.ErrPermission)
// and friends still see the underlying cause through Unwrap.
func (e *IOError) Is(target error) bool {
	return target == guideerr.ErrIOFailure
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// OS implements FileSystem on the local disk.
type OS struct {
	// DirMode is used when parent directories must be created (default 0755).
	DirMode os.FileMode
}

// NewOS returns the default local file system.
func NewOS() *OS {
	return &OS{DirMode: 0o755}
}

var _ FileSystem = (*OS)(nil)

func (o *OS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// #nosec G304 -- callers resolve paths under configured workspace roots
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrap("read", path, err)
	}
	return data, nil
}

// WriteFile replaces path with data atomically: a sibling temp file is written,
// synced, and renamed over the target, so readers see either the old or the new
// content and never a partial write.
func (o *OS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), o.dirMode()); err != nil {
		return wrap("mkdir", filepath.Dir(path), err)
	}
	return wrap("write", path, WriteFileAtomic(path, data))
}

func (o *OS) CopyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// #nosec G304 -- src is a workspace-managed document
	in, err := os.Open(src)
	if err != nil {
		return wrap("copy", src, err)
	}
	defer func() { _ = in.Close() }()
	data, err := io.ReadAll(in)
	if err != nil {
		return wrap("copy", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), o.dirMode()); err != nil {
		return wrap("mkdir", filepath.Dir(dst), err)
	}
	return wrap("copy", dst, WriteFileAtomic(dst, data))
}

func (o *OS) DeleteFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap("delete", path, os.Remove(path))
}

func (o *OS) FileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, wrap("stat", path, err)
	}
	return st.Mode().IsRegular(), nil
}

func (o *OS) DirExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, wrap("stat", path, err)
	}
	return st.IsDir(), nil
}

// ListFiles returns files under root matching a doublestar pattern (e.g. "**/*.md"),
// as slash-separated paths relative to root, sorted. A missing root yields no files.
func (o *OS) ListFiles(ctx context.Context, root, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &IOError{Op: "list", Path: root, Err: fmt.Errorf("invalid pattern %q", pattern)}
	}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, wrap("list", root, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (o *OS) dirMode() os.FileMode {
	if o.DirMode == 0 {
		return 0o755
	}
	return o.DirMode
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, preserving the existing file mode when the target already exists.
func WriteFileAtomic(path string, data []byte) error {
	mode := existingMode(path)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func existingMode(path string) os.FileMode {
	var mode os.FileMode = 0o644
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode() & 0o777
		if mode == 0 {
			mode = 0o644
		}
	}
	return mode
}

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	for _, seg := range strings.Split(filepath.ToSlash(c), "/") {
		if seg == ".." {
			return "", errors.New("path traversal detected")
		}
	}
	return filepath.ToSlash(c), nil
}

// ValidFileName reports whether name is a bare file name: no separators, no
// traversal, not hidden, and not empty.
func ValidFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return filepath.Base(name) == name
}

// JoinContained joins a bare file name onto baseDir and verifies the result is
// still inside baseDir.
func JoinContained(baseDir, name string) (string, error) {
	if !ValidFileName(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	joined := filepath.Join(baseDir, name)
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", errors.New("failed to resolve base directory")
	}
	joinedAbs, err := filepath.Abs(joined)
	if err != nil {
		return "", errors.New("failed to resolve file path")
	}
	rel, err := filepath.Rel(baseAbs, joinedAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("file path is outside base directory")
	}
	return joined, nil
}
