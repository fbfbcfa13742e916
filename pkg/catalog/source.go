package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/guidekit/internal/assets"
	"github.com/fulmenhq/guidekit/internal/provenance"
	"github.com/fulmenhq/guidekit/pkg/guideerr"
	"github.com/fulmenhq/guidekit/pkg/safeio"
)

// Source supplies the manifest and canonical document bodies.
type Source interface {
	// Location names the source in messages (a directory or "embedded").
	Location() string
	ReadManifest(ctx context.Context) ([]byte, error)
	ReadDocument(ctx context.Context, fileName string) ([]byte, error)
	// ListDocuments returns the markdown file names the source holds.
	ListDocuments(ctx context.Context) ([]string, error)
	// Revision identifies the catalog content, empty when unknown.
	Revision(ctx context.Context) string
}

const (
	manifestFile = "manifest.json"
	documentsDir = "frameworks"
)

// FSSource reads a catalog laid out as manifest.json + frameworks/*.md from an fs.FS.
type FSSource struct {
	fsys     fs.FS
	location string
}

// NewFSSource wraps fsys; location is used in error messages.
func NewFSSource(fsys fs.FS, location string) *FSSource {
	return &FSSource{fsys: fsys, location: location}
}

// NewEmbeddedSource returns the catalog compiled into the binary.
func NewEmbeddedSource() *FSSource {
	return NewFSSource(assets.GetCatalogFS(), "embedded")
}

func (s *FSSource) Location() string { return s.location }

func (s *FSSource) ReadManifest(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(s.fsys, manifestFile)
	if err != nil {
		return nil, &safeio.IOError{Op: "read", Path: s.location + ":" + manifestFile, Err: err}
	}
	return data, nil
}

func (s *FSSource) ReadDocument(ctx context.Context, fileName string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !safeio.ValidFileName(fileName) {
		return nil, fmt.Errorf("invalid document name %q", fileName)
	}
	p := path.Join(documentsDir, fileName)
	data, err := fs.ReadFile(s.fsys, p)
	if err != nil {
		return nil, &safeio.IOError{Op: "read", Path: s.location + ":" + p, Err: err}
	}
	return data, nil
}

func (s *FSSource) ListDocuments(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := doublestar.Glob(s.fsys, documentsDir+"/*.md", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, path.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FSSource) Revision(context.Context) string { return "" }

// DirSource reads a catalog directory on disk through the file-system
// collaborator. Its revision is the git commit of the directory, when any.
type DirSource struct {
	root string
	fsys safeio.FileSystem
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string, fsys safeio.FileSystem) *DirSource {
	if fsys == nil {
		fsys = safeio.NewOS()
	}
	return &DirSource{root: filepath.Clean(dir), fsys: fsys}
}

func (s *DirSource) Location() string { return s.root }

func (s *DirSource) ReadManifest(ctx context.Context) ([]byte, error) {
	return s.fsys.ReadFile(ctx, filepath.Join(s.root, manifestFile))
}

func (s *DirSource) ReadDocument(ctx context.Context, fileName string) ([]byte, error) {
	p, err := safeio.JoinContained(filepath.Join(s.root, documentsDir), fileName)
	if err != nil {
		return nil, err
	}
	return s.fsys.ReadFile(ctx, p)
}

func (s *DirSource) ListDocuments(ctx context.Context) ([]string, error) {
	files, err := s.fsys.ListFiles(ctx, filepath.Join(s.root, documentsDir), "*.md")
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *DirSource) Revision(context.Context) string {
	info, err := provenance.Inspect(s.root)
	if err != nil {
		return ""
	}
	return info.Revision()
}

var (
	_ Source = (*FSSource)(nil)
	_ Source = (*DirSource)(nil)
)

// readManifestErr classifies a manifest read failure: a missing manifest is an
// IO failure, not corruption.
func readManifestErr(location string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return guideerr.New(guideerr.ErrIOFailure, "", location, "read manifest", err)
}
