package lifecycle

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/guidekit/pkg/safeio"
)

// Default locations, relative to the workspace.
const (
	DefaultMetadataDir = ".guidekit"
	DefaultDocsDir     = "docs/frameworks"
	DefaultLedgerFile  = "installed.json"
)

// Layout is where a workspace keeps its documents and metadata. All paths are
// absolute once resolved.
type Layout struct {
	Workspace   string
	MetadataDir string
	DocsDir     string
	LedgerFile  string
}

// NewLayout resolves relative directories against workspace. Empty values
// take the defaults.
func NewLayout(workspace, metadataDir, docsDir, ledgerFile string) (Layout, error) {
	if workspace == "" {
		workspace = "."
	}
	ws, err := filepath.Abs(workspace)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve workspace: %w", err)
	}
	if metadataDir == "" {
		metadataDir = DefaultMetadataDir
	}
	if docsDir == "" {
		docsDir = DefaultDocsDir
	}
	if ledgerFile == "" {
		ledgerFile = DefaultLedgerFile
	}
	l := Layout{Workspace: ws}
	for _, p := range []struct {
		dst *string
		src string
	}{{&l.MetadataDir, metadataDir}, {&l.DocsDir, docsDir}} {
		if filepath.IsAbs(p.src) {
			*p.dst = filepath.Clean(p.src)
			continue
		}
		clean, err := safeio.CleanUserPath(p.src)
		if err != nil {
			return Layout{}, fmt.Errorf("invalid directory %q: %w", p.src, err)
		}
		*p.dst = filepath.Join(ws, filepath.FromSlash(clean))
	}
	if filepath.IsAbs(ledgerFile) {
		l.LedgerFile = filepath.Clean(ledgerFile)
	} else {
		if !safeio.ValidFileName(ledgerFile) {
			return Layout{}, fmt.Errorf("invalid ledger file name %q", ledgerFile)
		}
		l.LedgerFile = filepath.Join(l.MetadataDir, ledgerFile)
	}
	return l, nil
}

// DefaultLayout is NewLayout with every directory at its default.
func DefaultLayout(workspace string) (Layout, error) {
	return NewLayout(workspace, "", "", "")
}

// JournalDir holds in-flight write-ahead entries.
func (l Layout) JournalDir() string { return filepath.Join(l.MetadataDir, "journal") }

// BackupDir holds copies of customized documents taken before an update.
func (l Layout) BackupDir() string { return filepath.Join(l.MetadataDir, "backups") }

// DocPath is the installed location of a document.
func (l Layout) DocPath(fileName string) (string, error) {
	return safeio.JoinContained(l.DocsDir, fileName)
}

// BackupPath names a backup of fileName taken at version and time t:
// <stem>-<version>-<UTC timestamp>.md
func (l Layout) BackupPath(fileName, version string, t time.Time) string {
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	if ext == "" {
		ext = ".md"
	}
	name := fmt.Sprintf("%s-%s-%s%s", stem, version, t.UTC().Format("20060102T150405Z"), ext)
	return filepath.Join(l.BackupDir(), name)
}

// Rel renders p relative to the workspace for display.
func (l Layout) Rel(p string) string {
	if rel, err := filepath.Rel(l.Workspace, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}
