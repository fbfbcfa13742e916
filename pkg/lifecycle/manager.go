// Package lifecycle installs, updates and removes guidance documents in a
// workspace while keeping the installed-state ledger consistent with the files
// on disk.
//
// Every operation that touches a document writes a journal entry first, then
// the document, then the ledger. If the ledger write fails the document is
// restored from the journal before the error is returned, so a failed
// operation leaves the workspace as it found it. Recover finishes or undoes
// entries left behind by a process that died mid-operation.
//
// Conflicts are never resolved here. When existing content would be replaced,
// the caller gets a *ConflictError and has to come back with a Resolution
// (install) or a Decision (update).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/guidekit/pkg/catalog"
	"github.com/fulmenhq/guidekit/pkg/customization"
	"github.com/fulmenhq/guidekit/pkg/guideerr"
	"github.com/fulmenhq/guidekit/pkg/ledger"
	"github.com/fulmenhq/guidekit/pkg/safeio"
	"github.com/fulmenhq/guidekit/pkg/search"
	"github.com/fulmenhq/guidekit/pkg/validation"
)

const (
	opInstall   = "install"
	opUpdate    = "update"
	opUninstall = "uninstall"
)

// Config wires a Manager.
type Config struct {
	Layout  Layout
	Catalog *catalog.Catalog
	// FS defaults to the local disk.
	FS safeio.FileSystem
	// Validator defaults to validation.Default().
	Validator *validation.Validator
	Search    search.Options
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager is the entry point for hosts: it exposes listing, install, update,
// search and validation over one workspace.
type Manager struct {
	layout    Layout
	fsys      safeio.FileSystem
	cat       *catalog.Catalog
	ledger    *ledger.Repository
	detector  *customization.Detector
	validator *validation.Validator
	search    *search.Engine
	journal   *journal
	now       func() time.Time

	revOnce sync.Once
	rev     string
}

// New returns a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("lifecycle: catalog is required")
	}
	if cfg.Layout.Workspace == "" {
		return nil, errors.New("lifecycle: layout is required")
	}
	if cfg.FS == nil {
		cfg.FS = safeio.NewOS()
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Manager{
		layout:    cfg.Layout,
		fsys:      cfg.FS,
		cat:       cfg.Catalog,
		ledger:    ledger.NewRepository(cfg.Layout.LedgerFile, cfg.FS),
		validator: cfg.Validator,
		search:    search.NewEngine(cfg.Search),
		now:       cfg.Now,
	}
	m.journal = &journal{dir: cfg.Layout.JournalDir(), fsys: cfg.FS, now: m.timestamp}
	m.detector = customization.NewDetector(cfg.FS, m.ledger, m.recordPath)
	return m, nil
}

// Layout returns the workspace layout.
func (m *Manager) Layout() Layout { return m.layout }

// Catalog returns the loaded catalog.
func (m *Manager) Catalog() *catalog.Catalog { return m.cat }

// Ledger returns the ledger repository.
func (m *Manager) Ledger() *ledger.Repository { return m.ledger }

// Detector returns the customization detector.
func (m *Manager) Detector() *customization.Detector { return m.detector }

func (m *Manager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Second)
}

// recordPath resolves where an installed record's document lives. Records
// written by this version carry the file name; older ones fall back to the
// catalog.
func (m *Manager) recordPath(rec ledger.Record) (string, error) {
	name := rec.FileName
	if name == "" {
		d, err := m.cat.Descriptor(rec.FrameworkID)
		if err != nil {
			return "", fmt.Errorf("cannot locate document for installed framework %s: %w", rec.FrameworkID, err)
		}
		name = d.FileName
	}
	p, err := m.layout.DocPath(name)
	if err != nil {
		return "", guideerr.New(guideerr.ErrLedgerCorrupt, rec.FrameworkID, m.ledger.Path(), "unsafe fileName", err)
	}
	return p, nil
}

// ListAvailableFrameworks returns the catalog descriptors in manifest order.
func (m *Manager) ListAvailableFrameworks() []catalog.Descriptor {
	return m.cat.Descriptors()
}

// GetInstalledFrameworks returns ledger records sorted by id.
func (m *Manager) GetInstalledFrameworks(ctx context.Context) ([]ledger.Record, error) {
	return m.ledger.List(ctx)
}

// IsFrameworkInstalled reports whether the ledger has a record for id.
func (m *Manager) IsFrameworkInstalled(ctx context.Context, id string) (bool, error) {
	_, err := m.ledger.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, guideerr.ErrNotInstalled):
		return false, nil
	default:
		return false, err
	}
}

// Validate checks document text.
func (m *Manager) Validate(text string) validation.Result {
	return m.validator.Validate(text)
}

// SearchFrameworks searches descriptors and, with includeContent, the
// installed documents.
func (m *Manager) SearchFrameworks(ctx context.Context, query string, includeContent bool) ([]search.Result, error) {
	corpus := search.Corpus{Descriptors: m.cat.Descriptors()}
	if includeContent {
		records, err := m.ledger.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			path, err := m.recordPath(rec)
			if err != nil {
				return nil, err
			}
			corpus.Documents = append(corpus.Documents, search.Document{
				FrameworkID: rec.FrameworkID,
				Source:      m.layout.Rel(path),
				Read: func(ctx context.Context) ([]byte, error) {
					return m.fsys.ReadFile(ctx, path)
				},
			})
		}
	}
	return m.search.WithContent(includeContent).Search(ctx, query, corpus)
}

// Recover resolves journal entries left by an interrupted operation.
func (m *Manager) Recover(ctx context.Context) (*RecoveryReport, error) {
	l, err := m.ledger.Read(ctx)
	if err != nil {
		return nil, err
	}
	return m.journal.recover(ctx, l)
}

// Scan runs the customization detector over every installed document.
func (m *Manager) Scan(ctx context.Context, flag bool) ([]customization.Finding, error) {
	return m.detector.Scan(ctx, flag)
}

// FrameworkStatus is one row of Status.
type FrameworkStatus struct {
	ID               string              `json:"id" yaml:"id"`
	Name             string              `json:"name" yaml:"name"`
	Category         catalog.Category    `json:"category" yaml:"category"`
	CatalogVersion   string              `json:"catalogVersion" yaml:"catalogVersion"`
	Installed        bool                `json:"installed" yaml:"installed"`
	InstalledVersion string              `json:"installedVersion,omitempty" yaml:"installedVersion,omitempty"`
	UpdateAvailable  bool                `json:"updateAvailable" yaml:"updateAvailable"`
	State            customization.State `json:"state,omitempty" yaml:"state,omitempty"`
	Customized       bool                `json:"customized" yaml:"customized"`
	Path             string              `json:"path,omitempty" yaml:"path,omitempty"`
	// Orphaned is set for ledger records whose framework left the catalog.
	Orphaned bool `json:"orphaned,omitempty" yaml:"orphaned,omitempty"`
}

// Status is the combined catalog, ledger and disk view of a workspace.
type Status struct {
	Workspace       string            `json:"workspace" yaml:"workspace"`
	Catalog         string            `json:"catalog" yaml:"catalog"`
	CatalogRevision string            `json:"catalogRevision,omitempty" yaml:"catalogRevision,omitempty"`
	Ledger          string            `json:"ledger" yaml:"ledger"`
	PendingJournal  int               `json:"pendingJournal" yaml:"pendingJournal"`
	Frameworks      []FrameworkStatus `json:"frameworks" yaml:"frameworks"`
}

// Status reports every catalog framework plus orphaned ledger records.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	l, err := m.ledger.Read(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := m.fsys.ListFiles(ctx, m.layout.JournalDir(), "*.json")
	if err != nil {
		return nil, err
	}
	st := &Status{
		Workspace:       m.layout.Workspace,
		Catalog:         m.cat.Location(),
		CatalogRevision: m.cat.Revision(ctx),
		Ledger:          m.layout.Rel(m.ledger.Path()),
		PendingJournal:  len(pending),
	}

	seen := map[string]bool{}
	for _, d := range m.cat.Descriptors() {
		seen[d.ID] = true
		row := FrameworkStatus{ID: d.ID, Name: d.Name, Category: d.Category, CatalogVersion: d.Version}
		if rec, ok := l.Get(d.ID); ok {
			if err := m.fillInstalled(ctx, &row, rec); err != nil {
				return nil, err
			}
		}
		st.Frameworks = append(st.Frameworks, row)
	}
	for _, rec := range l.Records() {
		if seen[rec.FrameworkID] {
			continue
		}
		row := FrameworkStatus{ID: rec.FrameworkID, Orphaned: true}
		if rec.FileName != "" {
			if err := m.fillInstalled(ctx, &row, rec); err != nil {
				return nil, err
			}
		} else {
			row.Installed, row.InstalledVersion, row.Customized = true, rec.Version, rec.Customized
		}
		st.Frameworks = append(st.Frameworks, row)
	}
	sort.SliceStable(st.Frameworks, func(i, j int) bool { return st.Frameworks[i].ID < st.Frameworks[j].ID })
	return st, nil
}

func (m *Manager) fillInstalled(ctx context.Context, row *FrameworkStatus, rec ledger.Record) error {
	row.Installed = true
	row.InstalledVersion = rec.Version
	path, err := m.recordPath(rec)
	if err != nil {
		return err
	}
	f, err := m.detector.Inspect(ctx, path, rec)
	if err != nil {
		return err
	}
	row.Path = m.layout.Rel(path)
	row.State = f.State
	row.Customized = rec.Customized || f.State == customization.StateCustomized
	if row.CatalogVersion != "" {
		row.UpdateAvailable = isNewer(row.CatalogVersion, rec.Version)
	}
	return nil
}
