package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/fulmenhq/guidekit/pkg/customization"
	"github.com/fulmenhq/guidekit/pkg/guideerr"
	"github.com/fulmenhq/guidekit/pkg/ledger"
	"github.com/fulmenhq/guidekit/pkg/logger"
	"github.com/fulmenhq/guidekit/pkg/validation"
	"github.com/fulmenhq/guidekit/pkg/versioning"
)

// InstallOptions control InstallFramework.
type InstallOptions struct {
	// Resolution answers a conflict with existing content. Without one a
	// conflict returns *ConflictError.
	Resolution Resolution
	// WithDependencies installs missing dependencies first.
	WithDependencies bool
	// Validate runs the validator on the installed content.
	Validate bool
}

// InstallAction says what an install did.
type InstallAction string

const (
	ActionInstalled   InstallAction = "installed"
	ActionUnchanged   InstallAction = "unchanged"
	ActionReinstalled InstallAction = "reinstalled"
	ActionRestored    InstallAction = "restored"
	ActionAdopted     InstallAction = "adopted"
	ActionOverwritten InstallAction = "overwritten"
	ActionMerged      InstallAction = "merged"
	ActionKept        InstallAction = "kept-existing"
)

// InstallOutcome describes a successful install.
type InstallOutcome struct {
	FrameworkID  string             `json:"frameworkId" yaml:"frameworkId"`
	Version      string             `json:"version" yaml:"version"`
	Path         string             `json:"path" yaml:"path"`
	Action       InstallAction      `json:"action" yaml:"action"`
	ContentHash  string             `json:"contentHash" yaml:"contentHash"`
	Customized   bool               `json:"customized" yaml:"customized"`
	Validation   *validation.Result `json:"validation,omitempty" yaml:"validation,omitempty"`
	Dependencies []InstallOutcome   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// InstallFramework installs the catalog document id into the workspace.
func (m *Manager) InstallFramework(ctx context.Context, id string, opts InstallOptions) (*InstallOutcome, error) {
	if _, err := m.cat.Descriptor(id); err != nil {
		return nil, err
	}

	var deps []InstallOutcome
	if opts.WithDependencies {
		order, err := m.cat.DependencyOrder(id)
		if err != nil {
			return nil, err
		}
		for _, dep := range order[:len(order)-1] {
			installed, err := m.IsFrameworkInstalled(ctx, dep)
			if err != nil {
				return nil, err
			}
			if installed {
				continue
			}
			out, err := m.install(ctx, dep, opts)
			if err != nil {
				return nil, fmt.Errorf("install dependency %s of %s: %w", dep, id, err)
			}
			deps = append(deps, *out)
		}
	}

	out, err := m.install(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	out.Dependencies = deps
	return out, nil
}

func (m *Manager) install(ctx context.Context, id string, opts InstallOptions) (*InstallOutcome, error) {
	d, err := m.cat.Descriptor(id)
	if err != nil {
		return nil, err
	}
	path, err := m.layout.DocPath(d.FileName)
	if err != nil {
		return nil, guideerr.ManifestCorrupt(m.cat.Location(), "unsafe fileName for "+id, err)
	}
	l, err := m.ledger.Read(ctx)
	if err != nil {
		return nil, err
	}
	rec, hasRec := l.Get(id)
	if hasRec && rec.Version != d.Version {
		if err := crossVersion(id, path, rec.Version, d.Version); err != nil {
			return nil, err
		}
	}
	existing, exists, err := m.readIfExists(ctx, path)
	if err != nil {
		return nil, guideerr.WithFramework(err, id)
	}
	canonical, err := m.cat.Content(ctx, id)
	if err != nil {
		return nil, err
	}
	canonicalHash := customization.Hash(canonical)

	content, customized, action := canonical, false, ActionInstalled
	if hasRec {
		action = ActionRestored
	}
	if exists {
		existingHash := customization.Hash(existing)
		tracked := hasRec && existingHash == rec.ContentHash
		switch {
		case tracked && !rec.Customized && existingHash == canonicalHash && rec.Version == d.Version:
			return &InstallOutcome{
				FrameworkID: id, Version: d.Version, Path: path,
				Action: ActionUnchanged, ContentHash: existingHash,
				Validation: m.maybeValidate(opts, canonical),
			}, nil
		case tracked && !rec.Customized:
			action = ActionReinstalled
		case existingHash == canonicalHash:
			// Already canonical: nothing the caller could lose.
			action = ActionAdopted
		default:
			conflict := &ConflictError{
				Phase:       PhaseInstall,
				FrameworkID: id,
				Path:        path,
				ActualHash:  existingHash,
				Customized:  hasRec && rec.Customized,
				Options:     optionStrings(Resolutions),
			}
			if hasRec {
				conflict.ExpectedHash = rec.ContentHash
			}
			switch opts.Resolution {
			case ResolutionNone:
				return nil, conflict
			case ResolutionCancel:
				return nil, cancelled(PhaseInstall, id, path)
			case ResolutionOverwrite:
				action = ActionOverwritten
			case ResolutionMerge:
				content = mergeContent(canonical, existing)
				customized = !bytes.Equal(content, canonical)
				action = ActionMerged
			case ResolutionKeepExisting:
				content, customized, action = existing, true, ActionKept
			default:
				return nil, fmt.Errorf("unknown resolution %q", opts.Resolution)
			}
			logger.Warn("install conflict resolved by caller",
				logger.String("framework", id),
				logger.String("path", m.layout.Rel(path)),
				logger.String("resolution", string(opts.Resolution)))
		}
	}

	newHash := customization.Hash(content)
	txn, err := m.journal.begin(ctx, opInstall, id, path, existing, exists, newHash)
	if err != nil {
		return nil, guideerr.WithFramework(err, id)
	}
	// Past the journal the operation completes or rolls back; cancellation no longer applies.
	ctx = context.WithoutCancel(ctx)

	if !exists || !bytes.Equal(existing, content) {
		if err := m.fsys.WriteFile(ctx, path, content); err != nil {
			return nil, m.abort(ctx, txn, id, err)
		}
	}

	now := m.timestamp()
	next := ledger.Record{
		FrameworkID:    id,
		Version:        d.Version,
		InstalledAt:    now,
		Customized:     customized,
		ContentHash:    newHash,
		FileName:       d.FileName,
		SourceRevision: m.sourceRevision(ctx),
	}
	if hasRec {
		next.InstalledAt = rec.InstalledAt
		next.UpdatedAt = &now
	}
	if err := m.ledger.Upsert(ctx, next); err != nil {
		return nil, m.abort(ctx, txn, id, err)
	}
	txn.commit(ctx)

	logger.Info("framework installed",
		logger.String("framework", id),
		logger.String("version", d.Version),
		logger.String("action", string(action)),
		logger.String("path", m.layout.Rel(path)))
	return &InstallOutcome{
		FrameworkID: id,
		Version:     d.Version,
		Path:        path,
		Action:      action,
		ContentHash: newHash,
		Customized:  customized,
		Validation:  m.maybeValidate(opts, content),
	}, nil
}

// crossVersion refuses to reinstall a framework recorded at another version.
// An older catalog is a downgrade; a newer one has to go through UpdateFramework.
func crossVersion(id, path, installed, catalogVersion string) error {
	cmp, err := versioning.Compare(catalogVersion, installed)
	if err != nil {
		return guideerr.WithFramework(err, id)
	}
	switch cmp {
	case versioning.ComparisonLess:
		return guideerr.New(guideerr.ErrUpToDate, id, path,
			fmt.Sprintf("installed %s is newer than catalog %s", installed, catalogVersion), nil)
	case versioning.ComparisonGreater:
		return guideerr.New(guideerr.ErrConflict, id, path,
			fmt.Sprintf("installed %s, catalog %s; run update instead", installed, catalogVersion), nil)
	}
	return nil
}

// UninstallOutcome describes a successful uninstall.
type UninstallOutcome struct {
	FrameworkID string `json:"frameworkId" yaml:"frameworkId"`
	Path        string `json:"path" yaml:"path"`
	// FileRemoved is false when the document was already gone.
	FileRemoved bool `json:"fileRemoved" yaml:"fileRemoved"`
	// BackupPath is set when customized content was copied aside first.
	BackupPath string `json:"backupPath,omitempty" yaml:"backupPath,omitempty"`
}

// UninstallFramework deletes the document and its ledger record together.
// Customized content is copied to the backup directory before deletion.
func (m *Manager) UninstallFramework(ctx context.Context, id string) (*UninstallOutcome, error) {
	rec, err := m.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	path, err := m.recordPath(rec)
	if err != nil {
		return nil, err
	}
	existing, exists, err := m.readIfExists(ctx, path)
	if err != nil {
		return nil, guideerr.WithFramework(err, id)
	}

	out := &UninstallOutcome{FrameworkID: id, Path: path, FileRemoved: exists}
	if exists && (rec.Customized || customization.Hash(existing) != rec.ContentHash) {
		name := rec.FileName
		if name == "" {
			name = id + ".md"
		}
		out.BackupPath = m.layout.BackupPath(name, rec.Version, m.timestamp())
	}

	var backups []string
	if out.BackupPath != "" {
		backups = append(backups, out.BackupPath)
	}
	txn, err := m.journal.begin(ctx, opUninstall, id, path, existing, exists, "", backups...)
	if err != nil {
		return nil, guideerr.WithFramework(err, id)
	}
	ctx = context.WithoutCancel(ctx)

	if out.BackupPath != "" {
		if err := m.fsys.WriteFile(ctx, out.BackupPath, existing); err != nil {
			return nil, m.abort(ctx, txn, id, err)
		}
		logger.Warn("customized document backed up before uninstall",
			logger.String("framework", id),
			logger.String("backup", m.layout.Rel(out.BackupPath)))
	}
	if exists {
		if err := m.fsys.DeleteFile(ctx, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, m.abort(ctx, txn, id, err)
		}
	}
	if err := m.ledger.Remove(ctx, id); err != nil {
		return nil, m.abort(ctx, txn, id, err)
	}
	txn.commit(ctx)

	logger.Info("framework uninstalled",
		logger.String("framework", id),
		logger.String("path", m.layout.Rel(path)))
	return out, nil
}

// abort rolls txn back and returns cause, joined with any rollback failure.
func (m *Manager) abort(ctx context.Context, txn *tx, id string, cause error) error {
	cause = guideerr.WithFramework(cause, id)
	if rbErr := txn.rollback(ctx); rbErr != nil {
		return errors.Join(cause, rbErr)
	}
	return cause
}

func (m *Manager) readIfExists(ctx context.Context, path string) ([]byte, bool, error) {
	data, err := m.fsys.ReadFile(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) maybeValidate(opts InstallOptions, content []byte) *validation.Result {
	if !opts.Validate {
		return nil
	}
	res := m.validator.Validate(string(content))
	if !res.Passed {
		logger.Warn("installed document does not pass validation",
			logger.Int("errors", len(res.Errors())))
	}
	return &res
}

func (m *Manager) sourceRevision(ctx context.Context) string {
	m.revOnce.Do(func() { m.rev = m.cat.Revision(ctx) })
	return m.rev
}
