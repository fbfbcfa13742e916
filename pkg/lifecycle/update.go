package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aymerick/raymond"

	"github.com/fulmenhq/guidekit/pkg/catalog"
	"github.com/fulmenhq/guidekit/pkg/customization"
	"github.com/fulmenhq/guidekit/pkg/guideerr"
	"github.com/fulmenhq/guidekit/pkg/ledger"
	"github.com/fulmenhq/guidekit/pkg/logger"
	"github.com/fulmenhq/guidekit/pkg/versioning"
)

// UpdateInfo describes one available update.
type UpdateInfo struct {
	FrameworkID    string `json:"frameworkId" yaml:"frameworkId"`
	Name           string `json:"name" yaml:"name"`
	CurrentVersion string `json:"currentVersion" yaml:"currentVersion"`
	LatestVersion  string `json:"latestVersion" yaml:"latestVersion"`
	ChangeSummary  string `json:"changeSummary" yaml:"changeSummary"`
	// Customized mirrors the ledger flag; drift on disk is checked at update time.
	Customized bool `json:"customized" yaml:"customized"`
}

// UpdateOptions control UpdateFramework and UpdateAllFrameworks.
type UpdateOptions struct {
	// Decision is required when the installed document is customized.
	Decision Decision
	// Progress is called after each item of a batch.
	Progress func(done, total int, id string)
}

// UpdateOutcome describes a successful update.
type UpdateOutcome struct {
	FrameworkID string   `json:"frameworkId" yaml:"frameworkId"`
	FromVersion string   `json:"fromVersion" yaml:"fromVersion"`
	ToVersion   string   `json:"toVersion" yaml:"toVersion"`
	Path        string   `json:"path" yaml:"path"`
	ContentHash string   `json:"contentHash" yaml:"contentHash"`
	Decision    Decision `json:"decision,omitempty" yaml:"decision,omitempty"`
	BackupPath  string   `json:"backupPath,omitempty" yaml:"backupPath,omitempty"`
	// DisplacedBackupPath holds an untracked file that sat where a renamed
	// document now lives.
	DisplacedBackupPath string `json:"displacedBackupPath,omitempty" yaml:"displacedBackupPath,omitempty"`
	// Restored is set when the document was missing and has been rewritten.
	Restored bool `json:"restored,omitempty" yaml:"restored,omitempty"`
}

// ItemFailure is one failed item of a batch.
type ItemFailure struct {
	FrameworkID string `json:"frameworkId" yaml:"frameworkId"`
	Error       string `json:"error" yaml:"error"`
	Err         error  `json:"-" yaml:"-"`
}

// BatchResult collects the per-item results of UpdateAllFrameworks.
type BatchResult struct {
	Succeeded []UpdateOutcome `json:"succeeded" yaml:"succeeded"`
	Failed    []ItemFailure   `json:"failed" yaml:"failed"`
}

var summaryTemplate = raymond.MustParse(
	`{{#if changes}}{{#each changes}}{{{version}}}: {{{note}}}{{#unless @last}}; {{/unless}}{{/each}}` +
		`{{else}}{{{name}}} {{{from}}} -> {{{to}}}{{/if}}`)

// changeSummary renders the changelog notes between two versions, or a plain
// version line when the descriptor carries no notes for the range.
func changeSummary(d catalog.Descriptor, from string) string {
	notes := d.ChangesBetween(from, d.Version)
	changes := make([]map[string]string, 0, len(notes))
	for _, n := range notes {
		changes = append(changes, map[string]string{"version": n.Version, "note": n.Note})
	}
	out, err := summaryTemplate.Exec(map[string]interface{}{
		"name":    d.Name,
		"from":    from,
		"to":      d.Version,
		"changes": changes,
	})
	if err != nil {
		logger.Debug("change summary template failed", logger.Err(err))
		return fmt.Sprintf("%s %s -> %s", d.Name, from, d.Version)
	}
	return out
}

func isNewer(candidate, current string) bool {
	newer, err := versioning.IsNewer(candidate, current)
	return err == nil && newer
}

// CheckForUpdates lists installed frameworks whose catalog version is
// strictly newer than the installed one. Records for frameworks that left the
// catalog, and records with unparseable versions, are skipped.
func (m *Manager) CheckForUpdates(ctx context.Context) ([]UpdateInfo, error) {
	records, err := m.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	updates := []UpdateInfo{}
	for _, rec := range records {
		d, err := m.cat.Descriptor(rec.FrameworkID)
		if err != nil {
			logger.Debug("installed framework not in catalog", logger.String("framework", rec.FrameworkID))
			continue
		}
		newer, err := versioning.IsNewer(d.Version, rec.Version)
		if err != nil {
			logger.Warn("cannot compare versions",
				logger.String("framework", rec.FrameworkID),
				logger.String("installed", rec.Version),
				logger.Err(err))
			continue
		}
		if !newer {
			continue
		}
		updates = append(updates, UpdateInfo{
			FrameworkID:    rec.FrameworkID,
			Name:           d.Name,
			CurrentVersion: rec.Version,
			LatestVersion:  d.Version,
			ChangeSummary:  changeSummary(d, rec.Version),
			Customized:     rec.Customized,
		})
	}
	return updates, nil
}

// UpdateFramework moves an installed framework to the catalog version.
func (m *Manager) UpdateFramework(ctx context.Context, id string, opts UpdateOptions) (*UpdateOutcome, error) {
	d, err := m.cat.Descriptor(id)
	if err != nil {
		return nil, err
	}
	rec, err := m.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	newer, err := versioning.IsNewer(d.Version, rec.Version)
	if err != nil {
		return nil, guideerr.WithFramework(err, id)
	}
	if !newer {
		return nil, guideerr.New(guideerr.ErrUpToDate, id, "",
			fmt.Sprintf("installed %s, catalog %s", rec.Version, d.Version), nil)
	}

	path, err := m.layout.DocPath(d.FileName)
	if err != nil {
		return nil, guideerr.ManifestCorrupt(m.cat.Location(), "unsafe fileName for "+id, err)
	}
	oldPath, err := m.recordPath(rec)
	if err != nil {
		return nil, err
	}
	current, exists, err := m.readIfExists(ctx, oldPath)
	if err != nil {
		return nil, guideerr.WithFramework(err, id)
	}

	canonical, err := m.cat.Content(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &UpdateOutcome{FrameworkID: id, FromVersion: rec.Version, ToVersion: d.Version, Path: path, Restored: !exists}
	out.ContentHash = customization.Hash(canonical)
	if exists {
		drifted := customization.Hash(current) != rec.ContentHash
		if drifted || rec.Customized {
			conflict := &ConflictError{
				Phase:        PhaseUpdate,
				FrameworkID:  id,
				Path:         oldPath,
				ExpectedHash: rec.ContentHash,
				ActualHash:   customization.Hash(current),
				Customized:   rec.Customized,
				Options:      optionStrings(Decisions),
			}
			if err := checkDecision(opts.Decision, conflict); err != nil {
				return nil, err
			}
			if opts.Decision == DecisionBackupAndUpdate {
				name := rec.FileName
				if name == "" {
					name = d.FileName
				}
				out.BackupPath = m.layout.BackupPath(name, rec.Version, m.timestamp())
			}
			out.Decision = opts.Decision
			logger.Warn("updating customized document",
				logger.String("framework", id),
				logger.String("decision", string(opts.Decision)))
		}
	}

	// A renamed document must not silently replace a different file already at
	// its new path.
	prior, priorExists := current, exists
	if path != oldPath {
		if prior, priorExists, err = m.readIfExists(ctx, path); err != nil {
			return nil, guideerr.WithFramework(err, id)
		}
		if priorExists && !bytes.Equal(prior, canonical) {
			conflict := &ConflictError{
				Phase:       PhaseUpdate,
				FrameworkID: id,
				Path:        path,
				ActualHash:  customization.Hash(prior),
				Options:     optionStrings(Decisions),
			}
			if err := checkDecision(opts.Decision, conflict); err != nil {
				return nil, err
			}
			if opts.Decision == DecisionBackupAndUpdate {
				out.DisplacedBackupPath = m.layout.BackupPath(d.FileName, rec.Version, m.timestamp())
			}
			out.Decision = opts.Decision
			logger.Warn("replacing untracked file at the renamed document path",
				logger.String("framework", id),
				logger.String("path", m.layout.Rel(path)),
				logger.String("decision", string(opts.Decision)))
		}
	}

	var backups []string
	for _, b := range []string{out.BackupPath, out.DisplacedBackupPath} {
		if b != "" {
			backups = append(backups, b)
		}
	}
	txn, err := m.journal.begin(ctx, opUpdate, id, path, prior, priorExists, out.ContentHash, backups...)
	if err != nil {
		return nil, guideerr.WithFramework(err, id)
	}
	ctx = context.WithoutCancel(ctx)

	if out.BackupPath != "" {
		if err := m.fsys.WriteFile(ctx, out.BackupPath, current); err != nil {
			return nil, m.abort(ctx, txn, id, err)
		}
	}
	if out.DisplacedBackupPath != "" {
		if err := m.fsys.WriteFile(ctx, out.DisplacedBackupPath, prior); err != nil {
			return nil, m.abort(ctx, txn, id, err)
		}
	}
	if !priorExists || !bytes.Equal(prior, canonical) {
		if err := m.fsys.WriteFile(ctx, path, canonical); err != nil {
			return nil, m.abort(ctx, txn, id, err)
		}
	}
	now := m.timestamp()
	err = m.ledger.Update(ctx, func(l *ledger.Ledger) error {
		cur, ok := l.Get(id)
		if !ok {
			return guideerr.NotInstalled(id)
		}
		cur.Version = d.Version
		cur.ContentHash = out.ContentHash
		cur.Customized = false
		cur.UpdatedAt = &now
		cur.FileName = d.FileName
		cur.SourceRevision = m.sourceRevision(ctx)
		l.Put(cur)
		return nil
	})
	if err != nil {
		return nil, m.abort(ctx, txn, id, err)
	}
	txn.commit(ctx)

	if path != oldPath && exists {
		if err := m.fsys.DeleteFile(ctx, oldPath); err != nil {
			logger.Warn("could not remove document under its previous name",
				logger.String("framework", id),
				logger.String("path", m.layout.Rel(oldPath)),
				logger.Err(err))
		}
	}

	logger.Info("framework updated",
		logger.String("framework", id),
		logger.String("from", out.FromVersion),
		logger.String("to", out.ToVersion))
	return out, nil
}

// UpdateAllFrameworks updates each id in turn. An empty ids list means every
// framework CheckForUpdates reports. One item failing does not stop the rest;
// a cancelled ctx fails the items not yet started.
func (m *Manager) UpdateAllFrameworks(ctx context.Context, ids []string, opts UpdateOptions) (*BatchResult, error) {
	if len(ids) == 0 {
		infos, err := m.CheckForUpdates(ctx)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			ids = append(ids, info.FrameworkID)
		}
	} else {
		ids = dedupe(ids)
	}

	res := &BatchResult{Succeeded: []UpdateOutcome{}, Failed: []ItemFailure{}}
	for i, id := range ids {
		var (
			out *UpdateOutcome
			err error
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else {
			out, err = m.UpdateFramework(ctx, id, UpdateOptions{Decision: opts.Decision})
		}
		if err != nil {
			res.Failed = append(res.Failed, ItemFailure{FrameworkID: id, Error: err.Error(), Err: err})
			if !errors.Is(err, context.Canceled) {
				logger.Warn("batch update item failed", logger.String("framework", id), logger.Err(err))
			}
		} else {
			res.Succeeded = append(res.Succeeded, *out)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(ids), id)
		}
	}
	logger.Info("batch update finished",
		logger.Int("succeeded", len(res.Succeeded)),
		logger.Int("failed", len(res.Failed)))
	return res, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// checkDecision returns conflict, or a cancellation, unless decision lets the
// update proceed.
func checkDecision(decision Decision, conflict *ConflictError) error {
	switch decision {
	case DecisionNone:
		return conflict
	case DecisionCancel:
		return cancelled(PhaseUpdate, conflict.FrameworkID, conflict.Path)
	case DecisionBackupAndUpdate, DecisionDiscardAndUpdate:
		return nil
	default:
		return fmt.Errorf("unknown decision %q", decision)
	}
}
