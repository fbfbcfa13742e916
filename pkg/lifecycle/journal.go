package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fulmenhq/guidekit/pkg/customization"
	"github.com/fulmenhq/guidekit/pkg/ledger"
	"github.com/fulmenhq/guidekit/pkg/logger"
	"github.com/fulmenhq/guidekit/pkg/safeio"
)

// journalEntry is written before a document is touched and removed once the
// ledger agrees with the document. A leftover entry means the process died
// between the two writes.
type journalEntry struct {
	ID          string    `json:"id"`
	Op          string    `json:"op"`
	FrameworkID string    `json:"frameworkId"`
	Path        string    `json:"path"`
	Existed     bool      `json:"existed"`
	Prior       []byte    `json:"prior,omitempty"`
	NewHash     string    `json:"newHash,omitempty"`
	// Backups are copies the operation writes; rollback removes them.
	Backups   []string  `json:"backups,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

type journal struct {
	dir  string
	fsys safeio.FileSystem
	now  func() time.Time
}

// tx is one open journal entry.
type tx struct {
	j     *journal
	entry journalEntry
}

func (j *journal) entryPath(id string) string {
	return filepath.Join(j.dir, id+".json")
}

// begin snapshots the document at path and persists the entry. It is the first
// mutation of every install, update and uninstall, so a cancelled ctx stops
// here with nothing changed.
func (j *journal) begin(ctx context.Context, op, frameworkID, path string, prior []byte, existed bool, newHash string, backups ...string) (*tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := journalEntry{
		ID:          uuid.NewString(),
		Op:          op,
		FrameworkID: frameworkID,
		Path:        path,
		Existed:     existed,
		Prior:       prior,
		NewHash:     newHash,
		Backups:     backups,
		StartedAt:   j.now().UTC(),
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode journal entry: %w", err)
	}
	if err := j.fsys.WriteFile(ctx, j.entryPath(e.ID), data); err != nil {
		return nil, err
	}
	logger.Debug("journal entry opened",
		logger.String("tx", e.ID),
		logger.String("op", op),
		logger.String("framework", frameworkID))
	return &tx{j: j, entry: e}, nil
}

// commit drops the entry. Failing to delete it is logged, not returned: the
// operation itself succeeded and Recover will recognise it as complete.
func (t *tx) commit(ctx context.Context) {
	if err := t.j.fsys.DeleteFile(ctx, t.j.entryPath(t.entry.ID)); err != nil {
		logger.Warn("failed to remove journal entry",
			logger.String("tx", t.entry.ID),
			logger.Err(err))
	}
}

// rollback restores the document to its snapshot and drops the entry. If the
// restore fails the entry is kept for Recover.
func (t *tx) rollback(ctx context.Context) error {
	e := t.entry
	var err error
	if e.Existed {
		err = t.j.fsys.WriteFile(ctx, e.Path, e.Prior)
	} else {
		err = t.j.fsys.DeleteFile(ctx, e.Path)
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
	}
	if err != nil {
		logger.Error("rollback failed; journal entry kept for recovery",
			logger.String("tx", e.ID),
			logger.String("framework", e.FrameworkID),
			logger.String("path", e.Path),
			logger.Err(err))
		return fmt.Errorf("rollback of %s for %s: %w", e.Op, e.FrameworkID, err)
	}
	for _, b := range e.Backups {
		if err := t.j.fsys.DeleteFile(ctx, b); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not remove backup of rolled-back operation",
				logger.String("tx", e.ID),
				logger.String("backup", b),
				logger.Err(err))
		}
	}
	logger.Warn("document write rolled back",
		logger.String("tx", e.ID),
		logger.String("framework", e.FrameworkID),
		logger.String("path", e.Path))
	t.commit(ctx)
	return nil
}

// RecoveryAction describes what Recover did with one leftover entry.
type RecoveryAction struct {
	TxID        string `json:"txId" yaml:"txId"`
	Op          string `json:"op" yaml:"op"`
	FrameworkID string `json:"frameworkId" yaml:"frameworkId"`
	Path        string `json:"path" yaml:"path"`
	// Outcome is "completed" when the ledger already reflects the write and
	// "rolled-back" when the document was restored.
	Outcome string `json:"outcome" yaml:"outcome"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RecoveryReport lists the actions taken by Recover.
type RecoveryReport struct {
	Actions []RecoveryAction `json:"actions" yaml:"actions"`
}

// recover resolves every leftover entry against the ledger.
func (j *journal) recover(ctx context.Context, l *ledger.Ledger) (*RecoveryReport, error) {
	report := &RecoveryReport{Actions: []RecoveryAction{}}
	names, err := j.fsys.ListFiles(ctx, j.dir, "*.json")
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		data, err := j.fsys.ReadFile(ctx, filepath.Join(j.dir, name))
		if err != nil {
			return nil, err
		}
		var e journalEntry
		if err := json.Unmarshal(data, &e); err != nil || e.ID == "" {
			logger.Warn("skipping unreadable journal entry", logger.String("file", name))
			report.Actions = append(report.Actions, RecoveryAction{TxID: name, Outcome: "skipped", Error: "unreadable entry"})
			continue
		}
		action := RecoveryAction{TxID: e.ID, Op: e.Op, FrameworkID: e.FrameworkID, Path: e.Path}
		t := &tx{j: j, entry: e}
		if j.completed(ctx, e, l) {
			action.Outcome = "completed"
			t.commit(ctx)
		} else if err := t.rollback(ctx); err != nil {
			action.Outcome = "failed"
			action.Error = err.Error()
		} else {
			action.Outcome = "rolled-back"
		}
		report.Actions = append(report.Actions, action)
	}
	return report, nil
}

// completed reports whether the ledger already reflects the entry's write.
func (j *journal) completed(ctx context.Context, e journalEntry, l *ledger.Ledger) bool {
	rec, ok := l.Get(e.FrameworkID)
	if e.Op == opUninstall {
		return !ok
	}
	if !ok || rec.ContentHash != e.NewHash {
		return false
	}
	data, err := j.fsys.ReadFile(ctx, e.Path)
	return err == nil && customization.Hash(data) == e.NewHash
}
