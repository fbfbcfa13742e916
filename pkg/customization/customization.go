// Package customization detects installed documents that no longer match the
// bytes guidekit last wrote for them.
package customization

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"

	"github.com/fulmenhq/guidekit/pkg/ledger"
	"github.com/fulmenhq/guidekit/pkg/logger"
	"github.com/fulmenhq/guidekit/pkg/safeio"
)

const hashPrefix = "sha256:"

// Hash returns the content hash recorded in the ledger for data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hashPrefix + hex.EncodeToString(sum[:])
}

// State is the on-disk condition of an installed document.
type State string

const (
	StatePristine   State = "pristine"
	StateCustomized State = "customized"
	StateMissing    State = "missing"
)

// PathFunc maps a ledger record to the document path on disk.
type PathFunc func(rec ledger.Record) (string, error)

// Finding is the result of inspecting one record.
type Finding struct {
	FrameworkID  string `json:"frameworkId" yaml:"frameworkId"`
	Path         string `json:"path" yaml:"path"`
	State        State  `json:"state" yaml:"state"`
	RecordedHash string `json:"recordedHash" yaml:"recordedHash"`
	ActualHash   string `json:"actualHash,omitempty" yaml:"actualHash,omitempty"`
	// Flagged is set when this scan marked the record customized.
	Flagged bool `json:"flagged,omitempty" yaml:"flagged,omitempty"`
}

// Detector compares documents on disk with their ledger records.
type Detector struct {
	fsys   safeio.FileSystem
	ledger *ledger.Repository
	pathOf PathFunc
}

// NewDetector returns a detector. repo and pathOf are only needed by Scan.
func NewDetector(fsys safeio.FileSystem, repo *ledger.Repository, pathOf PathFunc) *Detector {
	if fsys == nil {
		fsys = safeio.NewOS()
	}
	return &Detector{fsys: fsys, ledger: repo, pathOf: pathOf}
}

// IsCustomized reports whether the file at path hashes differently from
// rec.ContentHash. A missing file is not a customization.
func (d *Detector) IsCustomized(ctx context.Context, path string, rec ledger.Record) (bool, error) {
	f, err := d.Inspect(ctx, path, rec)
	if err != nil {
		return false, err
	}
	return f.State == StateCustomized, nil
}

// Inspect hashes the file at path and classifies it against rec.
func (d *Detector) Inspect(ctx context.Context, path string, rec ledger.Record) (Finding, error) {
	f := Finding{FrameworkID: rec.FrameworkID, Path: path, RecordedHash: rec.ContentHash}
	data, err := d.fsys.ReadFile(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.State = StateMissing
			return f, nil
		}
		return f, err
	}
	f.ActualHash = Hash(data)
	if f.ActualHash == rec.ContentHash {
		f.State = StatePristine
	} else {
		f.State = StateCustomized
	}
	return f, nil
}

// Scan inspects every installed record. With flag set, drifted records not yet
// marked customized are marked in the ledger; their content hash is left as is.
func (d *Detector) Scan(ctx context.Context, flag bool) ([]Finding, error) {
	if d.ledger == nil || d.pathOf == nil {
		return nil, errors.New("customization: scan needs a ledger and a path resolver")
	}
	records, err := d.ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(records))
	toFlag := map[string]string{}
	for _, rec := range records {
		path, err := d.pathOf(rec)
		if err != nil {
			return nil, err
		}
		f, err := d.Inspect(ctx, path, rec)
		if err != nil {
			return nil, err
		}
		if f.State == StateCustomized {
			logger.Warn("installed document drifted from recorded content",
				logger.String("framework", rec.FrameworkID),
				logger.String("path", path))
			if flag && !rec.Customized {
				toFlag[rec.FrameworkID] = rec.ContentHash
			}
		}
		findings = append(findings, f)
	}

	if len(toFlag) == 0 {
		return findings, nil
	}
	flagged := map[string]bool{}
	err = d.ledger.Update(ctx, func(l *ledger.Ledger) error {
		for id, seenHash := range toFlag {
			rec, ok := l.Get(id)
			// Skip records rewritten since we looked.
			if !ok || rec.ContentHash != seenHash {
				continue
			}
			rec.Customized = true
			l.Put(rec)
			flagged[id] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range findings {
		findings[i].Flagged = flagged[findings[i].FrameworkID]
	}
	logger.Info("flagged customized documents", logger.Int("count", len(flagged)))
	return findings, nil
}
