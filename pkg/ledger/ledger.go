// Package ledger persists which guidance documents are installed in a
// workspace, at what version, and with what content hash.
//
// All mutation goes through a Repository, which owns the ledger file and
// serializes read-modify-write cycles behind a single mutex. The file is
// replaced atomically on every write. A ledger that cannot be parsed is
// reported as ErrLedgerCorrupt and is never regenerated implicitly; Quarantine
// is the only way past it, and the caller has to ask for it.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/guidekit/internal/assets"
	"github.com/fulmenhq/guidekit/internal/schema"
	"github.com/fulmenhq/guidekit/pkg/guideerr"
	"github.com/fulmenhq/guidekit/pkg/logger"
	"github.com/fulmenhq/guidekit/pkg/safeio"
)

// SchemaVersion is written into every ledger file.
const SchemaVersion = "1.0.0"

// Record is the installed state of one framework.
type Record struct {
	FrameworkID string     `json:"frameworkId" yaml:"frameworkId"`
	Version     string     `json:"version" yaml:"version"`
	InstalledAt time.Time  `json:"installedAt" yaml:"installedAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Customized  bool       `json:"customized" yaml:"customized"`
	// ContentHash is the hash of the bytes this tool last wrote (or adopted).
	ContentHash    string `json:"contentHash" yaml:"contentHash"`
	FileName       string `json:"fileName,omitempty" yaml:"fileName,omitempty"`
	SourceRevision string `json:"sourceRevision,omitempty" yaml:"sourceRevision,omitempty"`
}

// Ledger is the full persisted document.
type Ledger struct {
	SchemaVersion string            `json:"schemaVersion" yaml:"schemaVersion"`
	Frameworks    map[string]Record `json:"frameworks" yaml:"frameworks"`
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{SchemaVersion: SchemaVersion, Frameworks: map[string]Record{}}
}

// Get returns the record for id.
func (l *Ledger) Get(id string) (Record, bool) {
	r, ok := l.Frameworks[id]
	return r, ok
}

// Records returns all records sorted by framework id.
func (l *Ledger) Records() []Record {
	out := make([]Record, 0, len(l.Frameworks))
	for _, r := range l.Frameworks {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FrameworkID < out[j].FrameworkID })
	return out
}

// Put stores r under its framework id.
func (l *Ledger) Put(r Record) {
	if l.Frameworks == nil {
		l.Frameworks = map[string]Record{}
	}
	l.Frameworks[r.FrameworkID] = r
}

// Delete removes id, reporting whether it was present.
func (l *Ledger) Delete(id string) bool {
	if _, ok := l.Frameworks[id]; !ok {
		return false
	}
	delete(l.Frameworks, id)
	return true
}

// Repository is the single owner of a ledger file.
type Repository struct {
	path string
	fsys safeio.FileSystem
	now  func() time.Time

	// mu is the write queue: every read-modify-write holds it end to end.
	mu sync.Mutex
}

// NewRepository returns a repository for the ledger at path.
func NewRepository(path string, fsys safeio.FileSystem) *Repository {
	if fsys == nil {
		fsys = safeio.NewOS()
	}
	return &Repository{path: path, fsys: fsys, now: time.Now}
}

// Path returns the ledger file location.
func (r *Repository) Path() string { return r.path }

// Read loads the ledger. A missing file is an empty ledger; anything that
// fails to parse or validate is ErrLedgerCorrupt.
func (r *Repository) Read(ctx context.Context) (*Ledger, error) {
	data, err := r.fsys.ReadFile(ctx, r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, err
	}
	return Decode(data, r.path)
}

// Decode parses ledger bytes; path is used in error messages only.
func Decode(data []byte, path string) (*Ledger, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, guideerr.LedgerCorrupt(path, "file is empty", nil)
	}
	res, err := schema.ValidateBytes(data, assets.LedgerSchema)
	if err != nil {
		return nil, guideerr.LedgerCorrupt(path, "malformed JSON", err)
	}
	if !res.Valid {
		return nil, guideerr.LedgerCorrupt(path, "schema violation: "+res.Summary(), nil)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var l Ledger
	if err := dec.Decode(&l); err != nil {
		return nil, guideerr.LedgerCorrupt(path, "decode", err)
	}
	if l.Frameworks == nil {
		l.Frameworks = map[string]Record{}
	}
	for id, rec := range l.Frameworks {
		if rec.FrameworkID != id {
			return nil, guideerr.LedgerCorrupt(path,
				fmt.Sprintf("entry %q records frameworkId %q", id, rec.FrameworkID), nil)
		}
	}
	return &l, nil
}

// Encode renders the ledger as indented JSON with a trailing newline.
func Encode(l *Ledger) ([]byte, error) {
	if l.SchemaVersion == "" {
		l.SchemaVersion = SchemaVersion
	}
	if l.Frameworks == nil {
		l.Frameworks = map[string]Record{}
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write replaces the ledger file with l.
func (r *Repository) Write(ctx context.Context, l *Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(ctx, l)
}

func (r *Repository) write(ctx context.Context, l *Ledger) error {
	data, err := Encode(l)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	// Refuse to persist something Read would later reject.
	if _, err := Decode(data, r.path); err != nil {
		return err
	}
	return r.fsys.WriteFile(ctx, r.path, data)
}

// Update runs fn against the current ledger and persists the result, holding
// the write queue for the whole cycle. If fn returns an error nothing is written.
func (r *Repository) Update(ctx context.Context, fn func(*Ledger) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.Read(ctx)
	if err != nil {
		return err
	}
	if err := fn(l); err != nil {
		return err
	}
	return r.write(ctx, l)
}

// Upsert stores rec, replacing any existing record for the same framework.
func (r *Repository) Upsert(ctx context.Context, rec Record) error {
	if rec.FrameworkID == "" {
		return errors.New("ledger: record without frameworkId")
	}
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = r.now().UTC().Truncate(time.Second)
	}
	return r.Update(ctx, func(l *Ledger) error {
		l.Put(rec)
		return nil
	})
}

// Remove deletes the record for id. ErrNotInstalled when there is none.
func (r *Repository) Remove(ctx context.Context, id string) error {
	return r.Update(ctx, func(l *Ledger) error {
		if !l.Delete(id) {
			return guideerr.NotInstalled(id)
		}
		return nil
	})
}

// Get returns the record for id, or ErrNotInstalled.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	l, err := r.Read(ctx)
	if err != nil {
		return Record{}, err
	}
	rec, ok := l.Get(id)
	if !ok {
		return Record{}, guideerr.NotInstalled(id)
	}
	return rec, nil
}

// List returns all records sorted by id.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	l, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	return l.Records(), nil
}

// Quarantine moves a corrupt ledger aside so a fresh one can be started. It
// refuses when the ledger is missing or healthy. The returned path is where the
// corrupt file now lives.
func (r *Repository) Quarantine(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.Read(ctx)
	switch {
	case err == nil:
		return "", fmt.Errorf("ledger %s is readable; nothing to quarantine", r.path)
	case !errors.Is(err, guideerr.ErrLedgerCorrupt):
		return "", err
	}

	dst := fmt.Sprintf("%s.corrupt-%s", r.path, r.now().UTC().Format("20060102T150405Z"))
	if err := r.fsys.CopyFile(ctx, r.path, dst); err != nil {
		return "", err
	}
	if err := r.fsys.DeleteFile(ctx, r.path); err != nil {
		return "", err
	}
	logger.Warn("corrupt ledger quarantined; install history recorded in it is no longer tracked",
		logger.String("ledger", r.path),
		logger.String("quarantined_to", filepath.Base(dst)))
	return dst, nil
}
