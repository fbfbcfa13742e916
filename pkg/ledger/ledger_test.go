package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/guidekit/pkg/guideerr"
)

const testHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

func newRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(filepath.Join(t.TempDir(), ".guidekit", "installed.json"), nil)
}

func record(id, version string) Record {
	return Record{
		FrameworkID: id,
		Version:     version,
		InstalledAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ContentHash: testHash,
		FileName:    id + ".md",
	}
}

func TestRead_MissingFileIsEmpty(t *testing.T) {
	r := newRepo(t)
	l, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, l.SchemaVersion)
	assert.Empty(t, l.Frameworks)

	_, err = os.Stat(r.Path())
	assert.True(t, os.IsNotExist(err), "reading must not create the ledger")
}

func TestUpsertGetRemove(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	require.NoError(t, r.Upsert(ctx, record("beta", "1.0.0")))
	require.NoError(t, r.Upsert(ctx, record("alpha", "1.0.0")))

	rec, err := r.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", rec.Version)
	assert.Equal(t, testHash, rec.ContentHash)

	upd := record("alpha", "1.1.0")
	upd.Customized = true
	require.NoError(t, r.Upsert(ctx, upd))
	rec, err = r.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", rec.Version)
	assert.True(t, rec.Customized)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].FrameworkID)
	assert.Equal(t, "beta", list[1].FrameworkID)

	require.NoError(t, r.Remove(ctx, "beta"))
	_, err = r.Get(ctx, "beta")
	assert.ErrorIs(t, err, guideerr.ErrNotInstalled)
	assert.ErrorIs(t, r.Remove(ctx, "beta"), guideerr.ErrNotInstalled)
}

func TestUpsert_DefaultsInstalledAt(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	rec := record("alpha", "1.0.0")
	rec.InstalledAt = time.Time{}
	require.NoError(t, r.Upsert(ctx, rec))

	got, err := r.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, got.InstalledAt.Equal(fixed))
}

func TestUpdate_ErrorLeavesFileUntouched(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	require.NoError(t, r.Upsert(ctx, record("alpha", "1.0.0")))
	before, err := os.ReadFile(r.Path())
	require.NoError(t, err)

	err = r.Update(ctx, func(l *Ledger) error {
		l.Delete("alpha")
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	after, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConcurrentUpsertsAreSerialized(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	const n = 24
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- r.Upsert(ctx, record(fmt.Sprintf("fw-%02d", i), "1.0.0"))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n, "a lost update means reads and writes interleaved")
}

func TestRead_CorruptLedgerPropagates(t *testing.T) {
	tests := map[string]string{
		"truncated":        `{"schemaVersion": "1.0.0", "frameworks": {`,
		"empty":            "",
		"wrong schema":     `{"schemaVersion": "9.9.9", "frameworks": {}}`,
		"unknown field":    `{"schemaVersion": "1.0.0", "frameworks": {}, "legacy": []}`,
		"bad hash":         `{"schemaVersion": "1.0.0", "frameworks": {"a": {"frameworkId": "a", "version": "1.0.0", "installedAt": "2026-01-01T00:00:00Z", "customized": false, "contentHash": "md5:x"}}}`,
		"key/id mismatch":  `{"schemaVersion": "1.0.0", "frameworks": {"a": {"frameworkId": "b", "version": "1.0.0", "installedAt": "2026-01-01T00:00:00Z", "customized": false, "contentHash": "` + testHash + `"}}}`,
		"missing required": `{"schemaVersion": "1.0.0", "frameworks": {"a": {"frameworkId": "a"}}}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(r.Path()), 0o755))
			require.NoError(t, os.WriteFile(r.Path(), []byte(content), 0o644))

			_, err := r.Read(ctx)
			assert.ErrorIs(t, err, guideerr.ErrLedgerCorrupt)

			err = r.Upsert(ctx, record("alpha", "1.0.0"))
			assert.ErrorIs(t, err, guideerr.ErrLedgerCorrupt, "upsert must not paper over corruption")

			data, err := os.ReadFile(r.Path())
			require.NoError(t, err)
			assert.Equal(t, content, string(data), "corrupt ledger must not be rewritten")
		})
	}
}

func TestQuarantine(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	r.now = func() time.Time { return time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC) }

	_, err := r.Quarantine(ctx)
	require.Error(t, err, "missing ledger is not corrupt")

	require.NoError(t, r.Upsert(ctx, record("alpha", "1.0.0")))
	_, err = r.Quarantine(ctx)
	require.Error(t, err, "healthy ledger must not be quarantined")

	require.NoError(t, os.WriteFile(r.Path(), []byte("{not json"), 0o644))
	dst, err := r.Quarantine(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dst, "installed.json.corrupt-20261015T083000Z"), dst)

	moved, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(moved))

	l, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, l.Frameworks)
}

func TestEncodeDecode(t *testing.T) {
	l := New()
	l.Put(record("alpha", "1.0.0"))
	data, err := Encode(l)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))
	assert.Contains(t, string(data), `"frameworkId": "alpha"`)

	back, err := Decode(data, "mem")
	require.NoError(t, err)
	assert.Equal(t, l.Frameworks["alpha"].ContentHash, back.Frameworks["alpha"].ContentHash)
	assert.True(t, back.Frameworks["alpha"].InstalledAt.Equal(l.Frameworks["alpha"].InstalledAt))
}

func TestWrite_RejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	l := New()
	bad := record("alpha", "1.0.0")
	bad.ContentHash = "not-a-hash"
	l.Put(bad)

	assert.ErrorIs(t, r.Write(ctx, l), guideerr.ErrLedgerCorrupt)
	_, err := os.Stat(r.Path())
	assert.True(t, os.IsNotExist(err))
}
