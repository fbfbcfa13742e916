// Package catalog loads the framework manifest and serves descriptors and
// canonical document content.
//
// The manifest is untrusted input. Parse rejects anything that does not match
// the embedded JSON Schema exactly (unknown fields included), then checks what
// a schema cannot express: unique ids and file names, valid semantic versions,
// and an acyclic dependency graph whose edges all resolve.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/guidekit/internal/assets"
	"github.com/fulmenhq/guidekit/internal/schema"
	"github.com/fulmenhq/guidekit/pkg/guideerr"
	"github.com/fulmenhq/guidekit/pkg/logger"
	"github.com/fulmenhq/guidekit/pkg/safeio"
	"github.com/fulmenhq/guidekit/pkg/versioning"
)

// Catalog is a loaded, validated manifest bound to its content source.
type Catalog struct {
	source   Source
	manifest *Manifest
	byID     map[string]int
}

// Load reads and parses the manifest from src.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	data, err := src.ReadManifest(ctx)
	if err != nil {
		return nil, readManifestErr(src.Location(), err)
	}
	mf, err := Parse(data, src.Location())
	if err != nil {
		return nil, err
	}
	c := &Catalog{source: src, manifest: mf, byID: make(map[string]int, len(mf.Frameworks))}
	for i, d := range mf.Frameworks {
		c.byID[d.ID] = i
	}
	logger.Debug("catalog loaded",
		logger.String("source", src.Location()),
		logger.Int("frameworks", len(mf.Frameworks)))
	return c, nil
}

// Parse validates and decodes manifest bytes. Every failure is ErrManifestCorrupt.
func Parse(data []byte, location string) (*Manifest, error) {
	res, err := schema.ValidateBytes(data, assets.ManifestSchema)
	if err != nil {
		return nil, guideerr.ManifestCorrupt(location, "malformed JSON", err)
	}
	if !res.Valid {
		return nil, guideerr.ManifestCorrupt(location, "schema violation: "+res.Summary(), nil)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var mf Manifest
	if err := dec.Decode(&mf); err != nil {
		return nil, guideerr.ManifestCorrupt(location, "decode", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, guideerr.ManifestCorrupt(location, "trailing data after manifest object", nil)
	}

	if err := checkSemantics(&mf); err != nil {
		return nil, guideerr.ManifestCorrupt(location, err.Error(), nil)
	}
	return &mf, nil
}

func checkSemantics(mf *Manifest) error {
	ids := make(map[string]struct{}, len(mf.Frameworks))
	files := make(map[string]string, len(mf.Frameworks))
	for i, d := range mf.Frameworks {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("frameworks[%d]: id and name are required", i)
		}
		if _, dup := ids[d.ID]; dup {
			return fmt.Errorf("duplicate framework id %q", d.ID)
		}
		ids[d.ID] = struct{}{}
		if !versioning.Valid(d.Version) {
			return fmt.Errorf("framework %s: invalid version %q", d.ID, d.Version)
		}
		if !d.Category.Valid() {
			return fmt.Errorf("framework %s: unknown category %q", d.ID, d.Category)
		}
		if !safeio.ValidFileName(d.FileName) || !strings.HasSuffix(d.FileName, ".md") {
			return fmt.Errorf("framework %s: invalid fileName %q", d.ID, d.FileName)
		}
		if other, dup := files[d.FileName]; dup {
			return fmt.Errorf("frameworks %s and %s share fileName %q", other, d.ID, d.FileName)
		}
		files[d.FileName] = d.ID
		for v := range d.Changelog {
			if !versioning.Valid(v) {
				return fmt.Errorf("framework %s: changelog key %q is not a version", d.ID, v)
			}
		}
	}
	for _, d := range mf.Frameworks {
		for _, dep := range d.Dependencies {
			if dep == d.ID {
				return fmt.Errorf("framework %s depends on itself", d.ID)
			}
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("framework %s: unknown dependency %q", d.ID, dep)
			}
		}
	}
	g := newGraph(mf.Frameworks)
	for _, d := range mf.Frameworks {
		if _, err := g.order(d.ID); err != nil {
			return err
		}
	}
	return nil
}

// ManifestVersion returns the manifest's own version string.
func (c *Catalog) ManifestVersion() string { return c.manifest.Version }

// Location names where the catalog was loaded from.
func (c *Catalog) Location() string { return c.source.Location() }

// Revision identifies the source content (git commit), empty when unknown.
func (c *Catalog) Revision(ctx context.Context) string { return c.source.Revision(ctx) }

// Descriptors returns copies of all descriptors in manifest order.
func (c *Catalog) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(c.manifest.Frameworks))
	for _, d := range c.manifest.Frameworks {
		out = append(out, d.clone())
	}
	return out
}

// Descriptor returns the descriptor with the given id or ErrNotFound.
func (c *Catalog) Descriptor(id string) (Descriptor, error) {
	i, ok := c.byID[id]
	if !ok {
		return Descriptor{}, guideerr.NotFound(id)
	}
	return c.manifest.Frameworks[i].clone(), nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Content returns the canonical document body for the descriptor's current version.
func (c *Catalog) Content(ctx context.Context, id string) ([]byte, error) {
	d, err := c.Descriptor(id)
	if err != nil {
		return nil, err
	}
	data, err := c.source.ReadDocument(ctx, d.FileName)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, guideerr.New(guideerr.ErrIOFailure, id, c.source.Location()+"/"+d.FileName, "read canonical content", err)
	}
	return data, nil
}

// DependencyOrder returns id's transitive dependencies followed by id itself,
// each dependency before anything that needs it.
func (c *Catalog) DependencyOrder(id string) ([]string, error) {
	if !c.Has(id) {
		return nil, guideerr.NotFound(id)
	}
	return newGraph(c.manifest.Frameworks).order(id)
}

// Verify compares the manifest against the documents the source holds.
func (c *Catalog) Verify(ctx context.Context) (*VerifyReport, error) {
	names, err := c.source.ListDocuments(ctx)
	if err != nil {
		return nil, guideerr.New(guideerr.ErrIOFailure, "", c.source.Location(), "list documents", err)
	}
	present := make(map[string]struct{}, len(names))
	for _, n := range names {
		present[n] = struct{}{}
	}
	missing := make(map[string]struct{})
	for _, d := range c.manifest.Frameworks {
		if _, ok := present[d.FileName]; !ok {
			missing[d.FileName] = struct{}{}
		}
		delete(present, d.FileName)
	}
	report := &VerifyReport{
		Expected: len(c.manifest.Frameworks),
		Missing:  sortedKeys(missing),
		Extra:    sortedKeys(present),
	}
	report.OK = len(report.Missing) == 0 && len(report.Extra) == 0
	return report, nil
}

type graph struct {
	deps map[string][]string
}

func newGraph(ds []Descriptor) *graph {
	g := &graph{deps: make(map[string][]string, len(ds))}
	for _, d := range ds {
		g.deps[d.ID] = d.Dependencies
	}
	return g
}

// order is a depth-first topological sort rooted at id; a back edge is a cycle.
func (g *graph) order(id string) ([]string, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var out []string
	var visit func(n string, trail []string) error
	visit = func(n string, trail []string) error {
		switch state[n] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle: %s -> %s", strings.Join(trail, " -> "), n)
		}
		state[n] = visiting
		for _, dep := range g.deps[n] {
			if err := visit(dep, append(trail, n)); err != nil {
				return err
			}
		}
		state[n] = done
		out = append(out, n)
		return nil
	}
	if err := visit(id, nil); err != nil {
		return nil, err
	}
	return out, nil
}
