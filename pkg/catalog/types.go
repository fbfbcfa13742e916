package catalog

import (
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fulmenhq/guidekit/pkg/versioning"
)

// Category groups descriptors for presentation.
type Category string

const (
	CategoryStrategy      Category = "strategy"
	CategoryMethodology   Category = "methodology"
	CategoryArchitecture  Category = "architecture"
	CategoryQuality       Category = "quality"
	CategoryProcess       Category = "process"
	CategoryDocumentation Category = "documentation"
)

// Categories lists the known categories in display order.
var Categories = []Category{
	CategoryStrategy, CategoryMethodology, CategoryArchitecture,
	CategoryQuality, CategoryProcess, CategoryDocumentation,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// DisplayName returns the title-cased category name.
func (c Category) DisplayName() string {
	return cases.Title(language.English).String(string(c))
}

// Descriptor is catalog metadata for one guidance document. Values handed out
// by a Catalog are copies; the catalog's own descriptors never change after load.
type Descriptor struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description" yaml:"description"`
	Category     Category          `json:"category" yaml:"category"`
	Version      string            `json:"version" yaml:"version"`
	FileName     string            `json:"fileName" yaml:"fileName"`
	Dependencies []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Tags         []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Changelog    map[string]string `json:"changelog,omitempty" yaml:"changelog,omitempty"`
}

func (d Descriptor) clone() Descriptor {
	cp := d
	cp.Dependencies = append([]string(nil), d.Dependencies...)
	cp.Tags = append([]string(nil), d.Tags...)
	if d.Changelog != nil {
		cp.Changelog = make(map[string]string, len(d.Changelog))
		for k, v := range d.Changelog {
			cp.Changelog[k] = v
		}
	}
	return cp
}

// ChangeNote is one changelog line.
type ChangeNote struct {
	Version string `json:"version" yaml:"version"`
	Note    string `json:"note" yaml:"note"`
}

// ChangesBetween returns changelog notes for versions v with from < v <= to,
// oldest first.
func (d Descriptor) ChangesBetween(from, to string) []ChangeNote {
	var versions []string
	for v := range d.Changelog {
		if versioning.InRange(v, from, to) {
			versions = append(versions, v)
		}
	}
	versioning.Sort(versions)
	notes := make([]ChangeNote, 0, len(versions))
	for _, v := range versions {
		notes = append(notes, ChangeNote{Version: v, Note: d.Changelog[v]})
	}
	return notes
}

// Manifest is the parsed catalog manifest.
type Manifest struct {
	Schema     string       `json:"$schema,omitempty"`
	Version    string       `json:"version"`
	Frameworks []Descriptor `json:"frameworks"`
}

// IDs returns descriptor ids in manifest order.
func (m *Manifest) IDs() []string {
	ids := make([]string, 0, len(m.Frameworks))
	for _, d := range m.Frameworks {
		ids = append(ids, d.ID)
	}
	return ids
}

// VerifyReport describes drift between the manifest and the documents a
// source actually holds.
type VerifyReport struct {
	OK       bool     `json:"ok" yaml:"ok"`
	Expected int      `json:"expected" yaml:"expected"`
	Missing  []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Extra    []string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
