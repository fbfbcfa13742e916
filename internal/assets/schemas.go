package assets

import (
	"encoding/json"
	"io/fs"
	"sort"
	"strings"
)

// SchemaInfo holds schema metadata.
type SchemaInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Draft string `json:"draft"`
}

// Schema names used by the loaders.
const (
	ManifestSchema = "manifest-v1.0.0"
	LedgerSchema   = "ledger-v1.0.0"
)

var knownSchemas = map[string]string{
	ManifestSchema: "schemas/v1.0.0/manifest.json",
	LedgerSchema:   "schemas/v1.0.0/ledger.json",
}

// GetSchema returns the embedded schema bytes by name (e.g. "manifest-v1.0.0").
func GetSchema(name string) ([]byte, bool) {
	path, ok := knownSchemas[name]
	if !ok {
		return nil, false
	}
	data, err := fs.ReadFile(GetSchemasFS(), path)
	return data, err == nil && len(data) > 0
}

// GetSchemaNames returns the available schemas with their detected draft, sorted by name.
func GetSchemaNames() []SchemaInfo {
	var infos []SchemaInfo
	for name, path := range knownSchemas {
		if data, ok := GetSchema(name); ok {
			infos = append(infos, SchemaInfo{Name: name, Path: path, Draft: detectDraft(data)})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// detectDraft heuristically detects draft from schema bytes via $schema key.
func detectDraft(data []byte) string {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "Unknown"
	}
	if v, ok := doc["$schema"].(string); ok {
		switch {
		case strings.Contains(v, "draft-07"):
			return "Draft-07"
		case strings.Contains(v, "2020-12"):
			return "Draft-2020-12"
		}
	}
	return "Unknown"
}
