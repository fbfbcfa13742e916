package assets

import (
	"embed"
	"io/fs"
)

// Default framework catalog: manifest.json plus one markdown document per descriptor.
//
//go:embed embedded_catalog
var Catalog embed.FS

//go:embed embedded_schemas
var Schemas embed.FS

// CatalogManifestPath is the manifest location inside GetCatalogFS.
const CatalogManifestPath = "manifest.json"

// CatalogDocumentsDir holds canonical document bodies inside GetCatalogFS.
const CatalogDocumentsDir = "frameworks"

func GetCatalogFS() fs.FS {
	if sub, err := fs.Sub(Catalog, "embedded_catalog"); err == nil {
		return sub
	}
	return Catalog
}

func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(Schemas, "embedded_schemas"); err == nil {
		return sub
	}
	return Schemas
}
