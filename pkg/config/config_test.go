package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config directory at an empty temp dir so the
// developer's own settings never leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GUIDEKIT_CONFIG_HOME", filepath.Join(dir, "user"))
	return dir
}

func write(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(LoadOptions{WorkDir: dir})
	require.NoError(t, err)
	assert.Empty(t, cfg.Files)
	assert.Equal(t, ".", cfg.Workspace)
	assert.Equal(t, "", cfg.Catalog.Dir)
	assert.Equal(t, ".guidekit", cfg.Paths.MetadataDir)
	assert.Equal(t, "docs/frameworks", cfg.Paths.DocsDir)
	assert.Equal(t, "installed.json", cfg.Paths.LedgerFile)
	assert.Equal(t, 2, cfg.Search.ContextLines)
	assert.Equal(t, 256, cfg.Search.MaxQueryLength)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Equal(t, 2<<20, cfg.Search.MaxScanBytes)
	assert.Equal(t, []string{"Purpose", "Key Concepts", "Best Practices", "Summary"}, cfg.Validation.RequiredSections)
	assert.False(t, cfg.Install.Validate)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	write(t, filepath.Join(dir, "user", "config.yaml"), `
search:
  max_results: 10
  context_lines: 5
log:
  level: debug
`)
	write(t, filepath.Join(dir, "guidekit.yaml"), `
search:
  max_results: 20
paths:
  docs_dir: guides
validation:
  required_sections: [Purpose, Summary]
`)
	t.Setenv("GUIDEKIT_SEARCH_MAX_RESULTS", "30")
	t.Setenv("GUIDEKIT_INSTALL_VALIDATE", "true")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("docs-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "warn"}))

	cfg, err := Load(LoadOptions{WorkDir: dir, Flags: flags})
	require.NoError(t, err)
	assert.Len(t, cfg.Files, 2)

	assert.Equal(t, 5, cfg.Search.ContextLines, "user file")
	assert.Equal(t, "guides", cfg.Paths.DocsDir, "project file; unchanged flag does not override")
	assert.Equal(t, []string{"Purpose", "Summary"}, cfg.Validation.RequiredSections)
	assert.Equal(t, 30, cfg.Search.MaxResults, "env beats files")
	assert.True(t, cfg.Install.Validate)
	assert.Equal(t, "warn", cfg.Log.Level, "changed flag beats everything")
}

func TestLoad_FirstProjectFileWins(t *testing.T) {
	dir := isolate(t)
	write(t, filepath.Join(dir, "guidekit.yml"), "workspace: first\n")
	write(t, filepath.Join(dir, ".guidekit.yaml"), "workspace: second\n")

	cfg, err := Load(LoadOptions{WorkDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.Workspace)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := isolate(t)
	p := filepath.Join(dir, "elsewhere.yaml")
	write(t, p, "catalog:\n  dir: /srv/catalog\n")

	cfg, err := Load(LoadOptions{File: p, WorkDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "/srv/catalog", cfg.Catalog.Dir)
	assert.Equal(t, []string{p}, cfg.Files)

	_, err = Load(LoadOptions{File: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := isolate(t)
	write(t, filepath.Join(dir, "guidekit.yaml"), "search: [unterminated\n")

	_, err := Load(LoadOptions{WorkDir: dir})
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	dir := isolate(t)
	write(t, filepath.Join(dir, "guidekit.yaml"), "search:\n  max_results: 0\n  max_query_length: -1\n")

	_, err := Load(LoadOptions{WorkDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.max_results")
	assert.Contains(t, err.Error(), "search.max_query_length")
}

func TestDefaultIsACopy(t *testing.T) {
	a := Default()
	a.Validation.RequiredSections[0] = "changed"
	assert.Equal(t, "Purpose", Default().Validation.RequiredSections[0])
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("GUIDEKIT_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/someone")
	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/someone", ".config", "guidekit"), dir)

	t.Setenv("GUIDEKIT_CONFIG_HOME", "/etc/guidekit")
	dir, err = GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/etc/guidekit", dir)
}
