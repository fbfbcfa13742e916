// Package config resolves guidekit settings from defaults, config files, the
// environment and command-line flags, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fulmenhq/guidekit/pkg/validation"
)

// EnvPrefix prefixes every environment override, e.g. GUIDEKIT_SEARCH_MAX_RESULTS.
const EnvPrefix = "GUIDEKIT"

// Config holds all configuration for guidekit
type Config struct {
	Workspace  string           `mapstructure:"workspace"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Search     SearchConfig     `mapstructure:"search"`
	Validation ValidationConfig `mapstructure:"validation"`
	Install    InstallConfig    `mapstructure:"install"`
	Log        LogConfig        `mapstructure:"log"`
}

// CatalogConfig selects the catalog source. An empty Dir uses the catalog
// compiled into the binary.
type CatalogConfig struct {
	Dir string `mapstructure:"dir"`
}

// PathsConfig places metadata and documents inside the workspace
type PathsConfig struct {
	MetadataDir string `mapstructure:"metadata_dir"`
	DocsDir     string `mapstructure:"docs_dir"`
	LedgerFile  string `mapstructure:"ledger_file"`
}

// SearchConfig holds search limits
type SearchConfig struct {
	ContextLines   int `mapstructure:"context_lines"` // negative disables context
	MaxQueryLength int `mapstructure:"max_query_length"`
	MaxResults     int `mapstructure:"max_results"`
	MaxScanBytes   int `mapstructure:"max_scan_bytes"`
}

// ValidationConfig holds validator settings
type ValidationConfig struct {
	RequiredSections []string `mapstructure:"required_sections"`
	DisabledRules    []string `mapstructure:"disabled_rules"`
}

// InstallConfig holds install defaults
type InstallConfig struct {
	Validate bool `mapstructure:"validate"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

var defaultConfig = Config{
	Workspace: ".",
	Paths: PathsConfig{
		MetadataDir: ".guidekit",
		DocsDir:     "docs/frameworks",
		LedgerFile:  "installed.json",
	},
	Search: SearchConfig{
		ContextLines:   2,
		MaxQueryLength: 256,
		MaxResults:     100,
		MaxScanBytes:   2 << 20,
	},
	Validation: ValidationConfig{
		RequiredSections: validation.DefaultRequiredSections,
		DisabledRules:    []string{},
	},
	Log: LogConfig{Level: "info"},
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	cfg.Validation.RequiredSections = append([]string(nil), defaultConfig.Validation.RequiredSections...)
	cfg.Validation.DisabledRules = []string{}
	return &cfg
}

// projectConfigs are looked up, in order, in the working directory. The first
// one found is used.
var projectConfigs = []string{
	"guidekit.yaml",
	"guidekit.yml",
	".guidekit.yaml",
	".guidekit.yml",
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"workspace":    "workspace",
	"catalog":      "catalog.dir",
	"metadata-dir": "paths.metadata_dir",
	"docs-dir":     "paths.docs_dir",
	"ledger-file":  "paths.ledger_file",
	"log-level":    "log.level",
	"json":         "log.json",
	"context":      "search.context_lines",
	"max-results":  "search.max_results",
	"validate":     "install.validate",
}

// LoadOptions steer Load. Zero values mean: look in the current directory, the
// user config directory, and bind no flags.
type LoadOptions struct {
	// File, when set, replaces the project config lookup and must exist.
	File string
	// WorkDir is where project configs are looked up.
	WorkDir string
	// Flags are bound by name through flagKeys; only changed flags override.
	Flags *pflag.FlagSet
}

// Loaded is a resolved configuration plus the files that contributed to it.
type Loaded struct {
	*Config
	Files []string
}

// Load resolves the configuration.
func Load(opts LoadOptions) (*Loaded, error) {
	v := viper.New()
	setDefaults(v)

	var files []string
	if dir, err := GetConfigDir(); err == nil {
		p := filepath.Join(dir, "config.yaml")
		ok, err := mergeFile(v, p, false)
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, p)
		}
	}

	if opts.File != "" {
		if _, err := mergeFile(v, opts.File, true); err != nil {
			return nil, err
		}
		files = append(files, opts.File)
	} else {
		wd := opts.WorkDir
		if wd == "" {
			wd = "."
		}
		for _, name := range projectConfigs {
			p := filepath.Join(wd, name)
			ok, err := mergeFile(v, p, false)
			if err != nil {
				return nil, err
			}
			if ok {
				files = append(files, p)
				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loaded{Config: &cfg, Files: files}, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("workspace", d.Workspace)
	v.SetDefault("catalog.dir", d.Catalog.Dir)
	v.SetDefault("paths.metadata_dir", d.Paths.MetadataDir)
	v.SetDefault("paths.docs_dir", d.Paths.DocsDir)
	v.SetDefault("paths.ledger_file", d.Paths.LedgerFile)
	v.SetDefault("search.context_lines", d.Search.ContextLines)
	v.SetDefault("search.max_query_length", d.Search.MaxQueryLength)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.max_scan_bytes", d.Search.MaxScanBytes)
	v.SetDefault("validation.required_sections", d.Validation.RequiredSections)
	v.SetDefault("validation.disabled_rules", d.Validation.DisabledRules)
	v.SetDefault("install.validate", d.Install.Validate)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
}

// mergeFile merges the YAML file at p into v. A missing file is reported as
// not merged unless required is set.
func mergeFile(v *viper.Viper, p string, required bool) (bool, error) {
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return false, nil
		}
		return false, fmt.Errorf("config file %s: %w", p, err)
	}
	v.SetConfigFile(p)
	if ext := strings.TrimPrefix(filepath.Ext(p), "."); ext == "" {
		v.SetConfigType("yaml")
	}
	if err := v.MergeInConfig(); err != nil {
		return false, fmt.Errorf("read config file %s: %w", p, err)
	}
	return true, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Search.MaxQueryLength <= 0 {
		errs = append(errs, fmt.Errorf("search.max_query_length must be positive, got %d", c.Search.MaxQueryLength))
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults))
	}
	if c.Search.MaxScanBytes <= 0 {
		errs = append(errs, fmt.Errorf("search.max_scan_bytes must be positive, got %d", c.Search.MaxScanBytes))
	}
	if c.Paths.LedgerFile == "" {
		errs = append(errs, errors.New("paths.ledger_file must not be empty"))
	}
	for _, s := range c.Validation.RequiredSections {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, errors.New("validation.required_sections contains an empty entry"))
			break
		}
	}
	return errors.Join(errs...)
}

// GetConfigDir returns the user configuration directory. GUIDEKIT_CONFIG_HOME
// overrides the default of ~/.config/guidekit.
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "_CONFIG_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "guidekit"), nil
}
