/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fulmenhq/guidekit/pkg/buildinfo"
	"github.com/fulmenhq/guidekit/pkg/catalog"
	"github.com/fulmenhq/guidekit/pkg/config"
	"github.com/fulmenhq/guidekit/pkg/exitcode"
	"github.com/fulmenhq/guidekit/pkg/lifecycle"
	"github.com/fulmenhq/guidekit/pkg/logger"
	"github.com/fulmenhq/guidekit/pkg/search"
	"github.com/fulmenhq/guidekit/pkg/validation"
)

// app is the state shared by one command tree: resolved configuration and
// output settings. Each tree gets its own, so tests never share flags.
type app struct {
	cfg     *config.Loaded
	format  outputFormat
	noColor bool
}

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "guidekit",
		Short: "Install and maintain guidance documents in a workspace",
		Long: `Guidekit installs methodology and architecture guidance documents from a
catalog into a workspace, tracks what was installed in a ledger, and keeps local
edits safe across updates.

Examples:
   guidekit list                       # Show the catalog
   guidekit install tdd-bdd-strategy   # Install a document
   guidekit check                      # List available updates
   guidekit update --decision backup-and-update
   guidekit search "red green"         # Search descriptors and installed content`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringP("workspace", "w", ".", "Workspace root")
	pf.String("catalog", "", "Catalog directory (default: built-in catalog)")
	pf.String("config", "", "Config file (default: guidekit.yaml in the working directory)")
	pf.String("metadata-dir", "", "Metadata directory, relative to the workspace")
	pf.String("docs-dir", "", "Documents directory, relative to the workspace")
	pf.String("ledger-file", "", "Ledger file name inside the metadata directory")
	pf.String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	pf.Bool("json", false, "Output logs in JSON format")
	pf.Bool("no-color", false, "Disable colored output")
	pf.StringP("format", "o", "pretty", "Output format (pretty|json|yaml)")

	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("guidekit {{.Version}}\n")

	registerSubcommands(cmd, a)
	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command, a *app) {
	cmd.AddCommand(
		newVersionCommand(a),
		newListCommand(a),
		newInstalledCommand(a),
		newInstallCommand(a),
		newUninstallCommand(a),
		newCheckCommand(a),
		newUpdateCommand(a),
		newSearchCommand(a),
		newValidateCommand(a),
		newStatusCommand(a),
		newScanCommand(a),
		newLedgerCommand(a),
		newRecoverCommand(a),
		newCatalogCommand(a),
	)
}

// Execute runs the CLI and returns the process exit code.
// This is called by main.main().
func Execute() int {
	return run(context.Background(), newRootCommand(), os.Args[1:])
}

func run(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitcode.Success
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			logger.Error(ee.err.Error())
		}
		return ee.code
	}
	logger.Error("Command execution failed", logger.Err(err))
	return exitcode.FromError(err)
}

// exitError carries an explicit exit code out of a command, for outcomes
// that are not engine errors (a document failing validation, say).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return exitcode.String(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func (a *app) setup(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	wd, err := os.Getwd()
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	loaded, err := config.Load(config.LoadOptions{File: cfgFile, WorkDir: wd, Flags: cmd.Flags()})
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	a.cfg = loaded

	formatStr, _ := cmd.Flags().GetString("format")
	a.format, err = parseOutputFormat(formatStr)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	a.noColor, _ = cmd.Flags().GetBool("no-color")
	if a.noColor {
		color.NoColor = true
	}

	if err := initializeLogger(cmd, loaded.Config, a.noColor); err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	for _, f := range loaded.Files {
		logger.Debug("config file loaded", logger.String("path", f))
	}
	return nil
}

// initializeLogger sets up the logger from the resolved configuration.
func initializeLogger(cmd *cobra.Command, cfg *config.Config, noColor bool) error {
	return logger.Initialize(logger.Config{
		Level:     logger.ParseLevel(cfg.Log.Level),
		UseColor:  !noColor,
		JSON:      cfg.Log.JSON,
		Component: "guidekit",
		Output:    cmd.ErrOrStderr(),
	})
}

// manager builds the lifecycle manager for the configured workspace.
func (a *app) manager(ctx context.Context) (*lifecycle.Manager, error) {
	cfg := a.cfg.Config
	layout, err := lifecycle.NewLayout(cfg.Workspace, cfg.Paths.MetadataDir, cfg.Paths.DocsDir, cfg.Paths.LedgerFile)
	if err != nil {
		return nil, &exitError{code: exitcode.ConfigError, err: err}
	}
	cat, err := a.catalog(ctx)
	if err != nil {
		return nil, err
	}
	validator, err := a.validator()
	if err != nil {
		return nil, err
	}
	return lifecycle.New(lifecycle.Config{
		Layout:    layout,
		Catalog:   cat,
		Validator: validator,
		Search: search.Options{
			ContextLines:   cfg.Search.ContextLines,
			MaxQueryLength: cfg.Search.MaxQueryLength,
			MaxResults:     cfg.Search.MaxResults,
			MaxScanBytes:   cfg.Search.MaxScanBytes,
		},
	})
}

func (a *app) catalog(ctx context.Context) (*catalog.Catalog, error) {
	var src catalog.Source = catalog.NewEmbeddedSource()
	if dir := a.cfg.Catalog.Dir; dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, &exitError{code: exitcode.ConfigError, err: fmt.Errorf("catalog dir: %w", err)}
		}
		src = catalog.NewDirSource(abs, nil)
	}
	return catalog.Load(ctx, src)
}

func (a *app) validator() (*validation.Validator, error) {
	v, err := validation.New(validation.Options{
		RequiredSections: a.cfg.Validation.RequiredSections,
		DisabledRules:    a.cfg.Validation.DisabledRules,
	})
	if err != nil {
		return nil, &exitError{code: exitcode.ConfigError, err: err}
	}
	return v, nil
}
