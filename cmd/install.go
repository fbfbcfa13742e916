/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/guidekit/pkg/lifecycle"
	"github.com/fulmenhq/guidekit/pkg/logger"
)

type installReport struct {
	Installed []lifecycle.InstallOutcome `json:"installed" yaml:"installed"`
	Failed    []lifecycle.ItemFailure    `json:"failed" yaml:"failed"`
}

func newInstallCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <id>...",
		Short: "Install frameworks from the catalog into the workspace",
		Long: `Install copies the canonical document for each id into the docs directory and
records it in the ledger. When a file with different content already exists the
install stops with a conflict; rerun with --resolution to choose what happens:

  overwrite      replace the file with the canonical document
  merge          canonical document plus your extra lines under "## Local Customizations"
  keep-existing  keep your file and record it as customized
  cancel         do nothing`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resStr, _ := cmd.Flags().GetString("resolution")
			res, err := lifecycle.ParseResolution(resStr)
			if err != nil {
				return err
			}
			withDeps, _ := cmd.Flags().GetBool("with-deps")

			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			opts := lifecycle.InstallOptions{
				Resolution:       res,
				WithDependencies: withDeps,
				Validate:         a.cfg.Install.Validate,
			}

			report := installReport{Installed: []lifecycle.InstallOutcome{}, Failed: []lifecycle.ItemFailure{}}
			var errs []error
			for _, id := range args {
				out, err := m.InstallFramework(cmd.Context(), id, opts)
				if err != nil {
					report.Failed = append(report.Failed, lifecycle.ItemFailure{FrameworkID: id, Error: err.Error(), Err: err})
					errs = append(errs, err)
					continue
				}
				report.Installed = append(report.Installed, *out)
			}

			if err := a.render(cmd, report, func(w io.Writer) error {
				for _, out := range report.Installed {
					for _, dep := range out.Dependencies {
						printInstall(w, m, dep, "  dependency ")
					}
					printInstall(w, m, out, "")
				}
				for _, f := range report.Failed {
					if _, err := fmt.Fprintf(w, "%s %s: %s\n", red("✗"), f.FrameworkID, f.Error); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				return err
			}
			if len(errs) > 0 {
				logger.Debug("install finished with failures", logger.Int("failed", len(errs)))
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().String("resolution", "", "Conflict resolution (overwrite|merge|keep-existing|cancel)")
	cmd.Flags().Bool("with-deps", false, "Install missing dependencies first")
	cmd.Flags().Bool("validate", false, "Validate installed content")
	return cmd
}

func printInstall(w io.Writer, m *lifecycle.Manager, out lifecycle.InstallOutcome, prefix string) {
	_, _ = fmt.Fprintf(w, "%s%s %s %s -> %s\n", prefix, green("✓"), out.FrameworkID, stateColor(string(out.Action)), m.Layout().Rel(out.Path))
	if out.Validation == nil {
		return
	}
	for _, issue := range out.Validation.Issues {
		_, _ = fmt.Fprintf(w, "%s    %s %d:%d %s\n", prefix, stateColor(string(issue.Severity)),
			issue.Range.Start.Line+1, issue.Range.Start.Column+1, issue.Message)
	}
}

func newUninstallCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <id>",
		Short: "Remove an installed framework and its ledger record",
		Long: `Uninstall deletes the installed document and its ledger record. A document with
local edits is copied to the backups directory first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			out, err := m.UninstallFramework(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd, out, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "%s %s removed\n", green("✓"), out.FrameworkID); err != nil {
					return err
				}
				if out.BackupPath != "" {
					_, err = fmt.Fprintf(w, "  local edits saved to %s\n", m.Layout().Rel(out.BackupPath))
				}
				return err
			})
		},
	}
}
