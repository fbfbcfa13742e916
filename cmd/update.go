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

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "List installed frameworks with a newer catalog version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			updates, err := m.CheckForUpdates(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, updates, func(w io.Writer) error {
				if len(updates) == 0 {
					_, err := fmt.Fprintln(w, "Everything is up to date.")
					return err
				}
				t := newTable("ID", "INSTALLED", "LATEST", "CUSTOMIZED", "CHANGES")
				t.MaxWidth = 60
				for _, u := range updates {
					t.Append(u.FrameworkID, u.CurrentVersion, u.LatestVersion, yesNo(u.Customized), u.ChangeSummary)
				}
				_, err := fmt.Fprint(w, t.String())
				return err
			})
		},
	}
}

func newUpdateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [<id>...]",
		Short: "Update installed frameworks to the catalog version",
		Long: `Update rewrites installed documents with their newer catalog version. Without
ids every framework reported by 'guidekit check' is updated.

A document with local edits is not touched unless --decision says how:

  backup-and-update   copy the edited file to the backups directory, then update
  discard-and-update  update and drop the edits
  cancel              leave the document alone`,
		RunE: func(cmd *cobra.Command, args []string) error {
			decStr, _ := cmd.Flags().GetString("decision")
			decision, err := lifecycle.ParseDecision(decStr)
			if err != nil {
				return err
			}
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}

			opts := lifecycle.UpdateOptions{Decision: decision}
			if a.format == formatPretty {
				opts.Progress = func(done, total int, id string) {
					logger.Debug("update progress", logger.Int("done", done), logger.Int("total", total), logger.String("framework", id))
				}
			}
			res, err := m.UpdateAllFrameworks(cmd.Context(), args, opts)
			if err != nil {
				return err
			}

			if err := a.render(cmd, res, func(w io.Writer) error {
				if len(res.Succeeded) == 0 && len(res.Failed) == 0 {
					_, err := fmt.Fprintln(w, "Everything is up to date.")
					return err
				}
				for _, u := range res.Succeeded {
					line := fmt.Sprintf("%s %s %s -> %s", green("✓"), u.FrameworkID, u.FromVersion, u.ToVersion)
					if u.BackupPath != "" {
						line += faint(" (backup: " + m.Layout().Rel(u.BackupPath) + ")")
					}
					if u.DisplacedBackupPath != "" {
						line += faint(" (replaced file saved to " + m.Layout().Rel(u.DisplacedBackupPath) + ")")
					}
					if _, err := fmt.Fprintln(w, line); err != nil {
						return err
					}
				}
				for _, f := range res.Failed {
					if _, err := fmt.Fprintf(w, "%s %s: %s\n", red("✗"), f.FrameworkID, f.Error); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				return err
			}

			errs := make([]error, 0, len(res.Failed))
			for _, f := range res.Failed {
				errs = append(errs, f.Err)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().String("decision", "", "What to do with customized documents (backup-and-update|discard-and-update|cancel)")
	return cmd
}
