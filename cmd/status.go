/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/guidekit/pkg/ascii"
	"github.com/fulmenhq/guidekit/pkg/customization"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog, ledger and on-disk state for every framework",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			st, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, st, func(w io.Writer) error {
				header := []string{
					"Workspace: " + st.Workspace,
					"Catalog:   " + st.Catalog,
					"Ledger:    " + st.Ledger,
				}
				if st.CatalogRevision != "" {
					header = append(header, "Revision:  "+st.CatalogRevision)
				}
				if st.PendingJournal > 0 {
					header = append(header, fmt.Sprintf("%d interrupted operation(s); run 'guidekit recover'", st.PendingJournal))
				}
				if _, err := fmt.Fprint(w, ascii.Box(header)); err != nil {
					return err
				}

				t := newTable("ID", "CATALOG", "INSTALLED", "STATE", "UPDATE")
				t.Style = func(col int, s string) string {
					if col == 3 {
						return stateColor(s)
					}
					if col == 4 && s == "yes" {
						return yellow(s)
					}
					return s
				}
				for _, f := range st.Frameworks {
					state := string(f.State)
					switch {
					case f.Orphaned:
						state = "orphaned"
					case !f.Installed:
						state = "-"
					case f.Customized && f.State == customization.StatePristine:
						state = "customized"
					}
					update := ""
					if f.UpdateAvailable {
						update = "yes"
					}
					t.Append(f.ID, f.CatalogVersion, f.InstalledVersion, state, update)
				}
				_, err := fmt.Fprint(w, t.String())
				return err
			})
		},
	}
}

func newScanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Compare installed documents with their recorded hashes",
		Long: `Scan hashes every installed document and reports which ones were edited or are
missing. With --flag, edited documents are marked customized in the ledger so
later installs and updates treat them as conflicts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flag, _ := cmd.Flags().GetBool("flag")
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			findings, err := m.Scan(cmd.Context(), flag)
			if err != nil {
				return err
			}
			if findings == nil {
				findings = []customization.Finding{}
			}
			return a.render(cmd, findings, func(w io.Writer) error {
				if len(findings) == 0 {
					_, err := fmt.Fprintln(w, "No frameworks installed.")
					return err
				}
				t := newTable("ID", "STATE", "PATH", "FLAGGED")
				t.Style = func(col int, s string) string {
					if col == 1 {
						return stateColor(s)
					}
					return s
				}
				for _, f := range findings {
					flagged := ""
					if f.Flagged {
						flagged = "yes"
					}
					t.Append(f.FrameworkID, string(f.State), m.Layout().Rel(f.Path), flagged)
				}
				_, err := fmt.Fprint(w, t.String())
				return err
			})
		},
	}
	cmd.Flags().Bool("flag", false, "Mark edited documents as customized in the ledger")
	return cmd
}
