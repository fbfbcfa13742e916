/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/guidekit/pkg/catalog"
	"github.com/fulmenhq/guidekit/pkg/ledger"
)

func newListCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the frameworks available in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			category, _ := cmd.Flags().GetString("category")
			tag, _ := cmd.Flags().GetString("tag")
			if category != "" && !catalog.Category(category).Valid() {
				return fmt.Errorf("unknown category %q", category)
			}
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}

			var ds []catalog.Descriptor
			for _, d := range m.ListAvailableFrameworks() {
				if category != "" && string(d.Category) != category {
					continue
				}
				if tag != "" && !hasTag(d.Tags, tag) {
					continue
				}
				ds = append(ds, d)
			}
			if ds == nil {
				ds = []catalog.Descriptor{}
			}

			return a.render(cmd, ds, func(w io.Writer) error {
				t := newTable("ID", "VERSION", "CATEGORY", "NAME", "DEPENDS ON")
				t.MaxWidth = 48
				t.Style = func(col int, s string) string {
					if col == 0 {
						return cyan(s)
					}
					return s
				}
				for _, d := range ds {
					t.Append(d.ID, d.Version, d.Category.DisplayName(), d.Name, strings.Join(d.Dependencies, ", "))
				}
				_, err := fmt.Fprint(w, t.String())
				return err
			})
		},
	}
	cmd.Flags().String("category", "", "Only list this category")
	cmd.Flags().String("tag", "", "Only list frameworks carrying this tag")
	return cmd
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func newInstalledCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "installed",
		Short: "List the frameworks recorded in the workspace ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			records, err := m.GetInstalledFrameworks(cmd.Context())
			if err != nil {
				return err
			}
			if records == nil {
				records = []ledger.Record{}
			}
			return a.render(cmd, records, func(w io.Writer) error {
				if len(records) == 0 {
					_, err := fmt.Fprintln(w, "No frameworks installed.")
					return err
				}
				t := newTable("ID", "VERSION", "INSTALLED", "UPDATED", "CUSTOMIZED")
				for _, r := range records {
					updated := ""
					if r.UpdatedAt != nil {
						updated = r.UpdatedAt.Format("2006-01-02 15:04")
					}
					t.Append(r.FrameworkID, r.Version, r.InstalledAt.Format("2006-01-02 15:04"), updated, yesNo(r.Customized))
				}
				_, err := fmt.Fprint(w, t.String())
				return err
			})
		},
	}
}
