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
	"github.com/fulmenhq/guidekit/pkg/exitcode"
)

func newCatalogCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the framework catalog",
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check that every manifest entry has a document and vice versa",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			report, err := cat.Verify(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.render(cmd, report, func(w io.Writer) error {
				if report.OK {
					_, err := fmt.Fprintf(w, "%s %d frameworks, all documents present\n", green("✓"), report.Expected)
					return err
				}
				for _, name := range report.Missing {
					_, _ = fmt.Fprintf(w, "%s missing document %s\n", red("✗"), name)
				}
				for _, name := range report.Extra {
					_, _ = fmt.Fprintf(w, "%s document %s is not in the manifest\n", yellow("!"), name)
				}
				return nil
			}); err != nil {
				return err
			}
			if !report.OK {
				return &exitError{code: exitcode.CorruptStore, err: fmt.Errorf("catalog %s is inconsistent", cat.Location())}
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a descriptor and its dependency order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			d, err := cat.Descriptor(args[0])
			if err != nil {
				return err
			}
			order, err := cat.DependencyOrder(d.ID)
			if err != nil {
				return err
			}
			view := struct {
				catalog.Descriptor `yaml:",inline"`
				InstallOrder       []string `json:"installOrder" yaml:"installOrder"`
			}{d, order}
			return a.render(cmd, view, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s %s\n%s\n\n  id:        %s\n  category:  %s\n  file:      %s\n  tags:      %s\n  install:   %s\n",
					bold(d.Name), d.Version, d.Description, d.ID, d.Category.DisplayName(), d.FileName,
					strings.Join(d.Tags, ", "), strings.Join(order, " -> "))
				if err != nil {
					return err
				}
				for _, n := range d.ChangesBetween("0.0.0", d.Version) {
					if _, err := fmt.Fprintf(w, "  %-10s %s\n", n.Version, n.Note); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(verify, show)
	return cmd
}
