/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search framework descriptors and installed content",
		Long: `Search matches the query literally and case-insensitively against names, ids,
tags and descriptions in the catalog. With --content the installed documents are
searched too. Regular expression characters in the query match themselves.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, _ := cmd.Flags().GetBool("content")
			query := strings.Join(args, " ")

			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			results, err := m.SearchFrameworks(cmd.Context(), query, content)
			if err != nil {
				return err
			}
			return a.render(cmd, results, func(w io.Writer) error {
				if len(results) == 0 {
					_, err := fmt.Fprintf(w, "No matches for %q.\n", query)
					return err
				}
				for _, r := range results {
					loc := r.Source
					if r.Kind == "document" {
						loc = fmt.Sprintf("%s:%d", r.Source, r.Line+1)
					}
					if _, err := fmt.Fprintf(w, "%s %s %s %s\n", magenta(r.FrameworkID), faint(r.Field), faint(loc), r.Snippet); err != nil {
						return err
					}
					for _, l := range r.Before {
						_, _ = fmt.Fprintf(w, "    %s\n", faint(l))
					}
					for _, l := range r.After {
						_, _ = fmt.Fprintf(w, "    %s\n", faint(l))
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("content", false, "Also search installed document content")
	cmd.Flags().Int("context", 2, "Lines of context around content matches (negative disables)")
	cmd.Flags().Int("max-results", 100, "Maximum number of results")
	return cmd
}
