/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/guidekit/pkg/exitcode"
	"github.com/fulmenhq/guidekit/pkg/safeio"
	"github.com/fulmenhq/guidekit/pkg/validation"
)

type fileValidation struct {
	File string `json:"file" yaml:"file"`
	validation.Result `yaml:",inline"`
}

func newValidateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check guidance documents for required sections and structure",
		Long: `Validate checks markdown guidance documents: required sections, actionable
guidance, heading levels, empty sections, unclosed code fences and front matter.
The exit code is 3 when any document has errors; warnings alone pass.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sections, _ := cmd.Flags().GetStringSlice("require"); len(sections) > 0 {
				a.cfg.Validation.RequiredSections = sections
			}
			if disabled, _ := cmd.Flags().GetStringSlice("disable"); len(disabled) > 0 {
				a.cfg.Validation.DisabledRules = append(a.cfg.Validation.DisabledRules, disabled...)
			}
			v, err := a.validator()
			if err != nil {
				return err
			}

			fsys := safeio.NewOS()
			results := make([]fileValidation, 0, len(args))
			failed := 0
			for _, path := range args {
				data, err := fsys.ReadFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				res := v.Validate(string(data))
				if !res.Passed {
					failed++
				}
				results = append(results, fileValidation{File: path, Result: res})
			}

			if err := a.render(cmd, results, func(w io.Writer) error {
				for _, r := range results {
					status := stateColor("passed")
					if !r.Passed {
						status = stateColor("failed")
					}
					if _, err := fmt.Fprintf(w, "%s %s\n", bold(r.File), status); err != nil {
						return err
					}
					for _, issue := range r.Issues {
						line := fmt.Sprintf("  %d:%d %s %s [%s]", issue.Range.Start.Line+1, issue.Range.Start.Column+1,
							stateColor(string(issue.Severity)), issue.Message, issue.Rule)
						if issue.Suggestion != "" {
							line += "\n      " + faint(issue.Suggestion)
						}
						if _, err := fmt.Fprintln(w, line); err != nil {
							return err
						}
					}
				}
				return nil
			}); err != nil {
				return err
			}
			if failed > 0 {
				return &exitError{code: exitcode.ValidationError, err: fmt.Errorf("%d of %d documents failed validation", failed, len(args))}
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("require", nil, "Required section names (replaces the configured list)")
	cmd.Flags().StringSlice("disable", nil, "Rules to disable")
	return cmd
}
