/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/guidekit/pkg/ascii"
)

type outputFormat string

const (
	formatPretty outputFormat = "pretty"
	formatJSON   outputFormat = "json"
	formatYAML   outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatPretty, formatJSON, formatYAML:
		return f, nil
	case "":
		return formatPretty, nil
	default:
		return "", fmt.Errorf("unsupported --format %q (use pretty, json or yaml)", s)
	}
}

// render writes v as JSON or YAML, or calls pretty for the console format.
func (a *app) render(cmd *cobra.Command, v any, pretty func(w io.Writer) error) error {
	out := cmd.OutOrStdout()
	switch a.format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to format YAML: %w", err)
		}
		return enc.Close()
	default:
		return pretty(out)
	}
}

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	red     = color.New(color.FgRed).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
)

// newTable returns a table with bold headers.
func newTable(headers ...string) *ascii.Table {
	t := ascii.NewTable(headers...)
	t.HeaderStyle = func(s string) string { return bold(s) }
	return t
}

// stateColor colours status words consistently across commands.
func stateColor(s string) string {
	switch s {
	case "pristine", "installed", "unchanged", "reinstalled", "restored", "adopted", "completed", "ok", "passed":
		return green(s)
	case "customized", "merged", "kept-existing", "overwritten", "update", "warning", "rolled-back", "skipped":
		return yellow(s)
	case "missing", "orphaned", "failed", "error":
		return red(s)
	default:
		return s
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
