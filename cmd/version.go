/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/guidekit/pkg/buildinfo"
)

type versionInfo struct {
	buildinfo.Info `yaml:",inline"`
	Platform       string `json:"platform" yaml:"platform"`
	Arch           string `json:"arch" yaml:"arch"`
}

func newVersionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the guidekit version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			extended, _ := cmd.Flags().GetBool("extended")
			info := versionInfo{Info: buildinfo.Current(), Platform: runtime.GOOS, Arch: runtime.GOARCH}
			if info.GoVersion == "" {
				info.GoVersion = runtime.Version()
			}
			return a.render(cmd, info, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "guidekit %s\n", info.Version); err != nil {
					return err
				}
				if !extended {
					return nil
				}
				_, err := fmt.Fprintf(w, "  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s/%s\n",
					orUnknown(info.Commit), orUnknown(info.BuildDate), info.GoVersion, info.Platform, info.Arch)
				return err
			})
		},
	}
	cmd.Flags().Bool("extended", false, "Show detailed build information")
	return cmd
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
