/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/guidekit/pkg/exitcode"
	"github.com/fulmenhq/guidekit/pkg/ledger"
)

func newLedgerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or repair the installed-frameworks ledger",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			l, err := m.Ledger().Read(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, l, func(w io.Writer) error {
				data, err := ledger.Encode(l)
				if err != nil {
					return err
				}
				_, err = w.Write(data)
				return err
			})
		},
	}

	quarantine := &cobra.Command{
		Use:   "quarantine",
		Short: "Move a corrupt ledger aside and start a fresh one",
		Long: `Quarantine renames a ledger that can no longer be read so a new, empty one can be
started. Installed documents stay on disk but are no longer tracked; install them
again to adopt them. This forgets install history, so it has to be acknowledged
with --acknowledge-data-loss.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ack, _ := cmd.Flags().GetBool("acknowledge-data-loss")
			if !ack {
				return &exitError{
					code: exitcode.ConfigError,
					err:  errors.New("refusing to quarantine without --acknowledge-data-loss"),
				}
			}
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			moved, err := m.Ledger().Quarantine(cmd.Context())
			if err != nil {
				return err
			}
			result := map[string]string{"quarantined": moved}
			return a.render(cmd, result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Corrupt ledger moved to %s\n", m.Layout().Rel(moved))
				return err
			})
		},
	}
	quarantine.Flags().Bool("acknowledge-data-loss", false, "Confirm that install history will be forgotten")

	cmd.AddCommand(show, quarantine)
	return cmd
}

func newRecoverCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Finish or undo operations interrupted by a crash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			report, err := m.Recover(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.render(cmd, report, func(w io.Writer) error {
				if len(report.Actions) == 0 {
					_, err := fmt.Fprintln(w, "Nothing to recover.")
					return err
				}
				t := newTable("TX", "OP", "FRAMEWORK", "OUTCOME", "ERROR")
				t.Style = func(col int, s string) string {
					if col == 3 {
						return stateColor(s)
					}
					return s
				}
				for _, act := range report.Actions {
					t.Append(act.TxID, act.Op, act.FrameworkID, act.Outcome, act.Error)
				}
				_, err := fmt.Fprint(w, t.String())
				return err
			}); err != nil {
				return err
			}
			for _, act := range report.Actions {
				if act.Outcome == "failed" {
					return &exitError{code: exitcode.FileSystemError, err: errors.New("some operations could not be recovered")}
				}
			}
			return nil
		},
	}
}
