package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/verify"
)

// newCheckCmd parses an existing header with the C grammar and lists what
// it defines.
func newCheckCmd(stdout io.Writer) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "check <header.h>",
		Short: "Parse a generated header as C and list its defines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("can't open %s: %w", path, err)
			}

			report, err := verify.Check(cmd.Context(), src)
			if err != nil {
				return err
			}

			if !quiet {
				if report.Guard != "" {
					fmt.Fprintf(stdout, "guard %s\n", report.Guard)
				}
				for _, d := range report.Defines {
					fmt.Fprintf(stdout, "%5d  %-60s %s\n", d.Line, d.Name, d.Value)
				}
			}
			if err := report.Err(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only report problems")
	return cmd
}
