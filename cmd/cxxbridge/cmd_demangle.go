package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/cxxbridge/mangle"
)

func newDemangleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "demangle [symbol...]",
		Short: "Decode Itanium-mangled symbols; reads stdin when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					if s := strings.TrimSpace(sc.Text()); s != "" {
						args = append(args, s)
					}
				}
				if err := sc.Err(); err != nil {
					return err
				}
			}
			failed := 0
			for _, s := range args {
				sym, err := mangle.Demangle(s)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s\t%s\n", s, opts.paint(errorStyle, err.Error()))
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", s, opts.paint(nameStyle, sym.String()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d symbols could not be demangled", failed, len(args))
			}
			return nil
		},
	}
}
