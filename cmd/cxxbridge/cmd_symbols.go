package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/cxxbridge/catalog"
)

func newSymbolsCmd(opts *options) *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "symbols <manifest>",
		Short: "List every signature with its mangled symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := catalog.LoadManifestFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, cat := range cats {
				if class != "" && cat.Class() != class {
					continue
				}
				fmt.Fprintln(out, opts.paint(headerStyle, cat.Class()))
				for _, sig := range cat.Signatures() {
					slot := ""
					if sig.Slot >= 0 {
						slot = fmt.Sprintf(" [slot %d]", sig.Slot)
					}
					fmt.Fprintf(out, "  %s%s\n      %s\n",
						opts.paint(nameStyle, sig.String()), slot,
						opts.paint(symbolStyle, sig.Symbol))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "only list this class")
	return cmd
}
