package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/resolve"
)

func newResolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <manifest> <class> <operation> [type...]",
		Short: "Resolve a call shape against a class's overloads",
		Example: `  cxxbridge resolve classes.yaml NonVirtual foo int int int
  cxxbridge resolve classes.yaml NonVirtual foo "int*" "int*" "int*"`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := catalog.LoadManifestFile(args[0])
			if err != nil {
				return err
			}
			cat, err := findClass(cats, args[1])
			if err != nil {
				return err
			}
			types := make([]abi.Type, 0, len(args)-3)
			for _, spelling := range args[3:] {
				t, err := abi.Parse(spelling)
				if err != nil {
					return err
				}
				types = append(types, t)
			}
			m, err := resolve.Resolve(cat, args[2], types)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeMatch(opts, m))
			return nil
		},
	}
}

func findClass(cats []*catalog.Catalog, name string) (*catalog.Catalog, error) {
	names := make([]string, 0, len(cats))
	for _, cat := range cats {
		if cat.Class() == name {
			return cat, nil
		}
		names = append(names, cat.Class())
	}
	return nil, errors.New(errors.PhaseParse, errors.KindNotFound).
		Type(name).
		Candidates(names...).
		Detail("class not in manifest").
		Build()
}

// describeMatch renders the selected signature, its symbol and the
// conversion applied to each argument.
func describeMatch(opts *options, m *resolve.Match) string {
	var b strings.Builder
	b.WriteString(opts.paint(nameStyle, m.Signature.String()))
	b.WriteString("\n  symbol: ")
	b.WriteString(opts.paint(symbolStyle, m.Signature.Symbol))
	if len(m.Conversions) > 0 {
		convs := make([]string, len(m.Conversions))
		for i, c := range m.Conversions {
			convs[i] = c.String()
		}
		b.WriteString("\n  conversions: ")
		b.WriteString(opts.paint(typeStyle, strings.Join(convs, ", ")))
	}
	return b.String()
}
