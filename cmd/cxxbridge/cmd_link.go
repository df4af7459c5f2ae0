package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/mangle"
	"github.com/wippyai/cxxbridge/metrics"
	"github.com/wippyai/cxxbridge/native/wasm"
	"github.com/wippyai/cxxbridge/runtime"
)

type linkFlags struct {
	heapBase uint32
	pages    uint32
	strict   bool
}

func (f *linkFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(&f.heapBase, "heap-base", 0, "first address of the allocator arena when the module has no malloc")
	cmd.Flags().Uint32Var(&f.pages, "memory-pages", wasm.DefaultConfig().MemoryLimitPages, "memory limit in 64 KiB pages")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail when a signature's symbol is missing")
}

// open loads the manifest and the module and registers every class.
func (f *linkFlags) open(ctx context.Context, manifest, module string, opts runtime.Options) (*runtime.Runtime, error) {
	cats, err := catalog.LoadManifestFile(manifest)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(module)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	cfg := wasm.DefaultConfig()
	cfg.HeapBase = f.heapBase
	cfg.MemoryLimitPages = f.pages

	lib, err := wasm.Load(ctx, data, cfg)
	if err != nil {
		return nil, err
	}
	opts.StrictLink = f.strict
	rt, err := runtime.New(lib, opts)
	if err != nil {
		_ = lib.Close(ctx)
		return nil, err
	}
	if err := rt.RegisterAll(cats); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func newLinkCmd(opts *options) *cobra.Command {
	var flags linkFlags
	cmd := &cobra.Command{
		Use:   "link <manifest> <module.wasm>",
		Short: "Link a manifest against a wasm module and report missing symbols",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := flags.open(ctx, args[0], args[1], runtime.DefaultOptions())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			out := cmd.OutOrStdout()
			missing := 0
			for _, name := range rt.Classes() {
				cls, _ := rt.Class(name)
				unresolved := cls.Unresolved()
				total := len(cls.Catalog().Signatures())
				fmt.Fprintf(out, "%s %d/%d linked, size %d\n",
					opts.paint(headerStyle, name), total-len(unresolved), total, cls.Layout().Size)
				for _, sym := range unresolved {
					missing++
					fmt.Fprintf(out, "  missing %s %s\n",
						opts.paint(errorStyle, mangle.DemangleString(sym)),
						opts.paint(symbolStyle, sym))
				}
			}
			if missing > 0 {
				fmt.Fprintf(out, "%d symbols missing\n", missing)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newCallCmd(opts *options) *cobra.Command {
	var (
		flags       linkFlags
		ctorArgs    []string
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "call <manifest> <module.wasm> <class> <operation> [arg...]",
		Short: "Construct an object and call one of its operations",
		Long: `Construct an object of <class> and call <operation> on it.

Arguments are integers (int), decimals (double), true/false (bool) or
anything else as a string (const char*). Suffix an integer with :short,
:long or :char to pick another integer type.`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg := prometheus.NewRegistry()
			ropts := runtime.DefaultOptions()
			if showMetrics {
				ropts.Metrics = metrics.New(reg)
			}
			rt, err := flags.open(ctx, args[0], args[1], ropts)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			cls, ok := rt.Class(args[2])
			if !ok {
				return fmt.Errorf("class %s not in manifest", args[2])
			}
			obj, err := cls.New(ctx, parseValues(ctorArgs)...)
			if err != nil {
				return err
			}
			defer obj.Destroy(ctx)

			result, err := obj.Call(ctx, args[3], parseValues(args[4:])...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s = %s\n", opts.paint(nameStyle, args[3]), opts.paint(typeStyle, fmt.Sprint(result)))

			if showMetrics {
				return printMetrics(out, reg)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&ctorArgs, "ctor", nil, "constructor arguments")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print dispatch metrics after the call")
	return cmd
}

// parseValues converts command-line arguments to Go values whose described
// types drive overload resolution.
func parseValues(args []string) []any {
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = parseValue(a)
	}
	return vals
}

func parseValue(s string) any {
	if num, suffix, ok := strings.Cut(s, ":"); ok {
		if n, err := strconv.ParseInt(num, 10, 64); err == nil {
			switch suffix {
			case "short":
				return int16(n)
			case "long":
				return n
			case "char":
				return int8(n)
			}
		}
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}

func printMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				v = float64(m.GetHistogram().GetSampleCount())
			}
			fmt.Fprintf(out, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), v)
		}
	}
	return nil
}
