// Command cxxbridge inspects class manifests and drives native libraries
// through the call boundary.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/cxxbridge/dispatch"
	"github.com/wippyai/cxxbridge/native"
	"github.com/wippyai/cxxbridge/native/wasm"
	"github.com/wippyai/cxxbridge/runtime"
)

var (
	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	symbolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

// options are the persistent flags shared by every command.
type options struct {
	logLevel string
	noColor  bool
	color    bool
}

// paint renders s with st when color output is enabled.
func (o *options) paint(st lipgloss.Style, s string) string {
	if !o.color {
		return s
	}
	return st.Render(s)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "cxxbridge",
		Short:         "Inspect class manifests and call native code across the boundary",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.color = !opts.noColor && isTerminal(cmd.OutOrStdout())
			return setupLogging(opts.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newSymbolsCmd(opts),
		newResolveCmd(opts),
		newDemangleCmd(opts),
		newLinkCmd(opts),
		newCallCmd(opts),
		newExploreCmd(opts),
	)
	return root
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// setupLogging installs a zap logger on every package that logs.
func setupLogging(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	if lvl.Level() > zap.DebugLevel {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	runtime.SetLogger(logger.Named("runtime"))
	dispatch.SetLogger(logger.Named("dispatch"))
	native.SetLogger(logger.Named("native"))
	wasm.SetLogger(logger.Named("wasm"))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
