// Package commands implements CLI command handlers for pytrace.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pytrace/internal/config"
	"github.com/Sumatoshi-tech/pytrace/pkg/pyenv"
	"github.com/Sumatoshi-tech/pytrace/pkg/tracer"
	"github.com/Sumatoshi-tech/pytrace/pkg/version"
)

// TraceCommand holds configuration for the root trace command.
type TraceCommand struct {
	configPath  string
	base        string
	ignore      []string
	interpreter string

	includeStdlib  bool
	noSitePackages bool
	followDynamic  bool
	maxDepth       int

	jsonOut     bool
	yamlOut     bool
	relative    bool
	showReasons bool
	noColor     bool
	quiet       bool

	// discover is swappable in tests to avoid probing a real interpreter.
	discover discoverFunc
}

type discoverFunc func(cmd *cobra.Command, interpreter string) (*pyenv.Environment, error)

// NewRootCommand creates the pytrace root command. The root itself performs
// the trace; `version` is the only subcommand.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(defaultDiscover)
}

func newRootCommandWithDeps(discover discoverFunc) *cobra.Command {
	tc := &TraceCommand{discover: discover}

	cmd := &cobra.Command{
		Use:   "pytrace <entry-file>...",
		Short: "Trace Python file dependencies",
		Long: `pytrace determines which files are needed to run a Python application
by recursively analyzing import statements from one or more entry files.`,
		Args:          cobra.MinimumNArgs(1),
		RunE:          tc.run,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&tc.configPath, "config", "", "Config file path (default: ./pytrace.yaml)")
	cmd.Flags().StringVar(&tc.base, "base", "", "Base directory for relative output (default: current directory)")
	cmd.Flags().StringArrayVar(&tc.ignore, "ignore", nil, "Glob pattern to ignore (repeatable)")
	cmd.Flags().StringVar(&tc.interpreter, "interpreter", "", "Python interpreter to probe for search paths")

	cmd.Flags().BoolVar(&tc.includeStdlib, "include-stdlib", false, "Include standard library files in the output")
	cmd.Flags().BoolVar(&tc.noSitePackages, "no-site-packages", false, "Exclude site-packages from the output")
	cmd.Flags().BoolVar(&tc.followDynamic, "follow-dynamic", false, "Attempt to follow dynamic imports (__import__, importlib)")
	cmd.Flags().IntVar(&tc.maxDepth, "max-depth", 0, "Maximum trace depth (default: unlimited)")

	cmd.Flags().BoolVar(&tc.jsonOut, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&tc.yamlOut, "yaml", false, "Output results as YAML")
	cmd.Flags().BoolVar(&tc.relative, "relative", false, "Output paths relative to the base directory")
	cmd.Flags().BoolVar(&tc.showReasons, "show-reasons", false, "Show why each file was included")
	cmd.Flags().BoolVar(&tc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&tc.quiet, "quiet", "q", false, "Suppress progress output")

	cmd.AddCommand(versionCmd())

	return cmd
}

func (tc *TraceCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(tc.configPath)
	if err != nil {
		return err
	}

	tc.applyConfig(cmd, cfg)

	progressWriter := cmd.ErrOrStderr()

	env, envErr := tc.discover(cmd, tc.interpreter)
	if envErr != nil {
		tc.progressf(progressWriter, "interpreter probe failed, tracing without stdlib classification: %v", envErr)
	}

	opts := tracer.Options{
		Base:                 tc.base,
		IgnorePatterns:       tc.ignore,
		IncludeStdlib:        tc.includeStdlib,
		IncludeSitePackages:  !tc.noSitePackages,
		FollowDynamicImports: tc.followDynamic,
		Env:                  env,
	}

	if tc.maxDepth > 0 {
		depth := tc.maxDepth
		opts.MaxDepth = &depth
	}

	result, err := tracer.Trace(args, opts)
	if err != nil {
		return err
	}

	writeErr := tc.writeResult(cmd.OutOrStdout(), result)
	if writeErr != nil {
		return writeErr
	}

	// Warnings always go to the diagnostic stream, never primary output.
	for _, warning := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
	}

	tc.progressf(progressWriter, "traced %d files from %d entry points (%s)",
		len(result.Files), len(args), totalSize(result))

	return nil
}

// applyConfig fills in settings the user did not override on the command
// line from the loaded configuration.
func (tc *TraceCommand) applyConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if !flags.Changed("interpreter") {
		tc.interpreter = cfg.Interpreter
	}

	if !flags.Changed("include-stdlib") {
		tc.includeStdlib = cfg.IncludeStdlib
	}

	if !flags.Changed("no-site-packages") {
		tc.noSitePackages = !cfg.IncludeSitePackages
	}

	if !flags.Changed("follow-dynamic") {
		tc.followDynamic = cfg.FollowDynamic
	}

	if !flags.Changed("max-depth") {
		tc.maxDepth = cfg.MaxDepth
	}

	if !flags.Changed("relative") {
		tc.relative = cfg.Output.Relative
	}

	if !flags.Changed("show-reasons") {
		tc.showReasons = cfg.Output.ShowReasons
	}

	if !flags.Changed("no-color") {
		tc.noColor = cfg.Output.NoColor
	}

	if !tc.jsonOut && !tc.yamlOut {
		switch cfg.Output.Format {
		case config.FormatJSON:
			tc.jsonOut = true
		case config.FormatYAML:
			tc.yamlOut = true
		}
	}

	tc.ignore = append(tc.ignore, cfg.Ignore...)
}

func (tc *TraceCommand) progressf(writer io.Writer, format string, args ...any) {
	if tc.quiet {
		return
	}

	_, _ = fmt.Fprintf(writer, "progress: "+format+"\n", args...)
}

func defaultDiscover(cmd *cobra.Command, interpreter string) (*pyenv.Environment, error) {
	return pyenv.Discover(cmd.Context(), interpreter)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "pytrace %s\n", version.String())
		},
	}
}
