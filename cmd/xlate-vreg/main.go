// =============================================================================
// xlate-vreg - Main Entry Point
// =============================================================================
//
// Turns register pragmas embedded in Verilog sources into a C header of
// register addresses and field constants.
//
// THE PIPELINE:
//   1. The address map assigns a base address to every bus connection
//   2. The configuration says which Verilog file describes each connection
//   3. Each file is scanned; @register/@field pragmas are flushed by the
//      REG_ localparam that follows them
//   4. Documentation comments and #defines are written in address order
//   5. Optionally the header is parsed as C and a register manifest written
//
// Run 'xlate-vreg init' to create a configuration file.
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/config"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/generator"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/vreg"
)

const progName = "xlate_vreg"

// usageError is reported with the usage text rather than as a failure
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

type options struct {
	names        bool
	configPath   string
	verbose      bool
	trace        bool
	check        bool
	manifestPath string
	deltaFrom    string
	deltaOut     string
	timing       bool
	timingPath   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "%s: %v\n", progName, ue.err)
		fmt.Fprint(stderr, cmd.UsageString())
		return 1
	}
	fmt.Fprintf(stderr, "%s: %v\n", progName, err)
	return 1
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:   "xlate-vreg [flags] <address-map> [<output.h>]",
		Short: "Generate a C register header from annotated Verilog",
		Long: `Generate a C register header from annotated Verilog.

The address map assigns a base address to each connection; the
configuration (xlate_vreg.json, .yaml or .cue) names the Verilog file
that describes it. Without an output file the header goes to stdout.`,
		Version:       vreg.Revision,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return &usageError{err: fmt.Errorf("expected an address map and an optional output file, got %d arguments", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, args, stdout, stderr)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(progName + " {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flag := root.Flags()
	flag.BoolVarP(&opts.names, "names", "n", false, "list address-map connections and exit")
	flag.StringVarP(&opts.configPath, "config", "c", "", "connection definitions file (default: search working directory)")
	flag.BoolVarP(&opts.verbose, "verbose", "v", false, "log per-connection progress")
	flag.BoolVar(&opts.trace, "trace", false, "dump descriptor sequences (implies --verbose)")
	flag.BoolVar(&opts.check, "check", false, "parse the generated header as C before writing it")
	flag.StringVar(&opts.manifestPath, "manifest", "", "write a JSON register manifest to this file")
	flag.StringVar(&opts.deltaFrom, "delta-from", "", "previous manifest to compare against")
	flag.StringVar(&opts.deltaOut, "delta-out", "", "write the manifest delta to this file (needs --delta-from)")
	flag.BoolVar(&opts.timing, "timing", false, "record stage timings as JSON lines")
	flag.StringVar(&opts.timingPath, "timing-path", "", "timing output file (default: timing.jsonl next to the header)")

	root.AddCommand(newInitCmd(stdout))
	root.AddCommand(newCheckCmd(stdout))
	return root
}

func runGenerate(ctx context.Context, opts options, args []string, stdout, stderr io.Writer) error {
	if opts.deltaOut != "" && opts.deltaFrom == "" {
		return &usageError{err: errors.New("--delta-out needs --delta-from")}
	}

	amapPath := args[0]
	outPath := ""
	if len(args) > 1 {
		outPath = args[1]
	}

	if opts.names {
		return generator.New(nil).ListNames(amapPath, stdout)
	}

	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	g := generator.New(cfg)
	g.Verbose = opts.verbose
	g.Trace = opts.trace
	g.Check = opts.check
	g.ManifestPath = opts.manifestPath
	g.DeltaFrom = opts.deltaFrom
	g.DeltaOut = opts.deltaOut
	g.Timing = opts.timing
	g.TimingPath = opts.timingPath
	g.Stdout = stdout
	g.Log = newLogger(stderr, opts)

	_, err = g.Run(ctx, amapPath, outPath)
	return err
}

func newInitCmd(stdout io.Writer) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a sample xlate_vreg.json configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := "xlate_vreg.json"
			if len(args) == 1 {
				configPath = args[0]
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
			}

			if err := config.SampleConfig().Save(configPath); err != nil {
				return fmt.Errorf("creating config: %w", err)
			}

			fmt.Fprintf(stdout, "Created %s\n", configPath)
			fmt.Fprintln(stdout, "\nEdit this file to configure:")
			fmt.Fprintln(stdout, "  - Address-map connection names")
			fmt.Fprintln(stdout, "  - The Verilog file holding each connection's registers (or \"omit\")")
			fmt.Fprintln(stdout, "  - Register name prefixes")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
