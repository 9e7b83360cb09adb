// Package main provides the entry point for kanataconv.
// kanataconv converts RSD pipeline logs into Kanata logs for the Konata
// pipeline viewer.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/convert"
	"github.com/sarchlab/kanataconv/diag"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1 // Conversion failed (I/O, malformed log, bad config)
	ExitUsage   = 2 // Bad arguments or flags
)

// ExitError is an error with a process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// exitCode extracts the exit code from an error returned by the command.
// Errors that are not ExitErrors come from cobra's argument and flag
// checks.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}

type options struct {
	configPath string
	verbose    bool
	stats      bool
}

func newRootCommand(stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "kanataconv <input> <output>",
		Short: "Convert an RSD pipeline log into a Kanata log",
		Long: "kanataconv reads the RSD_Kanata log dumped by the RSD core simulation\n" +
			"and writes a Kanata 0004 log that the Konata pipeline viewer can open.",
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Usage is only useful for argument errors.
			cmd.SilenceUsage = true
			return run(opts, args[0], args[1], stderr)
		},
	}

	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print conversion statistics to stderr")

	return cmd
}

func run(opts *options, inPath, outPath string, stderr io.Writer) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to load config", err)
		}
		cfg = loaded
		logger.Debug("loaded config", "path", opts.configPath)
	}

	logger.Debug("converting", "input", inPath, "output", outPath)

	result, err := convert.ConvertFile(inPath, outPath, cfg, convert.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitFailure, "conversion failed", err)
	}

	if opts.stats {
		printStats(stderr, result, cfg)
	}

	return nil
}

func printStats(w io.Writer, result *convert.Result, cfg *config.Config) {
	s := result.Stats

	fmt.Fprintf(w, "\nConversion Statistics:\n")
	fmt.Fprintf(w, "  Cycles:          %d\n", s.Cycles)
	fmt.Fprintf(w, "  Ops:             %d\n", s.Ops)
	fmt.Fprintf(w, "  Retired:         %d\n", s.Retired)
	fmt.Fprintf(w, "  Flushed:         %d\n", s.Flushed)
	fmt.Fprintf(w, "  Squashed:        %d\n", s.Squashed)
	fmt.Fprintf(w, "  Stalls:          %d\n", s.Stalls)
	fmt.Fprintf(w, "  Labels:          %d\n", s.Labels)
	fmt.Fprintf(w, "  IPC:             %.3f\n", s.IPC())
	fmt.Fprintf(w, "  Simulated time:  %v @ %.2f GHz\n", s.SimulatedTime(cfg.Clock), cfg.Clock.FrequencyGHz)
	fmt.Fprintf(w, "  Peak live ops:   %d\n", result.Parser.PeakLive)

	if c := result.Cache; c.Lookups > 0 {
		fmt.Fprintf(w, "  Disasm cache:    %d lookups, %d hits, %d evictions\n", c.Lookups, c.Hits, c.Evictions)
	}

	if len(result.DiagnosticCounts) == 0 {
		return
	}

	kinds := make([]diag.Kind, 0, len(result.DiagnosticCounts))
	for k := range result.DiagnosticCounts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	fmt.Fprintf(w, "  Diagnostics:\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "    %-18s %d\n", k.String()+":", result.DiagnosticCounts[k])
	}
}

func main() {
	cmd := newRootCommand(os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
