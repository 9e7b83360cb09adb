// Package convert wires the RSD parser to the Kanata generator and gathers
// statistics about a conversion.
package convert

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/diag"
	"github.com/sarchlab/kanataconv/insts"
	"github.com/sarchlab/kanataconv/kanata"
	"github.com/sarchlab/kanataconv/rsd"
	"github.com/sarchlab/kanataconv/trace"
)

// Result describes a finished (or aborted) conversion.
type Result struct {
	// Stats counts what reached the output.
	Stats Statistics
	// Parser holds the parser's own bookkeeping.
	Parser rsd.Statistics
	// Cache holds the disassembly cache statistics. It is zero when the
	// cache is disabled.
	Cache insts.CacheStatistics
	// Diagnostics lists the recorded anomalies, up to the collector limit.
	Diagnostics []diag.Diagnostic
	// DiagnosticCounts counts every anomaly by kind.
	DiagnosticCounts map[diag.Kind]int
}

// Option configures a conversion.
type Option func(*options)

type options struct {
	logger *slog.Logger
	diags  *diag.Collector
}

// WithLogger sets the logger anomalies and progress are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDiagnostics sets the collector anomalies are recorded in. It takes
// precedence over WithLogger for anomalies.
func WithDiagnostics(c *diag.Collector) Option {
	return func(o *options) {
		o.diags = c
	}
}

// Convert reads an RSD log from in and writes the Kanata log to out. A nil
// cfg means config.Default().
//
// On a fatal parse error the output produced so far is flushed and the
// returned Result describes the partial conversion.
func Convert(in io.Reader, out io.Writer, cfg *config.Config, opts ...Option) (*Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.diags == nil {
		o.diags = diag.NewCollector(diag.WithLogger(o.logger))
	}

	gen := kanata.NewGenerator(out,
		kanata.WithOutput(cfg.Output),
		kanata.WithDiagnostics(o.diags),
		kanata.WithGCInterval(cfg.Source.GCInterval),
	)

	var disasm rsd.Disassembler = insts.NewDecoder()
	var cache *insts.Cache
	if cfg.Decode.CacheEntries > 0 {
		cache = insts.NewCache(insts.CacheConfig{
			Entries:       cfg.Decode.CacheEntries,
			Associativity: cfg.Decode.CacheWays,
		}, insts.NewDecoder())
		disasm = cache
	}

	count := &counter{}
	parser := rsd.NewParser(trace.Tee{gen, count},
		rsd.WithSource(cfg.Source),
		rsd.WithDiagnostics(o.diags),
		rsd.WithDisassembler(disasm),
	)

	if err := gen.WriteHeader(); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	parseErr := parser.Parse(in)
	flushErr := gen.Flush()

	result := &Result{
		Stats:            count.stats,
		Parser:           parser.Stats(),
		Diagnostics:      o.diags.Diagnostics(),
		DiagnosticCounts: o.diags.Counts(),
	}
	result.Stats.Squashed = result.Parser.Squashed
	result.Stats.Cycles = result.Parser.FinalCycle + 1
	if cache != nil {
		result.Cache = cache.Stats()
	}

	if parseErr != nil {
		return result, fmt.Errorf("failed to convert trace: %w", parseErr)
	}
	if flushErr != nil {
		return result, fmt.Errorf("failed to write output: %w", flushErr)
	}

	o.logger.Debug("conversion finished",
		"cycles", result.Stats.Cycles,
		"ops", result.Stats.Ops,
		"retired", result.Stats.Retired,
		"flushed", result.Stats.Flushed,
		"diagnostics", o.diags.Len(),
	)

	return result, nil
}

// ConvertFile converts the RSD log at inPath into a Kanata log at outPath.
func ConvertFile(inPath, outPath string, cfg *config.Config, opts ...Option) (result *Result, err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close output: %w", cerr))
		}
	}()

	return Convert(in, out, cfg, opts...)
}
