// Package benchmarks provides conversion benchmark infrastructure for
// kanataconv.
package benchmarks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/convert"
	"github.com/sarchlab/kanataconv/tracegen"
)

// BenchmarkResult holds the results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark exercises
	Description string `json:"description"`

	// LogBytes is the size of the generated RSD log
	LogBytes int `json:"log_bytes"`

	// Lines is the number of RSD lines parsed
	Lines uint64 `json:"lines"`

	// Cycles is the number of pipeline cycles in the log
	Cycles int64 `json:"cycles"`

	// Ops, Retired, Flushed and Squashed count micro-ops by outcome
	Ops      uint64 `json:"ops"`
	Retired  uint64 `json:"retired"`
	Flushed  uint64 `json:"flushed"`
	Squashed uint64 `json:"squashed"`

	// IPC is retired ops per cycle
	IPC float64 `json:"ipc"`

	// PeakLive is the largest number of ops tracked at once
	PeakLive int `json:"peak_live"`

	// CacheHits/Lookups (if the disassembly cache is enabled)
	CacheHits    uint64 `json:"cache_hits,omitempty"`
	CacheLookups uint64 `json:"cache_lookups,omitempty"`

	// Diagnostics is the number of anomalies reported
	Diagnostics int `json:"diagnostics"`

	// Consistent reports whether the converted counts match the workload
	Consistent bool `json:"consistent"`

	// Error is set when the benchmark could not run
	Error string `json:"error,omitempty"`

	// WallTime is the time taken by the conversion
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark exercises
	Description string

	// Workload configures the synthetic log
	Workload tracegen.Config
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// EnableCache enables the disassembly cache
	EnableCache bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnableCache: true,
		Output:      os.Stdout,
		Verbose:     false,
	}
}

// Harness runs conversion benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "ran %s in %v\n", bench.Name, result.WallTime)
		}
		results = append(results, result)
	}

	return results
}

// runBenchmark generates a log for the workload and converts it.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	var log bytes.Buffer
	sum, err := tracegen.Generate(&log, bench.Workload)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.LogBytes = log.Len()

	cfg := config.Default()
	cfg.Source = bench.Workload.Source
	if !h.config.EnableCache {
		cfg.Decode.CacheEntries = 0
	}

	start := time.Now()
	conv, err := convert.Convert(&log, io.Discard, cfg)
	result.WallTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	s := conv.Stats
	result.Lines = conv.Parser.Lines
	result.Cycles = s.Cycles
	result.Ops = s.Ops
	result.Retired = s.Retired
	result.Flushed = s.Flushed
	result.Squashed = s.Squashed
	result.IPC = s.IPC()
	result.PeakLive = conv.Parser.PeakLive
	result.CacheHits = conv.Cache.Hits
	result.CacheLookups = conv.Cache.Lookups
	result.Diagnostics = len(conv.Diagnostics)

	result.Consistent = s.Retired == uint64(sum.RetiredOps) &&
		s.Flushed+s.Squashed == uint64(sum.FlushedOps+sum.SquashedOps) &&
		s.Cycles == sum.Cycles &&
		result.Diagnostics == 0

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== kanataconv Conversion Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
			_, _ = fmt.Fprintln(h.config.Output, "")
			continue
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Log ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Bytes:       %d\n", r.LogBytes)
		_, _ = fmt.Fprintf(h.config.Output, "  Lines:       %d\n", r.Lines)
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles:      %d\n", r.Cycles)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Ops ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Total:       %d\n", r.Ops)
		_, _ = fmt.Fprintf(h.config.Output, "  Retired:     %d\n", r.Retired)
		_, _ = fmt.Fprintf(h.config.Output, "  Flushed:     %d\n", r.Flushed)
		_, _ = fmt.Fprintf(h.config.Output, "  Squashed:    %d\n", r.Squashed)
		_, _ = fmt.Fprintf(h.config.Output, "  IPC:         %.3f\n", r.IPC)
		_, _ = fmt.Fprintf(h.config.Output, "  Peak Live:   %d\n", r.PeakLive)

		if r.CacheLookups > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Disasm Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:    %d\n", r.CacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Lookups: %d\n", r.CacheLookups)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Consistent: %v\n", r.Consistent)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,bytes,lines,cycles,ops,retired,flushed,squashed,ipc,peak_live,cache_hits,cache_lookups,consistent,wall_ns")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%d,%.3f,%d,%d,%d,%v,%d\n",
			r.Name,
			r.LogBytes,
			r.Lines,
			r.Cycles,
			r.Ops,
			r.Retired,
			r.Flushed,
			r.Squashed,
			r.IPC,
			r.PeakLive,
			r.CacheHits,
			r.CacheLookups,
			r.Consistent,
			r.WallTime.Nanoseconds(),
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// CacheEnabled reports whether the disassembly cache was used
	CacheEnabled bool `json:"cache_enabled"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks int           `json:"total_benchmarks"`
	TotalLines      uint64        `json:"total_lines"`
	TotalOps        uint64        `json:"total_ops"`
	LinesPerSecond  float64       `json:"lines_per_second"`
	AllConsistent   bool          `json:"all_consistent"`
	TotalWallTime   time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	summary := ReportSummary{
		TotalBenchmarks: len(results),
		AllConsistent:   true,
	}
	for _, r := range results {
		summary.TotalLines += r.Lines
		summary.TotalOps += r.Ops
		summary.TotalWallTime += r.WallTime
		summary.AllConsistent = summary.AllConsistent && r.Consistent
	}
	if summary.TotalWallTime > 0 {
		summary.LinesPerSecond = float64(summary.TotalLines) / summary.TotalWallTime.Seconds()
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			CacheEnabled: h.config.EnableCache,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
