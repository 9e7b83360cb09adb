// Package main provides a profiling wrapper for kanataconv to identify
// performance bottlenecks in the parser and the generator.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/convert"
	"github.com/sarchlab/kanataconv/tracegen"
)

var (
	cpuProfile   = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile   = flag.String("memprofile", "", "write memory profile to file")
	instructions = flag.Int("instructions", 200000, "instructions in the synthetic workload")
	noCache      = flag.Bool("no-cache", false, "disable the disassembly cache")
	output       = flag.String("o", "", "write the Kanata log to file instead of discarding it")
)

func main() {
	flag.Parse()

	var input []byte
	inputName := "synthetic"
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading log: %v\n", err)
			os.Exit(1)
		}
		input = data
		inputName = flag.Arg(0)
	} else {
		wl := tracegen.DefaultConfig()
		wl.Instructions = *instructions

		var buf bytes.Buffer
		sum, err := tracegen.Generate(&buf, wl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating workload: %v\n", err)
			os.Exit(1)
		}
		input = buf.Bytes()
		fmt.Printf("Generated: %d ops over %d cycles (%d bytes)\n", sum.Ops(), sum.Cycles, len(input))
	}

	var out io.Writer = io.Discard
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	cfg := config.Default()
	if *noCache {
		cfg.Decode.CacheEntries = 0
	}

	start := time.Now()
	result, err := convert.Convert(bytes.NewReader(input), out, cfg)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error converting %s: %v\n", inputName, err)
		os.Exit(1)
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Input: %s\n", inputName)
	fmt.Printf("Lines parsed: %d\n", result.Parser.Lines)
	fmt.Printf("Ops converted: %d\n", result.Stats.Ops)
	fmt.Printf("Peak live ops: %d\n", result.Parser.PeakLive)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("Lines/second: %.0f\n", float64(result.Parser.Lines)/elapsed.Seconds())
		fmt.Printf("Ops/second: %.0f\n", float64(result.Stats.Ops)/elapsed.Seconds())
	}
	if c := result.Cache; c.Lookups > 0 {
		fmt.Printf("Disasm cache hit rate: %.1f%%\n", 100*float64(c.Hits)/float64(c.Lookups))
	}
}
