// Validate disassembly caching - measures allocation savings of the
// disassembly cache over plain decoding of label words.
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/kanataconv/insts"
)

// Label words as they appear in an RSD log.
var words = []string{
	"00a00513", // addi a0, zero, 0xa
	"00b50633", // add a2, a0, a1
	"00812783", // lw a5, 0x8(sp)
	"00112623", // sw ra, 0xc(sp)
}

type disassembler interface {
	Disassemble(token string) string
}

func measure(name string, d disassembler, iterations int) {
	// Warm up
	for i := 0; i < 1000; i++ {
		d.Disassemble(words[i%len(words)])
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		for _, w := range words {
			d.Disassemble(w)
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	total := iterations * len(words)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Disassemblies: %d\n", total)
	fmt.Printf("  Time elapsed: %v\n", elapsed)
	fmt.Printf("  Disassemblies per second: %.0f\n", float64(total)/elapsed.Seconds())
	fmt.Printf("  Allocations per call: %.3f\n", float64(allocations)/float64(total))
	fmt.Printf("  Bytes per call: %.1f\n", float64(allocatedBytes)/float64(total))
}

func main() {
	const iterations = 100000

	decoder := insts.NewDecoder()
	cache := insts.NewCache(insts.DefaultCacheConfig(), decoder)

	fmt.Printf("Disassembly Cache Validation Results:\n")
	fmt.Printf("=====================================\n")
	measure("Decoder", decoder, iterations)
	measure("Cache", cache, iterations)

	stats := cache.Stats()
	fmt.Printf("\nCache hits: %d / %d lookups\n", stats.Hits, stats.Lookups)
	if stats.Misses == uint64(len(words)) {
		fmt.Printf("OK: every word decoded exactly once\n")
	} else {
		fmt.Printf("WARNING: %d misses for %d distinct words\n", stats.Misses, len(words))
	}
}
