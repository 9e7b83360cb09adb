package benchmarks

import (
	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/tracegen"
)

// GetWorkloads returns the standard set of conversion workloads. Each one
// stresses a different part of the op lifecycle.
func GetWorkloads() []Benchmark {
	return []Benchmark{
		straightLine(),
		stallHeavy(),
		flushHeavy(),
		microOps(),
		mixed(),
		narrowSerial(),
	}
}

func workload(n int) tracegen.Config {
	return tracegen.Config{
		Instructions: n,
		Source:       config.DefaultSource(),
	}
}

func straightLine() Benchmark {
	return Benchmark{
		Name:        "straight_line",
		Description: "No stalls or flushes, one micro-op per instruction",
		Workload:    workload(20000),
	}
}

func stallHeavy() Benchmark {
	w := workload(20000)
	w.StallEvery = 2
	w.StallCycles = 4
	return Benchmark{
		Name:        "stall_heavy",
		Description: "Every other instruction stalls at issue",
		Workload:    w,
	}
}

func flushHeavy() Benchmark {
	w := workload(20000)
	w.MispredictEvery = 3
	return Benchmark{
		Name:        "flush_heavy",
		Description: "Frequent mispredictions flush the younger ops",
		Workload:    w,
	}
}

func microOps() Benchmark {
	w := workload(20000)
	w.SplitEvery = 1
	return Benchmark{
		Name:        "micro_ops",
		Description: "Every instruction splits into two micro-ops",
		Workload:    w,
	}
}

func mixed() Benchmark {
	w := tracegen.DefaultConfig()
	w.Instructions = 20000
	return Benchmark{
		Name:        "mixed",
		Description: "Stalls, flushes and micro-op splits together",
		Workload:    w,
	}
}

func narrowSerial() Benchmark {
	w := tracegen.DefaultConfig()
	w.Instructions = 20000
	w.Source.SerialWidth = 6
	return Benchmark{
		Name:        "narrow_serial",
		Description: "A 6-bit serial counter wraps every 64 instructions",
		Workload:    w,
	}
}
