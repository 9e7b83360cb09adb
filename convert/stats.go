package convert

import (
	"time"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/trace"
)

// Statistics holds conversion statistics.
type Statistics struct {
	// Cycles is the number of source cycles covered.
	Cycles int64
	// Ops is the number of ops written to the output.
	Ops uint64
	// Retired is the number of ops written as committed.
	Retired uint64
	// Flushed is the number of ops written as flushed.
	Flushed uint64
	// Squashed is the number of ops flushed in stage 0 and left out.
	Squashed uint64
	// Stalls is the number of stall intervals.
	Stalls uint64
	// Labels is the number of instruction labels.
	Labels uint64
}

// IPC returns retired ops per cycle.
func (s Statistics) IPC() float64 {
	if s.Cycles <= 0 {
		return 0
	}
	return float64(s.Retired) / float64(s.Cycles)
}

// FlushRate returns the fraction of written ops that were flushed.
func (s Statistics) FlushRate() float64 {
	if s.Ops == 0 {
		return 0
	}
	return float64(s.Flushed) / float64(s.Ops)
}

// SimulatedTime returns the time the covered cycles take at the given
// clock.
func (s Statistics) SimulatedTime(clock config.Clock) time.Duration {
	if s.Cycles <= 0 || clock.FrequencyGHz <= 0 {
		return 0
	}
	return time.Duration(float64(s.Cycles) / clock.FrequencyGHz * float64(time.Nanosecond))
}

// counter is a trace.Sink that counts what is delivered to the generator.
type counter struct {
	stats Statistics
}

func (c *counter) OnCycle(int64) {}

func (c *counter) OnEvent(ev trace.Event) {
	switch ev.Kind {
	case trace.KindInit:
		c.stats.Ops++
	case trace.KindRetire:
		c.stats.Retired++
	case trace.KindFlush:
		c.stats.Flushed++
	case trace.KindStallBegin:
		c.stats.Stalls++
	case trace.KindLabel:
		c.stats.Labels++
	}
}
