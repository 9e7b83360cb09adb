// Package diag collects the recoverable anomalies found while converting a
// trace. Anomalies never stop a conversion; they are recorded here and
// mirrored to a structured logger.
package diag

import (
	"context"
	"fmt"
	"log/slog"
)

// Kind classifies an anomaly.
type Kind uint8

// Anomaly kinds.
const (
	// RedefinedOp: an Init arrived for a gid that is still registered.
	RedefinedOp Kind = iota
	// StaleOp: a report referenced a retired or flushed op.
	StaleOp
	// NonMonotonicID: id reconstruction produced an id at or below one
	// already seen.
	NonMonotonicID
	// UnknownOp: an event or label referenced a gid that is not live.
	UnknownOp
	// UnknownStage: a stage id has no name.
	UnknownStage

	numKinds
)

var kindNames = [numKinds]string{
	RedefinedOp:    "redefined-op",
	StaleOp:        "stale-op",
	NonMonotonicID: "non-monotonic-id",
	UnknownOp:      "unknown-op",
	UnknownStage:   "unknown-stage",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Diagnostic is one recorded anomaly.
type Diagnostic struct {
	Kind    Kind
	Cycle   int64
	GID     int64
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("cycle %d gid %d: %s: %s", d.Cycle, d.GID, d.Kind, d.Message)
}

// DefaultLimit is the default number of diagnostics a Collector stores.
const DefaultLimit = 10000

// Collector records diagnostics. The zero value is not usable; call
// NewCollector.
type Collector struct {
	logger *slog.Logger
	limit  int

	list   []Diagnostic
	counts [numKinds]int
	total  int
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLogger mirrors every diagnostic to logger at warn level.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithLimit caps the number of stored diagnostics. Counts keep growing past
// the cap. A limit <= 0 stores nothing.
func WithLimit(limit int) CollectorOption {
	return func(c *Collector) {
		c.limit = limit
	}
}

// NewCollector creates a Collector. Without WithLogger nothing is logged.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{limit: DefaultLimit}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warnf records an anomaly.
func (c *Collector) Warnf(kind Kind, cycle, gid int64, format string, args ...any) {
	d := Diagnostic{
		Kind:    kind,
		Cycle:   cycle,
		GID:     gid,
		Message: fmt.Sprintf(format, args...),
	}

	c.total++
	if kind < numKinds {
		c.counts[kind]++
	}
	if len(c.list) < c.limit {
		c.list = append(c.list, d)
	}

	if c.logger != nil && c.logger.Enabled(context.Background(), slog.LevelWarn) {
		c.logger.Warn(d.Message,
			slog.String("kind", kind.String()),
			slog.Int64("cycle", cycle),
			slog.Int64("gid", gid),
		)
	}
}

// Diagnostics returns a copy of the stored diagnostics in recording order.
func (c *Collector) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(c.list))
	copy(out, c.list)
	return out
}

// Len returns the number of anomalies recorded, including those past the
// storage limit.
func (c *Collector) Len() int {
	return c.total
}

// Count returns the number of anomalies of one kind.
func (c *Collector) Count(kind Kind) int {
	if kind >= numKinds {
		return 0
	}
	return c.counts[kind]
}

// Counts returns the per-kind totals, omitting kinds never seen.
func (c *Collector) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for k, n := range c.counts {
		if n > 0 {
			out[Kind(k)] = n
		}
	}
	return out
}
