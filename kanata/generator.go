// Package kanata renders pipeline lifecycle events in the Kanata log format
// (version 0004) read by the Konata pipeline viewer.
//
// Every op receives two output-local numbers: a sid when it is first seen
// and an rid when it retires or is flushed. Both are sequence numbers that
// are independent of the op's gid.
package kanata

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/diag"
	"github.com/sarchlab/kanataconv/trace"
)

// Format constants.
const (
	Header  = "Kanata"
	Version = "0004"

	// InitialCycle is the cycle the log starts at.
	InitialCycle int64 = -1
)

// Commands.
const (
	CmdInit       = "I"
	CmdLabel      = "L"
	CmdCycle      = "C"
	CmdStageBegin = "S"
	CmdStageEnd   = "E"
	CmdRetire     = "R"
)

// Lanes.
const (
	LaneDefault = 0
	LaneStall   = 1

	// StallStage is the stage name drawn in the stall lane.
	StallStage = "stl"
)

// Retirement kinds.
const (
	RetireCommit = 0
	RetireFlush  = 1
)

// Label kinds.
const (
	// LabelAbstract is shown in the left pane.
	LabelAbstract = 0
	// LabelDetail is shown in the tool-tip of the left pane.
	LabelDetail = 1
	// LabelStage is shown in the tool-tip of a stage.
	LabelStage = 2
)

// DefaultGCInterval is the gid period at which retirements drop stale
// registrations.
const DefaultGCInterval = 64

// Option configures a Generator.
type Option func(*Generator)

// WithStageNames sets the names drawn for each stage id.
func WithStageNames(names []string) Option {
	return func(g *Generator) {
		g.stageNames = append([]string(nil), names...)
	}
}

// WithThreadID sets the thread id written in Init commands.
func WithThreadID(id int) Option {
	return func(g *Generator) {
		g.threadID = id
	}
}

// WithDiagnostics sets the collector anomalies are reported to.
func WithDiagnostics(c *diag.Collector) Option {
	return func(g *Generator) {
		g.diags = c
	}
}

// WithGCInterval sets the gid period of the registration sweep.
func WithGCInterval(n uint64) Option {
	return func(g *Generator) {
		g.gcInterval = n
	}
}

// WithOutput applies the output section of a configuration.
func WithOutput(out config.Output) Option {
	return func(g *Generator) {
		if len(out.StageNames) > 0 {
			WithStageNames(out.StageNames)(g)
		}
		g.threadID = out.ThreadID
	}
}

// Generator writes a Kanata log. It implements trace.Sink.
//
// Write errors are sticky: after the first failure nothing more is written
// and Err and Flush return the error.
type Generator struct {
	w          *bufio.Writer
	stageNames []string
	threadID   int
	gcInterval uint64
	diags      *diag.Collector

	sids    map[trace.GID]int64
	nextSID int64
	nextRID int64
	lastGID trace.GID
	anyInit bool

	cycle   int64
	started bool
	err     error
}

// NewGenerator creates a Generator writing to w.
func NewGenerator(w io.Writer, opts ...Option) *Generator {
	g := &Generator{
		w:          bufio.NewWriter(w),
		stageNames: config.DefaultStageNames,
		gcInterval: DefaultGCInterval,
		sids:       make(map[trace.GID]int64),
		cycle:      InitialCycle,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.diags == nil {
		g.diags = diag.NewCollector()
	}
	if g.gcInterval == 0 {
		g.gcInterval = DefaultGCInterval
	}

	return g
}

func (g *Generator) printf(format string, args ...any) {
	if g.err != nil {
		return
	}
	_, g.err = fmt.Fprintf(g.w, format, args...)
}

// WriteHeader writes the file header. It is written automatically before
// the first command if not called.
func (g *Generator) WriteHeader() error {
	if !g.started {
		g.started = true
		g.printf("%s\t%s\n", Header, Version)
		g.printf("%s=\t%d\n", CmdCycle, InitialCycle)
	}
	return g.err
}

// OnCycle writes a cycle advance.
func (g *Generator) OnCycle(cycle int64) {
	g.WriteHeader()

	if cycle > g.cycle {
		g.printf("%s\t%d\n", CmdCycle, cycle-g.cycle)
	}
	g.cycle = cycle
}

// OnEvent writes the commands of one event.
func (g *Generator) OnEvent(ev trace.Event) {
	g.WriteHeader()

	if ev.Kind == trace.KindInit {
		g.onInit(ev)
		return
	}

	sid, ok := g.sids[ev.GID]
	if !ok {
		g.diags.Warnf(diag.UnknownOp, g.cycle, int64(ev.GID), "%s event for unregistered op", ev.Kind)
		return
	}

	switch ev.Kind {
	case trace.KindStageBegin:
		g.printf("%s\t%d\t%d\t%s\n", CmdStageBegin, sid, LaneDefault, g.stageName(ev))
		g.comment(sid, ev.Text)
	case trace.KindStageEnd:
		g.printf("%s\t%d\t%d\t%s\n", CmdStageEnd, sid, LaneDefault, g.stageName(ev))
	case trace.KindStallBegin:
		g.printf("%s\t%d\t%d\t%s\n", CmdStageBegin, sid, LaneStall, StallStage)
		g.comment(sid, ev.Text)
	case trace.KindStallEnd:
		g.printf("%s\t%d\t%d\t%s\n", CmdStageEnd, sid, LaneStall, StallStage)
	case trace.KindRetire:
		g.retire(ev.GID, sid, RetireCommit)
	case trace.KindFlush:
		g.retire(ev.GID, sid, RetireFlush)
	case trace.KindLabel:
		g.printf("%s\t%d\t%d\t%s\n", CmdLabel, sid, LabelAbstract, ev.Text)
	default:
		panic(fmt.Sprintf("kanata: unhandled event kind %s", ev.Kind))
	}
}

func (g *Generator) onInit(ev trace.Event) {
	if _, ok := g.sids[ev.GID]; ok {
		g.diags.Warnf(diag.RedefinedOp, g.cycle, int64(ev.GID), "op is initialized twice")
		return
	}
	if g.anyInit && ev.GID < g.lastGID {
		g.diags.Warnf(diag.NonMonotonicID, g.cycle, int64(ev.GID),
			"op initialized after op %d", g.lastGID)
	}
	g.lastGID = ev.GID
	g.anyInit = true

	sid := g.nextSID
	g.nextSID++
	g.sids[ev.GID] = sid

	g.printf("%s\t%d\t%d\t%d\n", CmdInit, sid, ev.GID, g.threadID)
	g.printf("%s\t%d\t%d\t(g:%d,c0)\\n\n", CmdLabel, sid, LabelDetail, ev.GID)
}

// comment attaches text to both the op and the current stage.
func (g *Generator) comment(sid int64, text string) {
	if text == "" {
		return
	}
	g.printf("%s\t%d\t%d\t%s\n", CmdLabel, sid, LabelDetail, text)
	g.printf("%s\t%d\t%d\t%s\n", CmdLabel, sid, LabelStage, text)
}

func (g *Generator) retire(gid trace.GID, sid int64, kind int) {
	g.printf("%s\t%d\t%d\t%d\n", CmdRetire, sid, g.nextRID, kind)
	g.nextRID++
	delete(g.sids, gid)

	if kind == RetireCommit && uint64(gid)%g.gcInterval == 0 {
		for other := range g.sids {
			if other < gid {
				delete(g.sids, other)
			}
		}
	}
}

func (g *Generator) stageName(ev trace.Event) string {
	if ev.Stage >= 0 && ev.Stage < len(g.stageNames) {
		return g.stageNames[ev.Stage]
	}
	g.diags.Warnf(diag.UnknownStage, g.cycle, int64(ev.GID), "no name for stage %d", ev.Stage)
	return strconv.Itoa(ev.Stage)
}

// Registered returns the number of ops that have a sid and are not yet
// retired or flushed.
func (g *Generator) Registered() int {
	return len(g.sids)
}

// Counts returns the number of sids and rids handed out.
func (g *Generator) Counts() (sids, rids int64) {
	return g.nextSID, g.nextRID
}

// Err returns the first write error.
func (g *Generator) Err() error {
	return g.err
}

// Flush writes buffered output to the underlying writer. The header is
// written first if nothing else was.
func (g *Generator) Flush() error {
	g.WriteHeader()
	if g.err != nil {
		return g.err
	}
	g.err = g.w.Flush()
	return g.err
}
