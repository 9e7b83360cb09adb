// Package rsd reads the pipeline log dumped by the RSD core ("RSD_Kanata"
// format) and reconstructs the lifecycle of every micro-op in it.
//
// The log reports, cycle by cycle, which op occupies each pipeline slot and
// whether it is stalled or cleared. The Parser turns those snapshots into
// Init/Stage/Stall/Retire/Flush/Label events, holds them back for a few
// cycles so later reports can still revise them, and then delivers them to
// a trace.Sink in cycle order.
package rsd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/diag"
	"github.com/sarchlab/kanataconv/insts"
	"github.com/sarchlab/kanataconv/trace"
)

// Source log header and commands.
const (
	Header  = "RSD_Kanata"
	Version = 0

	CmdStage   = "S"
	CmdLabel   = "L"
	CmdCycle   = "C"
	CmdComment = "#"

	// InvalidField marks an undefined valid flag.
	InvalidField = "x"
)

// InitialCycle is the cycle before the first cycle command.
const InitialCycle int64 = -1

// maxLineSize bounds a single log line; comments can be long.
const maxLineSize = 1 << 20

type opState uint8

const (
	opActive opState = iota
	opRetired
	opFlushed
)

func (s opState) String() string {
	switch s {
	case opRetired:
		return "retired"
	case opFlushed:
		return "flushed"
	default:
		return "active"
	}
}

// opRecord is the last known state of a live op.
type opRecord struct {
	stage   int
	stall   bool
	clear   bool
	updated int64
	labeled bool
	state   opState
}

// StageReport is one S line of the log.
type StageReport struct {
	Stage   int
	Valid   bool
	Stall   bool
	Clear   bool
	Serial  int64
	Index   int64
	Comment string
}

// Statistics summarizes a parse.
type Statistics struct {
	// Lines is the number of lines read, header included.
	Lines uint64
	// StageReports is the number of valid S lines.
	StageReports uint64
	// Labels is the number of label annotations queued.
	Labels uint64
	// Ops is the number of ops created.
	Ops uint64
	// Retired is the number of ops that reached the retirement stage.
	Retired uint64
	// Flushed is the number of ops flushed after leaving stage 0.
	Flushed uint64
	// Squashed is the number of ops flushed in stage 0 before any of their
	// events were delivered; they never appear in the output.
	Squashed uint64
	// Sweeps is the number of live-table garbage collections.
	Sweeps uint64
	// FinalCycle is the cycle counter at the end of input.
	FinalCycle int64
	// PeakLive is the largest live-table size seen.
	PeakLive int
	// LiveOps is the live-table size at the time of the call.
	LiveOps int
}

// ParserOption is a functional option for configuring the Parser.
type ParserOption func(*Parser)

// WithSource sets the shape of the source log.
func WithSource(src config.Source) ParserOption {
	return func(p *Parser) {
		p.src = src
	}
}

// WithDiagnostics sets the collector anomalies are reported to.
func WithDiagnostics(c *diag.Collector) ParserOption {
	return func(p *Parser) {
		p.diags = c
	}
}

// Disassembler renders the instruction word of a label line.
type Disassembler interface {
	Disassemble(token string) string
}

// WithDisassembler sets the disassembler used for label annotations.
// *insts.Decoder and *insts.Cache both qualify.
func WithDisassembler(d Disassembler) ParserOption {
	return func(p *Parser) {
		p.disasm = d
	}
}

// Parser converts an RSD log into an ordered event stream.
// A Parser is good for one Parse call.
type Parser struct {
	sink   trace.Sink
	src    config.Source
	disasm Disassembler
	diags  *diag.Collector

	ids   *gidReconstructor
	queue *eventQueue

	live      map[trace.GID]*opRecord
	flushed   map[trace.GID]struct{}
	delivered map[trace.GID]struct{}

	cycle int64
	line  int
	stats Statistics
}

// NewParser creates a Parser delivering events to sink.
func NewParser(sink trace.Sink, opts ...ParserOption) *Parser {
	p := &Parser{
		sink:      sink,
		src:       config.DefaultSource(),
		queue:     newEventQueue(),
		live:      make(map[trace.GID]*opRecord),
		flushed:   make(map[trace.GID]struct{}),
		delivered: make(map[trace.GID]struct{}),
		cycle:     InitialCycle,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.disasm == nil {
		p.disasm = insts.NewDecoder()
	}
	if p.diags == nil {
		p.diags = diag.NewCollector()
	}
	p.ids = newGIDReconstructor(p.src)

	return p
}

// Parse reads the whole log from r. On success every buffered event has
// been delivered. A fatal format problem is returned as a *ParseError and
// stops the parse at that line.
func (p *Parser) Parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read trace: %w", err)
		}
		return &ParseError{Line: 1, Err: ErrMissingHeader}
	}

	p.line = 1
	p.stats.Lines = 1
	if err := p.processHeader(scanner.Text()); err != nil {
		return err
	}

	for scanner.Scan() {
		p.line++
		p.stats.Lines++
		if err := p.processLine(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	p.queue.drainAll(p.deliver)
	p.stats.FinalCycle = p.cycle

	return nil
}

// Stats returns the parse statistics so far.
func (p *Parser) Stats() Statistics {
	s := p.stats
	s.FinalCycle = p.cycle
	s.LiveOps = len(p.live)
	return s
}

// Diagnostics returns the anomalies recorded so far.
func (p *Parser) Diagnostics() []diag.Diagnostic {
	return p.diags.Diagnostics()
}

// Cycle returns the current cycle counter.
func (p *Parser) Cycle() int64 {
	return p.cycle
}

func (p *Parser) fail(text string, err error) error {
	return &ParseError{Line: p.line, Text: text, Err: err}
}

func splitFields(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r\n"), "\t")
}

func (p *Parser) processHeader(line string) error {
	words := splitFields(line)

	if strings.TrimPrefix(words[0], "\ufeff") != Header {
		return p.fail(line, ErrUnknownFormat)
	}

	if len(words) < 2 {
		return p.fail(line, ErrUnknownVersion)
	}
	version, err := strconv.Atoi(strings.TrimSpace(words[1]))
	if err != nil || version != Version {
		return p.fail(line, fmt.Errorf("%w: %s", ErrUnknownVersion, words[1]))
	}

	return nil
}

func (p *Parser) processLine(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	words := splitFields(line)
	cmd := words[0]

	switch {
	case cmd == CmdStage:
		return p.onStageLine(line, words)
	case cmd == CmdLabel:
		return p.onLabelLine(line, words)
	case cmd == CmdCycle:
		return p.onCycleLine(line, words)
	case strings.HasPrefix(cmd, CmdComment):
		return nil
	default:
		return p.fail(line, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd))
	}
}

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return v, nil
}

// parseStageReport decodes 'S', stage, valid, stall, clear, serial, index,
// comment. The remaining fields of an invalid report are not inspected.
func parseStageReport(words []string) (StageReport, error) {
	var r StageReport

	if len(words) < 3 {
		return r, fmt.Errorf("%w: stage report needs 7 fields", ErrMalformedLine)
	}

	if strings.TrimSpace(words[2]) != InvalidField {
		valid, err := parseInt(words[2])
		if err != nil {
			return r, err
		}
		r.Valid = valid != 0
	}
	if !r.Valid {
		return r, nil
	}

	if len(words) < 7 {
		return r, fmt.Errorf("%w: stage report needs 7 fields", ErrMalformedLine)
	}

	var nums [5]int64
	for i, w := range []string{words[1], words[3], words[4], words[5], words[6]} {
		v, err := parseInt(w)
		if err != nil {
			return r, err
		}
		nums[i] = v
	}

	r.Stage = int(nums[0])
	r.Stall = nums[1] != 0
	r.Clear = nums[2] != 0
	r.Serial = nums[3]
	r.Index = nums[4]
	if len(words) > 7 {
		r.Comment = strings.Join(words[7:], "\t")
	}

	if r.Stage < 0 {
		return r, fmt.Errorf("%w: negative stage id %d", ErrMalformedLine, r.Stage)
	}

	return r, nil
}

func (p *Parser) onStageLine(line string, words []string) error {
	r, err := parseStageReport(words)
	if err != nil {
		return p.fail(line, err)
	}
	if !r.Valid {
		return nil
	}

	p.stats.StageReports++
	if err := p.onStage(r); err != nil {
		return p.fail(line, err)
	}
	return nil
}

// onLabelLine decodes 'L', serial, index, pc, code.
func (p *Parser) onLabelLine(line string, words []string) error {
	if len(words) < 5 {
		return p.fail(line, fmt.Errorf("%w: label needs 5 fields", ErrMalformedLine))
	}

	serial, err := parseInt(words[1])
	if err != nil {
		return p.fail(line, err)
	}
	index, err := parseInt(words[2])
	if err != nil {
		return p.fail(line, err)
	}

	if err := p.onLabel(serial, index, strings.TrimSpace(words[3]), strings.TrimSpace(words[4])); err != nil {
		return p.fail(line, err)
	}
	return nil
}

// onCycleLine decodes 'C', delta.
func (p *Parser) onCycleLine(line string, words []string) error {
	if len(words) < 2 {
		return p.fail(line, fmt.Errorf("%w: cycle command needs a delta", ErrMalformedLine))
	}

	delta, err := parseInt(words[1])
	if err != nil {
		return p.fail(line, err)
	}
	if delta < 0 {
		return p.fail(line, fmt.Errorf("%w: negative cycle delta %d", ErrMalformedLine, delta))
	}

	p.advance(delta)
	return nil
}

// advance moves the cycle counter and delivers every cycle that has
// settled.
func (p *Parser) advance(delta int64) {
	p.cycle += delta
	p.queue.drainBefore(p.cycle-p.src.DrainMargin, p.deliver)
}

func (p *Parser) push(cycle int64, gid trace.GID, kind trace.Kind, stage int, text string) {
	p.queue.push(cycle, trace.Event{GID: gid, Kind: kind, Stage: stage, Text: text})
}

// onStage applies one valid stage report to the live table.
func (p *Parser) onStage(r StageReport) error {
	gid, err := p.ids.reconstruct(r.Serial, r.Index)
	if err != nil {
		return err
	}

	// Both stall and clear asserted means a bubble is sent, not a flush.
	flush := r.Clear && !r.Stall

	prev, seen := p.live[gid]
	_, wasFlushed := p.flushed[gid]

	if wasFlushed || (seen && prev.state != opActive) {
		// Ops in the backend may be flushed more than once, since they sit
		// both in pipeline stages and in the active list.
		if !flush {
			state := opFlushed
			if seen {
				state = prev.state
			}
			p.diags.Warnf(diag.StaleOp, p.cycle, int64(gid),
				"stage %d reported for an op that is already %s", r.Stage, state)
		}
		return nil
	}

	now := p.cycle
	cur := &opRecord{
		stage:   r.Stage,
		stall:   r.Stall,
		clear:   r.Clear,
		updated: now,
		state:   opActive,
	}

	if !seen {
		if p.ids.anyRetired && gid <= p.ids.maxRetired {
			if flush {
				return nil
			}
			p.diags.Warnf(diag.NonMonotonicID, p.cycle, int64(gid),
				"new op at or below the last retired id %d", p.ids.maxRetired)
		}

		p.push(now, gid, trace.KindInit, r.Stage, "")
		p.push(now, gid, trace.KindStageBegin, r.Stage, r.Comment)
		if r.Stall {
			p.push(now, gid, trace.KindStallBegin, r.Stage, "")
		}
		p.stats.Ops++
	} else {
		cur.labeled = prev.labeled
		if p.transition(gid, prev, cur, r.Comment) {
			p.live[gid] = cur
			return nil
		}
	}

	if flush {
		if r.Stage == 0 {
			if _, ok := p.delivered[gid]; !ok {
				// Flushed in the next-PC stage: the op never existed.
				delete(p.live, gid)
				p.queue.purge(gid)
				p.stats.Squashed++
				return nil
			}
		}

		p.push(now, gid, trace.KindStageEnd, r.Stage, "")
		p.push(now, gid, trace.KindFlush, r.Stage, r.Comment)
		cur.state = opFlushed
		p.flushed[gid] = struct{}{}
		p.stats.Flushed++
	}

	p.live[gid] = cur
	if len(p.live) > p.stats.PeakLive {
		p.stats.PeakLive = len(p.live)
	}

	return nil
}

// transition queues the events between two reports of the same op. It
// reports whether the op retired.
func (p *Parser) transition(gid trace.GID, prev, cur *opRecord, comment string) bool {
	now := p.cycle

	if prev.stall && !cur.stall {
		p.push(now, gid, trace.KindStallEnd, prev.stage, "")
		if prev.stage == cur.stage {
			// Reopen the stage to attach the new comment.
			p.push(now, gid, trace.KindStageEnd, prev.stage, "")
			p.push(now, gid, trace.KindStageBegin, cur.stage, comment)
		}
	}

	if !prev.stall && cur.stall {
		p.push(now, gid, trace.KindStallBegin, cur.stage, comment)
	}

	if prev.stage == cur.stage {
		return false
	}

	p.push(now, gid, trace.KindStageEnd, prev.stage, "")
	p.push(now, gid, trace.KindStageBegin, cur.stage, comment)

	if cur.stage != p.src.RetirementStage {
		return false
	}

	// The commit stage is closed one cycle later so it shows a width.
	p.push(now+1, gid, trace.KindStageEnd, cur.stage, "")
	p.push(now+1, gid, trace.KindRetire, cur.stage, "")
	cur.state = opRetired
	p.retire(gid)

	return true
}

// retire updates the retirement bookkeeping and runs the periodic sweep.
func (p *Parser) retire(gid trace.GID) {
	p.stats.Retired++

	if p.ids.retire(gid) {
		for g := range p.flushed {
			if g < gid {
				delete(p.flushed, g)
			}
		}
	}

	interval := p.src.GCInterval
	if p.stats.Retired%interval == 0 || uint64(gid)%interval == 0 {
		p.sweep()
	}
}

// sweep drops every record older than the last retired op, bounding the
// live table to the ops in flight.
func (p *Parser) sweep() {
	limit := p.ids.maxRetired
	for g := range p.live {
		if g < limit {
			delete(p.live, g)
		}
	}
	for g := range p.flushed {
		if g < limit {
			delete(p.flushed, g)
		}
	}
	p.stats.Sweeps++
}

// onLabel attaches the disassembly of an op's instruction to its first
// label line.
func (p *Parser) onLabel(serial, index int64, pc, code string) error {
	gid, err := p.ids.reconstruct(serial, index)
	if err != nil {
		return err
	}

	rec, ok := p.live[gid]
	if !ok {
		p.diags.Warnf(diag.UnknownOp, p.cycle, int64(gid), "label for an op that is not live")
		return nil
	}
	if rec.labeled || rec.state != opActive {
		return nil
	}

	rec.labeled = true
	p.push(p.cycle, gid, trace.KindLabel, rec.stage, pc+": "+p.disasm.Disassemble(code))
	p.stats.Labels++

	return nil
}

// deliver forwards one settled cycle to the sink. Only ops whose Init has
// been delivered and that have not terminated receive events.
func (p *Parser) deliver(cycle int64, events []trace.Event) {
	p.sink.OnCycle(cycle)

	for _, ev := range events {
		if ev.Kind == trace.KindInit {
			p.delivered[ev.GID] = struct{}{}
		} else if _, ok := p.delivered[ev.GID]; !ok {
			p.diags.Warnf(diag.UnknownOp, cycle, int64(ev.GID),
				"%s event for an op that is not live", ev.Kind)
			continue
		}

		p.sink.OnEvent(ev)

		if ev.Kind.Terminal() {
			delete(p.delivered, ev.GID)
		}
		if ev.Kind == trace.KindRetire && uint64(ev.GID)%p.src.GCInterval == 0 {
			for g := range p.delivered {
				if g < ev.GID {
					delete(p.delivered, g)
				}
			}
		}
	}
}
