// Package tracegen synthesizes RSD pipeline logs.
//
// The model is a single-issue, in-order pipeline over the stock RSD stage
// ids: one op is fetched per cycle, each op advances one stage per cycle
// unless the stage ahead is still occupied, and the oldest op commits from
// the retirement stage. Stalls at issue, branch mispredictions at execute
// and micro-op splitting are injected periodically, so the output is fully
// deterministic for a given Config.
package tracegen

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/rsd"
)

// Stage ids of the model.
const (
	DecodeStage  = 3
	IssueStage   = 7
	ExecuteStage = 9
)

// BasePC is the address of instruction 0.
const BasePC uint32 = 0x1000

// program is the instruction stream, repeated.
var program = []uint32{
	0x00a00513, // addi a0, zero, 0xa
	0x00b50633, // add a2, a0, a1
	0x00812783, // lw a5, 0x8(sp)
	0x00112623, // sw ra, 0xc(sp)
	0x02c58533, // mul a0, a1, a2
	0xfe050ce3, // beq a0, zero, -8
	0x12345537, // lui a0, 0x12345
	0x001000ef, // jal ra, 0x800
}

// Config controls the synthetic workload.
type Config struct {
	// Instructions is the number of instructions to commit.
	Instructions int
	// StallEvery makes every Nth instruction wait StallCycles cycles at
	// issue. 0 disables stalls.
	StallEvery  int
	StallCycles int
	// MispredictEvery makes every Nth instruction flush everything younger
	// when it reaches execute. 0 disables flushes.
	MispredictEvery int
	// SplitEvery splits every Nth instruction into two micro-ops. 0
	// disables splitting.
	SplitEvery int
	// Source describes the id space of the log.
	Source config.Source
}

// DefaultConfig returns a workload that exercises every lifecycle path.
func DefaultConfig() Config {
	return Config{
		Instructions:    1000,
		StallEvery:      7,
		StallCycles:     3,
		MispredictEvery: 23,
		SplitEvery:      5,
		Source:          config.DefaultSource(),
	}
}

// Validate checks that the model can run with the Config.
func (c Config) Validate() error {
	if c.Instructions < 0 {
		return errors.New("instructions must be >= 0")
	}
	if c.StallEvery < 0 || c.MispredictEvery < 0 || c.SplitEvery < 0 {
		return errors.New("periods must be >= 0")
	}
	if c.StallEvery > 0 && c.StallCycles <= 0 {
		return errors.New("stall cycles must be > 0 when stalls are enabled")
	}
	if c.SplitEvery > 0 && c.Source.MicroOpsPerInsn < 2 {
		return errors.New("splitting needs at least 2 micro-ops per instruction")
	}
	if c.Source.MicroOpsPerInsn == 0 {
		return errors.New("micro-ops per instruction must be > 0")
	}
	if c.Source.SerialWidth == 0 || c.Source.SerialWidth > 32 {
		return errors.New("serial width must be in 1..32")
	}
	if c.Source.RetirementStage <= ExecuteStage {
		return fmt.Errorf("retirement stage must be after execute stage %d", ExecuteStage)
	}
	return nil
}

// Summary describes a generated log.
type Summary struct {
	// Cycles is the number of cycle commands written.
	Cycles int64
	// Instructions is the number of committed instructions.
	Instructions int
	// RetiredOps is the number of committed micro-ops.
	RetiredOps int
	// FlushedOps is the number of micro-ops flushed after leaving stage 0.
	FlushedOps int
	// SquashedOps is the number of micro-ops flushed in stage 0.
	SquashedOps int
	// Stalls is the number of injected issue stalls.
	Stalls int
}

// Ops returns the number of micro-ops fetched.
func (s Summary) Ops() int {
	return s.RetiredOps + s.FlushedOps + s.SquashedOps
}

type op struct {
	insn   int
	serial int64
	index  int64
	pc     uint32
	word   uint32
	last   bool

	stage     int
	stall     bool
	stallLeft int
	stalled   bool
	flushed   bool
}

type generator struct {
	cfg    Config
	w      *rsd.Writer
	period int64

	// inflight is ordered oldest first.
	inflight []*op

	fetchN         int
	fetchIdx       int64
	serial         int64
	nextSerial     int64
	lastMispredict int

	sum Summary
}

// Generate writes a log of the workload to w.
func Generate(w io.Writer, cfg Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, fmt.Errorf("invalid workload: %w", err)
	}

	g := &generator{
		cfg:            cfg,
		w:              rsd.NewWriter(w),
		period:         int64(1) << cfg.Source.SerialWidth,
		lastMispredict: -1,
	}

	maxCycles := int64(cfg.Instructions+1) * int64(cfg.Source.RetirementStage+cfg.StallCycles+2) * 2

	g.w.Header()
	for g.fetchN < cfg.Instructions || len(g.inflight) > 0 {
		if g.sum.Cycles > maxCycles {
			return g.sum, fmt.Errorf("pipeline did not drain after %d cycles", g.sum.Cycles)
		}
		g.step()
	}

	if err := g.w.Flush(); err != nil {
		return g.sum, fmt.Errorf("failed to write trace: %w", err)
	}

	return g.sum, nil
}

func (g *generator) step() {
	g.w.NextCycle()
	g.sum.Cycles++

	g.commit()
	g.advance()
	// The wrong-path fetch of the redirect cycle is squashed with the rest.
	g.fetch()
	flushFrom := g.mispredict()
	g.report()

	if flushFrom >= 0 {
		for _, o := range g.inflight[flushFrom:] {
			if o.stage == 0 {
				g.sum.SquashedOps++
			} else {
				g.sum.FlushedOps++
			}
		}
		g.inflight = g.inflight[:flushFrom]
	}
}

// commit removes the op reported at the retirement stage last cycle.
func (g *generator) commit() {
	if len(g.inflight) == 0 || g.inflight[0].stage != g.cfg.Source.RetirementStage {
		return
	}

	head := g.inflight[0]
	g.inflight = g.inflight[1:]
	g.sum.RetiredOps++
	if head.last {
		g.sum.Instructions++
	}
}

// advance moves every op one stage forward, oldest first. An op waits while
// it is stalled or the stage ahead is held by an older op.
func (g *generator) advance() {
	ahead := g.cfg.Source.RetirementStage + 1
	for _, o := range g.inflight {
		switch {
		case o.stallLeft > 0:
			o.stallLeft--
			o.stall = true
		case o.stage+1 >= ahead:
			o.stall = true
		default:
			o.stage++
			o.stall = false
			if o.stage == IssueStage && g.stallsAt(o.insn) && !o.stalled {
				o.stalled = true
				o.stallLeft = g.cfg.StallCycles
				g.sum.Stalls++
			}
		}
		ahead = o.stage
	}
}

func (g *generator) stallsAt(insn int) bool {
	return g.cfg.StallEvery > 0 && insn%g.cfg.StallEvery == 0
}

// mispredict returns the index of the first op to flush, or -1.
func (g *generator) mispredict() int {
	if g.cfg.MispredictEvery == 0 {
		return -1
	}

	for i, o := range g.inflight {
		if o.stage != ExecuteStage || !o.last || o.insn <= g.lastMispredict {
			continue
		}
		if o.insn%g.cfg.MispredictEvery != 0 {
			continue
		}

		g.lastMispredict = o.insn
		for _, younger := range g.inflight[i+1:] {
			younger.flushed = true
		}
		g.fetchN = o.insn + 1
		g.fetchIdx = 0
		return i + 1
	}

	return -1
}

// fetch brings the next micro-op into stage 0 when it is free.
func (g *generator) fetch() {
	if g.fetchN >= g.cfg.Instructions {
		return
	}
	if n := len(g.inflight); n > 0 && g.inflight[n-1].stage == 0 {
		return
	}

	n := g.fetchN
	uops := int64(1)
	if g.cfg.SplitEvery > 0 && n%g.cfg.SplitEvery == 0 {
		uops = 2
	}

	if g.fetchIdx == 0 {
		g.serial = g.nextSerial
		g.nextSerial = (g.nextSerial + 1) % g.period
	}

	g.inflight = append(g.inflight, &op{
		insn:   n,
		serial: g.serial,
		index:  g.fetchIdx,
		pc:     BasePC + 4*uint32(n),
		word:   program[n%len(program)],
		last:   g.fetchIdx == uops-1,
	})

	g.fetchIdx++
	if g.fetchIdx == uops {
		g.fetchIdx = 0
		g.fetchN++
	}
}

// report writes the stage of every op, youngest first, followed by the
// label of the op in decode.
func (g *generator) report() {
	for i := len(g.inflight) - 1; i >= 0; i-- {
		o := g.inflight[i]
		g.w.Stage(rsd.StageReport{
			Valid:  true,
			Stage:  o.stage,
			Stall:  o.stall && !o.flushed,
			Clear:  o.flushed,
			Serial: o.serial,
			Index:  o.index,
		})
		if o.stage == DecodeStage && !o.flushed {
			g.w.Label(o.serial, o.index, o.pc, o.word)
		}
	}
}
