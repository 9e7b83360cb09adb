package rsd_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/diag"
	"github.com/sarchlab/kanataconv/rsd"
	"github.com/sarchlab/kanataconv/trace"
)

const header = "RSD_Kanata\t0000\n"

func rsdLog(lines ...string) string {
	return header + strings.Join(lines, "\n") + "\n"
}

func parse(text string, opts ...rsd.ParserOption) (*trace.Recorder, *rsd.Parser, error) {
	rec := trace.NewRecorder()
	p := rsd.NewParser(rec, opts...)
	err := p.Parse(strings.NewReader(text))
	return rec, p, err
}

func mustParse(text string, opts ...rsd.ParserOption) (*trace.Recorder, *rsd.Parser) {
	rec, p, err := parse(text, opts...)
	Expect(err).NotTo(HaveOccurred())
	return rec, p
}

// cycleProbe records, for each delivered cycle, the parser cycle at the
// time of delivery.
type cycleProbe struct {
	p    *rsd.Parser
	seen [][2]int64
}

func (c *cycleProbe) OnCycle(cycle int64) {
	c.seen = append(c.seen, [2]int64{cycle, c.p.Cycle()})
}

func (c *cycleProbe) OnEvent(trace.Event) {}

var _ = Describe("Parser", func() {
	Context("lifecycle", func() {
		It("should follow an op from fetch to commit", func() {
			rec, p := mustParse(rsdLog(
				"C\t1",
				"S\t0\t1\t0\t0\t0\t0\tnp",
				"C\t1",
				"S\t1\t1\t0\t0\t0\t0\t",
				"L\t0\t0\t00001000\t00000013",
				"C\t1",
				"S\t14\t1\t0\t0\t0\t0\t",
			))

			Expect(rec.Events).To(Equal([]trace.Event{
				{GID: 0, Kind: trace.KindInit, Stage: 0},
				{GID: 0, Kind: trace.KindStageBegin, Stage: 0, Text: "np"},
				{GID: 0, Kind: trace.KindStageEnd, Stage: 0},
				{GID: 0, Kind: trace.KindStageBegin, Stage: 1},
				{GID: 0, Kind: trace.KindLabel, Stage: 1, Text: "00001000: addi zero, zero, 0x0"},
				{GID: 0, Kind: trace.KindStageEnd, Stage: 1},
				{GID: 0, Kind: trace.KindStageBegin, Stage: 14},
				{GID: 0, Kind: trace.KindStageEnd, Stage: 14},
				{GID: 0, Kind: trace.KindRetire, Stage: 14},
			}))
			Expect(rec.EventCycles).To(Equal([]int64{0, 0, 1, 1, 1, 2, 2, 3, 3}))
			Expect(rec.Cycles).To(Equal([]int64{0, 1, 2, 3}))

			stats := p.Stats()
			Expect(stats.Ops).To(Equal(uint64(1)))
			Expect(stats.Retired).To(Equal(uint64(1)))
			Expect(stats.Labels).To(Equal(uint64(1)))
			Expect(stats.StageReports).To(Equal(uint64(3)))
			Expect(stats.FinalCycle).To(Equal(int64(2)))
			Expect(p.Diagnostics()).To(BeEmpty())
		})

		It("should start an op that first appears in a later stage", func() {
			rec, _ := mustParse(rsdLog(
				"C\t1",
				"S\t5\t1\t0\t0\t3\t1\tissue",
			))

			Expect(rec.Events).To(Equal([]trace.Event{
				{GID: 13, Kind: trace.KindInit, Stage: 5},
				{GID: 13, Kind: trace.KindStageBegin, Stage: 5, Text: "issue"},
			}))
		})

		It("should hold events back by the drain margin", func() {
			probe := &cycleProbe{}
			p := rsd.NewParser(probe)
			probe.p = p

			err := p.Parse(strings.NewReader(rsdLog(
				"C\t1", "S\t0\t1\t0\t0\t0\t0\t",
				"C\t1", "S\t1\t1\t0\t0\t0\t0\t",
				"C\t1", "S\t2\t1\t0\t0\t0\t0\t",
				"C\t1", "S\t3\t1\t0\t0\t0\t0\t",
				"C\t1", "S\t4\t1\t0\t0\t0\t0\t",
				"C\t1", "S\t5\t1\t0\t0\t0\t0\t",
			)))

			Expect(err).NotTo(HaveOccurred())
			Expect(probe.seen).To(Equal([][2]int64{
				{0, 3}, {1, 4}, {2, 5}, {3, 5}, {4, 5}, {5, 5},
			}))
		})

		It("should accept padded cycle deltas and skip comments", func() {
			rec, p := mustParse(rsdLog(
				"#\tS:",
				"C\t          1",
				"#\tcycle:0",
				"",
				"S\t2\t1\t0\t0\t0\t0\t",
				"C\t          3",
				"S\t3\t1\t0\t0\t0\t0\t",
			))

			Expect(rec.Cycles).To(Equal([]int64{0, 3}))
			Expect(p.Stats().FinalCycle).To(Equal(int64(3)))
		})

		It("should accept CRLF line endings", func() {
			rec, _ := mustParse("RSD_Kanata\t0000\r\nC\t1\r\nS\t2\t1\t0\t0\t0\t0\tx\r\n")

			Expect(rec.Events).To(HaveLen(2))
			Expect(rec.Events[1].Text).To(Equal("x"))
		})

		It("should ignore invalid slots", func() {
			rec, p := mustParse(rsdLog(
				"C\t1",
				"S\t3\tx\t0\t0\t0\t0\t",
				"S\t4\t0\t0\t0\t1\t0\t",
				"S\t5\tx",
			))

			Expect(rec.Events).To(BeEmpty())
			Expect(p.Stats().StageReports).To(BeZero())
		})
	})

	Context("stalls", func() {
		It("should open and close a stall in place", func() {
			rec, _ := mustParse(rsdLog(
				"C\t1", "S\t1\t1\t0\t0\t0\t0\ta",
				"C\t1", "S\t1\t1\t1\t0\t0\t0\tb",
				"C\t1", "S\t1\t1\t1\t0\t0\t0\tb",
				"C\t1", "S\t1\t1\t0\t0\t0\t0\tc",
			))

			Expect(rec.ForGID(0)).To(Equal([]trace.Kind{
				trace.KindInit,
				trace.KindStageBegin,
				trace.KindStallBegin,
				trace.KindStallEnd,
				trace.KindStageEnd,
				trace.KindStageBegin,
			}))
			Expect(rec.Events[2].Text).To(Equal("b"))
			Expect(rec.Events[5].Text).To(Equal("c"))
			Expect(rec.EventCycles[3]).To(Equal(int64(3)))
		})

		It("should close a stage only once when a stall ends with a move", func() {
			rec, _ := mustParse(rsdLog(
				"C\t1", "S\t1\t1\t1\t0\t0\t0\t",
				"C\t1", "S\t2\t1\t0\t0\t0\t0\t",
			))

			Expect(rec.Events).To(Equal([]trace.Event{
				{GID: 0, Kind: trace.KindInit, Stage: 1},
				{GID: 0, Kind: trace.KindStageBegin, Stage: 1},
				{GID: 0, Kind: trace.KindStallBegin, Stage: 1},
				{GID: 0, Kind: trace.KindStallEnd, Stage: 1},
				{GID: 0, Kind: trace.KindStageEnd, Stage: 1},
				{GID: 0, Kind: trace.KindStageBegin, Stage: 2},
			}))
		})

		It("should treat a stalled and cleared slot as a bubble", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t3\t1\t0\t0\t0\t0\t",
				"C\t1", "S\t3\t1\t1\t1\t0\t0\t",
			))

			Expect(rec.ForGID(0)).To(Equal([]trace.Kind{
				trace.KindInit,
				trace.KindStageBegin,
				trace.KindStallBegin,
			}))
			Expect(p.Stats().Flushed).To(BeZero())
		})
	})

	Context("flushes", func() {
		It("should flush an op once", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t3\t1\t0\t0\t2\t0\t",
				"C\t1", "S\t3\t1\t0\t1\t2\t0\tbr",
				"C\t1", "S\t3\t1\t0\t1\t2\t0\tbr",
			))

			Expect(rec.Events).To(Equal([]trace.Event{
				{GID: 8, Kind: trace.KindInit, Stage: 3},
				{GID: 8, Kind: trace.KindStageBegin, Stage: 3},
				{GID: 8, Kind: trace.KindStageEnd, Stage: 3},
				{GID: 8, Kind: trace.KindFlush, Stage: 3, Text: "br"},
			}))
			Expect(p.Stats().Flushed).To(Equal(uint64(1)))
			Expect(p.Diagnostics()).To(BeEmpty())
		})

		It("should warn about a flushed op that is reported again", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t3\t1\t0\t0\t2\t0\t",
				"C\t1", "S\t3\t1\t0\t1\t2\t0\t",
				"C\t1", "S\t4\t1\t0\t0\t2\t0\t",
			))

			Expect(rec.ForGID(8)).To(HaveLen(4))
			diags := p.Diagnostics()
			Expect(diags).To(HaveLen(1))
			Expect(diags[0].Kind).To(Equal(diag.StaleOp))
			Expect(diags[0].GID).To(Equal(int64(8)))
			Expect(diags[0].Cycle).To(Equal(int64(2)))
		})

		It("should drop an op flushed in stage 0 before it was delivered", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t0\t1\t0\t0\t1\t0\t",
				"C\t1", "S\t0\t1\t0\t1\t1\t0\t",
			))

			Expect(rec.Events).To(BeEmpty())
			Expect(rec.Cycles).To(BeEmpty())
			Expect(p.Stats().Squashed).To(Equal(uint64(1)))
			Expect(p.Stats().Flushed).To(BeZero())
		})

		It("should drop an op flushed in stage 0 on its first report", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t0\t1\t0\t1\t1\t0\t",
			))

			Expect(rec.Events).To(BeEmpty())
			Expect(p.Stats().Squashed).To(Equal(uint64(1)))
		})

		It("should close a stage 0 op whose start was already delivered", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t0\t1\t0\t0\t1\t0\t",
				"C\t1",
				"C\t1",
				"C\t1", "S\t0\t1\t0\t1\t1\t0\t",
			))

			Expect(rec.ForGID(4)).To(Equal([]trace.Kind{
				trace.KindInit,
				trace.KindStageBegin,
				trace.KindStageEnd,
				trace.KindFlush,
			}))
			Expect(p.Stats().Squashed).To(BeZero())
			Expect(p.Stats().Flushed).To(Equal(uint64(1)))
		})

		It("should retire rather than flush an op cleared at commit", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t13\t1\t0\t0\t0\t0\t",
				"C\t1", "S\t14\t1\t0\t1\t0\t0\t",
			))

			Expect(rec.ForGID(0)).To(Equal([]trace.Kind{
				trace.KindInit,
				trace.KindStageBegin,
				trace.KindStageEnd,
				trace.KindStageBegin,
				trace.KindStageEnd,
				trace.KindRetire,
			}))
			Expect(p.Stats().Flushed).To(BeZero())
		})
	})

	Context("ids", func() {
		It("should keep ids increasing across a serial wrap", func() {
			var lines []string
			for _, serial := range []string{"1022", "1023", "0", "1"} {
				lines = append(lines,
					"C\t1", "S\t0\t1\t0\t0\t"+serial+"\t0\t",
					"C\t1", "S\t14\t1\t0\t0\t"+serial+"\t0\t",
				)
			}

			rec, p := mustParse(rsdLog(lines...))

			var inits []trace.GID
			for _, ev := range rec.Events {
				if ev.Kind == trace.KindInit {
					inits = append(inits, ev.GID)
				}
			}
			Expect(inits).To(Equal([]trace.GID{4088, 4092, 4096, 4100}))
			Expect(p.Stats().Retired).To(Equal(uint64(4)))
			Expect(p.Diagnostics()).To(BeEmpty())
		})

		It("should warn about a new op below the last retired id", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t0\t1\t0\t0\t2\t0\t",
				"C\t1", "S\t14\t1\t0\t0\t2\t0\t",
				"C\t1", "S\t5\t1\t0\t0\t1\t0\t",
			))

			Expect(rec.ForGID(4)).To(Equal([]trace.Kind{
				trace.KindInit,
				trace.KindStageBegin,
			}))
			diags := p.Diagnostics()
			Expect(diags).To(HaveLen(1))
			Expect(diags[0].Kind).To(Equal(diag.NonMonotonicID))
			Expect(diags[0].GID).To(Equal(int64(4)))
		})

		It("should drop a flush of an op below the last retired id", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t0\t1\t0\t0\t2\t0\t",
				"C\t1", "S\t14\t1\t0\t0\t2\t0\t",
				"C\t1", "S\t5\t1\t0\t1\t1\t0\t",
			))

			Expect(rec.ForGID(4)).To(BeEmpty())
			Expect(p.Diagnostics()).To(BeEmpty())
		})

		It("should forget ops older than a collected retirement", func() {
			var buf strings.Builder
			w := rsd.NewWriter(&buf)
			w.Header()
			w.NextCycle()
			w.Stage(rsd.StageReport{Valid: true, Stage: 3, Serial: 5, Index: 1})
			for i := int64(0); i <= 32; i++ {
				w.NextCycle()
				w.Stage(rsd.StageReport{Valid: true, Stage: 0, Serial: i})
				w.NextCycle()
				w.Stage(rsd.StageReport{Valid: true, Stage: 14, Serial: i})
			}
			Expect(w.Flush()).To(Succeed())

			rec, p := mustParse(buf.String())

			stats := p.Stats()
			Expect(stats.Retired).To(Equal(uint64(33)))
			Expect(stats.Sweeps).To(Equal(uint64(3)))
			Expect(stats.LiveOps).To(Equal(1))
			Expect(rec.ForGID(21)).To(Equal([]trace.Kind{
				trace.KindInit,
				trace.KindStageBegin,
			}))
		})
	})

	Context("labels", func() {
		It("should annotate an op only once", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t3\t1\t0\t0\t0\t0\t",
				"L\t0\t0\t00000100\t00000013",
				"C\t1", "S\t3\t1\t0\t0\t0\t0\t",
				"L\t0\t0\t00000100\t00100093",
			))

			var labels []string
			for _, ev := range rec.Events {
				if ev.Kind == trace.KindLabel {
					labels = append(labels, ev.Text)
				}
			}
			Expect(labels).To(Equal([]string{"00000100: addi zero, zero, 0x0"}))
			Expect(p.Stats().Labels).To(Equal(uint64(1)))
		})

		It("should mark undefined instruction words", func() {
			rec, _ := mustParse(rsdLog(
				"C\t1", "S\t3\t1\t0\t0\t0\t0\t",
				"L\t0\t0\t00000100\txxxxxxxx",
			))

			Expect(rec.Events[2].Text).To(Equal("00000100: invalid:xxxxxxxx"))
		})

		It("should warn about a label for an unknown op", func() {
			rec, p := mustParse(rsdLog(
				"C\t1",
				"L\t9\t0\t00000100\t00000013",
			))

			Expect(rec.Events).To(BeEmpty())
			diags := p.Diagnostics()
			Expect(diags).To(HaveLen(1))
			Expect(diags[0].Kind).To(Equal(diag.UnknownOp))
			Expect(diags[0].GID).To(Equal(int64(36)))
		})

		It("should ignore a label for a flushed op", func() {
			rec, p := mustParse(rsdLog(
				"C\t1", "S\t3\t1\t0\t1\t0\t0\t",
				"L\t0\t0\t00000100\t00000013",
			))

			Expect(rec.ForGID(0)).NotTo(ContainElement(trace.KindLabel))
			Expect(p.Diagnostics()).To(BeEmpty())
		})
	})

	Context("configuration", func() {
		It("should honor a different retirement stage", func() {
			src := config.DefaultSource()
			src.RetirementStage = 5

			rec, _ := mustParse(rsdLog(
				"C\t1", "S\t4\t1\t0\t0\t0\t0\t",
				"C\t1", "S\t5\t1\t0\t0\t0\t0\t",
			), rsd.WithSource(src))

			Expect(rec.ForGID(0)).To(ContainElement(trace.KindRetire))
		})

		It("should report to the given collector", func() {
			c := diag.NewCollector()
			_, _ = mustParse(rsdLog(
				"C\t1",
				"L\t1\t0\t00000100\t00000013",
			), rsd.WithDiagnostics(c))

			Expect(c.Count(diag.UnknownOp)).To(Equal(1))
		})
	})

	Context("errors", func() {
		DescribeTable("should stop on a malformed log",
			func(text string, want error, line int) {
				_, _, err := parse(text)

				Expect(err).To(MatchError(want))
				var perr *rsd.ParseError
				Expect(errors.As(err, &perr)).To(BeTrue())
				Expect(perr.Line).To(Equal(line))
			},
			Entry("empty input", "", rsd.ErrMissingHeader, 1),
			Entry("foreign header", "Kanata\t0004\n", rsd.ErrUnknownFormat, 1),
			Entry("unknown version", "RSD_Kanata\t0001\n", rsd.ErrUnknownVersion, 1),
			Entry("missing version", "RSD_Kanata\n", rsd.ErrUnknownVersion, 1),
			Entry("unknown command", rsdLog("C\t1", "Q\t1"), rsd.ErrUnknownCommand, 3),
			Entry("bad cycle delta", rsdLog("C\tabc"), rsd.ErrMalformedLine, 2),
			Entry("negative cycle delta", rsdLog("C\t-1"), rsd.ErrMalformedLine, 2),
			Entry("short stage report", rsdLog("S\t1\t1\t0"), rsd.ErrMalformedLine, 2),
			Entry("bad serial", rsdLog("S\t1\t1\t0\t0\tz\t0\t"), rsd.ErrMalformedLine, 2),
			Entry("short label", rsdLog("L\t1\t0"), rsd.ErrMalformedLine, 2),
			Entry("index out of range", rsdLog("S\t1\t1\t0\t0\t0\t4\t"), rsd.ErrIndexRange, 2),
		)

		It("should include the offending line in the message", func() {
			_, _, err := parse(rsdLog("Q\t1"))
			Expect(err.Error()).To(ContainSubstring(`"Q\t1"`))
		})
	})
})
