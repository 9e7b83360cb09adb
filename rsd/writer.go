package rsd

import (
	"bufio"
	"fmt"
	"io"
)

// Writer produces logs in the format dumped by the RSD core. It is used to
// build test inputs and synthetic workloads.
//
// Write errors are sticky: after the first failure every call is a no-op
// and Flush returns the error.
type Writer struct {
	w     *bufio.Writer
	cycle int64
	err   error
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), cycle: InitialCycle}
}

func (w *Writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

// Header writes the format line and the field legend.
func (w *Writer) Header() {
	w.printf("%s\t%04d\n", Header, Version)
	w.printf("#\tS:\n")
	w.printf("#\tstage_id\tvalid\tstall\tclear\tiid\tmid\n")
	w.printf("#\tL:\n")
	w.printf("#\tiid\tmid\tpc\tcode\n")
}

// NextCycle advances the log by one cycle.
func (w *Writer) NextCycle() {
	w.Cycles(1)
}

// Cycles advances the log by delta cycles.
func (w *Writer) Cycles(delta int64) {
	w.cycle += delta
	w.printf("%s\t%11d\n", CmdCycle, delta)
	w.printf("#\tcycle:%d\n", w.cycle)
}

// Stage writes one stage report. An invalid report is written with an
// undefined valid flag.
func (w *Writer) Stage(r StageReport) {
	if !r.Valid {
		w.printf("%s\t%d\t%s\t0\t0\t0\t0\t\n", CmdStage, r.Stage, InvalidField)
		return
	}
	w.printf("%s\t%d\t1\t%d\t%d\t%d\t%d\t%s\n",
		CmdStage, r.Stage, b2i(r.Stall), b2i(r.Clear), r.Serial, r.Index, r.Comment)
}

// Label writes the instruction of an op.
func (w *Writer) Label(serial, index int64, pc, insn uint32) {
	w.printf("%s\t%d\t%d\t%08x\t%08x\n", CmdLabel, serial, index, pc, insn)
}

// Comment writes a comment line.
func (w *Writer) Comment(text string) {
	w.printf("%s\t%s\n", CmdComment, text)
}

// Cycle returns the cycle of the last advance.
func (w *Writer) Cycle() int64 {
	return w.cycle
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
