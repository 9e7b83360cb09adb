package rsd

import (
	"fmt"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/trace"
)

// gidReconstructor turns the (serial, index) pairs of the log into ids that
// stay unique after the serial counter wraps.
//
// The raw id serial*K+index repeats every period P = 2^W*K. Once something
// has retired, the raw id is moved by a multiple of P into the window
// (maxRetired - P/4, maxRetired + 3P/4]. Ops in flight are younger than the
// last retired op, so most of the window lies above it. The quarter-period
// split assumes fewer than P/4 ids are in flight behind a late report.
type gidReconstructor struct {
	k      int64
	period int64

	maxRetired trace.GID
	anyRetired bool
}

func newGIDReconstructor(src config.Source) *gidReconstructor {
	return &gidReconstructor{
		k:      int64(src.MicroOpsPerInsn),
		period: src.WrapPeriod(),
	}
}

// raw returns serial*K+index without wrap correction.
func (r *gidReconstructor) raw(serial, index int64) (trace.GID, error) {
	if index < 0 || index >= r.k {
		return 0, fmt.Errorf("%w: index %d at serial %d", ErrIndexRange, index, serial)
	}
	if serial < 0 {
		return 0, fmt.Errorf("%w: negative serial %d", ErrMalformedLine, serial)
	}
	return trace.GID(serial*r.k + index), nil
}

// reconstruct returns the unique id of a (serial, index) pair.
func (r *gidReconstructor) reconstruct(serial, index int64) (trace.GID, error) {
	gid, err := r.raw(serial, index)
	if err != nil {
		return 0, err
	}

	if !r.anyRetired {
		return gid, nil
	}

	lo := int64(r.maxRetired) - r.period/4
	n := floorDiv(lo-int64(gid), r.period) + 1
	return gid + trace.GID(n*r.period), nil
}

// retire records a retired id. It reports whether the maximum advanced.
func (r *gidReconstructor) retire(gid trace.GID) bool {
	if r.anyRetired && gid <= r.maxRetired {
		return false
	}
	r.maxRetired = gid
	r.anyRetired = true
	return true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
