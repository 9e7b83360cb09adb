package rsd

import (
	"errors"
	"fmt"
)

// Fatal format errors. They are returned wrapped in a *ParseError.
var (
	ErrMissingHeader  = errors.New("missing RSD_Kanata header")
	ErrUnknownFormat  = errors.New("unknown file format")
	ErrUnknownVersion = errors.New("unknown file version")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMalformedLine  = errors.New("malformed line")
	ErrIndexRange     = errors.New("micro-op index exceeds micro-ops per instruction")
)

// ParseError reports a fatal problem at a line of the source trace.
type ParseError struct {
	// Line is the 1-based line number.
	Line int
	// Text is the offending line without its terminator.
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
