// Package trace defines the lifecycle events that flow from the RSD parser
// to an output generator, and the sink interface between them.
package trace

import "fmt"

// GID is the converter-wide unique id of one micro-op instance.
type GID int64

// Kind identifies a lifecycle event.
type Kind uint8

// Lifecycle event kinds.
const (
	KindInit Kind = iota
	KindStageBegin
	KindStageEnd
	KindStallBegin
	KindStallEnd
	KindRetire
	KindFlush
	KindLabel

	numKinds
)

var kindNames = [numKinds]string{
	KindInit:       "Init",
	KindStageBegin: "StageBegin",
	KindStageEnd:   "StageEnd",
	KindStallBegin: "StallBegin",
	KindStallEnd:   "StallEnd",
	KindRetire:     "Retire",
	KindFlush:      "Flush",
	KindLabel:      "Label",
}

// String returns the kind name.
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k < numKinds
}

// Terminal reports whether the event ends an op's lifetime.
func (k Kind) Terminal() bool {
	return k == KindRetire || k == KindFlush
}

// Event is one lifecycle step of a micro-op.
type Event struct {
	GID   GID
	Kind  Kind
	Stage int
	// Text is the annotation attached to the event. Empty means none.
	Text string
}

func (e Event) String() string {
	return fmt.Sprintf("{gid:%d, kind:%s, stage:%d, text:%q}", e.GID, e.Kind, e.Stage, e.Text)
}

// Sink consumes the ordered event stream.
//
// OnCycle is called before the events of a cycle are delivered. Cycles are
// delivered in ascending order, and events within a cycle in arrival order.
type Sink interface {
	OnCycle(cycle int64)
	OnEvent(ev Event)
}

// Recorder is a Sink that keeps everything it receives. Tests and the
// statistics tee use it.
type Recorder struct {
	Cycles []int64
	Events []Event
	// EventCycles holds the cycle each entry of Events was delivered in.
	EventCycles []int64

	current int64
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{current: -1}
}

// OnCycle records a cycle advance.
func (r *Recorder) OnCycle(cycle int64) {
	r.Cycles = append(r.Cycles, cycle)
	r.current = cycle
}

// OnEvent records an event.
func (r *Recorder) OnEvent(ev Event) {
	r.Events = append(r.Events, ev)
	r.EventCycles = append(r.EventCycles, r.current)
}

// ForGID returns the kinds of all recorded events of one op, in order.
func (r *Recorder) ForGID(gid GID) []Kind {
	var kinds []Kind
	for _, ev := range r.Events {
		if ev.GID == gid {
			kinds = append(kinds, ev.Kind)
		}
	}
	return kinds
}

// Tee forwards every call to all sinks in order.
type Tee []Sink

// OnCycle forwards a cycle advance.
func (t Tee) OnCycle(cycle int64) {
	for _, s := range t {
		s.OnCycle(cycle)
	}
}

// OnEvent forwards an event.
func (t Tee) OnEvent(ev Event) {
	for _, s := range t {
		s.OnEvent(ev)
	}
}
