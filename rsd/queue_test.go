package rsd

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/kanataconv/trace"
)

type drained struct {
	cycle  int64
	events []trace.Event
}

var _ = Describe("eventQueue", func() {
	var (
		q   *eventQueue
		out []drained
	)

	deliver := func(cycle int64, events []trace.Event) {
		out = append(out, drained{cycle: cycle, events: events})
	}

	ev := func(gid trace.GID, kind trace.Kind) trace.Event {
		return trace.Event{GID: gid, Kind: kind}
	}

	BeforeEach(func() {
		q = newEventQueue()
		out = nil
	})

	It("should deliver cycles in ascending order", func() {
		q.push(5, ev(1, trace.KindRetire))
		q.push(3, ev(1, trace.KindInit))
		q.push(4, ev(1, trace.KindStageBegin))
		Expect(q.len()).To(Equal(3))

		q.drainAll(deliver)

		Expect(out).To(HaveLen(3))
		Expect(out[0].cycle).To(Equal(int64(3)))
		Expect(out[1].cycle).To(Equal(int64(4)))
		Expect(out[2].cycle).To(Equal(int64(5)))
		Expect(q.len()).To(Equal(0))
	})

	It("should keep arrival order within a cycle", func() {
		q.push(2, ev(7, trace.KindInit))
		q.push(2, ev(3, trace.KindInit))
		q.push(2, ev(7, trace.KindStageBegin))

		q.drainAll(deliver)

		Expect(out).To(HaveLen(1))
		Expect(out[0].events).To(Equal([]trace.Event{
			ev(7, trace.KindInit),
			ev(3, trace.KindInit),
			ev(7, trace.KindStageBegin),
		}))
	})

	It("should only deliver cycles older than the limit", func() {
		q.push(1, ev(1, trace.KindInit))
		q.push(2, ev(2, trace.KindInit))
		q.push(3, ev(3, trace.KindInit))

		q.drainBefore(3, deliver)

		Expect(out).To(HaveLen(2))
		Expect(out[1].cycle).To(Equal(int64(2)))
		Expect(q.len()).To(Equal(1))

		q.drainBefore(3, deliver)
		Expect(out).To(HaveLen(2))
	})

	It("should purge every event of one op", func() {
		q.push(1, ev(1, trace.KindInit))
		q.push(1, ev(2, trace.KindInit))
		q.push(2, ev(1, trace.KindStageBegin))
		q.push(3, ev(2, trace.KindStageBegin))

		Expect(q.purge(1)).To(Equal(2))
		Expect(q.len()).To(Equal(2))

		q.drainAll(deliver)

		Expect(out).To(HaveLen(2))
		Expect(out[0].cycle).To(Equal(int64(1)))
		Expect(out[0].events).To(Equal([]trace.Event{ev(2, trace.KindInit)}))
		Expect(out[1].cycle).To(Equal(int64(3)))
	})

	It("should do nothing when purging an unknown op", func() {
		q.push(1, ev(1, trace.KindInit))
		Expect(q.purge(9)).To(Equal(0))
		Expect(q.len()).To(Equal(1))
	})
})
