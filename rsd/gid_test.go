package rsd

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/kanataconv/config"
	"github.com/sarchlab/kanataconv/trace"
)

var _ = Describe("gidReconstructor", func() {
	var r *gidReconstructor

	BeforeEach(func() {
		r = newGIDReconstructor(config.DefaultSource())
	})

	reconstruct := func(serial, index int64) trace.GID {
		gid, err := r.reconstruct(serial, index)
		Expect(err).NotTo(HaveOccurred())
		return gid
	}

	It("should use the raw id before anything retires", func() {
		Expect(reconstruct(0, 0)).To(Equal(trace.GID(0)))
		Expect(reconstruct(1, 2)).To(Equal(trace.GID(6)))
		Expect(reconstruct(1023, 3)).To(Equal(trace.GID(4095)))
	})

	It("should reject micro-op indices outside the instruction", func() {
		_, err := r.reconstruct(3, 4)
		Expect(err).To(MatchError(ErrIndexRange))

		_, err = r.reconstruct(3, -1)
		Expect(err).To(MatchError(ErrIndexRange))
	})

	It("should reject negative serials", func() {
		_, err := r.reconstruct(-1, 0)
		Expect(err).To(MatchError(ErrMalformedLine))
	})

	It("should continue counting when the serial wraps", func() {
		Expect(r.retire(4088)).To(BeTrue())
		Expect(reconstruct(1023, 0)).To(Equal(trace.GID(4092)))

		Expect(r.retire(4092)).To(BeTrue())
		Expect(reconstruct(0, 0)).To(Equal(trace.GID(4096)))
		Expect(reconstruct(1, 1)).To(Equal(trace.GID(4101)))
	})

	It("should keep late reports below the last retired id", func() {
		r.retire(4100)
		Expect(reconstruct(1023, 3)).To(Equal(trace.GID(4095)))
		Expect(reconstruct(1, 0)).To(Equal(trace.GID(4100)))
	})

	It("should move across several periods", func() {
		r.retire(8000)
		Expect(reconstruct(0, 0)).To(Equal(trace.GID(8192)))
		Expect(reconstruct(976, 0)).To(Equal(trace.GID(8000)))
	})

	It("should not move the maximum backwards", func() {
		Expect(r.retire(100)).To(BeTrue())
		Expect(r.retire(40)).To(BeFalse())
		Expect(r.maxRetired).To(Equal(trace.GID(100)))
	})
})

var _ = Describe("floorDiv", func() {
	DescribeTable("should round towards negative infinity",
		func(a, b, want int64) {
			Expect(floorDiv(a, b)).To(Equal(want))
		},
		Entry("exact", int64(8), int64(4), int64(2)),
		Entry("positive", int64(7), int64(4), int64(1)),
		Entry("negative", int64(-1), int64(4), int64(-1)),
		Entry("negative exact", int64(-8), int64(4), int64(-2)),
		Entry("zero", int64(0), int64(4), int64(0)),
	)
})
