package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/kanataconv/insts"
)

var _ = Describe("Insts Package", func() {
	It("should have an Instruction type", func() {
		var i insts.Instruction
		Expect(i).To(BeZero())
	})

	It("should have a Decoder type", func() {
		decoder := insts.NewDecoder()
		Expect(decoder).ToNot(BeNil())
	})

	It("should name all 32 integer and float registers", func() {
		for i := 0; i < 32; i++ {
			Expect(insts.IntRegName[i]).ToNot(BeEmpty())
			Expect(insts.FloatRegName[i]).ToNot(BeEmpty())
		}
		Expect(insts.IntRegName[0]).To(Equal("zero"))
		Expect(insts.FloatRegName[31]).To(Equal("ft11"))
	})

	It("should render out-of-range ops as unknown", func() {
		Expect(insts.Op(9999).String()).To(Equal("unknown"))
	})
})
