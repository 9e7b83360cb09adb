package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// InvalidWord is the sentinel the RSD dumper writes for an undefined
// instruction word.
const InvalidWord = "xxxxxxxx"

// IntRegName maps integer register numbers to ABI names.
var IntRegName = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0/fp", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// FloatRegName maps floating-point register numbers to ABI names.
var FloatRegName = [32]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

// Disassemble decodes a hex instruction token as written in an RSD log and
// renders it. Empty, undefined or non-hex tokens yield "invalid:<token>".
func Disassemble(token string) string {
	return defaultDecoder.Disassemble(token)
}

var defaultDecoder = NewDecoder()

// Disassemble decodes a hex instruction token and renders it.
func (d *Decoder) Disassemble(token string) string {
	word, ok := ParseWord(token)
	if !ok {
		return invalid(token)
	}

	return d.Decode(word).String()
}

// ParseWord parses a hex instruction token. It fails on empty, undefined
// and non-hex tokens.
func ParseWord(token string) (uint32, bool) {
	token = strings.TrimSpace(token)
	if token == "" || token == InvalidWord {
		return 0, false
	}

	digits := strings.TrimPrefix(strings.TrimPrefix(token, "0x"), "0X")
	word, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, false
	}

	return uint32(word), true
}

func invalid(token string) string {
	return "invalid:" + strings.TrimSpace(token)
}

// hex renders a value the way the annotations show immediates: the 32-bit
// two's complement pattern in lower-case hex.
func hex(v int32) string {
	return "0x" + strconv.FormatUint(uint64(uint32(v)), 16)
}

// String renders the instruction in assembler syntax.
func (i *Instruction) String() string {
	x := IntRegName
	f := FloatRegName
	m := i.Op.String()

	switch i.Format {
	case FormatLoad, FormatJALR:
		return fmt.Sprintf("%s %s, %s(%s)", m, x[i.Rd], hex(i.Imm), x[i.Rs1])
	case FormatLoadFP:
		return fmt.Sprintf("%s %s, %s(%s)", m, f[i.Rd], hex(i.Imm), x[i.Rs1])
	case FormatStore:
		return fmt.Sprintf("%s %s, %s(%s)", m, x[i.Rs2], hex(i.Imm), x[i.Rs1])
	case FormatStoreFP:
		return fmt.Sprintf("%s %s, %s(%s)", m, f[i.Rs2], hex(i.Imm), x[i.Rs1])
	case FormatBranch:
		return fmt.Sprintf("%s %s, %s, %s", m, x[i.Rs1], x[i.Rs2], hex(i.Imm))
	case FormatJAL, FormatAUIPC, FormatLUI:
		return fmt.Sprintf("%s %s, %s", m, x[i.Rd], hex(i.Imm))
	case FormatOpImm:
		return fmt.Sprintf("%s %s, %s, %s", m, x[i.Rd], x[i.Rs1], hex(i.Imm))
	case FormatOp:
		return fmt.Sprintf("%s %s, %s, %s", m, x[i.Rd], x[i.Rs1], x[i.Rs2])
	case FormatMiscMem:
		return i.miscMemString()
	case FormatSystem:
		return i.systemString()
	default:
		return fmt.Sprintf("unknown %x", i.Word)
	}
}

func (i *Instruction) miscMemString() string {
	switch i.Op {
	case OpFENCE:
		return fmt.Sprintf("fence %s, %s", fenceSet(i.Pred), fenceSet(i.Succ))
	case OpFENCEI:
		return "fence.i"
	default:
		return "unknown misc-mem"
	}
}

// fenceSet renders a 4-bit FENCE ordering set as its "iorw" letters.
func fenceSet(set uint8) string {
	if set == 0 {
		return "0"
	}

	var b strings.Builder
	for bit, c := range "iorw" {
		if set&(0x8>>bit) != 0 {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (i *Instruction) systemString() string {
	x := IntRegName
	csr := fmt.Sprintf("0x%03x", i.CSR)

	switch i.Op {
	case OpECALL, OpEBREAK, OpURET, OpSRET, OpMRET, OpWFI:
		return i.Op.String()
	case OpSFENCEVMA:
		return fmt.Sprintf("sfence.vma %s, %s", x[i.Rs1], x[i.Rs2])
	case OpCSRRW, OpCSRRS, OpCSRRC:
		return fmt.Sprintf("%s %s, %s, %s", i.Op, x[i.Rd], csr, x[i.Rs1])
	case OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return fmt.Sprintf("%s %s, %s, 0x%03x", i.Op, x[i.Rd], csr, i.Zimm)
	default:
		return "unknown system"
	}
}
