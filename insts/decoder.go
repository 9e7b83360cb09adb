// Package insts provides RV32IM instruction definitions and decoding.
package insts

// Op represents a RISC-V operation.
type Op uint16

// RISC-V operations.
const (
	OpUnknown Op = iota

	// Loads and stores
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpFLW
	OpFLD
	OpFSW
	OpFSD

	// Control transfer
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpJALR
	OpJAL

	// Integer register-immediate
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// Integer register-register
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	// M extension
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	// Upper immediate
	OpAUIPC
	OpLUI

	// Memory ordering
	OpFENCE
	OpFENCEI

	// System
	OpECALL
	OpEBREAK
	OpURET
	OpSRET
	OpMRET
	OpWFI
	OpSFENCEVMA
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI
)

var opNames = [...]string{
	OpUnknown:   "unknown",
	OpLB:        "lb",
	OpLH:        "lh",
	OpLW:        "lw",
	OpLBU:       "lbu",
	OpLHU:       "lhu",
	OpSB:        "sb",
	OpSH:        "sh",
	OpSW:        "sw",
	OpFLW:       "flw",
	OpFLD:       "fld",
	OpFSW:       "fsw",
	OpFSD:       "fsd",
	OpBEQ:       "beq",
	OpBNE:       "bne",
	OpBLT:       "blt",
	OpBGE:       "bge",
	OpBLTU:      "bltu",
	OpBGEU:      "bgeu",
	OpJALR:      "jalr",
	OpJAL:       "jal",
	OpADDI:      "addi",
	OpSLTI:      "slti",
	OpSLTIU:     "sltiu",
	OpXORI:      "xori",
	OpORI:       "ori",
	OpANDI:      "andi",
	OpSLLI:      "slli",
	OpSRLI:      "srli",
	OpSRAI:      "srai",
	OpADD:       "add",
	OpSUB:       "sub",
	OpSLL:       "sll",
	OpSLT:       "slt",
	OpSLTU:      "sltu",
	OpXOR:       "xor",
	OpSRL:       "srl",
	OpSRA:       "sra",
	OpOR:        "or",
	OpAND:       "and",
	OpMUL:       "mul",
	OpMULH:      "mulh",
	OpMULHSU:    "mulhsu",
	OpMULHU:     "mulhu",
	OpDIV:       "div",
	OpDIVU:      "divu",
	OpREM:       "rem",
	OpREMU:      "remu",
	OpAUIPC:     "auipc",
	OpLUI:       "lui",
	OpFENCE:     "fence",
	OpFENCEI:    "fence.i",
	OpECALL:     "ecall",
	OpEBREAK:    "ebreak",
	OpURET:      "uret",
	OpSRET:      "sret",
	OpMRET:      "mret",
	OpWFI:       "wfi",
	OpSFENCEVMA: "sfence.vma",
	OpCSRRW:     "csrrw",
	OpCSRRS:     "csrrs",
	OpCSRRC:     "csrrc",
	OpCSRRWI:    "csrrwi",
	OpCSRRSI:    "csrrsi",
	OpCSRRCI:    "csrrci",
}

// String returns the assembler mnemonic of the operation.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return opNames[OpUnknown]
}

// Format represents an instruction encoding class selected by the opcode.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatLoad           // I-type loads
	FormatLoadFP         // I-type floating-point loads
	FormatStore          // S-type stores
	FormatStoreFP        // S-type floating-point stores
	FormatBranch         // B-type conditional branches
	FormatJALR           // I-type indirect jump
	FormatJAL            // J-type direct jump
	FormatOpImm          // I-type ALU
	FormatOp             // R-type ALU
	FormatAUIPC          // U-type
	FormatLUI            // U-type
	FormatMiscMem        // FENCE, FENCE.I
	FormatSystem         // ECALL, CSR access, privileged returns
)

// Major opcodes, bits [6:0].
const (
	OpcodeLoad    uint32 = 0b0000011
	OpcodeLoadFP  uint32 = 0b0000111
	OpcodeMiscMem uint32 = 0b0001111
	OpcodeOpImm   uint32 = 0b0010011
	OpcodeAUIPC   uint32 = 0b0010111
	OpcodeStore   uint32 = 0b0100011
	OpcodeStoreFP uint32 = 0b0100111
	OpcodeOp      uint32 = 0b0110011
	OpcodeLUI     uint32 = 0b0110111
	OpcodeBranch  uint32 = 0b1100011
	OpcodeJALR    uint32 = 0b1100111
	OpcodeJAL     uint32 = 0b1101111
	OpcodeSystem  uint32 = 0b1110011
)

// Instruction represents a decoded RV32IM instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format
	Word   uint32 // Raw instruction word

	Rd  uint8 // Destination register, bits [11:7]
	Rs1 uint8 // First source register, bits [19:15]
	Rs2 uint8 // Second source register, bits [24:20]

	Funct3  uint8  // bits [14:12]
	Funct7  uint8  // bits [31:25]
	Funct12 uint16 // bits [31:20], SYSTEM only

	// Imm is the sign-extended immediate of the format's I/S/B/U/J shape.
	// For shifts it holds the shift amount.
	Imm int32

	CSR  uint16 // CSR address, bits [31:20]
	Zimm uint8  // CSR immediate, bits [19:15]

	Pred uint8 // FENCE predecessor set, bits [27:24]
	Succ uint8 // FENCE successor set, bits [23:20]
}

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32IM instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RISC-V instruction word. It never fails; words
// that match no known encoding come back with Op set to OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Op:     OpUnknown,
		Format: FormatUnknown,
		Word:   word,
		Rd:     uint8((word >> 7) & 0x1F),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Funct7: uint8((word >> 25) & 0x7F),
	}

	switch word & 0x7F {
	case OpcodeLoad:
		d.decodeLoad(word, inst)
	case OpcodeLoadFP:
		d.decodeLoadFP(word, inst)
	case OpcodeStore:
		d.decodeStore(word, inst)
	case OpcodeStoreFP:
		d.decodeStoreFP(word, inst)
	case OpcodeBranch:
		d.decodeBranch(word, inst)
	case OpcodeJALR:
		d.decodeJALR(word, inst)
	case OpcodeJAL:
		d.decodeJAL(word, inst)
	case OpcodeOpImm:
		d.decodeOpImm(word, inst)
	case OpcodeOp:
		d.decodeOp(inst)
	case OpcodeAUIPC:
		inst.Format = FormatAUIPC
		inst.Op = OpAUIPC
		inst.Imm = immU(word)
	case OpcodeLUI:
		inst.Format = FormatLUI
		inst.Op = OpLUI
		inst.Imm = immU(word)
	case OpcodeMiscMem:
		d.decodeMiscMem(word, inst)
	case OpcodeSystem:
		d.decodeSystem(word, inst)
	}

	return inst
}

// immI extracts the I-type immediate: imm[11:0] = inst[31:20].
func immI(word uint32) int32 {
	return int32(word) >> 20
}

// immS extracts the S-type immediate: imm[11:5] = inst[31:25],
// imm[4:0] = inst[11:7].
func immS(word uint32) int32 {
	return (int32(word)>>25)<<5 | int32((word>>7)&0x1F)
}

// immB extracts the B-type immediate: imm[12|10:5] = inst[31:25],
// imm[4:1|11] = inst[11:7].
func immB(word uint32) int32 {
	return (int32(word)>>31)<<12 |
		int32((word>>7)&0x1)<<11 |
		int32((word>>25)&0x3F)<<5 |
		int32((word>>8)&0xF)<<1
}

// immU extracts the U-type immediate: imm[31:12] = inst[31:12].
func immU(word uint32) int32 {
	return int32(word & 0xFFFFF000)
}

// immJ extracts the J-type immediate: imm[20|10:1|11|19:12] = inst[31:12].
func immJ(word uint32) int32 {
	return (int32(word)>>31)<<20 |
		int32((word>>12)&0xFF)<<12 |
		int32((word>>20)&0x1)<<11 |
		int32((word>>21)&0x3FF)<<1
}

// decodeLoad decodes LB/LH/LW/LBU/LHU.
// Format: imm[11:0] | rs1 | funct3 | rd | 0000011
func (d *Decoder) decodeLoad(word uint32, inst *Instruction) {
	inst.Format = FormatLoad
	inst.Imm = immI(word)

	switch inst.Funct3 {
	case 0b000:
		inst.Op = OpLB
	case 0b001:
		inst.Op = OpLH
	case 0b010:
		inst.Op = OpLW
	case 0b100:
		inst.Op = OpLBU
	case 0b101:
		inst.Op = OpLHU
	}
}

// decodeLoadFP decodes FLW/FLD.
func (d *Decoder) decodeLoadFP(word uint32, inst *Instruction) {
	inst.Format = FormatLoadFP
	inst.Imm = immI(word)

	switch inst.Funct3 {
	case 0b010:
		inst.Op = OpFLW
	case 0b011:
		inst.Op = OpFLD
	}
}

// decodeStore decodes SB/SH/SW.
// Format: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | 0100011
func (d *Decoder) decodeStore(word uint32, inst *Instruction) {
	inst.Format = FormatStore
	inst.Imm = immS(word)

	switch inst.Funct3 {
	case 0b000:
		inst.Op = OpSB
	case 0b001:
		inst.Op = OpSH
	case 0b010:
		inst.Op = OpSW
	}
}

// decodeStoreFP decodes FSW/FSD.
func (d *Decoder) decodeStoreFP(word uint32, inst *Instruction) {
	inst.Format = FormatStoreFP
	inst.Imm = immS(word)

	switch inst.Funct3 {
	case 0b010:
		inst.Op = OpFSW
	case 0b011:
		inst.Op = OpFSD
	}
}

// decodeBranch decodes conditional branches.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | 1100011
func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	inst.Format = FormatBranch
	inst.Imm = immB(word)

	switch inst.Funct3 {
	case 0b000:
		inst.Op = OpBEQ
	case 0b001:
		inst.Op = OpBNE
	case 0b100:
		inst.Op = OpBLT
	case 0b101:
		inst.Op = OpBGE
	case 0b110:
		inst.Op = OpBLTU
	case 0b111:
		inst.Op = OpBGEU
	}
}

// decodeJALR decodes JALR. funct3 must be zero.
func (d *Decoder) decodeJALR(word uint32, inst *Instruction) {
	inst.Format = FormatJALR
	inst.Imm = immI(word)

	if inst.Funct3 == 0 {
		inst.Op = OpJALR
	}
}

// decodeJAL decodes JAL.
// Format: imm[20|10:1|11|19:12] | rd | 1101111
func (d *Decoder) decodeJAL(word uint32, inst *Instruction) {
	inst.Format = FormatJAL
	inst.Op = OpJAL
	inst.Imm = immJ(word)
}

// decodeOpImm decodes register-immediate ALU operations.
// Shifts encode shamt in bits [24:20] and require funct7 of
// 0000000 (SLLI, SRLI) or 0100000 (SRAI).
func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) {
	inst.Format = FormatOpImm
	inst.Imm = immI(word)

	switch inst.Funct3 {
	case 0b000:
		inst.Op = OpADDI
	case 0b010:
		inst.Op = OpSLTI
	case 0b011:
		inst.Op = OpSLTIU
	case 0b100:
		inst.Op = OpXORI
	case 0b110:
		inst.Op = OpORI
	case 0b111:
		inst.Op = OpANDI
	case 0b001:
		inst.Imm = int32(inst.Rs2)
		if inst.Funct7 == 0b0000000 {
			inst.Op = OpSLLI
		}
	case 0b101:
		inst.Imm = int32(inst.Rs2)
		switch inst.Funct7 {
		case 0b0000000:
			inst.Op = OpSRLI
		case 0b0100000:
			inst.Op = OpSRAI
		}
	}
}

var (
	rv32iOps = map[uint16]Op{
		0b000<<7 | 0b0000000: OpADD,
		0b000<<7 | 0b0100000: OpSUB,
		0b001<<7 | 0b0000000: OpSLL,
		0b010<<7 | 0b0000000: OpSLT,
		0b011<<7 | 0b0000000: OpSLTU,
		0b100<<7 | 0b0000000: OpXOR,
		0b101<<7 | 0b0000000: OpSRL,
		0b101<<7 | 0b0100000: OpSRA,
		0b110<<7 | 0b0000000: OpOR,
		0b111<<7 | 0b0000000: OpAND,
	}
	rv32mOps = [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}
)

// decodeOp decodes register-register ALU operations.
// Format: funct7 | rs2 | rs1 | funct3 | rd | 0110011
func (d *Decoder) decodeOp(inst *Instruction) {
	inst.Format = FormatOp

	if inst.Funct7 == 0b0000001 {
		inst.Op = rv32mOps[inst.Funct3]
		return
	}

	if op, ok := rv32iOps[uint16(inst.Funct3)<<7|uint16(inst.Funct7)]; ok {
		inst.Op = op
	}
}

// decodeMiscMem decodes FENCE and FENCE.I.
// Format: fm | pred | succ | rs1 | funct3 | rd | 0001111
func (d *Decoder) decodeMiscMem(word uint32, inst *Instruction) {
	inst.Format = FormatMiscMem
	inst.Pred = uint8((word >> 24) & 0xF)
	inst.Succ = uint8((word >> 20) & 0xF)

	switch inst.Funct3 {
	case 0b000:
		inst.Op = OpFENCE
	case 0b001:
		inst.Op = OpFENCEI
	}
}

// decodeSystem decodes environment calls, privileged returns and CSR access.
// Format: funct12/csr | rs1/zimm | funct3 | rd | 1110011
func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	inst.Format = FormatSystem
	inst.Funct12 = uint16(word >> 20)
	inst.CSR = inst.Funct12
	inst.Zimm = inst.Rs1

	switch inst.Funct3 {
	case 0b000:
		switch {
		case inst.Funct12 == 0b000000000000:
			inst.Op = OpECALL
		case inst.Funct12 == 0b000000000001:
			inst.Op = OpEBREAK
		case inst.Funct12 == 0b000000000010:
			inst.Op = OpURET
		case inst.Funct12 == 0b000100000010:
			inst.Op = OpSRET
		case inst.Funct12 == 0b001100000010:
			inst.Op = OpMRET
		case inst.Funct12 == 0b000100000101:
			inst.Op = OpWFI
		case inst.Funct7 == 0b0001001:
			inst.Op = OpSFENCEVMA
		}
	case 0b001:
		inst.Op = OpCSRRW
	case 0b010:
		inst.Op = OpCSRRS
	case 0b011:
		inst.Op = OpCSRRC
	case 0b101:
		inst.Op = OpCSRRWI
	case 0b110:
		inst.Op = OpCSRRSI
	case 0b111:
		inst.Op = OpCSRRCI
	}
}
