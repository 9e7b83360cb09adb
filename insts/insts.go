// Package insts provides RV32IM instruction definitions and decoding.
//
// This package decodes 32-bit RISC-V machine code into structured
// instruction representations and renders them as assembler text for
// pipeline trace annotations. It supports:
//   - RV32I loads, stores, branches, JAL/JALR, register-immediate and
//     register-register ALU operations, AUIPC, LUI
//   - RV32M multiply and divide
//   - FLW/FLD/FSW/FSD addressing
//   - FENCE, FENCE.I and the SYSTEM opcode (ECALL, EBREAK, xRET, WFI,
//     SFENCE.VMA, CSR access)
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x003100b3) // add ra, sp, gp
//	fmt.Println(inst)
//
// Decoding never fails. Words that match no encoding render as "unknown",
// and malformed hex tokens given to Disassemble render as "invalid:".
package insts
