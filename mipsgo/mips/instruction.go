package mips

import (
	"fmt"
	"strings"
)

// Instruction is a decoded machine word.
//
// OpA names the destination register (or, for branches and stores, the
// register that is only read). OpB and OpC are register indices unless the
// matching Imm flag is set, in which case they hold the already extended
// immediate: sign extended for arithmetic, load/store and compare immediates,
// zero extended for logical immediates, byte offsets for branch and jump
// targets. OpD carries the lsb field of EXT/INS.
type Instruction struct {
	Opcode Opcode `json:"opcode"`
	OpA    uint8  `json:"opA"`
	OpB    uint32 `json:"opB"`
	OpC    uint32 `json:"opC"`
	OpD    uint32 `json:"opD,omitempty"`
	ImmB   bool   `json:"immB,omitempty"`
	ImmC   bool   `json:"immC,omitempty"`
}

func newInstruction(op Opcode, a uint32, b, c uint32, immB, immC bool) Instruction {
	return Instruction{Opcode: op, OpA: uint8(a & 0x3F), OpB: b, OpC: c, ImmB: immB, ImmC: immC}
}

func (i Instruction) IsALU() bool    { return i.Opcode.IsALU() }
func (i Instruction) IsMemory() bool { return i.Opcode.IsMemory() }
func (i Instruction) IsBranch() bool { return i.Opcode.IsBranch() }
func (i Instruction) IsJump() bool   { return i.Opcode.IsJump() }

func regName(r uint32) string {
	switch r {
	case RegLO:
		return "$lo"
	case RegHI:
		return "$hi"
	}
	return fmt.Sprintf("$%d", r)
}

func operand(v uint32, imm bool) string {
	if imm {
		return fmt.Sprintf("0x%x", v)
	}
	return regName(v)
}

func (i Instruction) String() string {
	var args []string
	switch {
	case i.Opcode == INVALID || i.Opcode == NOP || i.Opcode == SYSCALL:
	case i.Opcode == Jumpi || i.Opcode == JumpDirect:
		args = append(args, regName(uint32(i.OpA)), operand(i.OpB, true))
	case i.Opcode == EXT || i.Opcode == INS:
		args = append(args, regName(uint32(i.OpA)), operand(i.OpB, i.ImmB), operand(i.OpC, true), operand(i.OpD, true))
	default:
		args = append(args, regName(uint32(i.OpA)), operand(i.OpB, i.ImmB), operand(i.OpC, i.ImmC))
	}
	if len(args) == 0 {
		return i.Opcode.String()
	}
	return fmt.Sprintf("%-8s %s", i.Opcode.String(), strings.Join(args, ", "))
}
