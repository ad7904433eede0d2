package mips

import "fmt"

// Opcode is the closed set of operations the executor understands. Several
// entries are pseudo opcodes produced by the decoder (MEQ and MNE for the
// conditional moves, Jump/Jumpi/JumpDirect for the three jump forms).
type Opcode uint8

const (
	ADD Opcode = iota
	ADDU
	ADDI
	ADDIU
	SUB
	SUBU
	MULT
	MULTU
	MUL
	MADDU
	DIV
	DIVU
	SLL
	SRL
	SRA
	SLLV
	SRLV
	SRAV
	ROR
	SLT
	SLTU
	SLTI
	SLTIU
	LUI
	MFHI
	MTHI
	MFLO
	MTLO
	AND
	OR
	XOR
	NOR
	BEQ
	BNE
	BLTZ
	BGEZ
	BLEZ
	BGTZ
	Jump
	Jumpi
	JumpDirect
	LB
	LH
	LWL
	LW
	LBU
	LHU
	LWR
	LL
	SB
	SH
	SWL
	SW
	SWR
	SC
	SDC1
	SYSCALL
	MEQ
	MNE
	CLZ
	CLO
	EXT
	INS
	SIGNEXT
	WSBH
	RDHWR
	TEQ
	NOP
	INVALID

	NumOpcodes = int(INVALID) + 1
)

var opcodeNames = [NumOpcodes]string{
	ADD: "ADD", ADDU: "ADDU", ADDI: "ADDI", ADDIU: "ADDIU", SUB: "SUB", SUBU: "SUBU",
	MULT: "MULT", MULTU: "MULTU", MUL: "MUL", MADDU: "MADDU", DIV: "DIV", DIVU: "DIVU",
	SLL: "SLL", SRL: "SRL", SRA: "SRA", SLLV: "SLLV", SRLV: "SRLV", SRAV: "SRAV", ROR: "ROR",
	SLT: "SLT", SLTU: "SLTU", SLTI: "SLTI", SLTIU: "SLTIU", LUI: "LUI",
	MFHI: "MFHI", MTHI: "MTHI", MFLO: "MFLO", MTLO: "MTLO",
	AND: "AND", OR: "OR", XOR: "XOR", NOR: "NOR",
	BEQ: "BEQ", BNE: "BNE", BLTZ: "BLTZ", BGEZ: "BGEZ", BLEZ: "BLEZ", BGTZ: "BGTZ",
	Jump: "JUMP", Jumpi: "JUMPI", JumpDirect: "JUMPDIRECT",
	LB: "LB", LH: "LH", LWL: "LWL", LW: "LW", LBU: "LBU", LHU: "LHU", LWR: "LWR", LL: "LL",
	SB: "SB", SH: "SH", SWL: "SWL", SW: "SW", SWR: "SWR", SC: "SC", SDC1: "SDC1",
	SYSCALL: "SYSCALL", MEQ: "MEQ", MNE: "MNE", CLZ: "CLZ", CLO: "CLO",
	EXT: "EXT", INS: "INS", SIGNEXT: "SIGNEXT", WSBH: "WSBH", RDHWR: "RDHWR", TEQ: "TEQ",
	NOP: "NOP", INVALID: "INVALID",
}

var opcodesByName = func() map[string]Opcode {
	out := make(map[string]Opcode, NumOpcodes)
	for i, name := range opcodeNames {
		out[name] = Opcode(i)
	}
	return out
}()

func (op Opcode) String() string {
	if int(op) < NumOpcodes {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

func (op Opcode) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *Opcode) UnmarshalText(text []byte) error {
	v, err := ParseOpcode(string(text))
	if err != nil {
		return err
	}
	*op = v
	return nil
}

// ParseOpcode is the inverse of Opcode.String.
func ParseOpcode(name string) (Opcode, error) {
	op, ok := opcodesByName[name]
	if !ok {
		return INVALID, fmt.Errorf("unknown opcode %q", name)
	}
	return op, nil
}

func (op Opcode) IsALU() bool {
	switch op {
	case ADD, ADDU, ADDI, ADDIU, SUB, SUBU, MULT, MULTU, MUL, MADDU, DIV, DIVU,
		SLL, SRL, SRA, SLLV, SRLV, SRAV, ROR, SLT, SLTU, SLTI, SLTIU, LUI,
		MFHI, MTHI, MFLO, MTLO, AND, OR, XOR, NOR,
		MEQ, MNE, CLZ, CLO, EXT, INS, SIGNEXT, WSBH:
		return true
	}
	return false
}

func (op Opcode) IsLoad() bool {
	switch op {
	case LB, LH, LWL, LW, LBU, LHU, LWR, LL:
		return true
	}
	return false
}

func (op Opcode) IsStore() bool {
	switch op {
	case SB, SH, SWL, SW, SWR, SC, SDC1:
		return true
	}
	return false
}

func (op Opcode) IsMemory() bool {
	return op.IsLoad() || op.IsStore()
}

func (op Opcode) IsBranch() bool {
	switch op {
	case BEQ, BNE, BLTZ, BGEZ, BLEZ, BGTZ:
		return true
	}
	return false
}

// IsSignedBranch reports branches that compare a register against zero.
func (op Opcode) IsSignedBranch() bool {
	switch op {
	case BLTZ, BGEZ, BLEZ, BGTZ:
		return true
	}
	return false
}

func (op Opcode) IsJump() bool {
	return op == Jump || op == Jumpi || op == JumpDirect
}

// WritesHiLo reports opcodes producing a 64-bit result split over LO (op_a) and HI.
func (op Opcode) WritesHiLo() bool {
	switch op {
	case MULT, MULTU, MADDU, DIV, DIVU:
		return true
	}
	return false
}
