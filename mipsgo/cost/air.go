// Package cost estimates how many rows each constraint table needs for a
// shard, from the aggregate counters the executor keeps.
package cost

import (
	"encoding/json"
	"fmt"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

// AirID names a downstream constraint table.
type AirID int

const (
	AirCpu AirID = iota
	AirAddSub
	AirMul
	AirBitwise
	AirShiftLeft
	AirShiftRight
	AirDivRem
	AirLt
	AirCloClz
	AirMisc
	AirBranch
	AirJump
	AirMemoryLocal
	AirSyscallCore
	AirGlobal

	NumAirIDs = int(AirGlobal) + 1
)

var airNames = [NumAirIDs]string{
	AirCpu:         "Cpu",
	AirAddSub:      "AddSub",
	AirMul:         "Mul",
	AirBitwise:     "Bitwise",
	AirShiftLeft:   "ShiftLeft",
	AirShiftRight:  "ShiftRight",
	AirDivRem:      "DivRem",
	AirLt:          "Lt",
	AirCloClz:      "CloClz",
	AirMisc:        "Misc",
	AirBranch:      "Branch",
	AirJump:        "Jump",
	AirMemoryLocal: "MemoryLocal",
	AirSyscallCore: "SyscallCore",
	AirGlobal:      "Global",
}

func (id AirID) String() string {
	if id >= 0 && int(id) < NumAirIDs {
		return airNames[id]
	}
	return fmt.Sprintf("AirID(%d)", int(id))
}

func (id AirID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *AirID) UnmarshalText(text []byte) error {
	v, err := ParseAirID(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func ParseAirID(name string) (AirID, error) {
	for i, n := range airNames {
		if n == name {
			return AirID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown air %q", name)
}

// AirForOpcode returns the table that receives the primary event of op.
// Memory, syscall and no-op opcodes only produce CPU rows.
func AirForOpcode(op mips.Opcode) (AirID, bool) {
	switch op {
	case mips.ADD, mips.ADDU, mips.ADDI, mips.ADDIU, mips.SUB, mips.SUBU:
		return AirAddSub, true
	case mips.MUL, mips.MULT, mips.MULTU, mips.MADDU:
		return AirMul, true
	case mips.DIV, mips.DIVU:
		return AirDivRem, true
	case mips.AND, mips.OR, mips.XOR, mips.NOR:
		return AirBitwise, true
	case mips.SLL, mips.SLLV, mips.LUI:
		return AirShiftLeft, true
	case mips.SRL, mips.SRLV, mips.SRA, mips.SRAV, mips.ROR:
		return AirShiftRight, true
	case mips.SLT, mips.SLTU, mips.SLTI, mips.SLTIU:
		return AirLt, true
	case mips.CLZ, mips.CLO:
		return AirCloClz, true
	case mips.MEQ, mips.MNE, mips.EXT, mips.INS, mips.SIGNEXT, mips.WSBH,
		mips.MFHI, mips.MTHI, mips.MFLO, mips.MTLO:
		return AirMisc, true
	case mips.BEQ, mips.BNE, mips.BLTZ, mips.BGEZ, mips.BLEZ, mips.BGTZ:
		return AirBranch, true
	case mips.Jump, mips.Jumpi, mips.JumpDirect:
		return AirJump, true
	}
	return 0, false
}

// EventCounts holds one row count per table.
type EventCounts [NumAirIDs]uint64

// Map keys the counts by table name, dropping empty tables.
func (c EventCounts) Map() map[string]uint64 {
	out := make(map[string]uint64)
	for i, n := range c {
		if n != 0 {
			out[AirID(i).String()] = n
		}
	}
	return out
}

// Add accumulates other into c.
func (c *EventCounts) Add(other EventCounts) {
	for i := range c {
		c[i] += other[i]
	}
}

// Exceeds reports the first table with more than limit rows.
func (c EventCounts) Exceeds(limit uint64) (AirID, bool) {
	for i, n := range c {
		if n > limit {
			return AirID(i), true
		}
	}
	return 0, false
}

func (c EventCounts) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

func (c *EventCounts) UnmarshalJSON(data []byte) error {
	var m map[string]uint64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*c = EventCounts{}
	for name, n := range m {
		id, err := ParseAirID(name)
		if err != nil {
			return err
		}
		c[id] = n
	}
	return nil
}
