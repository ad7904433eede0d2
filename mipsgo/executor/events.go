package executor

import (
	"github.com/zkmips/zkmips/mipsgo/mips"
)

// LookupID correlates an event sent by one table with its receipt in
// another.
type LookupID uint64

// NumSubLookups is the number of ids an ALU event reserves for the
// dependency events it may cause.
const NumSubLookups = 6

// AluEvent is one primitive arithmetic or logical operation.
type AluEvent struct {
	LookupID   LookupID                `json:"lookupID"`
	Shard      uint32                  `json:"shard"`
	Clk        uint32                  `json:"clk"`
	Opcode     mips.Opcode             `json:"opcode"`
	Hi         uint32                  `json:"hi"`
	A          uint32                  `json:"a"`
	B          uint32                  `json:"b"`
	C          uint32                  `json:"c"`
	SubLookups [NumSubLookups]LookupID `json:"subLookups"`
}

// BranchEvent is a conditional branch, taken or not.
type BranchEvent struct {
	LookupID   LookupID    `json:"lookupID"`
	Shard      uint32      `json:"shard"`
	Clk        uint32      `json:"clk"`
	PC         uint32      `json:"pc"`
	NextPC     uint32      `json:"nextPC"`
	NextNextPC uint32      `json:"nextNextPC"`
	Opcode     mips.Opcode `json:"opcode"`
	A          uint32      `json:"a"`
	B          uint32      `json:"b"`
	C          uint32      `json:"c"`
	Taken      bool        `json:"taken"`
}

// JumpEvent is an unconditional jump. A holds the link value, B the target.
type JumpEvent struct {
	LookupID   LookupID    `json:"lookupID"`
	Shard      uint32      `json:"shard"`
	Clk        uint32      `json:"clk"`
	PC         uint32      `json:"pc"`
	NextPC     uint32      `json:"nextPC"`
	NextNextPC uint32      `json:"nextNextPC"`
	Opcode     mips.Opcode `json:"opcode"`
	A          uint32      `json:"a"`
	B          uint32      `json:"b"`
	C          uint32      `json:"c"`
}

// MemoryRecord is a single read or write of one word. Reads carry
// Value == PrevValue.
type MemoryRecord struct {
	Addr          uint32 `json:"addr"`
	Value         uint32 `json:"value"`
	PrevValue     uint32 `json:"prevValue"`
	Shard         uint32 `json:"shard"`
	Timestamp     uint32 `json:"timestamp"`
	PrevShard     uint32 `json:"prevShard"`
	PrevTimestamp uint32 `json:"prevTimestamp"`
	Write         bool   `json:"write,omitempty"`
}

func (r MemoryRecord) entries() (prev, next MemoryEntry) {
	prev = MemoryEntry{Value: r.PrevValue, Shard: r.PrevShard, Timestamp: r.PrevTimestamp}
	next = MemoryEntry{Value: r.Value, Shard: r.Shard, Timestamp: r.Timestamp}
	return
}

// MemoryLocalEvent is the first and last state of an address within one shard.
type MemoryLocalEvent struct {
	Addr             uint32      `json:"addr"`
	InitialMemAccess MemoryEntry `json:"initialMemAccess"`
	FinalMemAccess   MemoryEntry `json:"finalMemAccess"`
}

// MemoryInitializeFinalizeEvent ties an address to the global memory
// argument, either with its pre-run value or with its final state.
type MemoryInitializeFinalizeEvent struct {
	Addr      uint32 `json:"addr"`
	Value     uint32 `json:"value"`
	Shard     uint32 `json:"shard"`
	Timestamp uint32 `json:"timestamp"`
	Used      bool   `json:"used"`
}

// CpuEvent is the row of one executed instruction.
type CpuEvent struct {
	Shard       uint32           `json:"shard"`
	Clk         uint32           `json:"clk"`
	PC          uint32           `json:"pc"`
	NextPC      uint32           `json:"nextPC"`
	NextNextPC  uint32           `json:"nextNextPC"`
	Instruction mips.Instruction `json:"instruction"`

	A  uint32 `json:"a"`
	B  uint32 `json:"b"`
	C  uint32 `json:"c"`
	Hi uint32 `json:"hi,omitempty"`

	ARecord      *MemoryRecord `json:"aRecord,omitempty"`
	BRecord      *MemoryRecord `json:"bRecord,omitempty"`
	CRecord      *MemoryRecord `json:"cRecord,omitempty"`
	HiRecord     *MemoryRecord `json:"hiRecord,omitempty"`
	MemoryRecord *MemoryRecord `json:"memoryRecord,omitempty"`

	ExitCode uint32 `json:"exitCode"`

	AluLookupID       LookupID `json:"aluLookupID,omitempty"`
	SyscallLookupID   LookupID `json:"syscallLookupID,omitempty"`
	MemoryAddLookupID LookupID `json:"memoryAddLookupID,omitempty"`
	MemorySubLookupID LookupID `json:"memorySubLookupID,omitempty"`
	BranchLookupID    LookupID `json:"branchLookupID,omitempty"`
	BranchLtLookupID  LookupID `json:"branchLtLookupID,omitempty"`
	BranchGtLookupID  LookupID `json:"branchGtLookupID,omitempty"`
	BranchAddLookupID LookupID `json:"branchAddLookupID,omitempty"`
	JumpLookupID      LookupID `json:"jumpLookupID,omitempty"`
}

// SyscallEvent is a dispatched system call.
type SyscallEvent struct {
	LookupID  LookupID `json:"lookupID"`
	Shard     uint32   `json:"shard"`
	Clk       uint32   `json:"clk"`
	NextPC    uint32   `json:"nextPC"`
	SyscallID uint32   `json:"syscallID"`
	Arg1      uint32   `json:"arg1"`
	Arg2      uint32   `json:"arg2"`
}
