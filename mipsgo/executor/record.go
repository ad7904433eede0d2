package executor

import (
	"github.com/zkmips/zkmips/mipsgo/cost"
)

// ExecutionRecord holds the events of one shard. Once a shard is closed its
// record is never mutated again.
type ExecutionRecord struct {
	Shard uint32 `json:"shard"`

	CpuEvents    []CpuEvent                `json:"cpuEvents"`
	AluEvents    map[cost.AirID][]AluEvent `json:"aluEvents"`
	BranchEvents []BranchEvent             `json:"branchEvents,omitempty"`
	JumpEvents   []JumpEvent               `json:"jumpEvents,omitempty"`

	// MemoryAccesses is every register and memory access of the shard, in
	// clock order.
	MemoryAccesses    []MemoryRecord     `json:"memoryAccesses"`
	MemoryLocalEvents []MemoryLocalEvent `json:"memoryLocalEvents"`

	SyscallEvents    []SyscallEvent    `json:"syscallEvents,omitempty"`
	PrecompileEvents []PrecompileEntry `json:"precompileEvents,omitempty"`

	// Global memory events are only present in the last shard.
	GlobalMemoryInitializeEvents []MemoryInitializeFinalizeEvent `json:"globalMemoryInitializeEvents,omitempty"`
	GlobalMemoryFinalizeEvents   []MemoryInitializeFinalizeEvent `json:"globalMemoryFinalizeEvents,omitempty"`

	// PublicValuesDigest is the committed digest, set on the last shard.
	PublicValuesDigest [8]uint32 `json:"publicValuesDigest"`

	// EventCounts is the padded row estimate the shard was planned with.
	EventCounts cost.EventCounts `json:"eventCounts"`
	Cycles      uint64           `json:"cycles"`
}

func newExecutionRecord(shard uint32) *ExecutionRecord {
	return &ExecutionRecord{
		Shard:     shard,
		AluEvents: make(map[cost.AirID][]AluEvent),
	}
}

func (r *ExecutionRecord) addAlu(id cost.AirID, ev AluEvent) {
	r.AluEvents[id] = append(r.AluEvents[id], ev)
}

// Alu returns the events of one ALU table.
func (r *ExecutionRecord) Alu(id cost.AirID) []AluEvent {
	return r.AluEvents[id]
}

// AllAluEvents flattens the ALU tables in table order.
func (r *ExecutionRecord) AllAluEvents() []AluEvent {
	var out []AluEvent
	for id := 0; id < cost.NumAirIDs; id++ {
		out = append(out, r.AluEvents[cost.AirID(id)]...)
	}
	return out
}

// Empty reports a shard that executed nothing.
func (r *ExecutionRecord) Empty() bool {
	return len(r.CpuEvents) == 0
}

// SyscallsSent counts the syscall events that go to the syscall table.
func (r *ExecutionRecord) SyscallsSent() int {
	return len(r.SyscallEvents)
}

// RowCounts are the exact table heights of the record.
func (r *ExecutionRecord) RowCounts(cfg cost.Config) cost.EventCounts {
	var out cost.EventCounts
	out[cost.AirCpu] = uint64(len(r.CpuEvents))
	for id, evs := range r.AluEvents {
		out[id] += uint64(len(evs))
	}
	out[cost.AirBranch] += uint64(len(r.BranchEvents))
	out[cost.AirJump] += uint64(len(r.JumpEvents))
	perRow := max(cfg.LocalMemoryEntriesPerRow, 1)
	out[cost.AirMemoryLocal] = (uint64(len(r.MemoryLocalEvents)) + perRow - 1) / perRow
	out[cost.AirSyscallCore] = uint64(len(r.SyscallEvents))
	out[cost.AirGlobal] = uint64(len(r.GlobalMemoryInitializeEvents)+len(r.GlobalMemoryFinalizeEvents)) +
		2*uint64(len(r.MemoryLocalEvents)) + uint64(len(r.SyscallEvents))
	return out
}
