package executor

import (
	"github.com/zkmips/zkmips/mipsgo/cost"
	"github.com/zkmips/zkmips/mipsgo/mips"
)

// ExecutionReport summarizes a run.
type ExecutionReport struct {
	OpcodeCounts  map[mips.Opcode]uint64 `json:"opcodeCounts"`
	SyscallCounts map[SyscallCode]uint64 `json:"syscallCounts"`
	// CycleTracker sums the spans opened with cycle-tracker-report-start.
	CycleTracker           map[string]uint64 `json:"cycleTracker"`
	TouchedMemoryAddresses uint64            `json:"touchedMemoryAddresses"`
	// EventCounts are the exact table heights over all shards.
	EventCounts cost.EventCounts `json:"eventCounts"`
	Shards      uint64           `json:"shards"`
	ExitCode    uint32           `json:"exitCode"`
}

func newExecutionReport() ExecutionReport {
	return ExecutionReport{
		OpcodeCounts:  make(map[mips.Opcode]uint64),
		SyscallCounts: make(map[SyscallCode]uint64),
		CycleTracker:  make(map[string]uint64),
	}
}

func (r ExecutionReport) TotalInstructionCount() (n uint64) {
	for _, v := range r.OpcodeCounts {
		n += v
	}
	return
}

func (r ExecutionReport) TotalSyscallCount() (n uint64) {
	for _, v := range r.SyscallCounts {
		n += v
	}
	return
}
