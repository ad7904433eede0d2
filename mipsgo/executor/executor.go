// Package executor runs a loaded MIPS program one instruction at a time and
// records the events a proving layer needs to check the run.
package executor

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/rand"

	"github.com/zkmips/zkmips/mipsgo/cost"
	"github.com/zkmips/zkmips/mipsgo/mips"
	"github.com/zkmips/zkmips/mipsgo/program"
)

// Timestamp slots of one instruction, relative to its clock.
const (
	posMemory = 0
	posC      = 1
	posB      = 2
	posA      = 3
	posHI     = 4

	// ClkIncrement is the clock advance of an instruction without extra cycles.
	ClkIncrement = 5
)

type Status int

const (
	Running Status = iota
	Halted
	Faulted
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type cycleSpan struct {
	start uint64
	depth int
}

// Executor is the state of one run. It is not safe for concurrent use.
type Executor struct {
	program *program.Program
	opts    Options
	log     log.Logger

	hooks    *HookRegistry
	syscalls map[SyscallCode]Syscall
	memory   *Memory

	pc     uint32
	nextPC uint32
	clk    uint32
	shard  uint32

	// worst-case clock advance of a single step
	maxStepClk uint32

	shardStartClk     uint32
	shardCycles       uint64
	shardOpcodeCounts [mips.NumOpcodes]uint64
	shardSyscallsSent uint64

	// instructions executed over the whole run
	globalClk uint64

	status   Status
	exitCode uint32
	err      error

	inputStream     [][]byte
	inputPtr        int
	publicValues    []byte
	committedDigest [8]uint32

	// pre-run values of addresses filled by hint reads
	uninitialized map[uint32]uint32

	record  *ExecutionRecord
	records []*ExecutionRecord
	local   map[uint32]*MemoryLocalEvent
	pending []MemoryRecord

	report       ExecutionReport
	ioBuf        map[uint32]string
	cycleTracker map[string]cycleSpan

	rng *rand.Rand
}

// New prepares a run of p. The program is not modified.
func New(p *program.Program, opts Options) (*Executor, error) {
	if opts.ShardSize == 0 {
		opts.ShardSize = DefaultShardSize
	}
	if opts.ShapeCheckInterval == 0 {
		opts.ShapeCheckInterval = DefaultShapeCheckInterval
	}
	if opts.Cost.LocalMemoryEntriesPerRow == 0 {
		opts.Cost = cost.DefaultConfig()
	}
	if opts.Hooks == nil {
		opts.Hooks = NewHookRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = log.Root()
	}

	syscalls := DefaultSyscallMap()
	maxStepClk := ClkIncrement + maxExtraCycles(syscalls)
	if opts.ShardSize < maxStepClk {
		return nil, fmt.Errorf("shard size %d is below the clock span of a single step (%d)", opts.ShardSize, maxStepClk)
	}

	e := &Executor{
		program:       p,
		opts:          opts,
		log:           opts.Logger,
		hooks:         opts.Hooks,
		syscalls:      syscalls,
		memory:        NewMemory(),
		pc:            p.PCStart,
		nextPC:        p.NextPC,
		clk:           1,
		shard:         1,
		maxStepClk:    maxStepClk,
		shardStartClk: 1,
		inputPtr:      p.InputStreamPtr,
		publicValues:  slices.Clone([]byte(p.PublicValuesStream)),
		uninitialized: make(map[uint32]uint32),
		record:        newExecutionRecord(1),
		local:         make(map[uint32]*MemoryLocalEvent),
		report:        newExecutionReport(),
		ioBuf:         make(map[uint32]string),
		cycleTracker:  make(map[string]cycleSpan),
		rng:           rand.New(rand.NewSource(opts.LookupSeed)),
	}
	if e.nextPC == 0 {
		e.nextPC = e.pc + 4
	}
	for _, frame := range p.InputStream {
		e.inputStream = append(e.inputStream, slices.Clone([]byte(frame)))
	}

	for i, v := range p.GPRs {
		e.memory.initialize(uint32(i), v)
	}
	e.memory.initialize(mips.RegLO, p.Lo)
	e.memory.initialize(mips.RegHI, p.Hi)
	e.memory.initialize(mips.RegHeap, p.Heap)
	e.memory.initialize(mips.RegBrk, p.Brk)
	e.memory.initialize(mips.RegLocalUser, p.LocalUser)
	for addr, v := range p.Image {
		if addr < RegisterSpaceEnd || addr&3 != 0 {
			return nil, fmt.Errorf("%w: word at %08x", ErrImageOverlap, addr)
		}
		e.memory.initialize(addr, v)
	}
	return e, nil
}

func (e *Executor) Status() Status { return e.status }

func (e *Executor) ExitCode() uint32 { return e.exitCode }

// Err is the fault of a faulted run.
func (e *Executor) Err() error { return e.err }

func (e *Executor) PC() uint32 { return e.pc }

func (e *Executor) Clk() uint32 { return e.clk }

// Cycles is the number of instructions executed so far.
func (e *Executor) Cycles() uint64 { return e.globalClk }

func (e *Executor) Memory() *Memory { return e.memory }

// Records returns the closed shards. A faulted run has none.
func (e *Executor) Records() []*ExecutionRecord {
	if e.status == Faulted {
		return nil
	}
	return e.records
}

func (e *Executor) Report() ExecutionReport { return e.report }

func (e *Executor) PublicValues() []byte { return e.publicValues }

// WriteStdin appends a frame to the private input stream.
func (e *Executor) WriteStdin(data []byte) {
	e.inputStream = append(e.inputStream, slices.Clone(data))
}

// Run steps until the program halts or faults.
func (e *Executor) Run() error {
	for e.status == Running {
		if err := e.Step(); err != nil {
			return err
		}
	}
	return e.err
}

// Step executes exactly one instruction.
func (e *Executor) Step() (outErr error) {
	switch e.status {
	case Halted:
		return nil
	case Faulted:
		return e.err
	}
	if e.opts.MaxCycles != 0 && e.globalClk >= e.opts.MaxCycles {
		return e.fault(mips.Instruction{}, fmt.Errorf("%w: %d", ErrCycleLimit, e.opts.MaxCycles))
	}
	if uint64(e.clk)+uint64(e.maxStepClk) > math.MaxUint32 {
		return e.fault(mips.Instruction{}, fmt.Errorf("%w: clock at %d", ErrCycleLimit, e.clk))
	}
	insn, ok := e.program.Fetch(e.pc)
	if !ok {
		return e.fault(insn, fmt.Errorf("%w: %08x", ErrInvalidPC, e.pc))
	}

	// hooks and precompiles panic on contract violations
	defer func() {
		if r := recover(); r != nil {
			outErr = e.fault(insn, fmt.Errorf("panic: %v", r))
		}
	}()

	ev, extra, err := e.execute(insn)
	if err != nil {
		return e.fault(insn, err)
	}

	slices.SortStableFunc(e.pending, func(x, y MemoryRecord) int {
		return cmp.Compare(x.Timestamp, y.Timestamp)
	})
	e.record.MemoryAccesses = append(e.record.MemoryAccesses, e.pending...)
	e.pending = e.pending[:0]

	ev.ExitCode = e.exitCode
	e.record.CpuEvents = append(e.record.CpuEvents, ev)

	e.shardOpcodeCounts[insn.Opcode]++
	e.report.OpcodeCounts[insn.Opcode]++

	e.pc, e.nextPC = ev.NextPC, ev.NextNextPC
	e.clk += ClkIncrement + extra
	e.globalClk++
	e.shardCycles++

	if e.status == Halted {
		e.finish()
	} else if e.shardFull() {
		e.closeShard()
	}
	return nil
}

func (e *Executor) execute(insn mips.Instruction) (CpuEvent, uint32, error) {
	ev := CpuEvent{
		Shard:       e.shard,
		Clk:         e.clk,
		PC:          e.pc,
		NextPC:      e.nextPC,
		NextNextPC:  e.nextPC + 4,
		Instruction: insn,
	}
	var (
		extra uint32
		err   error
	)
	op := insn.Opcode
	switch {
	case op.IsALU():
		e.executeALU(&ev)
	case op.IsMemory():
		err = e.executeMemory(&ev)
	case op.IsBranch():
		e.executeBranch(&ev)
	case op.IsJump():
		e.executeJump(&ev)
	case op == mips.SYSCALL:
		extra, err = e.executeSyscall(&ev)
	default:
		err = e.executeMisc(&ev)
	}
	return ev, extra, err
}

// access reads or writes one word at timestamp ts and records it. Writes to
// $zero always store zero.
func (e *Executor) access(addr, value uint32, write bool, ts uint32, local map[uint32]*MemoryLocalEvent) MemoryRecord {
	if !write {
		value = e.memory.Peek(addr)
	} else if addr == mips.RegZero {
		value = 0
	}
	next := MemoryEntry{Value: value, Shard: e.shard, Timestamp: ts}
	prev := e.memory.access(addr, next)
	rec := MemoryRecord{
		Addr:          addr,
		Value:         value,
		PrevValue:     prev.Value,
		Shard:         e.shard,
		Timestamp:     ts,
		PrevShard:     prev.Shard,
		PrevTimestamp: prev.Timestamp,
		Write:         write,
	}
	if ev, ok := local[addr]; ok {
		ev.FinalMemAccess = next
	} else {
		local[addr] = &MemoryLocalEvent{Addr: addr, InitialMemAccess: prev, FinalMemAccess: next}
	}
	e.pending = append(e.pending, rec)
	return rec
}

func (e *Executor) readReg(r, pos uint32) *MemoryRecord {
	rec := e.access(r, 0, false, e.clk+pos, e.local)
	return &rec
}

func (e *Executor) writeReg(r, value, pos uint32) *MemoryRecord {
	rec := e.access(r, value, true, e.clk+pos, e.local)
	return &rec
}

// operand resolves an immediate or reads a register.
func (e *Executor) operand(v uint32, imm bool, pos uint32) (uint32, *MemoryRecord) {
	if imm {
		return v, nil
	}
	rec := e.readReg(v, pos)
	return rec.Value, rec
}

func (e *Executor) newLookupID() LookupID {
	for {
		if v := e.rng.Uint64(); v != 0 {
			return LookupID(v)
		}
	}
}

func (e *Executor) newSubLookups() (out [NumSubLookups]LookupID) {
	for i := range out {
		out[i] = e.newLookupID()
	}
	return
}

func (e *Executor) shardEstimate() cost.EventCounts {
	cfg := e.opts.Cost
	counts := cfg.EstimateEventCounts(e.shardCycles, uint64(len(e.local)), e.shardSyscallsSent, &e.shardOpcodeCounts)
	return cfg.PadEventCounts(counts, e.opts.ShapeCheckInterval)
}

// shardFull reports whether the next step could overflow the open shard.
func (e *Executor) shardFull() bool {
	if e.clk-e.shardStartClk+e.maxStepClk > e.opts.ShardSize {
		return true
	}
	if e.opts.MaxShardRows == 0 || e.shardCycles%e.opts.ShapeCheckInterval != 0 {
		return false
	}
	if id, over := e.shardEstimate().Exceeds(e.opts.MaxShardRows); over {
		e.log.Debug("Closing shard on estimated rows", "shard", e.shard, "air", id, "cycles", e.shardCycles)
		return true
	}
	return false
}

func (e *Executor) closeShard() {
	rec := e.record
	for _, addr := range sortedAddrs(e.local) {
		rec.MemoryLocalEvents = append(rec.MemoryLocalEvents, *e.local[addr])
	}
	rec.Cycles = e.shardCycles
	rec.EventCounts = e.shardEstimate()
	e.report.EventCounts.Add(rec.RowCounts(e.opts.Cost))
	e.report.Shards++
	e.records = append(e.records, rec)
	e.log.Debug("Closed shard", "shard", e.shard, "cycles", e.shardCycles, "clk", e.clk)

	e.shard++
	e.record = newExecutionRecord(e.shard)
	e.local = make(map[uint32]*MemoryLocalEvent)
	e.shardStartClk = e.clk
	e.shardCycles = 0
	e.shardOpcodeCounts = [mips.NumOpcodes]uint64{}
	e.shardSyscallsSent = 0
}

// finish emits the global memory events and closes the last shard.
func (e *Executor) finish() {
	e.flushOutput()
	for name := range e.cycleTracker {
		e.log.Warn("Cycle tracker span never ended", "name", name)
	}
	e.memory.ForEach(func(addr uint32, entry MemoryEntry, touched, inImage bool) {
		if touched && !inImage {
			e.record.GlobalMemoryInitializeEvents = append(e.record.GlobalMemoryInitializeEvents, MemoryInitializeFinalizeEvent{
				Addr:  addr,
				Value: e.uninitialized[addr],
				Used:  true,
			})
		}
		e.record.GlobalMemoryFinalizeEvents = append(e.record.GlobalMemoryFinalizeEvents, MemoryInitializeFinalizeEvent{
			Addr:      addr,
			Value:     entry.Value,
			Shard:     entry.Shard,
			Timestamp: entry.Timestamp,
			Used:      touched,
		})
	})
	e.record.PublicValuesDigest = e.committedDigest
	e.report.TouchedMemoryAddresses = uint64(e.memory.TouchedCount())
	e.report.ExitCode = e.exitCode
	e.closeShard()
	e.log.Info("Program halted", "exit_code", e.exitCode, "cycles", e.globalClk, "shards", len(e.records))
}

func (e *Executor) fault(insn mips.Instruction, err error) error {
	e.status = Faulted
	e.err = &ExecutionError{PC: e.pc, Clk: e.clk, Instruction: insn, Err: err}
	e.records = nil
	e.record = nil
	e.pending = nil
	e.log.Error("Execution fault", "pc", HexU32(e.pc), "clk", e.clk, "err", err)
	return e.err
}
