package executor

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

// SyscallCode is the value of $v0 at a SYSCALL. Below 4000 the low byte is
// the syscall id, the second byte is set when the call has its own table and
// the third byte is the number of extra clock cycles it takes. From 4000 on
// the code is a Linux o32 system call number.
type SyscallCode uint32

const (
	SyscallHalt     SyscallCode = 0x00_00_00_00
	SyscallWrite    SyscallCode = 0x00_00_00_02
	SyscallCommit   SyscallCode = 0x00_00_00_10
	SyscallHintLen  SyscallCode = 0x00_00_00_F0
	SyscallHintRead SyscallCode = 0x00_00_00_F1

	SyscallKeccakSponge    SyscallCode = 0x00_01_01_09
	SyscallSecp256k1Add    SyscallCode = 0x00_01_01_0A
	SyscallSecp256k1Double SyscallCode = 0x00_00_01_0B
	SyscallBn254Add        SyscallCode = 0x00_01_01_0E
	SyscallBn254Double     SyscallCode = 0x00_00_01_0F
	SyscallUint256Mul      SyscallCode = 0x00_01_01_1D

	SyscallBls12381FpAdd  SyscallCode = 0x00_01_01_20
	SyscallBls12381FpSub  SyscallCode = 0x00_01_01_21
	SyscallBls12381FpMul  SyscallCode = 0x00_01_01_22
	SyscallBls12381Fp2Add SyscallCode = 0x00_01_01_23
	SyscallBls12381Fp2Sub SyscallCode = 0x00_01_01_24
	SyscallBls12381Fp2Mul SyscallCode = 0x00_01_01_25
	SyscallBn254FpAdd     SyscallCode = 0x00_01_01_26
	SyscallBn254FpSub     SyscallCode = 0x00_01_01_27
	SyscallBn254FpMul     SyscallCode = 0x00_01_01_28
	SyscallBn254Fp2Add    SyscallCode = 0x00_01_01_29
	SyscallBn254Fp2Sub    SyscallCode = 0x00_01_01_2A
	SyscallBn254Fp2Mul    SyscallCode = 0x00_01_01_2B

	// SyscallSysLinux keys the precompile events of every Linux syscall.
	SyscallSysLinux SyscallCode = 0x00_00_01_FF
)

var syscallNames = map[SyscallCode]string{
	SyscallHalt:            "HALT",
	SyscallWrite:           "WRITE",
	SyscallCommit:          "COMMIT",
	SyscallHintLen:         "HINT_LEN",
	SyscallHintRead:        "HINT_READ",
	SyscallKeccakSponge:    "KECCAK_SPONGE",
	SyscallSecp256k1Add:    "SECP256K1_ADD",
	SyscallSecp256k1Double: "SECP256K1_DOUBLE",
	SyscallBn254Add:        "BN254_ADD",
	SyscallBn254Double:     "BN254_DOUBLE",
	SyscallUint256Mul:      "UINT256_MUL",
	SyscallBls12381FpAdd:   "BLS12381_FP_ADD",
	SyscallBls12381FpSub:   "BLS12381_FP_SUB",
	SyscallBls12381FpMul:   "BLS12381_FP_MUL",
	SyscallBls12381Fp2Add:  "BLS12381_FP2_ADD",
	SyscallBls12381Fp2Sub:  "BLS12381_FP2_SUB",
	SyscallBls12381Fp2Mul:  "BLS12381_FP2_MUL",
	SyscallBn254FpAdd:      "BN254_FP_ADD",
	SyscallBn254FpSub:      "BN254_FP_SUB",
	SyscallBn254FpMul:      "BN254_FP_MUL",
	SyscallBn254Fp2Add:     "BN254_FP2_ADD",
	SyscallBn254Fp2Sub:     "BN254_FP2_SUB",
	SyscallBn254Fp2Mul:     "BN254_FP2_MUL",
	SyscallSysLinux:        "SYS_LINUX",

	mips.SysRead:          "SYS_READ",
	mips.SysWrite:         "SYS_WRITE",
	mips.SysClose:         "SYS_CLOSE",
	mips.SysBrk:           "SYS_BRK",
	mips.SysFcntl:         "SYS_FCNTL",
	mips.SysMmap:          "SYS_MMAP",
	mips.SysMunmap:        "SYS_MUNMAP",
	mips.SysClone:         "SYS_CLONE",
	mips.SysSchedYield:    "SYS_SCHED_YIELD",
	mips.SysRtSigaction:   "SYS_RT_SIGACTION",
	mips.SysRtSigprocmask: "SYS_RT_SIGPROCMASK",
	mips.SysSigaltstack:   "SYS_SIGALTSTACK",
	mips.SysMmap2:         "SYS_MMAP2",
	mips.SysMadvise:       "SYS_MADVISE",
	mips.SysGetTID:        "SYS_GETTID",
	mips.SysFutex:         "SYS_FUTEX",
	mips.SysSchedGetaffin: "SYS_SCHED_GETAFFINITY",
	mips.SysExitGroup:     "SYS_EXIT_GROUP",
	mips.SysClockGetTime:  "SYS_CLOCK_GETTIME",
	mips.SysSetThreadArea: "SYS_SET_THREAD_AREA",
	mips.SysPrlimit64:     "SYS_PRLIMIT64",
}

// IsLinux reports whether c is an o32 system call number. Precompile codes
// with an extra cycle byte are larger still.
func (c SyscallCode) IsLinux() bool {
	return c >= mips.SysLinuxCodeStart && c < mips.SysLinuxCodeEnd
}

// ID is the number recorded in syscall events.
func (c SyscallCode) ID() uint32 {
	if c.IsLinux() {
		return uint32(c)
	}
	return uint32(c) & 0xFF
}

// SendToTable reports whether the call is checked by the syscall table.
func (c SyscallCode) SendToTable() bool {
	if c.IsLinux() {
		return true
	}
	return (c>>8)&0xFF == 1
}

// ExtraCycles is the number of clock cycles the call takes beyond a plain
// instruction.
func (c SyscallCode) ExtraCycles() uint32 {
	if c.IsLinux() {
		return 0
	}
	return uint32(c>>16) & 0xFF
}

func (c SyscallCode) String() string {
	if name, ok := syscallNames[c]; ok {
		return name
	}
	return fmt.Sprintf("SYSCALL_%#x", uint32(c))
}

func (c SyscallCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *SyscallCode) UnmarshalText(text []byte) error {
	s := string(text)
	for code, name := range syscallNames {
		if name == s {
			*c = code
			return nil
		}
	}
	if raw, ok := strings.CutPrefix(s, "SYSCALL_"); ok {
		v, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid syscall code %q: %w", s, err)
		}
		*c = SyscallCode(v)
		return nil
	}
	return fmt.Errorf("unknown syscall %q", s)
}

// Syscall is the handler of one syscall code. ok is false when the call
// leaves $v0 untouched, for instance because execution halted.
type Syscall interface {
	Execute(ctx *SyscallContext, code SyscallCode, arg1, arg2 uint32) (ret uint32, ok bool, err error)
	NumExtraCycles() uint32
}

// SyscallFunc adapts a function without extra cycles to a Syscall.
type SyscallFunc func(ctx *SyscallContext, code SyscallCode, arg1, arg2 uint32) (uint32, bool, error)

func (f SyscallFunc) Execute(ctx *SyscallContext, code SyscallCode, arg1, arg2 uint32) (uint32, bool, error) {
	return f(ctx, code, arg1, arg2)
}

func (f SyscallFunc) NumExtraCycles() uint32 { return 0 }

// DefaultSyscallMap returns the full syscall table.
func DefaultSyscallMap() map[SyscallCode]Syscall {
	table := map[SyscallCode]Syscall{
		SyscallHalt:     SyscallFunc(sysHalt),
		SyscallWrite:    SyscallFunc(sysWrite),
		SyscallCommit:   SyscallFunc(sysCommit),
		SyscallHintLen:  SyscallFunc(sysHintLen),
		SyscallHintRead: SyscallFunc(sysHintRead),

		SyscallKeccakSponge:    keccakSpongeSyscall{},
		SyscallSecp256k1Add:    newCurveAddSyscall(CurveSecp256k1),
		SyscallSecp256k1Double: newCurveDoubleSyscall(CurveSecp256k1),
		SyscallBn254Add:        newCurveAddSyscall(CurveBn254),
		SyscallBn254Double:     newCurveDoubleSyscall(CurveBn254),
		SyscallUint256Mul:      uint256MulSyscall{},

		SyscallBls12381FpAdd:  newFpOpSyscall(CurveBls12381, FieldAdd),
		SyscallBls12381FpSub:  newFpOpSyscall(CurveBls12381, FieldSub),
		SyscallBls12381FpMul:  newFpOpSyscall(CurveBls12381, FieldMul),
		SyscallBls12381Fp2Add: newFp2AddSubSyscall(CurveBls12381, FieldAdd),
		SyscallBls12381Fp2Sub: newFp2AddSubSyscall(CurveBls12381, FieldSub),
		SyscallBls12381Fp2Mul: newFp2MulSyscall(CurveBls12381),
		SyscallBn254FpAdd:     newFpOpSyscall(CurveBn254, FieldAdd),
		SyscallBn254FpSub:     newFpOpSyscall(CurveBn254, FieldSub),
		SyscallBn254FpMul:     newFpOpSyscall(CurveBn254, FieldMul),
		SyscallBn254Fp2Add:    newFp2AddSubSyscall(CurveBn254, FieldAdd),
		SyscallBn254Fp2Sub:    newFp2AddSubSyscall(CurveBn254, FieldSub),
		SyscallBn254Fp2Mul:    newFp2MulSyscall(CurveBn254),
	}
	for code, fn := range linuxSyscalls() {
		table[code] = linuxSyscall(fn)
	}
	return table
}

func maxExtraCycles(table map[SyscallCode]Syscall) (out uint32) {
	for _, s := range table {
		out = max(out, s.NumExtraCycles())
	}
	return
}

// SortedSyscallCodes lists the codes of a table in ascending order.
func SortedSyscallCodes[V any](table map[SyscallCode]V) []SyscallCode {
	codes := maps.Keys(table)
	slices.Sort(codes)
	return codes
}

// SyscallContext is the view a syscall handler has of the executor. Its
// accesses are recorded at Clk, which handlers may advance by the extra
// cycles they declared.
type SyscallContext struct {
	e *Executor

	Clk    uint32
	NextPC uint32

	event SyscallEvent

	reads  []MemoryRecord
	writes []MemoryRecord
	local  map[uint32]*MemoryLocalEvent
}

func newSyscallContext(e *Executor, event SyscallEvent) *SyscallContext {
	return &SyscallContext{
		e:      e,
		Clk:    event.Clk,
		NextPC: event.NextPC,
		event:  event,
		local:  make(map[uint32]*MemoryLocalEvent),
	}
}

func (c *SyscallContext) Shard() uint32 { return c.e.shard }

// MR reads a register or an aligned data word.
func (c *SyscallContext) MR(addr uint32) (MemoryRecord, uint32) {
	rec := c.e.access(addr, 0, false, c.Clk, c.local)
	c.reads = append(c.reads, rec)
	return rec, rec.Value
}

// MW writes a register or an aligned data word.
func (c *SyscallContext) MW(addr, value uint32) MemoryRecord {
	rec := c.e.access(addr, value, true, c.Clk, c.local)
	c.writes = append(c.writes, rec)
	return rec
}

func (c *SyscallContext) MRSlice(addr uint32, n int) ([]MemoryRecord, []uint32) {
	records := make([]MemoryRecord, n)
	values := make([]uint32, n)
	for i := range records {
		records[i], values[i] = c.MR(addr + uint32(4*i))
	}
	return records, values
}

func (c *SyscallContext) MWSlice(addr uint32, values []uint32) []MemoryRecord {
	records := make([]MemoryRecord, len(values))
	for i, v := range values {
		records[i] = c.MW(addr+uint32(4*i), v)
	}
	return records
}

// Word returns a word without recording the access.
func (c *SyscallContext) Word(addr uint32) uint32 {
	return c.e.memory.Peek(addr)
}

// Words is the unrecorded form of MRSlice.
func (c *SyscallContext) Words(addr uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = c.Word(addr + uint32(4*i))
	}
	return out
}

// Byte returns one byte of big-endian memory without recording the access.
func (c *SyscallContext) Byte(addr uint32) byte {
	w := c.Word(addr &^ 3)
	return byte(w >> (24 - 8*(addr&3)))
}

func (c *SyscallContext) Bytes(addr, n uint32) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = c.Byte(addr + uint32(i))
	}
	return out
}

// Register returns a register without recording the access.
func (c *SyscallContext) Register(r uint32) uint32 {
	return c.e.memory.Peek(r)
}

// Halt stops execution after the current instruction.
func (c *SyscallContext) Halt(exitCode uint32) {
	c.e.exitCode = exitCode
	c.e.status = Halted
	c.NextPC = 0
}

// CheckPointer validates a word-aligned data buffer of n words.
func (c *SyscallContext) CheckPointer(ptr uint32, n int) error {
	if ptr&3 != 0 {
		return fmt.Errorf("%w: pointer %08x", ErrUnalignedAccess, ptr)
	}
	end := uint64(ptr) + 4*uint64(n)
	if ptr < RegisterSpaceEnd || end > 1<<32 {
		return fmt.Errorf("%w: buffer %08x of %d words", ErrInvalidMemoryAccess, ptr, n)
	}
	return nil
}

// AddPrecompileEvent stores a precompile event together with the syscall
// event of the current call.
func (c *SyscallContext) AddPrecompileEvent(code SyscallCode, ev PrecompileEvent) {
	c.e.record.PrecompileEvents = append(c.e.record.PrecompileEvents, PrecompileEntry{
		Code:    code,
		Syscall: c.event,
		Event:   ev,
	})
}

func (c *SyscallContext) base(startClk uint32) precompileBase {
	return precompileBase{Shard: c.e.shard, Clk: startClk, LocalMemAccess: c.postprocess()}
}

// postprocess hands out the local memory events of this call. Addresses the
// shard already tracks are folded into the shard's events instead.
func (c *SyscallContext) postprocess() []MemoryLocalEvent {
	var out []MemoryLocalEvent
	for _, addr := range sortedAddrs(c.local) {
		ev := c.local[addr]
		if shardEv, ok := c.e.local[addr]; ok {
			shardEv.FinalMemAccess = ev.FinalMemAccess
			continue
		}
		out = append(out, *ev)
	}
	c.local = make(map[uint32]*MemoryLocalEvent)
	return out
}

// release merges unclaimed local events into the shard.
func (c *SyscallContext) release() {
	for addr, ev := range c.local {
		if shardEv, ok := c.e.local[addr]; ok {
			shardEv.FinalMemAccess = ev.FinalMemAccess
		} else {
			c.e.local[addr] = ev
		}
	}
	c.local = nil
}

func sortedAddrs(m map[uint32]*MemoryLocalEvent) []uint32 {
	addrs := maps.Keys(m)
	slices.Sort(addrs)
	return addrs
}
