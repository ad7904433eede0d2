package executor

import (
	"debug/elf"
	"errors"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/zkmips/zkmips/mipsgo/cost"
	. "github.com/zkmips/zkmips/mipsgo/internal/testutil"
	"github.com/zkmips/zkmips/mipsgo/mips"
	"github.com/zkmips/zkmips/mipsgo/program"
)

const (
	entry    = 0x00400000
	dataAddr = 0x00500000
	freeAddr = 0x00600000
)

func testLogger() log.Logger {
	return log.NewLogger(log.LogfmtHandlerWithLevel(io.Discard, log.LevelInfo))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = testLogger()
	opts.LookupSeed = 7
	return opts
}

// loadProgram builds an executable with code at entry and, when data is
// set, a writable segment at dataAddr.
func loadProgram(t *testing.T, data []byte, code ...uint32) *program.Program {
	t.Helper()
	f := &ELF{
		Entry:    entry,
		Segments: []Segment{{Vaddr: entry, Data: Words(code...), Flags: elf.PF_R | elf.PF_X}},
	}
	if len(data) > 0 {
		f.Segments = append(f.Segments, Segment{Vaddr: dataAddr, Data: data, Flags: elf.PF_R | elf.PF_W})
	}
	p, err := program.Load(f.Bytes(), 0)
	require.NoError(t, err)
	return p
}

func newExecutor(t *testing.T, opts Options, data []byte, code ...uint32) *Executor {
	t.Helper()
	e, err := New(loadProgram(t, data, code...), opts)
	require.NoError(t, err)
	return e
}

// run executes until halt and requires a clean exit.
func run(t *testing.T, e *Executor) {
	t.Helper()
	require.NoError(t, e.Run())
	require.Equal(t, Halted, e.Status())
}

func runCode(t *testing.T, data []byte, code ...uint32) *Executor {
	t.Helper()
	e := newExecutor(t, testOptions(), data, code...)
	run(t, e)
	return e
}

func concat(parts ...[]uint32) (out []uint32) {
	for _, p := range parts {
		out = append(out, p...)
	}
	return
}

// exit halts with the given code.
func exit(code int16) []uint32 {
	return []uint32{ADDIU(mips.RegV0, mips.RegZero, 0), ADDIU(mips.RegA0, mips.RegZero, code), SYSCALL()}
}

func lastRecord(e *Executor) *ExecutionRecord {
	records := e.Records()
	return records[len(records)-1]
}

func allAlu(e *Executor, id cost.AirID) (out []AluEvent) {
	for _, r := range e.Records() {
		out = append(out, r.Alu(id)...)
	}
	return
}

func TestSingleAdd(t *testing.T) {
	e := runCode(t, nil, ADDI(mips.RegT0, mips.RegZero, 5), SYSCALL())
	require.Equal(t, uint32(0), e.ExitCode())
	require.Equal(t, uint32(5), e.Memory().Peek(mips.RegT0))

	records := e.Records()
	require.Len(t, records, 1)
	rec := records[0]
	require.Len(t, rec.CpuEvents, 2)
	require.Len(t, rec.AllAluEvents(), 1)
	adds := rec.Alu(cost.AirAddSub)
	require.Len(t, adds, 1)
	require.Equal(t, mips.ADDI, adds[0].Opcode)
	require.Equal(t, uint32(5), adds[0].A)
	require.Equal(t, uint32(0), adds[0].B)
	require.Equal(t, uint32(5), adds[0].C)
	require.Equal(t, adds[0].LookupID, rec.CpuEvents[0].AluLookupID)
	require.NotZero(t, adds[0].LookupID)

	require.Equal(t, uint32(1), rec.CpuEvents[0].Clk)
	require.Equal(t, uint32(1+ClkIncrement), rec.CpuEvents[1].Clk)
	require.Equal(t, uint64(2), e.Report().TotalInstructionCount())
}

func TestDivideByZero(t *testing.T) {
	e := runCode(t, nil,
		ADDIU(mips.RegT1, mips.RegZero, 1234),
		DIV(mips.RegT1, mips.RegZero),
		MFLO(mips.RegT0),
		MFHI(mips.RegT2),
		SYSCALL(),
	)
	require.Equal(t, uint32(0xFFFFFFFF), e.Memory().Peek(mips.RegT0))
	require.Equal(t, uint32(1234), e.Memory().Peek(mips.RegT2))

	divs := allAlu(e, cost.AirDivRem)
	require.Len(t, divs, 1)
	require.Equal(t, uint32(0xFFFFFFFF), divs[0].A)
	require.Equal(t, uint32(1234), divs[0].Hi)

	muls := allAlu(e, cost.AirMul)
	require.Len(t, muls, 1)
	mul := muls[0]
	require.Equal(t, mips.MULT, mul.Opcode)
	require.Equal(t, uint32(0xFFFFFFFF), mul.B)
	require.Zero(t, mul.C)
	require.Zero(t, mul.A)
	require.Zero(t, mul.Hi)
	require.Equal(t, divs[0].SubLookups[subLookupMul], mul.LookupID)
	require.Equal(t, uint32(1234), mul.A+divs[0].Hi, "q*c + rem reconstructs b")
	require.Empty(t, allAlu(e, cost.AirLt), "no remainder bound without a divisor")
}

func TestCountLeadingZeros(t *testing.T) {
	e := runCode(t, nil,
		CLZ(mips.RegT0, mips.RegZero),
		ADDIU(mips.RegT1, mips.RegZero, 1),
		CLZ(mips.RegT2, mips.RegT1),
		SYSCALL(),
	)
	require.Equal(t, uint32(32), e.Memory().Peek(mips.RegT0))
	require.Equal(t, uint32(31), e.Memory().Peek(mips.RegT2))

	require.Len(t, allAlu(e, cost.AirCloClz), 2)
	srls := allAlu(e, cost.AirShiftRight)
	require.Len(t, srls, 1)
	require.Equal(t, mips.SRL, srls[0].Opcode)
	require.Equal(t, uint32(1), srls[0].A)
	require.Equal(t, uint32(1), srls[0].B)
	require.Equal(t, uint32(0), srls[0].C)
}

func TestALU(t *testing.T) {
	cases := []struct {
		name string
		code []uint32
		reg  uint32
		want uint32
	}{
		{"addu wraps", concat(LoadImm(mips.RegT1, 0xFFFFFFFF), []uint32{ADDU(mips.RegT0, mips.RegT1, mips.RegT1)}), mips.RegT0, 0xFFFFFFFE},
		{"subu wraps", []uint32{SUBU(mips.RegT0, mips.RegZero, mips.RegZero), ADDIU(mips.RegT1, mips.RegZero, 1), SUBU(mips.RegT0, mips.RegZero, mips.RegT1)}, mips.RegT0, 0xFFFFFFFF},
		{"mult lo", []uint32{ADDIU(mips.RegT1, mips.RegZero, -3), ADDIU(mips.RegT2, mips.RegZero, 5), MULT(mips.RegT1, mips.RegT2), MFLO(mips.RegT0)}, mips.RegT0, 0xFFFFFFF1},
		{"mult hi", []uint32{ADDIU(mips.RegT1, mips.RegZero, -3), ADDIU(mips.RegT2, mips.RegZero, 5), MULT(mips.RegT1, mips.RegT2), MFHI(mips.RegT0)}, mips.RegT0, 0xFFFFFFFF},
		{"multu hi", []uint32{ADDIU(mips.RegT1, mips.RegZero, -1), ADDIU(mips.RegT2, mips.RegZero, 2), MULTU(mips.RegT1, mips.RegT2), MFHI(mips.RegT0)}, mips.RegT0, 1},
		{"maddu", []uint32{ADDIU(mips.RegT1, mips.RegZero, -1), ADDIU(mips.RegT2, mips.RegZero, 2), MULTU(mips.RegT1, mips.RegT2), Special2(0x01, mips.RegT1, mips.RegT2, 0), MFHI(mips.RegT0)}, mips.RegT0, 3},
		{"mul", []uint32{ADDIU(mips.RegT1, mips.RegZero, 7), ADDIU(mips.RegT2, mips.RegZero, -6), MUL(mips.RegT0, mips.RegT1, mips.RegT2)}, mips.RegT0, 0xFFFFFFD6},
		{"div signed", []uint32{ADDIU(mips.RegT1, mips.RegZero, -7), ADDIU(mips.RegT2, mips.RegZero, 2), DIV(mips.RegT1, mips.RegT2), MFLO(mips.RegT0)}, mips.RegT0, 0xFFFFFFFD},
		{"div signed rem", []uint32{ADDIU(mips.RegT1, mips.RegZero, -7), ADDIU(mips.RegT2, mips.RegZero, 2), DIV(mips.RegT1, mips.RegT2), MFHI(mips.RegT0)}, mips.RegT0, 0xFFFFFFFF},
		{"divu", []uint32{ADDIU(mips.RegT1, mips.RegZero, -7), ADDIU(mips.RegT2, mips.RegZero, 2), DIVU(mips.RegT1, mips.RegT2), MFLO(mips.RegT0)}, mips.RegT0, 0x7FFFFFFC},
		{"sra", concat(LoadImm(mips.RegT1, 0x80000000), []uint32{SRA(mips.RegT0, mips.RegT1, 4)}), mips.RegT0, 0xF8000000},
		{"sll", []uint32{ADDIU(mips.RegT1, mips.RegZero, 3), SLL(mips.RegT0, mips.RegT1, 4)}, mips.RegT0, 0x30},
		{"rotr", concat(LoadImm(mips.RegT1, 0x12345678), []uint32{RType(0x02, 1, mips.RegT1, mips.RegT0, 8)}), mips.RegT0, 0x78123456},
		{"slt", []uint32{ADDIU(mips.RegT1, mips.RegZero, -1), ADDIU(mips.RegT2, mips.RegZero, 1), SLT(mips.RegT0, mips.RegT1, mips.RegT2)}, mips.RegT0, 1},
		{"slti", []uint32{ADDIU(mips.RegT1, mips.RegZero, 4), SLTI(mips.RegT0, mips.RegT1, -4)}, mips.RegT0, 0},
		{"lui", []uint32{LUI(mips.RegT0, 0xABCD)}, mips.RegT0, 0xABCD0000},
		{"andi", concat(LoadImm(mips.RegT1, 0x12345678), []uint32{ANDI(mips.RegT0, mips.RegT1, 0xFF00)}), mips.RegT0, 0x5600},
		{"clo", concat(LoadImm(mips.RegT1, 0xF0000000), []uint32{CLO(mips.RegT0, mips.RegT1)}), mips.RegT0, 4},
		{"ext", concat(LoadImm(mips.RegT1, 0x12345678), []uint32{EXT(mips.RegT0, mips.RegT1, 4, 8)}), mips.RegT0, 0x67},
		{"ext full", concat(LoadImm(mips.RegT1, 0x12345678), []uint32{EXT(mips.RegT0, mips.RegT1, 0, 32)}), mips.RegT0, 0x12345678},
		{"ins", concat(LoadImm(mips.RegT0, 0xAAAAAAAA), LoadImm(mips.RegT1, 0x12345678), []uint32{INS(mips.RegT0, mips.RegT1, 8, 8)}), mips.RegT0, 0xAAAA78AA},
		{"seb", []uint32{ADDIU(mips.RegT1, mips.RegZero, 0x80), SEB(mips.RegT0, mips.RegT1)}, mips.RegT0, 0xFFFFFF80},
		{"seh", []uint32{ORI(mips.RegT1, mips.RegZero, 0x8000), SEH(mips.RegT0, mips.RegT1)}, mips.RegT0, 0xFFFF8000},
		{"wsbh", concat(LoadImm(mips.RegT1, 0x11223344), []uint32{WSBH(mips.RegT0, mips.RegT1)}), mips.RegT0, 0x22114433},
		{"movz moves", []uint32{ADDIU(mips.RegT1, mips.RegZero, 9), MOVZ(mips.RegT0, mips.RegT1, mips.RegZero)}, mips.RegT0, 9},
		{"movn keeps", []uint32{ADDIU(mips.RegT0, mips.RegZero, 3), ADDIU(mips.RegT1, mips.RegZero, 9), MOVN(mips.RegT0, mips.RegT1, mips.RegZero)}, mips.RegT0, 3},
		{"zero register", []uint32{ADDIU(mips.RegZero, mips.RegZero, 9)}, mips.RegZero, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := runCode(t, nil, append(tc.code, SYSCALL())...)
			require.Equal(t, tc.want, e.Memory().Peek(tc.reg))
		})
	}
}

func TestDivisionDependencies(t *testing.T) {
	cases := []struct {
		b, c uint32
	}{
		{7, 2},
		{0xFFFFFFF9, 2},
		{7, 0xFFFFFFFE},
		{0xFFFFFFF9, 0xFFFFFFFE},
		{0x80000000, 0xFFFFFFFF},
		{0x80000000, 0x80000000},
		{12345, 0},
		{0, 5},
		{0xFFFFFFFF, 1},
	}
	for _, tc := range cases {
		for _, signed := range []bool{true, false} {
			div, mulOp := DIVU(mips.RegT1, mips.RegT2), mips.MULTU
			if signed {
				div, mulOp = DIV(mips.RegT1, mips.RegT2), mips.MULT
			}
			e := runCode(t, nil, concat(LoadImm(mips.RegT1, tc.b), LoadImm(mips.RegT2, tc.c), []uint32{div, SYSCALL()})...)

			divs := allAlu(e, cost.AirDivRem)
			require.Len(t, divs, 1)
			q, rem := divs[0].A, divs[0].Hi

			muls := allAlu(e, cost.AirMul)
			require.Len(t, muls, 1)
			require.Equal(t, mulOp, muls[0].Opcode)
			require.Equal(t, q, muls[0].B)
			require.Equal(t, tc.c, muls[0].C)
			require.Equal(t, tc.b, muls[0].A+rem, "b = q*c + rem for %08x / %08x", tc.b, tc.c)

			lts := allAlu(e, cost.AirLt)
			if tc.c == 0 {
				require.Empty(t, lts)
				require.Equal(t, uint32(0xFFFFFFFF), q)
				require.Equal(t, tc.b, rem)
				continue
			}
			require.Len(t, lts, 1)
			require.Equal(t, mips.SLTU, lts[0].Opcode)
			require.Equal(t, uint32(1), lts[0].A, "remainder bounded for %08x / %08x", tc.b, tc.c)

			// every abs proof adds to zero
			for _, add := range allAlu(e, cost.AirAddSub) {
				if add.Opcode == mips.ADD {
					require.Zero(t, add.B+add.C)
					require.True(t, signed)
				}
			}
		}
	}
}

func TestLoadsAndStores(t *testing.T) {
	data := Words(0x81828384, 0x11223344)
	base := LoadImm(mips.RegS0, dataAddr)
	cases := []struct {
		name string
		code []uint32
		reg  uint32
		want uint32
		mem  uint32
	}{
		{name: "lb", code: []uint32{LB(mips.RegT0, mips.RegS0, 0)}, reg: mips.RegT0, want: 0xFFFFFF81},
		{name: "lb last byte", code: []uint32{LB(mips.RegT0, mips.RegS0, 3)}, reg: mips.RegT0, want: 0xFFFFFF84},
		{name: "lb positive", code: []uint32{LB(mips.RegT0, mips.RegS0, 5)}, reg: mips.RegT0, want: 0x22},
		{name: "lbu", code: []uint32{LBU(mips.RegT0, mips.RegS0, 1)}, reg: mips.RegT0, want: 0x82},
		{name: "lh", code: []uint32{LH(mips.RegT0, mips.RegS0, 0)}, reg: mips.RegT0, want: 0xFFFF8182},
		{name: "lhu", code: []uint32{LHU(mips.RegT0, mips.RegS0, 2)}, reg: mips.RegT0, want: 0x8384},
		{name: "lw", code: []uint32{LW(mips.RegT0, mips.RegS0, 4)}, reg: mips.RegT0, want: 0x11223344},
		{name: "lwl", code: concat(LoadImm(mips.RegT0, 0xAABBCCDD), []uint32{LWL(mips.RegT0, mips.RegS0, 1)}), reg: mips.RegT0, want: 0x828384DD},
		{name: "lwr", code: concat(LoadImm(mips.RegT0, 0xAABBCCDD), []uint32{LWR(mips.RegT0, mips.RegS0, 1)}), reg: mips.RegT0, want: 0xAABB8182},
		{name: "lwr aligned end", code: []uint32{LWR(mips.RegT0, mips.RegS0, 3)}, reg: mips.RegT0, want: 0x81828384},
		{name: "sb", code: []uint32{ADDIU(mips.RegT1, mips.RegZero, 0x55), SB(mips.RegT1, mips.RegS0, 1)}, mem: 0x81558384},
		{name: "sh", code: []uint32{ORI(mips.RegT1, mips.RegZero, 0x5566), SH(mips.RegT1, mips.RegS0, 2)}, mem: 0x81825566},
		{name: "sw", code: []uint32{ADDIU(mips.RegT1, mips.RegZero, 7), SW(mips.RegT1, mips.RegS0, 0)}, mem: 7},
		{name: "swl", code: concat(LoadImm(mips.RegT1, 0xAABBCCDD), []uint32{SWL(mips.RegT1, mips.RegS0, 1)}), mem: 0x81AABBCC},
		{name: "swr", code: concat(LoadImm(mips.RegT1, 0xAABBCCDD), []uint32{SWR(mips.RegT1, mips.RegS0, 1)}), mem: 0xCCDD8384},
		{name: "ll", code: []uint32{LL(mips.RegT0, mips.RegS0, 4)}, reg: mips.RegT0, want: 0x11223344},
		{name: "sc result", code: []uint32{ADDIU(mips.RegT1, mips.RegZero, 7), SC(mips.RegT1, mips.RegS0, 0)}, reg: mips.RegT1, want: 1, mem: 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := runCode(t, data, concat(base, tc.code, []uint32{SYSCALL()})...)
			if tc.reg != 0 {
				require.Equal(t, tc.want, e.Memory().Peek(tc.reg))
			}
			if tc.mem != 0 {
				require.Equal(t, tc.mem, e.Memory().Peek(dataAddr))
			}
		})
	}

	t.Run("address and sign dependencies", func(t *testing.T) {
		e := runCode(t, data, concat(base, []uint32{LB(mips.RegT0, mips.RegS0, 1), LB(mips.RegT1, mips.RegS0, 5), SYSCALL()})...)
		var addrs, subs []AluEvent
		for _, ev := range allAlu(e, cost.AirAddSub) {
			switch ev.Opcode {
			case mips.ADD:
				addrs = append(addrs, ev)
			case mips.SUB:
				subs = append(subs, ev)
			}
		}
		require.Len(t, addrs, 2)
		require.Equal(t, uint32(dataAddr+1), addrs[0].A)
		require.Equal(t, uint32(dataAddr), addrs[0].B)
		require.Equal(t, uint32(1), addrs[0].C)
		require.Len(t, subs, 1, "only the negative byte needs a sign proof")
		require.Equal(t, uint32(0xFFFFFF82), subs[0].A)
		require.Equal(t, uint32(0x82), subs[0].B)
		require.Equal(t, uint32(0x100), subs[0].C)

		cpu := lastRecord(e).CpuEvents[2]
		require.Equal(t, addrs[0].LookupID, cpu.MemoryAddLookupID)
		require.Equal(t, subs[0].LookupID, cpu.MemorySubLookupID)
		require.NotNil(t, cpu.MemoryRecord)
		require.Equal(t, uint32(dataAddr), cpu.MemoryRecord.Addr)
	})
}

func TestBranches(t *testing.T) {
	t.Run("counted loop", func(t *testing.T) {
		e := runCode(t, nil,
			ADDIU(mips.RegT0, mips.RegZero, 10),
			ADDIU(mips.RegT0, mips.RegT0, -1),
			BNE(mips.RegT0, mips.RegZero, -2),
			NOP(),
			SYSCALL(),
		)
		require.Zero(t, e.Memory().Peek(mips.RegT0))
		rec := lastRecord(e)
		require.Len(t, rec.BranchEvents, 10)
		taken := 0
		for _, br := range rec.BranchEvents {
			if br.Taken {
				taken++
				require.Equal(t, uint32(entry+4), br.NextNextPC)
			}
		}
		require.Equal(t, 9, taken)
		require.Len(t, rec.Alu(cost.AirAddSub), 11+9)
		require.Empty(t, rec.Alu(cost.AirLt), "equality branches need no sign proofs")
	})

	t.Run("signed compare", func(t *testing.T) {
		e := runCode(t, nil,
			ADDIU(mips.RegT0, mips.RegZero, -5),
			BLTZ(mips.RegT0, 2),
			NOP(),
			ADDIU(mips.RegT1, mips.RegZero, 1), // skipped
			BGEZ(mips.RegT0, 2),
			NOP(),
			ADDIU(mips.RegT2, mips.RegZero, 1),
			SYSCALL(),
		)
		require.Zero(t, e.Memory().Peek(mips.RegT1))
		require.Equal(t, uint32(1), e.Memory().Peek(mips.RegT2))

		lts := allAlu(e, cost.AirLt)
		require.Len(t, lts, 4)
		require.Equal(t, AluEvent{LookupID: lts[0].LookupID, Shard: 1, Clk: lts[0].Clk, Opcode: mips.SLT, A: 1, B: 0xFFFFFFFB}, lts[0])
		require.Equal(t, AluEvent{LookupID: lts[1].LookupID, Shard: 1, Clk: lts[1].Clk, Opcode: mips.SLT, A: 0, B: 0, C: 0xFFFFFFFB}, lts[1])

		brs := lastRecord(e).BranchEvents
		require.True(t, brs[0].Taken)
		require.False(t, brs[1].Taken)
		require.Equal(t, brs[0].LookupID, lastRecord(e).CpuEvents[1].BranchLookupID)
	})
}

func TestJumps(t *testing.T) {
	e := runCode(t, nil,
		JAL(entry+16),
		ADDIU(mips.RegT0, mips.RegZero, 1),
		SYSCALL(),
		NOP(),
		ADDIU(mips.RegT1, mips.RegZero, 2),
		JR(mips.RegRA),
		NOP(),
	)
	require.Equal(t, uint32(1), e.Memory().Peek(mips.RegT0))
	require.Equal(t, uint32(2), e.Memory().Peek(mips.RegT1))
	require.Equal(t, uint32(entry+8), e.Memory().Peek(mips.RegRA))

	jumps := lastRecord(e).JumpEvents
	require.Len(t, jumps, 2)
	require.Equal(t, mips.Jumpi, jumps[0].Opcode)
	require.Equal(t, uint32(entry+16), jumps[0].B)
	require.Equal(t, mips.Jump, jumps[1].Opcode)
	require.Equal(t, uint32(entry+8), jumps[1].NextNextPC)

	t.Run("bal", func(t *testing.T) {
		e := runCode(t, nil,
			BAL(2),
			NOP(),
			SYSCALL(),
			ADDIU(mips.RegT0, mips.RegZero, 3),
			JR(mips.RegRA),
			NOP(),
		)
		require.Equal(t, uint32(3), e.Memory().Peek(mips.RegT0))
		require.Equal(t, uint32(entry+8), e.Memory().Peek(mips.RegRA))
	})
}

func TestMisc(t *testing.T) {
	t.Run("invalid instruction is skipped", func(t *testing.T) {
		e := runCode(t, nil, 0xFC000000, ADDIU(mips.RegT0, mips.RegZero, 1), SYSCALL())
		require.Equal(t, uint32(1), e.Memory().Peek(mips.RegT0))
		require.Equal(t, mips.INVALID, lastRecord(e).CpuEvents[0].Instruction.Opcode)
	})

	t.Run("sync and pref", func(t *testing.T) {
		e := runCode(t, nil, RType(0x0F, 0, 0, 0, 0), IType(0x33, 0, 0, 0), SYSCALL())
		require.Equal(t, uint64(2), e.Report().OpcodeCounts[mips.NOP])
	})

	t.Run("rdhwr reads the thread pointer", func(t *testing.T) {
		e := runCode(t, nil, concat(
			[]uint32{
				ADDIU(mips.RegV0, mips.RegZero, mips.SysSetThreadArea),
				ADDIU(mips.RegA0, mips.RegZero, 0x1230),
				SYSCALL(),
				Special3(0x3B, 0, mips.RegT0, 29, 0),
			},
			exit(0),
		)...)
		require.Equal(t, uint32(0x1230), e.Memory().Peek(mips.RegT0))
	})
}

func TestFaults(t *testing.T) {
	cases := []struct {
		name string
		code []uint32
		opts func(*Options)
		err  error
	}{
		{name: "pc out of range", code: []uint32{JR(mips.RegZero), NOP()}, err: ErrInvalidPC},
		{name: "unaligned word", code: concat(LoadImm(mips.RegT0, dataAddr+1), []uint32{LW(mips.RegT1, mips.RegT0, 0)}), err: ErrUnalignedAccess},
		{name: "unaligned half", code: concat(LoadImm(mips.RegT0, dataAddr+1), []uint32{SH(mips.RegT1, mips.RegT0, 0)}), err: ErrUnalignedAccess},
		{name: "register space", code: []uint32{LW(mips.RegT1, mips.RegZero, 0x10)}, err: ErrInvalidMemoryAccess},
		{name: "trap", code: []uint32{TEQ(mips.RegZero, mips.RegZero)}, err: ErrTrap},
		{
			name: "cycle limit",
			code: []uint32{BEQ(mips.RegZero, mips.RegZero, -1), NOP()},
			opts: func(o *Options) { o.MaxCycles = 50 },
			err:  ErrCycleLimit,
		},
		{name: "hint without input", code: []uint32{ADDIU(mips.RegV0, mips.RegZero, int16(SyscallHintLen)), SYSCALL()}, err: ErrInputExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := testOptions()
			if tc.opts != nil {
				tc.opts(&opts)
			}
			e := newExecutor(t, opts, nil, tc.code...)
			err := e.Run()
			require.ErrorIs(t, err, tc.err)
			require.Equal(t, Faulted, e.Status())
			require.Nil(t, e.Records())

			var execErr *ExecutionError
			require.True(t, errors.As(err, &execErr))
			require.Equal(t, err, e.Err())
			require.Equal(t, err, e.Step(), "a faulted run stays faulted")
		})
	}

	t.Run("unsupported syscall", func(t *testing.T) {
		e := newExecutor(t, testOptions(), nil, ADDIU(mips.RegV0, mips.RegZero, 0x77), SYSCALL())
		err := e.Run()
		var unsupported *UnsupportedSyscallErr
		require.True(t, errors.As(err, &unsupported))
		require.Equal(t, SyscallCode(0x77), unsupported.Code)
	})

	t.Run("faulting pc", func(t *testing.T) {
		e := newExecutor(t, testOptions(), nil, NOP(), TEQ(mips.RegZero, mips.RegZero))
		var execErr *ExecutionError
		require.True(t, errors.As(e.Run(), &execErr))
		require.Equal(t, uint32(entry+4), execErr.PC)
		require.Equal(t, mips.TEQ, execErr.Instruction.Opcode)
	})
}

func TestStepAfterHalt(t *testing.T) {
	e := runCode(t, nil, exit(3)...)
	require.Equal(t, uint32(3), e.ExitCode())
	n := len(e.Records())
	require.NoError(t, e.Step())
	require.Len(t, e.Records(), n)
	require.Equal(t, uint32(3), lastRecord(e).CpuEvents[len(lastRecord(e).CpuEvents)-1].ExitCode)
}

// loopProgram stores a countdown to dataAddr and sums the word after it.
func loopProgram(iterations int16) []uint32 {
	return concat(
		[]uint32{ADDIU(mips.RegT0, mips.RegZero, iterations)},
		LoadImm(mips.RegS0, dataAddr),
		[]uint32{
			ADDIU(mips.RegT0, mips.RegT0, -1),
			SW(mips.RegT0, mips.RegS0, 0),
			LW(mips.RegT1, mips.RegS0, 4),
			BNE(mips.RegT0, mips.RegZero, -4),
			ADDU(mips.RegT2, mips.RegT2, mips.RegT1),
		},
		exit(0),
	)
}

func TestDeterminism(t *testing.T) {
	data := Words(0, 3)
	first := runCode(t, data, loopProgram(20)...)
	second := runCode(t, data, loopProgram(20)...)
	require.Equal(t, first.Records(), second.Records())
	require.Equal(t, first.Report(), second.Report())

	opts := testOptions()
	opts.LookupSeed = 8
	other := newExecutor(t, opts, data, loopProgram(20)...)
	run(t, other)
	require.NotEqual(t, first.Records()[0].CpuEvents[0].AluLookupID, other.Records()[0].CpuEvents[0].AluLookupID)
	require.Equal(t, len(first.Records()[0].CpuEvents), len(other.Records()[0].CpuEvents))
}

func TestShardBoundary(t *testing.T) {
	opts := testOptions()
	opts.ShardSize = 64
	e := newExecutor(t, opts, Words(0, 3), loopProgram(40)...)
	run(t, e)

	records := e.Records()
	require.Greater(t, len(records), 1)
	var cycles uint64
	prevClk := uint32(0)
	for i, rec := range records {
		require.Equal(t, uint32(i+1), rec.Shard)
		require.NotEmpty(t, rec.CpuEvents)
		start := rec.CpuEvents[0].Clk
		end := rec.CpuEvents[len(rec.CpuEvents)-1].Clk + ClkIncrement
		require.LessOrEqual(t, end-start, opts.ShardSize)
		for _, ev := range rec.CpuEvents {
			require.Greater(t, ev.Clk, prevClk)
			require.Equal(t, rec.Shard, ev.Shard)
			prevClk = ev.Clk
		}
		require.Equal(t, uint64(len(rec.CpuEvents)), rec.Cycles)
		cycles += rec.Cycles
		if i < len(records)-1 {
			require.Empty(t, rec.GlobalMemoryFinalizeEvents)
		}
	}
	require.Equal(t, e.Cycles(), cycles)
	require.NotEmpty(t, lastRecord(e).GlobalMemoryFinalizeEvents)
	require.Equal(t, uint64(len(records)), e.Report().Shards)

	t.Run("too small", func(t *testing.T) {
		opts := testOptions()
		opts.ShardSize = ClkIncrement
		_, err := New(loadProgram(t, nil, SYSCALL()), opts)
		require.Error(t, err)
	})
}

func TestShardRowLimit(t *testing.T) {
	opts := testOptions()
	opts.ShapeCheckInterval = 16
	opts.MaxShardRows = 1024
	e := newExecutor(t, opts, Words(0, 3), loopProgram(40)...)
	run(t, e)

	records := e.Records()
	require.Greater(t, len(records), 1)
	for _, rec := range records[:len(records)-1] {
		require.Equal(t, uint64(16), rec.Cycles)
		require.NotZero(t, rec.EventCounts[cost.AirCpu])
	}
}

// TestMemoryConsistency replays the access log of a run and checks that
// every access observes the state left by the one before it.
func TestMemoryConsistency(t *testing.T) {
	opts := testOptions()
	opts.ShardSize = 128
	p := loadProgram(t, Words(0, 3), concat(
		[]uint32{
			ADDIU(mips.RegV0, mips.RegZero, int16(SyscallHintLen)),
			SYSCALL(),
			ADDU(mips.RegA1, mips.RegV0, mips.RegZero),
			ADDIU(mips.RegV0, mips.RegZero, int16(SyscallHintRead)),
		},
		LoadImm(mips.RegA0, freeAddr),
		[]uint32{
			SYSCALL(),
			LW(mips.RegT3, mips.RegA0, 4),
			ADDIU(mips.RegV0, mips.RegZero, mips.SysMmap),
			ADDIU(mips.RegA0, mips.RegZero, 0),
			ADDIU(mips.RegA1, mips.RegZero, 100),
			SYSCALL(),
		},
		loopProgram(30),
	)...)
	p.WriteStdin([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	e, err := New(p, opts)
	require.NoError(t, err)
	run(t, e)
	require.Equal(t, uint32(0x05060708), e.Memory().Peek(mips.RegT3))
	require.Equal(t, p.Heap+PageSize, e.Memory().Peek(mips.RegHeap))

	initial := func(addr uint32) uint32 {
		switch {
		case addr < mips.NumGPRs:
			return p.GPRs[addr]
		case addr == mips.RegLO:
			return p.Lo
		case addr == mips.RegHI:
			return p.Hi
		case addr == mips.RegHeap:
			return p.Heap
		case addr == mips.RegBrk:
			return p.Brk
		case addr == mips.RegLocalUser:
			return p.LocalUser
		}
		if v, ok := e.uninitialized[addr]; ok {
			return v
		}
		return p.Image[addr]
	}

	mem := make(map[uint32]MemoryEntry)
	lastTs := uint32(0)
	for _, rec := range e.Records() {
		first := make(map[uint32]MemoryRecord)
		last := make(map[uint32]MemoryRecord)
		for _, acc := range rec.MemoryAccesses {
			require.GreaterOrEqual(t, acc.Timestamp, lastTs, "access log is in clock order")
			lastTs = acc.Timestamp

			cur, ok := mem[acc.Addr]
			if !ok {
				cur = MemoryEntry{Value: initial(acc.Addr)}
			}
			prev, next := acc.entries()
			require.Equal(t, cur, prev, "address %08x", acc.Addr)
			require.LessOrEqual(t, acc.PrevTimestamp, acc.Timestamp)
			if !acc.Write {
				require.Equal(t, acc.PrevValue, acc.Value)
			}
			mem[acc.Addr] = next

			if _, ok := first[acc.Addr]; !ok {
				first[acc.Addr] = acc
			}
			last[acc.Addr] = acc
		}

		// addresses only a precompile touched travel with its event
		claimed := make(map[uint32]bool)
		for _, entry := range rec.PrecompileEvents {
			for _, local := range entry.Event.LocalMemoryEvents() {
				claimed[local.Addr] = true
			}
		}
		require.Len(t, rec.MemoryLocalEvents, len(first)-len(claimed))
		for _, local := range rec.MemoryLocalEvents {
			require.False(t, claimed[local.Addr])
			fPrev, _ := first[local.Addr].entries()
			_, lNext := last[local.Addr].entries()
			require.Equal(t, fPrev, local.InitialMemAccess, "address %08x", local.Addr)
			require.Equal(t, lNext, local.FinalMemAccess, "address %08x", local.Addr)
		}
	}

	final := lastRecord(e)
	for _, fin := range final.GlobalMemoryFinalizeEvents {
		if !fin.Used {
			continue
		}
		require.Equal(t, mem[fin.Addr], MemoryEntry{Value: fin.Value, Shard: fin.Shard, Timestamp: fin.Timestamp})
	}
	require.Contains(t, final.GlobalMemoryInitializeEvents, MemoryInitializeFinalizeEvent{
		Addr:  freeAddr + 4,
		Value: 0x05060708,
		Used:  true,
	})
	for _, init := range final.GlobalMemoryInitializeEvents {
		require.NotEqual(t, uint32(freeAddr), init.Addr, "hinted words that were never read are not initialized")
	}
}
