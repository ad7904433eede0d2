package executor

import (
	"github.com/zkmips/zkmips/mipsgo/mips"
)

// Sub-lookup slots of an ALU event used by its dependencies.
const (
	subLookupAbsC = iota
	subLookupAbsRem
	subLookupMul
	_
	subLookupLt
)

func (e *Executor) derived(id LookupID, op mips.Opcode, a, b, c uint32) AluEvent {
	return AluEvent{LookupID: id, Shard: e.shard, Clk: e.clk, Opcode: op, A: a, B: b, C: c}
}

func abs32(v uint32) uint32 {
	if int32(v) < 0 {
		return -v
	}
	return v
}

// emitDivRemDependencies proves b = q*c + rem with rem bounded by c, using
// only add, multiply and compare events.
func (e *Executor) emitDivRemDependencies(ev AluEvent) {
	c, quotient, rem := ev.C, ev.A, ev.Hi
	signed := ev.Opcode == mips.DIV

	absC, absRem := c, rem
	mulOp := mips.MULTU
	if signed {
		mulOp = mips.MULT
		absC, absRem = abs32(c), abs32(rem)
		if int32(c) < 0 {
			e.emitAlu(e.derived(ev.SubLookups[subLookupAbsC], mips.ADD, 0, c, absC))
		}
		if int32(rem) < 0 {
			e.emitAlu(e.derived(ev.SubLookups[subLookupAbsRem], mips.ADD, 0, rem, absRem))
		}
	}

	var p uint64
	if signed {
		p = uint64(int64(int32(quotient)) * int64(int32(c)))
	} else {
		p = uint64(quotient) * uint64(c)
	}
	mul := e.derived(ev.SubLookups[subLookupMul], mulOp, uint32(p), quotient, c)
	mul.Hi = uint32(p >> 32)
	e.emitAlu(mul)

	if c != 0 {
		bound := max(1, absC)
		e.emitAlu(e.derived(ev.SubLookups[subLookupLt], mips.SLTU, boolU32(absRem < bound), absRem, bound))
	}
}

// emitCloClzDependencies certifies the position of the top set bit of the
// (inverted for CLO) operand with one logical shift.
func (e *Executor) emitCloClzDependencies(ev AluEvent) {
	bb := ev.B
	if ev.Opcode == mips.CLO {
		bb = ^bb
	}
	if bb == 0 {
		return
	}
	shift := 31 - ev.A
	e.emitAlu(e.derived(ev.SubLookups[0], mips.SRL, bb>>shift, bb, shift))
}

// emitMemoryDependencies proves the effective address and, for sign
// extending loads of a negative value, the extension.
func (e *Executor) emitMemoryDependencies(ev *CpuEvent, word uint32) {
	addr := ev.B + ev.C
	ev.MemoryAddLookupID = e.newLookupID()
	e.emitAlu(e.derived(ev.MemoryAddLookupID, mips.ADD, addr, ev.B, ev.C))

	var unsigned, sign uint32
	switch ev.Instruction.Opcode {
	case mips.LB:
		unsigned, sign = (word>>(24-8*(addr&3)))&0xFF, 0x100
	case mips.LH:
		unsigned, sign = (word>>(16-8*(addr&2)))&0xFFFF, 0x10000
	default:
		return
	}
	if unsigned&(sign>>1) == 0 {
		return
	}
	ev.MemorySubLookupID = e.newLookupID()
	e.emitAlu(e.derived(ev.MemorySubLookupID, mips.SUB, ev.A, unsigned, sign))
}

// emitBranchDependencies compares a against zero for the signed branches
// and proves the target of a taken branch.
func (e *Executor) emitBranchDependencies(ev *CpuEvent, taken bool) {
	a := ev.A
	if ev.Instruction.Opcode.IsSignedBranch() {
		ev.BranchLtLookupID = e.newLookupID()
		e.emitAlu(e.derived(ev.BranchLtLookupID, mips.SLT, boolU32(int32(a) < 0), a, 0))
		ev.BranchGtLookupID = e.newLookupID()
		e.emitAlu(e.derived(ev.BranchGtLookupID, mips.SLT, boolU32(int32(a) > 0), 0, a))
	}
	if taken {
		ev.BranchAddLookupID = e.newLookupID()
		e.emitAlu(e.derived(ev.BranchAddLookupID, mips.ADD, ev.NextNextPC, ev.NextPC, ev.C))
	}
}
