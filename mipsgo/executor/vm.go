package executor

import (
	"fmt"
	"math/bits"

	"github.com/zkmips/zkmips/mipsgo/cost"
	"github.com/zkmips/zkmips/mipsgo/mips"
)

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// executeALU computes register-to-register operations. Operands are read in
// slot order C, B, then the result is written at A (and HI).
func (e *Executor) executeALU(ev *CpuEvent) {
	insn := ev.Instruction
	op := insn.Opcode
	c, cRec := e.operand(insn.OpC, insn.ImmC, posC)
	b, bRec := e.operand(insn.OpB, insn.ImmB, posB)
	dst := uint32(insn.OpA)

	var a, hi uint32
	switch op {
	case mips.ADD, mips.ADDU, mips.ADDI, mips.ADDIU:
		a = b + c
	case mips.SUB, mips.SUBU:
		a = b - c
	case mips.MULT:
		p := uint64(int64(int32(b)) * int64(int32(c)))
		a, hi = uint32(p), uint32(p>>32)
	case mips.MULTU:
		p := uint64(b) * uint64(c)
		a, hi = uint32(p), uint32(p>>32)
	case mips.MUL:
		a = b * c
	case mips.MADDU:
		acc := uint64(e.memory.Peek(mips.RegHI))<<32 | uint64(e.memory.Peek(mips.RegLO))
		acc += uint64(b) * uint64(c)
		a, hi = uint32(acc), uint32(acc>>32)
	case mips.DIV:
		if c == 0 {
			a, hi = 0xFFFFFFFF, b
		} else {
			a, hi = uint32(int32(b)/int32(c)), uint32(int32(b)%int32(c))
		}
	case mips.DIVU:
		if c == 0 {
			a, hi = 0xFFFFFFFF, b
		} else {
			a, hi = b/c, b%c
		}
	case mips.SLL, mips.SLLV, mips.LUI:
		a = b << (c & 31)
	case mips.SRL, mips.SRLV:
		a = b >> (c & 31)
	case mips.SRA, mips.SRAV:
		a = uint32(int32(b) >> (c & 31))
	case mips.ROR:
		a = bits.RotateLeft32(b, -int(c&31))
	case mips.SLT, mips.SLTI:
		a = boolU32(int32(b) < int32(c))
	case mips.SLTU, mips.SLTIU:
		a = boolU32(b < c)
	case mips.MFHI, mips.MTHI, mips.MFLO, mips.MTLO:
		a = b
	case mips.AND:
		a = b & c
	case mips.OR:
		a = b | c
	case mips.XOR:
		a = b ^ c
	case mips.NOR:
		a = ^(b | c)
	case mips.MEQ:
		a = e.memory.Peek(dst)
		if c == 0 {
			a = b
		}
	case mips.MNE:
		a = e.memory.Peek(dst)
		if c != 0 {
			a = b
		}
	case mips.CLZ:
		a = uint32(bits.LeadingZeros32(b))
	case mips.CLO:
		a = uint32(bits.LeadingZeros32(^b))
	case mips.EXT:
		lsb := insn.OpD & 31
		mask := uint32(uint64(1)<<(c+1) - 1)
		a = (b >> lsb) & mask
	case mips.INS:
		a = e.memory.Peek(dst)
		if lsb := insn.OpD & 31; c >= lsb && c < 32 {
			mask := uint32(uint64(1)<<(c-lsb+1)-1) << lsb
			a = (a &^ mask) | ((b << lsb) & mask)
		}
	case mips.SIGNEXT:
		a = mips.SignExtend(b, uint(c))
	case mips.WSBH:
		a = ((b & 0xFF00FF00) >> 8) | ((b & 0x00FF00FF) << 8)
	default:
		panic(fmt.Errorf("not an alu opcode: %s", op))
	}

	ev.A, ev.B, ev.C = a, b, c
	ev.BRecord, ev.CRecord = bRec, cRec
	ev.ARecord = e.writeReg(dst, a, posA)
	if op.WritesHiLo() {
		ev.Hi = hi
		ev.HiRecord = e.writeReg(mips.RegHI, hi, posHI)
	}

	alu := AluEvent{
		LookupID:   e.newLookupID(),
		Shard:      e.shard,
		Clk:        e.clk,
		Opcode:     op,
		Hi:         hi,
		A:          a,
		B:          b,
		C:          c,
		SubLookups: e.newSubLookups(),
	}
	ev.AluLookupID = alu.LookupID
	e.emitAlu(alu)

	switch op {
	case mips.DIV, mips.DIVU:
		e.emitDivRemDependencies(alu)
	case mips.CLZ, mips.CLO:
		e.emitCloClzDependencies(alu)
	}
}

func (e *Executor) emitAlu(ev AluEvent) {
	id, ok := cost.AirForOpcode(ev.Opcode)
	if !ok {
		panic(fmt.Errorf("no table for opcode %s", ev.Opcode))
	}
	e.record.addAlu(id, ev)
}

// executeMemory performs loads and stores on big-endian memory. The data
// word is accessed in the memory slot, before any register.
func (e *Executor) executeMemory(ev *CpuEvent) error {
	insn := ev.Instruction
	op := insn.Opcode
	if op == mips.SDC1 {
		return nil
	}
	c := insn.OpC
	base, bRec := e.operand(insn.OpB, false, posB)
	addr := base + c
	ev.B, ev.C, ev.BRecord = base, c, bRec

	if addr < RegisterSpaceEnd {
		return fmt.Errorf("%w: %s at %08x", ErrInvalidMemoryAccess, op, addr)
	}
	switch op {
	case mips.LW, mips.SW, mips.LL, mips.SC:
		if addr&3 != 0 {
			return fmt.Errorf("%w: %s at %08x", ErrUnalignedAccess, op, addr)
		}
	case mips.LH, mips.LHU, mips.SH:
		if addr&1 != 0 {
			return fmt.Errorf("%w: %s at %08x", ErrUnalignedAccess, op, addr)
		}
	}
	aligned := addr &^ 3
	rt := uint32(insn.OpA)

	if op.IsLoad() {
		memRec := e.access(aligned, 0, false, e.clk+posMemory, e.local)
		ev.MemoryRecord = &memRec
		w := memRec.Value
		var v uint32
		switch op {
		case mips.LB:
			v = mips.SignExtend((w>>(24-8*(addr&3)))&0xFF, 8)
		case mips.LBU:
			v = (w >> (24 - 8*(addr&3))) & 0xFF
		case mips.LH:
			v = mips.SignExtend((w>>(16-8*(addr&2)))&0xFFFF, 16)
		case mips.LHU:
			v = (w >> (16 - 8*(addr&2))) & 0xFFFF
		case mips.LW, mips.LL:
			v = w
		case mips.LWL:
			sl := (addr & 3) * 8
			v = (e.memory.Peek(rt) &^ (0xFFFFFFFF << sl)) | (w << sl)
		case mips.LWR:
			sr := 24 - (addr&3)*8
			mask := uint32(0xFFFFFFFF) >> sr
			v = (e.memory.Peek(rt) &^ mask) | (w >> sr)
		}
		ev.A = v
		ev.ARecord = e.writeReg(rt, v, posA)
		e.emitMemoryDependencies(ev, w)
		return nil
	}

	var value uint32
	if op == mips.SC {
		value = e.memory.Peek(rt)
	} else {
		ev.ARecord = e.readReg(rt, posA)
		value = ev.ARecord.Value
	}
	mem := e.memory.Peek(aligned)
	var v uint32
	switch op {
	case mips.SB:
		sl := 24 - 8*(addr&3)
		v = (mem &^ (0xFF << sl)) | ((value & 0xFF) << sl)
	case mips.SH:
		sl := 16 - 8*(addr&2)
		v = (mem &^ (0xFFFF << sl)) | ((value & 0xFFFF) << sl)
	case mips.SW, mips.SC:
		v = value
	case mips.SWL:
		sr := (addr & 3) * 8
		mask := uint32(0xFFFFFFFF) >> sr
		v = (mem &^ mask) | (value >> sr)
	case mips.SWR:
		sl := 24 - (addr&3)*8
		mask := uint32(0xFFFFFFFF) << sl
		v = (mem &^ mask) | (value << sl)
	}
	memRec := e.access(aligned, v, true, e.clk+posMemory, e.local)
	ev.MemoryRecord = &memRec
	ev.A = value
	if op == mips.SC {
		// a single hart never loses its reservation
		ev.ARecord = e.writeReg(rt, 1, posA)
	}
	e.emitMemoryDependencies(ev, v)
	return nil
}

func (e *Executor) executeBranch(ev *CpuEvent) {
	insn := ev.Instruction
	c := insn.OpC
	b, bRec := e.operand(insn.OpB, insn.ImmB, posB)
	aRec := e.readReg(uint32(insn.OpA), posA)
	a := aRec.Value

	var taken bool
	switch insn.Opcode {
	case mips.BEQ:
		taken = a == b
	case mips.BNE:
		taken = a != b
	case mips.BLTZ:
		taken = int32(a) < 0
	case mips.BGEZ:
		taken = int32(a) >= 0
	case mips.BLEZ:
		taken = int32(a) <= 0
	case mips.BGTZ:
		taken = int32(a) > 0
	}
	if taken {
		ev.NextNextPC = ev.NextPC + c
	}
	ev.A, ev.B, ev.C = a, b, c
	ev.ARecord, ev.BRecord = aRec, bRec

	br := BranchEvent{
		LookupID:   e.newLookupID(),
		Shard:      e.shard,
		Clk:        e.clk,
		PC:         ev.PC,
		NextPC:     ev.NextPC,
		NextNextPC: ev.NextNextPC,
		Opcode:     insn.Opcode,
		A:          a,
		B:          b,
		C:          c,
		Taken:      taken,
	}
	ev.BranchLookupID = br.LookupID
	e.record.BranchEvents = append(e.record.BranchEvents, br)
	e.emitBranchDependencies(ev, taken)
}

// executeJump handles register, absolute and relative jumps. The link
// register receives the address after the delay slot.
func (e *Executor) executeJump(ev *CpuEvent) {
	insn := ev.Instruction
	var target uint32
	switch insn.Opcode {
	case mips.Jump:
		ev.BRecord = e.readReg(insn.OpB, posB)
		target = ev.BRecord.Value
	case mips.Jumpi:
		target = (ev.NextPC & 0xF0000000) | insn.OpB
	case mips.JumpDirect:
		target = ev.NextPC + insn.OpB
	}
	link := ev.PC + 8
	ev.ARecord = e.writeReg(uint32(insn.OpA), link, posA)
	ev.NextNextPC = target
	ev.A, ev.B, ev.C = link, target, insn.OpC

	j := JumpEvent{
		LookupID:   e.newLookupID(),
		Shard:      e.shard,
		Clk:        e.clk,
		PC:         ev.PC,
		NextPC:     ev.NextPC,
		NextNextPC: target,
		Opcode:     insn.Opcode,
		A:          link,
		B:          target,
		C:          insn.OpC,
	}
	ev.JumpLookupID = j.LookupID
	e.record.JumpEvents = append(e.record.JumpEvents, j)
}

// executeSyscall dispatches on $v0. The arguments are read in the C and B
// slots and the result is written to $v0 in the A slot, so handlers must
// leave those three registers alone.
func (e *Executor) executeSyscall(ev *CpuEvent) (uint32, error) {
	code := SyscallCode(e.memory.Peek(mips.RegV0))
	ev.CRecord = e.readReg(mips.RegA1, posC)
	ev.BRecord = e.readReg(mips.RegA0, posB)
	arg1, arg2 := ev.BRecord.Value, ev.CRecord.Value
	ev.B, ev.C = arg1, arg2
	e.report.SyscallCounts[code]++

	handler, ok := e.syscalls[code]
	if !ok {
		return 0, &UnsupportedSyscallErr{Code: code}
	}
	sev := SyscallEvent{
		LookupID:  e.newLookupID(),
		Shard:     e.shard,
		Clk:       e.clk,
		NextPC:    ev.NextPC,
		SyscallID: code.ID(),
		Arg1:      arg1,
		Arg2:      arg2,
	}
	ctx := newSyscallContext(e, sev)
	ret, ok, err := handler.Execute(ctx, code, arg1, arg2)
	if err != nil {
		return 0, fmt.Errorf("syscall %s: %w", code, err)
	}
	ctx.release()

	if ok {
		ev.A = ret
		ev.ARecord = e.writeReg(mips.RegV0, ret, posA)
	} else {
		ev.A = uint32(code)
		ev.ARecord = e.readReg(mips.RegV0, posA)
	}
	if ctx.NextPC != sev.NextPC {
		ev.NextPC, ev.NextNextPC = ctx.NextPC, ctx.NextPC+4
	}
	if code.SendToTable() {
		ev.SyscallLookupID = sev.LookupID
		e.record.SyscallEvents = append(e.record.SyscallEvents, sev)
		e.shardSyscallsSent++
	}
	return handler.NumExtraCycles(), nil
}

func (e *Executor) executeMisc(ev *CpuEvent) error {
	insn := ev.Instruction
	switch insn.Opcode {
	case mips.RDHWR:
		var v uint32
		if insn.OpB == 29 {
			ev.BRecord = e.readReg(mips.RegLocalUser, posB)
			v = ev.BRecord.Value
		}
		ev.A, ev.B = v, v
		ev.ARecord = e.writeReg(uint32(insn.OpA), v, posA)
	case mips.TEQ:
		c, cRec := e.operand(insn.OpC, insn.ImmC, posC)
		b, bRec := e.operand(insn.OpB, insn.ImmB, posB)
		ev.B, ev.C, ev.BRecord, ev.CRecord = b, c, bRec, cRec
		if b == c {
			return fmt.Errorf("%w: teq %08x", ErrTrap, b)
		}
	case mips.NOP:
	case mips.INVALID:
		e.log.Warn("Skipping invalid instruction", "pc", HexU32(ev.PC), "word", HexU32(e.program.Image[ev.PC]))
	default:
		return fmt.Errorf("unhandled opcode %s", insn.Opcode)
	}
	return nil
}
