package mips

// Field accessors for a raw big-endian instruction word.
func FieldOpcode(insn uint32) uint32 { return (insn >> 26) & 0x3F }
func FieldFunc(insn uint32) uint32   { return insn & 0x3F }
func FieldRs(insn uint32) uint32     { return (insn >> 21) & 0x1F }
func FieldRt(insn uint32) uint32     { return (insn >> 16) & 0x1F }
func FieldRd(insn uint32) uint32     { return (insn >> 11) & 0x1F }
func FieldSa(insn uint32) uint32     { return (insn >> 6) & 0x1F }
func FieldImm(insn uint32) uint32    { return insn & 0xFFFF }
func FieldTarget(insn uint32) uint32 { return insn & 0x3FFFFFF }

// SignExtend interprets the low bits of v as a two's complement number.
func SignExtend(v uint32, bits uint) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}

var invalid = Instruction{Opcode: INVALID}

// Decode maps a machine word to an Instruction. It never fails: encodings
// outside the supported subset decode to INVALID with zero operands.
func Decode(insn uint32) Instruction {
	rs := FieldRs(insn)
	rt := FieldRt(insn)
	imm := FieldImm(insn)
	simm := SignExtend(imm, 16)

	switch FieldOpcode(insn) {
	case 0x00:
		return decodeSpecial(insn)
	case 0x01: // REGIMM
		switch {
		case rt == 0x00:
			return newInstruction(BLTZ, rs, RegZero, simm<<2, false, true)
		case rt == 0x01:
			return newInstruction(BGEZ, rs, RegZero, simm<<2, false, true)
		case rt == 0x11 && rs == 0: // BAL
			return newInstruction(JumpDirect, RegRA, simm<<2, 0, true, true)
		}
		return invalid
	case 0x02: // J
		return newInstruction(Jumpi, RegZero, FieldTarget(insn)<<2, 0, true, true)
	case 0x03: // JAL
		return newInstruction(Jumpi, RegRA, FieldTarget(insn)<<2, 0, true, true)
	case 0x04:
		return newInstruction(BEQ, rs, rt, simm<<2, false, true)
	case 0x05:
		return newInstruction(BNE, rs, rt, simm<<2, false, true)
	case 0x06:
		return newInstruction(BLEZ, rs, RegZero, simm<<2, false, true)
	case 0x07:
		return newInstruction(BGTZ, rs, RegZero, simm<<2, false, true)
	case 0x08:
		return newInstruction(ADDI, rt, rs, simm, false, true)
	case 0x09:
		return newInstruction(ADDIU, rt, rs, simm, false, true)
	case 0x0A:
		return newInstruction(SLTI, rt, rs, simm, false, true)
	case 0x0B:
		return newInstruction(SLTIU, rt, rs, simm, false, true)
	case 0x0C:
		return newInstruction(AND, rt, rs, imm, false, true)
	case 0x0D:
		return newInstruction(OR, rt, rs, imm, false, true)
	case 0x0E:
		return newInstruction(XOR, rt, rs, imm, false, true)
	case 0x0F:
		return newInstruction(LUI, rt, imm, 16, true, true)
	case 0x1C:
		return decodeSpecial2(insn)
	case 0x1F:
		return decodeSpecial3(insn)
	case 0x20:
		return newInstruction(LB, rt, rs, simm, false, true)
	case 0x21:
		return newInstruction(LH, rt, rs, simm, false, true)
	case 0x22:
		return newInstruction(LWL, rt, rs, simm, false, true)
	case 0x23:
		return newInstruction(LW, rt, rs, simm, false, true)
	case 0x24:
		return newInstruction(LBU, rt, rs, simm, false, true)
	case 0x25:
		return newInstruction(LHU, rt, rs, simm, false, true)
	case 0x26:
		return newInstruction(LWR, rt, rs, simm, false, true)
	case 0x28:
		return newInstruction(SB, rt, rs, simm, false, true)
	case 0x29:
		return newInstruction(SH, rt, rs, simm, false, true)
	case 0x2A:
		return newInstruction(SWL, rt, rs, simm, false, true)
	case 0x2B:
		return newInstruction(SW, rt, rs, simm, false, true)
	case 0x2E:
		return newInstruction(SWR, rt, rs, simm, false, true)
	case 0x30:
		return newInstruction(LL, rt, rs, simm, false, true)
	case 0x33: // PREF
		return newInstruction(NOP, 0, 0, 0, true, true)
	case 0x38:
		return newInstruction(SC, rt, rs, simm, false, true)
	case 0x3D:
		return newInstruction(SDC1, rt, rs, simm, false, true)
	}
	return invalid
}

func decodeSpecial(insn uint32) Instruction {
	rs := FieldRs(insn)
	rt := FieldRt(insn)
	rd := FieldRd(insn)
	sa := FieldSa(insn)

	switch FieldFunc(insn) {
	case 0x00:
		return newInstruction(SLL, rd, rt, sa, false, true)
	case 0x02:
		if rs == 1 { // ROTR
			return newInstruction(ROR, rd, rt, sa, false, true)
		}
		return newInstruction(SRL, rd, rt, sa, false, true)
	case 0x03:
		return newInstruction(SRA, rd, rt, sa, false, true)
	case 0x04:
		return newInstruction(SLLV, rd, rt, rs, false, false)
	case 0x06:
		if sa == 1 { // ROTRV
			return newInstruction(ROR, rd, rt, rs, false, false)
		}
		return newInstruction(SRLV, rd, rt, rs, false, false)
	case 0x07:
		return newInstruction(SRAV, rd, rt, rs, false, false)
	case 0x08: // JR
		return newInstruction(Jump, RegZero, rs, 0, false, true)
	case 0x09: // JALR
		return newInstruction(Jump, rd, rs, 0, false, true)
	case 0x0A: // MOVZ
		return newInstruction(MEQ, rd, rs, rt, false, false)
	case 0x0B: // MOVN
		return newInstruction(MNE, rd, rs, rt, false, false)
	case 0x0C:
		return newInstruction(SYSCALL, RegV0, RegA0, RegA1, false, false)
	case 0x0F: // SYNC
		return newInstruction(NOP, 0, 0, 0, true, true)
	case 0x10:
		return newInstruction(MFHI, rd, RegHI, 0, false, true)
	case 0x11:
		return newInstruction(MTHI, RegHI, rs, 0, false, true)
	case 0x12:
		return newInstruction(MFLO, rd, RegLO, 0, false, true)
	case 0x13:
		return newInstruction(MTLO, RegLO, rs, 0, false, true)
	case 0x18:
		return newInstruction(MULT, RegLO, rs, rt, false, false)
	case 0x19:
		return newInstruction(MULTU, RegLO, rs, rt, false, false)
	case 0x1A:
		return newInstruction(DIV, RegLO, rs, rt, false, false)
	case 0x1B:
		return newInstruction(DIVU, RegLO, rs, rt, false, false)
	case 0x20:
		return newInstruction(ADD, rd, rs, rt, false, false)
	case 0x21:
		return newInstruction(ADDU, rd, rs, rt, false, false)
	case 0x22:
		return newInstruction(SUB, rd, rs, rt, false, false)
	case 0x23:
		return newInstruction(SUBU, rd, rs, rt, false, false)
	case 0x24:
		return newInstruction(AND, rd, rs, rt, false, false)
	case 0x25:
		return newInstruction(OR, rd, rs, rt, false, false)
	case 0x26:
		return newInstruction(XOR, rd, rs, rt, false, false)
	case 0x27:
		return newInstruction(NOR, rd, rs, rt, false, false)
	case 0x2A:
		return newInstruction(SLT, rd, rs, rt, false, false)
	case 0x2B:
		return newInstruction(SLTU, rd, rs, rt, false, false)
	case 0x34:
		return newInstruction(TEQ, RegZero, rs, rt, false, false)
	}
	return invalid
}

func decodeSpecial2(insn uint32) Instruction {
	rs := FieldRs(insn)
	rt := FieldRt(insn)
	rd := FieldRd(insn)

	switch FieldFunc(insn) {
	case 0x01:
		return newInstruction(MADDU, RegLO, rs, rt, false, false)
	case 0x02:
		return newInstruction(MUL, rd, rs, rt, false, false)
	case 0x20:
		return newInstruction(CLZ, rd, rs, 0, false, true)
	case 0x21:
		return newInstruction(CLO, rd, rs, 0, false, true)
	}
	return invalid
}

func decodeSpecial3(insn uint32) Instruction {
	rs := FieldRs(insn)
	rt := FieldRt(insn)
	rd := FieldRd(insn)
	sa := FieldSa(insn)

	switch FieldFunc(insn) {
	case 0x00: // EXT: rd holds msbd, sa holds lsb
		ins := newInstruction(EXT, rt, rs, rd, false, true)
		ins.OpD = sa
		return ins
	case 0x04: // INS: rd holds msb, sa holds lsb
		ins := newInstruction(INS, rt, rs, rd, false, true)
		ins.OpD = sa
		return ins
	case 0x20: // BSHFL
		switch sa {
		case 0x02:
			return newInstruction(WSBH, rd, rt, 0, false, true)
		case 0x10: // SEB
			return newInstruction(SIGNEXT, rd, rt, 8, false, true)
		case 0x18: // SEH
			return newInstruction(SIGNEXT, rd, rt, 16, false, true)
		}
		return invalid
	case 0x3B:
		return newInstruction(RDHWR, rt, rd, 0, true, true)
	}
	return invalid
}
