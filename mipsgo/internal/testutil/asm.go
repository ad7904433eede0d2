// Package testutil holds helpers shared by tests: a tiny MIPS32 assembler and
// an in-memory ELF32 big-endian writer.
package testutil

func RType(funct, rs, rt, rd, sa uint32) uint32 {
	return (rs&0x1F)<<21 | (rt&0x1F)<<16 | (rd&0x1F)<<11 | (sa&0x1F)<<6 | funct&0x3F
}

func IType(op, rs, rt uint32, imm uint16) uint32 {
	return (op&0x3F)<<26 | (rs&0x1F)<<21 | (rt&0x1F)<<16 | uint32(imm)
}

func JType(op, target uint32) uint32 {
	return (op&0x3F)<<26 | target&0x3FFFFFF
}

func Special2(funct, rs, rt, rd uint32) uint32 {
	return 0x1C<<26 | RType(funct, rs, rt, rd, 0)
}

func Special3(funct, rs, rt, rd, sa uint32) uint32 {
	return 0x1F<<26 | RType(funct, rs, rt, rd, sa)
}

func NOP() uint32     { return 0 }
func SYSCALL() uint32 { return RType(0x0C, 0, 0, 0, 0) }

func ADDI(rt, rs uint32, imm int16) uint32  { return IType(0x08, rs, rt, uint16(imm)) }
func ADDIU(rt, rs uint32, imm int16) uint32 { return IType(0x09, rs, rt, uint16(imm)) }
func SLTI(rt, rs uint32, imm int16) uint32  { return IType(0x0A, rs, rt, uint16(imm)) }
func ANDI(rt, rs uint32, imm uint16) uint32 { return IType(0x0C, rs, rt, imm) }
func ORI(rt, rs uint32, imm uint16) uint32  { return IType(0x0D, rs, rt, imm) }
func LUI(rt uint32, imm uint16) uint32      { return IType(0x0F, 0, rt, imm) }

func ADDU(rd, rs, rt uint32) uint32 { return RType(0x21, rs, rt, rd, 0) }
func SUBU(rd, rs, rt uint32) uint32 { return RType(0x23, rs, rt, rd, 0) }
func SLT(rd, rs, rt uint32) uint32  { return RType(0x2A, rs, rt, rd, 0) }
func SLL(rd, rt, sa uint32) uint32  { return RType(0x00, 0, rt, rd, sa) }
func SRA(rd, rt, sa uint32) uint32  { return RType(0x03, 0, rt, rd, sa) }
func MOVZ(rd, rs, rt uint32) uint32 { return RType(0x0A, rs, rt, rd, 0) }
func MOVN(rd, rs, rt uint32) uint32 { return RType(0x0B, rs, rt, rd, 0) }
func MULT(rs, rt uint32) uint32     { return RType(0x18, rs, rt, 0, 0) }
func MULTU(rs, rt uint32) uint32    { return RType(0x19, rs, rt, 0, 0) }
func DIV(rs, rt uint32) uint32      { return RType(0x1A, rs, rt, 0, 0) }
func DIVU(rs, rt uint32) uint32     { return RType(0x1B, rs, rt, 0, 0) }
func MFHI(rd uint32) uint32         { return RType(0x10, 0, 0, rd, 0) }
func MFLO(rd uint32) uint32         { return RType(0x12, 0, 0, rd, 0) }
func TEQ(rs, rt uint32) uint32      { return RType(0x34, rs, rt, 0, 0) }
func JR(rs uint32) uint32           { return RType(0x08, rs, 0, 0, 0) }
func JALR(rd, rs uint32) uint32     { return RType(0x09, rs, 0, rd, 0) }

func MUL(rd, rs, rt uint32) uint32 { return Special2(0x02, rs, rt, rd) }
func CLZ(rd, rs uint32) uint32     { return Special2(0x20, rs, 0, rd) }
func CLO(rd, rs uint32) uint32     { return Special2(0x21, rs, 0, rd) }

func EXT(rt, rs, pos, size uint32) uint32 { return Special3(0x00, rs, rt, size-1, pos) }
func INS(rt, rs, pos, size uint32) uint32 { return Special3(0x04, rs, rt, pos+size-1, pos) }
func SEB(rd, rt uint32) uint32            { return Special3(0x20, 0, rt, rd, 0x10) }
func SEH(rd, rt uint32) uint32            { return Special3(0x20, 0, rt, rd, 0x18) }
func WSBH(rd, rt uint32) uint32           { return Special3(0x20, 0, rt, rd, 0x02) }

func LB(rt, base uint32, off int16) uint32  { return IType(0x20, base, rt, uint16(off)) }
func LH(rt, base uint32, off int16) uint32  { return IType(0x21, base, rt, uint16(off)) }
func LWL(rt, base uint32, off int16) uint32 { return IType(0x22, base, rt, uint16(off)) }
func LW(rt, base uint32, off int16) uint32  { return IType(0x23, base, rt, uint16(off)) }
func LBU(rt, base uint32, off int16) uint32 { return IType(0x24, base, rt, uint16(off)) }
func LHU(rt, base uint32, off int16) uint32 { return IType(0x25, base, rt, uint16(off)) }
func LWR(rt, base uint32, off int16) uint32 { return IType(0x26, base, rt, uint16(off)) }
func SB(rt, base uint32, off int16) uint32  { return IType(0x28, base, rt, uint16(off)) }
func SH(rt, base uint32, off int16) uint32  { return IType(0x29, base, rt, uint16(off)) }
func SWL(rt, base uint32, off int16) uint32 { return IType(0x2A, base, rt, uint16(off)) }
func SW(rt, base uint32, off int16) uint32  { return IType(0x2B, base, rt, uint16(off)) }
func SWR(rt, base uint32, off int16) uint32 { return IType(0x2E, base, rt, uint16(off)) }
func LL(rt, base uint32, off int16) uint32  { return IType(0x30, base, rt, uint16(off)) }
func SC(rt, base uint32, off int16) uint32  { return IType(0x38, base, rt, uint16(off)) }

// Branch offsets are in instructions, relative to the delay slot.
func BEQ(rs, rt uint32, off int16) uint32 { return IType(0x04, rs, rt, uint16(off)) }
func BNE(rs, rt uint32, off int16) uint32 { return IType(0x05, rs, rt, uint16(off)) }
func BLEZ(rs uint32, off int16) uint32    { return IType(0x06, rs, 0, uint16(off)) }
func BGTZ(rs uint32, off int16) uint32    { return IType(0x07, rs, 0, uint16(off)) }
func BLTZ(rs uint32, off int16) uint32    { return IType(0x01, rs, 0x00, uint16(off)) }
func BGEZ(rs uint32, off int16) uint32    { return IType(0x01, rs, 0x01, uint16(off)) }
func BAL(off int16) uint32                { return IType(0x01, 0, 0x11, uint16(off)) }

// J and JAL take the absolute byte address of the target.
func J(addr uint32) uint32   { return JType(0x02, addr>>2) }
func JAL(addr uint32) uint32 { return JType(0x03, addr>>2) }

// LoadImm emits LUI+ORI to set a full 32-bit register value.
func LoadImm(rt uint32, v uint32) []uint32 {
	return []uint32{LUI(rt, uint16(v>>16)), ORI(rt, rt, uint16(v))}
}
