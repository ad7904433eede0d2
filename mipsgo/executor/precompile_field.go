package executor

import (
	"fmt"
	"math/big"

	bls12381fp "github.com/consensys/gnark-crypto/ecc/bls12-381/fp"
	bn254fp "github.com/consensys/gnark-crypto/ecc/bn254/fp"
)

const precompileExtraClks = 1

// wordsToBig reads little-endian 32-bit limbs.
func wordsToBig(words []uint32) *big.Int {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		j := len(buf) - 4*(i+1)
		buf[j] = byte(w >> 24)
		buf[j+1] = byte(w >> 16)
		buf[j+2] = byte(w >> 8)
		buf[j+3] = byte(w)
	}
	return new(big.Int).SetBytes(buf)
}

// bigToWords writes v as n little-endian 32-bit limbs.
func bigToWords(v *big.Int, n int) []uint32 {
	buf := v.FillBytes(make([]byte, 4*n))
	out := make([]uint32, n)
	for i := range out {
		j := len(buf) - 4*(i+1)
		out[i] = uint32(buf[j])<<24 | uint32(buf[j+1])<<16 | uint32(buf[j+2])<<8 | uint32(buf[j+3])
	}
	return out
}

type fieldElement[T any] interface {
	*T
	SetBigInt(*big.Int) *T
	BigInt(*big.Int) *big.Int
	Add(*T, *T) *T
	Sub(*T, *T) *T
	Mul(*T, *T) *T
}

// fieldArith is the arithmetic of one base field on limb slices.
type fieldArith struct {
	words int
	op    func(op FieldOperation, x, y []uint32) []uint32
	fp2   func(op FieldOperation, x, y []uint32) []uint32
}

func fpOp[T any, PT fieldElement[T]](op FieldOperation, x, y []uint32) []uint32 {
	var a, b T
	PT(&a).SetBigInt(wordsToBig(x))
	PT(&b).SetBigInt(wordsToBig(y))
	switch op {
	case FieldAdd:
		PT(&a).Add(&a, &b)
	case FieldSub:
		PT(&a).Sub(&a, &b)
	case FieldMul:
		PT(&a).Mul(&a, &b)
	}
	return bigToWords(PT(&a).BigInt(new(big.Int)), len(x))
}

// fp2Op works on c0 || c1 with u^2 = -1.
func fp2Op[T any, PT fieldElement[T]](op FieldOperation, x, y []uint32) []uint32 {
	n := len(x) / 2
	var a0, a1, b0, b1 T
	PT(&a0).SetBigInt(wordsToBig(x[:n]))
	PT(&a1).SetBigInt(wordsToBig(x[n:]))
	PT(&b0).SetBigInt(wordsToBig(y[:n]))
	PT(&b1).SetBigInt(wordsToBig(y[n:]))
	var c0, c1 T
	switch op {
	case FieldAdd:
		PT(&c0).Add(&a0, &b0)
		PT(&c1).Add(&a1, &b1)
	case FieldSub:
		PT(&c0).Sub(&a0, &b0)
		PT(&c1).Sub(&a1, &b1)
	case FieldMul:
		var t0, t1 T
		PT(&t0).Mul(&a0, &b0)
		PT(&t1).Mul(&a1, &b1)
		PT(&c0).Sub(&t0, &t1)
		PT(&t0).Mul(&a0, &b1)
		PT(&t1).Mul(&a1, &b0)
		PT(&c1).Add(&t0, &t1)
	}
	out := bigToWords(PT(&c0).BigInt(new(big.Int)), n)
	return append(out, bigToWords(PT(&c1).BigInt(new(big.Int)), n)...)
}

var fields = map[CurveType]fieldArith{
	CurveBn254: {
		words: bn254fp.Limbs * 2,
		op:    fpOp[bn254fp.Element],
		fp2:   fp2Op[bn254fp.Element],
	},
	CurveBls12381: {
		words: bls12381fp.Limbs * 2,
		op:    fpOp[bls12381fp.Element],
		fp2:   fp2Op[bls12381fp.Element],
	},
}

func fieldFor(curve CurveType) fieldArith {
	f, ok := fields[curve]
	if !ok {
		panic(fmt.Sprintf("no field arithmetic for %s", curve))
	}
	return f
}

// fpOpSyscall computes x = x op y in place, both pointing at one field
// element in little-endian limbs.
type fpOpSyscall struct {
	field CurveType
	op    FieldOperation
}

func newFpOpSyscall(field CurveType, op FieldOperation) Syscall {
	fieldFor(field)
	return fpOpSyscall{field: field, op: op}
}

func (fpOpSyscall) NumExtraCycles() uint32 { return precompileExtraClks }

func (s fpOpSyscall) Execute(ctx *SyscallContext, code SyscallCode, xPtr, yPtr uint32) (uint32, bool, error) {
	f := fieldFor(s.field)
	startClk := ctx.Clk
	x, y, yRecords, err := readOperandPair(ctx, xPtr, yPtr, f.words)
	if err != nil {
		return 0, false, err
	}
	ctx.Clk++
	xRecords := ctx.MWSlice(xPtr, f.op(s.op, x, y))
	ctx.AddPrecompileEvent(code, &FpOpEvent{
		Field:          s.field,
		Op:             s.op,
		XPtr:           xPtr,
		X:              x,
		YPtr:           yPtr,
		Y:              y,
		XMemoryRecords: xRecords,
		YMemoryRecords: yRecords,
		precompileBase: ctx.base(startClk),
	})
	return 0, false, nil
}

type fp2AddSubSyscall struct {
	field CurveType
	op    FieldOperation
}

func newFp2AddSubSyscall(field CurveType, op FieldOperation) Syscall {
	fieldFor(field)
	return fp2AddSubSyscall{field: field, op: op}
}

func (fp2AddSubSyscall) NumExtraCycles() uint32 { return precompileExtraClks }

func (s fp2AddSubSyscall) Execute(ctx *SyscallContext, code SyscallCode, xPtr, yPtr uint32) (uint32, bool, error) {
	f := fieldFor(s.field)
	startClk := ctx.Clk
	x, y, yRecords, err := readOperandPair(ctx, xPtr, yPtr, 2*f.words)
	if err != nil {
		return 0, false, err
	}
	ctx.Clk++
	xRecords := ctx.MWSlice(xPtr, f.fp2(s.op, x, y))
	ctx.AddPrecompileEvent(code, &Fp2AddSubEvent{
		Field:          s.field,
		Op:             s.op,
		XPtr:           xPtr,
		X:              x,
		YPtr:           yPtr,
		Y:              y,
		XMemoryRecords: xRecords,
		YMemoryRecords: yRecords,
		precompileBase: ctx.base(startClk),
	})
	return 0, false, nil
}

type fp2MulSyscall struct {
	field CurveType
}

func newFp2MulSyscall(field CurveType) Syscall {
	fieldFor(field)
	return fp2MulSyscall{field: field}
}

func (fp2MulSyscall) NumExtraCycles() uint32 { return precompileExtraClks }

func (s fp2MulSyscall) Execute(ctx *SyscallContext, code SyscallCode, xPtr, yPtr uint32) (uint32, bool, error) {
	f := fieldFor(s.field)
	startClk := ctx.Clk
	x, y, yRecords, err := readOperandPair(ctx, xPtr, yPtr, 2*f.words)
	if err != nil {
		return 0, false, err
	}
	ctx.Clk++
	xRecords := ctx.MWSlice(xPtr, f.fp2(FieldMul, x, y))
	ctx.AddPrecompileEvent(code, &Fp2MulEvent{
		Field:          s.field,
		XPtr:           xPtr,
		X:              x,
		YPtr:           yPtr,
		Y:              y,
		XMemoryRecords: xRecords,
		YMemoryRecords: yRecords,
		precompileBase: ctx.base(startClk),
	})
	return 0, false, nil
}

// readOperandPair reads x without recording, since its write records carry
// the old value, and records the reads of y.
func readOperandPair(ctx *SyscallContext, xPtr, yPtr uint32, words int) (x, y []uint32, yRecords []MemoryRecord, err error) {
	if err = ctx.CheckPointer(xPtr, words); err != nil {
		return
	}
	if err = ctx.CheckPointer(yPtr, words); err != nil {
		return
	}
	x = ctx.Words(xPtr, words)
	yRecords, y = ctx.MRSlice(yPtr, words)
	return
}
