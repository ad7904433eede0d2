package executor

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// curveArith adds and doubles affine points given as x || y in
// little-endian limbs. The point at infinity is all zero words.
type curveArith struct {
	words  int
	add    func(p, q []uint32) []uint32
	double func(p []uint32) []uint32
}

var curves = map[CurveType]curveArith{
	CurveSecp256k1: {words: 16, add: secp256k1Add, double: secp256k1Double},
	CurveBn254:     {words: 16, add: bn254Add, double: bn254Double},
}

func curveFor(curve CurveType) curveArith {
	c, ok := curves[curve]
	if !ok {
		panic(fmt.Sprintf("no curve arithmetic for %s", curve))
	}
	return c
}

func splitPoint(p []uint32) (x, y *big.Int) {
	n := len(p) / 2
	return wordsToBig(p[:n]), wordsToBig(p[n:])
}

func joinPoint(x, y *big.Int, words int) []uint32 {
	return append(bigToWords(x, words/2), bigToWords(y, words/2)...)
}

func isZeroPoint(p []uint32) bool {
	for _, w := range p {
		if w != 0 {
			return false
		}
	}
	return true
}

func secp256k1Jacobian(p []uint32) secp256k1.JacobianPoint {
	var out secp256k1.JacobianPoint
	if isZeroPoint(p) {
		return out
	}
	x, y := splitPoint(p)
	out.X.SetByteSlice(x.FillBytes(make([]byte, 32)))
	out.Y.SetByteSlice(y.FillBytes(make([]byte, 32)))
	out.Z.SetInt(1)
	return out
}

func secp256k1Affine(p *secp256k1.JacobianPoint) []uint32 {
	if p.Z.IsZero() {
		return make([]uint32, 16)
	}
	p.ToAffine()
	x, y := p.X.Bytes(), p.Y.Bytes()
	return joinPoint(new(big.Int).SetBytes(x[:]), new(big.Int).SetBytes(y[:]), 16)
}

func secp256k1Add(p, q []uint32) []uint32 {
	a, b := secp256k1Jacobian(p), secp256k1Jacobian(q)
	var r secp256k1.JacobianPoint
	secp256k1.AddNonConst(&a, &b, &r)
	return secp256k1Affine(&r)
}

func secp256k1Double(p []uint32) []uint32 {
	a := secp256k1Jacobian(p)
	var r secp256k1.JacobianPoint
	secp256k1.DoubleNonConst(&a, &r)
	return secp256k1Affine(&r)
}

func bn254Point(p []uint32) bn254.G1Affine {
	var out bn254.G1Affine
	x, y := splitPoint(p)
	out.X.SetBigInt(x)
	out.Y.SetBigInt(y)
	return out
}

func bn254Words(p *bn254.G1Affine) []uint32 {
	return joinPoint(p.X.BigInt(new(big.Int)), p.Y.BigInt(new(big.Int)), 16)
}

func bn254Add(p, q []uint32) []uint32 {
	a, b := bn254Point(p), bn254Point(q)
	var j bn254.G1Jac
	j.FromAffine(&a)
	j.AddMixed(&b)
	var r bn254.G1Affine
	r.FromJacobian(&j)
	return bn254Words(&r)
}

func bn254Double(p []uint32) []uint32 {
	a := bn254Point(p)
	var j bn254.G1Jac
	j.FromAffine(&a)
	j.DoubleAssign()
	var r bn254.G1Affine
	r.FromJacobian(&j)
	return bn254Words(&r)
}

// curveAddSyscall computes P = P + Q in place.
type curveAddSyscall struct {
	curve CurveType
}

func newCurveAddSyscall(curve CurveType) Syscall {
	curveFor(curve)
	return curveAddSyscall{curve: curve}
}

func (curveAddSyscall) NumExtraCycles() uint32 { return precompileExtraClks }

func (s curveAddSyscall) Execute(ctx *SyscallContext, code SyscallCode, pPtr, qPtr uint32) (uint32, bool, error) {
	c := curveFor(s.curve)
	startClk := ctx.Clk
	p, q, qRecords, err := readOperandPair(ctx, pPtr, qPtr, c.words)
	if err != nil {
		return 0, false, err
	}
	ctx.Clk++
	pRecords := ctx.MWSlice(pPtr, c.add(p, q))
	ctx.AddPrecompileEvent(code, &EllipticCurveAddEvent{
		Curve:          s.curve,
		PPtr:           pPtr,
		P:              p,
		QPtr:           qPtr,
		Q:              q,
		PMemoryRecords: pRecords,
		QMemoryRecords: qRecords,
		precompileBase: ctx.base(startClk),
	})
	return 0, false, nil
}

// curveDoubleSyscall computes P = 2P in place. arg2 is unused.
type curveDoubleSyscall struct {
	curve CurveType
}

func newCurveDoubleSyscall(curve CurveType) Syscall {
	curveFor(curve)
	return curveDoubleSyscall{curve: curve}
}

func (curveDoubleSyscall) NumExtraCycles() uint32 { return 0 }

func (s curveDoubleSyscall) Execute(ctx *SyscallContext, code SyscallCode, pPtr, _ uint32) (uint32, bool, error) {
	c := curveFor(s.curve)
	startClk := ctx.Clk
	if err := ctx.CheckPointer(pPtr, c.words); err != nil {
		return 0, false, err
	}
	p := ctx.Words(pPtr, c.words)
	ctx.Clk++
	pRecords := ctx.MWSlice(pPtr, c.double(p))
	ctx.AddPrecompileEvent(code, &EllipticCurveDoubleEvent{
		Curve:          s.curve,
		PPtr:           pPtr,
		P:              p,
		PMemoryRecords: pRecords,
		precompileBase: ctx.base(startClk),
	})
	return 0, false, nil
}
