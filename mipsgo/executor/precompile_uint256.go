package executor

import (
	"github.com/holiman/uint256"
)

const uint256Words = 8

func wordsToUint256(words []uint32) *uint256.Int {
	var buf [32]byte
	wordsToBig(words).FillBytes(buf[:])
	return new(uint256.Int).SetBytes32(buf[:])
}

func uint256ToWords(v *uint256.Int) []uint32 {
	return bigToWords(v.ToBig(), uint256Words)
}

// uint256MulSyscall computes x = x * y mod m in place. The modulus follows y
// in memory and zero stands for 2^256.
type uint256MulSyscall struct{}

func (uint256MulSyscall) NumExtraCycles() uint32 { return precompileExtraClks }

func (uint256MulSyscall) Execute(ctx *SyscallContext, code SyscallCode, xPtr, yPtr uint32) (uint32, bool, error) {
	startClk := ctx.Clk
	x, y, yRecords, err := readOperandPair(ctx, xPtr, yPtr, uint256Words)
	if err != nil {
		return 0, false, err
	}
	modPtr := yPtr + 4*uint256Words
	if err := ctx.CheckPointer(modPtr, uint256Words); err != nil {
		return 0, false, err
	}
	modRecords, modulus := ctx.MRSlice(modPtr, uint256Words)

	a, b, m := wordsToUint256(x), wordsToUint256(y), wordsToUint256(modulus)
	var r uint256.Int
	if m.IsZero() {
		r.Mul(a, b)
	} else {
		r.MulMod(a, b, m)
	}

	ctx.Clk++
	xRecords := ctx.MWSlice(xPtr, uint256ToWords(&r))
	ctx.AddPrecompileEvent(code, &Uint256MulEvent{
		XPtr:                 xPtr,
		X:                    x,
		YPtr:                 yPtr,
		Y:                    y,
		Modulus:              modulus,
		XMemoryRecords:       xRecords,
		YMemoryRecords:       yRecords,
		ModulusMemoryRecords: modRecords,
		precompileBase:       ctx.base(startClk),
	})
	return 0, false, nil
}
