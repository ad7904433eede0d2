package executor

import (
	"fmt"
	"slices"
)

const (
	keccakStateSize       = 25
	keccakBlockSizeU32s   = 36
	keccakBlockSizeU64s   = 18
	keccakOutputSizeU64s  = 8
	keccakOutputSizeU32s  = 2 * keccakOutputSizeU64s
	keccakSpongeExtraClks = 1
)

var keccakRates = []uint32{144, 136, 104, 72}

// keccakSpongeSyscall absorbs the 36-word blocks at arg1 and writes the
// first 8 lanes of the state to arg2. arg2 holds the rate in bytes and the
// input length in words on entry. Lanes are stored low word first.
type keccakSpongeSyscall struct{}

func (keccakSpongeSyscall) NumExtraCycles() uint32 { return keccakSpongeExtraClks }

func (keccakSpongeSyscall) Execute(ctx *SyscallContext, code SyscallCode, inputPtr, resultPtr uint32) (uint32, bool, error) {
	startClk := ctx.Clk
	if err := ctx.CheckPointer(resultPtr, keccakOutputSizeU32s); err != nil {
		return 0, false, err
	}
	lengthRecords, lengths := ctx.MRSlice(resultPtr, 2)
	rateLen, inputLen := lengths[0], lengths[1]
	if inputLen%keccakBlockSizeU32s != 0 {
		return 0, false, fmt.Errorf("keccak sponge: input of %d words is not a whole number of blocks", inputLen)
	}
	if !slices.Contains(keccakRates, rateLen) {
		return 0, false, fmt.Errorf("keccak sponge: unsupported rate %d", rateLen)
	}
	if err := ctx.CheckPointer(inputPtr, int(inputLen)); err != nil {
		return 0, false, err
	}
	inputRecords, input := ctx.MRSlice(inputPtr, int(inputLen))

	var state [keccakStateSize]uint64
	for block := 0; block < len(input); block += keccakBlockSizeU32s {
		for i := 0; i < keccakBlockSizeU64s; i++ {
			state[i] ^= uint64(input[block+2*i]) | uint64(input[block+2*i+1])<<32
		}
		keccakF1600(&state)
	}

	// writes happen one cycle after the reads
	ctx.Clk++
	var output [keccakOutputSizeU32s]uint32
	for i := 0; i < keccakOutputSizeU64s; i++ {
		output[2*i] = uint32(state[i])
		output[2*i+1] = uint32(state[i] >> 32)
	}
	outputRecords := ctx.MWSlice(resultPtr, output[:])

	ctx.AddPrecompileEvent(code, &KeccakSpongeEvent{
		Input:              input,
		Output:             output,
		InputLenU32s:       inputLen,
		RateLenBytes:       rateLen,
		InputReadRecords:   inputRecords,
		RateLengthRecord:   lengthRecords[0],
		InputLengthRecord:  lengthRecords[1],
		OutputWriteRecords: outputRecords,
		InputAddr:          inputPtr,
		OutputAddr:         resultPtr,
		precompileBase:     ctx.base(startClk),
	})
	return 0, false, nil
}
