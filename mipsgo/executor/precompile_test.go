package executor

import (
	"encoding/binary"
	"math/big"
	"testing"

	bls12381fp "github.com/consensys/gnark-crypto/ecc/bls12-381/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	bn254fp "github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	. "github.com/zkmips/zkmips/mipsgo/internal/testutil"
)

const (
	xPtr = 0x00600000
	yPtr = 0x00601000
)

func precompileExecutor(t *testing.T) *Executor {
	t.Helper()
	return newExecutor(t, testOptions(), nil, SYSCALL())
}

func storeWords(e *Executor, addr uint32, words []uint32) {
	for i, w := range words {
		e.memory.initialize(addr+uint32(4*i), w)
	}
}

func loadWords(e *Executor, addr uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = e.memory.Peek(addr + uint32(4*i))
	}
	return out
}

// callPrecompile runs one handler of the default table on a fresh context
// and returns the event it stored.
func callPrecompile(t *testing.T, e *Executor, code SyscallCode, arg1, arg2 uint32) PrecompileEvent {
	t.Helper()
	ctx := newSyscallContext(e, SyscallEvent{Clk: e.clk, NextPC: e.nextPC})
	_, ok, err := DefaultSyscallMap()[code].Execute(ctx, code, arg1, arg2)
	require.NoError(t, err)
	require.False(t, ok, "precompiles leave $v0 untouched")
	events := e.record.PrecompileEvents
	require.NotEmpty(t, events)
	require.Equal(t, code, events[len(events)-1].Code)
	return events[len(events)-1].Event
}

// spongeInput pads msg with the multi-rate padding and lays every rate
// sized block into a 36-word slot, lanes low word first.
func spongeInput(msg []byte, rate int, ds byte) []uint32 {
	n := (len(msg)/rate + 1) * rate
	padded := make([]byte, n)
	copy(padded, msg)
	padded[len(msg)] ^= ds
	padded[n-1] ^= 0x80

	var words []uint32
	for off := 0; off < n; off += rate {
		slot := make([]byte, 4*keccakBlockSizeU32s)
		copy(slot, padded[off:off+rate])
		for i := 0; i < len(slot); i += 4 {
			words = append(words, binary.LittleEndian.Uint32(slot[i:]))
		}
	}
	return words
}

func TestKeccakSponge(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = byte(i)
	}
	sha224 := sha3.Sum224([]byte("abc"))
	keccak := sha3.NewLegacyKeccak256()
	keccak.Write(long)

	cases := []struct {
		name   string
		msg    []byte
		rate   int
		ds     byte
		digest []byte
	}{
		{"sha3-224", []byte("abc"), 144, 0x06, sha224[:]},
		{"keccak256 two blocks", long, 136, 0x01, keccak.Sum(nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := precompileExecutor(t)
			input := spongeInput(tc.msg, tc.rate, tc.ds)
			storeWords(e, xPtr, input)
			storeWords(e, yPtr, []uint32{uint32(tc.rate), uint32(len(input))})

			ev := callPrecompile(t, e, SyscallKeccakSponge, xPtr, yPtr).(*KeccakSpongeEvent)
			var out []byte
			for _, w := range loadWords(e, yPtr, keccakOutputSizeU32s) {
				out = binary.LittleEndian.AppendUint32(out, w)
			}
			require.Equal(t, tc.digest, out[:len(tc.digest)])

			require.Equal(t, uint32(len(input)), ev.InputLenU32s)
			require.Len(t, ev.InputReadRecords, len(input))
			require.Equal(t, e.clk, ev.InputReadRecords[0].Timestamp)
			require.Equal(t, e.clk+1, ev.OutputWriteRecords[0].Timestamp)
			require.Equal(t, uint32(tc.rate), ev.RateLengthRecord.Value)
			require.Len(t, ev.LocalMemoryEvents(), len(input)+keccakOutputSizeU32s)
		})
	}

	t.Run("invalid lengths", func(t *testing.T) {
		for _, lengths := range [][]uint32{{144, 35}, {100, 36}} {
			e := precompileExecutor(t)
			storeWords(e, yPtr, lengths)
			ctx := newSyscallContext(e, SyscallEvent{Clk: e.clk})
			_, _, err := keccakSpongeSyscall{}.Execute(ctx, SyscallKeccakSponge, xPtr, yPtr)
			require.Error(t, err)
		}
	})
}

func TestUint256Mul(t *testing.T) {
	pow128 := new(big.Int).Lsh(big.NewInt(1), 128)
	cases := []struct {
		name    string
		x, y, m *big.Int
		want    *big.Int
	}{
		{"mod 11", big.NewInt(7), big.NewInt(5), big.NewInt(11), big.NewInt(2)},
		{"wrapping", new(big.Int).Add(pow128, big.NewInt(3)), pow128, big.NewInt(0), new(big.Int).Mul(big.NewInt(3), pow128)},
		{"large modulus", pow128, pow128, new(big.Int).Sub(pow128, big.NewInt(159)), big.NewInt(159 * 159)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := precompileExecutor(t)
			storeWords(e, xPtr, bigToWords(tc.x, uint256Words))
			storeWords(e, yPtr, bigToWords(tc.y, uint256Words))
			storeWords(e, yPtr+32, bigToWords(tc.m, uint256Words))

			ev := callPrecompile(t, e, SyscallUint256Mul, xPtr, yPtr).(*Uint256MulEvent)
			require.Zero(t, tc.want.Cmp(wordsToBig(loadWords(e, xPtr, uint256Words))))
			require.Equal(t, bigToWords(tc.x, uint256Words), ev.X)
			require.Len(t, ev.ModulusMemoryRecords, uint256Words)
			for i, rec := range ev.XMemoryRecords {
				require.Equal(t, ev.X[i], rec.PrevValue)
				require.True(t, rec.Write)
			}
		})
	}
}

func TestFieldPrecompiles(t *testing.T) {
	fields := []struct {
		curve   CurveType
		modulus *big.Int
		add     SyscallCode
		sub     SyscallCode
		mul     SyscallCode
		fp2Add  SyscallCode
		fp2Mul  SyscallCode
	}{
		{CurveBn254, bn254fp.Modulus(), SyscallBn254FpAdd, SyscallBn254FpSub, SyscallBn254FpMul, SyscallBn254Fp2Add, SyscallBn254Fp2Mul},
		{CurveBls12381, bls12381fp.Modulus(), SyscallBls12381FpAdd, SyscallBls12381FpSub, SyscallBls12381FpMul, SyscallBls12381Fp2Add, SyscallBls12381Fp2Mul},
	}
	for _, f := range fields {
		t.Run(string(f.curve), func(t *testing.T) {
			p := f.modulus
			n := fieldFor(f.curve).words
			pMinus := func(v int64) *big.Int { return new(big.Int).Sub(p, big.NewInt(v)) }
			big2 := func(v *big.Int) []uint32 { return bigToWords(v, n) }
			small := func(v int64) []uint32 { return big2(big.NewInt(v)) }

			x := new(big.Int).Rsh(p, 3)
			y := new(big.Int).Rsh(p, 5)
			prod := new(big.Int).Mul(x, y)
			prod.Mod(prod, p)

			cases := []struct {
				name string
				code SyscallCode
				x, y []uint32
				want []uint32
			}{
				{"add wraps", f.add, big2(pMinus(1)), small(2), small(1)},
				{"sub wraps", f.sub, small(1), small(2), big2(pMinus(1))},
				{"mul", f.mul, big2(x), big2(y), big2(prod)},
				{"fp2 add", f.fp2Add, concat(small(1), small(2)), concat(big2(pMinus(1)), small(3)), concat(small(0), small(5))},
				{"fp2 mul", f.fp2Mul, concat(small(1), small(2)), concat(small(3), small(4)), concat(big2(pMinus(5)), small(10))},
			}
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					e := precompileExecutor(t)
					storeWords(e, xPtr, tc.x)
					storeWords(e, yPtr, tc.y)
					callPrecompile(t, e, tc.code, xPtr, yPtr)
					require.Equal(t, tc.want, loadWords(e, xPtr, len(tc.want)))
					require.Equal(t, tc.y, loadWords(e, yPtr, len(tc.y)), "y is left alone")
				})
			}
		})
	}
}

func TestCurvePrecompiles(t *testing.T) {
	k1 := func(k int64) []uint32 {
		x, y := crypto.S256().ScalarBaseMult(big.NewInt(k).Bytes())
		return joinPoint(x, y, 16)
	}
	_, _, g1, _ := bn254.Generators()
	bn := func(k int64) []uint32 {
		var p bn254.G1Affine
		p.ScalarMultiplication(&g1, big.NewInt(k))
		return bn254Words(&p)
	}
	infinity := make([]uint32, 16)

	cases := []struct {
		name  string
		code  SyscallCode
		p, q  []uint32
		want  []uint32
		extra uint32
	}{
		{"secp256k1 add", SyscallSecp256k1Add, k1(1), k1(2), k1(3), 1},
		{"secp256k1 add infinity", SyscallSecp256k1Add, infinity, k1(5), k1(5), 1},
		{"secp256k1 double", SyscallSecp256k1Double, k1(3), nil, k1(6), 0},
		{"bn254 add", SyscallBn254Add, bn(1), bn(2), bn(3), 1},
		{"bn254 add infinity", SyscallBn254Add, bn(4), infinity, bn(4), 1},
		{"bn254 double", SyscallBn254Double, bn(2), nil, bn(4), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := precompileExecutor(t)
			storeWords(e, xPtr, tc.p)
			storeWords(e, yPtr, tc.q)
			ev := callPrecompile(t, e, tc.code, xPtr, yPtr)
			require.Equal(t, tc.want, loadWords(e, xPtr, 16))
			require.Equal(t, tc.extra, DefaultSyscallMap()[tc.code].NumExtraCycles())

			switch ev := ev.(type) {
			case *EllipticCurveAddEvent:
				require.Equal(t, tc.p, ev.P)
				require.Equal(t, tc.q, ev.Q)
				require.Len(t, ev.QMemoryRecords, 16)
			case *EllipticCurveDoubleEvent:
				require.Equal(t, tc.p, ev.P)
				require.Len(t, ev.PMemoryRecords, 16)
			default:
				t.Fatalf("unexpected event %T", ev)
			}
		})
	}

	t.Run("unaligned pointer", func(t *testing.T) {
		e := precompileExecutor(t)
		ctx := newSyscallContext(e, SyscallEvent{Clk: e.clk})
		_, _, err := DefaultSyscallMap()[SyscallBn254Add].Execute(ctx, SyscallBn254Add, xPtr+2, yPtr)
		require.ErrorIs(t, err, ErrUnalignedAccess)
	})
}

func TestPrecompileLocalEvents(t *testing.T) {
	e := precompileExecutor(t)
	storeWords(e, xPtr, bigToWords(big.NewInt(3), uint256Words))
	storeWords(e, yPtr, bigToWords(big.NewInt(4), uint256Words))

	// a word the shard already tracks stays with the shard
	e.access(yPtr, 0, false, e.clk, e.local)
	ev := callPrecompile(t, e, SyscallUint256Mul, xPtr, yPtr)

	local := ev.LocalMemoryEvents()
	require.Len(t, local, 3*uint256Words-1)
	for _, l := range local {
		require.NotEqual(t, uint32(yPtr), l.Addr)
	}
	shard := e.local[yPtr]
	require.Equal(t, e.clk, shard.FinalMemAccess.Timestamp)
}

func TestLimbConversion(t *testing.T) {
	v, ok := new(big.Int).SetString("0102030405060708090a0b0c0d0e0f10", 16)
	require.True(t, ok)
	words := bigToWords(v, 4)
	require.Equal(t, []uint32{0x0d0e0f10, 0x090a0b0c, 0x05060708, 0x01020304}, words)
	require.Zero(t, v.Cmp(wordsToBig(words)))
	require.Equal(t, uint32(0x0d0e0f10), uint256ToWords(wordsToUint256(bigToWords(v, 8)))[0])
}
