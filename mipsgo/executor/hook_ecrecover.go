package executor

import (
	"crypto/elliptic"
	"fmt"
	"math/big"
	"slices"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
)

// HookK1Ecrecover recovers a secp256k1 public key.
//
// The buffer is the 64 byte signature r || s, the recovery id byte and the
// 32 byte message hash. High s values are normalized first, flipping the
// recovery id. The result is the uncompressed key X || Y and s^-1 mod n,
// both big-endian.
func HookK1Ecrecover(_ HookEnv, buf []byte) [][]byte {
	if len(buf) != 65+32 {
		panic(fmt.Sprintf("ecrecover input should have length 97, got %d", len(buf)))
	}
	sig := slices.Clone(buf[:65])
	hash := buf[65:]

	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sig[32:64]); overflow || s.IsZero() {
		panic("ecrecover: invalid signature s")
	}
	if s.IsOverHalfOrder() {
		s.Negate()
		normalized := s.Bytes()
		copy(sig[32:64], normalized[:])
		sig[64] ^= 1
	}

	pub, err := crypto.Ecrecover(hash, sig)
	if err != nil {
		panic(fmt.Errorf("ecrecover: %w", err))
	}

	var sInv secp256k1.ModNScalar
	sInv.InverseValNonConst(&s)
	inv := sInv.Bytes()
	return [][]byte{pub[1:], inv[:]}
}

// HookR1Ecrecover returns s^-1 modulo the P-256 group order for the 64 byte
// signature r || s.
func HookR1Ecrecover(_ HookEnv, buf []byte) [][]byte {
	if len(buf) != 64 {
		panic(fmt.Sprintf("ecrecover input should have length 64, got %d", len(buf)))
	}
	n := elliptic.P256().Params().N
	s := new(big.Int).SetBytes(buf[32:])
	if s.Sign() == 0 || s.Cmp(n) >= 0 {
		panic("ecrecover: invalid signature s")
	}
	inv := new(big.Int).ModInverse(s, n)
	return [][]byte{padToBE(inv, 32)}
}
