package executor

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

var (
	bigOne   = big.NewInt(1)
	bigTwo   = big.NewInt(2)
	bigThree = big.NewInt(3)
	bigFour  = big.NewInt(4)
)

func padToBE(v *big.Int, n int) []byte {
	return v.FillBytes(make([]byte, n))
}

// splitFpBuffer parses len || v_0 || ... || v_{count-1}, each v_i being a
// big-endian integer of len bytes.
func splitFpBuffer(buf []byte, count int) (int, []*big.Int) {
	if len(buf) < 4 {
		panic("FpOp: invalid buffer length")
	}
	n := int(binary.BigEndian.Uint32(buf[:4]))
	if n == 0 || len(buf) != 4+count*n {
		panic(fmt.Sprintf("FpOp: invalid buffer length %d for %d elements of %d bytes", len(buf), count, n))
	}
	out := make([]*big.Int, count)
	for i := range out {
		out[i] = new(big.Int).SetBytes(buf[4+i*n : 4+(i+1)*n])
	}
	return n, out
}

// HookFpInverse computes the inverse of a non-zero element of a prime field.
//
// The buffer is len || element || modulus. The result is the inverse as a
// big-endian integer of len bytes.
func HookFpInverse(_ HookEnv, buf []byte) [][]byte {
	n, vals := splitFpBuffer(buf, 2)
	element, modulus := vals[0], vals[1]
	if element.Sign() == 0 {
		panic("FpOp: inverse called with zero")
	}
	exp := new(big.Int).Sub(modulus, bigTwo)
	inv := new(big.Int).Exp(element, exp, modulus)
	return [][]byte{padToBE(inv, n)}
}

// HookFpSqrt computes a square root in a prime field.
//
// The buffer is len || element || modulus || nqr where nqr is a known
// quadratic non-residue. The result is a status byte and a root of len
// bytes: status 1 with a root of element, or status 0 with a root of
// nqr * element when element is not a square.
func HookFpSqrt(_ HookEnv, buf []byte) [][]byte {
	n, vals := splitFpBuffer(buf, 3)
	element, modulus, nqr := vals[0], vals[1], vals[2]
	if element.Cmp(modulus) >= 0 {
		panic("FpOp: element is not less than modulus, only canonical representations are accepted")
	}
	if nqr.Sign() == 0 || nqr.Cmp(modulus) >= 0 {
		panic("FpOp: nqr is zero or non-canonical, only canonical representations are accepted")
	}

	if element.Sign() == 0 {
		return [][]byte{{1}, make([]byte, n)}
	}
	if root := sqrtFp(element, modulus, nqr); root != nil {
		return [][]byte{{1}, padToBE(root, n)}
	}
	qr := new(big.Int).Mul(nqr, element)
	qr.Mod(qr, modulus)
	root := sqrtFp(qr, modulus, nqr)
	if root == nil {
		panic("FpOp: nqr is a quadratic residue")
	}
	return [][]byte{{0}, padToBE(root, n)}
}

// sqrtFp returns a square root of x modulo the odd prime p, or nil when x is
// not a square.
func sqrtFp(x, p, nqr *big.Int) *big.Int {
	if new(big.Int).Mod(p, bigFour).Cmp(bigThree) == 0 {
		exp := new(big.Int).Add(p, bigOne)
		exp.Rsh(exp, 2)
		root := new(big.Int).Exp(x, exp, p)
		check := new(big.Int).Mul(root, root)
		if check.Mod(check, p).Cmp(x) != 0 {
			return nil
		}
		return root
	}
	return tonelliShanks(x, p, nqr)
}

// tonelliShanks works in any prime field given a non-residue nqr.
func tonelliShanks(x, p, nqr *big.Int) *big.Int {
	if legendreSymbol(x, p).Cmp(bigOne) != 0 {
		return nil
	}

	// p - 1 = q * 2^s with q odd
	q := new(big.Int).Sub(p, bigOne)
	s := 0
	for q.Bit(0) == 0 {
		q.Rsh(q, 1)
		s++
	}

	c := new(big.Int).Exp(nqr, q, p)
	exp := new(big.Int).Add(q, bigOne)
	r := new(big.Int).Exp(x, exp.Rsh(exp, 1), p)
	t := new(big.Int).Exp(x, q, p)
	m := s

	for t.Cmp(bigOne) != 0 {
		i := 0
		tt := new(big.Int).Set(t)
		for tt.Cmp(bigOne) != 0 {
			tt.Mul(tt, tt).Mod(tt, p)
			i++
			if i == m {
				return nil
			}
		}
		b := new(big.Int).Exp(c, new(big.Int).Lsh(bigOne, uint(m-i-1)), p)
		r.Mul(r, b).Mod(r, p)
		c.Mul(b, b).Mod(c, p)
		t.Mul(t, c).Mod(t, p)
		m = i
	}
	return r
}

// legendreSymbol is x^((p-1)/2) mod p: 1 for squares, p-1 for non-squares.
func legendreSymbol(x, p *big.Int) *big.Int {
	if x.Sign() == 0 {
		panic("FpOp: legendre symbol of zero")
	}
	exp := new(big.Int).Sub(p, bigOne)
	return new(big.Int).Exp(x, exp.Rsh(exp, 1), p)
}
