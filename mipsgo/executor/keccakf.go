package executor

import (
	_ "unsafe" // we use go:linkname

	_ "golang.org/x/crypto/sha3"
)

// keccakF1600 is the permutation behind the sha3 package, assembly on amd64.
//
//go:noescape
//go:linkname keccakF1600 golang.org/x/crypto/sha3.keccakF1600
func keccakF1600(a *[25]uint64)
