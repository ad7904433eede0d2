package executor

import (
	"encoding/json"
)

// PrecompileEvent is the payload of a syscall that has its own table. The
// concrete types below are the only implementations.
type PrecompileEvent interface {
	Kind() string
	// LocalMemoryEvents are the accesses the precompile made to addresses the
	// shard did not otherwise touch.
	LocalMemoryEvents() []MemoryLocalEvent
}

// FieldOperation selects the arithmetic of a field precompile.
type FieldOperation uint8

const (
	FieldAdd FieldOperation = iota
	FieldSub
	FieldMul
)

func (op FieldOperation) String() string {
	switch op {
	case FieldAdd:
		return "add"
	case FieldSub:
		return "sub"
	case FieldMul:
		return "mul"
	}
	return "unknown"
}

func (op FieldOperation) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// CurveType names the elliptic curve or field a precompile works over.
type CurveType string

const (
	CurveSecp256k1 CurveType = "secp256k1"
	CurveBn254     CurveType = "bn254"
	CurveBls12381  CurveType = "bls12381"
)

type precompileBase struct {
	Shard          uint32             `json:"shard"`
	Clk            uint32             `json:"clk"`
	LocalMemAccess []MemoryLocalEvent `json:"localMemAccess,omitempty"`
}

func (b *precompileBase) LocalMemoryEvents() []MemoryLocalEvent { return b.LocalMemAccess }

// KeccakSpongeEvent absorbs whole 36-word blocks and squeezes 16 words.
type KeccakSpongeEvent struct {
	precompileBase
	Input              []uint32       `json:"input"`
	Output             [16]uint32     `json:"output"`
	InputLenU32s       uint32         `json:"inputLenU32s"`
	RateLenBytes       uint32         `json:"rateLenBytes"`
	InputReadRecords   []MemoryRecord `json:"inputReadRecords"`
	RateLengthRecord   MemoryRecord   `json:"rateLengthRecord"`
	InputLengthRecord  MemoryRecord   `json:"inputLengthRecord"`
	OutputWriteRecords []MemoryRecord `json:"outputWriteRecords"`
	InputAddr          uint32         `json:"inputAddr"`
	OutputAddr         uint32         `json:"outputAddr"`
}

func (*KeccakSpongeEvent) Kind() string { return "keccak_sponge" }

// EllipticCurveAddEvent adds Q into P in place.
type EllipticCurveAddEvent struct {
	precompileBase
	Curve          CurveType      `json:"curve"`
	PPtr           uint32         `json:"pPtr"`
	P              []uint32       `json:"p"`
	QPtr           uint32         `json:"qPtr"`
	Q              []uint32       `json:"q"`
	PMemoryRecords []MemoryRecord `json:"pMemoryRecords"`
	QMemoryRecords []MemoryRecord `json:"qMemoryRecords"`
}

func (*EllipticCurveAddEvent) Kind() string { return "ec_add" }

// EllipticCurveDoubleEvent doubles P in place.
type EllipticCurveDoubleEvent struct {
	precompileBase
	Curve          CurveType      `json:"curve"`
	PPtr           uint32         `json:"pPtr"`
	P              []uint32       `json:"p"`
	PMemoryRecords []MemoryRecord `json:"pMemoryRecords"`
}

func (*EllipticCurveDoubleEvent) Kind() string { return "ec_double" }

// FpOpEvent is x = x op y over a base field.
type FpOpEvent struct {
	precompileBase
	Field          CurveType      `json:"field"`
	Op             FieldOperation `json:"op"`
	XPtr           uint32         `json:"xPtr"`
	X              []uint32       `json:"x"`
	YPtr           uint32         `json:"yPtr"`
	Y              []uint32       `json:"y"`
	XMemoryRecords []MemoryRecord `json:"xMemoryRecords"`
	YMemoryRecords []MemoryRecord `json:"yMemoryRecords"`
}

func (*FpOpEvent) Kind() string { return "fp_op" }

// Fp2AddSubEvent is x = x ± y over a quadratic extension.
type Fp2AddSubEvent struct {
	precompileBase
	Field          CurveType      `json:"field"`
	Op             FieldOperation `json:"op"`
	XPtr           uint32         `json:"xPtr"`
	X              []uint32       `json:"x"`
	YPtr           uint32         `json:"yPtr"`
	Y              []uint32       `json:"y"`
	XMemoryRecords []MemoryRecord `json:"xMemoryRecords"`
	YMemoryRecords []MemoryRecord `json:"yMemoryRecords"`
}

func (*Fp2AddSubEvent) Kind() string { return "fp2_addsub" }

// Fp2MulEvent is x = x * y over a quadratic extension with u^2 = -1.
type Fp2MulEvent struct {
	precompileBase
	Field          CurveType      `json:"field"`
	XPtr           uint32         `json:"xPtr"`
	X              []uint32       `json:"x"`
	YPtr           uint32         `json:"yPtr"`
	Y              []uint32       `json:"y"`
	XMemoryRecords []MemoryRecord `json:"xMemoryRecords"`
	YMemoryRecords []MemoryRecord `json:"yMemoryRecords"`
}

func (*Fp2MulEvent) Kind() string { return "fp2_mul" }

// Uint256MulEvent is x = x * y mod m, with m = 0 meaning 2^256.
type Uint256MulEvent struct {
	precompileBase
	XPtr                 uint32         `json:"xPtr"`
	X                    []uint32       `json:"x"`
	YPtr                 uint32         `json:"yPtr"`
	Y                    []uint32       `json:"y"`
	Modulus              []uint32       `json:"modulus"`
	XMemoryRecords       []MemoryRecord `json:"xMemoryRecords"`
	YMemoryRecords       []MemoryRecord `json:"yMemoryRecords"`
	ModulusMemoryRecords []MemoryRecord `json:"modulusMemoryRecords"`
}

func (*Uint256MulEvent) Kind() string { return "uint256_mul" }

// LinuxEvent is a Linux system call with the register accesses it made
// beyond its arguments.
type LinuxEvent struct {
	precompileBase
	SyscallCode  uint32         `json:"syscallCode"`
	A0           uint32         `json:"a0"`
	A1           uint32         `json:"a1"`
	V0           uint32         `json:"v0"`
	ReadRecords  []MemoryRecord `json:"readRecords"`
	WriteRecords []MemoryRecord `json:"writeRecords"`
}

func (*LinuxEvent) Kind() string { return "linux" }

// PrecompileEntry keeps a precompile event next to the syscall that caused it.
type PrecompileEntry struct {
	Code    SyscallCode
	Syscall SyscallEvent
	Event   PrecompileEvent
}

func (e PrecompileEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code    SyscallCode     `json:"code"`
		Kind    string          `json:"kind"`
		Syscall SyscallEvent    `json:"syscall"`
		Event   PrecompileEvent `json:"event"`
	}{e.Code, e.Event.Kind(), e.Syscall, e.Event})
}
