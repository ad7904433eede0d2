package program

import (
	"encoding/binary"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/exp/maps"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

const (
	PageSize          = 4096
	MaxMemory         = 0x80000000
	InitSP            = 0x7fffd000
	HeapStart         = 0x20000000
	MaxProgramHeaders = 256
)

// Program is a loaded guest: the initial memory image, the decoded text range
// and the initial register file. The executor copies what it mutates, so a
// Program can be run any number of times.
type Program struct {
	Instructions []mips.Instruction `json:"instructions"`

	PCStart uint32 `json:"pcStart"`
	PCBase  uint32 `json:"pcBase"`
	NextPC  uint32 `json:"nextPC"`

	// Image maps word addresses to big-endian words. Missing words read as zero.
	Image map[uint32]uint32 `json:"image"`

	GPRs      [mips.NumGPRs]uint32 `json:"gprs"`
	Lo        uint32               `json:"lo"`
	Hi        uint32               `json:"hi"`
	Heap      uint32               `json:"heap"`
	Brk       uint32               `json:"brk"`
	LocalUser uint32               `json:"localUser"`

	InputStream           []hexutil.Bytes `json:"inputStream"`
	InputStreamPtr        int             `json:"inputStreamPtr"`
	PublicValuesStream    hexutil.Bytes   `json:"publicValuesStream"`
	PublicValuesStreamPtr int             `json:"publicValuesStreamPtr"`
}

// Fetch returns the decoded instruction at pc.
func (p *Program) Fetch(pc uint32) (mips.Instruction, bool) {
	if pc < p.PCBase || pc&3 != 0 {
		return mips.Instruction{}, false
	}
	idx := (pc - p.PCBase) / 4
	if idx >= uint32(len(p.Instructions)) {
		return mips.Instruction{}, false
	}
	return p.Instructions[idx], true
}

// TextEnd is the first address past the decoded instruction range.
func (p *Program) TextEnd() uint32 {
	return p.PCBase + 4*uint32(len(p.Instructions))
}

// ImageID commits to the entry point and the full initial image.
func (p *Program) ImageID() common.Hash {
	addrs := maps.Keys(p.Image)
	slices.Sort(addrs)
	h := crypto.NewKeccakState()
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], p.PCStart)
	_, _ = h.Write(buf[:4])
	for _, a := range addrs {
		binary.BigEndian.PutUint32(buf[:4], a)
		binary.BigEndian.PutUint32(buf[4:], p.Image[a])
		_, _ = h.Write(buf[:])
	}
	var out common.Hash
	_, _ = h.Read(out[:])
	return out
}

// WriteStdin appends a private input frame.
func (p *Program) WriteStdin(data []byte) {
	p.InputStream = append(p.InputStream, slices.Clone(data))
}

func (p *Program) setWord(addr, v uint32) {
	p.Image[addr] = v
	if addr >= p.PCBase && addr < p.TextEnd() {
		p.Instructions[(addr-p.PCBase)/4] = mips.Decode(v)
	}
}
