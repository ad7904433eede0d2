package executor

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"sort"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

// Pages hold 1024 words, 4 KiB of guest memory.
const (
	PageAddrSize = 12
	PageSize     = 1 << PageAddrSize
	PageAddrMask = PageSize - 1
	PageWords    = PageSize / 4

	// RegisterSpaceEnd is the first address data accesses may use. Lower
	// addresses name registers.
	RegisterSpaceEnd = 0x100
)

// MemoryEntry is the latest access state of one word.
type MemoryEntry struct {
	Value     uint32 `json:"value"`
	Shard     uint32 `json:"shard"`
	Timestamp uint32 `json:"timestamp"`
}

type Page struct {
	Entries [PageWords]MemoryEntry
	touched [PageWords / 64]uint64
	inImage [PageWords / 64]uint64
}

func (p *Page) flag(set *[PageWords / 64]uint64, i uint32) bool {
	return set[i/64]&(1<<(i%64)) != 0
}

func (p *Page) count() (n int) {
	for _, w := range p.touched {
		n += bits.OnesCount64(w)
	}
	return
}

// Memory is the unified register and data store of the executor. Registers
// live at addresses 0..36, data words at aligned addresses from
// RegisterSpaceEnd upwards.
type Memory struct {
	registers        [mips.NumRegisters]MemoryEntry
	registersTouched uint64
	registersInImage uint64

	pages map[uint32]*Page

	// two caches: we often touch the stack page and one data page.
	lastPageKeys [2]uint32
	lastPage     [2]*Page
}

func NewMemory() *Memory {
	return &Memory{
		pages:        make(map[uint32]*Page),
		lastPageKeys: [2]uint32{^uint32(0), ^uint32(0)}, // default to invalid keys, to not match any pages
	}
}

func (m *Memory) PageCount() int {
	return len(m.pages)
}

func (m *Memory) pageLookup(pageIndex uint32) (*Page, bool) {
	if pageIndex == m.lastPageKeys[0] {
		return m.lastPage[0], true
	}
	if pageIndex == m.lastPageKeys[1] {
		return m.lastPage[1], true
	}
	p, ok := m.pages[pageIndex]

	// only cache existing pages.
	if ok {
		m.lastPageKeys[1] = m.lastPageKeys[0]
		m.lastPage[1] = m.lastPage[0]
		m.lastPageKeys[0] = pageIndex
		m.lastPage[0] = p
	}
	return p, ok
}

func (m *Memory) allocPage(pageIndex uint32) *Page {
	p := &Page{}
	m.pages[pageIndex] = p
	return p
}

func isRegister(addr uint32) bool {
	return addr < mips.NumRegisters
}

// entry returns the state of addr, allocating its page when alloc is set.
func (m *Memory) entry(addr uint32, alloc bool) (*MemoryEntry, *Page, uint32) {
	if isRegister(addr) {
		return &m.registers[addr], nil, addr
	}
	pageIndex := addr >> PageAddrSize
	p, ok := m.pageLookup(pageIndex)
	if !ok {
		if !alloc {
			return nil, nil, 0
		}
		p = m.allocPage(pageIndex)
	}
	i := (addr & PageAddrMask) >> 2
	return &p.Entries[i], p, i
}

// Peek returns the current value at addr without recording an access.
func (m *Memory) Peek(addr uint32) uint32 {
	e, _, _ := m.entry(addr, false)
	if e == nil {
		return 0
	}
	return e.Value
}

// Get returns the full entry at addr.
func (m *Memory) Get(addr uint32) MemoryEntry {
	e, _, _ := m.entry(addr, false)
	if e == nil {
		return MemoryEntry{}
	}
	return *e
}

// access updates addr to entry and marks it touched, returning the previous state.
func (m *Memory) access(addr uint32, next MemoryEntry) MemoryEntry {
	e, p, i := m.entry(addr, true)
	prev := *e
	*e = next
	if p == nil {
		m.registersTouched |= 1 << i
	} else {
		p.touched[i/64] |= 1 << (i % 64)
	}
	return prev
}

// initialize stores an image value. It is not an access.
func (m *Memory) initialize(addr, value uint32) {
	e, p, i := m.entry(addr, true)
	*e = MemoryEntry{Value: value}
	if p == nil {
		m.registersInImage |= 1 << i
	} else {
		p.inImage[i/64] |= 1 << (i % 64)
	}
}

// setUninitialized places a value that later reads observe as the pre-run
// state of addr, without it being part of the image.
func (m *Memory) setUninitialized(addr, value uint32) {
	e, _, _ := m.entry(addr, true)
	*e = MemoryEntry{Value: value}
}

// Contains reports whether addr was initialized, written or read.
func (m *Memory) Contains(addr uint32) bool {
	touched, inImage := m.flags(addr)
	return touched || inImage
}

func (m *Memory) flags(addr uint32) (touched, inImage bool) {
	if isRegister(addr) {
		return m.registersTouched&(1<<addr) != 0, m.registersInImage&(1<<addr) != 0
	}
	p, ok := m.pageLookup(addr >> PageAddrSize)
	if !ok {
		return false, false
	}
	i := (addr & PageAddrMask) >> 2
	return p.flag(&p.touched, i), p.flag(&p.inImage, i)
}

// TouchedCount is the number of distinct addresses accessed so far.
func (m *Memory) TouchedCount() (n int) {
	n = bits.OnesCount64(m.registersTouched)
	for _, p := range m.pages {
		n += p.count()
	}
	return
}

// ForEach visits every address that is touched or part of the image, in
// ascending address order.
func (m *Memory) ForEach(fn func(addr uint32, e MemoryEntry, touched, inImage bool)) {
	for r := uint32(0); r < mips.NumRegisters; r++ {
		touched, inImage := m.registersTouched&(1<<r) != 0, m.registersInImage&(1<<r) != 0
		if touched || inImage {
			fn(r, m.registers[r], touched, inImage)
		}
	}
	keys := make([]uint32, 0, len(m.pages))
	for k := range m.pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		p := m.pages[k]
		for i := uint32(0); i < PageWords; i++ {
			touched, inImage := p.flag(&p.touched, i), p.flag(&p.inImage, i)
			if touched || inImage {
				fn(k<<PageAddrSize|i<<2, p.Entries[i], touched, inImage)
			}
		}
	}
}

func (m *Memory) Usage() string {
	total := uint64(len(m.pages)) * PageSize
	const unit = 1024
	if total < unit {
		return fmt.Sprintf("%d B", total)
	}
	div, exp := uint64(unit), 0
	for n := total / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	// KiB, MiB, GiB, TiB, ...
	return fmt.Sprintf("%.1f %ciB", float64(total)/float64(div), "KMGTPE"[exp])
}

type memoryWord struct {
	Addr uint32 `json:"addr"`
	MemoryEntry
	Touched bool `json:"touched,omitempty"`
	InImage bool `json:"inImage,omitempty"`
}

// MarshalJSON emits every live word in address order.
func (m *Memory) MarshalJSON() ([]byte, error) {
	var words []memoryWord
	m.ForEach(func(addr uint32, e MemoryEntry, touched, inImage bool) {
		words = append(words, memoryWord{Addr: addr, MemoryEntry: e, Touched: touched, InImage: inImage})
	})
	return json.Marshal(words)
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var words []memoryWord
	if err := json.Unmarshal(data, &words); err != nil {
		return err
	}
	*m = *NewMemory()
	for i, w := range words {
		if !isRegister(w.Addr) && (w.Addr&3 != 0 || w.Addr < RegisterSpaceEnd) {
			return fmt.Errorf("invalid memory entry %d at address %08x", i, w.Addr)
		}
		if m.Contains(w.Addr) {
			return fmt.Errorf("cannot load duplicate memory entry %d at address %08x", i, w.Addr)
		}
		if w.InImage {
			m.initialize(w.Addr, w.Value)
		}
		if w.Touched {
			m.access(w.Addr, w.MemoryEntry)
		}
	}
	return nil
}
