package program

import (
	"debug/elf"
	"fmt"
	"sort"
)

type SortedSymbols []elf.Symbol

// FindSymbol finds the symbol that intersects with the given addr, or a
// placeholder if none exists.
func (s SortedSymbols) FindSymbol(addr uint32) elf.Symbol {
	// find first symbol with higher start. Or n if no such symbol exists
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Value > uint64(addr)
	})
	if i == 0 {
		return elf.Symbol{Name: "!start", Value: 0}
	}
	out := &s[i-1]
	if out.Value+out.Size < uint64(addr) { // addr may be pointing to a gap between symbols
		return elf.Symbol{Name: "!gap", Value: uint64(addr)}
	}
	return *out
}

func (s SortedSymbols) LookupSymbol(addr uint32) string {
	if len(s) == 0 {
		return "!unknown"
	}
	return s.FindSymbol(addr).Name
}

// Symbols returns the symbol table sorted by address.
func Symbols(f *elf.File) (SortedSymbols, error) {
	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols data: %w", err)
	}
	// not every ELF has sorted symbols
	out := make(SortedSymbols, len(symbols))
	copy(out, symbols)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// Metadata is the persisted subset of the symbol table used for diagnostics.
type Metadata struct {
	Symbols []Symbol `json:"symbols"`
}

type Symbol struct {
	Name  string `json:"name"`
	Start uint32 `json:"start"`
	Size  uint32 `json:"size"`
}

func MakeMetadata(f *elf.File) (*Metadata, error) {
	syms, err := Symbols(f)
	if err != nil {
		return nil, err
	}
	out := &Metadata{Symbols: make([]Symbol, len(syms))}
	for i, s := range syms {
		out.Symbols[i] = Symbol{Name: s.Name, Start: uint32(s.Value), Size: uint32(s.Size)}
	}
	return out, nil
}

func (m *Metadata) LookupSymbol(addr uint32) string {
	if m == nil || len(m.Symbols) == 0 {
		return "!unknown"
	}
	i := sort.Search(len(m.Symbols), func(i int) bool {
		return m.Symbols[i].Start > addr
	})
	if i == 0 {
		return "!start"
	}
	out := &m.Symbols[i-1]
	if out.Start+out.Size < addr {
		return "!gap"
	}
	return out.Name
}
