package program

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

const decodeChunk = 1 << 14

// LoadFile reads and loads an ELF executable from disk.
func LoadFile(path string, maxMemory uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ELF file %q: %w", path, err)
	}
	return Load(data, maxMemory)
}

func checkIdent(input []byte) error {
	if len(input) < elf.EI_NIDENT || string(input[:4]) != elf.ELFMAG {
		return fmt.Errorf("%w: bad magic", ErrMalformedELF)
	}
	if elf.Class(input[elf.EI_CLASS]) != elf.ELFCLASS32 {
		return fmt.Errorf("%w: %s", ErrInvalidClass, elf.Class(input[elf.EI_CLASS]))
	}
	if elf.Data(input[elf.EI_DATA]) != elf.ELFDATA2MSB {
		return fmt.Errorf("%w: %s", ErrInvalidByteOrder, elf.Data(input[elf.EI_DATA]))
	}
	return nil
}

// Load parses a MIPS32 big-endian ELF executable into a Program.
// A zero maxMemory selects MaxMemory.
func Load(input []byte, maxMemory uint32) (*Program, error) {
	if maxMemory == 0 {
		maxMemory = MaxMemory
	}
	if err := checkIdent(input); err != nil {
		return nil, err
	}
	f, err := elf.NewFile(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedELF, err)
	}
	if f.Machine != elf.EM_MIPS {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidMachine, f.Machine)
	}
	if f.Type != elf.ET_EXEC {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidType, f.Type)
	}
	if f.Entry >= uint64(maxMemory) || f.Entry%4 != 0 {
		return nil, fmt.Errorf("%w: 0x%x", ErrInvalidEntrypoint, f.Entry)
	}
	if len(f.Progs) > MaxProgramHeaders {
		return nil, fmt.Errorf("%w: %d", ErrTooManyHeaders, len(f.Progs))
	}

	image := make(map[uint32]uint32)
	textStart, textEnd := uint32(0), uint32(0)
	haveText := false
	var hiAddr uint64

	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Filesz >= uint64(maxMemory) || prog.Memsz >= uint64(maxMemory) {
			return nil, fmt.Errorf("%w: segment %d file size %d mem size %d", ErrSegmentTooLarge, i, prog.Filesz, prog.Memsz)
		}
		if prog.Filesz > prog.Memsz {
			return nil, fmt.Errorf("%w: segment %d file size (%d) > mem size (%d)", ErrSegmentTooLarge, i, prog.Filesz, prog.Memsz)
		}
		if prog.Vaddr%4 != 0 {
			return nil, fmt.Errorf("%w: segment %d at 0x%x", ErrUnalignedSegment, i, prog.Vaddr)
		}
		end := prog.Vaddr + prog.Memsz
		if end > uint64(maxMemory) {
			return nil, fmt.Errorf("%w: segment %d ends at 0x%x", ErrAddressOverflow, i, end)
		}
		if prog.Off+prog.Filesz > uint64(len(input)) {
			return nil, fmt.Errorf("%w: segment %d needs %d bytes at offset %d", ErrTruncated, i, prog.Filesz, prog.Off)
		}
		content := input[prog.Off : prog.Off+prog.Filesz]
		vaddr := uint32(prog.Vaddr)
		for off := uint64(0); off < prog.Memsz; off += 4 {
			var word [4]byte
			if off < prog.Filesz {
				copy(word[:], content[off:])
			}
			image[vaddr+uint32(off)] = uint32(word[0])<<24 | uint32(word[1])<<16 | uint32(word[2])<<8 | uint32(word[3])
		}
		if prog.Flags&elf.PF_X != 0 {
			segEnd := uint32((end + 3) &^ 3)
			if !haveText || vaddr < textStart {
				textStart = vaddr
			}
			if !haveText || segEnd > textEnd {
				textEnd = segEnd
			}
			haveText = true
		}
		hiAddr = max(hiAddr, end)
	}
	if !haveText {
		return nil, ErrNoExecutableSegment
	}

	p := &Program{
		PCStart: uint32(f.Entry),
		PCBase:  textStart,
		NextPC:  uint32(f.Entry) + 4,
		Image:   image,
		Heap:    HeapStart,
		Brk:     uint32(hiAddr&^(PageSize-1)) + PageSize,
	}
	p.Instructions = decodeText(image, textStart, textEnd)

	if err := p.patchRuntime(f, maxMemory); err != nil {
		return nil, err
	}
	p.initStack()
	return p, nil
}

// decodeText decodes [start, end) in parallel chunks. Gaps in the text range
// are materialized as zero words so every fetchable address is in the image.
func decodeText(image map[uint32]uint32, start, end uint32) []mips.Instruction {
	words := make([]uint32, (end-start)/4)
	for i := range words {
		addr := start + uint32(i)*4
		w, ok := image[addr]
		if !ok {
			image[addr] = 0
		}
		words[i] = w
	}
	out := make([]mips.Instruction, len(words))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for lo := 0; lo < len(words); lo += decodeChunk {
		lo, hi := lo, min(lo+decodeChunk, len(words))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				out[i] = mips.Decode(words[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Go runtime functions that start background goroutines, enable the GC, or
// depend on floating point. Each is replaced by `jr $ra; nop`.
var patchedSymbols = []string{
	"runtime.gcenable",
	"runtime.init.5",     // init() { go forcegchelper() }
	"runtime.main.func1", // main.func() { newm(sysmon, ....) }
	"runtime.deductSweepCredit",
	"runtime.(*gcControllerState).commit",
	"runtime.check",
	"flag.init",
	"github.com/prometheus/client_golang/prometheus.init",
	"github.com/prometheus/client_golang/prometheus.init.0",
	"github.com/prometheus/procfs.init",
	"github.com/prometheus/common/model.init",
	"github.com/prometheus/client_model/go.init",
	"github.com/prometheus/client_model/go.init.0",
	"github.com/prometheus/client_model/go.init.1",
}

func (p *Program) patchRuntime(f *elf.File, maxMemory uint32) error {
	symbols, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read symbols data, cannot patch program: %w", err)
	}
	for _, s := range symbols {
		addr := uint32(s.Value)
		if s.Value%4 != 0 || s.Value >= uint64(maxMemory) {
			continue
		}
		switch {
		case slices.Contains(patchedSymbols, s.Name):
			p.setWord(addr, mips.JrRaNop[0])
			p.setWord(addr+4, mips.JrRaNop[1])
		case s.Name == "runtime.MemProfileRate":
			// disable mem profiling, to avoid a lot of unnecessary floating point ops
			p.setWord(addr, 0)
		}
	}
	return nil
}

// Stack words written above InitSP: argc, argv terminator, envp terminator,
// then the auxv pairs AT_PAGESZ and AT_RANDOM, and 16 bytes of "randomness".
func (p *Program) initStack() {
	sp := uint32(InitSP - 4*PageSize)
	for addr := sp; addr < sp+5*PageSize; addr += 4 {
		p.Image[addr] = 0
	}
	sp = InitSP
	p.GPRs[mips.RegSP] = sp
	stack := []uint32{
		0x42,       // argc
		0x35,       // argv[n] = 0 (terminating argv)
		0,          // envp[term] = 0 (no env vars)
		6,          // auxv[0] = _AT_PAGESZ
		PageSize,   // auxv[1] = page size
		25,         // auxv[2] = AT_RANDOM
		sp + 4*9,   // auxv[3] = address of 16 random bytes
		0,          // auxv[term]
		0x34322343, // randomness
		0x54323423,
		0x44572234,
		0x90032dd2,
	}
	for i, v := range stack {
		p.Image[sp+4*uint32(i+1)] = v
	}
}
