package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const (
	elfHeaderSize     = 52
	progHeaderSize    = 32
	sectionHeaderSize = 40
	symbolSize        = 16
)

type Segment struct {
	Vaddr   uint32
	Data    []byte
	MemSize uint32 // defaults to len(Data)
	Flags   elf.ProgFlag
	// FileSize overrides the p_filesz header field when non-zero.
	FileSize uint32
}

type Symbol struct {
	Name  string
	Value uint32
	Size  uint32
}

// ELF describes a minimal ELF32 executable. Zero header fields default to a
// big-endian MIPS ET_EXEC image.
type ELF struct {
	Class    elf.Class
	Data     elf.Data
	Machine  elf.Machine
	Type     elf.Type
	Entry    uint32
	Segments []Segment
	Symbols  []Symbol
	// ExtraHeaders appends empty PT_NULL program headers.
	ExtraHeaders int
}

// Words encodes instruction words big-endian.
func Words(ws ...uint32) []byte {
	out := make([]byte, 0, 4*len(ws))
	for _, w := range ws {
		out = binary.BigEndian.AppendUint32(out, w)
	}
	return out
}

// TextProgram builds an executable with one text segment at entry.
func TextProgram(entry uint32, code ...uint32) []byte {
	e := &ELF{
		Entry:    entry,
		Segments: []Segment{{Vaddr: entry, Data: Words(code...), Flags: elf.PF_R | elf.PF_X}},
	}
	return e.Bytes()
}

func (e *ELF) Bytes() []byte {
	class, data, machine, typ := e.Class, e.Data, e.Machine, e.Type
	if class == elf.ELFCLASSNONE {
		class = elf.ELFCLASS32
	}
	if data == elf.ELFDATANONE {
		data = elf.ELFDATA2MSB
	}
	if machine == elf.EM_NONE {
		machine = elf.EM_MIPS
	}
	if typ == elf.ET_NONE {
		typ = elf.ET_EXEC
	}
	be := binary.BigEndian

	phnum := len(e.Segments) + e.ExtraHeaders
	offset := uint32(elfHeaderSize + progHeaderSize*phnum)
	segOffsets := make([]uint32, len(e.Segments))
	for i, s := range e.Segments {
		segOffsets[i] = offset
		offset += uint32(len(s.Data))
		offset = (offset + 3) &^ 3
	}

	var symtab, strtab, shstrtab []byte
	var shoff uint32
	shnum := 0
	if len(e.Symbols) > 0 {
		strtab = append(strtab, 0)
		symtab = make([]byte, symbolSize) // null symbol
		for _, s := range e.Symbols {
			nameOff := uint32(len(strtab))
			strtab = append(strtab, s.Name...)
			strtab = append(strtab, 0)
			var ent [symbolSize]byte
			be.PutUint32(ent[0:], nameOff)
			be.PutUint32(ent[4:], s.Value)
			be.PutUint32(ent[8:], s.Size)
			ent[12] = byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_FUNC)
			be.PutUint16(ent[14:], 1)
			symtab = append(symtab, ent[:]...)
		}
		shstrtab = []byte("\x00.symtab\x00.strtab\x00.shstrtab\x00")
		shnum = 4
	}

	var buf bytes.Buffer
	var hdr [elfHeaderSize]byte
	copy(hdr[:], elf.ELFMAG)
	hdr[elf.EI_CLASS] = byte(class)
	hdr[elf.EI_DATA] = byte(data)
	hdr[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	be.PutUint16(hdr[16:], uint16(typ))
	be.PutUint16(hdr[18:], uint16(machine))
	be.PutUint32(hdr[20:], uint32(elf.EV_CURRENT))
	be.PutUint32(hdr[24:], e.Entry)
	be.PutUint32(hdr[28:], elfHeaderSize)
	// e_shoff patched below
	be.PutUint16(hdr[40:], elfHeaderSize)
	be.PutUint16(hdr[42:], progHeaderSize)
	be.PutUint16(hdr[44:], uint16(phnum))
	be.PutUint16(hdr[46:], sectionHeaderSize)
	be.PutUint16(hdr[48:], uint16(shnum))
	if shnum > 0 {
		be.PutUint16(hdr[50:], 3)
	}
	buf.Write(hdr[:])

	for i, s := range e.Segments {
		var ph [progHeaderSize]byte
		fileSize := uint32(len(s.Data))
		if s.FileSize != 0 {
			fileSize = s.FileSize
		}
		memSize := s.MemSize
		if memSize == 0 {
			memSize = uint32(len(s.Data))
		}
		be.PutUint32(ph[0:], uint32(elf.PT_LOAD))
		be.PutUint32(ph[4:], segOffsets[i])
		be.PutUint32(ph[8:], s.Vaddr)
		be.PutUint32(ph[12:], s.Vaddr)
		be.PutUint32(ph[16:], fileSize)
		be.PutUint32(ph[20:], memSize)
		be.PutUint32(ph[24:], uint32(s.Flags))
		be.PutUint32(ph[28:], 4)
		buf.Write(ph[:])
	}
	for i := 0; i < e.ExtraHeaders; i++ {
		buf.Write(make([]byte, progHeaderSize))
	}
	for _, s := range e.Segments {
		buf.Write(s.Data)
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
	}

	if shnum > 0 {
		symOff := uint32(buf.Len())
		buf.Write(symtab)
		strOff := uint32(buf.Len())
		buf.Write(strtab)
		shstrOff := uint32(buf.Len())
		buf.Write(shstrtab)
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
		shoff = uint32(buf.Len())
		sections := []struct {
			name, typ, off, size, link, info, entsize uint32
		}{
			{},
			{name: 1, typ: uint32(elf.SHT_SYMTAB), off: symOff, size: uint32(len(symtab)), link: 2, info: 1, entsize: symbolSize},
			{name: 9, typ: uint32(elf.SHT_STRTAB), off: strOff, size: uint32(len(strtab))},
			{name: 17, typ: uint32(elf.SHT_STRTAB), off: shstrOff, size: uint32(len(shstrtab))},
		}
		for _, s := range sections {
			var sh [sectionHeaderSize]byte
			be.PutUint32(sh[0:], s.name)
			be.PutUint32(sh[4:], s.typ)
			be.PutUint32(sh[16:], s.off)
			be.PutUint32(sh[20:], s.size)
			be.PutUint32(sh[24:], s.link)
			be.PutUint32(sh[28:], s.info)
			be.PutUint32(sh[32:], 1)
			be.PutUint32(sh[36:], s.entsize)
			buf.Write(sh[:])
		}
	}

	out := buf.Bytes()
	be.PutUint32(out[32:], shoff)
	return out
}
