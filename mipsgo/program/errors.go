package program

import "errors"

var (
	ErrMalformedELF        = errors.New("malformed ELF file")
	ErrInvalidClass        = errors.New("not a 32-bit ELF file")
	ErrInvalidByteOrder    = errors.New("not a big-endian ELF file")
	ErrInvalidMachine      = errors.New("not a MIPS ELF file")
	ErrInvalidType         = errors.New("not an executable ELF file")
	ErrInvalidEntrypoint   = errors.New("invalid entrypoint")
	ErrTooManyHeaders      = errors.New("too many program headers")
	ErrSegmentTooLarge     = errors.New("segment too large")
	ErrUnalignedSegment    = errors.New("segment vaddr not word aligned")
	ErrAddressOverflow     = errors.New("segment address out of range")
	ErrTruncated           = errors.New("segment content truncated")
	ErrNoExecutableSegment = errors.New("no executable segment")
)
