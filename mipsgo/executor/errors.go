package executor

import (
	"errors"
	"fmt"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

var (
	ErrInvalidPC           = errors.New("pc outside of the instruction range")
	ErrUnalignedAccess     = errors.New("unaligned memory access")
	ErrInvalidMemoryAccess = errors.New("data access in register space")
	ErrTrap                = errors.New("trap")
	ErrCycleLimit          = errors.New("cycle limit exceeded")
	ErrImageOverlap        = errors.New("image overlaps register space")
)

// ExecutionError is a fatal fault at one instruction.
type ExecutionError struct {
	PC          uint32
	Clk         uint32
	Instruction mips.Instruction
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution fault at pc %08x (clk %d, %s): %v", e.PC, e.Clk, e.Instruction, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// UnsupportedSyscallErr is returned for a $v0 with no handler.
type UnsupportedSyscallErr struct {
	Code SyscallCode
}

func (e *UnsupportedSyscallErr) Error() string {
	return fmt.Sprintf("unsupported syscall %s", e.Code)
}
