package executor

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

var (
	ErrInputExhausted = errors.New("input stream exhausted")
	ErrHintLength     = errors.New("hint length mismatch")
	ErrHintOverwrite  = errors.New("hint read into initialized memory")
)

func sysHalt(ctx *SyscallContext, _ SyscallCode, exitCode, _ uint32) (uint32, bool, error) {
	ctx.Halt(exitCode)
	return 0, false, nil
}

// sysWrite handles writes to stdout, stderr, the public values and hint
// streams, and hook descriptors. The payload is read without recording.
func sysWrite(ctx *SyscallContext, _ SyscallCode, fd, buf uint32) (uint32, bool, error) {
	e := ctx.e
	_, nbytes := ctx.MR(mips.RegA2)
	data := ctx.Bytes(buf, nbytes)
	switch fd {
	case mips.FdStdout:
		s := string(data)
		if cmd, ok := parseCycleTrackerCommand(s); ok {
			e.handleCycleTrackerCommand(cmd)
			break
		}
		e.bufferOutput(fd, s)
	case mips.FdStderr:
		e.bufferOutput(fd, string(data))
	case mips.FdPublicValues:
		e.publicValues = append(e.publicValues, data...)
	case mips.FdHint:
		e.inputStream = append(e.inputStream, data)
	default:
		if hook, ok := e.hooks.Get(fd); ok {
			res := hook.Invoke(HookEnv{e: e}, data)
			e.inputStream = slices.Insert(e.inputStream, e.inputPtr, res...)
		} else {
			e.log.Warn("Write to unknown file descriptor", "fd", fd, "pc", HexU32(e.pc))
		}
	}
	ctx.MW(mips.RegA3, 0)
	return nbytes, true, nil
}

// bufferOutput emits complete lines of guest output.
func (e *Executor) bufferOutput(fd uint32, s string) {
	w := e.opts.Stdout
	if fd == mips.FdStderr {
		w = e.opts.Stderr
	}
	buf := e.ioBuf[fd] + s
	for {
		line, rest, ok := strings.Cut(buf, "\n")
		if !ok {
			break
		}
		if w != nil {
			_, _ = fmt.Fprintln(w, line)
		}
		buf = rest
	}
	e.ioBuf[fd] = buf
}

func (e *Executor) flushOutput() {
	for _, fd := range []uint32{mips.FdStdout, mips.FdStderr} {
		if e.ioBuf[fd] != "" {
			e.bufferOutput(fd, "\n")
		}
	}
}

// sysCommit stores one word of the public values digest.
func sysCommit(ctx *SyscallContext, _ SyscallCode, index, word uint32) (uint32, bool, error) {
	if index >= uint32(len(ctx.e.committedDigest)) {
		return 0, false, fmt.Errorf("commit index %d out of range", index)
	}
	ctx.e.committedDigest[index] = word
	return 0, false, nil
}

// sysHintLen returns the length of the next input frame.
func sysHintLen(ctx *SyscallContext, _ SyscallCode, _, _ uint32) (uint32, bool, error) {
	e := ctx.e
	if e.inputPtr >= len(e.inputStream) {
		return 0, false, ErrInputExhausted
	}
	return uint32(len(e.inputStream[e.inputPtr])), true, nil
}

// sysHintRead places the next input frame at ptr as memory that was never
// written. Reads of it observe the values as their pre-run state.
func sysHintRead(ctx *SyscallContext, _ SyscallCode, ptr, length uint32) (uint32, bool, error) {
	e := ctx.e
	if e.inputPtr >= len(e.inputStream) {
		return 0, false, ErrInputExhausted
	}
	frame := e.inputStream[e.inputPtr]
	if uint32(len(frame)) != length {
		return 0, false, fmt.Errorf("%w: read of %d bytes, next frame has %d", ErrHintLength, length, len(frame))
	}
	if err := ctx.CheckPointer(ptr, (len(frame)+3)/4); err != nil {
		return 0, false, err
	}
	e.inputPtr++
	for i := 0; i < len(frame); i += 4 {
		var word [4]byte
		copy(word[:], frame[i:])
		addr := ptr + uint32(i)
		if _, ok := e.uninitialized[addr]; ok || e.memory.Contains(addr) {
			return 0, false, fmt.Errorf("%w: address %08x", ErrHintOverwrite, addr)
		}
		v := uint32(word[0])<<24 | uint32(word[1])<<16 | uint32(word[2])<<8 | uint32(word[3])
		e.memory.setUninitialized(addr, v)
		e.uninitialized[addr] = v
	}
	return 0, false, nil
}
