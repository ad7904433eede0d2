package executor

import (
	"github.com/zkmips/zkmips/mipsgo/mips"
)

type linuxFunc func(ctx *SyscallContext, a0, a1 uint32) (uint32, bool, error)

func linuxSyscalls() map[SyscallCode]linuxFunc {
	table := map[SyscallCode]linuxFunc{
		mips.SysMmap:          sysMmap,
		mips.SysMmap2:         sysMmap,
		mips.SysBrk:           sysBrk,
		mips.SysClone:         sysClone,
		mips.SysExitGroup:     sysExitGroup,
		mips.SysRead:          sysRead,
		mips.SysWrite:         sysLinuxWrite,
		mips.SysFcntl:         sysFcntl,
		mips.SysSetThreadArea: sysSetThreadArea,
	}
	for _, code := range []SyscallCode{
		mips.SysClose, mips.SysMunmap, mips.SysSchedYield, mips.SysRtSigaction,
		mips.SysRtSigprocmask, mips.SysSigaltstack, mips.SysMadvise, mips.SysGetTID,
		mips.SysFutex, mips.SysSchedGetaffin, mips.SysClockGetTime, mips.SysPrlimit64,
	} {
		table[code] = sysNop
	}
	return table
}

// linuxSyscall records every Linux call as a precompile event carrying the
// register accesses the handler made.
func linuxSyscall(fn linuxFunc) Syscall {
	return SyscallFunc(func(ctx *SyscallContext, code SyscallCode, a0, a1 uint32) (uint32, bool, error) {
		startClk := ctx.Clk
		v0, ok, err := fn(ctx, a0, a1)
		if err != nil {
			return 0, false, err
		}
		ctx.AddPrecompileEvent(SyscallSysLinux, &LinuxEvent{
			precompileBase: ctx.base(startClk),
			SyscallCode:    code.ID(),
			A0:             a0,
			A1:             a1,
			V0:             v0,
			ReadRecords:    ctx.reads,
			WriteRecords:   ctx.writes,
		})
		return v0, ok, nil
	})
}

func sysMmap(ctx *SyscallContext, a0, a1 uint32) (uint32, bool, error) {
	size := a1
	if size&PageAddrMask != 0 {
		size += PageSize - size&PageAddrMask
	}
	v0 := a0
	if a0 == 0 {
		_, v0 = ctx.MR(mips.RegHeap)
		ctx.MW(mips.RegHeap, v0+size)
	}
	ctx.MW(mips.RegA3, 0)
	return v0, true, nil
}

func sysBrk(ctx *SyscallContext, a0, _ uint32) (uint32, bool, error) {
	_, brk := ctx.MR(mips.RegBrk)
	ctx.MW(mips.RegA3, 0)
	return max(a0, brk), true, nil
}

func sysClone(ctx *SyscallContext, _, _ uint32) (uint32, bool, error) {
	ctx.MW(mips.RegA3, 0)
	return 1, true, nil
}

func sysExitGroup(ctx *SyscallContext, exitCode, _ uint32) (uint32, bool, error) {
	ctx.Halt(exitCode)
	ctx.MW(mips.RegA3, 0)
	return 0, false, nil
}

// sysRead only knows stdin, which is always at EOF.
func sysRead(ctx *SyscallContext, fd, _ uint32) (uint32, bool, error) {
	if fd != mips.FdStdin {
		ctx.MW(mips.RegA3, mips.EBADF)
		return 0xFFFFFFFF, true, nil
	}
	ctx.MW(mips.RegA3, 0)
	return 0, true, nil
}

func sysLinuxWrite(ctx *SyscallContext, fd, buf uint32) (uint32, bool, error) {
	return sysWrite(ctx, mips.SysWrite, fd, buf)
}

func sysFcntl(ctx *SyscallContext, fd, cmd uint32) (uint32, bool, error) {
	switch {
	case cmd == mips.FcntlGetFL && fd == mips.FdStdin:
		ctx.MW(mips.RegA3, 0)
		return 0, true, nil // O_RDONLY
	case cmd == mips.FcntlGetFL && (fd == mips.FdStdout || fd == mips.FdStderr):
		ctx.MW(mips.RegA3, 0)
		return 1, true, nil // O_WRONLY
	case cmd == mips.FcntlGetFD && fd <= mips.FdStderr:
		ctx.MW(mips.RegA3, 0)
		return fd, true, nil
	}
	ctx.MW(mips.RegA3, mips.EBADF)
	return 0xFFFFFFFF, true, nil
}

func sysSetThreadArea(ctx *SyscallContext, a0, _ uint32) (uint32, bool, error) {
	ctx.MW(mips.RegLocalUser, a0)
	ctx.MW(mips.RegA3, 0)
	return 0, true, nil
}

func sysNop(ctx *SyscallContext, _, _ uint32) (uint32, bool, error) {
	ctx.MW(mips.RegA3, 0)
	return 0, true, nil
}
