package mips

// Register indices. Everything above RegRA is a pseudo register kept in the
// same word-addressed space as the general purpose registers.
const (
	RegZero = 0
	RegAT   = 1
	RegV0   = 2
	RegV1   = 3
	RegA0   = 4
	RegA1   = 5
	RegA2   = 6
	RegA3   = 7
	RegT0   = 8
	RegT1   = 9
	RegT2   = 10
	RegT3   = 11
	RegT4   = 12
	RegT5   = 13
	RegT6   = 14
	RegT7   = 15
	RegS0   = 16
	RegS1   = 17
	RegS2   = 18
	RegS3   = 19
	RegS4   = 20
	RegS5   = 21
	RegS6   = 22
	RegS7   = 23
	RegT8   = 24
	RegT9   = 25
	RegK0   = 26
	RegK1   = 27
	RegGP   = 28
	RegSP   = 29
	RegFP   = 30
	RegRA   = 31

	RegLO        = 32
	RegHI        = 33
	RegHeap      = 34
	RegBrk       = 35
	RegLocalUser = 36

	NumGPRs      = 32
	NumRegisters = 37
)

// Linux o32 system call numbers understood by the executor.
const (
	SysRead           = 4003
	SysWrite          = 4004
	SysClose          = 4006
	SysBrk            = 4045
	SysFcntl          = 4055
	SysMmap           = 4090
	SysMunmap         = 4091
	SysClone          = 4120
	SysSchedYield     = 4162
	SysRtSigaction    = 4194
	SysRtSigprocmask  = 4195
	SysSigaltstack    = 4206
	SysMmap2          = 4210
	SysMadvise        = 4218
	SysGetTID         = 4222
	SysFutex          = 4238
	SysExitGroup      = 4246
	SysClockGetTime   = 4263
	SysSetThreadArea  = 4283
	SysSchedGetaffin  = 4240
	SysPrlimit64      = 4338
	SysLinuxCodeStart = 4000
	SysLinuxCodeEnd   = 5000
)

// File descriptors with a fixed meaning for guest programs.
const (
	FdStdin        = 0
	FdStdout       = 1
	FdStderr       = 2
	FdPublicValues = 13
	FdHint         = 14
	FdK1Ecrecover  = 15
	FdR1Ecrecover  = 16
	FdFpSqrt       = 17
	FdFpInv        = 18
)

// errno values returned in $a3.
const (
	EBADF  = 0x9
	EINVAL = 0x16
)

// fcntl commands.
const (
	FcntlGetFD = 0x1
	FcntlGetFL = 0x3
)

// JrRaNop is the two-word sequence `jr $ra; nop`.
var JrRaNop = [2]uint32{0x03e00008, 0x00000000}
