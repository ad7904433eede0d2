package executor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/maps"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

// Hook is a host computation a guest invokes by writing to a file
// descriptor. Its results are pushed to the front of the pending input
// stream. Hooks are trusted: nothing here checks what they return.
//
// A hook must panic on a malformed buffer, since such a buffer means the
// guest and host disagree on the protocol.
type Hook interface {
	Invoke(env HookEnv, buf []byte) [][]byte
}

// HookFunc adapts a function to a Hook.
type HookFunc func(env HookEnv, buf []byte) [][]byte

func (f HookFunc) Invoke(env HookEnv, buf []byte) [][]byte {
	return f(env, buf)
}

// HookEnv is the read-only view of the executor a hook gets.
type HookEnv struct {
	e *Executor
}

func (env HookEnv) PC() uint32 { return env.e.pc }

func (env HookEnv) Clk() uint32 { return env.e.clk }

func (env HookEnv) Shard() uint32 { return env.e.shard }

func (env HookEnv) Register(r uint32) uint32 { return env.e.memory.Peek(r) }

func (env HookEnv) Logger() log.Logger { return env.e.log }

var ErrReservedFD = errors.New("file descriptor is reserved")

// HookRegistry maps file descriptors to hooks. The executor owns its
// registry for the duration of a run.
type HookRegistry struct {
	table map[uint32]Hook
}

// NewHookRegistry returns a registry with the built-in hooks.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{table: map[uint32]Hook{
		mips.FdK1Ecrecover: HookFunc(HookK1Ecrecover),
		mips.FdR1Ecrecover: HookFunc(HookR1Ecrecover),
		mips.FdFpSqrt:      HookFunc(HookFpSqrt),
		mips.FdFpInv:       HookFunc(HookFpInverse),
	}}
}

func EmptyHookRegistry() *HookRegistry {
	return &HookRegistry{table: make(map[uint32]Hook)}
}

// Register installs h on fd, replacing any hook already there.
func (r *HookRegistry) Register(fd uint32, h Hook) error {
	switch fd {
	case mips.FdStdin, mips.FdStdout, mips.FdStderr, mips.FdPublicValues, mips.FdHint:
		return fmt.Errorf("%w: %d", ErrReservedFD, fd)
	}
	r.table[fd] = h
	return nil
}

func (r *HookRegistry) Get(fd uint32) (Hook, bool) {
	h, ok := r.table[fd]
	return h, ok
}

func (r *HookRegistry) Len() int {
	return len(r.table)
}

// FDs lists the registered descriptors in ascending order.
func (r *HookRegistry) FDs() []uint32 {
	fds := maps.Keys(r.table)
	slices.Sort(fds)
	return fds
}

func (r *HookRegistry) String() string {
	return fmt.Sprintf("HookRegistry{%d hooks registered at %v}", r.Len(), r.FDs())
}
