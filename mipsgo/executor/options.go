package executor

import (
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/zkmips/zkmips/mipsgo/cost"
)

const (
	DefaultShardSize          = 1 << 22
	DefaultShapeCheckInterval = 16
)

// Options configure one run.
type Options struct {
	// ShardSize bounds the clock range of a shard.
	ShardSize uint32
	// MaxShardRows closes a shard early once its padded estimate exceeds
	// this many rows in any table. Zero disables the check.
	MaxShardRows uint64
	// ShapeCheckInterval is how many cycles pass between estimates.
	ShapeCheckInterval uint64
	// MaxCycles aborts the run after this many instructions. Zero is unlimited.
	MaxCycles uint64
	// LookupSeed seeds the lookup id generator.
	LookupSeed uint64

	Cost cost.Config

	// Hooks defaults to NewHookRegistry().
	Hooks *HookRegistry

	Logger log.Logger
	Stdout io.Writer
	Stderr io.Writer
}

func DefaultOptions() Options {
	return Options{
		ShardSize:          DefaultShardSize,
		ShapeCheckInterval: DefaultShapeCheckInterval,
		Cost:               cost.DefaultConfig(),
	}
}
