package cost

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zkmips/zkmips/mipsgo/mips"
)

// Config carries the calibration constants. They are tuned against real
// workloads, not derived.
type Config struct {
	// LocalMemoryEntriesPerRow is how many local memory events share one row.
	LocalMemoryEntriesPerRow uint64
	// Padding is the worst-case number of events per cycle for each table.
	Padding EventCounts
	// EstimateBranchJump enables the branch and jump tables in estimates.
	EstimateBranchJump bool
}

func DefaultConfig() Config {
	var pad EventCounts
	pad[AirCpu] = 1
	pad[AirAddSub] = 5
	pad[AirMul] = 4
	pad[AirBitwise] = 3
	pad[AirShiftLeft] = 1
	pad[AirShiftRight] = 1
	pad[AirDivRem] = 4
	pad[AirLt] = 2
	pad[AirCloClz] = 3
	pad[AirBranch] = 8
	pad[AirJump] = 2
	pad[AirMemoryLocal] = 64
	pad[AirSyscallCore] = 2
	pad[AirGlobal] = 64
	return Config{
		LocalMemoryEntriesPerRow: 4,
		Padding:                  pad,
	}
}

func (c Config) skip(id AirID) bool {
	return !c.EstimateBranchJump && (id == AirBranch || id == AirJump)
}

// EstimateEventCounts maps aggregate counters to the number of rows each table
// needs.
func (c Config) EstimateEventCounts(cycles, touchedAddresses, syscallsSent uint64, opcodeCounts *[mips.NumOpcodes]uint64) EventCounts {
	var out EventCounts
	out[AirCpu] = cycles
	for op, n := range opcodeCounts {
		id, ok := AirForOpcode(mips.Opcode(op))
		if !ok || c.skip(id) {
			continue
		}
		out[id] += n
	}
	perRow := max(c.LocalMemoryEntriesPerRow, 1)
	out[AirMemoryLocal] = (touchedAddresses + perRow - 1) / perRow
	out[AirSyscallCore] = syscallsSent
	out[AirGlobal] = 2*touchedAddresses + syscallsSent
	return out
}

// PadEventCounts adds the per-cycle worst case of every table, so that a
// shard planned from the estimate cannot overflow a table.
func (c Config) PadEventCounts(counts EventCounts, cycles uint64) EventCounts {
	var out EventCounts
	for i := range counts {
		if c.skip(AirID(i)) {
			continue
		}
		out[i] = counts[i] + c.Padding[i]*cycles
	}
	return out
}

func EstimateEventCounts(cycles, touchedAddresses, syscallsSent uint64, opcodeCounts *[mips.NumOpcodes]uint64) EventCounts {
	return DefaultConfig().EstimateEventCounts(cycles, touchedAddresses, syscallsSent, opcodeCounts)
}

func PadEventCounts(counts EventCounts, cycles uint64) EventCounts {
	return DefaultConfig().PadEventCounts(counts, cycles)
}

type configFile struct {
	LocalMemoryEntriesPerRow *uint64           `yaml:"local_memory_entries_per_row"`
	EstimateBranchJump       *bool             `yaml:"estimate_branch_jump"`
	Padding                  map[string]uint64 `yaml:"padding"`
}

// ParseConfig reads YAML overrides on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	var file configFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode cost config: %w", err)
	}
	if file.LocalMemoryEntriesPerRow != nil {
		if *file.LocalMemoryEntriesPerRow == 0 {
			return Config{}, fmt.Errorf("local_memory_entries_per_row must be positive")
		}
		cfg.LocalMemoryEntriesPerRow = *file.LocalMemoryEntriesPerRow
	}
	if file.EstimateBranchJump != nil {
		cfg.EstimateBranchJump = *file.EstimateBranchJump
	}
	for name, v := range file.Padding {
		id, err := ParseAirID(name)
		if err != nil {
			return Config{}, fmt.Errorf("invalid padding entry: %w", err)
		}
		cfg.Padding[id] = v
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read cost config %q: %w", path, err)
	}
	return ParseConfig(data)
}
