package cmd

import (
	"github.com/urfave/cli/v2"
)

var (
	LoadELFPathFlag = &cli.PathFlag{
		Name:      "path",
		Usage:     "Path to a 32-bit big-endian MIPS ELF executable",
		TakesFile: true,
		Required:  true,
	}
	LoadELFOutFlag = &cli.PathFlag{
		Name:     "out",
		Usage:    "Output path for the program JSON, .gz for compression, - for stdout",
		Value:    "program.json",
		Required: false,
	}
	LoadELFMetaFlag = &cli.PathFlag{
		Name:     "meta",
		Usage:    "Write the symbol metadata JSON to this path",
		Required: false,
	}
	MaxMemoryFlag = &cli.Uint64Flag{
		Name:  "max-memory",
		Usage: "Highest guest address plus one, 0 for the default",
	}

	RunELFFlag = &cli.PathFlag{
		Name:      "elf",
		Usage:     "ELF executable to run",
		TakesFile: true,
	}
	RunProgramFlag = &cli.PathFlag{
		Name:      "program",
		Usage:     "Program JSON to run, as written by load-elf",
		TakesFile: true,
	}
	RunMetaFlag = &cli.PathFlag{
		Name:      "meta",
		Usage:     "Symbol metadata JSON, for diagnostics of --program runs",
		TakesFile: true,
	}
	RunStdinFlag = &cli.StringSliceFlag{
		Name:  "stdin",
		Usage: "Hex encoded input frame, may be repeated",
	}
	RunStdinFileFlag = &cli.StringSliceFlag{
		Name:  "stdin-file",
		Usage: "File whose content is an input frame, may be repeated",
	}
	RunShardSizeFlag = &cli.UintFlag{
		Name:  "shard-size",
		Usage: "Clock ticks per shard",
	}
	RunMaxShardRowsFlag = &cli.Uint64Flag{
		Name:  "max-shard-rows",
		Usage: "Close a shard once its estimated table height would exceed this, 0 to disable",
	}
	RunShapeCheckIntervalFlag = &cli.Uint64Flag{
		Name:  "shape-check-interval",
		Usage: "Instructions between shard size estimates",
	}
	RunMaxCyclesFlag = &cli.Uint64Flag{
		Name:  "max-cycles",
		Usage: "Fault after this many instructions, 0 for no limit",
	}
	RunCostConfigFlag = &cli.PathFlag{
		Name:      "cost-config",
		Usage:     "YAML file with cost model overrides",
		TakesFile: true,
	}
	RunSeedFlag = &cli.Uint64Flag{
		Name:  "seed",
		Usage: "Seed of the lookup id generator",
	}
	RunInfoAtFlag = &cli.Uint64Flag{
		Name:  "info-at",
		Usage: "Log progress every this many instructions, 0 to disable",
		Value: 1_000_000,
	}
	RunRecordsOutFlag = &cli.PathFlag{
		Name:  "records",
		Usage: "Write the execution records as JSON to this path, .gz for compression",
	}
	RunReportOutFlag = &cli.PathFlag{
		Name:  "report",
		Usage: "Write the execution report as JSON to this path",
	}
	RunPProfCPU = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "Enable pprof cpu profiling",
	}

	DisasmSymbolsFlag = &cli.BoolFlag{
		Name:  "symbols",
		Usage: "Print the enclosing symbol of every instruction",
	}
)
