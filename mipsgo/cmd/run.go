package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/zkmips/zkmips/mipsgo/cost"
	"github.com/zkmips/zkmips/mipsgo/executor"
	"github.com/zkmips/zkmips/mipsgo/mips"
	"github.com/zkmips/zkmips/mipsgo/program"
)

var OutFilePerm = os.FileMode(0o755)

type symbolLookup interface {
	LookupSymbol(addr uint32) string
}

func loadRunProgram(ctx *cli.Context, l log.Logger) (*program.Program, symbolLookup, error) {
	elfPath := ctx.Path(RunELFFlag.Name)
	progPath := ctx.Path(RunProgramFlag.Name)
	switch {
	case elfPath != "" && progPath != "":
		return nil, nil, fmt.Errorf("--%s and --%s are mutually exclusive", RunELFFlag.Name, RunProgramFlag.Name)
	case elfPath != "":
		p, err := program.LoadFile(elfPath, uint32(ctx.Uint64(MaxMemoryFlag.Name)))
		if err != nil {
			return nil, nil, err
		}
		meta, err := elfMetadata(elfPath)
		if err != nil {
			l.Warn("no symbols available", "err", err)
		}
		return p, meta, nil
	case progPath != "":
		p, err := jsonutil.LoadJSON[program.Program](progPath)
		if err != nil {
			return nil, nil, err
		}
		var meta *program.Metadata
		if metaPath := ctx.Path(RunMetaFlag.Name); metaPath == "" {
			l.Info("no metadata file specified, defaulting to empty metadata")
		} else if meta, err = jsonutil.LoadJSON[program.Metadata](metaPath); err != nil {
			return nil, nil, fmt.Errorf("failed to load metadata: %w", err)
		}
		return p, meta, nil
	}
	return nil, nil, fmt.Errorf("one of --%s or --%s is required", RunELFFlag.Name, RunProgramFlag.Name)
}

func runOptions(ctx *cli.Context, l log.Logger, stdout, stderr io.Writer) (executor.Options, error) {
	opts := executor.DefaultOptions()
	if ctx.IsSet(RunShardSizeFlag.Name) {
		opts.ShardSize = uint32(ctx.Uint(RunShardSizeFlag.Name))
	}
	opts.MaxShardRows = ctx.Uint64(RunMaxShardRowsFlag.Name)
	if ctx.IsSet(RunShapeCheckIntervalFlag.Name) {
		opts.ShapeCheckInterval = ctx.Uint64(RunShapeCheckIntervalFlag.Name)
	}
	opts.MaxCycles = ctx.Uint64(RunMaxCyclesFlag.Name)
	opts.LookupSeed = ctx.Uint64(RunSeedFlag.Name)
	if path := ctx.Path(RunCostConfigFlag.Name); path != "" {
		cfg, err := cost.LoadConfig(path)
		if err != nil {
			return opts, err
		}
		opts.Cost = cfg
	}
	opts.Logger = l
	opts.Stdout = stdout
	opts.Stderr = stderr
	return opts, nil
}

func stdinFrames(ctx *cli.Context) ([][]byte, error) {
	var frames [][]byte
	for _, s := range ctx.StringSlice(RunStdinFlag.Name) {
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid stdin frame %q: %w", s, err)
		}
		frames = append(frames, b)
	}
	for _, path := range ctx.StringSlice(RunStdinFileFlag.Name) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin frame: %w", err)
		}
		frames = append(frames, b)
	}
	return frames, nil
}

func Run(ctx *cli.Context) error {
	if ctx.Bool(RunPProfCPU.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	l := Logger(os.Stderr, log.LevelInfo)
	outLog := &LoggingWriter{Name: "program std-out", Log: l}
	errLog := &LoggingWriter{Name: "program std-err", Log: l}

	p, meta, err := loadRunProgram(ctx, l)
	if err != nil {
		return err
	}
	frames, err := stdinFrames(ctx)
	if err != nil {
		return err
	}
	for _, f := range frames {
		p.WriteStdin(f)
	}
	opts, err := runOptions(ctx, l, outLog, errLog)
	if err != nil {
		return err
	}
	e, err := executor.New(p, opts)
	if err != nil {
		return err
	}

	infoAt := ctx.Uint64(RunInfoAtFlag.Name)
	start := time.Now()
	for e.Status() == executor.Running {
		step := e.Cycles()
		if step%100 == 0 { // don't do the ctx err check (includes lock) too often
			if err := ctx.Context.Err(); err != nil {
				return err
			}
		}
		if infoAt != 0 && step%infoAt == 0 {
			delta := time.Since(start)
			insn, _ := p.Fetch(e.PC())
			l.Info("processing",
				"step", step,
				"shard", len(e.Records())+1,
				"pc", executor.HexU32(e.PC()),
				"insn", insn,
				"ips", float64(step)/(float64(delta)/float64(time.Second)),
				"pages", e.Memory().PageCount(),
				"mem", e.Memory().Usage(),
				"name", meta.LookupSymbol(e.PC()),
			)
		}
		if err := e.Step(); err != nil {
			return fmt.Errorf("failed at step %d (PC: %08x, %s): %w", step, e.PC(), meta.LookupSymbol(e.PC()), err)
		}
	}

	report := e.Report()
	l.Info("execution finished",
		"cycles", e.Cycles(),
		"shards", report.Shards,
		"exit", e.ExitCode(),
		"publicValues", hexutil.Bytes(e.PublicValues()),
		"elapsed", time.Since(start),
	)
	if path := ctx.Path(RunRecordsOutFlag.Name); path != "" {
		if err := jsonutil.WriteJSON(path, e.Records(), OutFilePerm); err != nil {
			return fmt.Errorf("failed to write execution records: %w", err)
		}
	}
	if path := ctx.Path(RunReportOutFlag.Name); path != "" {
		if err := jsonutil.WriteJSON(path, report, OutFilePerm); err != nil {
			return fmt.Errorf("failed to write execution report: %w", err)
		}
	}
	writeReport(ctx.App.Writer, report)
	if code := e.ExitCode(); code != 0 {
		return cli.Exit(fmt.Sprintf("program exited with code %d", code), int(code&0xFF))
	}
	return nil
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.AppendBulk(rows)
	table.Render()
}

func countRows[K comparable](counts map[K]uint64, name func(K) string) [][]string {
	rows := make([][]string, 0, len(counts))
	for k, n := range counts {
		if n == 0 {
			continue
		}
		rows = append(rows, []string{name(k), strconv.FormatUint(n, 10)})
	}
	slices.SortFunc(rows, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return rows
}

func writeReport(w io.Writer, r executor.ExecutionReport) {
	if w == nil {
		w = os.Stdout
	}
	renderTable(w, []string{"opcode", "count"}, countRows(r.OpcodeCounts, func(op mips.Opcode) string { return op.String() }))
	if len(r.SyscallCounts) > 0 {
		renderTable(w, []string{"syscall", "count"}, countRows(r.SyscallCounts, func(c executor.SyscallCode) string { return c.String() }))
	}
	if len(r.CycleTracker) > 0 {
		renderTable(w, []string{"span", "cycles"}, countRows(r.CycleTracker, func(s string) string { return s }))
	}
	renderTable(w, []string{"table", "rows"}, countRows(r.EventCounts.Map(), func(s string) string { return s }))
	fmt.Fprintf(w, "instructions: %d, syscalls: %d, touched: %d, shards: %d\n",
		r.TotalInstructionCount(), r.TotalSyscallCount(), r.TouchedMemoryAddresses, r.Shards)
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Execute a MIPS program and emit its execution records",
	Description: "Execute a MIPS program from an ELF or program JSON, split the trace into shards and write the event records and execution report.",
	Action:      Run,
	Flags: []cli.Flag{
		RunELFFlag,
		RunProgramFlag,
		RunMetaFlag,
		MaxMemoryFlag,
		RunStdinFlag,
		RunStdinFileFlag,
		RunShardSizeFlag,
		RunMaxShardRowsFlag,
		RunShapeCheckIntervalFlag,
		RunMaxCyclesFlag,
		RunCostConfigFlag,
		RunSeedFlag,
		RunInfoAtFlag,
		RunRecordsOutFlag,
		RunReportOutFlag,
		RunPProfCPU,
	},
}
