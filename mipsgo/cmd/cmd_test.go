package cmd

import (
	"bytes"
	"debug/elf"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/zkmips/zkmips/mipsgo/executor"
	. "github.com/zkmips/zkmips/mipsgo/internal/testutil"
	"github.com/zkmips/zkmips/mipsgo/mips"
	"github.com/zkmips/zkmips/mipsgo/program"
)

const entry = 0x00400000

func TestLogAsText(t *testing.T) {
	require.True(t, logAsText("hello\n\tworld"))
	require.False(t, logAsText("\x00\x01"))
	require.False(t, logAsText("café"))
}

func TestLoggingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &LoggingWriter{Name: "out", Log: Logger(&buf, log.LevelInfo)}
	n, err := w.Write([]byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Contains(t, buf.String(), "text=hi")

	buf.Reset()
	_, err = w.Write([]byte{0xff, 0x00})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "data=0xff00")
}

func writeELF(t *testing.T, exitCode int16) string {
	t.Helper()
	f := &ELF{
		Entry: entry,
		Segments: []Segment{{
			Vaddr: entry,
			Data: Words(
				ADDIU(mips.RegV0, mips.RegZero, 0),
				ADDIU(mips.RegA0, mips.RegZero, exitCode),
				SYSCALL(),
			),
			Flags: elf.PF_R | elf.PF_X,
		}},
		Symbols: []Symbol{{Name: "main", Value: entry, Size: 12}},
	}
	path := filepath.Join(t.TempDir(), "prog.elf")
	require.NoError(t, os.WriteFile(path, f.Bytes(), 0o644))
	return path
}

func newApp(out *bytes.Buffer) *cli.App {
	app := cli.NewApp()
	app.Writer = out
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = []*cli.Command{LoadELFCommand, RunCommand, DisasmCommand}
	return app
}

func TestRun(t *testing.T) {
	elfPath := writeELF(t, 0)
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.json")
	recordsPath := filepath.Join(dir, "records.json.gz")

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"zkmips", "run",
		"--elf", elfPath,
		"--stdin", "0x0102",
		"--report", reportPath,
		"--records", recordsPath,
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "instructions: 3, syscalls: 1, touched:")
	require.Contains(t, out.String(), "shards: 1")

	report, err := jsonutil.LoadJSON[executor.ExecutionReport](reportPath)
	require.NoError(t, err)
	require.Equal(t, uint64(1), report.Shards)
	require.Equal(t, uint64(3), report.TotalInstructionCount())

	records, err := jsonutil.LoadJSON[[]*executor.ExecutionRecord](recordsPath)
	require.NoError(t, err)
	require.Len(t, *records, 1)
	require.Len(t, (*records)[0].CpuEvents, 3)
}

func TestRunExitCode(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"zkmips", "run", "--elf", writeELF(t, 3)})
	var exitErr cli.ExitCoder
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.ExitCode())
}

func TestRunErrors(t *testing.T) {
	elfPath := writeELF(t, 0)
	cases := []struct {
		name string
		args []string
	}{
		{"no program", nil},
		{"both inputs", []string{"--elf", elfPath, "--program", elfPath}},
		{"bad stdin", []string{"--elf", elfPath, "--stdin", "zz"}},
		{"missing cost config", []string{"--elf", elfPath, "--cost-config", filepath.Join(t.TempDir(), "none.yaml")}},
		{"cycle limit", []string{"--elf", elfPath, "--max-cycles", "2"}},
		{"shard too small", []string{"--elf", elfPath, "--shard-size", "2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			args := append([]string{"zkmips", "run"}, tc.args...)
			require.Error(t, newApp(&out).Run(args))
		})
	}
}

func TestLoadELFThenRun(t *testing.T) {
	elfPath := writeELF(t, 0)
	dir := t.TempDir()
	progPath := filepath.Join(dir, "program.json")
	metaPath := filepath.Join(dir, "meta.json")

	var out bytes.Buffer
	require.NoError(t, newApp(&out).Run([]string{"zkmips", "load-elf",
		"--path", elfPath, "--out", progPath, "--meta", metaPath}))

	meta, err := jsonutil.LoadJSON[program.Metadata](metaPath)
	require.NoError(t, err)
	require.Equal(t, "main", meta.LookupSymbol(entry+4))

	p, err := jsonutil.LoadJSON[program.Program](progPath)
	require.NoError(t, err)
	require.Equal(t, uint32(entry), p.PCStart)
	require.Len(t, p.Instructions, 3)

	require.NoError(t, newApp(&out).Run([]string{"zkmips", "run",
		"--program", progPath, "--meta", metaPath, "--info-at", "1"}))
}

func TestDisasm(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newApp(&out).Run([]string{"zkmips", "disasm", "--path", writeELF(t, 0), "--symbols"}))
	text := out.String()
	require.Contains(t, text, "main:\n")
	require.Contains(t, text, "00400008: 0000000c  ")
	require.Contains(t, text, mips.Decode(0x0000000c).String())
}
