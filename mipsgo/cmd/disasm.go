package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/zkmips/zkmips/mipsgo/program"
)

func Disasm(ctx *cli.Context) error {
	elfPath := ctx.Path(LoadELFPathFlag.Name)
	p, err := program.LoadFile(elfPath, uint32(ctx.Uint64(MaxMemoryFlag.Name)))
	if err != nil {
		return err
	}
	var meta *program.Metadata
	if ctx.Bool(DisasmSymbolsFlag.Name) {
		if meta, err = elfMetadata(elfPath); err != nil {
			return err
		}
	}
	w := ctx.App.Writer
	last := ""
	for i, insn := range p.Instructions {
		pc := p.PCBase + uint32(i)*4
		if meta != nil {
			if name := meta.LookupSymbol(pc); name != last {
				fmt.Fprintf(w, "\n%s:\n", name)
				last = name
			}
		}
		fmt.Fprintf(w, "%08x: %08x  %s\n", pc, p.Image[pc], insn)
	}
	return nil
}

var DisasmCommand = &cli.Command{
	Name:        "disasm",
	Usage:       "Print the decoded text segment of an ELF file",
	Description: "Decode every instruction of the text segment the way the executor sees it",
	Action:      Disasm,
	Flags: []cli.Flag{
		LoadELFPathFlag,
		MaxMemoryFlag,
		DisasmSymbolsFlag,
	},
}
