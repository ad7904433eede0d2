package cmd

import (
	"debug/elf"
	"fmt"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"
	"github.com/urfave/cli/v2"

	"github.com/zkmips/zkmips/mipsgo/program"
)

func elfMetadata(path string) (*program.Metadata, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %q: %w", path, err)
	}
	defer f.Close()
	return program.MakeMetadata(f)
}

func LoadELF(ctx *cli.Context) error {
	elfPath := ctx.Path(LoadELFPathFlag.Name)
	p, err := program.LoadFile(elfPath, uint32(ctx.Uint64(MaxMemoryFlag.Name)))
	if err != nil {
		return err
	}
	if err := jsonutil.WriteJSON(ctx.Path(LoadELFOutFlag.Name), p, OutFilePerm); err != nil {
		return fmt.Errorf("failed to write program: %w", err)
	}
	if metaPath := ctx.Path(LoadELFMetaFlag.Name); metaPath != "" {
		meta, err := elfMetadata(elfPath)
		if err != nil {
			return fmt.Errorf("failed to compute program metadata: %w", err)
		}
		if err := jsonutil.WriteJSON(metaPath, meta, OutFilePerm); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}
	return nil
}

var LoadELFCommand = &cli.Command{
	Name:        "load-elf",
	Usage:       "Load ELF file into a program JSON",
	Description: "Load ELF file into a program JSON with the decoded text and initial memory image, and write its symbol metadata",
	Action:      LoadELF,
	Flags: []cli.Flag{
		LoadELFPathFlag,
		LoadELFOutFlag,
		LoadELFMetaFlag,
		MaxMemoryFlag,
	},
}
