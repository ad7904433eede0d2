package main

import (
	"fmt"
	"log"
	"os"

	"github.com/zkmips/zkmips/mipsgo/executor"
	"github.com/zkmips/zkmips/mipsgo/program"
)

func main() {
	p, err := program.LoadFile("program.bin", 0)
	if err != nil {
		log.Fatalf("failed to load program ELF: %v", err)
	}
	if len(os.Args) > 1 {
		p.WriteStdin([]byte(os.Args[1]))
	}

	opts := executor.DefaultOptions()
	opts.Stdout = os.Stdout
	opts.Stderr = os.Stderr
	e, err := executor.New(p, opts)
	if err != nil {
		log.Fatalf("failed to create executor: %v", err)
	}
	if err := e.Run(); err != nil {
		log.Fatalf("execution failed: %v", err)
	}

	report := e.Report()
	fmt.Printf("image id:      %s\n", p.ImageID())
	fmt.Printf("exit code:     %d\n", e.ExitCode())
	fmt.Printf("instructions:  %d\n", report.TotalInstructionCount())
	fmt.Printf("shards:        %d\n", len(e.Records()))
	fmt.Printf("public values: %x\n", e.PublicValues())
}
