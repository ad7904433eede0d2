package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/zkmips/zkmips/mipsgo/cmd"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "zkmips"
	app.Usage = "MIPS32 zkVM executor"
	app.Description = "Execute MIPS32 guest programs and produce the sharded event records a prover consumes"
	app.Commands = []*cli.Command{
		cmd.LoadELFCommand,
		cmd.RunCommand,
		cmd.DisasmCommand,
	}
	return app
}

func main() {
	app := newApp()
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			<-c
			cancel()
			fmt.Println("\r\nExiting...")
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		var exitErr cli.ExitCoder
		switch {
		case errors.Is(err, ctx.Err()):
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted")
			os.Exit(130)
		case errors.As(err, &exitErr):
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(exitErr.ExitCode())
		default:
			_, _ = fmt.Fprintf(os.Stderr, "error: %v", err)
			os.Exit(1)
		}
	}
}
