package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jack-avery/srpk/cli"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, rest, err := cli.LoadConfig(args)
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Println(ferr.Message)
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cli.ExitCode(err)
	}
	if cfg.ShowVersion {
		fmt.Printf("srpk v%s\n", version)
		return 0
	}

	clip := cli.NewClipper(cli.SystemClipboard(), cfg.ClearAfter)
	app := cli.NewApp(cfg, cli.NewPrompter(os.Stdin, os.Stderr), clip, os.Stdout)
	if err := app.Run(rest); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			app.Help()
		}
		return cli.ExitCode(err)
	}

	// The vault is closed by now; only the clipboard clear is outstanding.
	if clip.Pending() {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := clip.Wait(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	return 0
}
