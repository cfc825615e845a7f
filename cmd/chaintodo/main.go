// Package main is the entry point for the chaintodo CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oklog/run"

	"chaintodo/internal/cli"
	"chaintodo/internal/commands"
)

func main() {
	ctx := context.Background()
	code := 0

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				dispatcher := cli.NewDispatcher(commands.DefaultRegistry, newDeps)
				code = dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	_ = g.Run()
	os.Exit(code)
}
