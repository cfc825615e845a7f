// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"

	"chaintodo/internal/config"
	"chaintodo/internal/engine"
	"chaintodo/internal/journal"
	"chaintodo/internal/log"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsLedger returns true if the command needs the engine and journal.
	// Commands like help, version, login, logout return false.
	NeedsLedger() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths, settings).
	// deps always carries a Logger; Engine and Journal are nil if
	// NeedsLedger() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int
}

// Deps are the collaborators a command runs against.
type Deps struct {
	Engine  *engine.Engine
	Journal journal.Recorder
	Logger  log.Logger

	closers []func()
}

// OnClose registers fn to run on Close, in reverse registration order.
func (d *Deps) OnClose(fn func()) {
	d.closers = append(d.closers, fn)
}

// Close releases everything registered with OnClose.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *Deps) logger() log.Logger {
	if d == nil || d.Logger == nil {
		return log.Noop
	}
	return d.Logger
}
