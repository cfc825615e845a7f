package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"chaintodo/internal/config"
	"chaintodo/internal/engine"
	"chaintodo/internal/exitcode"
	"chaintodo/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `chaintodo` (no args) and `chaintodo list`.
type ListCmd struct {
	open bool
}

// SetOpen restricts the output to incomplete tasks (for testing).
func (c *ListCmd) SetOpen(open bool) {
	c.open = open
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string     { return "chaintodo list [--open]" }
func (c *ListCmd) NeedsLedger() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.open, "open", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	if code, ok := connect(ctx, deps, errOut); !ok {
		return code
	}
	if err := deps.Engine.LastFetchError(); err != nil {
		return report(errOut, err)
	}

	snap := deps.Engine.Snapshot()
	printSnapshot(out, cfg, snap, c.open)
	return exitcode.Success
}

// printSnapshot prints the header and the numbered tasks. Numbers are
// positions in mirror order; incomplete tasks come first so filtering them
// keeps their numbers.
func printSnapshot(out io.Writer, cfg *config.Config, snap engine.Snapshot, openOnly bool) {
	if !cfg.Quiet {
		output.FormatHeader(out, snap)
	}

	printed := 0
	for i, task := range snap.Tasks {
		if openOnly && task.Completed {
			continue
		}
		output.FormatTask(out, i+1, task)
		printed++
	}

	if printed == 0 && !cfg.Quiet {
		fmt.Fprintln(out, "no tasks found")
	}
}
