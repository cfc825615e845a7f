package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"chaintodo/internal/config"
	"chaintodo/internal/exitcode"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct{}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string     { return "chaintodo add <description...>" }
func (c *AddCmd) NeedsLedger() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: description required")
		return exitcode.UserError
	}
	// Blank input is rejected by the engine before any ledger call.
	description := strings.Join(args, " ")

	if code, ok := connect(ctx, deps, errOut); !ok {
		return code
	}

	if err := deps.Engine.AddTask(ctx, description); err != nil {
		return report(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
