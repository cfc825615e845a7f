package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"chaintodo/internal/config"
	"chaintodo/internal/exitcode"
)

func init() {
	Register(&RefreshCmd{})
}

// RefreshCmd implements the refresh command.
type RefreshCmd struct{}

func (c *RefreshCmd) Name() string      { return "refresh" }
func (c *RefreshCmd) Aliases() []string { return nil }
func (c *RefreshCmd) Synopsis() string  { return "Re-read the task list and print stats" }
func (c *RefreshCmd) Usage() string     { return "chaintodo refresh" }
func (c *RefreshCmd) NeedsLedger() bool { return true }

func (c *RefreshCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RefreshCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if code, ok := connect(ctx, deps, errOut); !ok {
		return code
	}

	if err := deps.Engine.Refresh(ctx); err != nil {
		return report(errOut, err)
	}

	if !cfg.Quiet {
		s := deps.Engine.Snapshot().Stats
		fmt.Fprintf(out, "Total: %d  Completed: %d  Done: %d%%\n", s.Total, s.Completed, s.PercentDone)
	}
	return exitcode.Success
}
