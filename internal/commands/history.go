package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"chaintodo/internal/config"
	"chaintodo/internal/exitcode"
	"chaintodo/internal/output"
)

const defaultHistoryLimit = 20

func init() {
	Register(&HistoryCmd{})
}

// HistoryCmd implements the history command.
// It prints journaled operations, most recent first, without contacting
// the ledger.
type HistoryCmd struct {
	limit int
}

// SetLimit sets the number of entries to print (for testing).
func (c *HistoryCmd) SetLimit(n int) {
	c.limit = n
}

func (c *HistoryCmd) Name() string      { return "history" }
func (c *HistoryCmd) Aliases() []string { return []string{"log"} }
func (c *HistoryCmd) Synopsis() string  { return "Show recent operations" }
func (c *HistoryCmd) Usage() string     { return "chaintodo history [--limit <n>]" }
func (c *HistoryCmd) NeedsLedger() bool { return true }

func (c *HistoryCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.limit, "limit", defaultHistoryLimit, "")
	fs.IntVar(&c.limit, "n", defaultHistoryLimit, "")
}

func (c *HistoryCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.limit < 1 {
		fmt.Fprintf(errOut, "error: invalid limit: %d\n", c.limit)
		return exitcode.UserError
	}
	if deps == nil || deps.Journal == nil {
		fmt.Fprintln(errOut, "error: journal is not configured")
		return exitcode.AuthError
	}

	entries, err := deps.Journal.List(ctx, c.limit)
	if err != nil {
		fmt.Fprintf(errOut, "error: journal error: %v\n", err)
		return exitcode.BackendError
	}

	if len(entries) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no operations recorded")
		}
		return exitcode.Success
	}

	for _, e := range entries {
		output.FormatHistoryEntry(out, e)
	}
	return exitcode.Success
}
