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
	Register(&ConnectCmd{})
}

// ConnectCmd implements the connect command.
type ConnectCmd struct{}

func (c *ConnectCmd) Name() string      { return "connect" }
func (c *ConnectCmd) Aliases() []string { return []string{"whoami"} }
func (c *ConnectCmd) Synopsis() string  { return "Connect the wallet and print the account" }
func (c *ConnectCmd) Usage() string     { return "chaintodo connect" }
func (c *ConnectCmd) NeedsLedger() bool { return true }

func (c *ConnectCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ConnectCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if code, ok := connect(ctx, deps, errOut); !ok {
		return code
	}

	// The account is the command output, so it is printed even when quiet.
	fmt.Fprintln(out, deps.Engine.Snapshot().Account)
	return exitcode.Success
}
