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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "chaintodo help" }
func (c *HelpCmd) NeedsLedger() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  chaintodo                                   List tasks
  chaintodo list [common flags] [--open]      List tasks, optionally only open ones
  chaintodo add [common flags] <description...>
  chaintodo create [common flags] <description...>
  chaintodo done [common flags] <number|#id>
  chaintodo connect [common flags]            Print the connected account
  chaintodo refresh [common flags]
  chaintodo history [common flags] [--limit <n>]
  chaintodo serve [common flags] [--addr <host:port>]
  chaintodo login [common flags]
  chaintodo logout [common flags]
  chaintodo help
  chaintodo version

Common flags:
  --config <dir>        Override config directory
  --quiet               Suppress informational output
  --debug               Print debug logs to stderr
  --log-format <fmt>    Log format: text or json

Environment:
  RPC_URL, CONTRACT_ADDRESS, CHAIN_ID, PRIVATE_KEY, CHAINTODO_KEYSTORE,
  CHAINTODO_KEYSTORE_PASSWORD and CHAINTODO_GCP_NODE override config.toml.
  A .env file in the working directory is loaded first.
`
