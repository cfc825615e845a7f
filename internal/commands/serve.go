package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/oklog/run"

	"chaintodo/internal/config"
	"chaintodo/internal/exitcode"
	"chaintodo/internal/server"
)

func init() {
	Register(&ServeCmd{})
}

// ServeCmd implements the serve command.
type ServeCmd struct {
	addr string
}

// SetAddr sets the listen address (for testing).
func (c *ServeCmd) SetAddr(addr string) {
	c.addr = addr
}

func (c *ServeCmd) Name() string      { return "serve" }
func (c *ServeCmd) Aliases() []string { return nil }
func (c *ServeCmd) Synopsis() string  { return "Serve the local API and websocket stream" }
func (c *ServeCmd) Usage() string     { return "chaintodo serve [--addr <host:port>]" }
func (c *ServeCmd) NeedsLedger() bool { return true }

func (c *ServeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "")
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if deps == nil || deps.Engine == nil {
		fmt.Fprintln(errOut, "error: ledger is not configured")
		return exitcode.AuthError
	}
	logger := deps.logger()

	addr := c.addr
	if addr == "" {
		addr = cfg.Settings.ListenAddr
	}

	srv, err := server.New(server.Config{
		Addr:    addr,
		Engine:  deps.Engine,
		Journal: deps.Journal,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	defer srv.Close()

	// A failed connect is not fatal; clients can retry with /api/connect.
	if _, err := deps.Engine.Connect(ctx); err != nil {
		logger.Warningf("Auto-connect failed: %s", err)
	}

	var g run.Group

	// HTTP server.
	{
		g.Add(
			func() error {
				return srv.ListenAndServe()
			},
			func(_ error) {
				_ = srv.Shutdown()
			},
		)
	}

	// Context cancellation (from parent signal handling).
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "serving on http://%s\n", addr)
	}
	if err := g.Run(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
