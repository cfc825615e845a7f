// Package cli parses the command line and dispatches to registered commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"chaintodo/internal/commands"
	"chaintodo/internal/config"
	"chaintodo/internal/exitcode"
	"chaintodo/internal/log"
	loglogrus "chaintodo/internal/log/logrus"
)

// Log formats accepted by --log-format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DepsFactory builds the engine and journal from config.
// Used to inject the backend during dispatch.
type DepsFactory func(ctx context.Context, cfg *config.Config, logger log.Logger) (*commands.Deps, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  DepsFactory
}

// NewDispatcher creates a new dispatcher with the given registry and deps factory.
func NewDispatcher(registry *commands.Registry, factory DepsFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	// Create flag set with custom error handling
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var quiet bool
	var debug bool
	var logFormat string

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")
	fs.StringVar(&logFormat, "log-format", LogFormatText, "")

	// Register command-specific flags
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", flagError(err))
		return exitcode.UserError
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	if logFormat != LogFormatText && logFormat != LogFormatJSON {
		fmt.Fprintf(errOut, "error: invalid log format: %s\n", logFormat)
		return exitcode.UserError
	}

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug
	cfg.LogFormat = logFormat

	// Only serve logs by default; other commands print results and keep
	// stderr for errors unless --debug is set.
	var logger log.Logger = log.Noop
	if cfg.Debug || cmd.Name() == "serve" {
		logger = newLogger(cfg, errOut)
	}

	deps := &commands.Deps{Logger: logger}
	if cmd.NeedsLedger() && d.factory != nil {
		deps, err = d.factory(ctx, cfg, logger)
		if err != nil {
			return factoryError(errOut, err)
		}
		if deps.Logger == nil {
			deps.Logger = logger
		}
		defer deps.Close()
	}

	return cmd.Run(ctx, cfg, deps, positionalArgs, out, errOut)
}

// flagError rewrites flag package errors into the CLI's error vocabulary.
func flagError(err error) string {
	errStr := err.Error()

	// Missing flag value
	if strings.Contains(errStr, "flag needs an argument") {
		flagPart := strings.TrimSpace(strings.SplitN(errStr, ":", 2)[1])
		return "flag needs an argument: " + flagPart
	}

	// Unknown flag
	if name, ok := strings.CutPrefix(errStr, "flag provided but not defined: "); ok {
		return "unknown flag: " + name
	}

	// Bad flag values and anything else
	return errStr
}

// factoryError reports a failure to build the engine. Missing signer,
// credentials or settings are auth errors; anything else is a backend error.
func factoryError(errOut io.Writer, err error) int {
	msg := err.Error()
	for _, hint := range []string{"wallet", "token", "auth", "login", "not configured", "invalid"} {
		if strings.Contains(msg, hint) {
			fmt.Fprintf(errOut, "error: config error: %s\n", msg)
			return exitcode.AuthError
		}
	}
	fmt.Fprintf(errOut, "error: backend error: %s\n", msg)
	return exitcode.BackendError
}

// newLogger returns the application logger. Logs go to errOut so they never
// mix with command output.
func newLogger(cfg *config.Config, errOut io.Writer) log.Logger {
	logrusLog := logrus.New()
	logrusLog.Out = errOut
	logrusLog.SetLevel(logrus.InfoLevel)
	if cfg.Quiet {
		logrusLog.SetLevel(logrus.WarnLevel)
	}
	if cfg.Debug {
		logrusLog.SetLevel(logrus.DebugLevel)
	}

	switch cfg.LogFormat {
	case LogFormatJSON:
		logrusLog.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrusLog.SetFormatter(&logrus.TextFormatter{})
	}

	logger := loglogrus.NewLogrus(logrus.NewEntry(logrusLog)).WithValues(log.Kv{
		"version": commands.Version,
	})
	logger.Debugf("Debug level is enabled")
	return logger
}
