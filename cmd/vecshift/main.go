package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/app"
	"github.com/kailas-cloud/vecshift/internal/config"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	logpkg "github.com/kailas-cloud/vecshift/internal/logger"
	"github.com/kailas-cloud/vecshift/internal/version"
)

// Exit codes. Anything other than a completed migration is non-zero.
const (
	exitOK         = 0
	exitError      = 1
	exitRolledBack = 3
	exitFailed     = 4
)

// exitCodeError carries a specific process exit code.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// buildFunc wires the application from a loaded config.
type buildFunc func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error)

func execute(args []string, stdout, stderr io.Writer) int {
	return executeWith(app.Build, args, stdout, stderr)
}

func executeWith(build buildFunc, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(build)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		var ec *exitCodeError
		if errors.As(err, &ec) {
			return ec.code
		}
		return exitError
	}
	return exitOK
}

// globalOpts are the persistent flags shared by all commands.
type globalOpts struct {
	env        string
	configPath string
	logLevel   string
	output     string
	build      buildFunc
}

func newRootCmd(build buildFunc) *cobra.Command {
	opts := &globalOpts{build: build}
	rootCmd := &cobra.Command{
		Use:     "vecshift",
		Short:   "Live schema migrations for OpenSearch indices",
		Version: version.Full(),
		Long: `vecshift adds knn_vector fields to a live OpenSearch index without downtime.

It creates a new index with the extended mapping, reindexes into it,
verifies document counts and a sample of documents, then atomically moves
the serving alias. Any failure rolls the alias back to the source index.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.env, "env", config.GetEnv(), "environment name, selects config/<env>.yaml")
	pf.StringVar(&opts.configPath, "config", "", "explicit config file (overrides --env lookup)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVarP(&opts.output, "output", "o", "text", "output format: text or json")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newRollbackCmd(opts),
		newStatusCmd(opts),
		newAuditCmd(opts),
		newRestoreCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vecshift %s\n", version.Version)
			fmt.Fprintf(out, "  commit:  %s\n", version.Commit)
			fmt.Fprintf(out, "  built:   %s\n", version.Date)
		},
	}
}

// loadConfig resolves the config file from --config or --env.
func (o *globalOpts) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load(o.env)
}

// bootstrap loads config, builds the logger and wires the application.
func (o *globalOpts) bootstrap(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := logpkg.NewLogger(o.env, level)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	build := o.build
	if build == nil {
		build = app.Build
	}
	a, err := build(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}

func (o *globalOpts) jsonOutput() bool { return o.output == "json" }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runExitError maps a finished run to the process exit code.
func runExitError(run *dommig.Run) error {
	switch run.State {
	case dommig.StateCompleted:
		return nil
	case dommig.StateRolledBack:
		return &exitCodeError{code: exitRolledBack,
			err: fmt.Errorf("migration %s rolled back: %s", run.ID, run.LastError)}
	default:
		return &exitCodeError{code: exitFailed,
			err: fmt.Errorf("migration %s ended in %s: %s", run.ID, run.State, run.LastError)}
	}
}
