package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aaronromeo/inboxsweep/internal/cleanup"
	"github.com/aaronromeo/inboxsweep/internal/config"
	"github.com/aaronromeo/inboxsweep/internal/logging"
	"github.com/aaronromeo/inboxsweep/internal/runner"
	"github.com/aaronromeo/inboxsweep/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	defaultEnvFile = ".env"
	defaultLogFile = "inboxsweep.log"
)

type rootOptions struct {
	configPath string
	logFile    string
	verbose    bool

	// build wires the runner for a validated config. Defaults to runner.Build.
	build func(config.Config, *slog.Logger) (*runner.Runner, error)
}

// NewRootCmd builds the inboxsweep command tree. Without a subcommand the
// interactive menu is shown.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{build: runner.Build})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inboxsweep",
		Short:         "inboxsweep deletes old mail from selected senders over IMAP",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadEnvFile()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to YAML config file (or set "+config.EnvConfigPath+")")
	flags.StringVar(&opts.logFile, "log-file", defaultLogFile, "Append log output to this file (empty to disable)")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newMenuCmd(opts),
		newRunCmd(opts),
		newCleanSendersCmd(opts),
		newCleanReadCmd(opts),
		newFoldersCmd(opts),
		newCountCmd(opts),
		newInitCmd(opts),
		newNotifyTestCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is everything a command needs once the configuration is loaded.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	runner *runner.Runner
	close  func()
}

func (o *rootOptions) resolveConfigPath() string {
	if path := strings.TrimSpace(o.configPath); path != "" {
		return path
	}
	if path := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); path != "" {
		return path
	}
	return config.DefaultPath
}

// open loads and validates the configuration, applies override and wires
// logging, tracing and the runner.
func (o *rootOptions) open(cmd *cobra.Command, override func(*config.Config)) (*app, error) {
	path := o.resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrConfigMissing) {
			return nil, fmt.Errorf("%w (run \"inboxsweep init\" to create one)", err)
		}
		return nil, err
	}
	if override != nil {
		override(&cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	log, closeLog, err := logging.Open(cmd.OutOrStdout(), o.logFile, o.verbose)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	shutdown, err := telemetry.Setup(commandContext(cmd))
	if err != nil {
		log.Warn("telemetry disabled", "error", err)
	} else if telemetry.Enabled() {
		log = logging.WithOTel(log, telemetry.ServiceName, nil)
	}

	build := o.build
	if build == nil {
		build = runner.Build
	}
	r, err := build(cfg, log)
	if err != nil {
		_ = shutdown(context.Background())
		_ = closeLog()
		return nil, err
	}

	fmt.Fprintln(cmd.OutOrStdout(), config.Summary(cfg))
	log.Debug("configuration loaded", "path", path)

	return &app{
		cfg:    cfg,
		log:    log,
		runner: r,
		close: func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("telemetry shutdown failed", "error", err)
			}
			_ = closeLog()
		},
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func loadEnvFile() error {
	if _, err := os.Stat(defaultEnvFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(defaultEnvFile)
}

func printResult(cmd *cobra.Command, result cleanup.Result, dryRun bool) {
	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintf(out, "Dry run: %d messages would be deleted\n", result.Total)
	} else {
		fmt.Fprintf(out, "Deleted %d messages\n", result.Total)
	}
	if details := result.DetailString(); details != "" {
		fmt.Fprintf(out, "Details: %s\n", details)
	}
	if result.Failed > 0 {
		fmt.Fprintf(out, "%d messages could not be processed, see the log for details\n", result.Failed)
	}
}
