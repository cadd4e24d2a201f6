package cli

import (
	"errors"
	"fmt"

	"github.com/aaronromeo/inboxsweep/internal/cleanup"
	"github.com/aaronromeo/inboxsweep/internal/config"
	"github.com/aaronromeo/inboxsweep/internal/notifier"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every configured cleanup pass once, then notify",
		Long: "Run every configured cleanup pass in a single session. Intended for schedulers:\n" +
			"a missing configuration file is an error rather than a prompt.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.runner.Run(commandContext(cmd))
			if err != nil {
				a.log.Error("cleanup aborted", "error", err)
				return err
			}
			printResult(cmd, result, a.cfg.DryRun)
			return nil
		},
	}
}

func newCleanSendersCmd(opts *rootOptions) *cobra.Command {
	return newCleanCmd(opts, "clean-senders", "Delete old messages from the configured target senders",
		func(a *app, cmd *cobra.Command) (cleanup.Result, error) {
			return a.runner.CleanSenders(commandContext(cmd))
		})
}

func newCleanReadCmd(opts *rootOptions) *cobra.Command {
	return newCleanCmd(opts, "clean-read", "Delete old read messages without attachments",
		func(a *app, cmd *cobra.Command) (cleanup.Result, error) {
			return a.runner.CleanRead(commandContext(cmd))
		})
}

func newCleanCmd(opts *rootOptions, use, short string, clean func(*app, *cobra.Command) (cleanup.Result, error)) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var override func(*config.Config)
			if cmd.Flags().Changed("dry-run") {
				override = func(cfg *config.Config) { cfg.DryRun = dryRun }
			}
			a, err := opts.open(cmd, override)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := clean(a, cmd)
			if err != nil {
				a.log.Error("cleanup aborted", "error", err)
				return fmt.Errorf("%s: %w", use, err)
			}
			printResult(cmd, result, a.cfg.DryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Override dry_run from the config file")
	return cmd
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a template configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.resolveConfigPath()
			if err := config.WriteTemplate(path); err != nil {
				return fmt.Errorf("write template %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created template configuration at %s. Edit it before running a cleanup.\n", path)
			return nil
		},
	}
}

func newNotifyTestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a sample summary to check the SMTP settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sending a sample notification to %s\n", a.cfg.NotificationEmail)
			if err := a.runner.NotifyTest(commandContext(cmd)); err != nil {
				if errors.Is(err, notifier.ErrSubmission) {
					fmt.Fprintf(out, "Notification failed: %v\n", err)
					fmt.Fprintln(out, "Check the app password, that SMTP is enabled for the account and email_type.")
				}
				return err
			}
			fmt.Fprintln(out, "Notification sent. Check the inbox of the notification address.")
			return nil
		},
	}
}
