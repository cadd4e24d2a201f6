package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aaronromeo/inboxsweep/internal/config"
	"github.com/spf13/cobra"
)

const menuText = `
inboxsweep
  1) Clean messages from target senders
  2) Clean read messages without attachments
  3) List folders
  4) Count INBOX messages
  5) Exit
Choose an option [1-5]: `

func newMenuCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Show the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd, opts)
		},
	}
}

func runMenu(cmd *cobra.Command, opts *rootOptions) error {
	out := cmd.OutOrStdout()

	a, err := opts.open(cmd, nil)
	if errors.Is(err, config.ErrConfigMissing) {
		path := opts.resolveConfigPath()
		if err := config.WriteTemplate(path); err != nil {
			return fmt.Errorf("write template %s: %w", path, err)
		}
		fmt.Fprintf(out, "No configuration found. A template was written to %s.\n", path)
		fmt.Fprintln(out, "Fill in your email, app password and target senders, then start inboxsweep again.")
		return nil
	}
	if err != nil {
		return err
	}
	defer a.close()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, menuText)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		var actionErr error
		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			result, err := a.runner.CleanSenders(commandContext(cmd))
			if err == nil {
				printResult(cmd, result, a.cfg.DryRun)
			}
			actionErr = err
		case "2":
			result, err := a.runner.CleanRead(commandContext(cmd))
			if err == nil {
				printResult(cmd, result, a.cfg.DryRun)
			}
			actionErr = err
		case "3":
			actionErr = listFolders(cmd, a)
		case "4":
			actionErr = countMessages(cmd, a, defaultFolder)
		case "5":
			fmt.Fprintln(out, "Bye.")
			return nil
		default:
			fmt.Fprintln(out, "Invalid choice, enter a number between 1 and 5.")
			continue
		}

		if actionErr != nil {
			if errors.Is(actionErr, context.Canceled) {
				return actionErr
			}
			a.log.Error("menu action failed", "error", actionErr)
			fmt.Fprintf(out, "Error: %v\n", actionErr)
		}
	}
}
