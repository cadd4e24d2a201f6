package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultFolder = "INBOX"

func newFoldersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List every folder of the mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.close()
			return listFolders(cmd, a)
		},
	}
}

func newCountCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count [folder]",
		Short: "Count the messages in a folder (INBOX by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := defaultFolder
			if len(args) == 1 {
				folder = args[0]
			}
			a, err := opts.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.close()
			return countMessages(cmd, a, folder)
		},
	}
}

func listFolders(cmd *cobra.Command, a *app) error {
	folders, err := a.runner.Folders(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("list folders: %w", err)
	}
	a.log.Info("listed folders", "count", len(folders))
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d folders:\n", len(folders))
	for _, name := range folders {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

func countMessages(cmd *cobra.Command, a *app, folder string) error {
	count, err := a.runner.Count(commandContext(cmd), folder)
	if err != nil {
		return fmt.Errorf("count %s: %w", folder, err)
	}
	a.log.Info("counted messages", "folder", folder, "count", count)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d messages\n", folder, count)
	return nil
}
