package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var titleCmd = &cobra.Command{
	Use:   "title <project-id> <new title...>",
	Short: "Rename a project",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTitle,
}

func runTitle(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, _, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	projectID := args[0]
	title := strings.Join(args[1:], " ")

	if err := client.UpdateProjectTitle(cmd.Context(), projectID, title); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Renamed project %s to %q\n", projectID, title)
	return nil
}
