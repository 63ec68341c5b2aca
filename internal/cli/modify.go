package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/webgenai/genctl/internal/protocol"
)

var modifyCmd = &cobra.Command{
	Use:   "modify <project-id> <prompt...>",
	Short: "Modify an existing project with a natural-language prompt",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runModify,
}

func init() {
	modifyCmd.Flags().Bool("detach", false, "Start the run without watching its event stream")
}

func runModify(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, cfg, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	projectID := args[0]
	prompt := strings.Join(args[1:], " ")

	runID, err := client.StartModify(ctx, projectID, prompt)
	if err != nil {
		return err
	}
	logger.Info("modify run started", "run_id", runID, "project_id", projectID)

	if detach, _ := cmd.Flags().GetBool("detach"); detach {
		fmt.Fprintf(out, "Run %s started. Attach with 'genctl watch --modify %s'.\n", runID, runID)
		return nil
	}

	return watchRun(ctx, client, cfg, runID, protocol.RunKindModify, out, logger)
}
