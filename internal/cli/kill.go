package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var killCmd = &cobra.Command{
	Use:   "kill <run-id>",
	Short: "Ask the server to stop a running pipeline",
	Long: `Ask the server to stop a run. The request is best-effort: the run is
treated as stopped locally even when the server cannot confirm the
kill, so a watcher attached to the run should simply be interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runKill,
}

func runKill(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, _, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	runID := args[0]
	if err := client.KillRun(cmd.Context(), runID); err != nil {
		// The local view of the run is reset regardless of whether the
		// server acknowledged the kill.
		logger.Warn("kill request failed", "run_id", runID, "error", err)
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s treated as stopped (server did not confirm the kill).\n", runID)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s stopped.\n", runID)
	return nil
}
