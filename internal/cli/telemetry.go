package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry <run-id>",
	Short: "Show the telemetry report for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runTelemetry,
}

func init() {
	telemetryCmd.Flags().Bool("json", false, "Print the raw telemetry report as JSON")
}

func runTelemetry(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, _, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	report, err := client.Telemetry(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal telemetry: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Run %s: %s\n", report.ID, report.Status)
	fmt.Fprintf(out, "  planned files: %d, produced files: %d\n", report.PlanCount, report.FilesCount)
	fmt.Fprintf(out, "  steps recorded: %d\n", len(report.Steps))
	for name, raw := range report.Metrics {
		fmt.Fprintf(out, "  metric %s: %s\n", name, string(raw))
	}
	for name, raw := range report.Tokens {
		fmt.Fprintf(out, "  tokens %s: %s\n", name, string(raw))
	}
	return nil
}
