package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/webgenai/genctl/internal/eventlog"
)

var eventsCmd = &cobra.Command{
	Use:   "events <run-id>",
	Short: "Replay the captured event log for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().Bool("json", false, "Print captured records as NDJSON")
}

func runEvents(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	return replayEvents(cfg.ResolveEventLogDir(), args[0], asJSON, cmd.OutOrStdout(), logger)
}

// replayEvents prints the most recent capture file for a run. The
// capture holds events as they arrived off the wire, so this is the
// record of what the server actually sent.
func replayEvents(dir, runID string, asJSON bool, out io.Writer, logger *slog.Logger) error {
	path, err := eventlog.Latest(dir, runID)
	if err != nil {
		return err
	}

	records, err := eventlog.Replay(path, logger)
	if err != nil {
		return err
	}

	if asJSON {
		encoder := json.NewEncoder(out)
		for _, rec := range records {
			if err := encoder.Encode(rec); err != nil {
				return fmt.Errorf("failed to encode record: %w", err)
			}
		}
		return nil
	}

	fmt.Fprintf(out, "Captured events for run %s (%s)\n", runID, path)
	for _, rec := range records {
		payload, err := json.Marshal(rec.Event)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		fmt.Fprintf(out, "%s  %-16s %s\n", rec.ReceivedAt.Format(time.RFC3339), rec.EventType, payload)
	}
	fmt.Fprintf(out, "%d event(s)\n", len(records))

	return nil
}
