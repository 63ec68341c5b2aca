package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/webgenai/genctl/internal/api"
	"github.com/webgenai/genctl/internal/config"
	"github.com/webgenai/genctl/internal/eventlog"
	"github.com/webgenai/genctl/internal/mirror"
	"github.com/webgenai/genctl/internal/protocol"
	"github.com/webgenai/genctl/internal/reconcile"
	"github.com/webgenai/genctl/internal/runstate"
	"github.com/webgenai/genctl/internal/stream"
	"github.com/webgenai/genctl/internal/transcript"
)

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Attach to a run's event stream and follow it to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Bool("modify", false, "Treat the run as a modification of an existing project")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	client, cfg, err := newClient(cmd, logger)
	if err != nil {
		return err
	}

	kind := protocol.RunKindGenerate
	if modify, _ := cmd.Flags().GetBool("modify"); modify {
		kind = protocol.RunKindModify
	}

	return watchRun(cmd.Context(), client, cfg, args[0], kind, cmd.OutOrStdout(), logger)
}

// watchRun consumes a run's event stream until the terminal event,
// folding every event into the local session and project mirror. The
// raw events are captured to an NDJSON file for later inspection.
func watchRun(ctx context.Context, client *api.Client, cfg *config.Config, runID string, kind protocol.RunKind, out io.Writer, logger *slog.Logger) error {
	mir := mirror.New()
	session := runstate.New(runID, kind)
	session.SetRunning(true)

	rec := reconcile.New(client, mir, session, logger)

	capture, err := eventlog.New(cfg.ResolveEventLogDir(), runID, logger)
	if err != nil {
		return fmt.Errorf("failed to create event capture log: %w", err)
	}
	defer capture.Close()

	sub, err := stream.Subscribe(ctx, client, runID, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	fmt.Fprintf(out, "Watching run %s (events: %s)\n", runID, capture.Path())

	formatter := transcript.NewFormatter()

	var done *protocol.DoneEvent
	for ev := range sub.Events() {
		if err := capture.Write(ev); err != nil {
			logger.Warn("failed to capture event", "error", err)
		}

		if line := formatter.FormatEvent(ev); line != "" {
			fmt.Fprintln(out, line)
		}
		rec.Dispatch(ctx, ev)

		if d, ok := ev.(protocol.DoneEvent); ok {
			done = &d
			break
		}
	}

	if done == nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("event stream for run %s ended before completion", runID)
	}

	if !done.OK {
		if done.Error != "" {
			return fmt.Errorf("run %s failed: %s", runID, done.Error)
		}
		return fmt.Errorf("run %s failed", runID)
	}

	if mir.Ready() {
		fmt.Fprintf(out, "\nProject %s: %s\n", mir.ID(), mir.Title())
		for _, f := range mir.Files() {
			marker := "  "
			if f.Name == mir.ActiveFile() {
				marker = "* "
			}
			fmt.Fprintf(out, "%s%s (%s)\n", marker, f.Name, formatter.FormatSize(int64(len(f.Content))))
		}
	} else {
		// The terminal event arrived but the snapshot fetch failed;
		// the run itself succeeded.
		fmt.Fprintf(out, "\nRun %s finished, but fetching the project failed. Try 'genctl pull %s'.\n", runID, done.ProjectID)
	}

	return nil
}
