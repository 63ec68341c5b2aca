// Package reconcile folds pipeline events into the run session and,
// on the terminal event, pulls the authoritative project snapshot and
// replaces the mirror. All pipeline-driven mirror writes live here.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/webgenai/genctl/internal/api"
	"github.com/webgenai/genctl/internal/mirror"
	"github.com/webgenai/genctl/internal/protocol"
	"github.com/webgenai/genctl/internal/runstate"
)

// Fetcher is the slice of the API the reconciler needs
type Fetcher interface {
	GetProject(ctx context.Context, projectID string) (*api.Project, error)
}

// Reconciler routes events for one run session and handles completion
type Reconciler struct {
	fetcher Fetcher
	mirror  *mirror.Mirror
	session *runstate.Session
	logger  *slog.Logger
}

// New creates a reconciler bound to one session and mirror
func New(fetcher Fetcher, m *mirror.Mirror, s *runstate.Session, logger *slog.Logger) *Reconciler {
	return &Reconciler{fetcher: fetcher, mirror: m, session: s, logger: logger}
}

// Dispatch folds one event into local state
func (r *Reconciler) Dispatch(ctx context.Context, ev protocol.Event) {
	r.session.SetLastEvent(ev)

	switch ev := ev.(type) {
	case protocol.StatusEvent:
		r.session.ApplyStatus(ev.Step, ev.State)

	case protocol.LogEvent:
		r.session.AppendLog(ev.Chunk, false)
		r.mirror.AppendMessage(ev.Chunk, false)

	case protocol.TitleEvent:
		r.mirror.SetTitle(ev.Title)

	case protocol.RouterResultEvent:
		r.logger.Debug("router result",
			"run_id", r.session.ID(),
			"domain", ev.Domain,
			"confidence", ev.Confidence)

	case protocol.PlanReadyEvent:
		r.logger.Debug("plan ready", "run_id", r.session.ID(), "files", ev.Files)

	case protocol.DoneEvent:
		r.finalize(ctx, ev)

	case protocol.UnknownEvent:
		r.logger.Debug("ignoring unrecognized event",
			"run_id", r.session.ID(), "type", string(ev.Type))
	}
}

// finalize handles the terminal event. The session's single-flight
// guard ensures the snapshot fetch and mirror replacement run at most
// once even when duplicate terminal events arrive.
func (r *Reconciler) finalize(ctx context.Context, ev protocol.DoneEvent) {
	if !r.session.BeginFinalize() {
		r.logger.Debug("duplicate terminal event ignored", "run_id", r.session.ID())
		return
	}

	order := protocol.StepOrder(r.session.Kind())
	r.session.ApplyStatus(order[len(order)-1], protocol.StepDone)

	if !ev.OK {
		msg := "Run failed."
		if ev.Error != "" {
			msg = fmt.Sprintf("Run failed: %s", ev.Error)
		}
		r.session.AppendLog(msg, false)
		r.session.EndFinalize()
		return
	}

	projectID := ev.ProjectID
	if projectID == "" {
		projectID = r.session.ID()
	}

	r.mirror.SetPending(true)

	project, err := r.fetcher.GetProject(ctx, projectID)
	if err != nil {
		// No retry; the guard is released so a later terminal event is
		// not permanently blocked, and the mirror keeps its pre-terminal
		// state.
		r.logger.Error("failed to fetch project after completion",
			"run_id", r.session.ID(), "project_id", projectID, "error", err)
		r.mirror.SetPending(false)
		r.session.EndFinalize()
		return
	}

	messages := make([]mirror.Message, 0, len(project.Messages))
	for _, m := range project.Messages {
		messages = append(messages, mirror.Message{
			ID:       m.ID,
			Content:  m.Content,
			FromUser: m.FromUser,
		})
	}

	r.mirror.Replace(project.ID, project.Title, NormalizeFiles(project.Files), messages)
	r.mirror.SetReady(true)
	r.mirror.SetPending(false)
	r.session.EndFinalize()
	r.session.SetRunning(false)

	r.logger.Info("mirror reconciled with authoritative snapshot",
		"run_id", r.session.ID(),
		"project_id", project.ID,
		"files", len(project.Files))
}

// NormalizeFiles converts snapshot files into canonical textual form
func NormalizeFiles(files []api.ProjectFile) []mirror.File {
	out := make([]mirror.File, 0, len(files))
	for _, f := range files {
		out = append(out, mirror.File{
			Name:    f.Name,
			Content: NormalizeContent(f.Content),
		})
	}
	return out
}

// NormalizeContent decodes a raw snapshot value into text. The store
// usually holds plain strings, but structured values (objects, arrays)
// show up for JSON-typed files; those are rendered as indented JSON.
func NormalizeContent(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err == nil {
		return buf.String()
	}

	return string(trimmed)
}
