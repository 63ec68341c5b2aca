// Package stream consumes the per-run server-sent-event channel and
// turns raw frames into protocol events.
package stream

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/webgenai/genctl/internal/protocol"
)

// MaxFrameSize is the maximum accepted size of one streamed frame
const MaxFrameSize = 1024 * 1024

// Opener establishes the raw event channel for a run. *api.Client
// satisfies this.
type Opener interface {
	EventStream(ctx context.Context, runID string) (io.ReadCloser, error)
}

// Subscription is one open event channel for a run. Events are
// delivered on Events() until the stream ends or Close is called;
// the channel is closed afterwards and Closed() reports true.
//
// A transport error closes the subscription; reconnection is the
// caller's responsibility.
type Subscription struct {
	runID  string
	logger *slog.Logger

	events chan protocol.Event
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool

	closeOnce sync.Once
}

// Subscribe opens the event channel for a run and starts delivering
// parsed events. The subscription is torn down when ctx is cancelled or
// Close is called.
func Subscribe(ctx context.Context, opener Opener, runID string, logger *slog.Logger) (*Subscription, error) {
	sctx, cancel := context.WithCancel(ctx)

	body, err := opener.EventStream(sctx, runID)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{
		runID:  runID,
		logger: logger,
		events: make(chan protocol.Event, 256),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.readLoop(sctx, body)

	return s, nil
}

// RunID returns the run this subscription follows
func (s *Subscription) RunID() string {
	return s.runID
}

// Events returns the delivery channel. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan protocol.Event {
	return s.events
}

// Close tears the subscription down. It is idempotent and returns once
// no further events can be delivered.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Closed reports whether the subscription has fully shut down
func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

// readLoop parses the text/event-stream framing: "data:" lines carry
// payload, a blank line terminates a frame, ":" lines are keepalive
// comments. Frame fields other than data (event, id, retry) are not
// sent by the server and are ignored.
func (s *Subscription) readLoop(ctx context.Context, body io.ReadCloser) {
	defer func() {
		body.Close()
		close(s.events)
		s.closed.Store(true)
		close(s.done)
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 4096), MaxFrameSize)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if len(data) > 0 {
				s.dispatch(ctx, strings.Join(data, "\n"))
				data = data[:0]
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			// keepalive comment
			continue
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(payload, " "))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Error("event stream transport error", "run_id", s.runID, "error", err)
		return
	}
	s.logger.Info("event stream closed", "run_id", s.runID)
}

// dispatch parses one frame payload and delivers it. Malformed payloads
// are logged and dropped; the stream stays open.
func (s *Subscription) dispatch(ctx context.Context, payload string) {
	ev, err := protocol.Parse([]byte(payload))
	if err != nil {
		s.logger.Warn("dropping malformed event",
			"run_id", s.runID,
			"error", err,
			"payload", truncate(payload, 200))
		return
	}

	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
