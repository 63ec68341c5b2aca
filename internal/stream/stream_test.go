package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webgenai/genctl/internal/protocol"
)

type httpOpener struct {
	url string
}

func (o httpOpener) EventStream(ctx context.Context, runID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func serveFrames(t *testing.T, frames []string, hold bool) Opener {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, f := range frames {
			io.WriteString(w, f)
			flusher.Flush()
		}
		if hold {
			<-r.Context().Done()
		}
	}))
	t.Cleanup(srv.Close)
	return httpOpener{url: srv.URL}
}

func collect(t *testing.T, sub *Subscription) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out collecting events")
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubscriptionDeliversParsedEvents(t *testing.T) {
	opener := serveFrames(t, []string{
		"data: {\"t\":\"status\",\"step\":\"router\",\"state\":\"running\"}\n\n",
		": ping\n\n",
		"data: {\"t\":\"log\",\"stream\":\"stdout\",\"chunk\":\"routing\"}\n\n",
		"data: {\"t\":\"done\",\"ok\":true}\n\n",
	}, false)

	sub, err := Subscribe(context.Background(), opener, "run-1", discardLogger())
	require.NoError(t, err)

	events := collect(t, sub)
	require.Len(t, events, 3)
	require.Equal(t, protocol.StatusEvent{Step: "router", State: protocol.StepRunning}, events[0])
	require.Equal(t, protocol.LogEvent{Stream: "stdout", Chunk: "routing"}, events[1])
	require.Equal(t, protocol.DoneEvent{OK: true}, events[2])
	require.True(t, sub.Closed())
}

func TestMalformedFrameIsDroppedStreamContinues(t *testing.T) {
	opener := serveFrames(t, []string{
		"data: this is not json\n\n",
		"data: {\"step\":\"router\"}\n\n",
		"data: {\"t\":\"log\",\"chunk\":\"still alive\"}\n\n",
	}, false)

	sub, err := Subscribe(context.Background(), opener, "run-1", discardLogger())
	require.NoError(t, err)

	events := collect(t, sub)
	require.Len(t, events, 1)
	require.Equal(t, protocol.LogEvent{Chunk: "still alive"}, events[0])
}

func TestUnknownEventForwardedOpaque(t *testing.T) {
	opener := serveFrames(t, []string{
		"data: {\"t\":\"metrics.sample\",\"cpu\":0.5}\n\n",
	}, false)

	sub, err := Subscribe(context.Background(), opener, "run-1", discardLogger())
	require.NoError(t, err)

	events := collect(t, sub)
	require.Len(t, events, 1)
	unknown, ok := events[0].(protocol.UnknownEvent)
	require.True(t, ok)
	require.Equal(t, protocol.EventType("metrics.sample"), unknown.Type)
}

func TestMultiLineDataFrame(t *testing.T) {
	opener := serveFrames(t, []string{
		"data: {\"t\":\"log\",\n",
		"data: \"chunk\":\"joined\"}\n\n",
	}, false)

	sub, err := Subscribe(context.Background(), opener, "run-1", discardLogger())
	require.NoError(t, err)

	events := collect(t, sub)
	require.Len(t, events, 1)
	require.Equal(t, protocol.LogEvent{Chunk: "joined"}, events[0])
}

func TestCloseTearsDownHeldStream(t *testing.T) {
	opener := serveFrames(t, []string{
		"data: {\"t\":\"log\",\"chunk\":\"first\"}\n\n",
	}, true)

	sub, err := Subscribe(context.Background(), opener, "run-1", discardLogger())
	require.NoError(t, err)

	ev := <-sub.Events()
	require.Equal(t, protocol.LogEvent{Chunk: "first"}, ev)
	require.False(t, sub.Closed())

	sub.Close()
	require.True(t, sub.Closed())

	_, open := <-sub.Events()
	require.False(t, open, "no delivery after close")

	// Close is idempotent
	sub.Close()
}

func TestSubscribeErrorOnRejectedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, err := Subscribe(context.Background(), httpOpener{url: srv.URL}, "run-1", discardLogger())
	require.Error(t, err)
}
