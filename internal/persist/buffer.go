// Package persist coalesces rapid content edits to one file into a
// single delayed remote write. Edits hit the mirror immediately; the
// remote write happens on the trailing edge of the debounce window, or
// on an explicit flush. A failed write restores the content that was
// last confirmed by the server.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/webgenai/genctl/internal/mirror"
)

// DefaultDelay is the debounce window used when none is configured
const DefaultDelay = 750 * time.Millisecond

// Remote is the slice of the API the buffer needs
type Remote interface {
	UpdateFileContent(ctx context.Context, projectID, name, content string) error
}

type bufferKey struct {
	projectID string
	file      string
}

// Buffer is the debounced persistence buffer. It tracks at most one
// (project, file) key at a time; switching keys drops any unflushed
// state for the previous key, so callers that must not lose edits call
// Flush before switching.
type Buffer struct {
	remote Remote
	mirror MirrorWriter
	delay  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	key      bufferKey
	dirty    bool
	rollback string
	latest   string
	gen      uint64
	timer    *time.Timer
	closed   bool
}

// MirrorWriter is the mirror surface the buffer needs; *mirror.Mirror
// satisfies it.
type MirrorWriter interface {
	File(name string) (mirror.File, bool)
	SetFileContent(name, content string) error
}

// NewBuffer creates a buffer. A non-positive delay selects
// DefaultDelay.
func NewBuffer(remote Remote, m MirrorWriter, delay time.Duration, logger *slog.Logger) *Buffer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Buffer{remote: remote, mirror: m, delay: delay, logger: logger}
}

// Update records a local content edit: the mirror takes the new value
// immediately and the debounce timer restarts. The first edit since the
// buffer was idle captures the current remote-confirmed content as the
// rollback snapshot.
func (b *Buffer) Update(projectID, name, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("persistence buffer is closed")
	}

	k := bufferKey{projectID: projectID, file: name}
	if b.dirty && k != b.key {
		// Key switch drops unflushed state for the previous key.
		// Callers flush explicitly when the pending write matters.
		b.logger.Debug("discarding unflushed edit on key switch",
			"project_id", b.key.projectID, "file", b.key.file)
		b.resetLocked()
	}

	if !b.dirty {
		f, ok := b.mirror.File(name)
		if !ok {
			return fmt.Errorf("cannot edit unknown file %s", name)
		}
		b.key = k
		b.rollback = f.Content
		b.dirty = true
	}

	b.latest = content
	b.gen++

	if err := b.mirror.SetFileContent(name, content); err != nil {
		return fmt.Errorf("failed to apply edit to mirror: %w", err)
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	// Trailing-edge debounce: only the final value in a burst is sent.
	// Failures inside the timer path are logged by flush itself.
	b.timer = time.AfterFunc(b.delay, func() {
		_ = b.flush(context.Background())
	})

	return nil
}

// Flush cancels the pending timer and writes the latest content now.
// It is a no-op when the buffer is idle.
func (b *Buffer) Flush(ctx context.Context) error {
	return b.flush(ctx)
}

// Dirty reports whether an unflushed edit is pending
func (b *Buffer) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// Close stops the timer and drops any pending state without flushing
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.closed = true
}

// resetLocked clears all buffered state. Callers hold the lock.
func (b *Buffer) resetLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.key = bufferKey{}
	b.dirty = false
	b.rollback = ""
	b.latest = ""
}

// flush issues the remote write for the latest buffered content. The
// lock is not held across the network call so a stalled write cannot
// block further local edits.
func (b *Buffer) flush(ctx context.Context) error {
	b.mu.Lock()
	if !b.dirty {
		b.mu.Unlock()
		return nil
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	k := b.key
	content := b.latest
	rollback := b.rollback
	gen := b.gen
	b.mu.Unlock()

	err := b.remote.UpdateFileContent(ctx, k.projectID, k.file, content)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty || b.key != k {
		// The buffer was reset or retargeted while the write was in
		// flight; its state no longer belongs to this flush.
		return err
	}

	if err != nil {
		if b.gen == gen {
			if rerr := b.mirror.SetFileContent(k.file, rollback); rerr != nil {
				b.logger.Error("failed to restore rollback content",
					"file", k.file, "error", rerr)
			}
			b.resetLocked()
		}
		b.logger.Warn("remote write failed, rolled back",
			"project_id", k.projectID, "file", k.file, "error", err)
		return fmt.Errorf("failed to persist %s: %w", k.file, err)
	}

	if b.gen == gen {
		b.resetLocked()
	} else {
		// Newer edits arrived during the write; what the server now
		// holds becomes the rollback snapshot for them.
		b.rollback = content
	}
	return nil
}
