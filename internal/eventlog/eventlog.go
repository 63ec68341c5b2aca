// Package eventlog captures received pipeline events to an NDJSON file
// so a run can be replayed or inspected after the fact.
package eventlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/webgenai/genctl/internal/ndjson"
	"github.com/webgenai/genctl/internal/protocol"
)

// Record is one captured event as written to the log file
type Record struct {
	ReceivedAt time.Time          `json:"received_at"`
	EventType  protocol.EventType `json:"event_type"`
	Event      any                `json:"event"`
}

// EventLog writes received pipeline events to an NDJSON file
type EventLog struct {
	path    string
	file    *os.File
	encoder *ndjson.Encoder
	logger  *slog.Logger
	mu      sync.Mutex
}

// New creates a capture log for runID under dir. The file name carries
// a short random suffix so repeated runs against the same id never
// collide.
func New(dir, runID string, logger *slog.Logger) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.ndjson", runID, uuid.New().String()[:8])
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &EventLog{
		path:    path,
		file:    file,
		encoder: ndjson.NewEncoder(file, logger),
		logger:  logger,
	}, nil
}

// Path returns the location of the capture file
func (l *EventLog) Path() string {
	return l.path
}

// Write appends a received event to the log. Unknown events are
// recorded with their raw payload intact.
func (l *EventLog) Write(ev protocol.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		ReceivedAt: time.Now().UTC(),
		EventType:  ev.EventType(),
		Event:      ev,
	}
	if unknown, ok := ev.(protocol.UnknownEvent); ok {
		rec.Event = unknown.Raw
	}

	return l.encoder.Encode(rec)
}

// Replay reads every record from a capture file in write order.
func Replay(path string, logger *slog.Logger) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	defer file.Close()

	decoder := ndjson.NewDecoder(file, logger)

	var records []Record
	for {
		var rec Record
		if err := decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read capture file %s: %w", path, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// Latest returns the most recently modified capture file for runID
// under dir. Repeated watches of the same run leave one file each, so
// the newest one reflects the last session.
func Latest(dir, runID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, runID+"-*.ndjson"))
	if err != nil {
		return "", fmt.Errorf("failed to list capture files: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no capture files for run %s under %s", runID, dir)
	}

	var latest string
	var latestMod time.Time
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to stat capture file: %w", err)
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = path
			latestMod = info.ModTime()
		}
	}

	return latest, nil
}

// Close closes the capture file
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
