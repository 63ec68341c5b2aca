package transcript

import (
	"fmt"

	"github.com/webgenai/genctl/internal/protocol"
)

// Formatter renders streamed pipeline events for console output
type Formatter struct{}

// NewFormatter creates a new transcript formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatEvent formats one event for console display. Events with no
// console representation (heartbeats never reach this layer, unknown
// events carry opaque payloads) yield an empty string.
func (f *Formatter) FormatEvent(ev protocol.Event) string {
	switch e := ev.(type) {
	case protocol.StatusEvent:
		return fmt.Sprintf("[%s] %s", e.Step, e.State)

	case protocol.LogEvent:
		if e.Stream != "" {
			return fmt.Sprintf("%s: %s", e.Stream, e.Chunk)
		}
		return e.Chunk

	case protocol.TitleEvent:
		return fmt.Sprintf("Title: %s", e.Title)

	case protocol.RouterResultEvent:
		return fmt.Sprintf("Routed to %s (confidence %.2f)", e.Domain, e.Confidence)

	case protocol.PlanReadyEvent:
		return fmt.Sprintf("Plan ready: %d file(s)", e.Files)

	case protocol.DoneEvent:
		if e.OK {
			return "Run complete"
		}
		if e.Error != "" {
			return fmt.Sprintf("Run failed: %s", e.Error)
		}
		return "Run failed"

	default:
		return ""
	}
}

// FormatSize formats a byte size in a human-readable format
func (f *Formatter) FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
