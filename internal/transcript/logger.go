package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iammorganparry/datachat/internal/model"
)

// Logger appends every conversation entry to an NDJSON file for debugging.
// The file is never read back. A nil *Logger is a valid no-op.
type Logger struct {
	file     *os.File
	path     string
	mu       sync.Mutex
	eventSeq int
}

// Event is one logged line after the metadata header
type Event struct {
	Timestamp string         `json:"timestamp"`
	EventSeq  int            `json:"event_seq"`
	EventType string         `json:"event_type"`
	Entry     *EntryRecord   `json:"entry,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EntryRecord is the logged form of a conversation entry
type EntryRecord struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Text      string          `json:"text"`
	CreatedAt string          `json:"created_at"`
	Kind      string          `json:"kind"`
	Rows      int             `json:"rows,omitempty"`
	ChartKind string          `json:"chart_kind,omitempty"`
	Chart     json.RawMessage `json:"chart,omitempty"`
	Insight   string          `json:"insight,omitempty"`
	Success   *bool           `json:"success,omitempty"`
	Notice    string          `json:"notice,omitempty"`
}

// New creates dir and opens a fresh conversation-<timestamp>.ndjson in it.
// meta is written into the header line.
func New(dir string, meta map[string]any) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	now := time.Now()
	logPath := filepath.Join(dir, fmt.Sprintf("conversation-%s.ndjson", now.Format("20060102-150405.000")))
	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	header := map[string]any{
		"type":      "session_metadata",
		"timestamp": now.UTC().Format(time.RFC3339),
		"log_path":  logPath,
	}
	for k, v := range meta {
		header[k] = v
	}
	if data, err := json.Marshal(header); err == nil {
		file.Write(append(data, '\n'))
		file.Sync()
	}

	return &Logger{file: file, path: logPath}, nil
}

// Path returns the transcript file path
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// EntryAppended logs an entry as part of the conversation
func (l *Logger) EntryAppended(e model.Entry) {
	if l == nil {
		return
	}
	rec := &EntryRecord{
		ID:        e.ID,
		Role:      string(e.Role),
		Text:      e.Text,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		Kind:      e.Kind.String(),
		Rows:      e.Table.Len(),
		Insight:   e.Insight,
		Success:   e.Success,
		Notice:    e.Notice,
	}
	if e.Chart != nil {
		rec.ChartKind = e.Chart.Kind
		if e.Chart.HasRenderable() {
			rec.Chart = e.Chart.Renderable
		}
	}
	l.write(Event{EventType: "entry", Entry: rec})
}

// Cleared marks a session reset so the next entries read as a new conversation
func (l *Logger) Cleared(dropped int) {
	l.LogEvent("reset", map[string]any{"dropped_entries": dropped})
}

// LogEvent logs a session event that is not an entry
func (l *Logger) LogEvent(eventType string, metadata map[string]any) {
	if l == nil {
		return
	}
	l.write(Event{EventType: eventType, Metadata: metadata})
}

func (l *Logger) write(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.eventSeq++
	ev.EventSeq = l.eventSeq
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	l.file.Write(append(data, '\n'))
	l.file.Sync()
}

// Close closes the transcript file
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}
