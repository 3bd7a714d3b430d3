package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/capetownstadium/eventcal/event"
	"github.com/capetownstadium/eventcal/ical"
)

// Snapshot is the JSON sidecar published next to the calendar, mainly for
// debugging and for consumers that don't speak iCalendar.
type Snapshot struct {
	UpdatedAt time.Time     `json:"updated_at"`
	Venue     string        `json:"venue"`
	Events    []event.Event `json:"events"`
}

// WriteICS serializes the events and writes the calendar file atomically.
func WriteICS(path string, events []event.Event, opts ical.Options) error {
	return writeAtomic(path, []byte(ical.Serialize(events, opts)))
}

// WriteSnapshot writes the JSON snapshot atomically.
func WriteSnapshot(path, venue string, events []event.Event) error {
	if events == nil {
		events = []event.Event{}
	}
	snap := Snapshot{
		UpdatedAt: time.Now().UTC(),
		Venue:     venue,
		Events:    events,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return writeAtomic(path, data)
}

// ReadSnapshot loads a previously written snapshot.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// writeAtomic writes data to path via a temp file and rename, so readers of
// the published artifact never observe a partial write.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
