package event

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultVenue is the location attached to events that don't carry their own.
const DefaultVenue = "DHL Stadium, Cape Town"

// Event represents a single venue event parsed from an upstream source.
// Events are rebuilt from scratch on every run; nothing here survives between
// runs except through the emitted artifacts.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location"`
	URL         string    `json:"url,omitempty"`
	SourceName  string    `json:"source_name"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// New creates an event with a fresh ID and the fetch timestamp set.
func New(title string, start time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Title:     title,
		Start:     start,
		Location:  DefaultVenue,
		FetchedAt: time.Now(),
	}
}

// Normalize fills in derived fields. If the end time is missing or not after
// the start, it becomes 23:59:59 of the start day, matching how the upstream
// listings behave for single-day events with no published end.
func (e *Event) Normalize() {
	if e.Title == "" {
		e.Title = "(No title)"
	}
	if e.Location == "" {
		e.Location = DefaultVenue
	}
	if e.End.IsZero() || !e.End.After(e.Start) {
		y, m, d := e.Start.Date()
		e.End = time.Date(y, m, d, 23, 59, 59, 0, e.Start.Location())
	}
}

// Key returns the deduplication key for an event: case-folded title plus the
// start day. Two sources advertising the same event on the same day collapse
// into one calendar entry.
func (e *Event) Key() string {
	return strings.ToLower(strings.TrimSpace(e.Title)) + "|" + e.Start.Format("2006-01-02")
}

// Dedup removes duplicate events, keeping the first occurrence of each key.
// Input order decides the winner, so callers should append higher-fidelity
// sources first.
func Dedup(events []Event) []Event {
	seen := make(map[string]bool, len(events))
	out := events[:0]
	for _, e := range events {
		k := e.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// SortByStart orders events chronologically, breaking ties by title so output
// is stable across runs.
func SortByStart(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].Title < events[j].Title
	})
}
