// Package feed turns RSS/Atom announcement feeds into calendar events. Venues
// and race organizers publish date announcements through their news feeds;
// entries whose text carries a recognizable event date become events, the
// rest are ignored.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/capetownstadium/eventcal/event"
	"github.com/capetownstadium/eventcal/scraper"
)

// maxDescription caps the description carried over from a feed entry.
const maxDescription = 500

// Fetch fetches and parses a feed URL. The gofeed parser detects RSS and
// Atom automatically.
func Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	f, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return f, nil
}

// FetchEvents fetches a feed and extracts events from its entries. The
// sourceName is stamped onto each event; loc sets the timezone of extracted
// dates.
func FetchEvents(ctx context.Context, sourceName, url string, now time.Time, loc *time.Location) ([]event.Event, error) {
	f, err := Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return FeedToEvents(f, sourceName, now, loc), nil
}

// FeedToEvents converts feed entries into events. An entry produces an event
// only when its title or description contains a date in the acceptance
// window; announcement chatter without dates is skipped.
func FeedToEvents(f *gofeed.Feed, sourceName string, now time.Time, loc *time.Location) []event.Event {
	var events []event.Event

	for _, item := range f.Items {
		e, ok := itemToEvent(item, sourceName, now, loc)
		if !ok {
			continue
		}
		events = append(events, e)
	}

	return events
}

// itemToEvent extracts one event from a feed entry.
func itemToEvent(item *gofeed.Item, sourceName string, now time.Time, loc *time.Location) (event.Event, bool) {
	// Hunt the title first so a date in the headline wins over older dates
	// recycled in the body.
	dr, ok := scraper.FindDates(item.Title, nil, now, loc)
	if !ok {
		dr, ok = scraper.FindDates(item.Description, nil, now, loc)
	}
	if !ok {
		return event.Event{}, false
	}

	title := item.Title
	if title == "" {
		title = "(No title)"
	}

	e := event.New(title, dr.Start)
	e.AllDay = true
	e.End = dr.End
	e.SourceName = sourceName
	e.URL = item.Link

	desc := item.Description
	if len(desc) > maxDescription {
		desc = desc[:maxDescription] + "..."
	}
	e.Description = desc

	e.Normalize()
	return e, true
}
