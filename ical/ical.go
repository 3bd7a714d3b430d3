// Package ical serializes collected events into a single iCalendar feed
// suitable for subscription by third-party calendar applications.
package ical

import (
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/capetownstadium/eventcal/event"
)

// Options controls calendar-level properties.
type Options struct {
	// Name becomes X-WR-CALNAME, shown by calendar apps as the feed name.
	Name string
	// ProdID identifies the generator.
	ProdID string
	// Timezone becomes X-WR-TIMEZONE.
	Timezone string
	// TTL is the suggested refresh interval (ISO 8601 duration).
	TTL string
	// UIDDomain is the domain part of event UIDs.
	UIDDomain string
}

// DefaultOptions returns the calendar defaults for the stadium feed.
func DefaultOptions() Options {
	return Options{
		Name:      "Cape Town Stadium Events",
		ProdID:    "-//Cape Town Stadium//eventcal//EN",
		Timezone:  "Africa/Johannesburg",
		TTL:       "P1D",
		UIDDomain: "eventcal.capetownstadium",
	}
}

// BuildCalendar assembles the subscription calendar. UIDs are derived from
// the event title and start day, not from the run, so subscribed clients see
// updates to an event instead of duplicates.
func BuildCalendar(events []event.Event, opts Options) *ics.Calendar {
	now := time.Now()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(opts.ProdID)
	cal.SetXWRCalName(opts.Name)
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}
	if opts.TTL != "" {
		cal.SetXPublishedTTL(opts.TTL)
		cal.SetRefreshInterval(opts.TTL)
	}

	for _, e := range events {
		ve := cal.AddEvent(UID(e, opts.UIDDomain))
		ve.SetDtStampTime(now)
		ve.SetCreatedTime(now)
		ve.SetModifiedAt(now)
		ve.SetSummary(e.Title)
		ve.SetLocation(e.Location)

		if e.AllDay {
			// DTEND is exclusive for all-day events: the day after the last day
			ve.SetAllDayStartAt(e.Start)
			ve.SetAllDayEndAt(dayAfter(e.End))
		} else {
			ve.SetStartAt(e.Start.UTC())
			ve.SetEndAt(e.End.UTC())
		}

		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.URL != "" {
			ve.SetURL(e.URL)
		}
	}

	return cal
}

// Serialize renders the calendar for the given events as ICS text.
func Serialize(events []event.Event, opts Options) string {
	return BuildCalendar(events, opts).Serialize()
}

// Write renders the calendar to w.
func Write(w io.Writer, events []event.Event, opts Options) error {
	return BuildCalendar(events, opts).SerializeTo(w)
}

// UID returns the stable identifier for an event: a title slug plus the
// start day at the feed's domain.
func UID(e event.Event, domain string) string {
	return Slug(e.Title) + "-" + e.Start.Format("20060102") + "@" + domain
}

// Slug lowercases a title and collapses every non-alphanumeric run to a
// single dash.
func Slug(s string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// dayAfter returns midnight of the day after t, in t's location.
func dayAfter(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
