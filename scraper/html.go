package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/capetownstadium/eventcal/event"
)

// DefaultUserAgent identifies the scraper to upstream sites.
const DefaultUserAgent = "eventcal/1.0 (Cape Town Stadium event calendar)"

// Fetcher fetches and scrapes HTML event pages.
type Fetcher struct {
	client    *http.Client
	userAgent string
	loc       *time.Location
}

// NewFetcher creates a fetcher with the given timeout and user agent. An
// empty user agent falls back to DefaultUserAgent; a nil location means UTC.
func NewFetcher(timeout time.Duration, userAgent string, loc *time.Location) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		loc:       loc,
	}
}

// FetchDocument fetches a URL and parses it into a goquery document.
func (f *Fetcher) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ScrapeEvents fetches a page and extracts events according to the config.
// Page mode yields at most one event named after the source; list mode
// yields one event per matched element that carries a recognizable date.
func (f *Fetcher) ScrapeEvents(ctx context.Context, name, pageURL string, cfg Config, now time.Time) ([]event.Event, error) {
	sitePatterns, err := cfg.CompilePatterns()
	if err != nil {
		return nil, err
	}

	doc, err := f.FetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if cfg.Mode == ModeList {
		return f.extractList(doc, name, pageURL, cfg, sitePatterns, now), nil
	}
	return f.extractPage(doc, name, pageURL, cfg, sitePatterns, now), nil
}

// extractPage hunts the page's visible text for a date and produces a single
// all-day event named after the source. Sites for recurring events (a
// marathon, a cycle tour) publish exactly one upcoming date, so one hit is
// the expected shape.
func (f *Fetcher) extractPage(doc *goquery.Document, name, pageURL string, cfg Config, sitePatterns []*regexp.Regexp, now time.Time) []event.Event {
	sel := doc.Selection
	if cfg.ContainerSelector != "" {
		sel = doc.Find(cfg.ContainerSelector)
	}
	text := VisibleText(sel)

	dr, ok := FindDates(text, sitePatterns, now, f.loc)
	if !ok {
		return nil
	}

	e := event.New(name, dr.Start)
	e.AllDay = true
	e.End = dr.End
	e.URL = pageURL
	e.SourceName = name
	e.Normalize()
	return []event.Event{e}
}

// extractList iterates the configured item elements and extracts one event
// per element. Elements without a recognizable date are skipped.
func (f *Fetcher) extractList(doc *goquery.Document, name, pageURL string, cfg Config, sitePatterns []*regexp.Regexp, now time.Time) []event.Event {
	var events []event.Event

	doc.Find(cfg.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		title := itemText(item, cfg.TitleSelector)
		dateText := itemText(item, cfg.DateSelector)

		dr, ok := FindDates(dateText, sitePatterns, now, f.loc)
		if !ok {
			return
		}

		e := event.New(title, dr.Start)
		e.AllDay = true
		e.End = dr.End
		e.SourceName = name
		e.URL = itemURL(item, cfg.URLSelector, pageURL)
		e.Normalize()
		events = append(events, e)
	})

	return events
}

// itemText resolves a selector within an item, falling back to the item's own
// text, and normalizes whitespace.
func itemText(item *goquery.Selection, selector string) string {
	if selector == "" {
		return VisibleText(item)
	}
	return VisibleText(item.Find(selector).First())
}

// itemURL extracts and resolves an href from within an item. Returns the page
// URL when no link is configured or found.
func itemURL(item *goquery.Selection, selector, pageURL string) string {
	if selector == "" {
		return pageURL
	}
	href, ok := item.Find(selector).First().Attr("href")
	if !ok || href == "" {
		return pageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return pageURL
	}
	return base.ResolveReference(ref).String()
}

// VisibleText extracts the selection's text content with all runs of
// whitespace collapsed to single spaces.
func VisibleText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
