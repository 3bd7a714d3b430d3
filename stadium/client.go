// Package stadium fetches event listings from the stadium's public content
// API (a Strapi instance backing the venue website).
package stadium

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/capetownstadium/eventcal/event"
)

// DefaultBaseURL is the venue's content API.
const DefaultBaseURL = "https://content-dhlstadium.azurewebsites.net"

// pageSize is the Strapi pagination page size requested per call.
const pageSize = 100

// sinceLayout matches the timestamp format the API's $gte filter expects.
const sinceLayout = "2006-01-02T15:04:05.000Z"

// Client talks to the stadium events API.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// NewClient creates a stadium API client. An empty baseURL falls back to
// DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, userAgent string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// eventsResponse mirrors the Strapi payload shape: each data item wraps a
// list of event components, each carrying one or more date ranges.
type eventsResponse struct {
	Data []struct {
		ID         int `json:"id"`
		Attributes struct {
			Event []eventComponent `json:"event"`
		} `json:"attributes"`
	} `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageSize  int `json:"pageSize"`
			PageCount int `json:"pageCount"`
			Total     int `json:"total"`
		} `json:"pagination"`
	} `json:"meta"`
}

type eventComponent struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Daterange   []dateRange `json:"daterange"`
}

type dateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FetchEvents fetches all upcoming events starting at or after since. The
// sourceName is stamped onto each returned event. Follows the API's
// pagination metadata until all pages are consumed.
func (c *Client) FetchEvents(ctx context.Context, sourceName string, since time.Time) ([]event.Event, error) {
	var events []event.Event

	page := 1
	for {
		resp, err := c.fetchPage(ctx, since, page)
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Data {
			for _, comp := range item.Attributes.Event {
				events = append(events, componentEvents(comp, sourceName)...)
			}
		}

		if resp.Meta.Pagination.PageCount == 0 || page >= resp.Meta.Pagination.PageCount {
			break
		}
		page++
	}

	return events, nil
}

// fetchPage performs one paginated API call.
func (c *Client) fetchPage(ctx context.Context, since time.Time, page int) (*eventsResponse, error) {
	q := url.Values{}
	q.Set("filters[event][daterange][start][$gte]", since.UTC().Format(sinceLayout))
	q.Set("populate[0]", "event.image")
	q.Set("populate[1]", "event.daterange")
	q.Set("populate[2]", "thumbnail")
	q.Set("pagination[page]", strconv.Itoa(page))
	q.Set("pagination[pageSize]", strconv.Itoa(pageSize))

	reqURL := c.baseURL + "/api/events?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var parsed eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse events payload: %w", err)
	}

	return &parsed, nil
}

// componentEvents expands one event component into calendar events, one per
// date range. Ranges without a parseable start are dropped; a missing or
// non-positive end is repaired by normalization (end of the start day).
func componentEvents(comp eventComponent, sourceName string) []event.Event {
	var events []event.Event

	for _, dr := range comp.Daterange {
		start, err := parseAPITime(dr.Start)
		if err != nil {
			continue
		}

		e := event.New(comp.Title, start)
		e.Description = comp.Description
		e.SourceName = sourceName

		if end, err := parseAPITime(dr.End); err == nil {
			e.End = end
		}
		e.Normalize()
		events = append(events, e)
	}

	return events
}

// parseAPITime parses the API's ISO 8601 timestamps.
func parseAPITime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	return time.Parse(time.RFC3339, s)
}
