package sources

import (
	"errors"
	"fmt"
	"time"

	"github.com/capetownstadium/eventcal/scraper"
	"github.com/capetownstadium/eventcal/stadium"
)

// seedSource is one entry of the built-in source set.
type seedSource struct {
	Kind   string
	Name   string
	URL    string
	Config *scraper.Config
}

// sepDay matches a day range separator inside a site pattern.
const sepDay = `(?:st|nd|rd|th)?\s*(?:-|–|—|to|until|through|thru)\s*`

// sitePattern builds the usual "D - D Month YYYY" pattern pinned to one
// month, so a page can mention other dates without confusing extraction.
func sitePattern(monthRe string) string {
	return `(?i)(?P<d1>\d{1,2})` + sepDay + `(?P<d2>\d{1,2})(?:st|nd|rd|th)?\s*(?:of\s+)?(?P<mon>` + monthRe + `)\s*,?\s*(?P<year>20\d{2})`
}

// singleDayPattern builds a single-day pattern pinned to one month.
func singleDayPattern(monthRe string) string {
	return `(?i)(?P<d1>\d{1,2})(?:st|nd|rd|th)?\s*(?:of\s+)?(?P<mon>` + monthRe + `)\s*,?\s*(?P<year>20\d{2})`
}

// defaultSeeds is the stadium API plus the major Cape Town events whose road
// closures affect the venue precinct. Each site gets patterns pinned to the
// month its event traditionally runs in.
var defaultSeeds = []seedSource{
	{
		Kind: KindAPI,
		Name: "DHL Stadium",
		URL:  stadium.DefaultBaseURL,
	},
	{
		Kind: KindHTML,
		Name: "Cape Town Cycle Tour",
		URL:  "https://www.capetowncycletour.com/",
		Config: &scraper.Config{Patterns: []string{
			sitePattern(`Mar(?:ch)?`),
			singleDayPattern(`Mar(?:ch)?`),
		}},
	},
	{
		Kind: KindHTML,
		Name: "Two Oceans Marathon",
		URL:  "https://www.twooceansmarathon.org.za/",
		Config: &scraper.Config{Patterns: []string{
			sitePattern(`Apr(?:il)?`),
		}},
	},
	{
		Kind: KindHTML,
		Name: "Sanlam Cape Town Marathon",
		URL:  "https://www.capetownmarathon.com/",
		Config: &scraper.Config{Patterns: []string{
			sitePattern(`Oct(?:ober)?`),
		}},
	},
	{
		Kind: KindHTML,
		Name: "Absa Cape Epic",
		URL:  "https://www.cape-epic.com/",
		Config: &scraper.Config{Patterns: []string{
			sitePattern(`Mar(?:ch)?`),
		}},
	},
	{
		// TODO: the Gun Run has several qualifying races per year; this only
		// catches the main September event.
		Kind: KindHTML,
		Name: "The Gun Run",
		URL:  "https://thegunrun.co.za/",
		Config: &scraper.Config{Patterns: []string{
			sitePattern(`Sep(?:t(?:ember)?)?`),
		}},
	},
	{
		Kind: KindHTML,
		Name: "Cape Town Carnival",
		URL:  "https://capetowncarnival.com/",
		Config: &scraper.Config{Patterns: []string{
			singleDayPattern(`Mar(?:ch)?`),
		}},
	},
	{
		Kind: KindHTML,
		Name: "Knysna Cycle Tour",
		URL:  "https://knysnacycle.co.za/",
		Config: &scraper.Config{Patterns: []string{
			`(?i)(?P<d1>\d{1,2})(?:st|nd|rd|th)?\s*(?P<mon1>Jun(?:e)?)\s*(?:-|–|—|to|until|through|thru)\s*(?P<d2>\d{1,2})(?:st|nd|rd|th)?\s*(?P<mon2>Jul(?:y)?)\s*,?\s*(?P<year>20\d{2})`,
		}},
	},
}

// Seed inserts the built-in source set, enabled, skipping any URL that
// already exists. Returns the number of sources inserted.
func (s *Store) Seed() (int, error) {
	now := time.Now()
	inserted := 0

	for _, seed := range defaultSeeds {
		enabledAt := now
		_, err := s.Create(seed.Kind, seed.URL, seed.Name, seed.Config, &enabledAt)
		if errors.Is(err, ErrDuplicateURL) {
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("failed to seed source %q: %w", seed.Name, err)
		}
		inserted++
	}

	return inserted, nil
}
