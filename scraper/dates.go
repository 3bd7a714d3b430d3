package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MonthsPattern matches English month names and their common abbreviations
// ("Sep" and "Sept" included).
const MonthsPattern = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

// SepPattern matches the range separators event sites use between dates:
// dashes of every width plus textual markers.
const SepPattern = `(?:-|–|—|to|until|through|thru)`

const ordinal = `(?:st|nd|rd|th)?`

// DateRange is the result of a successful date extraction. Start and End are
// midnight of the first and last day of the range; single days have
// Start == End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// genericPatterns is the fallback pattern set, tried in order from most to
// least specific so a cross-month range is never misread as a single day.
var genericPatterns = []*regexp.Regexp{
	// Cross-month range: "30 Sep – 1 Oct 2025"
	regexp.MustCompile(`(?i)(?P<d1>\d{1,2})` + ordinal + `\s*(?P<mon1>` + MonthsPattern + `)\s*` + SepPattern + `\s*(?P<d2>\d{1,2})` + ordinal + `\s*(?P<mon2>` + MonthsPattern + `)\s*,?\s*(?P<year>20\d{2})`),
	// Single-month range: "18 - 19 October 2025"
	regexp.MustCompile(`(?i)(?P<d1>\d{1,2})` + ordinal + `\s*` + SepPattern + `\s*(?P<d2>\d{1,2})` + ordinal + `\s*(?:of\s+)?(?P<mon>` + MonthsPattern + `)\s*,?\s*(?P<year>20\d{2})`),
	// Month-first range: "October 18–19, 2025"
	regexp.MustCompile(`(?i)(?P<mon>` + MonthsPattern + `)\s+(?P<d1>\d{1,2})` + ordinal + `\s*` + SepPattern + `\s*(?P<d2>\d{1,2})` + ordinal + `\s*,?\s*(?P<year>20\d{2})`),
	// Single day: "15th of March 2025"
	regexp.MustCompile(`(?i)(?P<d1>\d{1,2})` + ordinal + `\s*(?:of\s+)?(?P<mon>` + MonthsPattern + `)\s*,?\s*(?P<year>20\d{2})`),
	// Month-first single day: "March 15th, 2025"
	regexp.MustCompile(`(?i)(?P<mon>` + MonthsPattern + `)\s+(?P<d1>\d{1,2})` + ordinal + `\s*,?\s*(?P<year>20\d{2})`),
}

// GenericPatterns returns the generic fallback pattern set.
func GenericPatterns() []*regexp.Regexp {
	return genericPatterns
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// MonthFromToken resolves a month name or abbreviation ("Oct", "Sept",
// "october") to a time.Month.
func MonthFromToken(token string) (time.Month, bool) {
	tok := strings.ToLower(strings.TrimSpace(token))
	if len(tok) < 3 {
		return 0, false
	}
	for i, name := range monthNames {
		if strings.HasPrefix(name, tok) {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// FindDates runs the given patterns over text and returns the first date or
// date range in the acceptance window. Site-specific patterns should be
// passed first; pass nil to use only the generic set. Only dates in the
// current or next calendar year (relative to now) are accepted, so stale
// pages still advertising last year's event produce nothing.
func FindDates(text string, sitePatterns []*regexp.Regexp, now time.Time, loc *time.Location) (DateRange, bool) {
	if loc == nil {
		loc = time.UTC
	}
	patterns := make([]*regexp.Regexp, 0, len(sitePatterns)+len(genericPatterns))
	patterns = append(patterns, sitePatterns...)
	patterns = append(patterns, genericPatterns...)

	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		groups := subexpMap(re, m)

		year, err := strconv.Atoi(groups["year"])
		if err != nil || !isRecentYear(year, now) {
			continue
		}

		// Cross-month range
		if groups["d1"] != "" && groups["mon1"] != "" && groups["d2"] != "" && groups["mon2"] != "" {
			start, ok1 := makeDate(groups["d1"], groups["mon1"], year, loc)
			end, ok2 := makeDate(groups["d2"], groups["mon2"], year, loc)
			if ok1 && ok2 {
				return DateRange{Start: start, End: end}, true
			}
			continue
		}

		// Same-month range
		if groups["d1"] != "" && groups["d2"] != "" && groups["mon"] != "" {
			start, ok1 := makeDate(groups["d1"], groups["mon"], year, loc)
			end, ok2 := makeDate(groups["d2"], groups["mon"], year, loc)
			if ok1 && ok2 {
				return DateRange{Start: start, End: end}, true
			}
			continue
		}

		// Single day
		if groups["d1"] != "" && groups["mon"] != "" {
			day, ok := makeDate(groups["d1"], groups["mon"], year, loc)
			if ok {
				return DateRange{Start: day, End: day}, true
			}
		}
	}

	return DateRange{}, false
}

// isRecentYear reports whether year falls in the acceptance window: the
// current year or the next.
func isRecentYear(year int, now time.Time) bool {
	return year >= now.Year() && year <= now.Year()+1
}

// makeDate builds a midnight timestamp from a day token and a month token.
func makeDate(dayToken, monthToken string, year int, loc *time.Location) (time.Time, bool) {
	day, err := strconv.Atoi(stripOrdinal(dayToken))
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := MonthFromToken(monthToken)
	if !ok {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	// time.Date normalizes overflow (31 Feb -> 3 Mar); reject that
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// stripOrdinal removes a trailing ordinal suffix ("15th" -> "15").
func stripOrdinal(s string) string {
	s = strings.TrimSpace(s)
	for _, suffix := range []string{"st", "nd", "rd", "th", "ST", "ND", "RD", "TH"} {
		if strings.HasSuffix(s, suffix) {
			return s[:len(s)-len(suffix)]
		}
	}
	return s
}

// subexpMap maps named capture groups to their matched text.
func subexpMap(re *regexp.Regexp, match []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			groups[name] = match[i]
		}
	}
	return groups
}
