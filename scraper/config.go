package scraper

import (
	"fmt"
	"regexp"
)

// Config defines how to extract events from a specific website. It is stored
// as JSON alongside the source record, so every field must round-trip cleanly.
type Config struct {
	// Mode selects the extraction strategy: "page" (default) hunts the whole
	// visible page text for date patterns, "list" iterates matched elements.
	Mode string `json:"mode,omitempty"`

	// ContainerSelector narrows page-mode extraction to one element's text.
	ContainerSelector string `json:"container_selector,omitempty"`

	// List-mode selectors. ItemSelector matches one element per event;
	// TitleSelector and DateSelector are resolved within each item and fall
	// back to the item's own text when empty.
	ItemSelector  string `json:"item_selector,omitempty"`
	TitleSelector string `json:"title_selector,omitempty"`
	DateSelector  string `json:"date_selector,omitempty"`
	URLSelector   string `json:"url_selector,omitempty"`

	// Patterns are site-specific date regexes tried before the generic set.
	// They use the same named groups as the generic patterns (d1, d2, mon,
	// mon1, mon2, year).
	Patterns []string `json:"patterns,omitempty"`
}

// ModeList is the list-mode discriminator; anything else means page mode.
const ModeList = "list"

// CompilePatterns compiles the site-specific patterns. An empty pattern list
// is valid and yields nil.
func (c *Config) CompilePatterns() ([]*regexp.Regexp, error) {
	if len(c.Patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid date pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Validate checks the config for internal consistency.
func (c *Config) Validate() error {
	if c.Mode == ModeList && c.ItemSelector == "" {
		return fmt.Errorf("list mode requires item_selector")
	}
	if _, err := c.CompilePatterns(); err != nil {
		return err
	}
	return nil
}
