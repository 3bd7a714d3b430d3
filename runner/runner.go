// Package runner executes one fetch-parse-emit pass: fetch every enabled
// source, merge the extracted events, and regenerate the published artifacts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/capetownstadium/eventcal/config"
	"github.com/capetownstadium/eventcal/event"
	"github.com/capetownstadium/eventcal/feed"
	"github.com/capetownstadium/eventcal/ical"
	"github.com/capetownstadium/eventcal/scraper"
	"github.com/capetownstadium/eventcal/sources"
	"github.com/capetownstadium/eventcal/stadium"
)

// ErrNoSources is returned when a run finds no enabled sources.
var ErrNoSources = errors.New("no enabled sources")

// ErrAllSourcesFailed is returned when every source failed; the previously
// published artifacts are left untouched.
var ErrAllSourcesFailed = errors.New("all sources failed")

// kindPriority orders merged results so the stadium API wins deduplication
// against scraped pages and feeds advertising the same event.
var kindPriority = map[string]int{
	sources.KindAPI:  0,
	sources.KindHTML: 1,
	sources.KindFeed: 2,
}

// SourceError records one failed source within a run.
type SourceError struct {
	Source sources.Source
	Err    error
}

// Result summarizes one run.
type Result struct {
	StartedAt      time.Time
	Duration       time.Duration
	SourcesFetched int
	SourcesFailed  int
	Events         []event.Event
	Errors         []SourceError
}

// Runner wires the source store to the fetchers and the emitters.
type Runner struct {
	store     *sources.Store
	cfg       *config.Config
	loc       *time.Location
	fetcher   *scraper.Fetcher
	semaphore chan struct{}
}

// New creates a runner from the store and configuration.
func New(store *sources.Store, cfg *config.Config) (*Runner, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Runner{
		store:     store,
		cfg:       cfg,
		loc:       loc,
		fetcher:   scraper.NewFetcher(cfg.Fetch.TimeoutDuration(), cfg.Fetch.UserAgent, loc),
		semaphore: make(chan struct{}, cfg.Fetch.Concurrency),
	}, nil
}

// sourceResult carries one source's outcome back from its fetch goroutine.
type sourceResult struct {
	source sources.Source
	events []event.Event
	err    error
}

// Run performs one full pass. Per-source failures never abort the run; only
// a run in which every source failed (or none exist) returns an error, and
// in that case nothing is emitted.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	startedAt := time.Now()

	srcs, err := r.store.ListEnabled()
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	if len(srcs) == 0 {
		return nil, ErrNoSources
	}

	log.Printf("INFO: Fetching %d enabled sources", len(srcs))

	results := r.fetchAll(ctx, srcs)

	result := &Result{StartedAt: startedAt}
	var collected []event.Event

	// Order by kind priority so dedup keeps the highest-fidelity source
	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := kindPriority[results[i].source.Kind], kindPriority[results[j].source.Kind]
		if pi != pj {
			return pi < pj
		}
		return results[i].source.Name < results[j].source.Name
	})

	for _, res := range results {
		if res.err != nil {
			result.SourcesFailed++
			result.Errors = append(result.Errors, SourceError{Source: res.source, Err: res.err})
			r.recordFailure(res.source, res.err)
			continue
		}
		result.SourcesFetched++
		r.recordSuccess(res.source)
		collected = append(collected, res.events...)
	}

	if result.SourcesFetched == 0 {
		result.Duration = time.Since(startedAt)
		return result, ErrAllSourcesFailed
	}

	collected = event.Dedup(collected)
	event.SortByStart(collected)
	result.Events = collected

	if err := r.emit(collected); err != nil {
		return result, err
	}

	result.Duration = time.Since(startedAt)
	log.Printf("INFO: Run complete: %d events from %d sources (%d failed) in %v",
		len(collected), result.SourcesFetched, result.SourcesFailed, result.Duration)
	return result, nil
}

// fetchAll fetches every source under the concurrency bound.
func (r *Runner) fetchAll(ctx context.Context, srcs []sources.Source) []sourceResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []sourceResult
	)

	for _, src := range srcs {
		select {
		case <-ctx.Done():
			mu.Lock()
			results = append(results, sourceResult{source: src, err: ctx.Err()})
			mu.Unlock()
			continue
		case r.semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(s sources.Source) {
			defer wg.Done()
			defer func() { <-r.semaphore }()

			events, err := r.fetchSource(ctx, s)
			if err != nil {
				log.Printf("ERROR: Failed to fetch source %s (%s): %v", s.Name, s.URL, err)
			} else {
				log.Printf("INFO: Fetched %s: %d events", s.Name, len(events))
			}

			mu.Lock()
			results = append(results, sourceResult{source: s, events: events, err: err})
			mu.Unlock()
		}(src)
	}

	wg.Wait()
	return results
}

// fetchSource dispatches on the source kind.
func (r *Runner) fetchSource(ctx context.Context, src sources.Source) ([]event.Event, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.Fetch.TimeoutDuration())
	defer cancel()

	now := time.Now()

	switch src.Kind {
	case sources.KindAPI:
		client := stadium.NewClient(src.URL, r.cfg.Fetch.TimeoutDuration(), r.cfg.Fetch.UserAgent)
		return client.FetchEvents(fetchCtx, src.Name, now)
	case sources.KindHTML:
		var cfg scraper.Config
		if src.ScraperConfig != nil {
			cfg = *src.ScraperConfig
		}
		return r.fetcher.ScrapeEvents(fetchCtx, src.Name, src.URL, cfg, now)
	case sources.KindFeed:
		return feed.FetchEvents(fetchCtx, src.Name, src.URL, now, r.loc)
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", src.Kind)
	}
}

// recordSuccess resets a source's error bookkeeping.
func (r *Runner) recordSuccess(src sources.Source) {
	now := time.Now()
	zero := 0
	update := sources.Update{
		LastFetchedAt:   &now,
		FetchErrorCount: &zero,
		ClearLastError:  true,
	}
	if err := r.store.ApplyUpdate(src.ID, update); err != nil {
		log.Printf("ERROR: Failed to update source metadata for %s: %v", src.Name, err)
	}
}

// recordFailure updates error bookkeeping and disables sources that are
// permanently broken or have exceeded the failure threshold.
func (r *Runner) recordFailure(src sources.Source, fetchErr error) {
	now := time.Now()
	msg := fetchErr.Error()
	count := src.FetchErrorCount + 1

	update := sources.Update{
		LastFetchedAt:   &now,
		FetchErrorCount: &count,
		LastError:       &msg,
	}

	if isPermanentError(fetchErr) {
		log.Printf("ERROR: Disabling source %s (%s) due to permanent error: %v", src.Name, src.URL, fetchErr)
		update.ClearEnabledAt = true
	} else if count >= r.cfg.Fetch.DisableThreshold {
		log.Printf("ERROR: Auto-disabling source %s (%s) after %d consecutive failures", src.Name, src.URL, count)
		update.ClearEnabledAt = true
	}

	if err := r.store.ApplyUpdate(src.ID, update); err != nil {
		log.Printf("ERROR: Failed to update source metadata for %s: %v", src.Name, err)
	}
}

// isPermanentError reports whether an error is permanent (dead URL, broken
// format) rather than transient (timeouts, temporary server errors).
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "404"), strings.Contains(msg, "not found"):
		return true
	case strings.Contains(msg, "410"), strings.Contains(msg, "gone"):
		return true
	case strings.Contains(msg, "failed to parse"):
		return true
	case strings.Contains(msg, "no such host"):
		return true
	case strings.Contains(msg, "unsupported protocol"), strings.Contains(msg, "invalid url"):
		return true
	}
	return false
}

// emit writes both artifacts.
func (r *Runner) emit(events []event.Event) error {
	opts := ical.Options{
		Name:      r.cfg.Calendar.Name,
		ProdID:    r.cfg.Calendar.ProdID,
		Timezone:  r.cfg.Venue.Timezone,
		TTL:       r.cfg.Calendar.TTL,
		UIDDomain: r.cfg.Calendar.UIDDomain,
	}

	if err := WriteICS(r.cfg.Output.ICSPath, events, opts); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	if r.cfg.Output.SnapshotPath != "" {
		if err := WriteSnapshot(r.cfg.Output.SnapshotPath, r.cfg.Venue.Name, events); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	return nil
}
