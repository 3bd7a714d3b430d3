package runner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capetownstadium/eventcal/config"
	"github.com/capetownstadium/eventcal/sources"
)

// nextYear keeps test fixtures inside the scraper's acceptance window.
var nextYear = time.Now().Year() + 1

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Venue.Timezone = "UTC"
	cfg.Output.ICSPath = filepath.Join(dir, "calendar.ics")
	cfg.Output.SnapshotPath = filepath.Join(dir, "events.json")
	cfg.Store.DSN = filepath.Join(dir, "sources.db")
	cfg.Fetch.Timeout = "5s"
	return cfg
}

func newTestStore(t *testing.T, cfg *config.Config) *sources.Store {
	t.Helper()
	store, err := sources.NewStore(cfg.Store.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func apiServer(t *testing.T, title string) *httptest.Server {
	t.Helper()
	payload := fmt.Sprintf(`{
	  "data": [{"id": 1, "attributes": {"event": [
	    {"title": %q, "description": "From the stadium API",
	     "daterange": [{"start": "%d-03-15T18:00:00.000Z", "end": "%d-03-15T22:00:00.000Z"}]}
	  ]}}],
	  "meta": {"pagination": {"page": 1, "pageSize": 100, "pageCount": 1, "total": 1}}
	}`, title, nextYear, nextYear)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body>%s</body></html>", body)
	}))
	t.Cleanup(server.Close)
	return server
}

func addSource(t *testing.T, store *sources.Store, kind, url, name string) *sources.Source {
	t.Helper()
	now := time.Now()
	src, err := store.Create(kind, url, name, nil, &now)
	require.NoError(t, err)
	return src
}

// TestRun_EndToEnd verifies a mixed-source run emits both artifacts
func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t, cfg)

	api := apiServer(t, "Stadium Concert")
	site := htmlServer(t, fmt.Sprintf("<p>Race day: 8 March %d</p>", nextYear))

	apiSrc := addSource(t, store, sources.KindAPI, api.URL, "DHL Stadium")
	addSource(t, store, sources.KindHTML, site.URL, "Cycle Tour")

	r, err := New(store, cfg)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SourcesFetched)
	assert.Equal(t, 0, result.SourcesFailed)
	require.Len(t, result.Events, 2)

	// Calendar artifact
	ics, err := os.ReadFile(cfg.Output.ICSPath)
	require.NoError(t, err)
	assert.Contains(t, string(ics), "SUMMARY:Stadium Concert")
	assert.Contains(t, string(ics), "SUMMARY:Cycle Tour")

	// Snapshot artifact
	snap, err := ReadSnapshot(cfg.Output.SnapshotPath)
	require.NoError(t, err)
	assert.Len(t, snap.Events, 2)
	assert.Equal(t, cfg.Venue.Name, snap.Venue)

	// Fetch health updated
	got, err := store.Get(apiSrc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastFetchedAt)
	assert.Equal(t, 0, got.FetchErrorCount)
	assert.Nil(t, got.LastError)
}

// TestRun_PartialFailure verifies a run still publishes when one source fails
func TestRun_PartialFailure(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t, cfg)

	good := htmlServer(t, fmt.Sprintf("15 March %d", nextYear))
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	t.Cleanup(dead.Close)

	addSource(t, store, sources.KindHTML, good.URL, "Race")
	deadSrc := addSource(t, store, sources.KindHTML, dead.URL, "Dead Site")

	r, err := New(store, cfg)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err, "a partial failure is not a run failure")

	assert.Equal(t, 1, result.SourcesFetched)
	assert.Equal(t, 1, result.SourcesFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Dead Site", result.Errors[0].Source.Name)

	_, err = os.Stat(cfg.Output.ICSPath)
	assert.NoError(t, err, "artifacts are published despite the failed source")

	// 404 is permanent: the source is disabled immediately
	got, err := store.Get(deadSrc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnabled())
	assert.Equal(t, 1, got.FetchErrorCount)
	require.NotNil(t, got.LastError)
}

// TestRun_AllFailed verifies nothing is emitted when every source fails
func TestRun_AllFailed(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t, cfg)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	addSource(t, store, sources.KindHTML, broken.URL, "Broken")

	r, err := New(store, cfg)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAllSourcesFailed)

	_, statErr := os.Stat(cfg.Output.ICSPath)
	assert.True(t, os.IsNotExist(statErr), "previous artifacts must be left untouched")
}

// TestRun_NoSources verifies the empty-store error
func TestRun_NoSources(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t, cfg)

	r, err := New(store, cfg)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoSources)
}

// TestRun_TransientThresholdDisables verifies the auto-disable counter
func TestRun_TransientThresholdDisables(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fetch.DisableThreshold = 2
	store := newTestStore(t, cfg)

	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "temporarily busted", http.StatusServiceUnavailable)
	}))
	t.Cleanup(flaky.Close)

	src := addSource(t, store, sources.KindHTML, flaky.URL, "Flaky")

	r, err := New(store, cfg)
	require.NoError(t, err)

	// First failure: still enabled
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	got, err := store.Get(src.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnabled())
	assert.Equal(t, 1, got.FetchErrorCount)

	// Second failure: threshold reached, disabled
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	got, err = store.Get(src.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnabled())
	assert.Equal(t, 2, got.FetchErrorCount)
}

// TestRun_DedupPrefersAPI verifies the API wins against a scraped duplicate
func TestRun_DedupPrefersAPI(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t, cfg)

	api := apiServer(t, "Stadium Concert")
	// Same title and day from a scraped page
	site := htmlServer(t, fmt.Sprintf("15 March %d", nextYear))

	addSource(t, store, sources.KindAPI, api.URL, "DHL Stadium")
	addSource(t, store, sources.KindHTML, site.URL, "Stadium Concert")

	r, err := New(store, cfg)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Events, 1, "duplicates across sources collapse")
	assert.False(t, result.Events[0].AllDay, "the timed API record wins")
	assert.Equal(t, "From the stadium API", result.Events[0].Description)
}

// TestIsPermanentError verifies the error classification table
func TestIsPermanentError(t *testing.T) {
	permanent := []string{
		"HTTP error: 404 Not Found",
		"HTTP error: 410 Gone",
		"failed to parse events payload: unexpected token",
		"dial tcp: lookup nope.example: no such host",
	}
	for _, msg := range permanent {
		assert.True(t, isPermanentError(fmt.Errorf("%s", msg)), msg)
	}

	transient := []string{
		"HTTP error: 503 Service Unavailable",
		"context deadline exceeded",
		"connection refused",
	}
	for _, msg := range transient {
		assert.False(t, isPermanentError(fmt.Errorf("%s", msg)), msg)
	}

	assert.False(t, isPermanentError(nil))
}
