package sources

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capetownstadium/eventcal/scraper"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "sources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestCreateAndGet verifies round-tripping a source with scraper config
func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	cfg := &scraper.Config{
		Mode:          scraper.ModeList,
		ItemSelector:  "article.event",
		TitleSelector: ".title",
		DateSelector:  ".date",
	}
	now := time.Now()

	created, err := store.Create(KindHTML, "https://example.com/events", "Example Events", cfg, &now)
	require.NoError(t, err)
	assert.True(t, created.IsEnabled())

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, KindHTML, got.Kind)
	assert.Equal(t, "Example Events", got.Name)
	assert.Equal(t, "https://example.com/events", got.URL)
	require.NotNil(t, got.ScraperConfig)
	assert.Equal(t, "article.event", got.ScraperConfig.ItemSelector)
	assert.Equal(t, 0, got.FetchErrorCount)
}

// TestCreate_InvalidKind verifies kind validation
func TestCreate_InvalidKind(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("carrier-pigeon", "https://example.com", "Nope", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSourceKind)
}

// TestCreate_DuplicateURL verifies the unique URL constraint
func TestCreate_DuplicateURL(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(KindFeed, "https://example.com/feed", "Feed", nil, nil)
	require.NoError(t, err)

	_, err = store.Create(KindFeed, "https://example.com/feed", "Feed Again", nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateURL)
}

// TestCreate_InvalidScraperConfig verifies config validation on insert
func TestCreate_InvalidScraperConfig(t *testing.T) {
	store := newTestStore(t)

	cfg := &scraper.Config{Patterns: []string{"("}}
	_, err := store.Create(KindHTML, "https://example.com", "Bad", cfg, nil)
	assert.Error(t, err)
}

// TestGet_NotFound verifies the sentinel error
func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

// TestList_Filters verifies kind and enabled filtering
func TestList_Filters(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	_, err := store.Create(KindAPI, "https://api.example.com", "API", nil, &now)
	require.NoError(t, err)
	_, err = store.Create(KindHTML, "https://site.example.com", "Site", nil, nil)
	require.NoError(t, err)

	all, err := store.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := store.ListEnabled()
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "API", enabled[0].Name)

	kind := KindHTML
	htmlOnly, err := store.List(Filter{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, htmlOnly, 1)
	assert.Equal(t, "Site", htmlOnly[0].Name)
}

// TestApplyUpdate_FetchHealth verifies error bookkeeping updates
func TestApplyUpdate_FetchHealth(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	src, err := store.Create(KindHTML, "https://site.example.com", "Site", nil, &now)
	require.NoError(t, err)

	count := 3
	msg := "HTTP error: 503"
	fetched := time.Now()
	err = store.ApplyUpdate(src.ID, Update{
		LastFetchedAt:   &fetched,
		FetchErrorCount: &count,
		LastError:       &msg,
	})
	require.NoError(t, err)

	got, err := store.Get(src.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.FetchErrorCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, msg, *got.LastError)
	require.NotNil(t, got.LastFetchedAt)
}

// TestApplyUpdate_Disable verifies ClearEnabledAt disables the source
func TestApplyUpdate_Disable(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	src, err := store.Create(KindHTML, "https://site.example.com", "Site", nil, &now)
	require.NoError(t, err)

	err = store.ApplyUpdate(src.ID, Update{ClearEnabledAt: true})
	require.NoError(t, err)

	got, err := store.Get(src.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnabled())
}

// TestApplyUpdate_ClearLastError verifies error state reset after success
func TestApplyUpdate_ClearLastError(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	src, err := store.Create(KindHTML, "https://site.example.com", "Site", nil, &now)
	require.NoError(t, err)

	msg := "boom"
	count := 2
	require.NoError(t, store.ApplyUpdate(src.ID, Update{LastError: &msg, FetchErrorCount: &count}))

	zero := 0
	require.NoError(t, store.ApplyUpdate(src.ID, Update{ClearLastError: true, FetchErrorCount: &zero}))

	got, err := store.Get(src.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastError)
	assert.Equal(t, 0, got.FetchErrorCount)
}

// TestApplyUpdate_NotFound verifies updating a missing source fails
func TestApplyUpdate_NotFound(t *testing.T) {
	store := newTestStore(t)

	name := "x"
	err := store.ApplyUpdate(uuid.New(), Update{Name: &name})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

// TestDelete verifies removal
func TestDelete(t *testing.T) {
	store := newTestStore(t)

	src, err := store.Create(KindFeed, "https://example.com/feed", "Feed", nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.Delete(src.ID))
	assert.ErrorIs(t, store.Delete(src.ID), ErrSourceNotFound)
}

// TestSeed verifies the built-in set installs once and is idempotent
func TestSeed(t *testing.T) {
	store := newTestStore(t)

	n, err := store.Seed()
	require.NoError(t, err)
	assert.Equal(t, len(defaultSeeds), n)

	// Second seed inserts nothing
	n, err = store.Seed()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	enabled, err := store.ListEnabled()
	require.NoError(t, err)
	assert.Len(t, enabled, len(defaultSeeds))

	// Every seeded scraper config must compile
	for _, src := range enabled {
		if src.ScraperConfig != nil {
			assert.NoError(t, src.ScraperConfig.Validate(), "source %s", src.Name)
		}
	}
}
