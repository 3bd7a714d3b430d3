// Package sources persists the configured upstream sources and their fetch
// health in SQLite. Event data itself is never stored; only the knowledge of
// where to fetch and how each upstream has been behaving survives runs.
package sources

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/capetownstadium/eventcal/scraper"
)

// Source kinds.
const (
	KindAPI  = "api"  // stadium content API
	KindHTML = "html" // scraped event website
	KindFeed = "feed" // RSS/Atom announcement feed
)

var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrDuplicateURL      = errors.New("source with this URL already exists")
	ErrInvalidSourceKind = errors.New("source kind must be api, html, or feed")
)

// Source is one configured upstream.
type Source struct {
	ID              uuid.UUID       `json:"id"`
	Kind            string          `json:"kind"`
	URL             string          `json:"url"`
	Name            string          `json:"name"`
	EnabledAt       *time.Time      `json:"enabled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastFetchedAt   *time.Time      `json:"last_fetched_at,omitempty"`
	FetchErrorCount int             `json:"fetch_error_count"`
	LastError       *string         `json:"last_error,omitempty"`
	ScraperConfig   *scraper.Config `json:"scraper_config,omitempty"`
}

// IsEnabled reports whether the source participates in runs.
func (s *Source) IsEnabled() bool {
	return s.EnabledAt != nil
}

// Update carries partial updates for a source. Nil fields are left untouched;
// ClearEnabledAt disables the source.
type Update struct {
	Name            *string
	URL             *string
	EnabledAt       *time.Time
	ClearEnabledAt  bool
	LastFetchedAt   *time.Time
	FetchErrorCount *int
	LastError       *string
	ClearLastError  bool
	ScraperConfig   *scraper.Config
}

// Filter selects sources when listing.
type Filter struct {
	Kind    *string
	Enabled *bool
}

// Store is a SQLite-backed source store.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the source database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		enabled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_fetched_at TEXT,
		fetch_error_count INTEGER DEFAULT 0,
		last_error TEXT,
		scraper_config TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new source. enabledAt nil creates the source disabled.
func (s *Store) Create(kind, url, name string, cfg *scraper.Config, enabledAt *time.Time) (*Source, error) {
	if kind != KindAPI && kind != KindHTML && kind != KindFeed {
		return nil, ErrInvalidSourceKind
	}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	src := &Source{
		ID:            uuid.New(),
		Kind:          kind,
		URL:           url,
		Name:          name,
		EnabledAt:     enabledAt,
		CreatedAt:     now,
		UpdatedAt:     now,
		ScraperConfig: cfg,
	}

	var cfgJSON *string
	if cfg != nil {
		data, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal scraper_config: %w", err)
		}
		str := string(data)
		cfgJSON = &str
	}

	query := `
		INSERT INTO sources (id, kind, url, name, enabled_at, created_at, updated_at, scraper_config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		src.ID.String(), src.Kind, src.URL, src.Name,
		formatTime(src.EnabledAt), formatTime(&src.CreatedAt), formatTime(&src.UpdatedAt),
		cfgJSON,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint") {
			return nil, ErrDuplicateURL
		}
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}

	return src, nil
}

const selectColumns = `id, kind, url, name, enabled_at, created_at, updated_at,
	last_fetched_at, fetch_error_count, last_error, scraper_config`

// Get retrieves a source by ID.
func (s *Store) Get(id uuid.UUID) (*Source, error) {
	row := s.db.QueryRow("SELECT "+selectColumns+" FROM sources WHERE id = ?", id.String())

	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}
	return src, nil
}

// List lists sources matching the filter, newest first.
func (s *Store) List(filter Filter) ([]Source, error) {
	query := "SELECT " + selectColumns + " FROM sources"

	var whereClauses []string
	var args []any

	if filter.Kind != nil {
		whereClauses = append(whereClauses, "kind = ?")
		args = append(args, *filter.Kind)
	}
	if filter.Enabled != nil {
		if *filter.Enabled {
			whereClauses = append(whereClauses, "enabled_at IS NOT NULL")
		} else {
			whereClauses = append(whereClauses, "enabled_at IS NULL")
		}
	}
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// ListEnabled returns all enabled sources.
func (s *Store) ListEnabled() ([]Source, error) {
	enabled := true
	return s.List(Filter{Enabled: &enabled})
}

// ApplyUpdate applies a partial update to a source.
func (s *Store) ApplyUpdate(id uuid.UUID, update Update) error {
	setClauses := []string{"updated_at = ?"}
	now := time.Now()
	args := []any{formatTime(&now)}

	if update.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *update.Name)
	}
	if update.URL != nil {
		setClauses = append(setClauses, "url = ?")
		args = append(args, *update.URL)
	}
	if update.ClearEnabledAt {
		setClauses = append(setClauses, "enabled_at = ?")
		args = append(args, nil)
	} else if update.EnabledAt != nil {
		setClauses = append(setClauses, "enabled_at = ?")
		args = append(args, formatTime(update.EnabledAt))
	}
	if update.LastFetchedAt != nil {
		setClauses = append(setClauses, "last_fetched_at = ?")
		args = append(args, formatTime(update.LastFetchedAt))
	}
	if update.FetchErrorCount != nil {
		setClauses = append(setClauses, "fetch_error_count = ?")
		args = append(args, *update.FetchErrorCount)
	}
	if update.ClearLastError {
		setClauses = append(setClauses, "last_error = ?")
		args = append(args, nil)
	} else if update.LastError != nil {
		setClauses = append(setClauses, "last_error = ?")
		args = append(args, *update.LastError)
	}
	if update.ScraperConfig != nil {
		data, err := json.Marshal(update.ScraperConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal scraper_config: %w", err)
		}
		setClauses = append(setClauses, "scraper_config = ?")
		args = append(args, string(data))
	}

	args = append(args, id.String())
	query := fmt.Sprintf("UPDATE sources SET %s WHERE id = ?", strings.Join(setClauses, ", "))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint") {
			return ErrDuplicateURL
		}
		return fmt.Errorf("failed to update source: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// Delete removes a source.
func (s *Store) Delete(id uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM sources WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*Source, error) {
	var idStr, kind, url, name, createdAtStr, updatedAtStr string
	var enabledAtStr, lastFetchedAtStr, lastError, cfgJSON sql.NullString
	var fetchErrorCount int

	err := row.Scan(
		&idStr, &kind, &url, &name,
		&enabledAtStr, &createdAtStr, &updatedAtStr,
		&lastFetchedAtStr, &fetchErrorCount, &lastError, &cfgJSON,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source ID: %w", err)
	}

	src := &Source{
		ID:              id,
		Kind:            kind,
		URL:             url,
		Name:            name,
		CreatedAt:       parseTime(createdAtStr),
		UpdatedAt:       parseTime(updatedAtStr),
		FetchErrorCount: fetchErrorCount,
	}

	if enabledAtStr.Valid {
		t := parseTime(enabledAtStr.String)
		src.EnabledAt = &t
	}
	if lastFetchedAtStr.Valid {
		t := parseTime(lastFetchedAtStr.String)
		src.LastFetchedAt = &t
	}
	if lastError.Valid {
		src.LastError = &lastError.String
	}
	if cfgJSON.Valid && cfgJSON.String != "" {
		var cfg scraper.Config
		if err := json.Unmarshal([]byte(cfgJSON.String), &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scraper_config: %w", err)
		}
		src.ScraperConfig = &cfg
	}

	return src, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
