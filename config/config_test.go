package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_MissingFile verifies a missing file yields the defaults
func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestLoad_EmptyPath verifies empty path yields the defaults
func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "Africa/Johannesburg", cfg.Venue.Timezone)
	assert.Equal(t, 1, cfg.Schedule.DayOfMonth)
}

// TestLoad_OverridesMergeOverDefaults verifies partial files keep defaults
func TestLoad_OverridesMergeOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
output:
  ics_path: /var/www/cal.ics
  snapshot_path: /var/www/events.json
fetch:
  timeout: 45s
schedule:
  day_of_month: 15
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/www/cal.ics", cfg.Output.ICSPath)
	assert.Equal(t, 45*time.Second, cfg.Fetch.TimeoutDuration())
	assert.Equal(t, 15, cfg.Schedule.DayOfMonth)
	// Untouched sections keep their defaults
	assert.Equal(t, "Cape Town Stadium Events", cfg.Calendar.Name)
	assert.Equal(t, 5, cfg.Fetch.Concurrency)
}

// TestLoad_InvalidYAML verifies parse failures surface
func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: ["), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

// TestLoad_ValidationFailures verifies out-of-range fields are rejected
func TestLoad_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"day out of range":  "schedule:\n  day_of_month: 32\n",
		"hour out of range": "schedule:\n  hour: 24\n",
		"bad timezone":      "venue:\n  timezone: Mars/Olympus\n",
		"empty ics path":    "output:\n  ics_path: \"\"\n  snapshot_path: x\n",
		"bad timeout":       "fetch:\n  timeout: soon\n",
	}

	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

// TestLocation verifies timezone resolution
func TestLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Africa/Johannesburg", loc.String())

	cfg.Venue.Timezone = ""
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
