package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsbk.dev/gtfsrt/config"
)

// Blanks out every variable Load looks at.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"GTFSRT_LIVE_URL",
		"GTFSRT_STATIC_URL",
		"PORT",
		"DATABASE_URL",
		"NATS_URL",
		"TZ",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "/gtfs-realtime", cfg.Server.Path)
	assert.Equal(t, config.DefaultLiveURL, cfg.Live.URL)
	assert.Equal(t, 10*time.Second, cfg.Live.Timeout())
	assert.Equal(t, 60*time.Second, cfg.Static.Timeout())
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "", cfg.NATS.URL)
	assert.Equal(t, ":8000", cfg.Addr())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	assert.ErrorIs(t, cfg.RequireStatic(), config.ErrNoStaticURL)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
server:
  port: 9090
  path: /feed.pb
live:
  url: https://example.com/vehicles
  timeoutMS: 2500
  headers:
    X-Api-Key: secret
static:
  url: /data/gtfs.zip
  retryMaxElapsedMS: 1000
storage:
  backend: sqlite
  directory: /var/lib/gtfsrt
timezone: Europe/Bratislava
metrics:
  enabled: false
nats:
  url: nats://127.0.0.1:4222
  subject: feeds.idsbk
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/feed.pb", cfg.Server.Path)
	assert.Equal(t, "https://example.com/vehicles", cfg.Live.URL)
	assert.Equal(t, 2500*time.Millisecond, cfg.Live.Timeout())
	assert.Equal(t, map[string]string{"X-Api-Key": "secret"}, cfg.Live.Headers)
	assert.Equal(t, "/data/gtfs.zip", cfg.Static.URL)
	assert.Equal(t, time.Second, cfg.Static.RetryMaxElapsed())
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/gtfsrt", cfg.Storage.Directory)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "feeds.idsbk", cfg.NATS.Subject)
	assert.NoError(t, cfg.RequireStatic())

	// Unset fields keep their defaults
	assert.Equal(t, 1<<20, cfg.Live.MaxSize)
	assert.Equal(t, 800<<20, cfg.Static.MaxSize)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Bratislava", loc.String())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
server:
  port: 9090
live:
  url: https://example.com/vehicles
`)

	t.Setenv("GTFSRT_LIVE_URL", "https://override.example.com/v")
	t.Setenv("GTFSRT_STATIC_URL", "https://override.example.com/gtfs.zip")
	t.Setenv("PORT", "8123")
	t.Setenv("DATABASE_URL", "postgres://localhost/gtfs")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("TZ", "UTC")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com/v", cfg.Live.URL)
	assert.Equal(t, "https://override.example.com/gtfs.zip", cfg.Static.URL)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/gtfs", cfg.Storage.PostgresURL)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"invalid yaml", "invalid: yaml: content: [[[", nil},
		{"negative port", "server:\n  port: -1\n", nil},
		{"port out of range", "server:\n  port: 70000\n", nil},
		{"relative path", "server:\n  path: feed\n", nil},
		{"bad live url", "live:\n  url: not a url\n", nil},
		{"empty live url", "live:\n  url: \"\"\n", nil},
		{"negative timeout", "live:\n  timeoutMS: -5\n", nil},
		{"unknown backend", "storage:\n  backend: mongo\n", nil},
		{"postgres without url", "storage:\n  backend: postgres\n", nil},
		{"nats without subject", "nats:\n  url: nats://localhost:4222\n  subject: \"\"\n", nil},
		{"bad timezone", "timezone: Mars/Olympus_Mons\n", nil},
		{"bad port env", "", map[string]string{"PORT": "eighty"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
