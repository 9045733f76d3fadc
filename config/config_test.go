package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(10), cfg.Ranking.PriceToleranceCents)
	assert.Equal(t, 50.0, cfg.Ranking.MaxRadiusKm)
	assert.Equal(t, "Europe/Zagreb", cfg.Hours.Timezone)
	assert.Equal(t, 10, cfg.Preferences.MaxRecentSearches)
	assert.Equal(t, 5, cfg.Preferences.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Preferences.Breaker.ResetTimeout)
	assert.Equal(t, 10.0, cfg.RateLimit.Client.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Client.BurstSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Same(t, cfg, Get())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
ranking:
  price_tolerance_cents: 25
  max_radius_km: 15
hours:
  timezone: UTC
preferences:
  max_recent_searches: 5
  ttl: 720h
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, int64(25), cfg.Ranking.PriceToleranceCents)
	assert.Equal(t, 15.0, cfg.Ranking.MaxRadiusKm)
	assert.Equal(t, 5, cfg.Preferences.MaxRecentSearches)
	assert.Equal(t, 720*time.Hour, cfg.Preferences.TTL)

	loc, err := cfg.Hours.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("STORE_SERVICE_RANKING_PRICE_TOLERANCE_CENTS", "40")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/stores")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("INTERNAL_API_KEY", "secret")

	cfg, err := Load(writeConfig(t, "ranking:\n  price_tolerance_cents: 25\n"))
	require.NoError(t, err)

	assert.Equal(t, int64(40), cfg.Ranking.PriceToleranceCents)
	assert.Equal(t, "postgres://u:p@db:5432/stores", cfg.Database.URL)
	assert.Equal(t, "postgres://u:p@db:5432/stores", GetDatabaseURL())
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, "secret", cfg.Server.InternalAPIKey)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"port", "server:\n  port: 0\n", "server.port"},
		{"radius", "ranking:\n  max_radius_km: 0\n", "ranking"},
		{"tolerance", "ranking:\n  price_tolerance_cents: -1\n", "ranking"},
		{"timezone", "hours:\n  timezone: Mars/Olympus\n", "hours.timezone"},
		{"recent searches", "preferences:\n  max_recent_searches: 0\n", "preferences.max_recent_searches"},
		{"breaker", "preferences:\n  breaker:\n    max_failures: 0\n", "preferences.breaker"},
		{"client limit", "rate_limit:\n  client:\n    burst_size: 0\n", "rate_limit.client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)

			var cfgErr ErrInvalidConfig
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
