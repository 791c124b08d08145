package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"NJT_USERNAME":      "rider",
		"NJT_PASSWORD":      "hunter2",
		"NJT_BUS_BASE_URL":  "https://bus.example.com/",
		"NJT_RAIL_BASE_URL": "https://rail.example.com",
		"WEATHER_KEY":       "owm",
		"TELEGRAM_TOKEN":    "bot:token",
		"TELEGRAM_CHAT_ID":  "42",
		"MTA_API_KEY":       "",
		"NATS_URL":          "",
		"METRICS_ADDR":      "",
	} {
		t.Setenv(k, v)
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"R15S", "R16S", "R17S"}, cfg.Subway.Stops)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, "https://bus.example.com", cfg.Secrets.NJTBusBaseURL)
	assert.Empty(t, cfg.Secrets.MTAAPIKey)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	setSecrets(t)
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")

	path := filepath.Join(t.TempDir(), "config.yml")
	yml := `
server:
  port: 9090
bus:
  stop: "12345"
subway:
  stops: [A27S]
  buffer: 2m
scheduler:
  interval: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "12345", cfg.Bus.Stop)
	assert.Equal(t, "113", cfg.Bus.Route)
	assert.Equal(t, []string{"A27S"}, cfg.Subway.Stops)
	assert.Equal(t, 2*time.Minute, cfg.Subway.Buffer)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	setSecrets(t)

	tests := []struct {
		name string
		yml  string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"no subway stops", "subway:\n  stops: []\n"},
		{"bad feed url", "subway:\n  feedURL: not a url\n"},
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"bad yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yml), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingSecret(t *testing.T) {
	setSecrets(t)
	t.Setenv("TELEGRAM_TOKEN", "")

	_, err := Load("")
	var missing MissingEnvironmentKey
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, MissingEnvironmentKey("TELEGRAM_TOKEN"), missing)
	assert.Equal(t, "TELEGRAM_TOKEN environment variable not set", err.Error())
}

func TestFromEnvironmentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("  from-file\n"), 0o600))

	t.Setenv("COMMUTE_TEST_SECRET", "")
	t.Setenv("COMMUTE_TEST_SECRET_FILE", path)
	v, err := FromEnvironment("COMMUTE_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)

	t.Setenv("COMMUTE_TEST_SECRET", "direct")
	v, err = FromEnvironment("COMMUTE_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "direct", v)

	t.Setenv("COMMUTE_TEST_SECRET", "")
	t.Setenv("COMMUTE_TEST_SECRET_FILE", filepath.Join(t.TempDir(), "missing"))
	_, err = FromEnvironment("COMMUTE_TEST_SECRET")
	assert.Error(t, err)
}
