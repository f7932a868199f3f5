package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"API_URL", "VITE_API_URL", "DATABASE_URL", "LOG_LEVEL", "LOG_FILE",
		"REQUEST_TIMEOUT", "LEGACY_FALLBACK", "LEGACY_FALLBACK_DELAY"} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "assistant_console.db", cfg.DatabaseURL)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.LegacyFallback)
	assert.Equal(t, time.Second, cfg.LegacyFallbackDelay)
}

func TestFromEnvViteFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_API_URL", "https://chat.example.com/api/")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/api", cfg.APIURL)

	t.Setenv("API_URL", "http://localhost:9000/api")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/api", cfg.APIURL)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REQUEST_TIMEOUT", "15")
	t.Setenv("LEGACY_FALLBACK", "yes")
	t.Setenv("LEGACY_FALLBACK_DELAY", "250ms")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.LegacyFallback)
	assert.Equal(t, 250*time.Millisecond, cfg.LegacyFallbackDelay)
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "ftp://example.com")
	_, err := FromEnv()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")
	_, err = FromEnv()
	assert.Error(t, err)
}
