package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "offersense", cfg.ServiceName)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, int64(1048576), cfg.MaxRequestBodyBytes)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("OFFERSENSE_PORT", "9090")
	t.Setenv("OFFERSENSE_CACHE_TTL", "2m")
	t.Setenv("OFFERSENSE_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadFailsOnInvalidPort(t *testing.T) {
	t.Setenv("OFFERSENSE_PORT", "abc")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	t.Setenv("OFFERSENSE_PORT", "70000")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsNonPositiveBodyLimit(t *testing.T) {
	t.Setenv("OFFERSENSE_MAX_REQUEST_BODY_BYTES", "0")
	_, err := Load()
	assert.Error(t, err)
}
