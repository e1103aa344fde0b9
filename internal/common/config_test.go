package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "ko", cfg.Remote.Language)
	assert.Equal(t, 3, cfg.Remote.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Remote.BaseDelay)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 4, cfg.Tasks.Workers)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("OCR_MAX_ATTEMPTS", "5")
	t.Setenv("OCR_TIMEOUT", "30s")
	t.Setenv("CACHE_MAX_ENTRIES", "nonsense")

	cfg := LoadConfig()
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Remote.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries, "unparsable values keep their default")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := LoadConfig()
	cfg.Remote.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.Server.Addr = ""
	assert.Error(t, cfg.Validate())
}
