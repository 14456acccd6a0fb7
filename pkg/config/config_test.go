package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 50, cfg.Notifications.BatchSize)
	assert.Equal(t, time.Second, cfg.Notifications.BatchDelay)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, MailDriverLog, cfg.Mail.Driver)
	assert.Contains(t, cfg.Storage.AllowedMIMEs, "application/pdf")
	assert.EqualValues(t, 50*1024*1024, cfg.Storage.MaxFileSizeBytes)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("FANOUT_BATCH_SIZE", "25")
	t.Setenv("FANOUT_BATCH_DELAY", "250ms")
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("DASHBOARD_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Notifications.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Notifications.BatchDelay)
	assert.Equal(t, StorageDriverS3, cfg.Storage.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
}
