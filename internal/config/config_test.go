package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, 5*time.Minute, cfg.Redis.ViewTTL)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "0 0 1 * * *", cfg.Scheduler.Spec)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 120, cfg.Business.MaxTermMonths)
	assert.Equal(t, 3, cfg.Business.DelinquencyThreshold)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "file:loans.db")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_VIEW_TTL", "90s")
	t.Setenv("MAX_TERM_MONTHS", "84")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "file:loans.db", cfg.Database.URL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Redis.ViewTTL)
	assert.Equal(t, 84, cfg.Business.MaxTermMonths)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_DRIVER=memory\nDELINQUENCY_THRESHOLD=5\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		os.Unsetenv("DATABASE_DRIVER")
		os.Unsetenv("DELINQUENCY_THRESHOLD")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Business.DelinquencyThreshold)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mongo"}},
		{"bad cron spec", map[string]string{"DATABASE_DRIVER": "memory", "SCHEDULER_SPEC": "every day"}},
		{"bad timezone", map[string]string{"DATABASE_DRIVER": "memory", "SCHEDULER_TIMEZONE": "Mars/Olympus"}},
		{"zero term cap", map[string]string{"DATABASE_DRIVER": "memory", "MAX_TERM_MONTHS": "0"}},
		{"zero threshold", map[string]string{"DATABASE_DRIVER": "memory", "DELINQUENCY_THRESHOLD": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			assert.Nil(t, cfg)
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}
