package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("OTP_TTL_MINUTES", "")
	t.Setenv("OTP_EXPOSE_CODE", "")
	t.Setenv("DB_MAX_CONNS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.OTP.TTLMinutes)
	assert.True(t, cfg.OTP.ExposeCode)
	assert.False(t, cfg.Email.Enabled())
	assert.Equal(t, 10, cfg.Database.MaxConns)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("OTP_EXPOSE_CODE", "false")
	t.Setenv("QUIZ_SESSION_IDLE_MINUTES", "5")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("DB_MAX_CONNS", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.False(t, cfg.OTP.ExposeCode)
	assert.Equal(t, 5, cfg.Assessment.SessionIdleMinutes)
	assert.True(t, cfg.Email.Enabled())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 25, cfg.Database.MaxConns)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "1", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", c.DSN())
	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}
