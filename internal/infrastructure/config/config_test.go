package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"LEDGER_APP_NAME":          os.Getenv("LEDGER_APP_NAME"),
		"LEDGER_APP_ENV":           os.Getenv("LEDGER_APP_ENV"),
		"LEDGER_APP_PORT":          os.Getenv("LEDGER_APP_PORT"),
		"LEDGER_DATABASE_HOST":     os.Getenv("LEDGER_DATABASE_HOST"),
		"LEDGER_DATABASE_PORT":     os.Getenv("LEDGER_DATABASE_PORT"),
		"LEDGER_DATABASE_USER":     os.Getenv("LEDGER_DATABASE_USER"),
		"LEDGER_DATABASE_PASSWORD": os.Getenv("LEDGER_DATABASE_PASSWORD"),
		"LEDGER_DATABASE_DBNAME":   os.Getenv("LEDGER_DATABASE_DBNAME"),
		"LEDGER_ERP_BASE_URL":      os.Getenv("LEDGER_ERP_BASE_URL"),
		"LEDGER_ERP_USERNAME":      os.Getenv("LEDGER_ERP_USERNAME"),
		"LEDGER_ERP_PASSWORD":      os.Getenv("LEDGER_ERP_PASSWORD"),
		"LEDGER_SYNC_MAX_RETRIES":  os.Getenv("LEDGER_SYNC_MAX_RETRIES"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ledgerlink-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "ledgerlink", cfg.Database.DBName)
		assert.Equal(t, 5, cfg.Sync.MaxRetries)
		assert.Equal(t, 100, cfg.ERP.PageSize)
		assert.Equal(t, 50, cfg.ERP.MaxPages)
		assert.Equal(t, time.Hour, cfg.Reconcile.WindowOverlap)
	})

	t.Run("loads values from environment variables with LEDGER prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("LEDGER_APP_NAME", "test-app")
		os.Setenv("LEDGER_DATABASE_HOST", "testdb.local")
		os.Setenv("LEDGER_DATABASE_PORT", "5433")
		os.Setenv("LEDGER_ERP_BASE_URL", "https://erp.example.com:50000/b1s/v1")
		os.Setenv("LEDGER_ERP_USERNAME", "sync-user")
		os.Setenv("LEDGER_SYNC_MAX_RETRIES", "3")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "https://erp.example.com:50000/b1s/v1", cfg.ERP.BaseURL)
		assert.Equal(t, "sync-user", cfg.ERP.Username)
		assert.Equal(t, 3, cfg.Sync.MaxRetries)
	})

	t.Run("production requires database password and erp credentials", func(t *testing.T) {
		clearEnv()
		os.Setenv("LEDGER_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.local",
		Port:     5432,
		User:     "app",
		Password: "p@ss/word",
		DBName:   "ledgerlink",
		SSLMode:  "require",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.local:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// special characters in the password must be escaped
	assert.NotContains(t, dsn, "p@ss/word")
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", r.Addr())
}
