package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digilib/internal/lending"
	"digilib/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DIGILIB_CONFIG", "PORT", "LOG_LEVEL", "STORE_DRIVER", "SQLITE_PATH", "DATABASE_URL",
		"REDIS_ADDR", "REDIS_PASSWORD", "EVENT_STREAM", "JWT_SECRET", "FIREBASE_CREDENTIALS_PATH",
		"FIREBASE_CREDENTIALS_JSON", "LOAN_DAYS", "FINE_RATE_PER_DAY", "EXTENSION_DAYS", "HOLD_POLICY",
		"HOLD_GRACE_DAYS", "HOLD_SWEEP_INTERVAL", "RATE_LIMIT", "RATE_WINDOW",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, lending.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "digilib.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
storeDriver: sqlite
sqlitePath: /var/lib/digilib.db
loanDays: 21
fineRatePerDay: 50
holdPolicy: fifo-hold
holdGraceDays: 2
rateWindow: 30s
`), 0o600))
	t.Setenv("DIGILIB_CONFIG", path)
	t.Setenv("LOAN_DAYS", "10")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)

	p := cfg.Policy()
	assert.Equal(t, 10, p.LoanDays)
	assert.Equal(t, models.Money(50), p.FineRatePerDay)
	assert.Equal(t, lending.HoldPolicyFIFO, p.HoldPolicy)
	assert.Equal(t, 2, p.HoldGraceDays)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err, "jawnie wskazany plik musi istnieć")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: [1, 2"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)

	t.Setenv("LOAN_DAYS", "dwa")
	_, err = Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }},
		{"postgres without url", func(c *Config) { c.StoreDriver = DriverPostgres }},
		{"firestore without credentials", func(c *Config) { c.StoreDriver = DriverFirestore }},
		{"unknown hold policy", func(c *Config) { c.HoldPolicy = "lottery" }},
		{"zero loan days", func(c *Config) { c.LoanDays = 0 }},
		{"extension over a year", func(c *Config) { c.ExtensionDays = lending.MaxDays + 1 }},
		{"negative fine", func(c *Config) { c.FineRatePerDay = -1 }},
		{"zero rate limit", func(c *Config) { c.RateLimit = 0 }},
		{"empty port", func(c *Config) { c.Port = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, Default().Validate())
}
