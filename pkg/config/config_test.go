package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"STORE_DRIVER", "STORE_DSN", "STORE_TIMEOUT_SECONDS", "LOADER_WORKERS", "DATA_TIMEZONE",
	"LOG_LEVEL", "LOG_FORMAT",
	"SNOWFLAKE_USER", "SNOWFLAKE_PASSWORD", "SNOWFLAKE_ACCOUNT", "SNOWFLAKE_WAREHOUSE",
	"SNOWFLAKE_DATABASE", "SNOWFLAKE_SCHEMA", "SNOWFLAKE_ROLE", "SNOWFLAKE_AUTHENTICATOR",
	"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_HOST", "POSTGRES_PORT",
}

// unsetEnv clears the config variables for the duration of the test
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		old, ok := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		key := key
		t.Cleanup(func() {
			if ok {
				os.Setenv(key, old)
			} else {
				os.Unsetenv(key)
			}
		})
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t)

	cfg, err := LoadConfig(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, StoreConfig{Driver: DriverSQLite, DSN: "captest.db", Timeout: 30 * time.Second}, cfg.Store)
	assert.Equal(t, 4, cfg.LoaderWorkers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Nil(t, cfg.Snowflake)
	assert.Nil(t, cfg.Postgres)
	assert.Nil(t, cfg.Location())
}

func TestLoadConfigEnvFile(t *testing.T) {
	unsetEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOADER_WORKERS=8\nLOG_FORMAT=console\nDATA_TIMEZONE=America/Denver\n"), 0o644))
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.LoaderWorkers)
	assert.Equal(t, "json", cfg.LogFormat)
	require.NotNil(t, cfg.Location())
	assert.Equal(t, "America/Denver", cfg.Location().String())
}

func TestLoadConfigSnowflake(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SNOWFLAKE_USER", "analyst")

	_, err := LoadConfig(noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNOWFLAKE_PASSWORD")

	t.Setenv("SNOWFLAKE_PASSWORD", "secret")
	t.Setenv("SNOWFLAKE_ACCOUNT", "org-acct")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH")
	t.Setenv("SNOWFLAKE_DATABASE", "PLANT_DATA")
	t.Setenv("SNOWFLAKE_AUTHENTICATOR", "jwt")

	cfg, err := LoadConfig(noEnvFile(t))
	require.NoError(t, err)
	require.NotNil(t, cfg.Snowflake)
	assert.Equal(t, "PUBLIC", cfg.Snowflake.Schema)
	assert.Equal(t, gosnowflake.AuthTypeJwt, cfg.Snowflake.Authenticator)

	dsn := cfg.Snowflake.DSNConfig()
	assert.Equal(t, "org-acct", dsn.Account)
	assert.Equal(t, "PLANT_DATA", dsn.Database)
	assert.Equal(t, "COMPUTE_WH", dsn.Warehouse)

	t.Setenv("SNOWFLAKE_AUTHENTICATOR", "kerberos")
	_, err = LoadConfig(noEnvFile(t))
	assert.Error(t, err)
}

func TestLoadConfigPostgresStore(t *testing.T) {
	unsetEnv(t)
	t.Setenv("STORE_DRIVER", DriverPostgres)

	_, err := LoadConfig(noEnvFile(t))
	assert.Error(t, err)

	t.Setenv("POSTGRES_USER", "captest")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "tests")
	t.Setenv("POSTGRES_PORT", "6543")

	cfg, err := LoadConfig(noEnvFile(t))
	require.NoError(t, err)
	require.NotNil(t, cfg.Postgres)
	assert.Equal(t, "", cfg.Store.DSN)
	assert.Equal(t, "host=localhost port=6543 user=captest password=secret dbname=tests sslmode=disable",
		cfg.Postgres.ConnectionString())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:         StoreConfig{Driver: DriverSQLite, DSN: ":memory:"},
			LoaderWorkers: 2,
			LogLevel:      "debug",
			LogFormat:     "console",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.LoaderWorkers = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus_Mons" }},
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"sqlite without dsn", func(c *Config) { c.Store.DSN = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
