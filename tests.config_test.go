package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
server:
  host: 127.0.0.1
  port: "8080"
  request_timeout: 10s
database:
  driver: pgx
  dsn: postgres://catalog@localhost/catalog
redis:
  host: 127.0.0.1
  port: "6379"
admin:
  realm: Staff only
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pgx", config.Database.Driver)
	assert.Equal(t, "10s", config.Server.RequestTimeout.String())

	require.NoError(t, InitConfig(config, "abc123", "v1.0.0", "2023-07-02"))
	assert.Equal(t, "abc123", config.GitCommit)
	assert.Equal(t, 100, config.Admin.ListPerPage)
	assert.Equal(t, 10, config.Admin.RecentActions)
	assert.Equal(t, "Staff only", config.Admin.Realm)
	assert.Equal(t, "catalog", config.Cache.Prefix)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestInitConfig_Errors(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Host: "127.0.0.1", Port: "8080"},
			Redis:    RedisConfig{Host: "127.0.0.1", Port: "6379"},
			Database: DatabaseConfig{DSN: "file:test.db"},
		}
	}

	config := valid()
	require.NoError(t, InitConfig(config, "", "", ""))
	assert.Equal(t, DriverSQLite, config.Database.Driver)

	config = valid()
	config.Server.Port = ""
	assert.Error(t, InitConfig(config, "", "", ""))

	config = valid()
	config.Redis.Host = ""
	assert.Error(t, InitConfig(config, "", "", ""))

	config = valid()
	config.Database.DSN = ""
	assert.Error(t, InitConfig(config, "", "", ""))

	config = valid()
	config.Database.Driver = "oracle"
	assert.True(t, errors.Is(InitConfig(config, "", "", ""), ErrUnsupportedDriver))
}
