package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a config that passes Validate for daemon mode.
func validConfig() Config {
	cfg := Defaults()
	cfg.DAO.RelayerKey = "0000000000000000000000000000000000000000000000000000000000000001"
	cfg.Chain.KaleToken = "0x1000000000000000000000000000000000000001"
	cfg.Oracle.Contract = "0x1000000000000000000000000000000000000002"
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateRequiresRelayerKeyForFundMovingModes(t *testing.T) {
	cfg := validConfig()
	cfg.DAO.RelayerKey = ""
	cfg.DAO.EncryptedKeyPath = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relayer_key")

	// Monitor mode never moves funds.
	cfg.Mode = "monitor"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresPasswordWithEncryptedKey(t *testing.T) {
	cfg := validConfig()
	cfg.DAO.RelayerKey = ""
	cfg.DAO.EncryptedKeyPath = "/etc/kaledao/relayer.json"
	cfg.DAO.KeyPassword = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.RPCURL = ""
	cfg.Chain.ChainID = 0
	cfg.Redis.Addr = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url")
	assert.Contains(t, err.Error(), "chain_id")
	assert.Contains(t, err.Error(), "redis")
}

func TestValidateArchiveModeNeedsS3(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "archive"
	cfg.S3.Bucket = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "monitor"
log_level = "debug"

[oracle]
base_url = "https://oracle.example.com/api"
max_staleness = "90s"
assets = ["BTC"]

[postgres]
host = "db.internal"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://oracle.example.com/api", cfg.Oracle.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Oracle.MaxStaleness.Duration)
	assert.Equal(t, []string{"BTC"}, cfg.Oracle.Assets)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)

	// Untouched fields keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "daemon"`), 0o600))

	t.Setenv("KALEDAO_MODE", "resolve")
	t.Setenv("KALEDAO_POSTGRES_PASSWORD", "s3cret")
	t.Setenv("KALEDAO_RESOLVER_INTERVAL", "30s")
	t.Setenv("KALEDAO_ORACLE_ASSETS", "EUR/USD, BTC")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "resolve", cfg.Mode)
	assert.Equal(t, "s3cret", cfg.Postgres.Password)
	assert.Equal(t, 30*time.Second, cfg.Resolver.Interval.Duration)
	assert.Equal(t, []string{"EUR/USD", "BTC"}, cfg.Oracle.Assets)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
