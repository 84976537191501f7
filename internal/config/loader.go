package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KALEDAO_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KALEDAO_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── DAO ──
	setStr(&cfg.DAO.AdminAddress, "KALEDAO_DAO_ADMIN_ADDRESS")
	setStr(&cfg.DAO.TreasuryAddress, "KALEDAO_DAO_TREASURY_ADDRESS")
	setStr(&cfg.DAO.RelayerKey, "KALEDAO_DAO_RELAYER_KEY")
	setStr(&cfg.DAO.EncryptedKeyPath, "KALEDAO_DAO_ENCRYPTED_KEY_PATH")
	setStr(&cfg.DAO.KeyPassword, "KALEDAO_DAO_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "KALEDAO_CHAIN_RPC_URL")
	setInt(&cfg.Chain.ChainID, "KALEDAO_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.KaleToken, "KALEDAO_CHAIN_KALE_TOKEN")
	setDuration(&cfg.Chain.CallTimeout, "KALEDAO_CHAIN_CALL_TIMEOUT")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "KALEDAO_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.WsURL, "KALEDAO_ORACLE_WS_URL")
	setStr(&cfg.Oracle.APIKey, "KALEDAO_ORACLE_API_KEY")
	setStr(&cfg.Oracle.Contract, "KALEDAO_ORACLE_CONTRACT")
	setStringSlice(&cfg.Oracle.Assets, "KALEDAO_ORACLE_ASSETS")
	setDuration(&cfg.Oracle.MaxStaleness, "KALEDAO_ORACLE_MAX_STALENESS")
	setInt(&cfg.Oracle.RateLimit, "KALEDAO_ORACLE_RATE_LIMIT")
	setDuration(&cfg.Oracle.RateWindow, "KALEDAO_ORACLE_RATE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "KALEDAO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "KALEDAO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KALEDAO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KALEDAO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KALEDAO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KALEDAO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KALEDAO_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KALEDAO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KALEDAO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KALEDAO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KALEDAO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KALEDAO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KALEDAO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KALEDAO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KALEDAO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KALEDAO_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "KALEDAO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KALEDAO_S3_REGION")
	setStr(&cfg.S3.Bucket, "KALEDAO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KALEDAO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KALEDAO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KALEDAO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KALEDAO_S3_FORCE_PATH_STYLE")

	// ── Resolver ──
	setBool(&cfg.Resolver.Enabled, "KALEDAO_RESOLVER_ENABLED")
	setDuration(&cfg.Resolver.Interval, "KALEDAO_RESOLVER_INTERVAL")
	setDuration(&cfg.Resolver.MinAge, "KALEDAO_RESOLVER_MIN_AGE")
	setInt(&cfg.Resolver.BatchSize, "KALEDAO_RESOLVER_BATCH_SIZE")
	setDuration(&cfg.Resolver.LockTTL, "KALEDAO_RESOLVER_LOCK_TTL")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "KALEDAO_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KALEDAO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KALEDAO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KALEDAO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KALEDAO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "KALEDAO_MODE")
	setStr(&cfg.LogLevel, "KALEDAO_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
