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
// built-in defaults, applies SERUMLEDGER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SERUMLEDGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SERUMLEDGER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SERUMLEDGER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SERUMLEDGER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SERUMLEDGER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SERUMLEDGER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SERUMLEDGER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SERUMLEDGER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SERUMLEDGER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SERUMLEDGER_POSTGRES_POOL_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SERUMLEDGER_POSTGRES_MAX_CONN_IDLE_TIME")
	setBool(&cfg.Postgres.RunMigrations, "SERUMLEDGER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SERUMLEDGER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SERUMLEDGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SERUMLEDGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SERUMLEDGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SERUMLEDGER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SERUMLEDGER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SERUMLEDGER_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "SERUMLEDGER_REDIS_CACHE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SERUMLEDGER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SERUMLEDGER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SERUMLEDGER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SERUMLEDGER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SERUMLEDGER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SERUMLEDGER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SERUMLEDGER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SERUMLEDGER_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "SERUMLEDGER_S3_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "SERUMLEDGER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SERUMLEDGER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SERUMLEDGER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "SERUMLEDGER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SERUMLEDGER_SERVER_RATE_WINDOW")
	setDuration(&cfg.Server.ShutdownTimeout, "SERUMLEDGER_SERVER_SHUTDOWN_TIMEOUT")

	// ── Ledger ──
	setDuration(&cfg.Ledger.QueryTimeout, "SERUMLEDGER_LEDGER_QUERY_TIMEOUT")
	setBool(&cfg.Ledger.CountDropped, "SERUMLEDGER_LEDGER_COUNT_DROPPED")
	setInt(&cfg.Ledger.MemoryCacheSize, "SERUMLEDGER_LEDGER_MEMORY_CACHE_SIZE")
	setDuration(&cfg.Ledger.MemoryCacheTTL, "SERUMLEDGER_LEDGER_MEMORY_CACHE_TTL")

	// ── Export ──
	setStringSlice(&cfg.Export.Accounts, "SERUMLEDGER_EXPORT_ACCOUNTS")
	setStr(&cfg.Export.Format, "SERUMLEDGER_EXPORT_FORMAT")

	// ── Top-level ──
	setStr(&cfg.Mode, "SERUMLEDGER_MODE")
	setStr(&cfg.LogLevel, "SERUMLEDGER_LOG_LEVEL")
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
