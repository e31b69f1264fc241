package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path on top of Defaults and applies MEVBOT_*
// environment overrides. An empty path skips the file. The result is not
// validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: %s not found", path)
			}
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose MEVBOT_* variable is set and
// non-empty.
func applyEnvOverrides(cfg *Config) {
	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "MEVBOT_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WSURL, "MEVBOT_SOLANA_WS_URL")
	setStr(&cfg.Solana.Commitment, "MEVBOT_SOLANA_COMMITMENT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "MEVBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.KeypairPath, "MEVBOT_WALLET_KEYPAIR_PATH")
	setStr(&cfg.Wallet.EncryptedKeyPath, "MEVBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "MEVBOT_WALLET_KEY_PASSWORD")

	// ── Jito ──
	setBool(&cfg.Jito.Enabled, "MEVBOT_JITO_ENABLED")
	setStr(&cfg.Jito.BlockEngineURL, "MEVBOT_JITO_BLOCK_ENGINE_URL")
	setStringSlice(&cfg.Jito.TipAccounts, "MEVBOT_JITO_TIP_ACCOUNTS")
	setUint64(&cfg.Jito.BaseTipLamports, "MEVBOT_JITO_BASE_TIP_LAMPORTS")
	setUint64(&cfg.Jito.MaxTipLamports, "MEVBOT_JITO_MAX_TIP_LAMPORTS")

	// ── Listener ──
	setStringSlice(&cfg.Listener.Programs, "MEVBOT_LISTENER_PROGRAMS")
	setStringSlice(&cfg.Listener.Accounts, "MEVBOT_LISTENER_ACCOUNTS")
	setStringSlice(&cfg.Listener.Filters, "MEVBOT_LISTENER_FILTERS")
	setInt(&cfg.Listener.ChannelCapacity, "MEVBOT_LISTENER_CHANNEL_CAPACITY")
	setDuration(&cfg.Listener.ReconnectDelay, "MEVBOT_LISTENER_RECONNECT_DELAY")

	// ── Strategies ──
	setStringSlice(&cfg.Strategies.DexPrograms, "MEVBOT_STRATEGIES_DEX_PROGRAMS")
	setDuration(&cfg.Strategies.LatencyBudget, "MEVBOT_STRATEGIES_LATENCY_BUDGET")
	setFloat64(&cfg.Strategies.SOLPriceUSD, "MEVBOT_STRATEGIES_SOL_PRICE_USD")
	setBool(&cfg.Strategies.Arbitrage.Enabled, "MEVBOT_STRATEGIES_ARBITRAGE_ENABLED")
	setFloat64(&cfg.Strategies.Arbitrage.MinProfitUSD, "MEVBOT_STRATEGIES_ARBITRAGE_MIN_PROFIT_USD")
	setInt(&cfg.Strategies.Arbitrage.MaxHops, "MEVBOT_STRATEGIES_ARBITRAGE_MAX_HOPS")
	setBool(&cfg.Strategies.Sandwich.Enabled, "MEVBOT_STRATEGIES_SANDWICH_ENABLED")
	setFloat64(&cfg.Strategies.Sandwich.MinProfitUSD, "MEVBOT_STRATEGIES_SANDWICH_MIN_PROFIT_USD")
	setBool(&cfg.Strategies.Liquidation.Enabled, "MEVBOT_STRATEGIES_LIQUIDATION_ENABLED")
	setStringSlice(&cfg.Strategies.Liquidation.Protocols, "MEVBOT_STRATEGIES_LIQUIDATION_PROTOCOLS")
	setFloat64(&cfg.Strategies.Liquidation.MinProfitUSD, "MEVBOT_STRATEGIES_LIQUIDATION_MIN_PROFIT_USD")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxSOLPerTrade, "MEVBOT_RISK_MAX_SOL_PER_TRADE")
	setFloat64(&cfg.Risk.DailyLossLimitUSD, "MEVBOT_RISK_DAILY_LOSS_LIMIT_USD")
	setInt(&cfg.Risk.MaxConsecutiveFailures, "MEVBOT_RISK_MAX_CONSECUTIVE_FAILURES")
	setBool(&cfg.Risk.AutoDisableOnFailures, "MEVBOT_RISK_AUTO_DISABLE_ON_FAILURES")
	setBool(&cfg.Risk.KillSwitch, "MEVBOT_RISK_KILL_SWITCH")

	// ── Simulation ──
	setStr(&cfg.Simulation.Backend, "MEVBOT_SIMULATION_BACKEND")
	setFloat64(&cfg.Simulation.MinProfitUSD, "MEVBOT_SIMULATION_MIN_PROFIT_USD")
	setInt(&cfg.Simulation.MaxSlippageBps, "MEVBOT_SIMULATION_MAX_SLIPPAGE_BPS")

	// ── Execution ──
	setInt(&cfg.Execution.ConfirmAttempts, "MEVBOT_EXECUTION_CONFIRM_ATTEMPTS")
	setDuration(&cfg.Execution.ConfirmInterval, "MEVBOT_EXECUTION_CONFIRM_INTERVAL")

	// ── Fees ──
	setUint64(&cfg.Fees.BaseFee, "MEVBOT_FEES_BASE_FEE")
	setUint64(&cfg.Fees.MinFee, "MEVBOT_FEES_MIN_FEE")
	setStr(&cfg.Fees.Strategy, "MEVBOT_FEES_STRATEGY")
	setDuration(&cfg.Fees.PollInterval, "MEVBOT_FEES_POLL_INTERVAL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MEVBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MEVBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MEVBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MEVBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MEVBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MEVBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MEVBOT_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "MEVBOT_REDIS_STREAM_MAX_LEN")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "MEVBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MEVBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "MEVBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "MEVBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MEVBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MEVBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MEVBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MEVBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MEVBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MEVBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MEVBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MEVBOT_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "MEVBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MEVBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "MEVBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MEVBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MEVBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MEVBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MEVBOT_S3_FORCE_PATH_STYLE")

	// ── Kafka ──
	setBool(&cfg.Kafka.Enabled, "MEVBOT_KAFKA_ENABLED")
	setStringSlice(&cfg.Kafka.Brokers, "MEVBOT_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "MEVBOT_KAFKA_TOPIC")
	setStr(&cfg.Kafka.Compression, "MEVBOT_KAFKA_COMPRESSION")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.ArchiveEnabled, "MEVBOT_PIPELINE_ARCHIVE_ENABLED")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "MEVBOT_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "MEVBOT_PIPELINE_ARCHIVE_CRON")
	setDuration(&cfg.Pipeline.CleanupInterval, "MEVBOT_PIPELINE_CLEANUP_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MEVBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MEVBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MEVBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MEVBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MEVBOT_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MEVBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MEVBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MEVBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MEVBOT_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.AlertCooldown, "MEVBOT_NOTIFY_ALERT_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.Mode, "MEVBOT_MODE")
	setStr(&cfg.LogLevel, "MEVBOT_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present, non-empty and parses.

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
