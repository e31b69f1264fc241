// Package config defines the bot's configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from Defaults, then a TOML
// file, then MEVBOT_* environment variables.
type Config struct {
	Solana     SolanaConfig     `toml:"solana"`
	Wallet     WalletConfig     `toml:"wallet"`
	Jito       JitoConfig       `toml:"jito"`
	Listener   ListenerConfig   `toml:"listener"`
	Strategies StrategiesConfig `toml:"strategies"`
	Risk       RiskConfig       `toml:"risk"`
	Simulation SimulationConfig `toml:"simulation"`
	Execution  ExecutionConfig  `toml:"execution"`
	Fees       FeesConfig       `toml:"fees"`
	Cache      CacheConfig      `toml:"cache"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Kafka      KafkaConfig      `toml:"kafka"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SolanaConfig holds the RPC endpoints.
type SolanaConfig struct {
	RPCURL     string `toml:"rpc_url"`
	WSURL      string `toml:"ws_url"`
	Commitment string `toml:"commitment"`
}

// WalletConfig lists the keypair sources, in precedence order.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	KeypairPath      string `toml:"keypair_path"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

func (w WalletConfig) configured() bool {
	return w.PrivateKey != "" || w.KeypairPath != "" || w.EncryptedKeyPath != ""
}

// JitoConfig selects bundle landing through a block engine.
type JitoConfig struct {
	Enabled         bool     `toml:"enabled"`
	BlockEngineURL  string   `toml:"block_engine_url"`
	TipAccounts     []string `toml:"tip_accounts"`
	BaseTipLamports uint64   `toml:"base_tip_lamports"`
	MaxTipLamports  uint64   `toml:"max_tip_lamports"`
}

// ListenerConfig holds the event subscription parameters.
type ListenerConfig struct {
	Programs          []string `toml:"programs"`
	Accounts          []string `toml:"accounts"`
	Filters           []string `toml:"filters"`
	ChannelCapacity   int      `toml:"channel_capacity"`
	ReconnectDelay    duration `toml:"reconnect_delay"`
	SubscribeInterval duration `toml:"subscribe_interval"`
	HealthWindow      duration `toml:"health_window"`
}

// StrategiesConfig configures classification and each strategy.
type StrategiesConfig struct {
	// DexPrograms is the allow-list of program ids the router analyzes.
	DexPrograms    []string                  `toml:"dex_programs"`
	LatencyBudget  duration                  `toml:"latency_budget"`
	DedupWindow    duration                  `toml:"dedup_window"`
	SOLPriceUSD    float64                   `toml:"sol_price_usd"`
	SOLPriceMaxAge duration                  `toml:"sol_price_max_age"`
	Pools          []PoolConfig              `toml:"pools"`
	Arbitrage      ArbitrageStrategyConfig   `toml:"arbitrage"`
	Sandwich       SandwichStrategyConfig    `toml:"sandwich"`
	Liquidation    LiquidationStrategyConfig `toml:"liquidation"`
}

// PoolConfig describes one constant-product pool by its token vaults.
type PoolConfig struct {
	Venue      string `toml:"venue"`
	Address    string `toml:"address"`
	ProgramID  string `toml:"program_id"`
	BaseMint   string `toml:"base_mint"`
	QuoteMint  string `toml:"quote_mint"`
	BaseVault  string `toml:"base_vault"`
	QuoteVault string `toml:"quote_vault"`
	FeeBps     uint16 `toml:"fee_bps"`
}

// ArbitrageStrategyConfig tunes the arbitrage strategy. Empty Venues means
// every venue in strategies.pools.
type ArbitrageStrategyConfig struct {
	Enabled             bool     `toml:"enabled"`
	MinAmountIn         uint64   `toml:"min_amount_in"`
	MinProfitUSD        float64  `toml:"min_profit_usd"`
	Venues              []string `toml:"venues"`
	MaxHops             int      `toml:"max_hops"`
	Intermediates       []string `toml:"intermediates"`
	FlashLoanThreshold  uint64   `toml:"flash_loan_threshold"`
	PriorityFeeLamports uint64   `toml:"priority_fee_lamports"`
	SlippageBps         uint16   `toml:"slippage_bps"`
	ComputeUnitLimit    uint32   `toml:"compute_unit_limit"`
	ComputeUnitPrice    uint64   `toml:"compute_unit_price"`
	TTL                 duration `toml:"ttl"`
}

// SandwichStrategyConfig tunes the sandwich strategy.
type SandwichStrategyConfig struct {
	Enabled             bool     `toml:"enabled"`
	MinTargetSizeUSD    float64  `toml:"min_target_size_usd"`
	MinProfitUSD        float64  `toml:"min_profit_usd"`
	MaxFrontRunLamports uint64   `toml:"max_front_run_lamports"`
	SearchSteps         int      `toml:"search_steps"`
	PriorityFeeLamports uint64   `toml:"priority_fee_lamports"`
	SlippageBps         uint16   `toml:"slippage_bps"`
	Competition         float64  `toml:"competition"`
	TTL                 duration `toml:"ttl"`
}

// LiquidationStrategyConfig tunes the liquidation strategy.
type LiquidationStrategyConfig struct {
	Enabled             bool     `toml:"enabled"`
	Protocols           []string `toml:"protocols"`
	MinProfitUSD        float64  `toml:"min_profit_usd"`
	MaxRepayLamports    uint64   `toml:"max_repay_lamports"`
	PriorityFeeLamports uint64   `toml:"priority_fee_lamports"`
	TTL                 duration `toml:"ttl"`
}

// RiskConfig holds the trading limits.
type RiskConfig struct {
	MaxSOLPerTrade         float64  `toml:"max_sol_per_trade"`
	DailyLossLimitUSD      float64  `toml:"daily_loss_limit_usd"`
	MaxConsecutiveFailures int      `toml:"max_consecutive_failures"`
	AutoDisableOnFailures  bool     `toml:"auto_disable_on_failures"`
	KillSwitch             bool     `toml:"kill_switch"`
	StateTTL               duration `toml:"state_ttl"`
	AlertInterval          duration `toml:"alert_interval"`
}

// SimulationConfig holds the pre-trade gate thresholds.
type SimulationConfig struct {
	// Backend is "rpc" (simulateTransaction with static fallback) or
	// "static".
	Backend              string  `toml:"backend"`
	MinProfitUSD         float64 `toml:"min_profit_usd"`
	MaxSlippageBps       int     `toml:"max_slippage_bps"`
	ComputeUnitLimit     uint64  `toml:"compute_unit_limit"`
	ValidateSlippage     bool    `toml:"validate_slippage"`
	ValidateComputeUnits bool    `toml:"validate_compute_units"`
}

// ExecutionConfig holds submission and confirmation parameters.
type ExecutionConfig struct {
	ComputeUnitLimit uint32   `toml:"compute_unit_limit"`
	ConfirmAttempts  int      `toml:"confirm_attempts"`
	ConfirmInterval  duration `toml:"confirm_interval"`
	DedupWindow      duration `toml:"dedup_window"`
	ResultQueue      int      `toml:"result_queue"`
}

// FeesConfig configures the priority fee estimator and its poller.
type FeesConfig struct {
	BaseFee      uint64   `toml:"base_fee"`
	MinFee       uint64   `toml:"min_fee"`
	WindowSize   int      `toml:"window_size"`
	Percentile   float64  `toml:"percentile"`
	Strategy     string   `toml:"strategy"`
	PollInterval duration `toml:"poll_interval"`
	PollAccounts []string `toml:"poll_accounts"`
}

// CacheConfig holds the in-memory cache lifetimes.
type CacheConfig struct {
	AccountTTL       duration `toml:"account_ttl"`
	MintTTL          duration `toml:"mint_ttl"`
	TokenSetCapacity int      `toml:"token_set_capacity"`
	SweepInterval    duration `toml:"sweep_interval"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// KafkaConfig configures the execution event stream.
type KafkaConfig struct {
	Enabled     bool     `toml:"enabled"`
	Brokers     []string `toml:"brokers"`
	Topic       string   `toml:"topic"`
	Compression string   `toml:"compression"`
	Async       bool     `toml:"async"`
}

// PipelineConfig holds the maintenance loop schedule.
type PipelineConfig struct {
	ArchiveEnabled       bool     `toml:"archive_enabled"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveCron          string   `toml:"archive_cron"`
	CleanupInterval      duration `toml:"cleanup_interval"`
}

// duration lets TOML carry strings like "5m" or "250ms".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	AlertCooldown     duration `toml:"alert_cooldown"`
}

// Well-known program ids.
const (
	RaydiumAMMv4Program   = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	OrcaWhirlpoolProgram  = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	SPLTokenProgram       = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	defaultBlockEngineURL = "https://mainnet.block-engine.jito.wtf"
)

// DefaultTipAccounts are the public Jito tip payment accounts.
var DefaultTipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// Defaults returns a Config with every field at its production default.
// Sandwich and liquidation start disabled.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			WSURL:      "wss://api.mainnet-beta.solana.com",
			Commitment: "confirmed",
		},
		Jito: JitoConfig{
			Enabled:         true,
			BlockEngineURL:  defaultBlockEngineURL,
			TipAccounts:     append([]string(nil), DefaultTipAccounts...),
			BaseTipLamports: 10_000,
			MaxTipLamports:  1_000_000,
		},
		Listener: ListenerConfig{
			Programs:          []string{RaydiumAMMv4Program, OrcaWhirlpoolProgram},
			Filters:           []string{"logs", "program"},
			ChannelCapacity:   1024,
			ReconnectDelay:    duration{5 * time.Second},
			SubscribeInterval: duration{100 * time.Millisecond},
			HealthWindow:      duration{30 * time.Second},
		},
		Strategies: StrategiesConfig{
			DexPrograms:    []string{RaydiumAMMv4Program, OrcaWhirlpoolProgram, SPLTokenProgram},
			LatencyBudget:  duration{50 * time.Millisecond},
			DedupWindow:    duration{time.Minute},
			SOLPriceUSD:    150,
			SOLPriceMaxAge: duration{5 * time.Minute},
			Arbitrage: ArbitrageStrategyConfig{
				Enabled:             true,
				MinAmountIn:         1_000_000,
				MinProfitUSD:        1.0,
				MaxHops:             2,
				FlashLoanThreshold:  1_000_000_000,
				PriorityFeeLamports: 5_000,
				SlippageBps:         50,
				ComputeUnitLimit:    400_000,
				ComputeUnitPrice:    10_000,
				TTL:                 duration{2 * time.Second},
			},
			Sandwich: SandwichStrategyConfig{
				Enabled:             false,
				MinTargetSizeUSD:    1_000,
				MinProfitUSD:        2.0,
				MaxFrontRunLamports: 1_000_000_000,
				SearchSteps:         10,
				PriorityFeeLamports: 10_000,
				SlippageBps:         100,
				Competition:         0.5,
				TTL:                 duration{time.Second},
			},
			Liquidation: LiquidationStrategyConfig{
				Enabled:             false,
				MinProfitUSD:        5.0,
				MaxRepayLamports:    10_000_000_000,
				PriorityFeeLamports: 5_000,
				TTL:                 duration{5 * time.Second},
			},
		},
		Risk: RiskConfig{
			MaxSOLPerTrade:         10,
			DailyLossLimitUSD:      1_000,
			MaxConsecutiveFailures: 5,
			AutoDisableOnFailures:  true,
			StateTTL:               duration{48 * time.Hour},
			AlertInterval:          duration{time.Minute},
		},
		Simulation: SimulationConfig{
			Backend:              "rpc",
			MinProfitUSD:         1.0,
			MaxSlippageBps:       100,
			ComputeUnitLimit:     1_400_000,
			ValidateSlippage:     true,
			ValidateComputeUnits: true,
		},
		Execution: ExecutionConfig{
			ComputeUnitLimit: 200_000,
			ConfirmAttempts:  10,
			ConfirmInterval:  duration{100 * time.Millisecond},
			DedupWindow:      duration{2 * time.Minute},
			ResultQueue:      256,
		},
		Fees: FeesConfig{
			BaseFee:      5_000,
			MinFee:       1_000,
			WindowSize:   150,
			Percentile:   0.5,
			Strategy:     "balanced",
			PollInterval: duration{2 * time.Second},
		},
		Cache: CacheConfig{
			AccountTTL:       duration{60 * time.Second},
			MintTTL:          duration{300 * time.Second},
			TokenSetCapacity: 10_000,
			SweepInterval:    duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:      true,
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10_000,
		},
		Postgres: PostgresConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "mevbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "mevbot-archive",
			ForcePathStyle: true,
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			Topic:       "mevbot.executions",
			Compression: "snappy",
		},
		Pipeline: PipelineConfig{
			ArchiveEnabled:       false,
			ArchiveRetentionDays: 30,
			ArchiveCron:          "0 3 * * *",
			CleanupInterval:      duration{30 * time.Second},
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       20,
			RateLimitWindow: duration{time.Second},
		},
		Notify: NotifyConfig{
			Events:        []string{"kill_switch", "risk_alert", "execution_failed"},
			AlertCooldown: duration{15 * time.Minute},
		},
		Mode:     "engine",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"engine":  true,
	"dryrun":  true,
	"monitor": true,
	"server":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFeeStrategies = map[string]bool{
	"conservative": true,
	"balanced":     true,
	"aggressive":   true,
	"dynamic":      true,
}

var validCommitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}

// NeedsChain reports whether the mode connects to Solana.
func (c *Config) NeedsChain() bool { return c.Mode != "server" }

// Submits reports whether the mode signs and sends transactions.
func (c *Config) Submits() bool { return c.Mode == "engine" }

// Validate returns one error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: engine, dryrun, monitor, server)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.NeedsChain() {
		if c.Solana.RPCURL == "" {
			add("solana: rpc_url must not be empty")
		}
		if c.Solana.WSURL == "" {
			add("solana: ws_url must not be empty")
		}
		if !validCommitments[c.Solana.Commitment] {
			add("solana: commitment must be processed, confirmed or finalized, got %q", c.Solana.Commitment)
		}
		if len(c.Listener.Programs) == 0 && len(c.Listener.Accounts) == 0 {
			add("listener: at least one program or account must be watched")
		}
		if c.Listener.ChannelCapacity < 1 {
			add("listener: channel_capacity must be >= 1")
		}
	}

	if c.Submits() {
		if !c.Wallet.configured() {
			add("wallet: one of private_key, keypair_path or encrypted_key_path must be set for mode engine")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" && c.Wallet.PrivateKey == "" && c.Wallet.KeypairPath == "" {
			add("wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Jito.Enabled {
		if c.Jito.BlockEngineURL == "" {
			add("jito: block_engine_url must not be empty when enabled")
		}
		if len(c.Jito.TipAccounts) == 0 {
			add("jito: tip_accounts must not be empty when enabled")
		}
		if c.Jito.MaxTipLamports < c.Jito.BaseTipLamports {
			add("jito: max_tip_lamports must be >= base_tip_lamports")
		}
	}

	for i, p := range c.Strategies.Pools {
		if p.Venue == "" || p.Address == "" || p.BaseVault == "" || p.QuoteVault == "" || p.BaseMint == "" || p.QuoteMint == "" {
			add("strategies.pools[%d]: venue, address, mints and vaults are required", i)
		}
		if p.FeeBps >= 10_000 {
			add("strategies.pools[%d]: fee_bps must be < 10000", i)
		}
	}
	if c.Strategies.SOLPriceUSD <= 0 {
		add("strategies: sol_price_usd must be > 0")
	}
	if a := c.Strategies.Arbitrage; a.Enabled && (a.MaxHops < 2 || a.MaxHops > 3) {
		add("strategies.arbitrage: max_hops must be 2 or 3, got %d", a.MaxHops)
	}
	if l := c.Strategies.Liquidation; l.Enabled && len(l.Protocols) == 0 {
		add("strategies.liquidation: protocols must not be empty when enabled")
	}

	if c.Risk.MaxSOLPerTrade <= 0 {
		add("risk: max_sol_per_trade must be > 0")
	}
	if c.Risk.DailyLossLimitUSD <= 0 {
		add("risk: daily_loss_limit_usd must be > 0")
	}
	if c.Risk.MaxConsecutiveFailures < 1 {
		add("risk: max_consecutive_failures must be >= 1")
	}

	if c.Simulation.Backend != "rpc" && c.Simulation.Backend != "static" {
		add("simulation: backend must be rpc or static, got %q", c.Simulation.Backend)
	}
	if c.Simulation.MaxSlippageBps < 0 || c.Simulation.MaxSlippageBps > 10_000 {
		add("simulation: max_slippage_bps must be 0-10000")
	}

	if c.Execution.ConfirmAttempts < 1 {
		add("execution: confirm_attempts must be >= 1")
	}

	if !validFeeStrategies[c.Fees.Strategy] {
		add("fees: unknown strategy %q (valid: conservative, balanced, aggressive, dynamic)", c.Fees.Strategy)
	}
	if c.Fees.Percentile <= 0 || c.Fees.Percentile > 1 {
		add("fees: percentile must be in (0,1]")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Pipeline.ArchiveEnabled {
		if !c.Postgres.Enabled {
			add("pipeline: archive_enabled requires postgres")
		}
		if c.S3.Bucket == "" || c.S3.Region == "" {
			add("s3: bucket and region are required when archiving")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			add("kafka: brokers must not be empty when enabled")
		}
		if c.Kafka.Topic == "" {
			add("kafka: topic must not be empty when enabled")
		}
	}

	if c.Server.Enabled || c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
