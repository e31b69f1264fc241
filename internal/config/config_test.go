package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEngine() Config {
	cfg := Defaults()
	cfg.Wallet.KeypairPath = "/etc/mevbot/id.json"
	return cfg
}

func TestDefaultsValidateInMonitorMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Strategies.Sandwich.Enabled)
	assert.Len(t, cfg.Jito.TipAccounts, 8)
}

func TestValidateEngineNeedsWallet(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet:")

	cfg = validEngine()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryError(t *testing.T) {
	cfg := validEngine()
	cfg.Mode = "yolo"
	cfg.Fees.Strategy = "greedy"
	cfg.Risk.MaxSOLPerTrade = 0
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil
	cfg.Strategies.Pools = []PoolConfig{{Venue: "raydium"}}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation failed:")
	assert.Contains(t, msg, `unknown mode "yolo"`)
	assert.Contains(t, msg, `fees: unknown strategy "greedy"`)
	assert.Contains(t, msg, "risk: max_sol_per_trade")
	assert.Contains(t, msg, "kafka: brokers")
	assert.Contains(t, msg, "strategies.pools[0]")
}

func TestValidateServerModeSkipsChain(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	cfg.Solana.RPCURL = ""
	cfg.Listener.Programs = nil
	assert.NoError(t, cfg.Validate())
}

func TestValidateJitoTips(t *testing.T) {
	cfg := validEngine()
	cfg.Jito.BaseTipLamports = 10
	cfg.Jito.MaxTipLamports = 5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tip_lamports")

	cfg.Jito.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mevbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "dryrun"

[solana]
rpc_url = "http://rpc.local:8899"

[risk]
max_sol_per_trade = 2.5

[listener]
reconnect_delay = "750ms"

[[strategies.pools]]
venue = "raydium"
address = "pool1"
base_mint = "So11111111111111111111111111111111111111112"
quote_mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
base_vault = "vaultA"
quote_vault = "vaultB"
fee_bps = 25
`), 0o600))

	t.Setenv("MEVBOT_RISK_DAILY_LOSS_LIMIT_USD", "250")
	t.Setenv("MEVBOT_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MEVBOT_JITO_MAX_TIP_LAMPORTS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dryrun", cfg.Mode)
	assert.Equal(t, "http://rpc.local:8899", cfg.Solana.RPCURL)
	assert.Equal(t, 2.5, cfg.Risk.MaxSOLPerTrade)
	assert.Equal(t, 250.0, cfg.Risk.DailyLossLimitUSD)
	assert.Equal(t, 750*time.Millisecond, cfg.Listener.ReconnectDelay.Duration)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, uint64(1_000_000), cfg.Jito.MaxTipLamports)
	require.Len(t, cfg.Strategies.Pools, 1)
	assert.Equal(t, uint16(25), cfg.Strategies.Pools[0].FeeBps)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[risk]\nmax_sol = 1\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk.max_sol")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRedactedConfig(t *testing.T) {
	cfg := validEngine()
	cfg.Wallet.PrivateKey = "5Kb8kLf9zgWQnogidDA76Mz"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Server.APIKey = "secret"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Empty(t, out.Redis.Password)
	assert.Equal(t, "5Kb8kLf9zgWQnogidDA76Mz", cfg.Wallet.PrivateKey)

	out.Jito.TipAccounts[0] = "mutated"
	assert.Equal(t, DefaultTipAccounts[0], cfg.Jito.TipAccounts[0])
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load("../../config.example.toml")
	require.NoError(t, err)
	assert.Equal(t, "dryrun", cfg.Mode)
	assert.True(t, cfg.Strategies.Arbitrage.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Listener.ReconnectDelay.Duration)
}
