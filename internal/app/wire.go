package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/mevbot/internal/blob/s3"
	"github.com/alanyoungcy/mevbot/internal/cache"
	"github.com/alanyoungcy/mevbot/internal/cache/redis"
	"github.com/alanyoungcy/mevbot/internal/chain"
	"github.com/alanyoungcy/mevbot/internal/config"
	"github.com/alanyoungcy/mevbot/internal/crypto"
	"github.com/alanyoungcy/mevbot/internal/domain"
	"github.com/alanyoungcy/mevbot/internal/fees"
	"github.com/alanyoungcy/mevbot/internal/health"
	"github.com/alanyoungcy/mevbot/internal/notify"
	"github.com/alanyoungcy/mevbot/internal/risk"
	"github.com/alanyoungcy/mevbot/internal/store/postgres"
	"github.com/alanyoungcy/mevbot/internal/stream/kafka"
)

// Dependencies bundles the infrastructure shared by every mode. Optional
// backends are nil when disabled in the configuration.
type Dependencies struct {
	// Solana
	Chain  *chain.RPCClient
	Signer domain.Signer
	Jito   *chain.JitoClient

	// Core
	Cache     *cache.Service
	Estimator *fees.Estimator
	Risk      *risk.Manager
	Metrics   *health.Metrics
	Health    *health.Aggregator

	// Redis
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	Prices      *redis.PriceCache
	Positions   *redis.PositionFeed

	// Postgres
	Executions *postgres.ExecutionStore
	Audit      *postgres.AuditStore

	// Cold storage and streaming
	Archiver domain.Archiver
	Producer *kafka.Producer

	Notifier *notify.Notifier
}

// AuditStore returns the audit store, or nil without Postgres.
func (d *Dependencies) AuditStore() domain.AuditStore {
	if d.Audit == nil {
		return nil
	}
	return d.Audit
}

// ExecutionStore returns the execution store, or nil without Postgres.
func (d *Dependencies) ExecutionStore() domain.ExecutionStore {
	if d.Executions == nil {
		return nil
	}
	return d.Executions
}

// Wire constructs every dependency the configuration enables and returns a
// cleanup function releasing them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{
		Metrics: health.NewMetrics(),
		Health:  health.NewAggregator(),
	}

	// --- Solana RPC ---
	var chainClient domain.ChainClient
	if cfg.NeedsChain() {
		deps.Chain = chain.NewRPCClient(cfg.Solana.RPCURL, cfg.Solana.Commitment)
		closers = append(closers, func() { _ = deps.Chain.Close() })
		chainClient = deps.Chain
	}

	// --- Wallet ---
	keyCfg := crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		KeypairPath:      cfg.Wallet.KeypairPath,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}
	if cfg.NeedsChain() && (cfg.Submits() || walletConfigured(keyCfg)) {
		key, err := crypto.LoadKey(keyCfg)
		if err != nil {
			return fail("wallet", err)
		}
		signer := chain.NewKeypairSignerFromKey(key)
		deps.Signer = signer
		logger.Info("wallet loaded", slog.String("pubkey", signer.PublicKey()))
	}

	// --- Jito block engine ---
	if cfg.Jito.Enabled && cfg.Submits() {
		jc, err := chain.NewJitoClient(cfg.Jito.BlockEngineURL, cfg.Jito.TipAccounts)
		if err != nil {
			return fail("jito", err)
		}
		deps.Jito = jc
	}

	// --- In-memory caches and fee estimation ---
	deps.Cache = cache.NewService(cache.Config{
		AccountTTL:       cfg.Cache.AccountTTL.Duration,
		MintTTL:          cfg.Cache.MintTTL.Duration,
		TokenSetCapacity: cfg.Cache.TokenSetCapacity,
		SweepInterval:    cfg.Cache.SweepInterval.Duration,
	}, chainClient, logger)

	feeStrategy, err := fees.ParseStrategy(cfg.Fees.Strategy)
	if err != nil {
		return fail("fees", err)
	}
	deps.Estimator = fees.NewEstimator(fees.Config{
		WindowSize: cfg.Fees.WindowSize,
		BaseFee:    cfg.Fees.BaseFee,
		MinFee:     cfg.Fees.MinFee,
		Percentile: cfg.Fees.Percentile,
		Strategy:   feeStrategy,
	})

	// --- Redis ---
	var riskOpts []risk.Option
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.LockManager = redis.NewLockManager(rc)
		deps.SignalBus = redis.NewSignalBus(rc, cfg.Redis.StreamMaxLen)
		deps.Prices = redis.NewPriceCache(rc)
		deps.Positions = redis.NewPositionFeed(rc)
		riskOpts = append(riskOpts, risk.WithStateStore(redis.NewRiskStateStore(rc, cfg.Risk.StateTTL.Duration)))
	}

	// --- Risk ---
	riskCfg := risk.Config{
		MaxSOLPerTrade:         cfg.Risk.MaxSOLPerTrade,
		DailyLossLimitUSD:      cfg.Risk.DailyLossLimitUSD,
		MaxConsecutiveFailures: uint32(cfg.Risk.MaxConsecutiveFailures),
		AutoDisableOnFailures:  cfg.Risk.AutoDisableOnFailures,
		KillSwitch:             cfg.Risk.KillSwitch,
	}
	if err := riskCfg.Validate(); err != nil {
		return fail("risk", err)
	}
	deps.Risk = risk.NewManager(riskCfg, logger, riskOpts...)
	if err := deps.Risk.Restore(ctx); err != nil {
		logger.Warn("risk state not restored", slog.String("error", err.Error()))
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			n, err := pg.RunMigrations(ctx)
			if err != nil {
				return fail("postgres migrations", err)
			}
			logger.Info("postgres migrations applied", slog.Int("count", n))
		}
		deps.Executions = postgres.NewExecutionStore(pg.Pool())
		deps.Audit = postgres.NewAuditStore(pg.Pool())
	}

	// --- S3 archive (needs the Postgres stores as its source) ---
	if cfg.Pipeline.ArchiveEnabled && deps.Executions != nil {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		closers = append(closers, func() { _ = s3c.Close() })
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3c), deps.Executions, deps.Audit)
	}

	// --- Kafka ---
	if cfg.Kafka.Enabled {
		p, err := kafka.NewProducer(deps.Metrics.Registry(), logger,
			kafka.WithBrokers(cfg.Kafka.Brokers...),
			kafka.WithTopic(cfg.Kafka.Topic),
			kafka.WithCompression(cfg.Kafka.Compression),
			kafka.WithAsync(cfg.Kafka.Async),
		)
		if err != nil {
			return fail("kafka", err)
		}
		closers = append(closers, func() { _ = p.Close() })
		deps.Producer = p
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.AlertCooldown.Duration, logger)

	// --- Kill switch fan-out and gauges ---
	if deps.Notifier.Enabled() {
		deps.Risk.OnKillSwitch(deps.Notifier.KillSwitchActivated)
	}
	if deps.SignalBus != nil {
		deps.Risk.OnKillSwitch(publishKillSwitch(deps.SignalBus, logger))
	}
	deps.Metrics.WatchKillSwitch(deps.Risk.KillSwitchActive)
	deps.Metrics.WatchFeeEstimate(deps.Estimator.PredictNextFee)
	deps.Health.Register("risk", deps.Risk)

	return deps, cleanup, nil
}

func walletConfigured(k crypto.KeyConfig) bool {
	return k.RawPrivateKey != "" || k.KeypairPath != "" || k.EncryptedKeyPath != ""
}

// publishKillSwitch returns a hook that announces activation on the risk
// channel. Hooks run on the trading path, so the publish is asynchronous.
func publishKillSwitch(bus domain.SignalBus, logger *slog.Logger) func(string) {
	return func(reason string) {
		payload, err := json.Marshal(map[string]any{
			"event":  "kill_switch",
			"reason": reason,
			"at":     time.Now().UTC(),
		})
		if err != nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := bus.Publish(ctx, domain.ChannelRisk, payload); err != nil {
				logger.Warn("kill switch publish failed", slog.String("error", err.Error()))
			}
		}()
	}
}
