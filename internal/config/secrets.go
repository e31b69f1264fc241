package config

import "slices"

// RedactedConfig returns a copy of cfg with secrets replaced by "***", safe
// to log. Slices are copied so the result can be mutated freely.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Jito.TipAccounts = slices.Clone(cfg.Jito.TipAccounts)
	out.Listener.Programs = slices.Clone(cfg.Listener.Programs)
	out.Listener.Accounts = slices.Clone(cfg.Listener.Accounts)
	out.Listener.Filters = slices.Clone(cfg.Listener.Filters)
	out.Strategies.DexPrograms = slices.Clone(cfg.Strategies.DexPrograms)
	out.Strategies.Pools = slices.Clone(cfg.Strategies.Pools)
	out.Strategies.Arbitrage.Venues = slices.Clone(cfg.Strategies.Arbitrage.Venues)
	out.Strategies.Arbitrage.Intermediates = slices.Clone(cfg.Strategies.Arbitrage.Intermediates)
	out.Strategies.Liquidation.Protocols = slices.Clone(cfg.Strategies.Liquidation.Protocols)
	out.Fees.PollAccounts = slices.Clone(cfg.Fees.PollAccounts)
	out.Kafka.Brokers = slices.Clone(cfg.Kafka.Brokers)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)

	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
