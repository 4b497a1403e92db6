package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppLogFormat    = "text"
	defaultAppHTTPAddr     = ":9991"
	defaultAppLogPath      = "/data/logs/giftbuyer.log"
	defaultMaxConcurrent   = 3
	defaultEmptyDelayMS    = 100
	defaultErrorBackoffMS  = 1000
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 60
	defaultSourceMode      = SourceModeTelegram
	defaultSourceAPI       = "https://api.telegram.org"
	defaultSourceTimeout   = 15
	defaultGiftText        = "Gift for {recipient}"
	defaultTransactionsDB  = "/data/db/transactions.db"
	defaultTickLogDB       = "/data/db/ticks.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Buyer.applyDefaults(keys)
	c.Source.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (b *BuyerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("buyer.max_concurrent_invoices", &b.MaxConcurrentInvoices, defaultMaxConcurrent),
		intFieldDefault("buyer.empty_delay_ms", &b.EmptyDelayMS, defaultEmptyDelayMS),
		intFieldDefault("buyer.error_backoff_ms", &b.ErrorBackoffMS, defaultErrorBackoffMS),
		intFieldDefault("buyer.breaker_threshold", &b.BreakerThreshold, defaultBreakerFailures),
		intFieldDefault("buyer.breaker_cooldown_seconds", &b.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	// an explicit zero still means "use the default capacity"
	if b.MaxConcurrentInvoices <= 0 {
		b.MaxConcurrentInvoices = defaultMaxConcurrent
	}
}

func (s *SourceConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("source.mode", &s.Mode, defaultSourceMode),
		stringFieldDefault("source.api_url", &s.APIURL, defaultSourceAPI),
		stringFieldDefault("source.gift_text", &s.GiftText, defaultGiftText),
		intFieldDefault("source.timeout_seconds", &s.TimeoutSeconds, defaultSourceTimeout),
	)
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("store.transactions_path", &s.TransactionsPath, defaultTransactionsDB),
		stringFieldDefault("store.tick_log_path", &s.TickLogPath, defaultTickLogDB),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}
