package config

import "strings"

// Config is the root of the giftbuyer configuration file.
type Config struct {
	App    AppConfig    `toml:"app"`
	Buyer  BuyerConfig  `toml:"buyer"`
	Source SourceConfig `toml:"source"`
	Notify NotifyConfig `toml:"notify"`
	Store  StoreConfig  `toml:"store"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
}

// BuyerConfig controls the allocation loop. Invoices may be listed inline or
// kept in a separate, hot reloaded file (InvoicesPath); the file wins.
type BuyerConfig struct {
	InvoicesPath           string        `toml:"invoices_path"`
	Invoices               []InvoiceSpec `toml:"invoices"`
	MaxConcurrentInvoices  int           `toml:"max_concurrent_invoices"`
	FallbackUserID         int64         `toml:"fallback_user_id"`
	EmptyDelayMS           int           `toml:"empty_delay_ms"`
	ErrorBackoffMS         int           `toml:"error_backoff_ms"`
	BreakerThreshold       int           `toml:"breaker_threshold"`
	BreakerCooldownSeconds int           `toml:"breaker_cooldown_seconds"`
	NotifyPurchases        bool          `toml:"notify_purchases"`
}

// InvoiceSpec is one invoice as written in configuration. Prices are kept as
// text and parsed into decimals by the invoice loader.
type InvoiceSpec struct {
	ID            string `toml:"id" yaml:"id" json:"id,omitempty"`
	RecipientID   int64  `toml:"recipient_id" yaml:"recipient_id" json:"recipient_id,omitempty"`
	RecipientType string `toml:"recipient_type" yaml:"recipient_type" json:"recipient_type,omitempty"`
	MinPrice      string `toml:"min_price" yaml:"min_price" json:"min_price,omitempty"`
	MaxPrice      string `toml:"max_price" yaml:"max_price" json:"max_price,omitempty"`
	Amount        int    `toml:"amount" yaml:"amount" json:"amount"`
	MaxSupply     int64  `toml:"max_supply" yaml:"max_supply" json:"max_supply,omitempty"`
}

const (
	SourceModeTelegram = "telegram"
	SourceModeMock     = "mock"
)

type SourceConfig struct {
	Mode               string         `toml:"mode"`
	APIURL             string         `toml:"api_url"`
	BotToken           string         `toml:"bot_token"`
	TimeoutSeconds     int            `toml:"timeout_seconds"`
	PurchaseRatePerSec float64        `toml:"purchase_rate_per_sec"`
	PayForUpgrade      bool           `toml:"pay_for_upgrade"`
	GiftText           string         `toml:"gift_text"`
	MockGifts          []MockGiftSpec `toml:"mock_gifts"`
}

// MockGiftSpec seeds the dry-run catalog. Total 0 means unlimited.
type MockGiftSpec struct {
	ID        string `toml:"id"`
	Price     string `toml:"price"`
	Total     int64  `toml:"total"`
	Remaining int64  `toml:"remaining"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type StoreConfig struct {
	TransactionsPath string `toml:"transactions_path"`
	TickLogPath      string `toml:"tick_log_path"`
	PersistAllTicks  bool   `toml:"persist_all_ticks"`
}

// keySet tracks which dotted keys the files set explicitly.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault fills one field unless the key was set explicitly.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
