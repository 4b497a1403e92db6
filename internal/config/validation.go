package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func validate(c *Config) error {
	if err := c.Buyer.validate(); err != nil {
		return err
	}
	if err := c.Source.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (b *BuyerConfig) validate() error {
	// a zero delay would spin on an empty catalog or a failing source
	if b.EmptyDelayMS <= 0 {
		return fmt.Errorf("buyer.empty_delay_ms must be > 0")
	}
	if b.ErrorBackoffMS <= 0 {
		return fmt.Errorf("buyer.error_backoff_ms must be > 0")
	}
	if b.BreakerThreshold < 0 {
		return fmt.Errorf("buyer.breaker_threshold must be >= 0")
	}
	if b.BreakerCooldownSeconds < 0 {
		return fmt.Errorf("buyer.breaker_cooldown_seconds must be >= 0")
	}
	if b.FallbackUserID < 0 {
		return fmt.Errorf("buyer.fallback_user_id must be >= 0")
	}
	for i, inv := range b.Invoices {
		if err := inv.Validate(); err != nil {
			return fmt.Errorf("buyer.invoices[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks one invoice entry independently of where it came from.
func (s InvoiceSpec) Validate() error {
	if s.Amount < 0 {
		return fmt.Errorf("amount must be >= 0")
	}
	if s.MaxSupply < 0 {
		return fmt.Errorf("max_supply must be >= 0")
	}
	minPrice, err := ParsePrice(s.MinPrice)
	if err != nil {
		return fmt.Errorf("min_price: %w", err)
	}
	maxPrice, err := ParsePrice(s.MaxPrice)
	if err != nil {
		return fmt.Errorf("max_price: %w", err)
	}
	if minPrice != nil && maxPrice != nil && minPrice.GreaterThan(*maxPrice) {
		return fmt.Errorf("min_price %s is above max_price %s", minPrice, maxPrice)
	}
	switch strings.ToLower(strings.TrimSpace(s.RecipientType)) {
	case "", "user", "individual", "channel", "chat", "group":
	default:
		return fmt.Errorf("unknown recipient_type %q", s.RecipientType)
	}
	return nil
}

// ParsePrice parses an optional price bound. Empty text means no bound.
func ParsePrice(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", raw)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("price %q must be >= 0", raw)
	}
	return &d, nil
}

func (s *SourceConfig) validate() error {
	switch s.Mode {
	case SourceModeTelegram:
		if strings.TrimSpace(s.BotToken) == "" {
			return fmt.Errorf("source.bot_token is required when source.mode=telegram")
		}
	case SourceModeMock:
		for i, g := range s.MockGifts {
			if strings.TrimSpace(g.ID) == "" {
				return fmt.Errorf("source.mock_gifts[%d] missing id", i)
			}
			if _, err := ParsePrice(g.Price); err != nil {
				return fmt.Errorf("source.mock_gifts[%d]: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("source.mode %q is not supported (telegram|mock)", s.Mode)
	}
	if s.PurchaseRatePerSec < 0 {
		return fmt.Errorf("source.purchase_rate_per_sec must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
		}
	}
	return nil
}
