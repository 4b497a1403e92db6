// Package telegram buys gifts through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"giftbuyer/internal/logger"
	"giftbuyer/internal/pkg/text"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIBase  = "https://api.telegram.org"
	DefaultGiftText = "Gift for {recipient}"
	maxResponseSize = 4 << 20
)

// Config describes how to reach the Bot API.
type Config struct {
	APIBase       string
	BotToken      string
	Timeout       time.Duration
	PurchaseRate  float64
	PayForUpgrade bool
	GiftText      string
}

// Client is the gift source and purchase executor backed by one bot account.
type Client struct {
	base          *url.URL
	token         string
	httpClient    *http.Client
	purchases     *rate.Limiter
	payForUpgrade bool
	giftText      string
	nowFn         func() time.Time
}

// APIError is a response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %ds)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Declined reports whether the API refused the request itself, as opposed to
// throttling or failing on its side.
func (e *APIError) Declined() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, fmt.Errorf("telegram source: bot_token cannot be empty")
	}
	raw := strings.TrimSpace(cfg.APIBase)
	if raw == "" {
		raw = DefaultAPIBase
	}
	parsed, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse telegram api_url failed: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.PurchaseRate > 0 {
		limit = rate.Limit(cfg.PurchaseRate)
		burst = int(cfg.PurchaseRate)
		if burst < 1 {
			burst = 1
		}
	}
	giftText := strings.TrimSpace(cfg.GiftText)
	if giftText == "" {
		giftText = DefaultGiftText
	}
	return &Client{
		base:          parsed,
		token:         token,
		httpClient:    &http.Client{Timeout: timeout},
		purchases:     rate.NewLimiter(limit, burst),
		payForUpgrade: cfg.PayForUpgrade,
		giftText:      giftText,
		nowFn:         time.Now,
	}, nil
}

// Init verifies the token with getMe before the loop starts.
func (c *Client) Init(ctx context.Context) error {
	res, err := c.call(ctx, "getMe", nil)
	if err != nil {
		return fmt.Errorf("telegram session init: %w", err)
	}
	logger.Infof("Telegram: authorised as @%s (id=%d)", res.Get("username").String(), res.Get("id").Int())
	return nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (gjson.Result, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return gjson.Result{}, err
	}
	endpoint := c.base.JoinPath("bot"+c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, redactToken(err, c.token)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("telegram %s: read body: %w", method, err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("telegram %s: status=%d invalid json: %s", method, resp.StatusCode, text.Truncate(string(raw), 200))
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("ok").Bool() {
		code := int(parsed.Get("error_code").Int())
		if code == 0 {
			code = resp.StatusCode
		}
		return gjson.Result{}, &APIError{
			Method:      method,
			Code:        code,
			Description: parsed.Get("description").String(),
			RetryAfter:  int(parsed.Get("parameters.retry_after").Int()),
		}
	}
	return parsed.Get("result"), nil
}

func redactToken(err error, token string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = strings.ReplaceAll(uerr.URL, token, "<token>")
		return uerr
	}
	return err
}
