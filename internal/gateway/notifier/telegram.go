package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"giftbuyer/internal/pkg/text"

	"github.com/tidwall/gjson"
)

const (
	DefaultAPIBase = "https://api.telegram.org"
	sendAttempts   = 3
)

// Telegram posts operator messages to one chat through the Bot API.
type Telegram struct {
	APIBase  string
	BotToken string
	ChatID   string
	Client   *http.Client

	backoff func(attempt int) time.Duration
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		APIBase:  DefaultAPIBase,
		BotToken: botToken,
		ChatID:   chatID,
		Client:   &http.Client{Timeout: 15 * time.Second},
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
	}
}

// SendTextContext sends a markdown message, retrying up to three times. ctx
// bounds the whole exchange including the waits between attempts.
func (t *Telegram) SendTextContext(ctx context.Context, msg string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram notifier: bot_token and chat_id are required")
	}
	base := strings.TrimRight(t.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       msg,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < sendAttempts; i++ {
		if i > 0 && t.backoff != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.backoff(i - 1)):
			}
		}
		lastErr = t.post(ctx, url, body)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (t *Telegram) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode/100 == 2 {
		return nil
	}
	desc := gjson.GetBytes(raw, "description").String()
	if desc == "" {
		desc = text.Truncate(string(raw), 200)
	}
	return fmt.Errorf("telegram status=%d: %s", resp.StatusCode, desc)
}
