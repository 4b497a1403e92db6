package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSendTextRetries(t *testing.T) {
	var calls int32
	var lastBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Too Many Requests"}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.APIBase = srv.URL
	tg.backoff = func(int) time.Duration { return time.Millisecond }

	require.NoError(t, tg.SendTextContext(context.Background(), "hello"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "42", lastBody["chat_id"])
	assert.Equal(t, "hello", lastBody["text"])
}

func TestTelegramReportsDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.APIBase = srv.URL
	tg.backoff = func(int) time.Duration { return 0 }
	err := tg.SendTextContext(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramStopsRetryingWhenContextEnds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.APIBase = srv.URL
	tg.backoff = func(int) time.Duration { return time.Hour }
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tg.SendTextContext(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTelegramRequiresConfig(t *testing.T) {
	assert.Error(t, NewTelegram("", "1").SendTextContext(context.Background(), "x"))
}

func TestRenderMarkdown(t *testing.T) {
	msg := StructuredMessage{
		Icon:     "✅",
		Title:    "Invoice fulfilled",
		Sections: []MessageSection{{Title: "Details", Lines: []string{"id: a", " ", "code ```x```"}}},
		Footer:   "done",
	}
	out := msg.RenderMarkdown()
	assert.True(t, strings.HasPrefix(out, "✅ Invoice fulfilled"))
	assert.Contains(t, out, "- id: a")
	assert.Contains(t, out, "code '''x'''")
	assert.NotContains(t, out, "- \n")

	escaped := StructuredMessage{
		Title:    "Invoice vip_gold fulfilled",
		Sections: []MessageSection{{Lines: []string{"id: vip_gold*2"}}},
		Footer:   "see [admin]",
	}.RenderMarkdown()
	assert.True(t, strings.HasPrefix(escaped, `Invoice vip\_gold fulfilled`))
	assert.Contains(t, escaped, "- id: vip_gold*2")
	assert.Contains(t, escaped, `see \[admin]`)

	long := StructuredMessage{Title: strings.Repeat("x", maxStructuredMessageLen+50)}
	assert.LessOrEqual(t, len(long.RenderMarkdown()), maxStructuredMessageLen+3)
}
