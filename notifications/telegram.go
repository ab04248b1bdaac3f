package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Telegram message size limits
const (
	captionLimit = 1024
	textLimit    = 4096
)

// SendError carries the transport outcome of one Telegram call so the
// orchestrator can decide between retry-once and skip.
type SendError struct {
	ChatID     string
	StatusCode int // 0 for network-level failures
	Err        error
}

// Error implements the error interface
func (e *SendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("telegram send to %s failed: HTTP %d: %v", e.ChatID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("telegram send to %s failed: %v", e.ChatID, e.Err)
}

// Unwrap returns the underlying error
func (e *SendError) Unwrap() error {
	return e.Err
}

// Transient reports whether a retry within the same cycle makes sense.
// Network failures, 429s and 5xx are transient; other 4xx (bad chat, blocked
// bot) are permanent.
func (e *SendError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TelegramNotifier sends notifications through the Telegram bot API. A
// global rate limiter keeps the whole fan-out under the API's flood limits
// regardless of the caller's concurrency.
type TelegramNotifier struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(token string, messagesPerSecond float64) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL: "https://api.telegram.org/bot" + token,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), 5),
	}
}

// Send delivers one message to one recipient. Photo messages carry the text
// as caption; either way the deal link rides on an inline keyboard button.
func (t *TelegramNotifier) Send(ctx context.Context, chatID string, msg Message) error {
	if chatID == "" {
		return &SendError{ChatID: chatID, Err: fmt.Errorf("empty chat id")}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return &SendError{ChatID: chatID, Err: err}
	}

	payload := map[string]interface{}{
		"chat_id":    chatID,
		"parse_mode": "HTML",
	}

	if msg.DealURL != "" {
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": [][]map[string]string{
				{{"text": "Ver Oferta", "url": msg.DealURL}},
			},
		}
	}

	path := "/sendMessage"
	if msg.ImageURL != "" {
		path = "/sendPhoto"
		payload["photo"] = msg.ImageURL
		payload["caption"] = clip(msg.Text, captionLimit)
	} else {
		payload["text"] = clip(msg.Text, textLimit)
		payload["disable_web_page_preview"] = true
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &SendError{ChatID: chatID, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &SendError{ChatID: chatID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &SendError{ChatID: chatID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("⚠️  Telegram API error for %s: %s", chatID, string(apiBody))
		return &SendError{
			ChatID:     chatID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("telegram API rejected message"),
		}
	}

	return nil
}

// clip truncates a message body to Telegram's limit. Telegram counts
// characters, so this counts runes; a byte cut could also split a rune and
// produce a payload the API rejects outright.
func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-4]) + "..."
}
