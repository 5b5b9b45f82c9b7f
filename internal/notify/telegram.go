package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pegavagas/harvester/internal/job"
)

const telegramDefaultBaseURL = "https://api.telegram.org"

// TelegramConfig holds the bot credentials and send pacing.
type TelegramConfig struct {
	Token     string        `mapstructure:"token"`
	ChatID    string        `mapstructure:"chat_id"`
	SendDelay time.Duration `mapstructure:"send_delay"`
}

// Telegram sends one Markdown message per posting through the Bot API,
// paced so consecutive sends stay under the bot rate limits.
type Telegram struct {
	cfg     TelegramConfig
	baseURL string
	client  *http.Client
	pacer   *rate.Limiter
	logger  *zap.Logger
}

// NewTelegram builds the notifier. baseURL overrides the API endpoint for
// tests; pass "" for the real API.
func NewTelegram(cfg TelegramConfig, baseURL string, logger *zap.Logger) (*Telegram, error) {
	if cfg.Token == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram token and chat id: %w", ErrNotConfigured)
	}
	if cfg.SendDelay <= 0 {
		cfg.SendDelay = 500 * time.Millisecond
	}
	if baseURL == "" {
		baseURL = telegramDefaultBaseURL
	}
	return &Telegram{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		pacer:   rate.NewLimiter(rate.Every(cfg.SendDelay), 1),
		logger:  logger,
	}, nil
}

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, rec *job.Record) error {
	if err := t.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("send pacing: %w", err)
	}

	form := url.Values{}
	form.Set("chat_id", t.cfg.ChatID)
	form.Set("text", FormatMessage(rec))
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}
	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram rejected message (status %d): %s", resp.StatusCode, apiResp.Description)
	}
	t.logger.Debug("notification sent",
		zap.String("company", rec.Company),
		zap.String("title", rec.TitleOriginal))
	return nil
}

// Close implements Notifier.
func (t *Telegram) Close() error { return nil }
