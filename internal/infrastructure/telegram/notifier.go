package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/config"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/infrastructure/upstream"
	"DailyBriefing/internal/ports"
)

// Notifier sends briefings to a Telegram chat via bot API.
type Notifier struct {
	botToken  string
	chatID    string
	baseURL   string
	parseMode string
	client    *http.Client
}

var _ ports.Channel = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	baseURL := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Notifier{
		botToken:  cfg.BotToken,
		chatID:    cfg.ChatID,
		baseURL:   baseURL,
		parseMode: cfg.ParseMode,
		client:    client,
	}
}

func (n *Notifier) Name() domain.Channel {
	return domain.ChannelTelegram
}

// Available is true only when both the bot token and the chat id are set.
func (n *Notifier) Available() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// Deliver posts the message and returns Telegram's message id.
func (n *Notifier) Deliver(ctx context.Context, message string) (string, error) {
	if !n.Available() || n.client == nil {
		return "", apperr.Configuration("telegram_misconfigured", "telegram notifier misconfigured")
	}

	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    message,
	}
	if n.parseMode != "" {
		payload["parse_mode"] = n.parseMode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", apperr.Upstream("telegram_unreachable", fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", upstream.StatusError("telegram", "telegram_status", resp)
	}

	var result struct {
		OK     bool   `json:"ok"`
		Desc   string `json:"description"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperr.Upstream("telegram_decode", fmt.Errorf("decode telegram response: %w", err))
	}
	if !result.OK {
		return "", apperr.Upstream("telegram_rejected", fmt.Errorf("telegram rejected message: %s", result.Desc))
	}

	return strconv.FormatInt(result.Result.MessageID, 10), nil
}
