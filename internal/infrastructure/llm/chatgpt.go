package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/config"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/infrastructure/upstream"
	"DailyBriefing/internal/ports"
)

// ChatGPTClient implements ports.TextGenerator backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.TextGenerator = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig, httpClient *http.Client) *ChatGPTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ChatGPTClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the system and user messages and returns the first choice.
func (c *ChatGPTClient) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	if c == nil {
		return "", apperr.Configuration("llm_misconfigured", "chatgpt client is nil")
	}
	if c.apiKey == "" {
		return "", apperr.Configuration("credential_missing", "missing OPENAI_API_KEY")
	}
	if c.endpoint == "" || c.model == "" {
		return "", apperr.Configuration("llm_misconfigured", "chatgpt client misconfigured")
	}

	messages := make([]chatMessage, 0, 2)
	if system := strings.TrimSpace(prompt.System); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt.User})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.Upstream("llm_unreachable", fmt.Errorf("send prompt: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", upstream.StatusError("chatgpt", "llm_status", resp)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperr.Upstream("llm_decode", fmt.Errorf("decode chatgpt response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return "", apperr.Upstream("empty_generation", fmt.Errorf("chatgpt returned no choices"))
	}

	return decoded.Choices[0].Message.Content, nil
}
