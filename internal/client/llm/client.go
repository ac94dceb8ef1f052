package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/service"
)

// errUnexpectedStatus ответ модели с не-2xx статусом
var errUnexpectedStatus = errors.New("unexpected status")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Config параметры подключения к chat-completion API
type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client клиент chat-completion API (формат OpenAI/智谱)
type Client struct {
	logger *zap.Logger
	cfg    Config
	http   *http.Client
}

// NewClient создаёт новый клиент модели
func NewClient(logger *zap.Logger, cfg Config) *Client {
	return &Client{
		logger: logger,
		cfg:    cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// chat отправляет один user-промпт и возвращает разобранный ответ.
// Сетевые ошибки оборачивают service.ErrUpstreamUnavailable, не-2xx статус даёт errUnexpectedStatus.
func (c *Client) chat(ctx context.Context, prompt string, temperature float64) (chatResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		Stream:      false,
	})
	if err != nil {
		return chatResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return chatResponse{}, fmt.Errorf("%w: %v", service.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatResponse{}, fmt.Errorf("%w: read body: %v", service.ErrUpstreamUnavailable, err)
	}

	c.logger.Debug("model responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("body_len", len(raw)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return chatResponse{}, fmt.Errorf("%w %d: %s", errUnexpectedStatus, resp.StatusCode, truncate(strings.TrimSpace(string(raw)), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return chatResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
