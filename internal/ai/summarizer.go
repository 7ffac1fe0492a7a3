package ai

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

	"github.com/geocoder89/resumeforge/internal/breaker"
	"github.com/geocoder89/resumeforge/internal/observability"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	maxTokens      = 120
	provider       = "openai"
)

var (
	ErrNotConfigured = errors.New("ai: completion provider not configured")
	ErrEmptyInput    = errors.New("ai: user input is required")
	ErrEmptyResponse = errors.New("ai: empty completion")
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Breaker breaker.Config
}

// Summarizer asks an OpenAI-compatible chat completions endpoint for a short
// professional summary.
type Summarizer struct {
	client  *http.Client
	cfg     Config
	breaker *breaker.Breaker
	obs     observability.ExternalObserver
}

func NewSummarizer(client *http.Client, cfg Config, obs observability.ExternalObserver) *Summarizer {
	if client == nil {
		client = observability.NewHTTPClient(30 * time.Second)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Summarizer{
		client:  client,
		cfg:     cfg,
		breaker: breaker.New(cfg.Breaker),
		obs:     obs,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func Prompt(userInput json.RawMessage) string {
	return fmt.Sprintf(
		"Create a concise 2-3 sentence professional summary for the following resume data:\n%s\nTone: professional, active verbs, max 50 words.",
		string(userInput),
	)
}

// Summarize returns breaker.ErrOpen without calling the provider while the
// circuit is open.
func (s *Summarizer) Summarize(ctx context.Context, userInput json.RawMessage) (string, error) {
	if s.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	trimmed := bytes.TrimSpace(userInput)
	if len(trimmed) == 0 || string(trimmed) == "null" || string(trimmed) == `""` {
		return "", ErrEmptyInput
	}

	body, err := json.Marshal(chatRequest{
		Model:     s.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: Prompt(trimmed)}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	var out string
	start := time.Now()

	err = s.breaker.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = s.complete(ctx, body)
		return callErr
	})

	if s.obs != nil && !errors.Is(err, breaker.ErrOpen) {
		s.obs.ObserveExternal(provider, time.Since(start), err)
	}

	return out, err
}

func (s *Summarizer) complete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ai: provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
