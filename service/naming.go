package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AnTengye/auctionhub/backend/config"
)

// NamingService turns a short prompt into a listing title.
type NamingService interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatNamingService calls an OpenAI-compatible chat completions endpoint.
type ChatNamingService struct {
	config     *config.NamingConfig
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const namingSystemPrompt = "You write short, factual titles for bank auction property listings. Reply with the title only."

// NewChatNamingService returns nil when no endpoint is configured; the
// resolver then always uses the fallback title.
func NewChatNamingService(cfg *config.NamingConfig) *ChatNamingService {
	if cfg.APIURL == "" {
		return nil
	}
	return &ChatNamingService{
		config:     cfg,
		httpClient: &http.Client{},
	}
}

// Generate sends one chat completion request and returns the raw reply text.
func (s *ChatNamingService) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: s.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: namingSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   60,
		Temperature: 0.3,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.config.APIURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("naming API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("naming API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in naming response")
	}
	return result.Choices[0].Message.Content, nil
}
