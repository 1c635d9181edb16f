package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drdoc/drdoc/internal/config"
)

// CompletionClient phrases the final answer from assembled evidence.
// Implementations must be safe for concurrent use.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatCompletionClient calls an OpenAI-compatible chat completions API.
type ChatCompletionClient struct {
	client     *http.Client
	apiKey     string
	endpoint   string
	model      string
	maxRetries int
}

// NewChatCompletionClient creates a completion client from config.
func NewChatCompletionClient(cfg config.CompletionConfig) (*ChatCompletionClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion.api_key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		switch cfg.Provider {
		case "volcengine":
			endpoint = "https://ark.cn-beijing.volces.com/api/v3/chat/completions"
		default:
			endpoint = "https://api.openai.com/v1/chat/completions"
		}
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &ChatCompletionClient{
		client:     &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		maxRetries: maxRetries,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends a single chat turn and returns the model's reply.
// Transient failures retry with doubling delay.
func (c *ChatCompletionClient) Complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	delay := time.Second

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		text, err := c.complete(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("completion request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *ChatCompletionClient) complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
		TopP:        0.7,
		MaxTokens:   1024,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := chatResp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty content in response")
	}
	return content, nil
}
