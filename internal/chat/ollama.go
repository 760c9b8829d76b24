package chat

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
)

// Message is one turn of a conversation in the OpenAI-compatible wire shape
// that Ollama's /v1 endpoints accept.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaClient talks to a local Ollama server through its OpenAI-compatible
// chat completions endpoint.
type OllamaClient struct {
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

func NewOllamaClient(baseURL, model, systemPrompt string) *OllamaClient {
	return &OllamaClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		systemPrompt: systemPrompt,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the conversation history and returns the assistant reply.
// The configured system prompt is prepended; history should hold alternating
// user and assistant turns, oldest first, ending with the latest user turn.
func (c *OllamaClient) Complete(ctx context.Context, history []Message) (string, error) {
	msgs := make([]Message, 0, len(history)+1)
	if c.systemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: c.systemPrompt})
	}
	msgs = append(msgs, history...)

	reqBody := chatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("ollama error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from ollama")
	}

	reply := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("blank reply from ollama")
	}
	return reply, nil
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.model
}

// Close releases resources.
func (c *OllamaClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable reports whether err is a transient API failure.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
