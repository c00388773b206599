package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
	probeMaxTokens     = 10
)

// Client is a client for an OpenAI-compatible chat completions API.
// The credential and model are supplied per call because they belong to the
// caller's session, not to the process.
type Client struct {
	BaseURL string
	timeout time.Duration
	client  *http.Client
}

// NewClient creates a new completion client. The timeout is a hard per-call
// limit, applied on top of whatever deadline the caller's context carries.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// ChatWithMessages sends a chat completion request and returns the generated
// text with usage metadata. Failures are typed: *AuthError, *TimeoutError,
// *RateLimitError, *TransportError or *MalformedResponseError.
func (c *Client) ChatWithMessages(ctx context.Context, apiKey, model string, messages []Message, params ChatParams) (*Completion, error) {
	if apiKey == "" {
		return nil, &AuthError{}
	}

	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := params.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	payload := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Err: err}
		}
		return nil, &TransportError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error()}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &MalformedResponseError{Reason: "no choices returned"}
	}

	respModel := chatResp.Model
	if respModel == "" {
		respModel = model
	}

	return &Completion{
		Content: chatResp.Choices[0].Message.Content,
		Model:   respModel,
		Usage:   chatResp.Usage,
	}, nil
}

// Probe performs one small real completion call to verify a credential and
// model. Nothing is persisted; the caller decides what to do with the
// outcome.
func (c *Client) Probe(ctx context.Context, apiKey, model string) error {
	messages := []Message{
		{Role: "system", Content: "You are a test assistant."},
		{Role: "user", Content: "Say 'Connection successful' if you can read this."},
	}
	_, err := c.ChatWithMessages(ctx, apiKey, model, messages, ChatParams{MaxTokens: probeMaxTokens})
	return err
}
