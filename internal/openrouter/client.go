package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuygur/llm-council/internal/reasoning"
)

// Client is an OpenRouter API client.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient creates a new Client with the default OpenRouter base URL.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    "https://openrouter.ai/api/v1",
	}
}

// NewClientWithBaseURL creates a new Client with a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

// Complete sends one chat completion request to model and returns a
// normalized Completion. It never returns an error: transport failures,
// non-200 statuses, timeouts and malformed bodies all collapse into a
// Completion with Err set. Each call is attempted exactly once. A zero
// timeout selects the model-appropriate default (reasoning models get an
// extended budget).
func (c *Client) Complete(ctx context.Context, model string, messages []Message, timeout time.Duration) *Completion {
	if timeout <= 0 {
		timeout = reasoning.Timeout(model)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return errorCompletion(model, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return errorCompletion(model, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errorCompletion(model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return errorCompletion(model, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return errorCompletion(model, err)
	}
	if len(chatResp.Choices) == 0 {
		return errorCompletion(model, fmt.Errorf("response contained no choices"))
	}

	content := chatResp.Choices[0].Message.Content
	isReasoning := reasoning.IsReasoningModel(model)
	thinking, answer := "", content
	if isReasoning {
		thinking, answer = reasoning.SplitThinking(content)
	}

	return &Completion{
		Model:       model,
		Text:        answer,
		Thinking:    thinking,
		IsReasoning: isReasoning,
		Usage:       chatResp.Usage,
	}
}

func errorCompletion(model string, err error) *Completion {
	return &Completion{
		Model:       model,
		Text:        fmt.Sprintf("Error: %v", err),
		IsReasoning: reasoning.IsReasoningModel(model),
		Err:         err.Error(),
	}
}

// ListModels retrieves available models from OpenRouter.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openrouter: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	return modelsResp.Data, nil
}
