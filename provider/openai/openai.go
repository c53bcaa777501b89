package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// client implements the provider interface against any
// OpenAI-compatible chat-completions endpoint.
type client struct {
	apiKey          string
	baseURL         string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request represents a chat-completions request
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// response represents a chat-completions response
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new OpenAI-compatible client
func NewClient(apiKey, baseURL, completionModel, embeddingModel string, temperature float64, maxTokens int, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &client{
		apiKey:          apiKey,
		baseURL:         baseURL,
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// Complete sends the conversation to the chat-completions endpoint and
// returns the first choice's content.
func (c *client) Complete(ctx context.Context, messages []Message) (string, error) {
	requestBody := request{
		Model:       c.completionModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp response
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return openaiResp.Choices[0].Message.Content, nil
}

// CreateEmbedding generates an embedding for the given texts
func (c *client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requestBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	vecs := make([][]float32, len(openaiResp.Data))
	for i, d := range openaiResp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
