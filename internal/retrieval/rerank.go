package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Reranker scores (query, candidate) pairs; higher means more
// relevant. Implementations wrap a cross-encoder model behind an API.
type Reranker interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// HTTPReranker calls a rerank endpoint with the common
// {query, documents} request shape used by hosted cross-encoders.
type HTTPReranker struct {
	URL    string
	APIKey string
	client *http.Client
}

func NewHTTPReranker(url, apiKey string) *HTTPReranker {
	return &HTTPReranker{URL: url, APIKey: apiKey, client: &http.Client{Timeout: 15 * time.Second}}
}

func (r *HTTPReranker) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	body := map[string]any{"query": query, "documents": docs}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", r.URL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank API returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing rerank response: %w", err)
	}

	scores := make([]float64, len(docs))
	for _, res := range raw.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			return nil, fmt.Errorf("rerank result index %d out of range", res.Index)
		}
		scores[res.Index] = res.Score
	}
	return scores, nil
}
