package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/questor-ai/questor/tools/websearch/models"
)

type Search struct {
	ApiKey string
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://docs.tavily.com/; include_answer asks Tavily for a
	// synthesized direct answer alongside the raw hits.
	payload := map[string]any{
		"api_key":        s.ApiKey,
		"query":          q,
		"max_results":    k,
		"search_depth":   "advanced",
		"include_answer": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.tavily.com/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily API returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.Result
	if raw.Answer != "" {
		out = append(out, models.Result{Title: "Answer", Content: raw.Answer, Answer: true})
	}
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return out, nil
}
