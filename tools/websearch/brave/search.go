package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/questor-ai/questor/tools/websearch/models"
	"github.com/questor-ai/questor/utils"
)

type Search struct {
	ApiKey string
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
	url := fmt.Sprintf("https://api.search.brave.com/res/v1/web/search?q=%s&count=%d", utils.UrlQuery(q), k)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave API returned status: %d", resp.StatusCode)
	}
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []models.Result
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Content: r.Snippet})
	}
	return out, nil
}
