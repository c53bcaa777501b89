package httpfetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/questor-ai/questor/tools/webfetch/models"
)

type Fetch struct {
	Timeout  time.Duration
	MaxChars int // maximum characters to return from the article text
}

func (f Fetch) Exec(ctx context.Context, rawURL string) (models.Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return models.Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("User-Agent", "questor/1.0")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{URL: rawURL, Status: 599}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Result{URL: rawURL, Status: resp.StatusCode}, nil
	}

	body := io.LimitReader(resp.Body, 4<<20)
	article, err := readability.FromReader(body, parsed)
	if err != nil {
		return models.Result{URL: rawURL, Status: resp.StatusCode}, nil
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	return models.Result{
		URL:    rawURL,
		Title:  strings.TrimSpace(article.Title),
		Text:   text,
		Status: resp.StatusCode,
	}, nil
}
