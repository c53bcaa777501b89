package websearch

import (
	"context"

	"github.com/questor-ai/questor/tools/websearch/brave"
	"github.com/questor-ai/questor/tools/websearch/models"
	"github.com/questor-ai/questor/tools/websearch/serper"
	"github.com/questor-ai/questor/tools/websearch/tavily"
)

type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case TavilyProvider:
		return tavily.Search{ApiKey: apiKey}, nil
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
