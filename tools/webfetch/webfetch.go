package webfetch

import (
	"context"
	"time"

	"github.com/questor-ai/questor/tools/webfetch/httpfetch"
	"github.com/questor-ai/questor/tools/webfetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType FetcherType = "http"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case HTTPFetcherType:
		return &httpfetch.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}
