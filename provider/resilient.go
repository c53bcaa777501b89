package provider

import (
	"context"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/resilience"
)

// resilient decorates a Provider with retry-with-backoff and a shared
// circuit breaker. The breaker is scoped to the wrapped provider: all
// sessions share it.
type resilient struct {
	inner   Provider
	retry   resilience.RetryPolicy
	breaker *resilience.Breaker
}

// WithResilience wraps p so every call retries with exponential backoff
// and trips a circuit breaker on sustained failure.
func WithResilience(p Provider, retryCfg config.RetryConfig, breakerCfg config.CircuitedConfig) Provider {
	policy := resilience.DefaultRetryPolicy()
	if retryCfg.MaxRetries > 0 {
		policy.MaxRetries = retryCfg.MaxRetries
	}
	if retryCfg.BaseDelay > 0 {
		policy.BaseDelay = retryCfg.BaseDelay
	}
	if retryCfg.MaxDelay > 0 {
		policy.MaxDelay = retryCfg.MaxDelay
	}
	return &resilient{
		inner:   p,
		retry:   policy,
		breaker: resilience.NewBreaker(breakerCfg.FailureThreshold, breakerCfg.RecoveryTimeout),
	}
}

func (r *resilient) Complete(ctx context.Context, messages []Message) (string, error) {
	var out string
	err := resilience.Retry(ctx, r.retry, func(ctx context.Context) error {
		return r.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = r.inner.Complete(ctx, messages)
			return err
		})
	})
	return out, err
}

func (r *resilient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := resilience.Retry(ctx, r.retry, func(ctx context.Context) error {
		return r.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = r.inner.CreateEmbedding(ctx, texts)
			return err
		})
	})
	return out, err
}
