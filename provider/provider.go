package provider

import (
	"context"
	"errors"

	"github.com/questor-ai/questor/config"
	openai_provider "github.com/questor-ai/questor/provider/openai"
)

// Message is a single role-tagged entry in a conversation.
type Message = openai_provider.Message

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider is the interface all text-generation implementations satisfy.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an LLM client from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	default:
		return nil, errors.New("unsupported LLM provider: " + cfg.Provider)
	}
}
