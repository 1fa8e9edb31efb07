package provider

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/flowpilot/config"
	openai_provider "github.com/mohammad-safakhou/flowpilot/provider/openai"
)

// Client names a supported LLM backend.
type Client string

const OpenAI Client = "openai"

// Options tune a single completion request. Zero values fall back to the provider defaults.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// ErrMissingAPIKey is returned by providers constructed without a usable credential.
var ErrMissingAPIKey = openai_provider.ErrMissingAPIKey

// NewProvider creates the configured LLM client. A missing API key is not a construction error:
// the returned provider fails every call with ErrMissingAPIKey instead.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case "", OpenAI:
		c, err := openai_provider.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return &openAIAdapter{client: c}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

type openAIAdapter struct {
	client *openai_provider.Client
}

func (a *openAIAdapter) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return a.client.Complete(ctx, prompt, openai_provider.CallOptions{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
}
