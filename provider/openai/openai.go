package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const defaultModel = "gpt-4o-mini"

// ErrMissingAPIKey indicates no OpenAI credential was configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY not set")

// Client sends single-message chat completions to an OpenAI compatible endpoint.
type Client struct {
	llm         llms.Model
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// CallOptions override the client defaults for one request.
type CallOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewOpenAIClient creates a new OpenAI client. An empty apiKey yields a client whose calls fail
// with ErrMissingAPIKey.
func NewOpenAIClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) (*Client, error) {
	if model == "" {
		model = defaultModel
	}
	c := &Client{model: model, temperature: temperature, maxTokens: maxTokens, timeout: timeout}
	if strings.TrimSpace(apiKey) == "" {
		return c, nil
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	c.llm = llm
	return c, nil
}

// Complete sends prompt as a single user message and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	if c.llm == nil {
		return "", ErrMissingAPIKey
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	callOpts := []llms.CallOption{
		llms.WithModel(model),
		llms.WithTemperature(temperature),
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(maxTokens))
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, callOpts...)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Content, nil
}
