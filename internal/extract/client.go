// Package extract turns cleaned posting text into structured records through
// a schema-constrained model call with deterministic repairs.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/job"
)

// ErrNotConfigured signals a missing extraction API key. It is fatal to the
// extract stage only; commands that never extract still run.
var ErrNotConfigured = errors.New("extraction client not configured")

// Client produces the raw JSON completion for one extraction prompt. The
// extractor owns decoding and repair so implementations stay thin.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error)
}

// Unconfigured stands in for the real client when no API key is set. Every
// completion fails with ErrNotConfigured without touching the network.
type Unconfigured struct{}

// Complete implements Client.
func (Unconfigured) Complete(context.Context, string, string) ([]byte, error) {
	return nil, ErrNotConfigured
}

// OpenAIConfig configures the real client.
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OpenAIClient calls the chat completions API with a strict JSON schema
// response format reflected from the extraction envelope type.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
	schema  any
	logger  *zap.Logger
}

// NewOpenAIClient builds the client.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("extraction API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		schema:  generateSchema[job.ExtractionResult](),
		logger:  logger,
	}, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "job_extraction",
					Description: openai.String("Structured job posting extraction"),
					Schema:      c.schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	c.logger.Debug("extraction completion",
		zap.String("model", c.model),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)))
	return []byte(resp.Choices[0].Message.Content), nil
}

// IsRetryable reports whether the completion error is worth another attempt:
// rate limits, server errors, and network failures are; context cancellation
// and other client errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotConfigured) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return true
}

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
