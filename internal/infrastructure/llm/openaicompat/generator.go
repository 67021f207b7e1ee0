// Package openaicompat generates rewrites through any OpenAI-compatible chat
// completions endpoint (OpenAI, Gemini's compatibility layer, vLLM, ...).
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/resilience"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Generator struct {
	client   openai.Client
	model    string
	executor *resilience.Executor
}

// New fails with domain.ErrMissingConfig when the key or model is absent.
func New(cfg Config, executor *resilience.Executor) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrMissingConfig, "openai generator", errors.New("GENERATION_API_KEY is required"))
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, domain.WrapError(domain.ErrMissingConfig, "openai generator", errors.New("GENERATION_MODEL is required"))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	return &Generator{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		executor: executor,
	}, nil
}

// Generate sends the prompt as a single user message. It is never retried.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	fn := func(callCtx context.Context) error {
		resp, err := g.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(g.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion has no choices")
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	var err error
	if g.executor == nil {
		err = fn(ctx)
	} else {
		err = g.executor.Execute(ctx, "openai.generate", fn, classifyError)
	}
	if err != nil {
		if classifyError(err).Retryable {
			return "", domain.WrapError(domain.ErrTemporary, "openai generate", err)
		}
		return "", fmt.Errorf("openai generate: %w", err)
	}
	return text, nil
}

var classifyError = resilience.Classifier(func(err error) (resilience.ErrorClassification, bool) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return resilience.ErrorClassification{}, false
	}
	return resilience.HTTPStatus(apiErr.StatusCode), true
})
