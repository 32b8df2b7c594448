// Package llm adapts the OpenAI chat completions API to the
// ChatCompleter port.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"reviewminer/internal/bootstrap/config"
	"reviewminer/internal/ports"
	"reviewminer/internal/retry"
)

type Client struct {
	api        openai.Client
	hasKey     bool
	model      string
	maxTokens  int64
	maxRetries int
}

// NewClient builds the completion client. A missing API key is not an
// error here: the key is only needed once Complete is called, so
// key-less deployments can still serve everything but analysis.
func NewClient(cfg config.LLMConfig) *Client {
	// The SDK retries internally; retry behavior stays in one place.
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Client{
		api:        openai.NewClient(opts...),
		hasKey:     cfg.APIKey != "",
		model:      cfg.Model,
		maxTokens:  maxTokens,
		maxRetries: cfg.MaxRetries,
	}
}

func (c *Client) Complete(ctx context.Context, system string, user string) (string, error) {
	if !c.hasKey {
		return "", fmt.Errorf("%w: llm.api_key is not configured", ports.ErrLLMAuth)
	}

	var out string
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: c.maxRetries,
		InitialWait: 2 * time.Second,
		MaxWait:     30 * time.Second,
		Retryable:   retryableAPIError,
	}, func(ctx context.Context) error {
		resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:     openai.ChatModel(c.model),
			MaxTokens: openai.Int(c.maxTokens),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
		})
		if err != nil {
			var apierr *openai.Error
			if errors.As(err, &apierr) &&
				(apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden) {
				return fmt.Errorf("%w: %v", ports.ErrLLMAuth, err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion returned no choices")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	return out, err
}

// 429 and 5xx are worth another attempt; auth failures and other 4xx
// are not. Transport errors carry no status and are retried.
func retryableAPIError(err error) bool {
	if errors.Is(err, ports.ErrLLMAuth) {
		return false
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500
	}
	return true
}
