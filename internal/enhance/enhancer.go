package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"

	"batch-transcriber/internal/domain"
)

const defaultMaxRetryTime = 30 * time.Second

// Result carries the refined text plus audit metadata for the record.
type Result struct {
	Text        string
	Elapsed     time.Duration
	PromptName  string
	Model       string
	RawRequest  string
	RawResponse string
}

// Service refines transcript text. Failures here are always absorbed
// per file by the batch manager, never escalated.
type Service interface {
	Enhance(ctx context.Context, text string, cfg domain.Enhancement) (Result, error)
}

// OpenAIEnhancer calls an OpenAI-compatible chat completion endpoint.
// A custom base URL points it at local gateways as well.
type OpenAIEnhancer struct {
	log          *logrus.Entry
	maxRetryTime time.Duration
}

// NewOpenAIEnhancer constructs the production enhancer.
func NewOpenAIEnhancer(log *logrus.Entry) *OpenAIEnhancer {
	return &OpenAIEnhancer{log: log, maxRetryTime: defaultMaxRetryTime}
}

// Enhance sends the transcript through the configured prompt. Transient
// failures are retried with exponential backoff; invalid requests fail
// immediately.
func (e *OpenAIEnhancer) Enhance(ctx context.Context, text string, cfg domain.Enhancement) (Result, error) {
	if !cfg.IsConfigured() {
		return Result{}, errors.New("enhancement is not configured")
	}

	requestOpts := make([]option.RequestOption, 0, 2)
	if cfg.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(cfg.APIKey))
	}
	client := openai.NewClient(requestOpts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(cfg.Prompt),
			openai.UserMessage(text),
		},
	}
	rawRequest, _ := json.Marshal(params)

	start := time.Now()
	var completion *openai.ChatCompletion
	op := func() error {
		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			e.log.WithError(err).Warn("enhancement request failed, will retry")
			return err
		}
		completion = resp
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = e.maxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return Result{}, fmt.Errorf("enhancement failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return Result{}, errors.New("enhancement returned no choices")
	}
	refined := strings.TrimSpace(completion.Choices[0].Message.Content)
	if refined == "" {
		return Result{}, errors.New("enhancement returned empty text")
	}

	return Result{
		Text:        refined,
		Elapsed:     time.Since(start),
		PromptName:  cfg.PromptName,
		Model:       cfg.Model,
		RawRequest:  string(rawRequest),
		RawResponse: completion.RawJSON(),
	}, nil
}
