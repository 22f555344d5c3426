// Package openai provides a model.Client implementation backed by the
// OpenAI Chat Completions API, using github.com/openai/openai-go. It mirrors
// the structure of the sibling anthropic adapter: translate Request to the
// provider's params, issue the call, translate the response and any error
// back to the provider-agnostic model types.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"dagforge.dev/dagforge/model"
)

// CompletionsClient captures the subset of the OpenAI SDK client used by the
// adapter, so callers can pass either a real client or a test double.
type CompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures optional OpenAI adapter behavior.
type Options struct {
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float64
}

// Client implements model.Client on top of OpenAI Chat Completions.
type Client struct {
	chat         CompletionsClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float64
}

// New builds an OpenAI-backed model client.
func New(chat CompletionsClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat completions client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{
		chat:         chat,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       maxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming chat completion request and translates the
// response into model.Response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	completion, err := c.chat.New(ctx, *params)
	if err != nil {
		return nil, translateError(err)
	}
	return translateResponse(completion)
}

func (c *Client) prepareRequest(req *model.Request) (*openai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, errors.New("openai: model identifier is required")
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Text))
		case model.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Text))
		default:
			msgs = append(msgs, openai.UserMessage(m.Text))
		}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	params := &openai.ChatCompletionNewParams{
		Model:               modelID,
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	temp := float64(req.Temperature)
	if temp <= 0 {
		temp = c.temp
	}
	if temp > 0 {
		params.Temperature = openai.Float(temp)
	}
	return params, nil
}

func (c *Client) resolveModelID(req *model.Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case model.ModelClassHighReasoning:
		if c.highModel != "" {
			return c.highModel
		}
	case model.ModelClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func translateResponse(completion *openai.ChatCompletion) (*model.Response, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, errors.New("openai: empty completion response")
	}
	choice := completion.Choices[0]
	return &model.Response{
		Text:       choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: model.TokenUsage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}, nil
}

// translateError classifies an OpenAI SDK error into a model.ProviderError,
// the same shape the anthropic adapter produces, so the Throttler can
// classify failures from either provider identically.
func translateError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		kind := model.ErrorKindUnknown
		retryable := false
		switch {
		case status == http.StatusTooManyRequests:
			kind = model.ErrorKindRateLimited
			retryable = true
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			kind = model.ErrorKindAuth
		case status == http.StatusBadRequest:
			kind = model.ErrorKindInvalidRequest
		case status >= 500:
			kind = model.ErrorKindUnavailable
			retryable = true
		}
		return model.NewProviderError("openai", kind, status, apiErr.Code, apiErr.Message, retryable, err)
	}
	return fmt.Errorf("openai chat.completions.new: %w", err)
}
