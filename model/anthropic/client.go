// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API, using github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"dagforge.dev/dagforge/model"
)

// MessagesClient captures the subset of the Anthropic SDK client used by the
// adapter, so callers can pass either a real client or a test double.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures optional Anthropic adapter behavior.
type Options struct {
	// DefaultModel is used when Request.Model is empty and Request.ModelClass
	// does not resolve to HighModel or SmallModel.
	DefaultModel string
	HighModel    string
	SmallModel   string

	// MaxTokens is the output cap used when a Request does not specify one.
	MaxTokens int
	// Temperature is used when a Request does not specify one.
	Temperature float64
}

// Client implements model.Client on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float64
}

// New builds an Anthropic-backed model client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       maxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming Messages.New request and translates the
// response into model.Response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, translateError(err)
	}
	return translateResponse(msg), nil
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	var system []sdk.TextBlockParam
	var conversation []sdk.MessageParam
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			if m.Text != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Text})
			}
			continue
		}
		role := sdk.MessageParamRoleUser
		if m.Role == model.RoleAssistant {
			role = sdk.MessageParamRoleAssistant
		}
		conversation = append(conversation, sdk.MessageParam{
			Role:    role,
			Content: []sdk.ContentBlockParamUnion{{OfText: &sdk.TextBlockParam{Text: m.Text}}},
		})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  conversation,
		Model:     sdk.Model(modelID),
	}
	if len(system) > 0 {
		params.System = system
	}
	temp := float64(req.Temperature)
	if temp <= 0 {
		temp = c.temp
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	return &params, nil
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

func translateResponse(msg *sdk.Message) *model.Response {
	resp := &model.Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			resp.Text += block.Text
		}
	}
	resp.Usage = model.TokenUsage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return resp
}

// translateError classifies an Anthropic SDK error into a model.ProviderError
// so the Throttler's Report call can tell a rate limit from any other
// failure without importing the Anthropic SDK's own error types.
func translateError(err error) error {
	var apiErr *sdk.Error
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
		return model.NewProviderError("anthropic", kind, status, "", apiErr.Error(), retryable, err)
	}
	return fmt.Errorf("anthropic messages.new: %w", err)
}
