package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagforge.dev/dagforge/model"
)

type fakeCompletionsClient struct {
	lastParams openai.ChatCompletionNewParams
	response   *openai.ChatCompletion
	err        error
}

func (f *fakeCompletionsClient) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.lastParams = body
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func completionWith(text, finishReason string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{
				Message:      openai.ChatCompletionMessage{Content: text},
				FinishReason: finishReason,
			},
		},
		Usage: openai.CompletionUsage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28},
	}
}

func TestNewRejectsNilCompletionsClient(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "gpt-4o"})
	assert.Error(t, err)
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := New(&fakeCompletionsClient{}, Options{})
	assert.Error(t, err)
}

func TestCompleteTranslatesResponse(t *testing.T) {
	fake := &fakeCompletionsClient{response: completionWith("the answer", "stop")}
	c, err := New(fake, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), &model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Text: "be terse"},
			{Role: model.RoleUser, Text: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out.Text)
	assert.Equal(t, "stop", out.StopReason)
	assert.Equal(t, 28, out.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o", fake.lastParams.Model)
	assert.Len(t, fake.lastParams.Messages, 2)
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	c, err := New(&fakeCompletionsClient{}, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &model.Request{})
	assert.Error(t, err)
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	fake := &fakeCompletionsClient{response: &openai.ChatCompletion{}}
	c, err := New(fake, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	assert.Error(t, err)
}

func TestResolveModelIDUsesSmallModelForSmallClass(t *testing.T) {
	c, err := New(&fakeCompletionsClient{}, Options{DefaultModel: "gpt-4o", SmallModel: "gpt-4o-mini"})
	require.NoError(t, err)

	got := c.resolveModelID(&model.Request{ModelClass: model.ModelClassSmall})
	assert.Equal(t, "gpt-4o-mini", got)
}

func TestResolveModelIDPrefersExplicitModel(t *testing.T) {
	c, err := New(&fakeCompletionsClient{}, Options{DefaultModel: "gpt-4o", SmallModel: "gpt-4o-mini"})
	require.NoError(t, err)

	got := c.resolveModelID(&model.Request{Model: "o1", ModelClass: model.ModelClassSmall})
	assert.Equal(t, "o1", got)
}

func TestCompleteWrapsGenericSDKError(t *testing.T) {
	fake := &fakeCompletionsClient{err: errors.New("network unreachable")}
	c, err := New(fake, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network unreachable")
}

func TestCompleteSucceedsWithRequestLevelTemperature(t *testing.T) {
	fake := &fakeCompletionsClient{response: completionWith("ok", "stop")}
	c, err := New(fake, Options{DefaultModel: "gpt-4o", Temperature: 0.2})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), &model.Request{
		Messages:    []model.Message{{Role: model.RoleUser, Text: "hi"}},
		Temperature: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
}
