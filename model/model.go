// Package model defines the provider-agnostic reasoning-LLM client contract
// used by the Plan Compiler and the DAG Executor's final synthesis step.
// Both call through a single Client interface and never see provider SDK
// types directly; adapters in sibling packages translate to and from the
// concrete provider wire format.
package model

import "context"

// ConversationRole identifies the speaker of a Message.
type ConversationRole string

const (
	RoleSystem    ConversationRole = "system"
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// ModelClass selects a model family when Request.Model is left empty,
// letting callers express "give me the capable one" or "give me the cheap
// one" without hard-coding a provider's model identifier.
type ModelClass string

const (
	ModelClassDefault       ModelClass = ""
	ModelClassHighReasoning ModelClass = "high_reasoning"
	ModelClassSmall         ModelClass = "small"
)

// Message is a single turn in the transcript sent to the model. Unlike the
// richer multi-part messages a full tool-calling runtime would need, every
// message here carries plain text: the Plan Compiler and the synthesis step
// both only ever send and receive text, never tool-call parts, since tool
// execution in this system happens entirely outside the model call.
type Message struct {
	Role ConversationRole
	Text string
}

// TokenUsage reports token consumption for one Complete call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Request captures the inputs to a single reasoning-model invocation.
type Request struct {
	// RunID identifies the logical run this request belongs to, threaded
	// through to provider adapters for logging/tracing correlation.
	RunID string

	// Model is the provider-specific model identifier. When empty, adapters
	// select a default based on ModelClass.
	Model string

	ModelClass ModelClass

	// Messages is the ordered transcript. A leading RoleSystem message, if
	// present, carries the system prompt.
	Messages []Message

	Temperature float32

	// MaxTokens caps output length. Adapters apply their own default when
	// zero.
	MaxTokens int
}

// Response is the result of a Complete call.
type Response struct {
	// Text is the assistant's complete text output.
	Text string

	Usage TokenUsage

	// StopReason records why generation stopped, provider-specific
	// (e.g. "end_turn", "max_tokens").
	StopReason string
}

// Client is the provider-agnostic reasoning-model client. The Throttler
// wraps every call: Acquire before, Report after, per §4.1.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}
