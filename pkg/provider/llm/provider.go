// Package llm defines the Provider interface for language-model completion
// backends.
//
// A provider wraps a remote or local chat-completion API and exposes a uniform
// interface for the call orchestrator to request turns — either as a single
// function-calling request or as an incremental token stream — without
// coupling to any specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a turn.
// Messages must be non-empty; a zero-value request is invalid.
type CompletionRequest struct {
	// Messages is the ordered conversation history, including the leading
	// system instruction turn. It is sent verbatim as the prompt.
	Messages []Message

	// Tools is the set of function definitions offered to the model. The
	// model may request at most one of them per turn; callers that receive
	// more than one tool call honor only the first.
	Tools []ToolDefinition

	// Temperature controls output randomness in [0.0, 2.0]. Zero means the
	// provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int
}

// Chunk is a single fragment emitted by a streaming completion. A chunk may
// carry text, a finish signal, tool calls, or any combination.
type Chunk struct {
	// Text is the incremental text content of this chunk.
	Text string

	// FinishReason is set on the final chunk: "stop", "length",
	// "tool_calls", or "error". Empty on non-final chunks.
	FinishReason string

	// ToolCalls contains tool invocations the model requests. Streaming
	// providers accumulate fragments and emit them on the final chunk.
	ToolCalls []ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full assistant text. Empty when the model responded
	// exclusively with tool calls.
	Content string

	// ToolCalls lists tool invocations requested by the model.
	ToolCalls []ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any completion backend.
//
// Implementations must propagate context cancellation promptly: when ctx is
// cancelled the method must return (or close its channel) as quickly as
// possible.
type Provider interface {
	// Complete sends req and waits for the full response. This is the
	// primary function-calling path.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion sends req and returns a read-only channel emitting
	// chunks as they arrive. The channel is closed when generation finishes
	// or ctx is cancelled; callers must drain it. Errors after the stream
	// opens surface as a Chunk with FinishReason "error".
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Capabilities returns static metadata about the underlying model,
	// assumed constant for the Provider's lifetime.
	Capabilities() Capabilities
}
