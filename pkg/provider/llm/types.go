package llm

// Message is a single message in a model conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// ToolCalls contains tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call
	// this message responds to.
	ToolCallID string
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned identifier for this call.
	ID string

	// Name is the tool name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to the model.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does; included in model prompts.
	Description string

	// Parameters is the JSON Schema describing the tool's input.
	Parameters map[string]any
}

// Capabilities describes what a model supports.
type Capabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function-calling support.
	SupportsToolCalling bool

	// SupportsStreaming indicates streaming completion support.
	SupportsStreaming bool
}
