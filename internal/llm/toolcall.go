package llm

import "encoding/json"

// Tool describes a function the model may call, extending ChatRequest
// (config.go) with the function-calling surface the agent node type
// requires. The JSON schema shape mirrors what the real Anthropic/OpenAI
// tool-use APIs expect, so a concrete provider client only needs to marshal
// this struct into its own wire format.
type Tool struct {
	// Name is the tool's identifier, as the model will reference it in a ToolCall.
	Name string `json:"name"`

	// Description tells the model when and how to use the tool.
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the tool's arguments.
	Parameters json.RawMessage `json:"parameters"`
}

// ToolCall is a single invocation the model requested.
type ToolCall struct {
	// ID uniquely identifies this call within a response, echoed back by
	// the corresponding "tool" role ChatMessage.ToolCallID.
	ID string `json:"id"`

	// Name is the tool being invoked.
	Name string `json:"name"`

	// Arguments is the raw JSON arguments object the model produced.
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is what a tool invocation produces, wrapped back into a
// ChatMessage with role "tool" before the next ChatCompletion call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolMessage builds the ChatMessage that reports a tool's result back to the model.
func ToolMessage(result ToolResult) ChatMessage {
	return ChatMessage{
		Role:       "tool",
		Content:    result.Content,
		ToolCallID: result.ToolCallID,
	}
}
