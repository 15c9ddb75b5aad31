// Package agent implements the bounded LLM-tool-call loop an "agent" node
// runs: call the model, execute any tool calls it requests, feed the
// results back, and repeat until the model stops calling tools or the
// iteration cap is hit.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorax/gorax/internal/llm"
)

// ToolExecutor runs a single tool call and returns its result payload.
type ToolExecutor interface {
	Execute(ctx context.Context, call llm.ToolCall) (string, error)
}

// ToolExecutorFunc adapts a function to a ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, call llm.ToolCall) (string, error)

func (f ToolExecutorFunc) Execute(ctx context.Context, call llm.ToolCall) (string, error) {
	return f(ctx, call)
}

// SafetyChecker mirrors the dispatcher's pre/post-check hook so the agent
// loop can run each tool call's input and output through the same pipeline
// a regular node dispatch would.
type SafetyChecker interface {
	CheckInput(ctx context.Context, nodeID string, payload string) error
	CheckOutput(ctx context.Context, nodeID string, payload string) (string, error)
}

// Registry maps tool name to its definition and executor.
type Registry struct {
	tools     map[string]llm.Tool
	executors map[string]ToolExecutor
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]llm.Tool{}, executors: map[string]ToolExecutor{}}
}

// Register adds a tool definition and its executor.
func (r *Registry) Register(tool llm.Tool, exec ToolExecutor) {
	r.tools[tool.Name] = tool
	r.executors[tool.Name] = exec
}

// Definitions returns every registered tool's definition, for inclusion in
// a ChatRequest.Tools.
func (r *Registry) Definitions() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Loop drives the bounded agent tool-call cycle.
type Loop struct {
	Provider    llm.Provider
	Tools       *Registry
	Safety      SafetyChecker
	MaxIterations int
	NodeID      string
}

// NewLoop builds a Loop with a default cap of 10 max iterations.
func NewLoop(provider llm.Provider, tools *Registry, safety SafetyChecker, nodeID string) *Loop {
	return &Loop{Provider: provider, Tools: tools, Safety: safety, MaxIterations: 10, NodeID: nodeID}
}

// Result is what a completed agent loop produces. Success is false only
// when the loop stopped because it hit MaxIterations without the model
// returning a tool-call-free message; Reason then names why ("iteration_limit").
// Hitting the cap is a completed node outcome, not a loop error, so a
// downstream node can branch on Success.
type Result struct {
	Success      bool
	Reason       string
	FinalMessage llm.ChatMessage
	Iterations   int
	ToolCalls    []llm.ToolCall
}

// Run executes req, resolving any tool calls the model makes against the
// Loop's tool registry, until the model returns a message with no tool
// calls or MaxIterations is reached.
func (l *Loop) Run(ctx context.Context, req *llm.ChatRequest) (*Result, error) {
	if l.MaxIterations <= 0 {
		l.MaxIterations = 10
	}
	req.Tools = l.Tools.Definitions()

	messages := append([]llm.ChatMessage(nil), req.Messages...)
	var allCalls []llm.ToolCall

	for iter := 0; iter < l.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent loop cancelled: %w", err)
		}

		turn := *req
		turn.Messages = messages
		resp, err := l.Provider.ChatCompletion(ctx, &turn)
		if err != nil {
			return nil, fmt.Errorf("agent loop: chat completion: %w", err)
		}

		if l.Safety != nil {
			cleaned, err := l.Safety.CheckOutput(ctx, l.NodeID, resp.Message.Content)
			if err != nil {
				return nil, err
			}
			resp.Message.Content = cleaned
		}

		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			return &Result{Success: true, FinalMessage: resp.Message, Iterations: iter + 1, ToolCalls: allCalls}, nil
		}

		for _, call := range resp.Message.ToolCalls {
			allCalls = append(allCalls, call)
			result, err := l.invokeTool(ctx, call)
			if err != nil {
				messages = append(messages, llm.ToolMessage(llm.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}))
				continue
			}
			messages = append(messages, llm.ToolMessage(llm.ToolResult{ToolCallID: call.ID, Content: result}))
		}
	}

	return &Result{
		Success:    false,
		Reason:     "iteration_limit",
		Iterations: l.MaxIterations,
		ToolCalls:  allCalls,
	}, nil
}

func (l *Loop) invokeTool(ctx context.Context, call llm.ToolCall) (string, error) {
	tool, ok := l.Tools.tools[call.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
	if err := validateArguments(tool, call.Arguments); err != nil {
		return "", fmt.Errorf("tool %q: invalid arguments: %w", call.Name, err)
	}

	if l.Safety != nil {
		if err := l.Safety.CheckInput(ctx, l.NodeID, string(call.Arguments)); err != nil {
			return "", err
		}
	}

	executor, ok := l.Tools.executors[call.Name]
	if !ok {
		return "", fmt.Errorf("no executor registered for tool %q", call.Name)
	}
	result, err := executor.Execute(ctx, call)
	if err != nil {
		return "", err
	}

	if l.Safety != nil {
		cleaned, err := l.Safety.CheckOutput(ctx, l.NodeID, result)
		if err != nil {
			return "", err
		}
		result = cleaned
	}
	return result, nil
}

// jsonSchema is the narrow subset of JSON Schema this package enforces:
// object type, required properties, and each property's declared type.
// go-playground/validator validates Go struct tags, not arbitrary JSON
// documents, so argument validation is hand-rolled against this subset
// instead.
type jsonSchema struct {
	Type       string                 `json:"type"`
	Required   []string               `json:"required"`
	Properties map[string]jsonSchema  `json:"properties"`
}

// validateArguments checks a tool call's arguments against the tool's
// declared parameter schema before the executor ever sees them.
func validateArguments(tool llm.Tool, args json.RawMessage) error {
	if len(tool.Parameters) == 0 {
		return nil
	}
	var schema jsonSchema
	if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
		return fmt.Errorf("invalid tool parameter schema: %w", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(args, &doc); err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	for _, field := range schema.Required {
		if _, ok := doc[field]; !ok {
			return fmt.Errorf("missing required argument %q", field)
		}
	}
	for name, propSchema := range schema.Properties {
		value, present := doc[name]
		if !present {
			continue
		}
		if propSchema.Type != "" && !matchesJSONType(value, propSchema.Type) {
			return fmt.Errorf("argument %q: expected type %q", name, propSchema.Type)
		}
	}
	return nil
}

func matchesJSONType(value interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}
