package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gorax/gorax/internal/executor/agent"
	"github.com/gorax/gorax/internal/llm"
	"github.com/gorax/gorax/internal/storage"
	"github.com/gorax/gorax/internal/workflow"
)

// llmNodeConfig is the shared shape "llm" and "vision" nodes configure:
// which provider/model to call, the prompt (system/user), and optional
// credential-carried provider config. Credential injection into
// APIKey/Organization/etc. happens upstream of Dispatch — this handler only
// consumes the already resolved values.
type llmNodeConfig struct {
	Provider     string                 `json:"provider"`
	Model        string                 `json:"model"`
	System       string                 `json:"system,omitempty"`
	Prompt       string                 `json:"prompt"`
	ImageURL     string                 `json:"image_url,omitempty"`
	MaxTokens    int                    `json:"max_tokens,omitempty"`
	Temperature  *float64               `json:"temperature,omitempty"`
	APIKey       string                 `json:"api_key,omitempty"`
	Organization string                 `json:"organization,omitempty"`
	Region       string                 `json:"region,omitempty"`
	BaseURL      string                 `json:"base_url,omitempty"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

func (c llmNodeConfig) providerConfig() *llm.ProviderConfig {
	cfg := llm.DefaultProviderConfig()
	cfg.APIKey = c.APIKey
	cfg.Organization = c.Organization
	cfg.Region = c.Region
	cfg.BaseURL = c.BaseURL
	return cfg
}

// llmHandler wires "llm" and "vision" node types to an llm.ProviderRegistry,
// allowing per-node provider/model selection rather than a single
// dispatcher-wide configured provider.
type llmHandler struct {
	providers *llm.ProviderRegistry
	// imageStore and imageBucket are optional: when set, handleImageGeneration
	// persists any base64-encoded image a provider returns instead of
	// carrying the raw bytes through the context snapshot, the way a
	// production deployment would rather store a generated image in blob
	// storage than inline it in every downstream node's input. Nil leaves
	// GenerateImage's raw response untouched.
	imageStore  storage.FileStorage
	imageBucket string
}

func newLLMHandler(providers *llm.ProviderRegistry) *llmHandler {
	return &llmHandler{providers: providers}
}

// SetImageStorage wires a FileStorage backend (S3/GCS/Azure) for persisting
// imageGeneration outputs instead of carrying raw bytes through every
// downstream node's input.
func (h *llmHandler) SetImageStorage(store storage.FileStorage, bucket string) {
	h.imageStore = store
	h.imageBucket = bucket
}

func decodeLLMConfig(node *workflow.Node, snapshot *workflow.ContextSnapshot) (llmNodeConfig, error) {
	var cfg llmNodeConfig
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return cfg, err
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (h *llmHandler) handleChat(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	cfg, err := decodeLLMConfig(node, snapshot)
	if err != nil {
		return nil, fmt.Errorf("llm node %s: %w", node.ID, err)
	}

	provider, err := h.providers.GetProvider(cfg.Provider, cfg.providerConfig())
	if err != nil {
		return nil, fmt.Errorf("llm node %s: %w", node.ID, err)
	}

	messages := []llm.ChatMessage{}
	if cfg.System != "" {
		messages = append(messages, llm.SystemMessage(cfg.System))
	}
	messages = append(messages, llm.UserMessage(cfg.Prompt))

	req := &llm.ChatRequest{Model: cfg.Model, Messages: messages, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llm node %s: %w", node.ID, err)
	}

	resp, err := provider.ChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm node %s: %w", node.ID, err)
	}

	return &NodeOutput{Data: map[string]interface{}{
		"content": resp.Message.Content,
		"model":   resp.Model,
		"usage":   resp.Usage,
	}}, nil
}

// handleVision reuses handleChat's request shape, folding the image URL into
// the prompt content since the provider layer only exposes a single text
// ChatCompletion method — the wire format a concrete vision-capable provider
// needs is provider-specific multimodal content, which belongs in that
// provider's own ChatCompletion implementation, not in this dispatch layer.
func (h *llmHandler) handleVision(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	cfg, err := decodeLLMConfig(node, snapshot)
	if err != nil {
		return nil, fmt.Errorf("vision node %s: %w", node.ID, err)
	}
	if cfg.ImageURL == "" {
		return nil, fmt.Errorf("vision node %s: image_url is required", node.ID)
	}

	provider, err := h.providers.GetProvider(cfg.Provider, cfg.providerConfig())
	if err != nil {
		return nil, fmt.Errorf("vision node %s: %w", node.ID, err)
	}

	models, err := provider.ListModels(ctx)
	if err == nil {
		for _, m := range models {
			if m.ID == cfg.Model && !m.HasCapability(llm.CapabilityVision) {
				return nil, fmt.Errorf("vision node %s: model %s does not support vision", node.ID, m.ID)
			}
		}
	}

	messages := []llm.ChatMessage{}
	if cfg.System != "" {
		messages = append(messages, llm.SystemMessage(cfg.System))
	}
	messages = append(messages, llm.UserMessage(fmt.Sprintf("%s\n[image: %s]", cfg.Prompt, cfg.ImageURL)))

	req := &llm.ChatRequest{Model: cfg.Model, Messages: messages, MaxTokens: cfg.MaxTokens}
	resp, err := provider.ChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision node %s: %w", node.ID, err)
	}

	return &NodeOutput{Data: map[string]interface{}{"content": resp.Message.Content, "model": resp.Model}}, nil
}

// imageGenerationNodeConfig is the shape "imageGeneration" nodes configure.
type imageGenerationNodeConfig struct {
	llmNodeConfig
	N    int    `json:"n,omitempty"`
	Size string `json:"size,omitempty"`
}

// handleImageGeneration dispatches to a provider's optional
// llm.ImageGenerationProvider extension, the way handleVision checks a
// model's vision capability before calling ChatCompletion. Providers that
// don't implement image generation fail the node with a clear error rather
// than leaving the type entirely undispatchable.
func (h *llmHandler) handleImageGeneration(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("imageGeneration node %s: %w", node.ID, err)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, err
	}
	var cfg imageGenerationNodeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("imageGeneration node %s: invalid config: %w", node.ID, err)
	}
	if cfg.Prompt == "" {
		return nil, fmt.Errorf("imageGeneration node %s: prompt is required", node.ID)
	}

	provider, err := h.providers.GetProvider(cfg.Provider, cfg.providerConfig())
	if err != nil {
		return nil, fmt.Errorf("imageGeneration node %s: %w", node.ID, err)
	}
	imgProvider, ok := provider.(llm.ImageGenerationProvider)
	if !ok {
		return nil, fmt.Errorf("imageGeneration node %s: provider %q does not support image generation", node.ID, provider.Name())
	}

	resp, err := imgProvider.GenerateImage(ctx, &llm.ImageGenerationRequest{Model: cfg.Model, Prompt: cfg.Prompt, N: cfg.N, Size: cfg.Size})
	if err != nil {
		return nil, fmt.Errorf("imageGeneration node %s: %w", node.ID, err)
	}

	if h.imageStore != nil {
		if err := h.persistImages(ctx, node.ID, snapshot.ExecutionID, resp.Images); err != nil {
			return nil, fmt.Errorf("imageGeneration node %s: storing output: %w", node.ID, err)
		}
	}

	return &NodeOutput{Data: map[string]interface{}{
		"images":   resp.Images,
		"model":    resp.Model,
		"provider": provider.Name(),
	}}, nil
}

// persistImages uploads every base64-encoded image in images to
// h.imageStore, replacing each one's Base64 field with the stored object's
// key and leaving URL-only images (already hosted by the provider)
// untouched.
func (h *llmHandler) persistImages(ctx context.Context, nodeID, executionID string, images []llm.GeneratedImage) error {
	for i := range images {
		if images[i].Base64 == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(images[i].Base64)
		if err != nil {
			return fmt.Errorf("decoding generated image %d: %w", i, err)
		}
		key := fmt.Sprintf("imagegen/%s/%s/%d.png", executionID, nodeID, i)
		opts := &storage.UploadOptions{ContentType: "image/png"}
		if err := h.imageStore.Upload(ctx, h.imageBucket, key, bytes.NewReader(data), opts); err != nil {
			return fmt.Errorf("uploading generated image %d: %w", i, err)
		}
		images[i].Base64 = ""
		images[i].URL = key
	}
	return nil
}

// agentHandler wires "agent" nodes to the bounded tool-call loop, sharing
// the same provider registry the llm/vision handlers use.
type agentHandler struct {
	providers *llm.ProviderRegistry
	tools     *agent.Registry
	safety    agent.SafetyChecker
}

func newAgentHandler(providers *llm.ProviderRegistry, tools *agent.Registry, safety agent.SafetyChecker) *agentHandler {
	return &agentHandler{providers: providers, tools: tools, safety: safety}
}

type agentNodeConfig struct {
	llmNodeConfig
	MaxIterations int `json:"max_iterations,omitempty"`
}

func (h *agentHandler) handle(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("agent node %s: %w", node.ID, err)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, err
	}
	var cfg agentNodeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("agent node %s: invalid config: %w", node.ID, err)
	}

	provider, err := h.providers.GetProvider(cfg.Provider, cfg.providerConfig())
	if err != nil {
		return nil, fmt.Errorf("agent node %s: %w", node.ID, err)
	}

	loop := agent.NewLoop(provider, h.tools, h.safety, node.ID)
	if cfg.MaxIterations > 0 {
		loop.MaxIterations = cfg.MaxIterations
	}

	messages := []llm.ChatMessage{}
	if cfg.System != "" {
		messages = append(messages, llm.SystemMessage(cfg.System))
	}
	messages = append(messages, llm.UserMessage(cfg.Prompt))

	result, err := loop.Run(ctx, &llm.ChatRequest{Model: cfg.Model, Messages: messages, MaxTokens: cfg.MaxTokens})
	if err != nil {
		return nil, fmt.Errorf("agent node %s: %w", node.ID, err)
	}

	return &NodeOutput{Data: map[string]interface{}{
		"success":      result.Success,
		"reason":       result.Reason,
		"finalMessage": result.FinalMessage.Content,
		"iterations":   result.Iterations,
		"toolCalls":    result.ToolCalls,
	}}, nil
}
