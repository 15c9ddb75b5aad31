package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/workflow"
)

// NodeOutput is what a NodeHandler returns for a single node invocation.
type NodeOutput struct {
	// Data is the node's result, stored into the context snapshot under the node's ID.
	Data interface{}
	// Signal is an out-of-band value (e.g. a conditional's selectedBranch, a
	// switch's selectedRoute) recorded alongside the output for downstream
	// cascade-skip decisions.
	Signal interface{}
	// SkipTargets names downstream node IDs the dispatcher should mark
	// skipped directly as a result of this node's branch decision
	// (conditional/switch gating).
	SkipTargets []string
}

// NodeHandler executes a single node against a resolved input and the
// current context snapshot.
type NodeHandler interface {
	Handle(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error)
}

// NodeHandlerFunc adapts a function to a NodeHandler.
type NodeHandlerFunc func(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error)

func (f NodeHandlerFunc) Handle(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	return f(ctx, node, bw, snapshot)
}

// SafetyChecker is the pre/post-dispatch hook the Safety Pipeline fulfills.
// It is intentionally minimal so internal/executor does not need to import
// internal/safety's concrete detectors; nil is a valid (no-op) checker.
type SafetyChecker interface {
	CheckInput(ctx context.Context, nodeID string, payload string) error
	CheckOutput(ctx context.Context, nodeID string, payload string) (string, error)
}

// Dispatcher routes a node to its registered handler by engine node type,
// a closed-set analog of an action-type registry, wrapped with templating
// and safety hooks.
type Dispatcher struct {
	handlers        map[workflow.EngineNodeType]NodeHandler
	safety          SafetyChecker
	credentials     *credential.Injector
	breakers        *CircuitBreakerRegistry
	rateLimiter     RateLimiter
	rateLimit       int64
	rateLimitWindow time.Duration
}

// RateLimiter is the tenant-scoped request throttle the dispatcher consults
// before an http or integration node call, satisfied by
// internal/ratelimit.SlidingWindowLimiter; nil leaves Dispatch unthrottled.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID string, limit int64, window time.Duration) (bool, error)
}

// rateLimitedNodeTypes are the engine node types that place an outbound
// request on behalf of a tenant and are therefore subject to the tenant rate
// limit, distinct from the broader circuit-breaker-guarded set (llm/agent
// calls are budgeted through credits rather than request rate).
var rateLimitedNodeTypes = map[workflow.EngineNodeType]struct{}{
	workflow.EngineNodeHTTP:        {},
	workflow.EngineNodeIntegration: {},
}

// ioBoundNodeTypes are the engine node types whose handlers call out to a
// remote service; these are the only types guarded by a circuit breaker.
var ioBoundNodeTypes = map[workflow.EngineNodeType]struct{}{
	workflow.EngineNodeHTTP:            {},
	workflow.EngineNodeDatabase:        {},
	workflow.EngineNodeIntegration:     {},
	workflow.EngineNodeLLM:             {},
	workflow.EngineNodeVision:          {},
	workflow.EngineNodeImageGeneration: {},
	workflow.EngineNodeAgent:           {},
}

// NewDispatcher creates a Dispatcher with the built-in handlers registered.
func NewDispatcher(safety SafetyChecker) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[workflow.EngineNodeType]NodeHandler),
		safety:   safety,
	}
	registerBuiltinHandlers(d)
	return d
}

// SetCredentialInjector wires a credential vault lookup into Dispatch so
// node configs can reference stored credentials instead of embedding
// secrets directly. A nil injector (the default) leaves node configs
// untouched.
func (d *Dispatcher) SetCredentialInjector(injector *credential.Injector) {
	d.credentials = injector
}

// SetCircuitBreakers wires a CircuitBreakerRegistry into Dispatch. Each
// I/O-bound node type is guarded by a breaker keyed on
// (nodeType, integration-target) — the target being whatever the node's
// resolved config names as the remote endpoint (a URL, or a provider name
// for llm/vision/imageGeneration/agent nodes) — so a failing target trips
// its own breaker without tripping unrelated targets dispatched through the
// same handler. A nil registry (the default) leaves Dispatch unguarded.
func (d *Dispatcher) SetCircuitBreakers(registry *CircuitBreakerRegistry) {
	d.breakers = registry
}

// SetRateLimiter wires a tenant-scoped rate limiter into Dispatch, applied to
// http and integration nodes before the handler (and any circuit breaker) is
// invoked. A nil limiter (the default) leaves Dispatch unthrottled.
func (d *Dispatcher) SetRateLimiter(limiter RateLimiter, limit int64, window time.Duration) {
	d.rateLimiter = limiter
	d.rateLimit = limit
	d.rateLimitWindow = window
}

// ErrRateLimited is returned when a tenant has exceeded its outbound request
// rate limit for http/integration nodes.
var ErrRateLimited = fmt.Errorf("tenant rate limit exceeded")

// integrationTarget extracts the remote endpoint a dispatched node's config
// names, for circuit breaker keying. Config shapes vary by node type, so
// this only looks at the handful of fields handlers actually read.
func integrationTarget(node *workflow.Node) string {
	var cfg struct {
		URL      string `json:"url"`
		Provider string `json:"provider"`
	}
	if len(node.Config) > 0 {
		_ = json.Unmarshal(node.Config, &cfg)
	}
	if cfg.URL != "" {
		return cfg.URL
	}
	return cfg.Provider
}

// Register installs (or replaces) the handler for an engine node type.
func (d *Dispatcher) Register(t workflow.EngineNodeType, h NodeHandler) {
	d.handlers[t] = h
}

// Dispatch resolves node.Type to an engine type, runs the pre-check on the
// node's interpolated input, invokes the handler, then runs the post-check
// on its output before returning.
func (d *Dispatcher) Dispatch(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	et, ok := bw.EngineType[node.ID]
	if !ok {
		return nil, fmt.Errorf("node %q has no resolved engine type", node.ID)
	}
	handler, ok := d.handlers[et]
	if !ok {
		return nil, fmt.Errorf("no handler registered for node type %q", et)
	}

	var credentialValues []string
	dispatchNode := node
	if d.credentials != nil && len(node.Config) > 0 {
		injCtx := &credential.InjectionContext{
			TenantID:    snapshot.TenantID,
			WorkflowID:  snapshot.WorkflowID,
			ExecutionID: snapshot.ExecutionID,
		}
		injected, ierr := d.credentials.InjectCredentials(ctx, node.Config, injCtx)
		if ierr != nil {
			return nil, fmt.Errorf("failed to inject credentials for node %q: %w", node.ID, ierr)
		}
		resolved := *node
		resolved.Config = injected.Config
		resolved.Data.Config = injected.Config
		dispatchNode = &resolved
		credentialValues = injected.Values
	}

	if _, limited := rateLimitedNodeTypes[et]; limited && d.rateLimiter != nil {
		allowed, rerr := d.rateLimiter.Allow(ctx, snapshot.TenantID, d.rateLimit, d.rateLimitWindow)
		if rerr != nil {
			return nil, fmt.Errorf("rate limit check for node %q: %w", node.ID, rerr)
		}
		if !allowed {
			return nil, ErrRateLimited
		}
	}

	if d.safety != nil {
		payload, err := renderInputPreview(dispatchNode, snapshot)
		if err == nil {
			if cerr := d.safety.CheckInput(ctx, node.ID, payload); cerr != nil {
				return nil, cerr
			}
		}
	}

	var out *NodeOutput
	_, guarded := ioBoundNodeTypes[et]
	if d.breakers != nil && guarded {
		key := string(et) + ":" + integrationTarget(dispatchNode)
		breaker := d.breakers.GetOrCreate(key)
		result, berr := breaker.ExecuteWithResult(ctx, func(ctx context.Context) (interface{}, error) {
			return handler.Handle(ctx, dispatchNode, bw, snapshot)
		})
		if berr != nil {
			return nil, berr
		}
		out = result.(*NodeOutput)
	} else {
		var err error
		out, err = handler.Handle(ctx, dispatchNode, bw, snapshot)
		if err != nil {
			return nil, err
		}
	}

	if len(credentialValues) > 0 {
		out.Data = d.credentials.MaskOutput(out.Data, credentialValues)
	}

	if d.safety != nil && out != nil {
		if preview, err := stringifyForSafety(out.Data); err == nil {
			cleaned, cerr := d.safety.CheckOutput(ctx, node.ID, preview)
			if cerr != nil {
				return nil, cerr
			}
			if cleaned != preview {
				out.Data = cleaned
			}
		}
	}

	return out, nil
}

func renderInputPreview(node *workflow.Node, snapshot *workflow.ContextSnapshot) (string, error) {
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return "", err
	}
	return stringifyForSafety(resolved)
}

func stringifyForSafety(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
