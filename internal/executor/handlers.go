package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/gorax/gorax/internal/executor/actions"
	"github.com/gorax/gorax/internal/executor/expression"
	"github.com/gorax/gorax/internal/executor/javascript"
	"github.com/gorax/gorax/internal/workflow"
)

// registerBuiltinHandlers wires every deterministic/in-process node type
// (input, output, echo, transform, conditional, switch, loop, merge, code)
// into d. The side-effecting node types (http, database, integration, llm,
// vision, imageGeneration, agent, trigger) are left to callers that have the
// concrete collaborators (an HTTP client, an LLM provider, an integration
// adapter) to register.
func registerBuiltinHandlers(d *Dispatcher) {
	d.Register(workflow.EngineNodeInput, NodeHandlerFunc(handleInput))
	d.Register(workflow.EngineNodeOutput, NodeHandlerFunc(handleOutput))
	d.Register(workflow.EngineNodeEcho, NodeHandlerFunc(handleEcho))
	d.Register(workflow.EngineNodeTransform, NodeHandlerFunc(handleTransform))
	d.Register(workflow.EngineNodeConditional, NodeHandlerFunc(handleConditional))
	d.Register(workflow.EngineNodeSwitch, NodeHandlerFunc(handleSwitch))
	loopH := &loopHandler{dispatcher: d}
	d.Register(workflow.EngineNodeLoop, NodeHandlerFunc(loopH.handle))
	d.Register(workflow.EngineNodeMerge, NodeHandlerFunc(handleMerge))
	d.Register(workflow.EngineNodeCode, NodeHandlerFunc(handleCode))
}

// handleInput passes the trigger payload (optionally reshaped by the node's
// own config mapping) through as the node's output.
func handleInput(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	if len(node.Config) == 0 {
		return &NodeOutput{Data: snapshot.Trigger}, nil
	}
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("input node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: resolved}, nil
}

// handleOutput resolves its config against the current snapshot; the
// scheduler records the node's ID among BuiltWorkflow.OutputNodeIDs
// regardless of node type, but an explicit "output" node lets a workflow
// author reshape the final payload.
func handleOutput(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("output node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: resolved}, nil
}

// handleEcho returns its resolved config verbatim, for test fixtures and
// workflows that need a deterministic passthrough step.
func handleEcho(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("echo node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: resolved}, nil
}

// handleTransform delegates to TransformAction, which implements
// JSONPath-style extraction/mapping/default semantics.
func handleTransform(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var cfg map[string]interface{}
	if len(node.Config) > 0 {
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			return nil, fmt.Errorf("transform node %s: invalid config: %w", node.ID, err)
		}
	}
	action := &actions.TransformAction{}
	out, err := action.Execute(ctx, actions.NewActionInput(cfg, snapshot.AsEvalContext()))
	if err != nil {
		return nil, fmt.Errorf("transform node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: out.Data}, nil
}

var conditionEvaluator = expression.NewEvaluator()

// handleConditional evaluates ConditionalActionConfig.Condition and records
// the taken branch as a signal; the non-taken branch's direct targets are
// returned as SkipTargets for the scheduler to mark skipped, cascading
// further downstream via QueueState's own propagation.
func handleConditional(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var cfg workflow.ConditionalActionConfig
	if len(node.Config) > 0 {
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			return nil, fmt.Errorf("conditional node %s: invalid config: %w", node.ID, err)
		}
	}

	result, err := conditionEvaluator.EvaluateCondition(cfg.Condition, snapshot.AsEvalContext())
	if err != nil {
		return nil, fmt.Errorf("conditional node %s: %w", node.ID, err)
	}

	takenLabel := "false"
	if result {
		takenLabel = "true"
	}

	var skip []string
	for _, e := range bw.Definition.Edges {
		if e.Source != node.ID {
			continue
		}
		if !strings.EqualFold(e.Label, takenLabel) {
			skip = append(skip, e.Target)
		}
	}

	return &NodeOutput{
		Data:        map[string]interface{}{"condition": cfg.Condition, "result": result},
		Signal:      map[string]interface{}{"selectedBranch": takenLabel},
		SkipTargets: skip,
	}, nil
}

// handleSwitch evaluates SwitchActionConfig.Expression and matches its
// stringified result against outgoing edge labels (which may use "*"/"?"
// glob wildcards), in edge declaration order; the first match wins.
func handleSwitch(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var cfg workflow.SwitchActionConfig
	if len(node.Config) > 0 {
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			return nil, fmt.Errorf("switch node %s: invalid config: %w", node.ID, err)
		}
	}

	value, err := conditionEvaluator.Evaluate(cfg.Expression, snapshot.AsEvalContext())
	if err != nil {
		return nil, fmt.Errorf("switch node %s: %w", node.ID, err)
	}
	valueStr := fmt.Sprintf("%v", value)

	var nodeEdges []workflow.Edge
	for _, e := range bw.Definition.Edges {
		if e.Source == node.ID {
			nodeEdges = append(nodeEdges, e)
		}
	}

	selectedRoute := ""
	takenTarget := ""
	for _, e := range nodeEdges {
		if matched, _ := path.Match(e.Label, valueStr); matched {
			selectedRoute = e.Label
			takenTarget = e.Target
			break
		}
	}

	var skip []string
	for _, e := range nodeEdges {
		if e.Target != takenTarget {
			skip = append(skip, e.Target)
		}
	}

	return &NodeOutput{
		Data:        map[string]interface{}{"value": value, "selectedRoute": selectedRoute},
		Signal:      map[string]interface{}{"selectedRoute": selectedRoute},
		SkipTargets: skip,
	}, nil
}

// loopHandler runs a loop node's declared body subgraph (its
// workflow.LoopContext) once per source item, the way a sub-workflow call
// re-enters the dispatcher for each of its own nodes. A loop node with no
// declared body (no downstream node closes a loop-back edge to it) falls
// back to resolving its own config once per item, a plain per-item mapping
// with no nested execution.
type loopHandler struct {
	dispatcher *Dispatcher
}

// handle resolves LoopActionConfig.Source to an array and, for each element
// (bounded by MaxIterations), dispatches the loop's body subgraph against a
// snapshot carrying that element and its index, collecting the body's exit
// node output as the iteration's result. OnError "continue" skips a failing
// element instead of aborting the loop.
func (h *loopHandler) handle(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var cfg workflow.LoopActionConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return nil, fmt.Errorf("loop node %s: invalid config: %w", node.ID, err)
	}

	sourceValue, err := snapshot.Interpolate(cfg.Source, workflow.InterpolateOptions{StrictVars: true})
	if err != nil {
		return nil, fmt.Errorf("loop node %s: source: %w", node.ID, err)
	}
	items, ok := sourceValue.([]interface{})
	if !ok {
		return nil, fmt.Errorf("loop node %s: source did not resolve to an array", node.ID)
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 1000
	}
	if len(items) > maxIter {
		items = items[:maxIter]
	}

	loopCtx := bw.LoopContexts[node.ID]
	itemVar := cfg.ItemVariable
	if itemVar == "" {
		itemVar = "item"
	}

	results := make([]interface{}, 0, len(items))
	for idx, item := range items {
		itemSnap := snapshot.StoreNodeOutput(itemVar, item)
		if cfg.IndexVariable != "" {
			itemSnap = itemSnap.StoreNodeOutput(cfg.IndexVariable, idx)
		}

		if loopCtx == nil || len(loopCtx.BodyNodeIDs) == 0 {
			resolved, err := itemSnap.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
			if err != nil {
				if cfg.OnError == "continue" {
					continue
				}
				return nil, fmt.Errorf("loop node %s: iteration %d: %w", node.ID, idx, err)
			}
			results = append(results, map[string]interface{}{"item": item, "index": idx, "resolved": resolved})
			continue
		}

		bodyResult, err := h.runBody(ctx, bw, loopCtx, itemSnap)
		if err != nil {
			if cfg.OnError == "continue" {
				continue
			}
			return nil, fmt.Errorf("loop node %s: iteration %d: %w", node.ID, idx, err)
		}
		results = append(results, map[string]interface{}{"item": item, "index": idx, "result": bodyResult})
	}

	return &NodeOutput{Data: results}, nil
}

// runBody dispatches every node in the loop's body subgraph, in dependency
// order, against itemSnap and returns the exit node's output.
func (h *loopHandler) runBody(ctx context.Context, bw *workflow.BuiltWorkflow, loopCtx *workflow.LoopContext, itemSnap *workflow.ContextSnapshot) (interface{}, error) {
	ordered := append([]string(nil), loopCtx.BodyNodeIDs...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if bw.Depth[a] != bw.Depth[b] {
			return bw.Depth[a] < bw.Depth[b]
		}
		return a < b
	})

	snap := itemSnap
	for _, id := range ordered {
		bodyNode := bw.NodesByID[id]
		out, err := h.dispatcher.Dispatch(ctx, bodyNode, bw, snap)
		if err != nil {
			return nil, fmt.Errorf("body node %s: %w", id, err)
		}
		snap = snap.StoreNodeOutput(id, out.Data)
		if out.Signal != nil {
			snap = snap.StoreSignal(id, out.Signal)
		}
	}

	return snap.Steps[loopCtx.ExitNodeID], nil
}

// handleMerge combines the outputs of this node's completed predecessors per
// its declared MergeActionConfig.Strategy. Failed/skipped predecessors have
// no entry in snapshot.Steps and so contribute nothing. Readiness (whether
// enough dependencies resolved) is QueueState's concern, not the handler's:
// by the time this runs, the scheduler has already decided the merge node is
// ready.
func handleMerge(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var cfg workflow.MergeActionConfig
	if len(node.Config) > 0 {
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			return nil, fmt.Errorf("merge node %s: invalid config: %w", node.ID, err)
		}
	}

	deps := bw.Dependencies[node.ID]
	var completedDeps []string
	var outputs []interface{}
	for _, dep := range deps {
		if v, ok := snapshot.Steps[dep]; ok {
			completedDeps = append(completedDeps, dep)
			outputs = append(outputs, v)
		}
	}

	switch cfg.Strategy {
	case "", "object":
		merged := make(map[string]interface{}, len(completedDeps))
		for i, dep := range completedDeps {
			key := dep
			if idx := indexOf(deps, dep); idx >= 0 && idx < len(cfg.BranchKeys) && cfg.BranchKeys[idx] != "" {
				key = cfg.BranchKeys[idx]
			}
			merged[key] = outputs[i]
		}
		return &NodeOutput{Data: merged}, nil
	case "array":
		return &NodeOutput{Data: outputs}, nil
	case "first":
		if len(outputs) == 0 {
			return &NodeOutput{Data: nil}, nil
		}
		return &NodeOutput{Data: outputs[0]}, nil
	case "last":
		if len(outputs) == 0 {
			return &NodeOutput{Data: nil}, nil
		}
		return &NodeOutput{Data: outputs[len(outputs)-1]}, nil
	case "custom":
		evalCtx := snapshot.AsEvalContext()
		evalCtx["branches"] = outputs
		result, err := conditionEvaluator.Evaluate(cfg.Expression, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("merge node %s: custom expression: %w", node.ID, err)
		}
		return &NodeOutput{Data: result}, nil
	default:
		return nil, fmt.Errorf("merge node %s: unknown merge strategy %q", node.ID, cfg.Strategy)
	}
}

// indexOf returns the position of target within ids, or -1 if absent.
func indexOf(ids []string, target string) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

var defaultScriptEngine, defaultScriptEngineErr = javascript.NewEngine(javascript.DefaultEngineConfig())

// handleCode runs ScriptActionConfig.Script in the sandboxed JS engine,
// passing the current evaluation context in as the script's bound context.
func handleCode(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	if defaultScriptEngineErr != nil {
		return nil, fmt.Errorf("code node %s: sandbox unavailable: %w", node.ID, defaultScriptEngineErr)
	}
	var cfg workflow.ScriptActionConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return nil, fmt.Errorf("code node %s: invalid config: %w", node.ID, err)
	}

	jsCtx := javascript.NewExecutionContext().
		WithTrigger(snapshot.Trigger).
		WithSteps(snapshot.Steps).
		WithEnv(snapshot.Env)

	result, err := defaultScriptEngine.Execute(ctx, &javascript.ExecuteConfig{
		Script:      cfg.Script,
		Context:     jsCtx,
		ExecutionID: snapshot.ExecutionID,
		TenantID:    snapshot.TenantID,
		WorkflowID:  snapshot.WorkflowID,
		NodeID:      node.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("code node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: result.Result}, nil
}
