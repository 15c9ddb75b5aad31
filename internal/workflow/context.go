package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// braceInterpolation matches {{path}}; dollarInterpolation matches ${path}.
	braceInterpolation  = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	dollarInterpolation = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// ContextSnapshot is the immutable execution context threaded through a run.
// Every mutator returns a new snapshot; nothing in this package ever mutates
// a ContextSnapshot's own maps in place, so concurrently scheduled node
// handlers can each safely hold a snapshot taken at dispatch time.
type ContextSnapshot struct {
	TenantID    string
	ExecutionID string
	WorkflowID  string
	Trigger     map[string]interface{}
	Env         map[string]interface{}
	Steps       map[string]interface{} // nodeID -> node output
	Signals     map[string]interface{} // nodeID -> signal (e.g. selectedBranch)

	// Depth and WorkflowChain track sub-workflow nesting: Depth is the
	// number of sub-workflow calls between this snapshot and the run's
	// top-level execution, and WorkflowChain holds every workflow ID
	// entered so far (including the top-level one), so EnterSubWorkflow
	// can reject both runaway recursion and direct/indirect cycles.
	Depth         int
	WorkflowChain []string
}

// NewContextSnapshot builds the initial snapshot for a run.
func NewContextSnapshot(tenantID, executionID, workflowID string, trigger map[string]interface{}) *ContextSnapshot {
	return &ContextSnapshot{
		TenantID:    tenantID,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Trigger:     copyMap(trigger),
		Env: map[string]interface{}{
			"tenant_id":    tenantID,
			"execution_id": executionID,
			"workflow_id":  workflowID,
		},
		Steps:         map[string]interface{}{},
		Signals:       map[string]interface{}{},
		WorkflowChain: []string{workflowID},
	}
}

// StoreNodeOutput returns a new snapshot with nodeID's output recorded.
// The receiver is left untouched.
func (c *ContextSnapshot) StoreNodeOutput(nodeID string, output interface{}) *ContextSnapshot {
	next := c.clone()
	next.Steps[nodeID] = output
	return next
}

// StoreSignal returns a new snapshot with a node's out-of-band signal
// recorded (e.g. a conditional node's selectedBranch, a switch node's
// selectedRoute).
func (c *ContextSnapshot) StoreSignal(nodeID string, signal interface{}) *ContextSnapshot {
	next := c.clone()
	next.Signals[nodeID] = signal
	return next
}

func (c *ContextSnapshot) clone() *ContextSnapshot {
	return &ContextSnapshot{
		TenantID:      c.TenantID,
		ExecutionID:   c.ExecutionID,
		WorkflowID:    c.WorkflowID,
		Trigger:       c.Trigger,
		Env:           c.Env,
		Steps:         copyMap(c.Steps),
		Signals:       copyMap(c.Signals),
		Depth:         c.Depth,
		WorkflowChain: c.WorkflowChain,
	}
}

// EnterSubWorkflow returns a fresh snapshot scoped to a nested workflow
// execution (its own executionID/workflowID/trigger), carrying forward this
// snapshot's tenant and sub-workflow nesting bookkeeping. It rejects the
// call if workflowID already appears in the chain (a cycle) or if entering
// it would exceed maxDepth.
func (c *ContextSnapshot) EnterSubWorkflow(executionID, workflowID string, trigger map[string]interface{}, maxDepth int) (*ContextSnapshot, error) {
	for _, id := range c.WorkflowChain {
		if id == workflowID {
			return nil, fmt.Errorf("circular sub-workflow dependency: %s", workflowID)
		}
	}
	if c.Depth >= maxDepth {
		return nil, fmt.Errorf("max sub-workflow depth exceeded: %d", maxDepth)
	}
	next := NewContextSnapshot(c.TenantID, executionID, workflowID, trigger)
	next.Depth = c.Depth + 1
	next.WorkflowChain = append(append([]string(nil), c.WorkflowChain...), workflowID)
	return next, nil
}

// AsEvalContext flattens the snapshot into the {trigger, steps, env} shape
// expression evaluation and templating operate over.
func (c *ContextSnapshot) AsEvalContext() map[string]interface{} {
	return map[string]interface{}{
		"trigger": c.Trigger,
		"steps":   c.Steps,
		"env":     c.Env,
		"signals": c.Signals,
	}
}

// Lookup resolves a dotted/array-indexed path (e.g. "steps.node1.items[0].name")
// against the snapshot.
func (c *ContextSnapshot) Lookup(path string) (interface{}, error) {
	return lookupByPath(c.AsEvalContext(), path)
}

// InterpolateOptions controls Interpolate's handling of unresolved placeholders.
type InterpolateOptions struct {
	// StrictVars turns an unresolved placeholder into an error instead of
	// substituting the empty string.
	StrictVars bool
}

// Interpolate resolves every ${...} and {{...}} placeholder in template
// against the snapshot. When the entire template string is exactly one
// placeholder, the resolved value's original type is preserved (so
// "${steps.a.count}" can yield a number, not its stringified form);
// otherwise placeholders are stringified in place.
func (c *ContextSnapshot) Interpolate(template string, opts InterpolateOptions) (interface{}, error) {
	evalCtx := c.AsEvalContext()

	if path, ok := wholeTemplatePlaceholder(template); ok {
		value, err := lookupByPath(evalCtx, strings.TrimSpace(path))
		if err != nil {
			if opts.StrictVars {
				return nil, fmt.Errorf("unresolved variable %q: %w", path, err)
			}
			return "", nil
		}
		return value, nil
	}

	var firstErr error
	replace := func(match string, inner string) string {
		path := strings.TrimSpace(inner)
		value, err := lookupByPath(evalCtx, path)
		if err != nil {
			if opts.StrictVars && firstErr == nil {
				firstErr = fmt.Errorf("unresolved variable %q: %w", path, err)
			}
			return ""
		}
		return stringifyValue(value)
	}

	result := dollarInterpolation.ReplaceAllStringFunc(template, func(m string) string {
		return replace(m, m[2:len(m)-1])
	})
	result = braceInterpolation.ReplaceAllStringFunc(result, func(m string) string {
		return replace(m, m[2:len(m)-2])
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// InterpolateJSON walks a raw JSON document, interpolating every string leaf.
func (c *ContextSnapshot) InterpolateJSON(data json.RawMessage, opts InterpolateOptions) (interface{}, error) {
	var parsed interface{}
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("interpolate json: %w", err)
	}
	return c.interpolateValue(parsed, opts)
}

func (c *ContextSnapshot) interpolateValue(v interface{}, opts InterpolateOptions) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return c.Interpolate(val, opts)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			resolved, err := c.interpolateValue(inner, opts)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			resolved, err := c.interpolateValue(inner, opts)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return val, nil
	}
}

// BuildFinalOutputs gathers the outputs of the workflow's output nodes into
// a single result map, the way a run's externally-visible result is built.
func (c *ContextSnapshot) BuildFinalOutputs(outputNodeIDs []string) map[string]interface{} {
	out := make(map[string]interface{}, len(outputNodeIDs))
	for _, id := range outputNodeIDs {
		if v, ok := c.Steps[id]; ok {
			out[id] = v
		}
	}
	return out
}

func wholeTemplatePlaceholder(template string) (string, bool) {
	t := strings.TrimSpace(template)
	if strings.HasPrefix(t, "${") && strings.HasSuffix(t, "}") && strings.Count(t, "${") == 1 {
		return t[2 : len(t)-1], true
	}
	if strings.HasPrefix(t, "{{") && strings.HasSuffix(t, "}}") && strings.Count(t, "{{") == 1 {
		return t[2 : len(t)-2], true
	}
	return "", false
}

func stringifyValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
