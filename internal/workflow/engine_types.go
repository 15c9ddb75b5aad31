package workflow

import (
	"fmt"
	"sort"
)

// EngineNodeType is the closed set of node types the execution engine
// understands, distinct from the legacy automation NodeType constants in
// model.go (which describe the builder-facing action/control vocabulary).
// A Node's Type field is mapped onto one of these before scheduling.
type EngineNodeType string

const (
	EngineNodeInput           EngineNodeType = "input"
	EngineNodeOutput          EngineNodeType = "output"
	EngineNodeLLM             EngineNodeType = "llm"
	EngineNodeVision          EngineNodeType = "vision"
	EngineNodeImageGeneration EngineNodeType = "imageGeneration"
	EngineNodeHTTP            EngineNodeType = "http"
	EngineNodeDatabase        EngineNodeType = "database"
	EngineNodeTransform       EngineNodeType = "transform"
	EngineNodeConditional     EngineNodeType = "conditional"
	EngineNodeSwitch          EngineNodeType = "switch"
	EngineNodeLoop            EngineNodeType = "loop"
	EngineNodeMerge           EngineNodeType = "merge"
	EngineNodeCode            EngineNodeType = "code"
	EngineNodeAgent           EngineNodeType = "agent"
	EngineNodeIntegration     EngineNodeType = "integration"
	EngineNodeTrigger         EngineNodeType = "trigger"
	EngineNodeEcho            EngineNodeType = "echo"
)

var engineNodeTypes = map[EngineNodeType]struct{}{
	EngineNodeInput: {}, EngineNodeOutput: {}, EngineNodeLLM: {}, EngineNodeVision: {},
	EngineNodeImageGeneration: {}, EngineNodeHTTP: {}, EngineNodeDatabase: {},
	EngineNodeTransform: {}, EngineNodeConditional: {}, EngineNodeSwitch: {},
	EngineNodeLoop: {}, EngineNodeMerge: {}, EngineNodeCode: {}, EngineNodeAgent: {},
	EngineNodeIntegration: {}, EngineNodeTrigger: {}, EngineNodeEcho: {},
}

// IsValidEngineNodeType reports whether t belongs to the closed node type set.
func IsValidEngineNodeType(t EngineNodeType) bool {
	_, ok := engineNodeTypes[t]
	return ok
}

// legacyNodeTypeAliases maps the builder-facing NodeType vocabulary (model.go)
// onto engine node types, so workflows authored with the older action/control
// constants still schedule correctly under the new engine.
var legacyNodeTypeAliases = map[NodeType]EngineNodeType{
	NodeTypeTriggerWebhook:            EngineNodeTrigger,
	NodeTypeTriggerSchedule:           EngineNodeTrigger,
	NodeTypeActionHTTP:                EngineNodeHTTP,
	NodeTypeActionTransform:           EngineNodeTransform,
	NodeTypeActionFormula:             EngineNodeTransform,
	NodeTypeActionCode:                EngineNodeCode,
	NodeTypeActionEmail:               EngineNodeIntegration,
	NodeTypeActionSlackSendMessage:    EngineNodeIntegration,
	NodeTypeActionSlackSendDM:         EngineNodeIntegration,
	NodeTypeActionSlackUpdateMessage:  EngineNodeIntegration,
	NodeTypeActionSlackAddReaction:    EngineNodeIntegration,
	NodeTypeControlIf:                 EngineNodeConditional,
	NodeTypeControlLoop:                EngineNodeLoop,
	NodeTypeControlParallel:            EngineNodeMerge,
	NodeTypeControlFork:                 EngineNodeMerge,
	NodeTypeControlJoin:                EngineNodeMerge,
	NodeTypeControlDelay:                EngineNodeIntegration,
	NodeTypeControlSubWorkflow:          EngineNodeIntegration,
}

// ResolveEngineNodeType determines the engine node type for a raw node type
// string, accepting both the closed engine vocabulary directly and the
// legacy builder vocabulary via alias.
func ResolveEngineNodeType(raw string) (EngineNodeType, error) {
	if IsValidEngineNodeType(EngineNodeType(raw)) {
		return EngineNodeType(raw), nil
	}
	if alias, ok := legacyNodeTypeAliases[NodeType(raw)]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("unknown node type %q", raw)
}

// BuiltWorkflow is the validated, analyzed form of a WorkflowDefinition ready
// for scheduling: dependency/dependent sets, depth, and execution levels are
// all precomputed once at build time so the scheduler never recomputes graph
// shape during a run.
type BuiltWorkflow struct {
	Definition      WorkflowDefinition
	NodesByID       map[string]*Node
	EngineType      map[string]EngineNodeType
	Dependencies    map[string][]string // nodeID -> upstream node IDs
	Dependents      map[string][]string // nodeID -> downstream node IDs
	Depth           map[string]int
	ExecutionLevels [][]string      // nodes grouped by depth, each level sorted by ID
	OutputNodeIDs   []string        // nodes with no dependents
	LoopBackEdges   map[string]bool // edge ID -> true if it is a declared loop-back edge
	LoopContexts    map[string]*LoopContext // loop node ID -> its body subgraph
	LoopBodyNodeIDs map[string]bool // union of every LoopContext's BodyNodeIDs: owned by their loop node, never independently scheduled
}

// LoopContext names the body subgraph a loop node invokes once per item, and
// the loop-back edge that closes it. A loop node with no declared body edges
// (a plain per-item config re-interpolation, no downstream nodes wired as its
// body) has no entry here.
type LoopContext struct {
	LoopNodeID  string
	EntryNodeIDs []string // body nodes directly downstream of the loop node
	BodyNodeIDs []string  // every node in the body subgraph, in dependency order
	ExitNodeID  string    // the body node whose loop-back edge returns to LoopNodeID; its output is the iteration's result
}

// BuildError collects every structural violation found while building a
// workflow, rather than failing on the first one.
type BuildError struct {
	Violations []BuildViolation
}

// BuildViolation names a single rule violation tied to an offending node or edge.
type BuildViolation struct {
	Rule    string
	NodeID  string
	EdgeID  string
	Message string
}

func (e *BuildError) Error() string {
	if len(e.Violations) == 0 {
		return "build error"
	}
	return fmt.Sprintf("workflow build failed with %d violation(s): %s", len(e.Violations), e.Violations[0].Message)
}

func (e *BuildError) add(v BuildViolation) {
	e.Violations = append(e.Violations, v)
}

func (e *BuildError) any() bool {
	return len(e.Violations) > 0
}

// sortedCopy returns a sorted copy of a string slice without mutating input.
func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
