package workflow

import (
	"encoding/json"
	"fmt"
)

// LoopBackMarker is an Edge.Label value that declares an edge as an
// intentional loop-back (e.g. a loop node's body re-entering itself), so the
// Builder's cycle check excludes it from the acyclicity requirement.
const LoopBackMarker = "loop_back"

// Build validates a WorkflowDefinition and, if it is structurally sound,
// returns the analyzed BuiltWorkflow the scheduler runs against. Build
// accumulates every violation it finds rather than stopping at the first.
func Build(def WorkflowDefinition) (*BuiltWorkflow, *BuildError) {
	berr := &BuildError{}

	nodesByID := make(map[string]*Node, len(def.Nodes))
	engineType := make(map[string]EngineNodeType, len(def.Nodes))
	seen := make(map[string]bool, len(def.Nodes))

	for i := range def.Nodes {
		n := &def.Nodes[i]
		if n.ID == "" {
			berr.add(BuildViolation{Rule: "node_id_required", Message: "node is missing an id"})
			continue
		}
		if seen[n.ID] {
			berr.add(BuildViolation{Rule: "duplicate_node_id", NodeID: n.ID, Message: fmt.Sprintf("duplicate node id %q", n.ID)})
			continue
		}
		seen[n.ID] = true
		nodesByID[n.ID] = n

		et, err := ResolveEngineNodeType(n.Type)
		if err != nil {
			berr.add(BuildViolation{Rule: "unknown_node_type", NodeID: n.ID, Message: err.Error()})
			continue
		}
		engineType[n.ID] = et
	}

	loopBackEdges := make(map[string]bool)
	dependencies := make(map[string][]string, len(nodesByID))
	dependents := make(map[string][]string, len(nodesByID))
	for id := range nodesByID {
		dependencies[id] = nil
		dependents[id] = nil
	}

	for i := range def.Edges {
		e := &def.Edges[i]
		if _, ok := nodesByID[e.Source]; !ok {
			berr.add(BuildViolation{Rule: "edge_unknown_source", EdgeID: e.ID, Message: fmt.Sprintf("edge %q references unknown source node %q", e.ID, e.Source)})
			continue
		}
		if _, ok := nodesByID[e.Target]; !ok {
			berr.add(BuildViolation{Rule: "edge_unknown_target", EdgeID: e.ID, Message: fmt.Sprintf("edge %q references unknown target node %q", e.ID, e.Target)})
			continue
		}
		if e.Label == LoopBackMarker {
			loopBackEdges[e.ID] = true
			continue
		}
		dependencies[e.Target] = append(dependencies[e.Target], e.Source)
		dependents[e.Source] = append(dependents[e.Source], e.Target)
	}

	if berr.any() {
		return nil, berr
	}

	// Cycle detection via Kahn's algorithm over the non-loop-back edge set.
	inDegree := make(map[string]int, len(nodesByID))
	for id := range nodesByID {
		inDegree[id] = len(dependencies[id])
	}
	queue := make([]string, 0, len(nodesByID))
	for _, id := range sortedIDs(nodesByID) {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	depth := make(map[string]int, len(nodesByID))
	visitedCount := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visitedCount++
		for _, dep := range sortedCopy(dependents[id]) {
			if d := depth[id] + 1; d > depth[dep] {
				depth[dep] = d
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visitedCount != len(nodesByID) {
		for id, deg := range inDegree {
			if deg > 0 {
				berr.add(BuildViolation{Rule: "cycle_detected", NodeID: id, Message: fmt.Sprintf("node %q participates in a cycle", id)})
			}
		}
		return nil, berr
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]string, maxDepth+1)
	for id, d := range depth {
		levels[d] = append(levels[d], id)
	}
	for i := range levels {
		levels[i] = sortedCopy(levels[i])
	}

	var outputNodes []string
	for id := range nodesByID {
		if len(dependents[id]) == 0 {
			outputNodes = append(outputNodes, id)
		}
	}
	outputNodes = sortedCopy(outputNodes)

	for id, n := range nodesByID {
		if n.Config == nil && len(n.Data.Config) > 0 {
			n.Config = n.Data.Config
		}
		if err := validateNodeConfig(engineType[id], n.Config); err != nil {
			berr.add(BuildViolation{Rule: "invalid_node_config", NodeID: id, Message: err.Error()})
		}
	}
	if berr.any() {
		return nil, berr
	}

	loopContexts := buildLoopContexts(def, engineType, dependencies, dependents, loopBackEdges)
	loopBodyNodeIDs := make(map[string]bool)
	for _, lc := range loopContexts {
		for _, id := range lc.BodyNodeIDs {
			loopBodyNodeIDs[id] = true
		}
	}
	if len(loopBodyNodeIDs) > 0 {
		filtered := outputNodes[:0]
		for _, id := range outputNodes {
			if !loopBodyNodeIDs[id] {
				filtered = append(filtered, id)
			}
		}
		outputNodes = filtered
	}

	return &BuiltWorkflow{
		Definition:      def,
		NodesByID:       nodesByID,
		EngineType:      engineType,
		Dependencies:    dependencies,
		Dependents:      dependents,
		Depth:           depth,
		ExecutionLevels: levels,
		OutputNodeIDs:   outputNodes,
		LoopBackEdges:   loopBackEdges,
		LoopContexts:    loopContexts,
		LoopBodyNodeIDs: loopBodyNodeIDs,
	}, nil
}

// buildLoopContexts finds, for each loop node with at least one declared
// loop-back edge into it, the body subgraph that edge closes: every node
// reachable forward from the loop node's direct dependents that can also
// reach the loop-back edge's source going forward (equivalently, every node
// both a descendant of the loop node and an ancestor of the loop-back
// source, via non-loop-back edges).
func buildLoopContexts(
	def WorkflowDefinition,
	engineType map[string]EngineNodeType,
	dependencies, dependents map[string][]string,
	loopBackEdges map[string]bool,
) map[string]*LoopContext {
	contexts := make(map[string]*LoopContext)

	for i := range def.Edges {
		e := &def.Edges[i]
		if !loopBackEdges[e.ID] {
			continue
		}
		loopNodeID := e.Target
		if engineType[loopNodeID] != EngineNodeLoop {
			continue
		}
		exitNodeID := e.Source

		descendants := reachableSet(dependents, dependents[loopNodeID])
		ancestors := reachableSet(dependencies, []string{exitNodeID})

		var body []string
		for id := range descendants {
			if _, ok := ancestors[id]; ok {
				body = append(body, id)
			}
		}
		body = sortedCopy(body)

		entries := make([]string, 0)
		for _, id := range sortedCopy(dependents[loopNodeID]) {
			if containsString(body, id) {
				entries = append(entries, id)
			}
		}

		contexts[loopNodeID] = &LoopContext{
			LoopNodeID:   loopNodeID,
			EntryNodeIDs: entries,
			BodyNodeIDs:  body,
			ExitNodeID:   exitNodeID,
		}
	}

	return contexts
}

// reachableSet returns every node reachable from seeds by following graph
// (a forward adjacency map, e.g. dependents or dependencies), including the
// seeds themselves.
func reachableSet(graph map[string][]string, seeds []string) map[string]struct{} {
	visited := make(map[string]struct{}, len(seeds))
	queue := append([]string(nil), seeds...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		queue = append(queue, graph[id]...)
	}
	return visited
}

func containsString(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func sortedIDs(m map[string]*Node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return sortedCopy(ids)
}

// validateNodeConfig performs light structural checks a node's config should
// satisfy for its resolved engine type, independent of any one handler
// implementation's own validation.
func validateNodeConfig(t EngineNodeType, cfg json.RawMessage) error {
	switch t {
	case EngineNodeConditional:
		var c ConditionalActionConfig
		if len(cfg) == 0 {
			return nil
		}
		if err := json.Unmarshal(cfg, &c); err != nil {
			return fmt.Errorf("conditional config: %w", err)
		}
	case EngineNodeLoop:
		var c LoopActionConfig
		if len(cfg) == 0 {
			return fmt.Errorf("loop node requires config")
		}
		if err := json.Unmarshal(cfg, &c); err != nil {
			return fmt.Errorf("loop config: %w", err)
		}
		if c.Source == "" {
			return fmt.Errorf("loop config missing source")
		}
	}
	return nil
}
