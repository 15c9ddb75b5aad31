package workflow

// QueueState partitions every node in a run into exactly one of six disjoint
// sets. Every mutator is a pure function: it returns a new QueueState and
// never modifies the receiver, so the scheduler can hand a snapshot to a
// worker goroutine without synchronization on the state itself.
type QueueState struct {
	Pending   map[string]struct{}
	Ready     map[string]struct{}
	Executing map[string]struct{}
	Completed map[string]struct{}
	Failed    map[string]struct{}
	Skipped   map[string]struct{}
}

// NodeState carries per-node bookkeeping that outlives the six-set
// membership itself: retry count, the last error, and its resolved output.
type NodeState struct {
	NodeID     string
	RetryCount int
	LastError  error
	Output     interface{}
}

func newSet(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func moveSet(src, dst map[string]struct{}, id string) {
	delete(src, id)
	dst[id] = struct{}{}
}

// InitializeQueue seeds a QueueState for a BuiltWorkflow: every node with no
// dependencies starts ready, everything else starts pending. A node owned by
// a loop's body subgraph (bw.LoopBodyNodeIDs) is excluded entirely: the loop
// node dispatches it directly once per item, so it never goes through the
// top-level ready queue.
func InitializeQueue(bw *BuiltWorkflow) *QueueState {
	q := &QueueState{
		Pending:   map[string]struct{}{},
		Ready:     map[string]struct{}{},
		Executing: map[string]struct{}{},
		Completed: map[string]struct{}{},
		Failed:    map[string]struct{}{},
		Skipped:   map[string]struct{}{},
	}
	for id := range bw.NodesByID {
		if bw.LoopBodyNodeIDs[id] {
			continue
		}
		if len(bw.Dependencies[id]) == 0 {
			q.Ready[id] = struct{}{}
		} else {
			q.Pending[id] = struct{}{}
		}
	}
	return q
}

func (q *QueueState) clone() *QueueState {
	return &QueueState{
		Pending:   cloneSet(q.Pending),
		Ready:     cloneSet(q.Ready),
		Executing: cloneSet(q.Executing),
		Completed: cloneSet(q.Completed),
		Failed:    cloneSet(q.Failed),
		Skipped:   cloneSet(q.Skipped),
	}
}

// GetReadyNodes returns the ready node IDs in a deterministic (depth, id)
// order, the order the scheduler dispatches them in.
func (q *QueueState) GetReadyNodes(bw *BuiltWorkflow) []string {
	ids := make([]string, 0, len(q.Ready))
	for id := range q.Ready {
		ids = append(ids, id)
	}
	ids = sortedCopy(ids)
	sortByDepthThenID(ids, bw)
	return ids
}

func sortByDepthThenID(ids []string, bw *BuiltWorkflow) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := ids[j-1], ids[j]
			if bw.Depth[a] > bw.Depth[b] || (bw.Depth[a] == bw.Depth[b] && a > b) {
				ids[j-1], ids[j] = ids[j], ids[j-1]
			} else {
				break
			}
		}
	}
}

// MarkExecuting moves a ready node into the executing set.
func (q *QueueState) MarkExecuting(nodeID string) *QueueState {
	next := q.clone()
	moveSet(next.Ready, next.Executing, nodeID)
	return next
}

// MarkCompleted moves an executing node into completed, then promotes any
// dependent whose dependencies are now all satisfied into ready. A dependent
// that is a merge node becomes ready as soon as at least one of its
// dependencies is completed and the rest are terminal (completed, failed, or
// skipped); every other dependent requires all dependencies completed.
func (q *QueueState) MarkCompleted(bw *BuiltWorkflow, nodeID string) *QueueState {
	next := q.clone()
	moveSet(next.Executing, next.Completed, nodeID)
	next.promoteDependents(bw, nodeID)
	return next
}

// MarkFailed moves an executing node into failed and cascades skip to every
// downstream node that can no longer become ready (per promoteDependents'
// merge-aware readiness rule, a failed dependency can still let a merge
// dependent proceed if another dependency completed).
func (q *QueueState) MarkFailed(bw *BuiltWorkflow, nodeID string) *QueueState {
	next := q.clone()
	moveSet(next.Executing, next.Failed, nodeID)
	next.cascadeSkipOrPromote(bw, nodeID)
	return next
}

// MarkSkipped moves a pending or ready node into skipped directly (used by
// conditional/switch cascade gating) and propagates further.
func (q *QueueState) MarkSkipped(bw *BuiltWorkflow, nodeID string) *QueueState {
	next := q.clone()
	if _, ok := next.Ready[nodeID]; ok {
		delete(next.Ready, nodeID)
	} else {
		delete(next.Pending, nodeID)
	}
	next.Skipped[nodeID] = struct{}{}
	next.cascadeSkipOrPromote(bw, nodeID)
	return next
}

// MarkRetry moves a failed node back to ready for another attempt, without
// touching anything downstream (nothing downstream can have progressed while
// this node was failed, since it never reached completed).
func (q *QueueState) MarkRetry(nodeID string) *QueueState {
	next := q.clone()
	delete(next.Failed, nodeID)
	next.Ready[nodeID] = struct{}{}
	return next
}

// promoteDependents checks every downstream node of a just-terminated
// (completed) node and moves it to ready if its dependencies now allow it.
func (q *QueueState) promoteDependents(bw *BuiltWorkflow, nodeID string) {
	for _, dep := range bw.Dependents[nodeID] {
		if _, pending := q.Pending[dep]; !pending {
			continue
		}
		if q.dependentReady(bw, dep) {
			moveSet(q.Pending, q.Ready, dep)
		}
	}
}

// cascadeSkipOrPromote handles the fan-out from a node becoming failed or
// skipped: each pending dependent is either skipped (if it can never become
// ready) or promoted to ready (if it is a merge node already satisfied).
func (q *QueueState) cascadeSkipOrPromote(bw *BuiltWorkflow, nodeID string) {
	for _, dep := range bw.Dependents[nodeID] {
		if _, pending := q.Pending[dep]; !pending {
			continue
		}
		if q.dependentReady(bw, dep) {
			moveSet(q.Pending, q.Ready, dep)
			continue
		}
		if q.allDependenciesTerminal(bw, dep) {
			delete(q.Pending, dep)
			q.Skipped[dep] = struct{}{}
			q.cascadeSkipOrPromote(bw, dep)
		}
	}
}

// dependentReady reports whether dep's dependencies now satisfy its
// readiness rule: a merge node is ready once all dependencies are terminal
// and at least one completed; every other node requires all dependencies
// completed.
func (q *QueueState) dependentReady(bw *BuiltWorkflow, dep string) bool {
	isMerge := bw.EngineType[dep] == EngineNodeMerge
	allTerminal := true
	anyCompleted := false
	allCompleted := true
	for _, d := range bw.Dependencies[dep] {
		if _, ok := q.Completed[d]; ok {
			anyCompleted = true
			continue
		}
		allCompleted = false
		if _, ok := q.Failed[d]; ok {
			continue
		}
		if _, ok := q.Skipped[d]; ok {
			continue
		}
		allTerminal = false
	}
	if isMerge {
		return allTerminal && anyCompleted
	}
	return allCompleted
}

// allDependenciesTerminal reports whether every dependency of dep has
// reached a terminal state (completed, failed, or skipped) without dep
// itself being able to become ready — meaning dep can never run.
func (q *QueueState) allDependenciesTerminal(bw *BuiltWorkflow, dep string) bool {
	for _, d := range bw.Dependencies[dep] {
		if _, ok := q.Completed[d]; ok {
			continue
		}
		if _, ok := q.Failed[d]; ok {
			continue
		}
		if _, ok := q.Skipped[d]; ok {
			continue
		}
		return false
	}
	return true
}

// IsExecutionComplete reports whether every node has reached a terminal
// state and none remain ready or executing.
func (q *QueueState) IsExecutionComplete() bool {
	return len(q.Ready) == 0 && len(q.Executing) == 0 && len(q.Pending) == 0
}

// ExecutionSummary is a point-in-time readout of a QueueState's set sizes.
type ExecutionSummary struct {
	PendingCount   int
	ReadyCount     int
	ExecutingCount int
	CompletedCount int
	FailedCount    int
	SkippedCount   int
}

// GetExecutionSummary reports the current size of each of the six sets.
func (q *QueueState) GetExecutionSummary() ExecutionSummary {
	return ExecutionSummary{
		PendingCount:   len(q.Pending),
		ReadyCount:     len(q.Ready),
		ExecutingCount: len(q.Executing),
		CompletedCount: len(q.Completed),
		FailedCount:    len(q.Failed),
		SkippedCount:   len(q.Skipped),
	}
}
