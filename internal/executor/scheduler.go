package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorax/gorax/internal/workflow"
)

// Scheduler runs a BuiltWorkflow to completion: a bounded-concurrency
// ready-queue loop over workflow.QueueState that dispatches multiple ready
// nodes at once (up to MaxConcurrentNodes) via a worker pool draining a
// ready channel.
type Scheduler struct {
	Dispatcher         *Dispatcher
	Logger             *slog.Logger
	MaxConcurrentNodes int
	RetryStrategy      *RetryStrategy
	Broadcaster        Broadcaster
	Repo               StepExecutionRecorder
}

// StepExecutionRecorder persists per-node step execution rows. Declared
// here (rather than depending on *workflow.Repository directly) so a run
// without a repository (e.g. dry-run) can pass nil.
type StepExecutionRecorder interface {
	CreateStepExecution(ctx context.Context, executionID, nodeID, nodeType string, inputData []byte) (*workflow.StepExecution, error)
	UpdateStepExecution(ctx context.Context, id, status string, outputData []byte, errorMessage *string) error
}

// NewScheduler creates a Scheduler with sane defaults for concurrency and retry.
func NewScheduler(dispatcher *Dispatcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Dispatcher:         dispatcher,
		Logger:             logger,
		MaxConcurrentNodes: 8,
		RetryStrategy:      NewRetryStrategy(DefaultRetryConfig(), logger),
	}
}

// RunStatus is the terminal status of a scheduler Run, distinct from any
// individual node's failure.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunResult is the outcome of running a workflow to completion or cancellation.
type RunResult struct {
	Status     RunStatus
	Outputs    map[string]interface{}
	NodeStates map[string]*workflow.NodeState
	Snapshot   *workflow.ContextSnapshot
	Summary    workflow.ExecutionSummary
}

// schedulerEvent is either a node's dispatch outcome or a requeue signal
// fired once a retryable node's backoff has elapsed.
type schedulerEvent struct {
	nodeID    string
	output    *NodeOutput
	err       error
	retryable bool
	requeue   bool
}

// Run drives bw to completion against the given initial snapshot. Each
// dispatched node runs in its own goroutine; all state transitions
// (QueueState, ContextSnapshot, per-node retry bookkeeping) happen on the
// calling goroutine as events arrive, so QueueState's pure-function mutators
// never need their own locking.
func (s *Scheduler) Run(ctx context.Context, bw *workflow.BuiltWorkflow, initial *workflow.ContextSnapshot) (*RunResult, error) {
	queue := workflow.InitializeQueue(bw)
	snapshot := initial
	nodeStates := make(map[string]*workflow.NodeState, len(bw.NodesByID))
	for id := range bw.NodesByID {
		nodeStates[id] = &workflow.NodeState{NodeID: id}
	}

	eventCh := make(chan schedulerEvent)
	sem := make(chan struct{}, s.MaxConcurrentNodes)
	outstanding := 0

	dispatchNode := func(nodeID string) {
		outstanding++
		sem <- struct{}{}
		node := bw.NodesByID[nodeID]
		runSnap := snapshot
		if s.Broadcaster != nil {
			s.Broadcaster.BroadcastStepStarted(runSnap.TenantID, runSnap.WorkflowID, runSnap.ExecutionID, node.ID, node.Type)
		}
		start := time.Now()
		var stepExecID string
		if s.Repo != nil {
			inputJSON, _ := json.Marshal(runSnap.Steps)
			if step, err := s.Repo.CreateStepExecution(ctx, runSnap.ExecutionID, node.ID, node.Type, inputJSON); err != nil {
				s.Logger.Error("failed to create step execution record", "error", err, "node_id", node.ID)
			} else {
				stepExecID = step.ID
			}
		}
		go func() {
			defer func() { <-sem }()
			out, err := s.runNodeSafely(ctx, node, bw, runSnap)
			ev := schedulerEvent{nodeID: nodeID, output: out, err: err, retryable: err != nil && IsRetryableError(err)}
			if s.Repo != nil && stepExecID != "" {
				if err != nil {
					errMsg := err.Error()
					if uerr := s.Repo.UpdateStepExecution(ctx, stepExecID, "failed", nil, &errMsg); uerr != nil {
						s.Logger.Error("failed to update step execution record", "error", uerr, "step_id", stepExecID)
					}
				} else {
					outputJSON, _ := json.Marshal(out.Data)
					if uerr := s.Repo.UpdateStepExecution(ctx, stepExecID, "completed", outputJSON, nil); uerr != nil {
						s.Logger.Error("failed to update step execution record", "error", uerr, "step_id", stepExecID)
					}
				}
			}
			if s.Broadcaster != nil {
				durationMs := int(time.Since(start).Milliseconds())
				if err != nil {
					s.Broadcaster.BroadcastStepFailed(runSnap.TenantID, runSnap.WorkflowID, runSnap.ExecutionID, node.ID, err.Error())
				} else {
					outputJSON, _ := json.Marshal(out.Data)
					s.Broadcaster.BroadcastStepCompleted(runSnap.TenantID, runSnap.WorkflowID, runSnap.ExecutionID, node.ID, outputJSON, durationMs)
				}
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
			}
		}()
	}

	scheduleRetry := func(nodeID string, attempt int) {
		backoff := s.RetryStrategy.calculateBackoff(attempt)
		outstanding++
		go func() {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			select {
			case eventCh <- schedulerEvent{nodeID: nodeID, requeue: true}:
			case <-ctx.Done():
			}
		}()
	}

	dispatchReady := func() {
		for _, id := range queue.GetReadyNodes(bw) {
			if len(sem) >= s.MaxConcurrentNodes {
				return
			}
			queue = queue.MarkExecuting(id)
			dispatchNode(id)
		}
	}

	dispatchReady()

	cancelled := false
	for !queue.IsExecutionComplete() && outstanding > 0 {
		select {
		case <-ctx.Done():
			cancelled = true
		case ev := <-eventCh:
			outstanding--
			if ev.requeue {
				queue = queue.MarkRetry(ev.nodeID)
			} else {
				s.applyResult(bw, &queue, &snapshot, nodeStates, ev, scheduleRetry)
			}
			if !cancelled {
				dispatchReady()
			}
			continue
		}
		break
	}

	if cancelled {
		for outstanding > 0 {
			ev := <-eventCh
			outstanding--
			if !ev.requeue {
				s.applyResult(bw, &queue, &snapshot, nodeStates, ev, func(string, int) {})
			}
		}
		return &RunResult{
			Status:     RunStatusCancelled,
			Outputs:    snapshot.BuildFinalOutputs(bw.OutputNodeIDs),
			NodeStates: nodeStates,
			Snapshot:   snapshot,
			Summary:    queue.GetExecutionSummary(),
		}, nil
	}

	status := RunStatusCompleted
	if len(queue.Failed) > 0 {
		status = RunStatusFailed
	}

	return &RunResult{
		Status:     status,
		Outputs:    snapshot.BuildFinalOutputs(bw.OutputNodeIDs),
		NodeStates: nodeStates,
		Snapshot:   snapshot,
		Summary:    queue.GetExecutionSummary(),
	}, nil
}

func (s *Scheduler) applyResult(
	bw *workflow.BuiltWorkflow,
	queue **workflow.QueueState,
	snapshot **workflow.ContextSnapshot,
	nodeStates map[string]*workflow.NodeState,
	ev schedulerEvent,
	scheduleRetry func(nodeID string, attempt int),
) {
	q := *queue
	snap := *snapshot
	st := nodeStates[ev.nodeID]

	if ev.err == nil {
		st.Output = ev.output.Data
		snap = snap.StoreNodeOutput(ev.nodeID, ev.output.Data)
		if ev.output.Signal != nil {
			snap = snap.StoreSignal(ev.nodeID, ev.output.Signal)
		}
		q = q.MarkCompleted(bw, ev.nodeID)
		for _, skip := range ev.output.SkipTargets {
			if _, isPending := q.Pending[skip]; isPending {
				q = q.MarkSkipped(bw, skip)
			} else if _, isReady := q.Ready[skip]; isReady {
				q = q.MarkSkipped(bw, skip)
			}
		}
		*queue = q
		*snapshot = snap
		return
	}

	st.LastError = ev.err
	maxRetries := s.RetryStrategy.config.MaxRetries
	q = q.MarkFailed(bw, ev.nodeID)
	if ev.retryable && st.RetryCount < maxRetries {
		attempt := st.RetryCount
		st.RetryCount++
		scheduleRetry(ev.nodeID, attempt)
	}
	*queue = q
}

func (s *Scheduler) runNodeSafely(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (out *NodeOutput, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("node %s panicked: %v", node.ID, rec)
		}
	}()
	return s.Dispatcher.Dispatch(ctx, node, bw, snapshot)
}
