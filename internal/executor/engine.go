package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorax/gorax/internal/workflow"
)

// Engine runs a stored workflow.Execution to completion using the
// build-then-schedule pipeline (workflow.Build + Scheduler), generalizing
// Executor.Execute's status-update/broadcast/persistence bookkeeping from a
// single-node-at-a-time loop onto the concurrent scheduler.
type Engine struct {
	repo      *workflow.Repository
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewEngine builds an Engine around the given scheduler (already configured
// with its Dispatcher and, optionally, a Broadcaster for step events).
func NewEngine(repo *workflow.Repository, logger *slog.Logger, scheduler *Scheduler) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repo: repo, logger: logger, scheduler: scheduler}
}

// Execute loads execution's workflow definition, compiles it, and runs it
// to completion, persisting status transitions and the final output.
func (e *Engine) Execute(ctx context.Context, execution *workflow.Execution) error {
	e.logger.Info("starting workflow execution", "execution_id", execution.ID, "workflow_id", execution.WorkflowID)

	if err := e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusRunning, nil, nil); err != nil {
		return err
	}

	wf, err := e.repo.GetByID(ctx, execution.TenantID, execution.WorkflowID)
	if err != nil {
		return e.fail(ctx, execution, fmt.Errorf("failed to load workflow: %w", err))
	}

	var definition workflow.WorkflowDefinition
	if err := json.Unmarshal(wf.Definition, &definition); err != nil {
		return e.fail(ctx, execution, fmt.Errorf("failed to parse workflow definition: %w", err))
	}

	built, buildErr := workflow.Build(definition)
	if buildErr != nil {
		return e.fail(ctx, execution, fmt.Errorf("workflow failed validation: %w", buildErr))
	}

	var triggerData map[string]interface{}
	if execution.TriggerData != nil {
		if err := json.Unmarshal(*execution.TriggerData, &triggerData); err != nil {
			triggerData = map[string]interface{}{}
		}
	} else {
		triggerData = map[string]interface{}{}
	}

	if e.scheduler.Broadcaster != nil {
		e.scheduler.Broadcaster.BroadcastExecutionStarted(execution.TenantID, execution.WorkflowID, execution.ID, len(built.Definition.Nodes))
	}

	initial := workflow.NewContextSnapshot(execution.TenantID, execution.ID, execution.WorkflowID, triggerData)
	result, err := e.scheduler.Run(ctx, built, initial)
	if err != nil {
		return e.fail(ctx, execution, err)
	}

	outputJSON, _ := json.Marshal(result.Outputs)

	switch result.Status {
	case RunStatusCompleted:
		if err := e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusCompleted, outputJSON, nil); err != nil {
			return err
		}
		if e.scheduler.Broadcaster != nil {
			e.scheduler.Broadcaster.BroadcastExecutionCompleted(execution.TenantID, execution.WorkflowID, execution.ID, outputJSON)
		}
	case RunStatusCancelled:
		if err := e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusCancelled, outputJSON, nil); err != nil {
			return err
		}
	default:
		msg := firstNodeError(result)
		return e.fail(ctx, execution, fmt.Errorf("workflow failed: %s", msg))
	}

	e.logger.Info("workflow execution finished", "execution_id", execution.ID, "status", result.Status)
	return nil
}

// subWorkflowResult summarizes a nested run for the parent's integration
// node output.
type subWorkflowResult struct {
	executionID string
	status      string
	output      interface{}
}

// runSubWorkflow loads and runs workflowID as a nested execution against
// trigger, recording it as its own execution row (with parentSnapshot's
// depth/chain carried forward) rather than inlining the child graph into
// the parent run.
func (e *Engine) runSubWorkflow(ctx context.Context, parentSnapshot *workflow.ContextSnapshot, workflowID string, trigger map[string]interface{}, triggerData []byte) (*subWorkflowResult, error) {
	wf, err := e.repo.GetByID(ctx, parentSnapshot.TenantID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sub-workflow: %w", err)
	}

	var definition workflow.WorkflowDefinition
	if err := json.Unmarshal(wf.Definition, &definition); err != nil {
		return nil, fmt.Errorf("failed to parse sub-workflow definition: %w", err)
	}
	built, buildErr := workflow.Build(definition)
	if buildErr != nil {
		return nil, fmt.Errorf("sub-workflow failed validation: %w", buildErr)
	}

	execution, err := e.repo.CreateExecution(ctx, parentSnapshot.TenantID, workflowID, wf.Version, "sub_workflow", triggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to create sub-workflow execution: %w", err)
	}
	if err := e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusRunning, nil, nil); err != nil {
		return nil, err
	}

	childSnapshot, err := parentSnapshot.EnterSubWorkflow(execution.ID, workflowID, trigger, maxSubWorkflowDepth)
	if err != nil {
		return nil, err
	}

	result, err := e.scheduler.Run(ctx, built, childSnapshot)
	if err != nil {
		_ = e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusFailed, nil, strPtr(err.Error()))
		return nil, err
	}

	outputJSON, _ := json.Marshal(result.Outputs)
	switch result.Status {
	case RunStatusCompleted:
		if err := e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusCompleted, outputJSON, nil); err != nil {
			return nil, err
		}
	case RunStatusCancelled:
		if err := e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusCancelled, outputJSON, nil); err != nil {
			return nil, err
		}
	default:
		msg := firstNodeError(result)
		_ = e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusFailed, nil, &msg)
		return nil, fmt.Errorf("sub-workflow failed: %s", msg)
	}

	return &subWorkflowResult{executionID: execution.ID, status: string(result.Status), output: result.Outputs}, nil
}

func strPtr(s string) *string { return &s }

func firstNodeError(result *RunResult) string {
	for _, st := range result.NodeStates {
		if st.LastError != nil {
			return fmt.Sprintf("node %s: %v", st.NodeID, st.LastError)
		}
	}
	return "unknown error"
}

func (e *Engine) fail(ctx context.Context, execution *workflow.Execution, cause error) error {
	e.logger.Error("workflow execution failed", "execution_id", execution.ID, "error", cause)
	errMsg := cause.Error()
	if err := e.repo.UpdateExecutionStatus(ctx, execution.ID, workflow.ExecutionStatusFailed, nil, &errMsg); err != nil {
		return err
	}
	if e.scheduler.Broadcaster != nil {
		e.scheduler.Broadcaster.BroadcastExecutionFailed(execution.TenantID, execution.WorkflowID, execution.ID, errMsg)
	}
	return cause
}
