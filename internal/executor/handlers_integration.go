package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/executor/actions"
	commaction "github.com/gorax/gorax/internal/executor/actions/communication"
	msgaction "github.com/gorax/gorax/internal/executor/actions/messaging"
	"github.com/gorax/gorax/internal/integrations/slack"
	"github.com/gorax/gorax/internal/workflow"
)

// maxSubWorkflowDepth bounds nested sub-workflow recursion.
const maxSubWorkflowDepth = 10

// integrationProviderConfig picks which concrete integration an
// "integration" node reaches. Provider "" (or anything unrecognized) falls
// back to a bare HTTP call.
type integrationProviderConfig struct {
	Provider string `json:"provider"`
}

// integrationHandler dispatches "integration" nodes by provider: a nested
// workflow invocation, an outbound email/SMS send, or a Slack action. Its
// sub-workflow branch needs the Engine itself, which isn't constructed
// until after the Dispatcher and Scheduler are (Engine wraps a Scheduler
// that wraps this Dispatcher), so engine is wired in after the fact via
// SetEngine, the same two-phase pattern as llmHandler.SetImageStorage.
type integrationHandler struct {
	credentialService credential.Service
	engine            *Engine
}

func newIntegrationHandler(credService credential.Service) *integrationHandler {
	return &integrationHandler{credentialService: credService}
}

// SetEngine wires the Engine a sub-workflow node recurses into.
func (h *integrationHandler) SetEngine(e *Engine) {
	h.engine = e
}

func (h *integrationHandler) handle(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var sel integrationProviderConfig
	if len(node.Config) > 0 {
		_ = json.Unmarshal(node.Config, &sel)
	}

	switch sel.Provider {
	case "workflow":
		return h.handleSubWorkflow(ctx, node, snapshot)
	case "email":
		return h.handleEmail(ctx, node, snapshot)
	case "sms":
		return h.handleSMS(ctx, node, snapshot)
	case "slack":
		return h.handleSlack(ctx, node, snapshot)
	case "queue":
		return h.handleQueue(ctx, node, snapshot)
	default:
		return handleHTTP(ctx, node, bw, snapshot)
	}
}

// handleSubWorkflow runs node's configured workflow to completion on a
// fresh execution row and returns its output. Folded into the
// "integration" node type (provider=workflow) rather than kept as a
// separate engine node type.
func (h *integrationHandler) handleSubWorkflow(ctx context.Context, node *workflow.Node, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	if h.engine == nil {
		return nil, fmt.Errorf("sub-workflow node %s: engine not wired", node.ID)
	}

	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("sub-workflow node %s: %w", node.ID, err)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("sub-workflow node %s: %w", node.ID, err)
	}
	var cfg workflow.SubWorkflowConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("sub-workflow node %s: invalid config: %w", node.ID, err)
	}
	if cfg.WorkflowID == "" {
		return nil, fmt.Errorf("sub-workflow node %s: workflow_id is required", node.ID)
	}

	trigger := map[string]interface{}{}
	for childKey, parentPath := range cfg.InputMapping {
		v, err := snapshot.Lookup(parentPath)
		if err != nil {
			return nil, fmt.Errorf("sub-workflow node %s: input_mapping %s: %w", node.ID, childKey, err)
		}
		trigger[childKey] = v
	}
	if len(cfg.InputMapping) == 0 {
		trigger = snapshot.Trigger
	}
	triggerData, err := json.Marshal(trigger)
	if err != nil {
		return nil, fmt.Errorf("sub-workflow node %s: %w", node.ID, err)
	}

	child, err := h.engine.runSubWorkflow(ctx, snapshot, cfg.WorkflowID, trigger, triggerData)
	if err != nil {
		return nil, fmt.Errorf("sub-workflow node %s: %w", node.ID, err)
	}

	out := map[string]interface{}{"execution_id": child.executionID, "status": child.status, "output": child.output}
	return &NodeOutput{Data: out}, nil
}

// handleEmail resolves EmailConfig and delegates to SendEmailAction.
func (h *integrationHandler) handleEmail(ctx context.Context, node *workflow.Node, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("email node %s: %w", node.ID, err)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("email node %s: %w", node.ID, err)
	}
	var cfg commaction.SendEmailConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("email node %s: invalid config: %w", node.ID, err)
	}

	action := commaction.NewSendEmailAction(h.credentialService)
	out, err := action.Execute(ctx, actions.NewActionInput(cfg, snapshot.AsEvalContext()))
	if err != nil {
		return nil, fmt.Errorf("email node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: out.Data}, nil
}

// handleSMS resolves SendSMSConfig and delegates to SendSMSAction.
func (h *integrationHandler) handleSMS(ctx context.Context, node *workflow.Node, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("sms node %s: %w", node.ID, err)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("sms node %s: %w", node.ID, err)
	}
	var cfg commaction.SendSMSConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("sms node %s: invalid config: %w", node.ID, err)
	}

	action := commaction.NewSendSMSAction(h.credentialService)
	out, err := action.Execute(ctx, actions.NewActionInput(cfg, snapshot.AsEvalContext()))
	if err != nil {
		return nil, fmt.Errorf("sms node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: out.Data}, nil
}

// queueActionConfig picks send vs. receive on a message-queue integration
// node; node authors set "operation" to the queue direction.
type queueActionConfig struct {
	Operation string `json:"operation"`
}

// handleQueue dispatches a "queue" integration node to the SQS/Kafka/RabbitMQ
// send or receive action, by config.Operation.
func (h *integrationHandler) handleQueue(ctx context.Context, node *workflow.Node, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var sel queueActionConfig
	if err := json.Unmarshal(node.Config, &sel); err != nil {
		return nil, fmt.Errorf("queue node %s: invalid config: %w", node.ID, err)
	}

	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("queue node %s: %w", node.ID, err)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("queue node %s: %w", node.ID, err)
	}
	evalCtx := snapshot.AsEvalContext()

	var out *actions.ActionOutput
	switch sel.Operation {
	case "", "send":
		var cfg msgaction.SendMessageConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("queue node %s: %w", node.ID, err)
		}
		out, err = msgaction.NewSendMessageAction(h.credentialService).Execute(ctx, actions.NewActionInput(cfg, evalCtx))
	case "receive":
		var cfg msgaction.ReceiveMessageConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("queue node %s: %w", node.ID, err)
		}
		out, err = msgaction.NewReceiveMessageAction(h.credentialService).Execute(ctx, actions.NewActionInput(cfg, evalCtx))
	default:
		return nil, fmt.Errorf("queue node %s: unknown operation %q", node.ID, sel.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("queue node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: out.Data}, nil
}

// slackActionConfig picks which of the four Slack actions to run; node
// authors set "action" to the Slack operation name.
type slackActionConfig struct {
	Action string `json:"action"`
}

// handleSlack dispatches to the Slack action implementations by
// config.Action, keeping their credential-backed client construction intact.
func (h *integrationHandler) handleSlack(ctx context.Context, node *workflow.Node, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var sel slackActionConfig
	if err := json.Unmarshal(node.Config, &sel); err != nil {
		return nil, fmt.Errorf("slack node %s: invalid config: %w", node.ID, err)
	}

	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("slack node %s: %w", node.ID, err)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("slack node %s: %w", node.ID, err)
	}
	evalCtx := snapshot.AsEvalContext()

	var action actions.Action
	var cfg interface{}
	switch sel.Action {
	case "send_message":
		var c slack.SendMessageConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("slack node %s: %w", node.ID, err)
		}
		action, cfg = slack.NewSendMessageAction(h.credentialService), c
	case "send_dm":
		var c slack.SendDMConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("slack node %s: %w", node.ID, err)
		}
		action, cfg = slack.NewSendDMAction(h.credentialService), c
	case "update_message":
		var c slack.UpdateMessageConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("slack node %s: %w", node.ID, err)
		}
		action, cfg = slack.NewUpdateMessageAction(h.credentialService), c
	case "add_reaction":
		var c slack.AddReactionConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("slack node %s: %w", node.ID, err)
		}
		action, cfg = slack.NewAddReactionAction(h.credentialService), c
	default:
		return nil, fmt.Errorf("slack node %s: unknown action %q", node.ID, sel.Action)
	}

	out, err := action.Execute(ctx, actions.NewActionInput(cfg, evalCtx))
	if err != nil {
		return nil, fmt.Errorf("slack node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: out.Data}, nil
}
