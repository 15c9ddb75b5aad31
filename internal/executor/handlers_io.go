package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/executor/actions"
	"github.com/gorax/gorax/internal/executor/actions/database"
	"github.com/gorax/gorax/internal/executor/agent"
	"github.com/gorax/gorax/internal/llm"
	"github.com/gorax/gorax/internal/workflow"
)

// RegisterIOHandlers wires the node types that need a live collaborator —
// an HTTP client, a database connector factory, an LLM provider registry, an
// agent tool registry, a credential service for outbound integrations — into
// d. Separated from registerBuiltinHandlers because these need constructor
// arguments the pure/in-process handlers don't: credential-backed actions
// (database connectors, LLM providers, Slack/email/SMS/queue) are wired by
// whatever assembles the running executor. Returns the llmHandler (so
// callers can wire image-generation storage) and the integrationHandler (so
// callers can wire the Engine for sub-workflow recursion once it exists).
func RegisterIOHandlers(d *Dispatcher, providers *llm.ProviderRegistry, tools *agent.Registry, credService credential.Service) (*llmHandler, *integrationHandler) {
	d.Register(workflow.EngineNodeHTTP, NodeHandlerFunc(handleHTTP))

	integrationH := newIntegrationHandler(credService)
	d.Register(workflow.EngineNodeIntegration, NodeHandlerFunc(integrationH.handle))

	d.Register(workflow.EngineNodeDatabase, NodeHandlerFunc(handleDatabase))
	d.Register(workflow.EngineNodeTrigger, NodeHandlerFunc(handleTrigger))

	llmH := newLLMHandler(providers)
	d.Register(workflow.EngineNodeLLM, NodeHandlerFunc(llmH.handleChat))
	d.Register(workflow.EngineNodeVision, NodeHandlerFunc(llmH.handleVision))
	d.Register(workflow.EngineNodeImageGeneration, NodeHandlerFunc(llmH.handleImageGeneration))

	agentH := newAgentHandler(providers, tools, d.safety)
	d.Register(workflow.EngineNodeAgent, NodeHandlerFunc(agentH.handle))

	return llmH, integrationH
}

// handleHTTP delegates to HTTPAction, which carries its own URL-validator
// and redirect/auth handling; "integration" nodes with an unrecognized or
// empty provider reuse it as a bare HTTP call.
func handleHTTP(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("http node %s: %w", node.ID, err)
	}
	cfgMap, _ := resolved.(map[string]interface{})

	action := actions.NewHTTPAction()
	out, err := action.Execute(ctx, actions.NewActionInput(cfgMap, snapshot.AsEvalContext()))
	if err != nil {
		return nil, fmt.Errorf("http node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: out.Data}, nil
}

// databaseNodeConfig picks which of the two database actions to run; node
// authors set "driver": "mongodb" to reach MongoDBAction, anything else
// resolves to SQLQueryAction.
type databaseNodeConfig struct {
	Driver string `json:"driver"`
}

func handleDatabase(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	var sel databaseNodeConfig
	if len(node.Config) > 0 {
		_ = json.Unmarshal(node.Config, &sel)
	}

	resolved, err := snapshot.InterpolateJSON(node.Config, workflow.InterpolateOptions{})
	if err != nil {
		return nil, fmt.Errorf("database node %s: %w", node.ID, err)
	}
	cfgMap, _ := resolved.(map[string]interface{})
	input := actions.NewActionInput(cfgMap, snapshot.AsEvalContext())

	var out *actions.ActionOutput
	if sel.Driver == "mongodb" {
		out, err = database.NewMongoDBAction().Execute(ctx, input)
	} else {
		out, err = database.NewSQLQueryAction().Execute(ctx, input)
	}
	if err != nil {
		return nil, fmt.Errorf("database node %s: %w", node.ID, err)
	}
	return &NodeOutput{Data: out.Data}, nil
}

// handleTrigger is a no-op passthrough: a "trigger" node only ever appears
// as a run's entry point, and its output is the run's own trigger payload,
// already seeded into the snapshot before the scheduler starts.
func handleTrigger(ctx context.Context, node *workflow.Node, bw *workflow.BuiltWorkflow, snapshot *workflow.ContextSnapshot) (*NodeOutput, error) {
	return &NodeOutput{Data: snapshot.Trigger}, nil
}
