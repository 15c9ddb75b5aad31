package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/executor/actions"
	"github.com/gorax/gorax/internal/messaging"
)

// ReceiveMessageAction pulls messages off a tenant's configured queue.
type ReceiveMessageAction struct {
	credentialService credential.Service
	queueFactory      func(ctx context.Context, config messaging.Config) (messaging.MessageQueue, error)
}

// ReceiveMessageConfig represents the configuration for receiving messages.
type ReceiveMessageConfig struct {
	QueueType    string `json:"queue_type"` // sqs, kafka, rabbitmq
	Source       string `json:"source"`     // queue URL, topic name, etc.
	MaxMessages  int    `json:"max_messages"`
	WaitTime     string `json:"wait_time"` // e.g. "5s", "1m"
	DeleteAfter  bool   `json:"delete_after"`
	CredentialID string `json:"credential_id"`
}

// Validate validates the ReceiveMessageConfig, filling in defaults.
func (c *ReceiveMessageConfig) Validate() error {
	switch c.QueueType {
	case "sqs", "kafka", "rabbitmq":
	default:
		return fmt.Errorf("unsupported queue_type: %s (must be one of: sqs, kafka, rabbitmq)", c.QueueType)
	}
	if c.Source == "" {
		return fmt.Errorf("source is required")
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 10
	}
	if c.WaitTime == "" {
		c.WaitTime = "5s"
	}
	if c.CredentialID == "" {
		return fmt.Errorf("credential_id is required")
	}
	return nil
}

// NewReceiveMessageAction creates a new ReceiveMessageAction.
func NewReceiveMessageAction(credService credential.Service) *ReceiveMessageAction {
	return &ReceiveMessageAction{credentialService: credService, queueFactory: messaging.NewMessageQueue}
}

// Execute implements the actions.Action interface.
func (a *ReceiveMessageAction) Execute(ctx context.Context, input *actions.ActionInput) (*actions.ActionOutput, error) {
	config, ok := input.Config.(ReceiveMessageConfig)
	if !ok {
		return nil, fmt.Errorf("invalid config type: expected ReceiveMessageConfig")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	waitTime, err := time.ParseDuration(config.WaitTime)
	if err != nil {
		return nil, fmt.Errorf("invalid wait_time format: %w", err)
	}

	tenantID, err := extractString(input.Context, "env.tenant_id")
	if err != nil {
		return nil, fmt.Errorf("tenant_id is required in context: %w", err)
	}

	cred, err := a.credentialService.GetValue(ctx, tenantID, config.CredentialID, "system")
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve credential: %w", err)
	}

	queueConfig, err := buildQueueConfig(config.QueueType, cred.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to build queue config: %w", err)
	}

	queue, err := a.queueFactory(ctx, queueConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}
	defer queue.Close()

	messages, err := queue.Receive(ctx, config.Source, config.MaxMessages, waitTime)
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messagesOutput := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		messagesOutput = append(messagesOutput, map[string]interface{}{
			"id":         msg.ID,
			"body":       string(msg.Body),
			"attributes": msg.Attributes,
			"receipt":    msg.Receipt,
			"timestamp":  msg.Timestamp.Format(time.RFC3339),
		})
		if config.DeleteAfter {
			_ = queue.Ack(ctx, msg)
		}
	}

	return &actions.ActionOutput{Data: map[string]interface{}{
		"success":       true,
		"message_count": len(messages),
		"messages":      messagesOutput,
		"queue_type":    config.QueueType,
		"source":        config.Source,
		"received_at":   time.Now().UTC().Format(time.RFC3339),
	}}, nil
}
