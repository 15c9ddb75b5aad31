package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/executor/actions"
	"github.com/gorax/gorax/internal/messaging"
)

// SendMessageAction publishes a message onto a tenant's configured queue
// (SQS, Kafka, or RabbitMQ), resolving transport credentials the same way
// the email/SMS actions do.
type SendMessageAction struct {
	credentialService credential.Service
	queueFactory      func(ctx context.Context, config messaging.Config) (messaging.MessageQueue, error)
}

// SendMessageConfig represents the configuration for sending a message.
type SendMessageConfig struct {
	QueueType    string            `json:"queue_type"`    // sqs, kafka, rabbitmq
	Destination  string            `json:"destination"`   // queue URL, topic name, etc.
	Message      string            `json:"message"`        // message body, already interpolated
	Attributes   map[string]string `json:"attributes"`
	CredentialID string            `json:"credential_id"`
}

// Validate validates the SendMessageConfig.
func (c SendMessageConfig) Validate() error {
	switch c.QueueType {
	case "sqs", "kafka", "rabbitmq":
	default:
		return fmt.Errorf("unsupported queue_type: %s (must be one of: sqs, kafka, rabbitmq)", c.QueueType)
	}
	if c.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	if c.Message == "" {
		return fmt.Errorf("message is required")
	}
	if c.CredentialID == "" {
		return fmt.Errorf("credential_id is required")
	}
	return nil
}

// NewSendMessageAction creates a new SendMessageAction.
func NewSendMessageAction(credService credential.Service) *SendMessageAction {
	return &SendMessageAction{credentialService: credService, queueFactory: messaging.NewMessageQueue}
}

// Execute implements the actions.Action interface.
func (a *SendMessageAction) Execute(ctx context.Context, input *actions.ActionInput) (*actions.ActionOutput, error) {
	config, ok := input.Config.(SendMessageConfig)
	if !ok {
		return nil, fmt.Errorf("invalid config type: expected SendMessageConfig")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
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

	if err := queue.Send(ctx, config.Destination, []byte(config.Message), config.Attributes); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return &actions.ActionOutput{Data: map[string]interface{}{
		"success":     true,
		"message_id":  uuid.New().String(),
		"queue_type":  config.QueueType,
		"destination": config.Destination,
		"sent_at":     time.Now().UTC().Format(time.RFC3339),
	}}, nil
}

// extractString resolves a dotted path (e.g. "env.tenant_id") against a
// nested map, the same lookup the communication actions use to pull the
// tenant ID out of an action's evaluation context.
func extractString(data map[string]interface{}, path string) (string, error) {
	keys := splitPath(path)
	current := data
	for i, key := range keys {
		if i == len(keys)-1 {
			val, ok := current[key]
			if !ok {
				return "", fmt.Errorf("key %q not found in context", path)
			}
			str, ok := val.(string)
			if !ok {
				return "", fmt.Errorf("value at %q is not a string", path)
			}
			return str, nil
		}
		val, ok := current[key]
		if !ok {
			return "", fmt.Errorf("key %q not found in context", path)
		}
		next, ok := val.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("value at %q is not an object", path)
		}
		current = next
	}
	return "", fmt.Errorf("empty path")
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// buildQueueConfig builds a messaging.Config from a resolved credential,
// shared by send and receive since both need the same transport details.
func buildQueueConfig(queueType string, credValue map[string]interface{}) (messaging.Config, error) {
	config := messaging.Config{Type: messaging.QueueType(queueType)}

	switch queueType {
	case "sqs":
		region, ok := credValue["region"].(string)
		if !ok {
			return config, fmt.Errorf("region is required in SQS credential")
		}
		config.Region = region

	case "kafka":
		brokersInterface, ok := credValue["brokers"]
		if !ok {
			return config, fmt.Errorf("brokers are required in Kafka credential")
		}
		var brokers []string
		switch v := brokersInterface.(type) {
		case []interface{}:
			for _, b := range v {
				if broker, ok := b.(string); ok {
					brokers = append(brokers, broker)
				}
			}
		case []string:
			brokers = v
		default:
			return config, fmt.Errorf("brokers must be a string array")
		}
		if len(brokers) == 0 {
			return config, fmt.Errorf("at least one broker is required")
		}
		config.Brokers = brokers

	case "rabbitmq":
		url, ok := credValue["url"].(string)
		if !ok {
			return config, fmt.Errorf("url is required in RabbitMQ credential")
		}
		config.URL = url

	default:
		return config, fmt.Errorf("unsupported queue type: %s", queueType)
	}

	return config, nil
}
