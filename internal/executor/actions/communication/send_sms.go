package communication

import (
	"context"
	"fmt"

	"github.com/gorax/gorax/internal/communication"
	"github.com/gorax/gorax/internal/communication/sms"
	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/executor/actions"
)

// SendSMSAction sends an SMS through a tenant's configured provider credential.
type SendSMSAction struct {
	credentialService credential.Service
}

// SendSMSConfig represents the configuration for the SendSMS action.
type SendSMSConfig struct {
	Provider     string `json:"provider"` // twilio, aws_sns, messagebird
	From         string `json:"from"`
	To           string `json:"to"`
	Message      string `json:"message"`
	CredentialID string `json:"credential_id"`
}

// NewSendSMSAction creates a new SendSMS action.
func NewSendSMSAction(credService credential.Service) *SendSMSAction {
	return &SendSMSAction{credentialService: credService}
}

// Execute implements the actions.Action interface.
func (a *SendSMSAction) Execute(ctx context.Context, input *actions.ActionInput) (*actions.ActionOutput, error) {
	config, ok := input.Config.(SendSMSConfig)
	if !ok {
		return nil, fmt.Errorf("invalid config type: expected SendSMSConfig")
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

	provider, err := createSMSProvider(config.Provider, cred.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMS provider: %w", err)
	}

	request := &communication.SMSRequest{
		From:    config.From,
		To:      config.To,
		Message: config.Message,
	}

	response, err := provider.SendSMS(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to send SMS: %w", err)
	}

	return &actions.ActionOutput{Data: map[string]interface{}{
		"success":    true,
		"message_id": response.MessageID,
		"status":     response.Status,
		"cost":       response.Cost,
		"sent_at":    response.SentAt,
	}}, nil
}

// createSMSProvider creates an SMS provider based on the configuration.
func createSMSProvider(providerName string, credValue map[string]interface{}) (communication.SMSProvider, error) {
	switch providerName {
	case "twilio":
		accountSID, ok := credValue["account_sid"].(string)
		if !ok {
			return nil, fmt.Errorf("twilio account_sid not found in credential")
		}
		authToken, ok := credValue["auth_token"].(string)
		if !ok {
			return nil, fmt.Errorf("twilio auth_token not found in credential")
		}
		return sms.NewTwilioProvider(accountSID, authToken), nil

	case "aws_sns":
		region, ok := credValue["region"].(string)
		if !ok {
			region = "us-east-1"
		}
		return sms.NewSNSProvider(region)

	case "messagebird":
		apiKey, ok := credValue["api_key"].(string)
		if !ok {
			return nil, fmt.Errorf("messagebird api_key not found in credential")
		}
		return sms.NewMessageBirdProvider(apiKey), nil

	default:
		return nil, fmt.Errorf("unsupported SMS provider: %s", providerName)
	}
}

// Validate validates the action configuration.
func (c SendSMSConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.From == "" {
		return fmt.Errorf("from number is required")
	}
	if c.To == "" {
		return fmt.Errorf("to number is required")
	}
	if c.Message == "" {
		return fmt.Errorf("message is required")
	}
	if c.CredentialID == "" {
		return fmt.Errorf("credential_id is required")
	}
	return nil
}

// extractString resolves a dotted path (e.g. "env.tenant_id") against a
// nested map, the same lookup the Slack actions use to pull
// tenant/credential identifiers out of an action's evaluation context.
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
