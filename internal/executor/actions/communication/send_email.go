package communication

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gorax/gorax/internal/communication"
	"github.com/gorax/gorax/internal/communication/email"
	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/executor/actions"
)

// SendEmailAction sends an email through a tenant's configured provider
// credential, resolving the credential before building a provider client
// the same way the Slack actions do.
type SendEmailAction struct {
	credentialService credential.Service
}

// SendEmailConfig represents the configuration for the SendEmail action.
type SendEmailConfig struct {
	Provider     string              `json:"provider"` // sendgrid, mailgun, aws_ses, smtp
	From         string              `json:"from"`
	To           []string            `json:"to"`
	CC           []string            `json:"cc,omitempty"`
	BCC          []string            `json:"bcc,omitempty"`
	Subject      string              `json:"subject"`
	Body         string              `json:"body,omitempty"`
	BodyHTML     string              `json:"body_html,omitempty"`
	Attachments  []AttachmentConfig  `json:"attachments,omitempty"`
	ReplyTo      string              `json:"reply_to,omitempty"`
	Headers      map[string]string   `json:"headers,omitempty"`
	CredentialID string              `json:"credential_id"`
	SMTPConfig   *SMTPProviderConfig `json:"smtp_config,omitempty"` // Required for SMTP provider
}

// AttachmentConfig represents an email attachment configuration.
type AttachmentConfig struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"` // Base64 encoded content
	ContentType string `json:"content_type"`
}

// SMTPProviderConfig contains SMTP-specific configuration.
type SMTPProviderConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	UseTLS bool   `json:"use_tls"`
}

// NewSendEmailAction creates a new SendEmail action.
func NewSendEmailAction(credService credential.Service) *SendEmailAction {
	return &SendEmailAction{credentialService: credService}
}

// Execute implements the actions.Action interface: it resolves the node's
// credential, builds the configured provider client, and sends the email.
func (a *SendEmailAction) Execute(ctx context.Context, input *actions.ActionInput) (*actions.ActionOutput, error) {
	config, ok := input.Config.(SendEmailConfig)
	if !ok {
		return nil, fmt.Errorf("invalid config type: expected SendEmailConfig")
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

	provider, err := createEmailProvider(config.Provider, config.SMTPConfig, cred.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to create email provider: %w", err)
	}

	request, err := buildEmailRequest(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build email request: %w", err)
	}

	response, err := provider.SendEmail(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return &actions.ActionOutput{Data: map[string]interface{}{
		"success":    true,
		"message_id": response.MessageID,
		"status":     response.Status,
		"sent_at":    response.SentAt,
	}}, nil
}

// createEmailProvider creates an email provider based on the configuration.
func createEmailProvider(providerName string, smtpCfg *SMTPProviderConfig, credValue map[string]interface{}) (communication.EmailProvider, error) {
	switch providerName {
	case "sendgrid":
		apiKey, ok := credValue["api_key"].(string)
		if !ok {
			return nil, fmt.Errorf("sendgrid api_key not found in credential")
		}
		return email.NewSendGridProvider(apiKey), nil

	case "mailgun":
		domain, ok := credValue["domain"].(string)
		if !ok {
			return nil, fmt.Errorf("mailgun domain not found in credential")
		}
		apiKey, ok := credValue["api_key"].(string)
		if !ok {
			return nil, fmt.Errorf("mailgun api_key not found in credential")
		}
		return email.NewMailgunProvider(domain, apiKey), nil

	case "aws_ses":
		region, ok := credValue["region"].(string)
		if !ok {
			region = "us-east-1"
		}
		return email.NewSESProvider(region)

	case "smtp":
		if smtpCfg == nil {
			return nil, fmt.Errorf("smtp_config is required for SMTP provider")
		}
		username, ok := credValue["username"].(string)
		if !ok {
			return nil, fmt.Errorf("smtp username not found in credential")
		}
		password, ok := credValue["password"].(string)
		if !ok {
			return nil, fmt.Errorf("smtp password not found in credential")
		}
		return email.NewSMTPProvider(smtpCfg.Host, smtpCfg.Port, username, password, smtpCfg.UseTLS), nil

	default:
		return nil, fmt.Errorf("unsupported email provider: %s", providerName)
	}
}

// buildEmailRequest builds an EmailRequest from the action configuration.
func buildEmailRequest(config SendEmailConfig) (*communication.EmailRequest, error) {
	request := &communication.EmailRequest{
		From:     config.From,
		To:       config.To,
		CC:       config.CC,
		BCC:      config.BCC,
		Subject:  config.Subject,
		Body:     config.Body,
		BodyHTML: config.BodyHTML,
		ReplyTo:  config.ReplyTo,
		Headers:  config.Headers,
	}

	for _, attConfig := range config.Attachments {
		content, err := base64.StdEncoding.DecodeString(attConfig.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode attachment %s: %w", attConfig.Filename, err)
		}
		request.Attachments = append(request.Attachments, communication.Attachment{
			Filename:    attConfig.Filename,
			Content:     content,
			ContentType: attConfig.ContentType,
		})
	}

	return request, nil
}

// Validate validates the action configuration.
func (c SendEmailConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.From == "" {
		return fmt.Errorf("from address is required")
	}
	if len(c.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	if c.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if c.Body == "" && c.BodyHTML == "" {
		return fmt.Errorf("email body is required")
	}
	if c.CredentialID == "" {
		return fmt.Errorf("credential_id is required")
	}
	if c.Provider == "smtp" && c.SMTPConfig == nil {
		return fmt.Errorf("smtp_config is required for SMTP provider")
	}
	return nil
}
