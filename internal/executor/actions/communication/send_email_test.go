package communication

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/executor/actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mockCredentialService is a mock for credential.Service.
type mockCredentialService struct {
	mock.Mock
}

func (m *mockCredentialService) GetValue(ctx context.Context, tenantID, credentialID, userID string) (*credential.DecryptedValue, error) {
	args := m.Called(ctx, tenantID, credentialID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.DecryptedValue), args.Error(1)
}

func (m *mockCredentialService) Create(ctx context.Context, tenantID, userID string, input credential.CreateCredentialInput) (*credential.Credential, error) {
	return nil, nil
}
func (m *mockCredentialService) List(ctx context.Context, tenantID string, filter credential.CredentialListFilter, limit, offset int) ([]*credential.Credential, error) {
	return nil, nil
}
func (m *mockCredentialService) GetByID(ctx context.Context, tenantID, credentialID string) (*credential.Credential, error) {
	return nil, nil
}
func (m *mockCredentialService) Update(ctx context.Context, tenantID, credentialID, userID string, input credential.UpdateCredentialInput) (*credential.Credential, error) {
	return nil, nil
}
func (m *mockCredentialService) Delete(ctx context.Context, tenantID, credentialID, userID string) error {
	return nil
}
func (m *mockCredentialService) Rotate(ctx context.Context, tenantID, credentialID, userID string, input credential.RotateCredentialInput) (*credential.Credential, error) {
	return nil, nil
}

func TestSendEmailConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  SendEmailConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: SendEmailConfig{
				Provider:     "sendgrid",
				From:         "sender@example.com",
				To:           []string{"recipient@example.com"},
				Subject:      "Test",
				Body:         "Body",
				CredentialID: "cred-123",
			},
		},
		{
			name:    "missing provider",
			config:  SendEmailConfig{From: "sender@example.com", To: []string{"r@example.com"}, Subject: "T", Body: "B", CredentialID: "c"},
			wantErr: true,
			errMsg:  "provider is required",
		},
		{
			name:    "missing from",
			config:  SendEmailConfig{Provider: "sendgrid", To: []string{"r@example.com"}, Subject: "T", Body: "B", CredentialID: "c"},
			wantErr: true,
			errMsg:  "from address is required",
		},
		{
			name:    "missing recipients",
			config:  SendEmailConfig{Provider: "sendgrid", From: "s@example.com", Subject: "T", Body: "B", CredentialID: "c"},
			wantErr: true,
			errMsg:  "at least one recipient is required",
		},
		{
			name:    "missing subject",
			config:  SendEmailConfig{Provider: "sendgrid", From: "s@example.com", To: []string{"r@example.com"}, Body: "B", CredentialID: "c"},
			wantErr: true,
			errMsg:  "subject is required",
		},
		{
			name:    "missing body",
			config:  SendEmailConfig{Provider: "sendgrid", From: "s@example.com", To: []string{"r@example.com"}, Subject: "T", CredentialID: "c"},
			wantErr: true,
			errMsg:  "email body is required",
		},
		{
			name:    "missing credential ID",
			config:  SendEmailConfig{Provider: "sendgrid", From: "s@example.com", To: []string{"r@example.com"}, Subject: "T", Body: "B"},
			wantErr: true,
			errMsg:  "credential_id is required",
		},
		{
			name:    "smtp without config",
			config:  SendEmailConfig{Provider: "smtp", From: "s@example.com", To: []string{"r@example.com"}, Subject: "T", Body: "B", CredentialID: "c"},
			wantErr: true,
			errMsg:  "smtp_config is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildEmailRequest(t *testing.T) {
	tests := []struct {
		name    string
		config  SendEmailConfig
		wantErr bool
	}{
		{
			name:   "simple email",
			config: SendEmailConfig{From: "s@example.com", To: []string{"r@example.com"}, Subject: "T", Body: "B"},
		},
		{
			name: "email with attachments",
			config: SendEmailConfig{
				From: "s@example.com", To: []string{"r@example.com"}, Subject: "T", Body: "B",
				Attachments: []AttachmentConfig{{Filename: "test.txt", Content: base64.StdEncoding.EncodeToString([]byte("content")), ContentType: "text/plain"}},
			},
		},
		{
			name: "invalid attachment",
			config: SendEmailConfig{
				From: "s@example.com", To: []string{"r@example.com"}, Subject: "T", Body: "B",
				Attachments: []AttachmentConfig{{Filename: "test.txt", Content: "not-base64!!!", ContentType: "text/plain"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, err := buildEmailRequest(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.config.From, request.From)
			assert.Equal(t, tt.config.To, request.To)
		})
	}
}

func TestSendEmailAction_Execute_UnsupportedProvider(t *testing.T) {
	credSvc := &mockCredentialService{}
	credSvc.On("GetValue", mock.Anything, "tenant-1", "cred-123", "system").
		Return(&credential.DecryptedValue{Value: map[string]interface{}{}}, nil)

	action := NewSendEmailAction(credSvc)
	input := actions.NewActionInput(SendEmailConfig{
		Provider: "carrier-pigeon", From: "s@example.com", To: []string{"r@example.com"},
		Subject: "T", Body: "B", CredentialID: "cred-123",
	}, map[string]interface{}{"env": map[string]interface{}{"tenant_id": "tenant-1"}})

	_, err := action.Execute(context.Background(), input)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported email provider")
}

func TestSendEmailAction_Execute_MissingTenant(t *testing.T) {
	action := NewSendEmailAction(&mockCredentialService{})
	input := actions.NewActionInput(SendEmailConfig{
		Provider: "sendgrid", From: "s@example.com", To: []string{"r@example.com"},
		Subject: "T", Body: "B", CredentialID: "cred-123",
	}, map[string]interface{}{})

	_, err := action.Execute(context.Background(), input)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id is required")
}
