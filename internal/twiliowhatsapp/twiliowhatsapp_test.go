package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMessage(ctx, "51999888777", "Hola desde Barbara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.SentMessages))
	}

	if mock.SentMessages[0].Body != "Hola desde Barbara" {
		t.Errorf("expected body %q, got %q", "Hola desde Barbara", mock.SentMessages[0].Body)
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error when credentials are missing")
	}
	if _, err := NewClient(WithAccountSID("sid"), WithAuthToken("token")); err == nil {
		t.Error("expected error when from number is missing")
	}
	if _, err := NewClient(WithAccountSID("sid"), WithAuthToken("token"), WithFromWhats("whatsapp:+51999888777")); err != nil {
		t.Errorf("expected client with full options, got error %v", err)
	}
}
