package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Fatal("expected error without sending number")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFrom("+15551234567")); err != nil {
		t.Fatalf("NewClient with full options: %v", err)
	}
}

func TestWhatsappAddr(t *testing.T) {
	if got := whatsappAddr("+5212221112233"); got != "whatsapp:+5212221112233" {
		t.Errorf("whatsappAddr = %q", got)
	}
	if got := whatsappAddr("whatsapp:+5212221112233"); got != "whatsapp:+5212221112233" {
		t.Errorf("whatsappAddr should not double the scheme, got %q", got)
	}
}

func TestMockClientRecordsSends(t *testing.T) {
	mock := NewMockClient()

	if err := mock.SendMessage(context.Background(), "+5212221112233", "hola"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 recorded message, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "+5212221112233" || mock.SentMessages[0].Body != "hola" {
		t.Errorf("recorded message = %+v", mock.SentMessages[0])
	}
}
