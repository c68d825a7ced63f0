package whatsapp

import (
	"context"
	"testing"
)

func TestMockClientSendMessage(t *testing.T) {
	m := NewMockClient()
	if err := m.SendMessage(context.Background(), "5212221234567", "hola"); err != nil {
		t.Errorf("MockClient SendMessage error = %v, want nil", err)
	}
}

func TestClientSendMessageValidation(t *testing.T) {
	c := &Client{}
	if err := c.SendMessage(context.Background(), "5212221234567", "hola"); err == nil {
		t.Error("expected error when client is not initialized")
	}
}

func TestOptions(t *testing.T) {
	var cfg Opts
	for _, opt := range []Option{WithDBDSN("/tmp/wa.db"), WithQRCodeOutput("/tmp/qr.txt"), WithNumericCode()} {
		opt(&cfg)
	}
	if cfg.DBDSN != "/tmp/wa.db" || cfg.QRPath != "/tmp/qr.txt" || !cfg.NumericCode {
		t.Errorf("options not applied: %+v", cfg)
	}
}
