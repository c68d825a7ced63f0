package messaging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/twiliowhatsapp"
)

// TwilioService implements Service using the Twilio WhatsApp API. The
// Go SDK has no interactive message support, so buttons and lists are
// degraded to numbered text menus.
type TwilioService struct {
	client *twiliowhatsapp.Client
	events chan models.InboundEvent
	done   chan struct{}
}

// NewTwilioService creates a new TwilioService wrapping the given client.
func NewTwilioService(client *twiliowhatsapp.Client) *TwilioService {
	return &TwilioService{
		client: client,
		events: make(chan models.InboundEvent, DefaultChannelBufferSize),
		done:   make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient normalizes to the +E.164 format Twilio expects.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(recipient))
	if !phoneDigitsRe.MatchString(cleaned) {
		return "", models.ErrEmptyRecipient
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned, nil
}

// SendText sends a plain text message.
func (s *TwilioService) SendText(ctx context.Context, to string, body string) error {
	if body == "" {
		return models.ErrEmptyBody
	}
	to, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMessage(ctx, to, body)
}

// SendButtons degrades the buttons to a numbered text menu.
func (s *TwilioService) SendButtons(ctx context.Context, to string, body string, buttons []Button) error {
	if len(buttons) == 0 || len(buttons) > models.MaxButtonsPerMessage {
		return models.ErrTooManyButtons
	}
	return s.SendText(ctx, to, numberedFallback(body, buttons))
}

// SendList degrades the list to a numbered text menu.
func (s *TwilioService) SendList(ctx context.Context, to string, body, buttonLabel string, sections []ListSection) error {
	return s.SendText(ctx, to, numberedListFallback(body, sections))
}

// SendTemplate degrades the template to plain text with its parameters joined.
func (s *TwilioService) SendTemplate(ctx context.Context, to string, name, language string, params []string) error {
	return s.SendText(ctx, to, strings.Join(params, "\n"))
}

// MarkRead is not supported by the Twilio API.
func (s *TwilioService) MarkRead(ctx context.Context, messageID string) error {
	slog.Debug("TwilioService MarkRead ignored (unsupported)", "message_id", messageID)
	return nil
}

// Start begins background processing. Twilio is webhook driven.
func (s *TwilioService) Start(ctx context.Context) error {
	slog.Debug("TwilioService Start invoked")
	return nil
}

// Stop stops background processing and closes the event channel.
func (s *TwilioService) Stop() error {
	slog.Info("TwilioService Stop invoked")
	close(s.done)
	close(s.events)
	return nil
}

// Events returns the channel of decoded inbound events.
func (s *TwilioService) Events() <-chan models.InboundEvent {
	return s.events
}

// Publish injects a webhook-decoded inbound event into the event channel.
func (s *TwilioService) Publish(event models.InboundEvent) {
	select {
	case <-s.done:
		slog.Warn("TwilioService Publish after Stop, dropping event", "from", event.From)
		return
	default:
	}
	select {
	case s.events <- event:
		slog.Debug("TwilioService inbound event forwarded", "from", event.From, "type", event.Type)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService events channel blocked, dropping event", "from", event.From, "timeout", DefaultChannelTimeout)
	}
}
