package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsmeowService implements Service using a whatsmeow device session.
// Interactive buttons and lists are degraded to numbered text menus,
// which the form engine accepts as digit replies.
type WhatsmeowService struct {
	client   whatsapp.WhatsAppSender
	waClient *whatsapp.Client // access to underlying client for event handling
	events   chan models.InboundEvent
	done     chan struct{}
}

// NewWhatsmeowService creates a new WhatsmeowService wrapping the given sender.
func NewWhatsmeowService(client whatsapp.WhatsAppSender) *WhatsmeowService {
	service := &WhatsmeowService{
		client: client,
		events: make(chan models.InboundEvent, DefaultChannelBufferSize),
		done:   make(chan struct{}),
	}

	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsmeowService created with full client for event handling")
	} else {
		slog.Debug("WhatsmeowService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient strips formatting and checks the number.
func (s *WhatsmeowService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(recipient))
	if !phoneDigitsRe.MatchString(cleaned) {
		return "", models.ErrEmptyRecipient
	}
	return strings.TrimPrefix(cleaned, "+"), nil
}

// SendText sends a plain text message.
func (s *WhatsmeowService) SendText(ctx context.Context, to string, body string) error {
	if body == "" {
		return models.ErrEmptyBody
	}
	if err := s.client.SendMessage(ctx, to, body); err != nil {
		slog.Error("WhatsmeowService SendText failed", "error", err, "to", to)
		return fmt.Errorf("failed to send text to %s: %w", to, err)
	}
	slog.Debug("WhatsmeowService SendText succeeded", "to", to)
	return nil
}

// SendButtons degrades the buttons to a numbered text menu.
func (s *WhatsmeowService) SendButtons(ctx context.Context, to string, body string, buttons []Button) error {
	if len(buttons) == 0 || len(buttons) > models.MaxButtonsPerMessage {
		return models.ErrTooManyButtons
	}
	return s.SendText(ctx, to, numberedFallback(body, buttons))
}

// SendList degrades the list to a numbered text menu.
func (s *WhatsmeowService) SendList(ctx context.Context, to string, body, buttonLabel string, sections []ListSection) error {
	return s.SendText(ctx, to, numberedListFallback(body, sections))
}

// SendTemplate degrades the template to plain text with its parameters
// joined, since device sessions have no template registry.
func (s *WhatsmeowService) SendTemplate(ctx context.Context, to string, name, language string, params []string) error {
	return s.SendText(ctx, to, strings.Join(params, "\n"))
}

// MarkRead is not supported for device sessions.
func (s *WhatsmeowService) MarkRead(ctx context.Context, messageID string) error {
	slog.Debug("WhatsmeowService MarkRead ignored (unsupported)", "message_id", messageID)
	return nil
}

// Start begins listening for incoming device events.
func (s *WhatsmeowService) Start(ctx context.Context) error {
	slog.Debug("WhatsmeowService Start invoked")
	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsmeowService event handler started")
	} else {
		slog.Debug("WhatsmeowService no full client available, skipping event handling (likely mock)")
	}
	return nil
}

// Stop stops background processing and closes the event channel.
func (s *WhatsmeowService) Stop() error {
	slog.Info("WhatsmeowService Stop invoked")
	close(s.done)
	close(s.events)
	return nil
}

// Events returns the channel of decoded inbound events.
func (s *WhatsmeowService) Events() <-chan models.InboundEvent {
	return s.events
}

// handleEvents registers a whatsmeow event handler and forwards messages.
func (s *WhatsmeowService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsmeowService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		default:
			// Ignore receipts, presence and connection events.
		}
	})

	slog.Debug("WhatsmeowService event handler registered")
	<-ctx.Done()
	slog.Debug("WhatsmeowService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage converts a whatsmeow message into an InboundEvent.
func (s *WhatsmeowService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var body string
	eventType := models.EventTypeText
	switch {
	case evt.Message.Conversation != nil:
		body = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		body = *evt.Message.ExtendedTextMessage.Text
	case evt.Message.ImageMessage != nil:
		eventType = models.EventTypeMedia
		if evt.Message.ImageMessage.Caption != nil {
			body = *evt.Message.ImageMessage.Caption
		} else {
			body = "📸 Imagen enviada"
		}
	case evt.Message.DocumentMessage != nil:
		eventType = models.EventTypeMedia
		if evt.Message.DocumentMessage.Caption != nil {
			body = *evt.Message.DocumentMessage.Caption
		} else if evt.Message.DocumentMessage.FileName != nil {
			body = "📄 " + *evt.Message.DocumentMessage.FileName
		} else {
			body = "📄 Documento enviado"
		}
	default:
		slog.Debug("WhatsmeowService ignoring unsupported message", "from", evt.Info.Sender.String())
		return
	}

	event := models.InboundEvent{
		Type:      eventType,
		From:      "+" + evt.Info.Sender.User,
		Body:      body,
		MessageID: string(evt.Info.ID),
		Timestamp: evt.Info.Timestamp,
	}

	select {
	case s.events <- event:
		slog.Debug("WhatsmeowService inbound event forwarded", "from", event.From, "type", event.Type)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsmeowService events channel blocked, dropping event", "from", event.From, "timeout", DefaultChannelTimeout)
	}
}
