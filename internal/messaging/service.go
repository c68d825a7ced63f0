// Package messaging provides pluggable WhatsApp delivery backends.
//
// The primary backend talks to the Meta Cloud API; alternative backends
// use whatsmeow (direct device session) or Twilio. Backends that cannot
// render interactive buttons or lists degrade them to numbered text.
package messaging

import (
	"context"
	"strconv"
	"time"

	"github.com/arcosum/arcobot/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the inbound event channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// Button is an interactive reply button. WhatsApp allows at most three
// per message.
type Button struct {
	ID    string
	Title string
}

// ListItem is a selectable row inside a list section.
type ListItem struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups list items under a heading.
type ListSection struct {
	Title string
	Items []ListItem
}

// Service defines a pluggable message delivery abstraction.
// It supports outbound sends and provides a channel of decoded inbound events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// phone number. Returns the canonicalized recipient and an error if
	// validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendText sends a plain text message.
	SendText(ctx context.Context, to string, body string) error

	// SendButtons sends a message with up to three interactive reply buttons.
	SendButtons(ctx context.Context, to string, body string, buttons []Button) error

	// SendList sends an interactive list message.
	SendList(ctx context.Context, to string, body, buttonLabel string, sections []ListSection) error

	// SendTemplate sends a pre-approved template message, used to open the
	// 24-hour messaging window when notifying sellers.
	SendTemplate(ctx context.Context, to string, name, language string, params []string) error

	// MarkRead marks an inbound message as read.
	MarkRead(ctx context.Context, messageID string) error

	// Start begins any background processing (e.g., listening for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Events returns a channel of decoded inbound events.
	Events() <-chan models.InboundEvent
}

// numberedFallback renders buttons as a numbered menu for backends that
// cannot send interactive messages.
func numberedFallback(body string, buttons []Button) string {
	out := body
	for i, b := range buttons {
		out += "\n" + strconv.Itoa(i+1) + ". " + b.Title
	}
	return out
}

// numberedListFallback flattens list sections into a numbered menu.
func numberedListFallback(body string, sections []ListSection) string {
	out := body
	n := 1
	for _, sec := range sections {
		if sec.Title != "" {
			out += "\n*" + sec.Title + "*"
		}
		for _, item := range sec.Items {
			out += "\n" + strconv.Itoa(n) + ". " + item.Title
			n++
		}
	}
	return out
}
