package messaging

import (
	"context"
	"strings"
	"sync"

	"github.com/arcosum/arcobot/internal/models"
)

// SentMessage records one outbound send made through a RecorderService.
type SentMessage struct {
	To       string
	Body     string
	Kind     string // "text", "buttons", "list", "template"
	Template string
	Params   []string
}

// RecorderService is a Service implementation for tests. It records every
// outbound send and lets tests inject inbound events.
type RecorderService struct {
	mu      sync.Mutex
	Sent    []SentMessage
	FailAll bool
	events  chan models.InboundEvent
}

// NewRecorderService creates an in-memory recording service.
func NewRecorderService() *RecorderService {
	return &RecorderService{events: make(chan models.InboundEvent, DefaultChannelBufferSize)}
}

func (s *RecorderService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(recipient), "+")
	if cleaned == "" {
		return "", models.ErrEmptyRecipient
	}
	return cleaned, nil
}

func (s *RecorderService) record(m SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAll {
		return models.ErrEmptyBody
	}
	s.Sent = append(s.Sent, m)
	return nil
}

func (s *RecorderService) SendText(ctx context.Context, to string, body string) error {
	return s.record(SentMessage{To: to, Body: body, Kind: "text"})
}

func (s *RecorderService) SendButtons(ctx context.Context, to string, body string, buttons []Button) error {
	return s.record(SentMessage{To: to, Body: numberedFallback(body, buttons), Kind: "buttons"})
}

func (s *RecorderService) SendList(ctx context.Context, to string, body, buttonLabel string, sections []ListSection) error {
	return s.record(SentMessage{To: to, Body: numberedListFallback(body, sections), Kind: "list"})
}

func (s *RecorderService) SendTemplate(ctx context.Context, to string, name, language string, params []string) error {
	return s.record(SentMessage{To: to, Kind: "template", Template: name, Params: params})
}

func (s *RecorderService) MarkRead(ctx context.Context, messageID string) error {
	return nil
}

func (s *RecorderService) Start(ctx context.Context) error { return nil }

func (s *RecorderService) Stop() error {
	close(s.events)
	return nil
}

func (s *RecorderService) Events() <-chan models.InboundEvent {
	return s.events
}

// Publish injects an inbound event for tests.
func (s *RecorderService) Publish(event models.InboundEvent) {
	s.events <- event
}

// Messages returns a snapshot of recorded sends.
func (s *RecorderService) Messages() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// LastMessage returns the most recent send, or nil when nothing was sent.
func (s *RecorderService) LastMessage() *SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Sent) == 0 {
		return nil
	}
	m := s.Sent[len(s.Sent)-1]
	return &m
}
