package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/arcosum/arcobot/internal/models"
)

// DefaultGraphAPIBaseURL is the Meta Graph API endpoint prefix.
const DefaultGraphAPIBaseURL = "https://graph.facebook.com/v18.0"

var phoneDigitsRe = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// CloudAPIOpts holds configuration for the Cloud API service.
type CloudAPIOpts struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

// CloudAPIOption configures the Cloud API service.
type CloudAPIOption func(*CloudAPIOpts)

// WithAccessToken sets the WhatsApp Business access token.
func WithAccessToken(token string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.AccessToken = token }
}

// WithPhoneNumberID sets the sending phone number id.
func WithPhoneNumberID(id string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.PhoneNumberID = id }
}

// WithBaseURL overrides the Graph API base URL (used in tests).
func WithBaseURL(url string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.BaseURL = url }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.HTTPClient = c }
}

// CloudAPIService implements Service using the Meta WhatsApp Cloud API.
// Outbound messages go over HTTPS; inbound events arrive through the
// webhook, which publishes them into the service's event channel.
type CloudAPIService struct {
	token         string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	events        chan models.InboundEvent
	done          chan struct{}
}

// NewCloudAPIService creates a Cloud API messaging service.
func NewCloudAPIService(opts ...CloudAPIOption) (*CloudAPIService, error) {
	var cfg CloudAPIOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token must be provided")
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("phone number id must be provided")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphAPIBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &CloudAPIService{
		token:         cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       cfg.BaseURL,
		httpClient:    cfg.HTTPClient,
		events:        make(chan models.InboundEvent, DefaultChannelBufferSize),
		done:          make(chan struct{}),
	}, nil
}

// ValidateAndCanonicalizeRecipient strips formatting and checks the number
// looks like an international phone number.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(recipient))
	if !phoneDigitsRe.MatchString(cleaned) {
		return "", models.ErrEmptyRecipient
	}
	return strings.TrimPrefix(cleaned, "+"), nil
}

// post sends a payload to the messages endpoint.
func (s *CloudAPIService) post(ctx context.Context, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}
	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("cloud api returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendText sends a plain text message.
func (s *CloudAPIService) SendText(ctx context.Context, to string, body string) error {
	if body == "" {
		return models.ErrEmptyBody
	}
	if len(body) > models.MaxMessageBodyLength {
		return models.ErrBodyTooLong
	}
	err := s.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]interface{}{"body": body},
	})
	if err != nil {
		slog.Error("CloudAPIService SendText failed", "error", err, "to", to)
		return fmt.Errorf("failed to send text to %s: %w", to, err)
	}
	slog.Debug("CloudAPIService SendText succeeded", "to", to, "body_length", len(body))
	return nil
}

// SendButtons sends an interactive message with reply buttons.
func (s *CloudAPIService) SendButtons(ctx context.Context, to string, body string, buttons []Button) error {
	if len(buttons) == 0 || len(buttons) > models.MaxButtonsPerMessage {
		return models.ErrTooManyButtons
	}
	actionButtons := make([]map[string]interface{}, 0, len(buttons))
	for _, b := range buttons {
		actionButtons = append(actionButtons, map[string]interface{}{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}
	err := s.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"buttons": actionButtons},
		},
	})
	if err != nil {
		slog.Error("CloudAPIService SendButtons failed", "error", err, "to", to)
		return fmt.Errorf("failed to send buttons to %s: %w", to, err)
	}
	slog.Debug("CloudAPIService SendButtons succeeded", "to", to, "buttons", len(buttons))
	return nil
}

// SendList sends an interactive list message.
func (s *CloudAPIService) SendList(ctx context.Context, to string, body, buttonLabel string, sections []ListSection) error {
	apiSections := make([]map[string]interface{}, 0, len(sections))
	for _, sec := range sections {
		rows := make([]map[string]string, 0, len(sec.Items))
		for _, item := range sec.Items {
			row := map[string]string{"id": item.ID, "title": item.Title}
			if item.Description != "" {
				row["description"] = item.Description
			}
			rows = append(rows, row)
		}
		apiSections = append(apiSections, map[string]interface{}{
			"title": sec.Title,
			"rows":  rows,
		})
	}
	err := s.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "list",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"button": buttonLabel, "sections": apiSections},
		},
	})
	if err != nil {
		slog.Error("CloudAPIService SendList failed", "error", err, "to", to)
		return fmt.Errorf("failed to send list to %s: %w", to, err)
	}
	slog.Debug("CloudAPIService SendList succeeded", "to", to, "sections", len(sections))
	return nil
}

// SendTemplate sends a pre-approved template message with body parameters.
func (s *CloudAPIService) SendTemplate(ctx context.Context, to string, name, language string, params []string) error {
	components := []map[string]interface{}{}
	if len(params) > 0 {
		parameters := make([]map[string]string, 0, len(params))
		for _, p := range params {
			parameters = append(parameters, map[string]string{"type": "text", "text": p})
		}
		components = append(components, map[string]interface{}{
			"type":       "body",
			"parameters": parameters,
		})
	}
	err := s.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]interface{}{
			"name":       name,
			"language":   map[string]string{"code": language},
			"components": components,
		},
	})
	if err != nil {
		slog.Error("CloudAPIService SendTemplate failed", "error", err, "to", to, "template", name)
		return fmt.Errorf("failed to send template %s to %s: %w", name, to, err)
	}
	slog.Debug("CloudAPIService SendTemplate succeeded", "to", to, "template", name)
	return nil
}

// MarkRead marks an inbound message as read.
func (s *CloudAPIService) MarkRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	err := s.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	})
	if err != nil {
		slog.Error("CloudAPIService MarkRead failed", "error", err, "message_id", messageID)
		return fmt.Errorf("failed to mark message %s read: %w", messageID, err)
	}
	return nil
}

// Start begins background processing. The Cloud API backend is webhook
// driven, so there is nothing to poll.
func (s *CloudAPIService) Start(ctx context.Context) error {
	slog.Debug("CloudAPIService Start invoked")
	return nil
}

// Stop stops background processing and closes the event channel.
func (s *CloudAPIService) Stop() error {
	slog.Info("CloudAPIService Stop invoked")
	close(s.done)
	close(s.events)
	return nil
}

// Events returns the channel of decoded inbound events.
func (s *CloudAPIService) Events() <-chan models.InboundEvent {
	return s.events
}

// Publish injects a webhook-decoded inbound event into the event channel.
// The send is non-blocking; events are dropped with a warning when the
// channel stays full past the timeout.
func (s *CloudAPIService) Publish(event models.InboundEvent) {
	select {
	case <-s.done:
		slog.Warn("CloudAPIService Publish after Stop, dropping event", "from", event.From)
		return
	default:
	}
	select {
	case s.events <- event:
		slog.Debug("CloudAPIService inbound event forwarded", "from", event.From, "type", event.Type)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("CloudAPIService events channel blocked, dropping event", "from", event.From, "timeout", DefaultChannelTimeout)
	}
}
