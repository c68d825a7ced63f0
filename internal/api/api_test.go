package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/store"
)

type collectedEvents struct {
	events []models.InboundEvent
}

func (c *collectedEvents) Publish(event models.InboundEvent) {
	c.events = append(c.events, event)
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *messaging.RecorderService, *collectedEvents) {
	t.Helper()
	recorder := messaging.NewRecorderService()
	collector := &collectedEvents{}
	st := store.NewInMemoryStore()
	opts = append([]Option{
		WithVerifyToken("ARCOSUM_WEBHOOK_2024"),
		WithPublisher(collector),
	}, opts...)
	return NewServer(recorder, st, opts...), recorder, collector
}

func TestWebhookVerification(t *testing.T) {
	s, _, _ := newTestServer(t)
	router := s.Routes()

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantBody   string
	}{
		{"valid handshake", "/webhook?hub.mode=subscribe&hub.verify_token=ARCOSUM_WEBHOOK_2024&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "/webhook?hub.mode=unsubscribe&hub.verify_token=ARCOSUM_WEBHOOK_2024", http.StatusForbidden, ""},
		{"probe without params", "/webhook", http.StatusOK, `"status":"ok"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want containing %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

const sampleTextWebhook = `{
  "entry": [{"changes": [{"value": {
    "contacts": [{"wa_id": "5212221112233", "profile": {"name": "Juan Pérez"}}],
    "messages": [{
      "from": "5212221112233",
      "id": "wamid.abc",
      "timestamp": "1700000000",
      "type": "text",
      "text": {"body": "hola"}
    }]
  }}]}]
}`

func TestWebhookPublishesTextMessage(t *testing.T) {
	s, _, collector := newTestServer(t)
	router := s.Routes()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleTextWebhook))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"received"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
	if len(collector.events) != 1 {
		t.Fatalf("published %d events, want 1", len(collector.events))
	}
	ev := collector.events[0]
	if ev.From != "+5212221112233" || ev.Body != "hola" || ev.Type != models.EventTypeText {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.MessageID != "wamid.abc" {
		t.Errorf("message id = %q", ev.MessageID)
	}
}

func TestWebhookPublishesInteractiveReplies(t *testing.T) {
	s, _, collector := newTestServer(t)
	router := s.Routes()

	payload := `{"entry":[{"changes":[{"value":{"messages":[
	  {"from":"5212221112233","id":"wamid.b1","type":"interactive",
	   "interactive":{"type":"button_reply","button_reply":{"id":"division_1","title":"Techos"}}},
	  {"from":"5212221112233","id":"wamid.l1","type":"interactive",
	   "interactive":{"type":"list_reply","list_reply":{"id":"division_2","title":"Rolados"}}}
	]}}]}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))

	if len(collector.events) != 2 {
		t.Fatalf("published %d events, want 2", len(collector.events))
	}
	if collector.events[0].Type != models.EventTypeButtonReply || collector.events[0].ReplyID != "division_1" {
		t.Errorf("button event: %+v", collector.events[0])
	}
	if collector.events[1].Type != models.EventTypeListReply || collector.events[1].Body != "Rolados" {
		t.Errorf("list event: %+v", collector.events[1])
	}
}

func TestWebhookMediaMessages(t *testing.T) {
	s, _, collector := newTestServer(t)
	router := s.Routes()

	payload := `{"entry":[{"changes":[{"value":{"messages":[
	  {"from":"5212221112233","id":"wamid.i1","type":"image",
	   "image":{"id":"media1","mime_type":"image/jpeg"}},
	  {"from":"5212221112233","id":"wamid.d1","type":"document",
	   "document":{"id":"media2","filename":"plano.pdf"}}
	]}}]}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))

	if len(collector.events) != 2 {
		t.Fatalf("published %d events, want 2", len(collector.events))
	}
	if collector.events[0].Body != "📸 Imagen enviada" || collector.events[0].MediaID != "media1" {
		t.Errorf("image event: %+v", collector.events[0])
	}
	if collector.events[1].Body != "📄 plano.pdf" {
		t.Errorf("document event: %+v", collector.events[1])
	}
}

func TestWebhookMalformedBodyStillAcknowledged(t *testing.T) {
	s, _, collector := newTestServer(t)
	router := s.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(collector.events) != 0 {
		t.Errorf("published %d events from garbage", len(collector.events))
	}
}

func TestHealthReportsAIFlag(t *testing.T) {
	s, _, _ := newTestServer(t, WithAIEnabled(true))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["ai_enabled"] != true {
		t.Errorf("health = %v", body)
	}
}

func TestStats(t *testing.T) {
	recorder := messaging.NewRecorderService()
	st := store.NewInMemoryStore()
	if err := st.CreateUser("+5212221112233"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	s := NewServer(recorder, st)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats models.Statistics
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if stats.TotalUsers != 1 {
		t.Errorf("total users = %d, want 1", stats.TotalUsers)
	}
}

func TestTestMessageEndpoint(t *testing.T) {
	s, recorder, _ := newTestServer(t)
	router := s.Routes()

	body := `{"to": "+5212221112233", "body": "prueba", "kind": "buttons", "options": ["Sí", "No"]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test-message", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	last := recorder.LastMessage()
	if last == nil || last.Kind != "buttons" {
		t.Fatalf("unexpected send: %+v", last)
	}
}

type stubNotifier struct {
	called bool
}

func (n *stubNotifier) NotifyQualifiedLead(ctx context.Context, analysis *models.LeadAnalysis) error {
	n.called = true
	return nil
}

func TestTestNotificationEndpoint(t *testing.T) {
	notifier := &stubNotifier{}
	s, _, _ := newTestServer(t, WithNotifier(notifier))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test-notification", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !notifier.called {
		t.Error("notifier was not invoked")
	}

	// Without a notifier the endpoint reports unavailability.
	bare, _, _ := newTestServer(t)
	rec = httptest.NewRecorder()
	bare.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test-notification", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
