package notify

import (
	"context"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jordan-wright/email"

	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
)

func sampleLead() *models.LeadAnalysis {
	return &models.LeadAnalysis{
		PhoneNumber: "+5212221112233",
		IsQualified: true,
		LeadScore:   8,
		LeadType:    models.LeadTypeRoladosForm,
		Division:    models.DivisionRolados,
		Summary:     "Solicitud de rolado: 500 kg en Puebla",
		NextAction:  "Llamar para cotizar",
		ProjectInfo: map[string]string{"cantidad": "500 kg", "calibre": "cal_20"},
	}
}

func TestNotifySendsTemplateAndDetail(t *testing.T) {
	recorder := messaging.NewRecorderService()
	n := NewNotifier(recorder, WithSellers(map[models.Division][]Seller{
		models.DivisionRolados: {{Phone: "+5212229998877"}},
	}))

	if err := n.NotifyQualifiedLead(context.Background(), sampleLead()); err != nil {
		t.Fatalf("NotifyQualifiedLead failed: %v", err)
	}
	msgs := recorder.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected template + detail, got %d messages", len(msgs))
	}
	if msgs[0].Kind != "template" || msgs[0].Template != LeadTemplateName {
		t.Errorf("first send = %+v, want template %s", msgs[0], LeadTemplateName)
	}
	if len(msgs[0].Params) != 6 {
		t.Errorf("template params = %d, want 6", len(msgs[0].Params))
	}
	body := msgs[1].Body
	for _, want := range []string{"Score: 8/10", "+5212221112233", "Rolados", "wa.me/5212221112233", "calibre"} {
		if !strings.Contains(body, want) {
			t.Errorf("detail message missing %q:\n%s", want, body)
		}
	}
}

func TestNotifyFallsBackToGeneralSellers(t *testing.T) {
	recorder := messaging.NewRecorderService()
	n := NewNotifier(recorder, WithSellers(map[models.Division][]Seller{
		models.DivisionOtros: {{Phone: "+5212220001122"}},
	}))

	lead := sampleLead()
	lead.Division = models.DivisionTechos
	if err := n.NotifyQualifiedLead(context.Background(), lead); err != nil {
		t.Fatalf("NotifyQualifiedLead failed: %v", err)
	}
	if last := recorder.LastMessage(); last == nil || last.To != "+5212220001122" {
		t.Fatalf("expected fallback seller, got %+v", last)
	}
}

func TestNotifySendsEmailWhenConfigured(t *testing.T) {
	recorder := messaging.NewRecorderService()
	n := NewNotifier(recorder,
		WithSellers(map[models.Division][]Seller{
			models.DivisionRolados: {{Phone: "+5212229998877", Email: "ventas@arcosum.com"}},
		}),
		WithSMTP(SMTPConfig{Host: "smtp.arcosum.com", From: "bot@arcosum.com"}),
	)
	var sent []*email.Email
	n.sendMail = func(e *email.Email, addr string, auth smtp.Auth) error {
		sent = append(sent, e)
		return nil
	}

	if err := n.NotifyQualifiedLead(context.Background(), sampleLead()); err != nil {
		t.Fatalf("NotifyQualifiedLead failed: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	e := sent[0]
	if e.Subject != "🔔 Nuevo Lead Calificado - Score: 8/10" {
		t.Errorf("subject = %q", e.Subject)
	}
	if e.To[0] != "ventas@arcosum.com" {
		t.Errorf("to = %v", e.To)
	}
	if !strings.Contains(string(e.HTML), "wa.me/5212221112233") {
		t.Error("HTML body missing wa.me link")
	}
	if len(e.Text) == 0 {
		t.Error("missing plain-text body")
	}
}

type countingSink struct {
	mu    sync.Mutex
	leads []*models.LeadAnalysis
}

func (s *countingSink) NotifyQualifiedLead(ctx context.Context, analysis *models.LeadAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, analysis)
	return nil
}

func (s *countingSink) snapshot() []*models.LeadAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.LeadAnalysis(nil), s.leads...)
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	sink := &countingSink{}
	d := NewDebouncer(sink, nil, WithDelay(30*time.Millisecond))
	defer d.Stop()

	low := sampleLead()
	low.LeadScore = 6
	high := sampleLead()
	high.LeadScore = 9

	d.Schedule(low)
	d.Schedule(high)
	d.Schedule(low) // lower score must not displace the better one

	deadline := time.After(time.Second)
	for {
		if leads := sink.snapshot(); len(leads) > 0 {
			if len(leads) != 1 {
				t.Fatalf("expected 1 alert, got %d", len(leads))
			}
			if leads[0].LeadScore != 9 {
				t.Errorf("kept score %d, want 9", leads[0].LeadScore)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("debouncer never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func waitForLeads(t *testing.T, sink *countingSink, n int) []*models.LeadAnalysis {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if leads := sink.snapshot(); len(leads) >= n {
			return leads
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d alerts", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDebouncerRearmsAfterFlush(t *testing.T) {
	sink := &countingSink{}
	d := NewDebouncer(sink, nil, WithDelay(20*time.Millisecond))
	defer d.Stop()

	first := sampleLead()
	first.LeadScore = 9
	d.Schedule(first)
	waitForLeads(t, sink, 1)

	// A qualifying message after the flush starts a fresh cycle that
	// carries only its own payload.
	second := sampleLead()
	second.LeadScore = 6
	second.Summary = "Nueva consulta de suministros"
	d.Schedule(second)

	leads := waitForLeads(t, sink, 2)
	if len(leads) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(leads))
	}
	if leads[1].LeadScore != 6 || leads[1].Summary != "Nueva consulta de suministros" {
		t.Errorf("second alert carried stale payload: %+v", leads[1])
	}
}

func TestDebouncerTieKeepsFirstAnalysis(t *testing.T) {
	sink := &countingSink{}
	d := NewDebouncer(sink, nil, WithDelay(20*time.Millisecond))
	defer d.Stop()

	first := sampleLead()
	first.Summary = "primera versión"
	tied := sampleLead()
	tied.Summary = "versión empatada"

	d.Schedule(first)
	d.Schedule(tied) // an equal score must not displace the held payload

	leads := waitForLeads(t, sink, 1)
	if leads[0].Summary != "primera versión" {
		t.Errorf("kept %q, want the first analysis", leads[0].Summary)
	}
}

func TestDebouncerCancel(t *testing.T) {
	sink := &countingSink{}
	d := NewDebouncer(sink, nil, WithDelay(20*time.Millisecond))
	defer d.Stop()

	d.Schedule(sampleLead())
	d.Cancel("+5212221112233")
	d.Cancel("+5212221112233") // second cancel is a no-op

	time.Sleep(60 * time.Millisecond)
	if leads := sink.snapshot(); len(leads) != 0 {
		t.Fatalf("cancelled alert fired anyway: %d", len(leads))
	}
}

func TestSellersFromEnv(t *testing.T) {
	t.Setenv("SELLER_PHONES_TECHOS", "+5212223334455, +5212223334456")
	t.Setenv("SELLER_EMAILS_TECHOS", "a@arcosum.com")
	t.Setenv("SELLER_PHONES_ROLADOS", "")

	sellers := SellersFromEnv()
	techos := sellers[models.DivisionTechos]
	if len(techos) != 2 {
		t.Fatalf("expected 2 techos sellers, got %d", len(techos))
	}
	if techos[0].Email != "a@arcosum.com" || techos[1].Email != "" {
		t.Errorf("email pairing wrong: %+v", techos)
	}
	if _, ok := sellers[models.DivisionRolados]; ok {
		t.Error("empty env var must not create sellers")
	}
}
