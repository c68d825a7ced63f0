package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/store"
)

type capturedLeads struct {
	leads []*models.LeadAnalysis
}

func (c *capturedLeads) NotifyQualifiedLead(ctx context.Context, analysis *models.LeadAnalysis) error {
	c.leads = append(c.leads, analysis)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *messaging.RecorderService, *capturedLeads) {
	t.Helper()
	recorder := messaging.NewRecorderService()
	notifier := &capturedLeads{}
	st := store.NewInMemoryStore()
	if err := st.CreateUser("+5212221112233"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	engine := NewEngine(recorder, st, WithLeadNotifier(notifier))
	return engine, recorder, notifier
}

func answer(t *testing.T, e *Engine, phone, text string) Result {
	t.Helper()
	res, err := e.HandleMessage(context.Background(), phone, text)
	if err != nil {
		t.Fatalf("HandleMessage(%q) failed: %v", text, err)
	}
	return res
}

func TestStartFormSendsIntroAndFirstPrompt(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionTechos); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	msgs := recorder.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected intro and first prompt, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[0].Body, "FORMULARIO TECHOS") {
		t.Errorf("unexpected intro: %q", msgs[0].Body)
	}
	if !strings.Contains(msgs[1].Body, "nombre completo") {
		t.Errorf("unexpected first prompt: %q", msgs[1].Body)
	}
	if !engine.HasSession(phone) {
		t.Error("expected an active session after StartForm")
	}
}

func TestRoladosHappyPath(t *testing.T) {
	engine, recorder, notifier := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionRolados); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	for _, text := range []string{"Juan Pérez", "rolado", "Puebla, Puebla", "500 kg", "pintro", "cal 20"} {
		if res := answer(t, engine, phone, text); res.Completed || res.HandedOff {
			t.Fatalf("form ended early on %q", text)
		}
	}
	confirm := recorder.LastMessage()
	if confirm == nil || !strings.Contains(confirm.Body, "RESUMEN DE TU SOLICITUD") {
		t.Fatalf("expected confirmation summary, got %+v", confirm)
	}
	if !strings.Contains(confirm.Body, "Calibre 20") || !strings.Contains(confirm.Body, "Pintro") {
		t.Errorf("summary missing sheet details: %q", confirm.Body)
	}

	res := answer(t, engine, phone, "sí")
	if !res.Completed {
		t.Fatal("expected completion after confirmation")
	}
	if res.Lead == nil {
		t.Fatal("expected a lead on completion")
	}
	if res.Lead.LeadType != models.LeadTypeRoladosForm {
		t.Errorf("lead type = %q", res.Lead.LeadType)
	}
	if res.Lead.LeadScore != 8 {
		t.Errorf("lead score = %d, want 8", res.Lead.LeadScore)
	}
	want := map[string]string{
		"nombre":    "Juan Pérez",
		"servicio":  "rolado",
		"ubicacion": "Puebla, Puebla",
		"cantidad":  "500 kg",
		"lamina":    "pintro",
		"calibre":   "cal_20",
	}
	for field, value := range want {
		if res.Lead.ProjectInfo[field] != value {
			t.Errorf("ProjectInfo[%q] = %q, want %q", field, res.Lead.ProjectInfo[field], value)
		}
	}
	if len(notifier.leads) != 1 {
		t.Fatalf("expected 1 notified lead, got %d", len(notifier.leads))
	}

	var vendorNotified bool
	for _, m := range recorder.Messages() {
		if m.To == VendorPhoneRolados && strings.Contains(m.Body, "NUEVA SOLICITUD ROLADOS") {
			vendorNotified = true
		}
	}
	if !vendorNotified {
		t.Error("expected a vendor notification message")
	}
	if engine.HasSession(phone) {
		t.Error("session should be closed after completion")
	}
}

func TestRoladosSuppliesSkipsSheetQuestions(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionRolados); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	for _, text := range []string{"Ana López", "suministros", "Tlaxcala, Tenancingo", "2 toneladas"} {
		answer(t, engine, phone, text)
	}
	res := answer(t, engine, phone, "sí")
	if !res.Completed {
		t.Fatal("expected completion after confirmation")
	}
	if _, ok := res.Lead.ProjectInfo["lamina"]; ok {
		t.Error("lamina should be skipped for the supplies service")
	}
	if _, ok := res.Lead.ProjectInfo["calibre"]; ok {
		t.Error("calibre should be skipped for the supplies service")
	}
}

func TestRetryCeilingHandsOffToVendor(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionRolados); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	for _, text := range []string{"Juan Pérez", "rolado", "Puebla, Puebla", "500 kg", "pintro"} {
		answer(t, engine, phone, text)
	}

	// Caliber 99 is unavailable; three strikes close the form.
	if res := answer(t, engine, phone, "99"); res.HandedOff {
		t.Fatal("first failed attempt should not hand off")
	}
	if last := recorder.LastMessage(); !strings.Contains(last.Body, "*Intento 1 de 3*") {
		t.Errorf("expected attempt counter, got %q", last.Body)
	}
	answer(t, engine, phone, "99")
	res := answer(t, engine, phone, "99")
	if !res.HandedOff {
		t.Fatal("expected hand-off after three failed attempts")
	}
	last := recorder.LastMessage()
	if !strings.Contains(last.Body, VendorPhoneRolados) {
		t.Errorf("hand-off card missing vendor phone: %q", last.Body)
	}
	if engine.HasSession(phone) {
		t.Error("session should be closed after hand-off")
	}
}

func TestRetryCounterResetsOnValidAnswer(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionTechos); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	answer(t, engine, phone, "x")
	answer(t, engine, phone, "x")
	answer(t, engine, phone, "Juan Pérez")

	// Two fresh failures on the next field must not inherit the old count.
	answer(t, engine, phone, "corto")
	res := answer(t, engine, phone, "corto")
	if res.HandedOff {
		t.Fatal("retry counter leaked across fields")
	}
	session, ok := engine.sessions.Get(phone)
	if !ok {
		t.Fatal("expected live session")
	}
	if session.Retries != 2 {
		t.Errorf("retries = %d, want 2", session.Retries)
	}
}

func TestDivisionSwitchClosesSession(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionSuministros); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	res := answer(t, engine, phone, "mejor quiero un arcotecho")
	if res.Redirect != models.DivisionTechos {
		t.Fatalf("redirect = %q, want techos", res.Redirect)
	}
	if engine.HasSession(phone) {
		t.Error("session should close on division switch")
	}
	if last := recorder.LastMessage(); !strings.Contains(last.Body, "te conecto") {
		t.Errorf("expected redirect notice, got %q", last.Body)
	}
}

func TestOwnDivisionKeywordDoesNotRedirect(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionRolados); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	answer(t, engine, phone, "Juan Pérez")

	// "lámina" names the current division and must stay in the form.
	res := answer(t, engine, phone, "necesito lámina rolada")
	if res.Redirect != models.DivisionUnassigned {
		t.Fatalf("unexpected redirect to %q", res.Redirect)
	}
	session, _ := engine.sessions.Get(phone)
	if got := session.Value("servicio"); got != "rolado" {
		t.Errorf("servicio = %q, want rolado", got)
	}
}

func TestConfirmationNoCancelsForm(t *testing.T) {
	engine, recorder, notifier := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionOtros); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	answer(t, engine, phone, "Ana López")
	answer(t, engine, phone, "Necesito información sobre facturación")

	res := answer(t, engine, phone, "no")
	if res.Completed {
		t.Fatal("cancelled form must not complete")
	}
	if engine.HasSession(phone) {
		t.Error("session should close on cancellation")
	}
	if last := recorder.LastMessage(); !strings.Contains(last.Body, "Cancelando solicitud") {
		t.Errorf("expected cancellation notice, got %q", last.Body)
	}
	if len(notifier.leads) != 0 {
		t.Error("cancelled form must not notify sellers")
	}
}

func TestConfirmationDivisionSwitchBeatsCancellation(t *testing.T) {
	engine, recorder, notifier := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionOtros); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	answer(t, engine, phone, "Ana López")
	answer(t, engine, phone, "Necesito información sobre facturación")

	// Naming another division at the yes/no step redirects, it does not cancel.
	res := answer(t, engine, phone, "no, mejor necesito un arcotecho")
	if res.Redirect != models.DivisionTechos {
		t.Fatalf("redirect = %q, want techos", res.Redirect)
	}
	if engine.HasSession(phone) {
		t.Error("session should close on division switch")
	}
	if last := recorder.LastMessage(); !strings.Contains(last.Body, "te conecto") {
		t.Errorf("expected redirect notice, got %q", last.Body)
	}
	if len(notifier.leads) != 0 {
		t.Error("redirected form must not notify sellers")
	}
}

func TestConfirmationRetriesOnGibberish(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionOtros); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	answer(t, engine, phone, "Ana López")
	answer(t, engine, phone, "Necesito información sobre facturación")

	answer(t, engine, phone, "tal vez")
	last := recorder.LastMessage()
	if !strings.Contains(last.Body, "No entendí") || !strings.Contains(last.Body, "*Intento 1 de 3*") {
		t.Errorf("expected confirmation retry, got %q", last.Body)
	}
	res := answer(t, engine, phone, "sí")
	if !res.Completed {
		t.Fatal("expected completion after late confirmation")
	}
}

func TestSuministrosEstructuralAsksMeasuresAndLength(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionSuministros); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	answer(t, engine, phone, "Juan Pérez")
	answer(t, engine, phone, "2")
	answer(t, engine, phone, "R-72")
	if last := recorder.LastMessage(); !strings.Contains(last.Body, "MEDIDAS DE LÁMINA ESTRUCTURAL") {
		t.Fatalf("expected structural measures prompt, got %q", last.Body)
	}
	answer(t, engine, phone, "2 metros x 3 metros")
	if last := recorder.LastMessage(); !strings.Contains(last.Body, "LARGO DE LA LÁMINA") {
		t.Fatalf("expected length prompt, got %q", last.Body)
	}
	answer(t, engine, phone, "3 metros")
	res := answer(t, engine, phone, "sí")
	if !res.Completed {
		t.Fatal("expected completion")
	}
	if res.Lead.ProjectInfo["especificacion"] != "R-72" {
		t.Errorf("especificacion = %q", res.Lead.ProjectInfo["especificacion"])
	}
	if res.Lead.ProjectInfo["largo"] != "3 metros" {
		t.Errorf("largo = %q", res.Lead.ProjectInfo["largo"])
	}
}

func TestSuministrosPoliacrilicaAutofillsSpec(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionSuministros); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	answer(t, engine, phone, "Juan Pérez")
	answer(t, engine, phone, "4")
	answer(t, engine, phone, "5")
	res := answer(t, engine, phone, "sí")
	if !res.Completed {
		t.Fatal("expected completion")
	}
	if res.Lead.ProjectInfo["especificacion"] != "25m x 3 pies" {
		t.Errorf("especificacion = %q", res.Lead.ProjectInfo["especificacion"])
	}
	if res.Lead.ProjectInfo["cantidad"] != "5" {
		t.Errorf("cantidad = %q", res.Lead.ProjectInfo["cantidad"])
	}
}

func TestStepAdvancesMonotonically(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	phone := "+5212221112233"

	if err := engine.StartForm(context.Background(), phone, models.DivisionTechos); err != nil {
		t.Fatalf("StartForm failed: %v", err)
	}
	prev := -1
	check := func() {
		session, ok := engine.sessions.Get(phone)
		if !ok {
			return
		}
		if session.Step < prev {
			t.Fatalf("step went backwards: %d -> %d", prev, session.Step)
		}
		prev = session.Step
	}
	for _, text := range []string{"x", "Juan Pérez", "corto", "Necesito un arcotecho grande", "Puebla, Puebla"} {
		answer(t, engine, phone, text)
		check()
	}
}
