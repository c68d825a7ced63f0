package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/store"
)

// LeadNotifier receives completed form leads for seller fan-out.
type LeadNotifier interface {
	NotifyQualifiedLead(ctx context.Context, analysis *models.LeadAnalysis) error
}

// Result reports what a handled message did to the session.
type Result struct {
	// Redirect is set when the customer switched to another division.
	Redirect models.Division
	// Completed is true when the form finished and the lead was recorded.
	Completed bool
	// HandedOff is true when the retry ceiling was hit and the vendor
	// contact card was sent.
	HandedOff bool
	// Lead is the recorded analysis when Completed.
	Lead *models.LeadAnalysis
	// ShowMenu asks the caller to re-send the division menu.
	ShowMenu bool
}

// Engine drives the division form funnels.
type Engine struct {
	sessions  SessionStore
	msg       messaging.Service
	store     store.Store
	validator *Validator
	notifier  LeadNotifier
	forms     map[models.Division]*FormDefinition
}

// EngineOpts holds configuration for the form engine.
type EngineOpts struct {
	Sessions  SessionStore
	Validator *Validator
	Notifier  LeadNotifier
}

// EngineOption configures the form engine.
type EngineOption func(*EngineOpts)

// WithSessionStore overrides the default in-memory session store.
func WithSessionStore(s SessionStore) EngineOption {
	return func(o *EngineOpts) { o.Sessions = s }
}

// WithValidator injects a validator (e.g. one with a GenAI classifier).
func WithValidator(v *Validator) EngineOption {
	return func(o *EngineOpts) { o.Validator = v }
}

// WithLeadNotifier wires seller notification for completed forms.
func WithLeadNotifier(n LeadNotifier) EngineOption {
	return func(o *EngineOpts) { o.Notifier = n }
}

// NewEngine creates a form engine over the given messaging service and store.
func NewEngine(msg messaging.Service, st store.Store, opts ...EngineOption) *Engine {
	var cfg EngineOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewInMemorySessionStore()
	}
	if cfg.Validator == nil {
		cfg.Validator = NewValidator(nil)
	}
	return &Engine{
		sessions:  cfg.Sessions,
		msg:       msg,
		store:     st,
		validator: cfg.Validator,
		notifier:  cfg.Notifier,
		forms: map[models.Division]*FormDefinition{
			models.DivisionTechos:      TechosForm(),
			models.DivisionRolados:     RoladosForm(),
			models.DivisionSuministros: SuministrosForm(),
			models.DivisionOtros:       OtrosForm(),
		},
	}
}

// HasSession reports whether a form is in progress for the phone.
func (e *Engine) HasSession(phone string) bool {
	_, ok := e.sessions.Get(phone)
	return ok
}

// StartForm begins the division form: sends the intro and the first
// applicable field prompt.
func (e *Engine) StartForm(ctx context.Context, phone string, division models.Division) error {
	form, ok := e.forms[division]
	if !ok {
		return models.ErrInvalidDivision
	}
	session := NewFormSession(phone, division)
	e.skipInapplicable(form, session)
	e.sessions.Put(session)
	slog.Info("Engine StartForm", "phone", phone, "division", division)

	if err := e.send(ctx, phone, form.Intro); err != nil {
		return err
	}
	if session.Step < len(form.Fields) {
		return e.send(ctx, phone, form.Fields[session.Step].Prompt(session))
	}
	return e.showConfirmation(ctx, form, session)
}

// HandleMessage processes one customer message against the active session.
func (e *Engine) HandleMessage(ctx context.Context, phone, text string) (Result, error) {
	session, ok := e.sessions.Get(phone)
	if !ok {
		return Result{}, fmt.Errorf("no active form session for %s", phone)
	}
	form := e.forms[session.Division]

	if session.Confirming {
		return e.handleConfirmation(ctx, form, session, text)
	}

	field := form.Fields[session.Step]

	// A message naming another division abandons this form, unless the
	// current question legitimately expects a division name.
	if !field.NoInterrupt {
		if target := DetectDivisionChange(text, session.Division); target != models.DivisionUnassigned {
			return e.redirect(ctx, phone, target)
		}
	}

	value, valid := field.Validate(ctx, e.validator, session, text)
	if valid {
		session.Data.Set(field.Name, value)
		session.Retries = 0
		if field.Name == "nombre" && e.store != nil {
			if err := e.store.SetUserName(phone, value); err != nil {
				slog.Debug("Engine failed to persist customer name", "error", err, "phone", phone)
			}
		}
		slog.Debug("Engine field accepted", "phone", phone, "field", field.Name, "step", session.Step)
		return e.advance(ctx, form, session)
	}

	session.Retries++
	if session.Retries >= MaxRetries {
		return e.handOff(ctx, form, session)
	}
	e.sessions.Put(session)
	message := fmt.Sprintf("%s\n\n*Intento %d de %d*", field.Invalid(session), session.Retries, MaxRetries)
	return Result{}, e.send(ctx, phone, message)
}

// Cancel drops the active session, if any.
func (e *Engine) Cancel(phone string) {
	e.sessions.Delete(phone)
}

// advance moves to the next applicable field or into confirmation.
func (e *Engine) advance(ctx context.Context, form *FormDefinition, session *FormSession) (Result, error) {
	session.Step++
	e.skipInapplicable(form, session)
	e.sessions.Put(session)

	if session.Step < len(form.Fields) {
		return Result{}, e.send(ctx, session.Phone, form.Fields[session.Step].Prompt(session))
	}
	return Result{}, e.showConfirmation(ctx, form, session)
}

// skipInapplicable advances past fields whose SkipIf holds, auto-filling them.
func (e *Engine) skipInapplicable(form *FormDefinition, session *FormSession) {
	for session.Step < len(form.Fields) {
		field := form.Fields[session.Step]
		if field.SkipIf == nil || !field.SkipIf(session) {
			return
		}
		if field.AutoFill != nil {
			session.Data.Set(field.Name, field.AutoFill(session))
		}
		session.Step++
	}
}

// showConfirmation enters the confirmation pseudo-step.
func (e *Engine) showConfirmation(ctx context.Context, form *FormDefinition, session *FormSession) error {
	session.Confirming = true
	session.Retries = 0
	e.sessions.Put(session)
	return e.send(ctx, session.Phone, form.Confirm(session))
}

// handleConfirmation resolves the final yes/no step.
func (e *Engine) handleConfirmation(ctx context.Context, form *FormDefinition, session *FormSession, text string) (Result, error) {
	// A division switch wins over yes/no, same as on ordinary fields.
	if target := DetectDivisionChange(text, session.Division); target != models.DivisionUnassigned {
		return e.redirect(ctx, session.Phone, target)
	}

	switch e.validator.ConfirmIntent(ctx, text) {
	case "confirma":
		return e.complete(ctx, form, session)
	case "cancela":
		e.sessions.Delete(session.Phone)
		slog.Info("Engine form cancelled", "phone", session.Phone, "division", session.Division)
		message := "🔄 Entendido. Cancelando solicitud.\n\nSi cambias de idea, escribe cualquier mensaje para empezar de nuevo."
		return Result{}, e.send(ctx, session.Phone, message)
	}

	session.Retries++
	if session.Retries >= MaxRetries {
		return e.handOff(ctx, form, session)
	}
	e.sessions.Put(session)
	message := fmt.Sprintf("❓ No entendí. Por favor responde:\n- Sí (para confirmar)\n- No (para cancelar)\n\n*Intento %d de %d*", session.Retries, MaxRetries)
	return Result{}, e.send(ctx, session.Phone, message)
}

// complete records the lead, thanks the customer and alerts the vendor.
func (e *Engine) complete(ctx context.Context, form *FormDefinition, session *FormSession) (Result, error) {
	lead := form.lead(session)
	if e.store != nil {
		if err := e.store.SaveLeadAnalysis(lead); err != nil {
			slog.Error("Engine failed to save lead", "error", err, "phone", session.Phone)
		}
	}
	slog.Info("Engine form completed", "phone", session.Phone, "division", session.Division, "score", lead.LeadScore)

	if err := e.send(ctx, session.Phone, form.Completion(session)); err != nil {
		return Result{}, err
	}
	if form.VendorPhone != "" {
		if err := e.msg.SendText(ctx, form.VendorPhone, form.VendorNotice(session)); err != nil {
			slog.Error("Engine vendor notification failed", "error", err, "vendor", form.VendorPhone)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyQualifiedLead(ctx, lead); err != nil {
			slog.Error("Engine seller notification failed", "error", err, "phone", session.Phone)
		}
	}
	e.sessions.Delete(session.Phone)
	return Result{Completed: true, Lead: lead, ShowMenu: form.ShowMenuAfter}, nil
}

// handOff sends the vendor contact card after too many failed attempts.
func (e *Engine) handOff(ctx context.Context, form *FormDefinition, session *FormSession) (Result, error) {
	e.sessions.Delete(session.Phone)
	slog.Warn("Engine retry ceiling reached, handing off", "phone", session.Phone, "division", session.Division)
	message := fmt.Sprintf("⚠️ Parece que hay un inconveniente con el formulario.\n\nTe conectaremos directamente con el **Vendedor de ARCOSUM**:\n\n☎️ WhatsApp: %s\n\nTe atenderá en menos de 30 minutos. ¡Gracias por tu paciencia!", form.VendorPhone)
	return Result{HandedOff: true}, e.send(ctx, session.Phone, message)
}

// redirect closes the session and reports the division switch.
func (e *Engine) redirect(ctx context.Context, phone string, target models.Division) (Result, error) {
	e.sessions.Delete(phone)
	slog.Info("Engine division switch", "phone", phone, "target", target)
	message := fmt.Sprintf("Perfecto, te conecto con ARCOSUM %s...", target.DisplayName())
	return Result{Redirect: target}, e.send(ctx, phone, message)
}

// send delivers a message and mirrors it into the conversation history.
func (e *Engine) send(ctx context.Context, phone, body string) error {
	if err := e.msg.SendText(ctx, phone, body); err != nil {
		return fmt.Errorf("failed to send form message to %s: %w", phone, err)
	}
	if e.store != nil {
		if err := e.store.SaveMessage(phone, body, models.EventTypeText, models.DirectionOutbound); err != nil {
			slog.Debug("Engine failed to record outbound message", "error", err, "phone", phone)
		}
	}
	return nil
}
