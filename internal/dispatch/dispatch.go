package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arcosum/arcobot/internal/flow"
	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/store"
)

// WelcomeMenu greets a new customer and lists the divisions.
const WelcomeMenu = "¡Hola! 👋 Soy el asistente virtual de ARCOSUM.\n\n" +
	"¿A qué división deseas acudir?\n\n" +
	"🏗️ *1 - ARCOSUM TECHOS*\nArcotechos y estructuras metálicas\n\n" +
	"🔧 *2 - ARCOSUM ROLADOS*\nLaminados y suministros industriales\n\n" +
	"🏢 *3 - ARCOSUM SUMINISTROS*\nLáminas, extractores, vigas y más\n\n" +
	"❓ *4 - OTROS*\nConsultas generales y más\n\n" +
	"👋 *5 - TERMINAR*\nCerrar la conversación\n\n" +
	"¿Qué necesitas? Responde con: 1, 2, 3, 4 o 5"

const invalidOptionMessage = "❌ Opción no válida.\n\nPor favor responde con:\n1️⃣ Techos\n2️⃣ Rolados\n3️⃣ Suministros\n4️⃣ Otros\n5️⃣ Terminar"

const goodbyeMessage = "👋 ¡Gracias por contactar a ARCOSUM!\n\nSi necesitas algo más, escribe cualquier mensaje y con gusto te atenderé.\n\n¡Hasta pronto!"

const technicalDifficultyMessage = "⚠️ Disculpa, tuve un problema técnico. ¿Podrías intentar de nuevo?"

// FormEngine is the form funnel surface the dispatcher drives.
type FormEngine interface {
	HasSession(phone string) bool
	StartForm(ctx context.Context, phone string, division models.Division) error
	HandleMessage(ctx context.Context, phone, text string) (flow.Result, error)
	Cancel(phone string)
}

// Assistant handles free-form conversation after a funnel closes.
type Assistant interface {
	Reply(ctx context.Context, phone, text string) error
}

// Dispatcher routes inbound events: new customers get the division menu,
// customers inside a form go to the engine, closed conversations go to the
// assistant when one is configured. Events for the same phone are handled
// one at a time.
type Dispatcher struct {
	msg        messaging.Service
	store      store.Store
	engine     FormEngine
	assistant  Assistant
	startDelay time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Opts holds dispatcher configuration.
type Opts struct {
	Assistant  Assistant
	StartDelay time.Duration
}

// Option configures the dispatcher.
type Option func(*Opts)

// WithAssistant enables AI follow-up conversation for closed funnels.
func WithAssistant(a Assistant) Option {
	return func(o *Opts) { o.Assistant = a }
}

// WithStartDelay adds a pause between the division confirmation and the
// first form question, for chat pacing. Zero sends immediately.
func WithStartDelay(d time.Duration) Option {
	return func(o *Opts) { o.StartDelay = d }
}

// NewDispatcher wires the router over messaging, storage and the form engine.
func NewDispatcher(msg messaging.Service, st store.Store, engine FormEngine, opts ...Option) *Dispatcher {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher{
		msg:        msg,
		store:      st,
		engine:     engine,
		assistant:  cfg.Assistant,
		startDelay: cfg.StartDelay,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Run consumes inbound events until the context is cancelled or the
// event channel closes.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopped", "reason", ctx.Err())
			return
		case event, ok := <-d.msg.Events():
			if !ok {
				slog.Info("Dispatcher stopped", "reason", "event channel closed")
				return
			}
			go d.HandleEvent(ctx, event)
		}
	}
}

// phoneLock returns the serialization mutex for one customer.
func (d *Dispatcher) phoneLock(phone string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[phone]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[phone] = lock
	}
	return lock
}

// HandleEvent processes one inbound event end to end. A panic anywhere in
// the pipeline is contained to this customer and answered with an apology.
func (d *Dispatcher) HandleEvent(ctx context.Context, event models.InboundEvent) {
	if err := event.Validate(); err != nil {
		slog.Warn("Dispatcher dropped invalid event", "error", err)
		return
	}
	lock := d.phoneLock(event.From)
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher recovered from panic", "panic", r, "phone", event.From)
			if err := d.msg.SendText(ctx, event.From, technicalDifficultyMessage); err != nil {
				slog.Error("Dispatcher failed to send apology", "error", err, "phone", event.From)
			}
		}
	}()

	if err := d.handle(ctx, event); err != nil {
		slog.Error("Dispatcher HandleEvent failed", "error", err, "phone", event.From)
		if err := d.msg.SendText(ctx, event.From, technicalDifficultyMessage); err != nil {
			slog.Error("Dispatcher failed to send apology", "error", err, "phone", event.From)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, event models.InboundEvent) error {
	phone := event.From
	text := event.Body
	if text == "" && event.ReplyID != "" {
		// Interactive replies without a title fall back to the reply id.
		text = event.ReplyID
	}

	if event.MessageID != "" {
		if err := d.msg.MarkRead(ctx, event.MessageID); err != nil {
			slog.Debug("Dispatcher MarkRead failed", "error", err, "message_id", event.MessageID)
		}
	}

	exists, err := d.store.UserExists(phone)
	if err != nil {
		return fmt.Errorf("failed to look up user %s: %w", phone, err)
	}
	if !exists {
		if err := d.store.CreateUser(phone); err != nil {
			return fmt.Errorf("failed to create user %s: %w", phone, err)
		}
		d.recordInbound(phone, text, event.Type)
		slog.Info("Dispatcher new customer", "phone", phone)
		return d.sendText(ctx, phone, WelcomeMenu)
	}
	d.recordInbound(phone, text, event.Type)

	user, err := d.store.GetUser(phone)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", phone, err)
	}
	if user.State == models.UserStateInactive {
		if err := d.store.ReactivateUser(phone); err != nil {
			slog.Debug("Dispatcher reactivation failed", "error", err, "phone", phone)
		}
	}

	if d.engine.HasSession(phone) {
		return d.continueForm(ctx, phone, text)
	}

	switch user.Division {
	case models.DivisionUnassigned:
		return d.routeMenuChoice(ctx, phone, text)
	case models.DivisionCierre:
		if d.assistant != nil {
			return d.assistant.Reply(ctx, phone, text)
		}
		// No assistant: a closed conversation starts over at the menu.
		if err := d.store.SetDivision(phone, models.DivisionUnassigned); err != nil {
			return fmt.Errorf("failed to reset division for %s: %w", phone, err)
		}
		return d.sendText(ctx, phone, WelcomeMenu)
	default:
		// A division without a live session means the form was lost
		// (e.g. restart). Start it again.
		return d.startDivision(ctx, phone, user.Division)
	}
}

// continueForm feeds the message to the engine and applies the outcome.
func (d *Dispatcher) continueForm(ctx context.Context, phone, text string) error {
	result, err := d.engine.HandleMessage(ctx, phone, text)
	if err != nil {
		return fmt.Errorf("form handling failed for %s: %w", phone, err)
	}
	switch {
	case result.Redirect != models.DivisionUnassigned:
		return d.startDivision(ctx, phone, result.Redirect)
	case result.Completed:
		if result.ShowMenu {
			if err := d.store.SetDivision(phone, models.DivisionUnassigned); err != nil {
				return err
			}
			return d.sendText(ctx, phone, WelcomeMenu)
		}
		return d.store.SetDivision(phone, models.DivisionCierre)
	case result.HandedOff:
		return d.store.SetDivision(phone, models.DivisionCierre)
	}
	return nil
}

// routeMenuChoice resolves the division menu answer, by digit or keyword.
func (d *Dispatcher) routeMenuChoice(ctx context.Context, phone, text string) error {
	if IsGoodbye(text) {
		slog.Info("Dispatcher conversation closed by customer", "phone", phone)
		return d.sendText(ctx, phone, goodbyeMessage)
	}
	division := ParseMenuChoice(text)
	if division == models.DivisionUnassigned {
		return d.sendText(ctx, phone, invalidOptionMessage)
	}
	if err := d.sendText(ctx, phone, divisionSelectedMessage(division)); err != nil {
		return err
	}
	if d.startDelay > 0 {
		time.Sleep(d.startDelay)
	}
	return d.startDivision(ctx, phone, division)
}

// startDivision records the assignment and opens the division form.
func (d *Dispatcher) startDivision(ctx context.Context, phone string, division models.Division) error {
	if err := d.store.SetDivision(phone, division); err != nil {
		return fmt.Errorf("failed to assign division for %s: %w", phone, err)
	}
	slog.Info("Dispatcher division assigned", "phone", phone, "division", division)
	return d.engine.StartForm(ctx, phone, division)
}

func (d *Dispatcher) sendText(ctx context.Context, phone, body string) error {
	if err := d.msg.SendText(ctx, phone, body); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", phone, err)
	}
	if err := d.store.SaveMessage(phone, body, models.EventTypeText, models.DirectionOutbound); err != nil {
		slog.Debug("Dispatcher failed to record outbound message", "error", err, "phone", phone)
	}
	return nil
}

func (d *Dispatcher) recordInbound(phone, body string, msgType models.EventType) {
	if err := d.store.SaveMessage(phone, body, msgType, models.DirectionInbound); err != nil {
		slog.Debug("Dispatcher failed to record inbound message", "error", err, "phone", phone)
	}
}

// menuKeywords resolves free-text division mentions at the menu.
var menuKeywords = map[models.Division][]string{
	models.DivisionTechos:      {"techo", "arcotecho", "estructura"},
	models.DivisionRolados:     {"rolado", "lamina", "lámina", "laminado"},
	models.DivisionSuministros: {"suministro"},
	models.DivisionOtros:       {"otro", "consulta", "general"},
}

var menuDigits = map[string]models.Division{
	"1": models.DivisionTechos,
	"2": models.DivisionRolados,
	"3": models.DivisionSuministros,
	"4": models.DivisionOtros,
}

var goodbyeKeywords = []string{"cerrar", "gracias", "listo"}

// IsGoodbye reports whether a menu reply asks to end the conversation.
func IsGoodbye(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "5" {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, keyword := range goodbyeKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ParseMenuChoice maps a menu reply to a division. Digits win over
// keywords; unknown input maps to DivisionUnassigned.
func ParseMenuChoice(text string) models.Division {
	trimmed := strings.TrimSpace(text)
	if division, ok := menuDigits[trimmed]; ok {
		return division
	}
	lower := strings.ToLower(trimmed)
	for _, division := range []models.Division{models.DivisionTechos, models.DivisionRolados, models.DivisionSuministros, models.DivisionOtros} {
		for _, keyword := range menuKeywords[division] {
			if strings.Contains(lower, keyword) {
				return division
			}
		}
	}
	return models.DivisionUnassigned
}

// divisionSelectedMessage confirms the routing before the form opens.
func divisionSelectedMessage(division models.Division) string {
	switch division {
	case models.DivisionTechos:
		return "✅ Perfecto! Te atenderé para **ARCOSUM TECHOS**\n\nArcotechos y estructuras metálicas.\n\nDéjame preparar el formulario...\n\n⏳ Un momento por favor..."
	case models.DivisionRolados:
		return "✅ Perfecto! Te atenderé para **ARCOSUM ROLADOS**\n\nLaminados y suministros industriales.\n\nDéjame preparar el formulario...\n\n⏳ Un momento por favor..."
	case models.DivisionSuministros:
		return "✅ Perfecto! Te atenderé para **ARCOSUM SUMINISTROS**\n\nLáminas, extractores, vigas y más.\n\nDéjame preparar el formulario...\n\n⏳ Un momento por favor..."
	default:
		return "✅ Perfecto! Recibiremos tu consulta general.\n\nDéjame preparar el formulario...\n\n⏳ Un momento por favor..."
	}
}
