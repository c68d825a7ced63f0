package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/store"
)

// DefaultDebounceDelay is how long a conversation must stay quiet before
// sellers are alerted.
const DefaultDebounceDelay = 120 * time.Second

// LeadSink receives the winning analysis once the quiet period elapses.
type LeadSink interface {
	NotifyQualifiedLead(ctx context.Context, analysis *models.LeadAnalysis) error
}

type pendingLead struct {
	timer    *time.Timer
	analysis *models.LeadAnalysis
}

// Debouncer delays seller alerts while the customer is still typing.
// Re-scheduling the same phone restarts the quiet period and keeps the
// highest-scoring analysis seen so far.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]*pendingLead

	sink  LeadSink
	store store.Store
	delay time.Duration
}

// DebouncerOpts holds debouncer configuration.
type DebouncerOpts struct {
	Delay time.Duration
}

// DebouncerOption configures the debouncer.
type DebouncerOption func(*DebouncerOpts)

// WithDelay overrides the default quiet period.
func WithDelay(d time.Duration) DebouncerOption {
	return func(o *DebouncerOpts) { o.Delay = d }
}

// NewDebouncer creates a debouncer in front of sink. st may be nil; when
// set, a customer who kept talking during the quiet period gets another
// full period before the alert fires.
func NewDebouncer(sink LeadSink, st store.Store, opts ...DebouncerOption) *Debouncer {
	cfg := DebouncerOpts{Delay: DefaultDebounceDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Debouncer{
		pending: make(map[string]*pendingLead),
		sink:    sink,
		store:   st,
		delay:   cfg.Delay,
	}
}

// Schedule queues an alert for the lead's phone. Idempotent per phone:
// repeated calls restart the timer and keep the best analysis.
func (d *Debouncer) Schedule(analysis *models.LeadAnalysis) {
	d.mu.Lock()
	defer d.mu.Unlock()

	phone := analysis.PhoneNumber
	if p, ok := d.pending[phone]; ok {
		if analysis.LeadScore > p.analysis.LeadScore {
			p.analysis = analysis
		}
		p.timer.Reset(d.delay)
		slog.Debug("Debouncer rescheduled", "phone", phone, "score", p.analysis.LeadScore)
		return
	}
	p := &pendingLead{analysis: analysis}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(phone) })
	d.pending[phone] = p
	slog.Debug("Debouncer scheduled", "phone", phone, "delay", d.delay)
}

// Cancel drops any pending alert for the phone.
func (d *Debouncer) Cancel(phone string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[phone]; ok {
		p.timer.Stop()
		delete(d.pending, phone)
		slog.Debug("Debouncer cancelled", "phone", phone)
	}
}

// Stop cancels every pending alert.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for phone, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, phone)
	}
}

func (d *Debouncer) fire(phone string) {
	d.mu.Lock()
	p, ok := d.pending[phone]
	if !ok {
		d.mu.Unlock()
		return
	}
	// The customer may have messaged again after the timer was last reset.
	if d.store != nil {
		if user, err := d.store.GetUser(phone); err == nil {
			if time.Since(user.LastInteraction) < d.delay {
				p.timer.Reset(d.delay)
				d.mu.Unlock()
				slog.Debug("Debouncer deferred, customer still active", "phone", phone)
				return
			}
		}
	}
	delete(d.pending, phone)
	analysis := p.analysis
	d.mu.Unlock()

	slog.Info("Debouncer firing seller alert", "phone", phone, "score", analysis.LeadScore)
	if err := d.sink.NotifyQualifiedLead(context.Background(), analysis); err != nil {
		slog.Error("Debouncer alert delivery failed", "error", err, "phone", phone)
	}
}
