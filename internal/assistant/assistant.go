// Package assistant answers free-form customer messages with the language
// model and feeds qualified conversations to the seller alert pipeline.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arcosum/arcobot/internal/genai"
	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/store"
)

// DefaultMinLeadScore is the notification threshold when none is configured.
const DefaultMinLeadScore = 7

// Scheduler queues a seller alert for later delivery.
type Scheduler interface {
	Schedule(analysis *models.LeadAnalysis)
}

// Assistant handles conversations that fall outside the division forms.
type Assistant struct {
	evaluator *genai.LeadEvaluator
	msg       messaging.Service
	store     store.Store
	scheduler Scheduler
	minScore  int
}

// Opts holds assistant configuration.
type Opts struct {
	Scheduler Scheduler
	MinScore  int
}

// Option configures the assistant.
type Option func(*Opts)

// WithScheduler wires the debounced seller alert queue.
func WithScheduler(s Scheduler) Option {
	return func(o *Opts) { o.Scheduler = s }
}

// WithMinLeadScore overrides the notification threshold.
func WithMinLeadScore(score int) Option {
	return func(o *Opts) { o.MinScore = score }
}

// New creates the assistant over a model client, messaging and storage.
func New(client genai.ClientInterface, msg messaging.Service, st store.Store, opts ...Option) *Assistant {
	cfg := Opts{MinScore: DefaultMinLeadScore}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Assistant{
		evaluator: genai.NewLeadEvaluator(client),
		msg:       msg,
		store:     st,
		scheduler: cfg.Scheduler,
		minScore:  cfg.MinScore,
	}
}

// Reply evaluates the message in its conversation context, answers the
// customer, persists the analysis and queues a seller alert when the
// conversation qualifies.
func (a *Assistant) Reply(ctx context.Context, phone, text string) error {
	window := genai.HistoryWindowActive
	user, err := a.store.GetUser(phone)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", phone, err)
	}
	if user.State == models.UserStateInactive {
		window = genai.HistoryWindowInactive
	}
	history, err := a.store.GetHistory(phone, window)
	if err != nil {
		return fmt.Errorf("failed to load history for %s: %w", phone, err)
	}

	reply, analysis, err := a.evaluator.EvaluateLead(ctx, phone, text, history, user.Division)
	if err != nil {
		return fmt.Errorf("lead evaluation failed for %s: %w", phone, err)
	}
	if reply != "" {
		if err := a.msg.SendText(ctx, phone, reply); err != nil {
			return fmt.Errorf("failed to answer %s: %w", phone, err)
		}
		if err := a.store.SaveMessage(phone, reply, models.EventTypeText, models.DirectionOutbound); err != nil {
			slog.Debug("Assistant failed to record reply", "error", err, "phone", phone)
		}
	}
	if analysis == nil {
		return nil
	}

	if err := a.store.SaveLeadAnalysis(analysis); err != nil {
		slog.Error("Assistant failed to save analysis", "error", err, "phone", phone)
	}
	slog.Info("Assistant evaluated conversation", "phone", phone, "score", analysis.LeadScore, "qualified", analysis.IsQualified)

	if a.scheduler != nil && genai.ShouldNotify(analysis, a.minScore) {
		a.scheduler.Schedule(analysis)
	}
	return nil
}
