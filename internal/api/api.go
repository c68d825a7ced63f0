// Package api exposes the HTTP surface of the bot: the Meta webhook that
// feeds inbound WhatsApp events into the dispatcher, plus health, stats
// and operator test endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// EventPublisher receives webhook-decoded inbound events.
type EventPublisher interface {
	Publish(event models.InboundEvent)
}

// LeadNotifier sends a seller alert, used by the test-notification endpoint.
type LeadNotifier interface {
	NotifyQualifiedLead(ctx context.Context, analysis *models.LeadAnalysis) error
}

// Server is the webhook and operations HTTP server.
type Server struct {
	addr        string
	verifyToken string
	aiEnabled   bool

	msg       messaging.Service
	store     store.Store
	publisher EventPublisher
	notifier  LeadNotifier

	http *http.Server
}

// Opts holds server configuration.
type Opts struct {
	Addr        string
	VerifyToken string
	AIEnabled   bool
	Publisher   EventPublisher
	Notifier    LeadNotifier
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithAIEnabled reports assistant availability on /health.
func WithAIEnabled(enabled bool) Option {
	return func(o *Opts) { o.AIEnabled = enabled }
}

// WithPublisher wires webhook events into the messaging event channel.
func WithPublisher(p EventPublisher) Option {
	return func(o *Opts) { o.Publisher = p }
}

// WithNotifier enables the test-notification endpoint.
func WithNotifier(n LeadNotifier) Option {
	return func(o *Opts) { o.Notifier = n }
}

// NewServer builds the HTTP server and its routes.
func NewServer(msg messaging.Service, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
		aiEnabled:   cfg.AIEnabled,
		msg:         msg,
		store:       st,
		publisher:   cfg.Publisher,
		notifier:    cfg.Notifier,
	}
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes assembles the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/webhook", s.verifyWebhook)
	r.Post("/webhook", s.receiveWebhook)
	r.Get("/health", s.health)
	r.Get("/stats", s.stats)
	r.Post("/test-message", s.testMessage)
	r.Post("/test-notification", s.testNotification)
	return r
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", s.addr)
		errCh <- s.http.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		slog.Info("Server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
