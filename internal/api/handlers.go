package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
)

// health reports liveness and whether the AI assistant is configured.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"ai_enabled": s.aiEnabled,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// stats returns usage counters from the store.
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStatistics()
	if err != nil {
		slog.Error("Server stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type testMessageRequest struct {
	To      string   `json:"to"`
	Body    string   `json:"body"`
	Kind    string   `json:"kind"` // "text" (default), "buttons" or "list"
	Options []string `json:"options,omitempty"`
}

// testMessage lets an operator exercise the messaging backend directly.
func (s *Server) testMessage(w http.ResponseWriter, r *http.Request) {
	var req testMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	to, err := s.msg.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	switch req.Kind {
	case "", "text":
		err = s.msg.SendText(ctx, to, req.Body)
	case "buttons":
		buttons := make([]messaging.Button, 0, len(req.Options))
		for i, opt := range req.Options {
			buttons = append(buttons, messaging.Button{ID: "option_" + strconv.Itoa(i+1), Title: opt})
		}
		err = s.msg.SendButtons(ctx, to, req.Body, buttons)
	case "list":
		items := make([]messaging.ListItem, 0, len(req.Options))
		for i, opt := range req.Options {
			items = append(items, messaging.ListItem{ID: "option_" + strconv.Itoa(i+1), Title: opt})
		}
		err = s.msg.SendList(ctx, to, req.Body, "Ver opciones", []messaging.ListSection{{Items: items}})
	default:
		writeError(w, http.StatusBadRequest, "unknown message kind")
		return
	}
	if err != nil {
		slog.Error("Server test message failed", "error", err, "to", to)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// testNotification pushes a sample qualified lead through the seller
// alert pipeline.
func (s *Server) testNotification(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications not configured")
		return
	}
	analysis := &models.LeadAnalysis{
		PhoneNumber: "+5210000000000",
		IsQualified: true,
		LeadScore:   9,
		LeadType:    models.LeadTypeCotizacionSeria,
		Division:    models.DivisionTechos,
		Summary:     "Notificación de prueba del sistema",
		NextAction:  "Ninguna, es una prueba",
	}
	if err := s.notifier.NotifyQualifiedLead(r.Context(), analysis); err != nil {
		slog.Error("Server test notification failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
