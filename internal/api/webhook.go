package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arcosum/arcobot/internal/models"
)

// webhookPayload mirrors the Meta Cloud API webhook envelope, trimmed to
// the fields the bot consumes.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []webhookMessage `json:"messages"`
				Statuses []struct {
					ID        string `json:"id"`
					Status    string `json:"status"`
					Recipient string `json:"recipient_id"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image *struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
		Caption  string `json:"caption"`
	} `json:"image"`
	Document *struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
	} `json:"document"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// verifyWebhook answers Meta's subscription handshake. Without query
// parameters it doubles as a reachability probe.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" && token == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if mode == "subscribe" && token == s.verifyToken && s.verifyToken != "" {
		slog.Info("Server webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge)); err != nil {
			slog.Error("Server failed to write challenge", "error", err)
		}
		return
	}
	slog.Warn("Server webhook verification rejected", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

// receiveWebhook decodes inbound messages and hands them to the event
// publisher. It always answers 200 so Meta does not retry.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server failed to decode webhook payload", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string)
			for _, c := range change.Value.Contacts {
				if c.Profile.Name != "" {
					names[c.WaID] = c.Profile.Name
				}
			}
			for _, m := range change.Value.Messages {
				s.publishMessage(m, names[m.From])
			}
			for _, st := range change.Value.Statuses {
				slog.Debug("Server delivery status", "message_id", st.ID, "status", st.Status, "recipient", st.Recipient)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (s *Server) publishMessage(m webhookMessage, profileName string) {
	event := models.InboundEvent{
		From:      "+" + m.From,
		MessageID: m.ID,
		Timestamp: parseUnixSeconds(m.Timestamp),
	}
	switch m.Type {
	case "text":
		event.Type = models.EventTypeText
		if m.Text != nil {
			event.Body = m.Text.Body
		}
	case "image":
		event.Type = models.EventTypeMedia
		if m.Image != nil {
			event.MediaID = m.Image.ID
			event.MediaType = m.Image.MimeType
			event.Body = m.Image.Caption
		}
		if event.Body == "" {
			event.Body = "📸 Imagen enviada"
		}
	case "document":
		event.Type = models.EventTypeMedia
		event.Body = "📄 Documento enviado"
		if m.Document != nil {
			event.MediaID = m.Document.ID
			if m.Document.Filename != "" {
				event.Body = "📄 " + m.Document.Filename
			}
		}
	case "interactive":
		if m.Interactive == nil {
			slog.Debug("Server skipped empty interactive message", "message_id", m.ID)
			return
		}
		switch {
		case m.Interactive.ButtonReply != nil:
			event.Type = models.EventTypeButtonReply
			event.ReplyID = m.Interactive.ButtonReply.ID
			event.Body = m.Interactive.ButtonReply.Title
		case m.Interactive.ListReply != nil:
			event.Type = models.EventTypeListReply
			event.ReplyID = m.Interactive.ListReply.ID
			event.Body = m.Interactive.ListReply.Title
		default:
			slog.Debug("Server skipped unsupported interactive type", "type", m.Interactive.Type)
			return
		}
	default:
		slog.Debug("Server skipped unsupported message type", "type", m.Type, "from", event.From)
		return
	}

	if profileName != "" && s.store != nil {
		if err := s.store.SetUserName(event.From, profileName); err != nil && !errors.Is(err, models.ErrUserNotFound) {
			slog.Debug("Server failed to store profile name", "error", err, "phone", event.From)
		}
	}
	if s.publisher == nil {
		slog.Warn("Server has no event publisher, dropping message", "from", event.From)
		return
	}
	s.publisher.Publish(event)
	slog.Debug("Server published inbound event", "from", event.From, "type", event.Type)
}

func parseUnixSeconds(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0)
}
