package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

var fallbackErrorBody = []byte(`{"error":"internal server error"}`)

// writeJSON marshals before touching the ResponseWriter so an encoding
// error cannot corrupt an already-started response.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Server failed to encode response", "error", err)
		status = http.StatusInternalServerError
		body = fallbackErrorBody
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server failed to write response", "error", err)
	}
}

// writeError sends a one-field JSON error object.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
