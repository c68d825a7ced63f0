// Package util holds small environment parsing helpers used by the
// command entrypoint.
package util

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable. Accepted spellings
// are true/1/yes/on and false/0/no/off, case-insensitive; anything else
// falls back to defaultValue.
func ParseBoolEnv(key string, defaultValue bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "":
		return defaultValue
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv ignoring invalid value", "key", key, "value", raw, "default", defaultValue)
	return defaultValue
}

// ParseIntEnv reads an integer environment variable, falling back to
// defaultValue when unset or unparseable.
func ParseIntEnv(key string, defaultValue int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("ParseIntEnv ignoring invalid value", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return n
}
