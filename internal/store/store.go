// Package store provides storage backends for Arcobot.
//
// It includes SQLite and PostgreSQL stores for users, conversation
// messages and lead analyses, plus an in-memory store for tests.
package store

import (
	"strings"
	"time"

	"github.com/arcosum/arcobot/internal/models"
)

// Store defines the persistence operations the bot relies on.
type Store interface {
	UserExists(phone string) (bool, error)
	CreateUser(phone string) error
	GetUser(phone string) (*models.User, error)
	SetDivision(phone string, division models.Division) error
	GetDivision(phone string) (models.Division, error)
	SetUserName(phone, name string) error
	SaveMessage(phone, body string, msgType models.EventType, direction models.MessageDirection) error
	GetHistory(phone string, limit int) ([]models.Message, error)
	SaveLeadAnalysis(analysis *models.LeadAnalysis) error
	GetLeadHistory(phone string, limit int) ([]models.LeadAnalysis, error)
	MarkInactiveBefore(cutoff time.Time) (int64, error)
	ReactivateUser(phone string) error
	GetStatistics() (*models.Statistics, error)
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	DSN string
}

// Option configures store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType inspects a connection string and reports which SQL
// driver it belongs to: "postgres" for PostgreSQL URLs or key=value
// connection strings, "sqlite3" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}
