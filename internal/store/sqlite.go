// Package store provides storage backends for Arcobot.
//
// This file implements an SQLite-backed store for users, messages and leads.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/arcosum/arcobot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) UserExists(phone string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE phone_number = ?`, phone).Scan(&n)
	if err != nil {
		slog.Error("SQLiteStore UserExists failed", "error", err, "phone", phone)
		return false, fmt.Errorf("failed to check user %s: %w", phone, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) CreateUser(phone string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO users (phone_number) VALUES (?)`, phone)
	if err != nil {
		slog.Error("SQLiteStore CreateUser failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to create user %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore CreateUser succeeded", "phone", phone)
	return nil
}

func (s *SQLiteStore) GetUser(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, phone_number, name, email, company, state, division, created_at, last_interaction FROM users WHERE phone_number = ?`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get user %s: %w", phone, err)
	}
	return u, nil
}

func (s *SQLiteStore) SetDivision(phone string, division models.Division) error {
	res, err := s.db.Exec(`UPDATE users SET division = ? WHERE phone_number = ?`, nilIfEmpty(string(division)), phone)
	if err != nil {
		slog.Error("SQLiteStore SetDivision failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to set division for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	slog.Debug("SQLiteStore SetDivision succeeded", "phone", phone, "division", division)
	return nil
}

func (s *SQLiteStore) GetDivision(phone string) (models.Division, error) {
	var division sql.NullString
	err := s.db.QueryRow(`SELECT division FROM users WHERE phone_number = ?`, phone).Scan(&division)
	if err == sql.ErrNoRows {
		return models.DivisionUnassigned, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetDivision failed", "error", err, "phone", phone)
		return models.DivisionUnassigned, fmt.Errorf("failed to get division for %s: %w", phone, err)
	}
	return models.Division(division.String), nil
}

func (s *SQLiteStore) SetUserName(phone, name string) error {
	res, err := s.db.Exec(`UPDATE users SET name = ? WHERE phone_number = ?`, nilIfEmpty(name), phone)
	if err != nil {
		slog.Error("SQLiteStore SetUserName failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to set name for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveMessage(phone, body string, msgType models.EventType, direction models.MessageDirection) error {
	_, err := s.db.Exec(`INSERT INTO messages (phone_number, message_text, message_type, direction) VALUES (?, ?, ?, ?)`,
		phone, body, string(msgType), string(direction))
	if err != nil {
		slog.Error("SQLiteStore SaveMessage failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to save message for %s: %w", phone, err)
	}
	if direction == models.DirectionInbound {
		if _, err := s.db.Exec(`UPDATE users SET last_interaction = CURRENT_TIMESTAMP WHERE phone_number = ?`, phone); err != nil {
			slog.Error("SQLiteStore SaveMessage last_interaction update failed", "error", err, "phone", phone)
		}
	}
	slog.Debug("SQLiteStore SaveMessage succeeded", "phone", phone, "direction", direction)
	return nil
}

func (s *SQLiteStore) GetHistory(phone string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, phone_number, message_text, message_type, direction, created_at FROM messages WHERE phone_number = ? ORDER BY id DESC LIMIT ?`, phone, limit)
	if err != nil {
		slog.Error("SQLiteStore GetHistory query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query history for %s: %w", phone, err)
	}
	defer rows.Close()

	var history []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.PhoneNumber, &m.Body, &m.Type, &m.Direction, &m.CreatedAt); err != nil {
			slog.Error("SQLiteStore GetHistory scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetHistory rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	// Fetched newest-first, returned oldest-first.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	slog.Debug("SQLiteStore GetHistory succeeded", "phone", phone, "count", len(history))
	return history, nil
}

func (s *SQLiteStore) SaveLeadAnalysis(analysis *models.LeadAnalysis) error {
	if err := analysis.Validate(); err != nil {
		return err
	}
	projectInfo, err := marshalProjectInfo(analysis.ProjectInfo)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO lead_analysis (phone_number, lead_score, lead_type, division, is_qualified, project_info, summary, next_action, notified) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		analysis.PhoneNumber, analysis.LeadScore, nilIfEmpty(string(analysis.LeadType)), nilIfEmpty(string(analysis.Division)),
		analysis.IsQualified, projectInfo, nilIfEmpty(analysis.Summary), nilIfEmpty(analysis.NextAction), analysis.Notified)
	if err != nil {
		slog.Error("SQLiteStore SaveLeadAnalysis failed", "error", err, "phone", analysis.PhoneNumber)
		return fmt.Errorf("failed to save lead analysis for %s: %w", analysis.PhoneNumber, err)
	}
	slog.Debug("SQLiteStore SaveLeadAnalysis succeeded", "phone", analysis.PhoneNumber, "score", analysis.LeadScore)
	return nil
}

func (s *SQLiteStore) GetLeadHistory(phone string, limit int) ([]models.LeadAnalysis, error) {
	rows, err := s.db.Query(`SELECT id, phone_number, lead_score, lead_type, division, is_qualified, project_info, summary, next_action, notified, created_at FROM lead_analysis WHERE phone_number = ? ORDER BY id DESC LIMIT ?`, phone, limit)
	if err != nil {
		slog.Error("SQLiteStore GetLeadHistory query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query lead history for %s: %w", phone, err)
	}
	defer rows.Close()

	var leads []models.LeadAnalysis
	for rows.Next() {
		la, err := scanLeadAnalysis(rows)
		if err != nil {
			slog.Error("SQLiteStore GetLeadHistory scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, la)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetLeadHistory rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}

func (s *SQLiteStore) MarkInactiveBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE users SET state = 'inactive' WHERE state = 'active' AND last_interaction < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore MarkInactiveBefore failed", "error", err)
		return 0, fmt.Errorf("failed to mark inactive users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inactive users: %w", err)
	}
	slog.Debug("SQLiteStore MarkInactiveBefore succeeded", "count", n)
	return n, nil
}

func (s *SQLiteStore) ReactivateUser(phone string) error {
	res, err := s.db.Exec(`UPDATE users SET state = 'active', last_interaction = CURRENT_TIMESTAMP WHERE phone_number = ?`, phone)
	if err != nil {
		slog.Error("SQLiteStore ReactivateUser failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to reactivate user %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	slog.Debug("SQLiteStore ReactivateUser succeeded", "phone", phone)
	return nil
}

func (s *SQLiteStore) GetStatistics() (*models.Statistics, error) {
	var stats models.Statistics
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users`).Scan(&stats.TotalUsers); err != nil {
		slog.Error("SQLiteStore GetStatistics users count failed", "error", err)
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE DATE(last_interaction) = DATE('now')`).Scan(&stats.ActiveToday); err != nil {
		slog.Error("SQLiteStore GetStatistics active count failed", "error", err)
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM messages`).Scan(&stats.TotalMessages); err != nil {
		slog.Error("SQLiteStore GetStatistics messages count failed", "error", err)
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	return &stats, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
