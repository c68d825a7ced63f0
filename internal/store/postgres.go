// Package store provides storage backends for Arcobot.
//
// This file implements a PostgreSQL-backed store for users, messages and leads.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/arcosum/arcobot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening PostgreSQL database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgreSQL ping successful")

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) UserExists(phone string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE phone_number = $1`, phone).Scan(&n)
	if err != nil {
		slog.Error("PostgresStore UserExists failed", "error", err, "phone", phone)
		return false, fmt.Errorf("failed to check user %s: %w", phone, err)
	}
	return n > 0, nil
}

func (s *PostgresStore) CreateUser(phone string) error {
	_, err := s.db.Exec(`INSERT INTO users (phone_number) VALUES ($1) ON CONFLICT (phone_number) DO NOTHING`, phone)
	if err != nil {
		slog.Error("PostgresStore CreateUser failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to create user %s: %w", phone, err)
	}
	slog.Debug("PostgresStore CreateUser succeeded", "phone", phone)
	return nil
}

func (s *PostgresStore) GetUser(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, phone_number, name, email, company, state, division, created_at, last_interaction FROM users WHERE phone_number = $1`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get user %s: %w", phone, err)
	}
	return u, nil
}

func (s *PostgresStore) SetDivision(phone string, division models.Division) error {
	res, err := s.db.Exec(`UPDATE users SET division = $1 WHERE phone_number = $2`, nilIfEmpty(string(division)), phone)
	if err != nil {
		slog.Error("PostgresStore SetDivision failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to set division for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	slog.Debug("PostgresStore SetDivision succeeded", "phone", phone, "division", division)
	return nil
}

func (s *PostgresStore) GetDivision(phone string) (models.Division, error) {
	var division sql.NullString
	err := s.db.QueryRow(`SELECT division FROM users WHERE phone_number = $1`, phone).Scan(&division)
	if err == sql.ErrNoRows {
		return models.DivisionUnassigned, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetDivision failed", "error", err, "phone", phone)
		return models.DivisionUnassigned, fmt.Errorf("failed to get division for %s: %w", phone, err)
	}
	return models.Division(division.String), nil
}

func (s *PostgresStore) SetUserName(phone, name string) error {
	res, err := s.db.Exec(`UPDATE users SET name = $1 WHERE phone_number = $2`, nilIfEmpty(name), phone)
	if err != nil {
		slog.Error("PostgresStore SetUserName failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to set name for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) SaveMessage(phone, body string, msgType models.EventType, direction models.MessageDirection) error {
	_, err := s.db.Exec(`INSERT INTO messages (phone_number, message_text, message_type, direction) VALUES ($1, $2, $3, $4)`,
		phone, body, string(msgType), string(direction))
	if err != nil {
		slog.Error("PostgresStore SaveMessage failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to save message for %s: %w", phone, err)
	}
	if direction == models.DirectionInbound {
		if _, err := s.db.Exec(`UPDATE users SET last_interaction = NOW() WHERE phone_number = $1`, phone); err != nil {
			slog.Error("PostgresStore SaveMessage last_interaction update failed", "error", err, "phone", phone)
		}
	}
	slog.Debug("PostgresStore SaveMessage succeeded", "phone", phone, "direction", direction)
	return nil
}

func (s *PostgresStore) GetHistory(phone string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, phone_number, message_text, message_type, direction, created_at FROM messages WHERE phone_number = $1 ORDER BY id DESC LIMIT $2`, phone, limit)
	if err != nil {
		slog.Error("PostgresStore GetHistory query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query history for %s: %w", phone, err)
	}
	defer rows.Close()

	var history []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.PhoneNumber, &m.Body, &m.Type, &m.Direction, &m.CreatedAt); err != nil {
			slog.Error("PostgresStore GetHistory scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetHistory rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	slog.Debug("PostgresStore GetHistory succeeded", "phone", phone, "count", len(history))
	return history, nil
}

func (s *PostgresStore) SaveLeadAnalysis(analysis *models.LeadAnalysis) error {
	if err := analysis.Validate(); err != nil {
		return err
	}
	projectInfo, err := marshalProjectInfo(analysis.ProjectInfo)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO lead_analysis (phone_number, lead_score, lead_type, division, is_qualified, project_info, summary, next_action, notified) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		analysis.PhoneNumber, analysis.LeadScore, nilIfEmpty(string(analysis.LeadType)), nilIfEmpty(string(analysis.Division)),
		analysis.IsQualified, projectInfo, nilIfEmpty(analysis.Summary), nilIfEmpty(analysis.NextAction), analysis.Notified)
	if err != nil {
		slog.Error("PostgresStore SaveLeadAnalysis failed", "error", err, "phone", analysis.PhoneNumber)
		return fmt.Errorf("failed to save lead analysis for %s: %w", analysis.PhoneNumber, err)
	}
	slog.Debug("PostgresStore SaveLeadAnalysis succeeded", "phone", analysis.PhoneNumber, "score", analysis.LeadScore)
	return nil
}

func (s *PostgresStore) GetLeadHistory(phone string, limit int) ([]models.LeadAnalysis, error) {
	rows, err := s.db.Query(`SELECT id, phone_number, lead_score, lead_type, division, is_qualified, project_info, summary, next_action, notified, created_at FROM lead_analysis WHERE phone_number = $1 ORDER BY id DESC LIMIT $2`, phone, limit)
	if err != nil {
		slog.Error("PostgresStore GetLeadHistory query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query lead history for %s: %w", phone, err)
	}
	defer rows.Close()

	var leads []models.LeadAnalysis
	for rows.Next() {
		la, err := scanLeadAnalysis(rows)
		if err != nil {
			slog.Error("PostgresStore GetLeadHistory scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, la)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetLeadHistory rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}

func (s *PostgresStore) MarkInactiveBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE users SET state = 'inactive' WHERE state = 'active' AND last_interaction < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore MarkInactiveBefore failed", "error", err)
		return 0, fmt.Errorf("failed to mark inactive users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inactive users: %w", err)
	}
	slog.Debug("PostgresStore MarkInactiveBefore succeeded", "count", n)
	return n, nil
}

func (s *PostgresStore) ReactivateUser(phone string) error {
	res, err := s.db.Exec(`UPDATE users SET state = 'active', last_interaction = NOW() WHERE phone_number = $1`, phone)
	if err != nil {
		slog.Error("PostgresStore ReactivateUser failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to reactivate user %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	slog.Debug("PostgresStore ReactivateUser succeeded", "phone", phone)
	return nil
}

func (s *PostgresStore) GetStatistics() (*models.Statistics, error) {
	var stats models.Statistics
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users`).Scan(&stats.TotalUsers); err != nil {
		slog.Error("PostgresStore GetStatistics users count failed", "error", err)
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE last_interaction::date = CURRENT_DATE`).Scan(&stats.ActiveToday); err != nil {
		slog.Error("PostgresStore GetStatistics active count failed", "error", err)
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM messages`).Scan(&stats.TotalMessages); err != nil {
		slog.Error("PostgresStore GetStatistics messages count failed", "error", err)
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	return &stats, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
