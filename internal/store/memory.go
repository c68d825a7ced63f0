package store

import (
	"sort"
	"sync"
	"time"

	"github.com/arcosum/arcobot/internal/models"
)

// InMemoryStore keeps all data in process memory. It is used in tests
// and when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	messages []models.Message
	leads    []models.LeadAnalysis
	nextID   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]*models.User), nextID: 1}
}

func (s *InMemoryStore) UserExists(phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[phone]
	return ok, nil
}

func (s *InMemoryStore) CreateUser(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[phone]; ok {
		return nil
	}
	now := time.Now()
	s.users[phone] = &models.User{
		ID:              s.nextID,
		PhoneNumber:     phone,
		State:           models.UserStateActive,
		CreatedAt:       now,
		LastInteraction: now,
	}
	s.nextID++
	return nil
}

func (s *InMemoryStore) GetUser(phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[phone]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) SetDivision(phone string, division models.Division) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[phone]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Division = division
	return nil
}

func (s *InMemoryStore) GetDivision(phone string) (models.Division, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[phone]
	if !ok {
		return models.DivisionUnassigned, models.ErrUserNotFound
	}
	return u.Division, nil
}

func (s *InMemoryStore) SetUserName(phone, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[phone]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Name = name
	return nil
}

func (s *InMemoryStore) SaveMessage(phone, body string, msgType models.EventType, direction models.MessageDirection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, models.Message{
		ID:          int64(len(s.messages) + 1),
		PhoneNumber: phone,
		Body:        body,
		Type:        msgType,
		Direction:   direction,
		CreatedAt:   time.Now(),
	})
	if u, ok := s.users[phone]; ok && direction == models.DirectionInbound {
		u.LastInteraction = time.Now()
	}
	return nil
}

func (s *InMemoryStore) GetHistory(phone string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if s.messages[i].PhoneNumber == phone {
			out = append(out, s.messages[i])
		}
	}
	// Newest-first scan, returned oldest-first.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) SaveLeadAnalysis(analysis *models.LeadAnalysis) error {
	if err := analysis.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *analysis
	cp.ID = int64(len(s.leads) + 1)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.leads = append(s.leads, cp)
	return nil
}

func (s *InMemoryStore) GetLeadHistory(phone string, limit int) ([]models.LeadAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LeadAnalysis
	for i := len(s.leads) - 1; i >= 0 && len(out) < limit; i-- {
		if s.leads[i].PhoneNumber == phone {
			out = append(out, s.leads[i])
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkInactiveBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if u.State == models.UserStateActive && u.LastInteraction.Before(cutoff) {
			u.State = models.UserStateInactive
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ReactivateUser(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[phone]
	if !ok {
		return models.ErrUserNotFound
	}
	u.State = models.UserStateActive
	u.LastInteraction = time.Now()
	return nil
}

func (s *InMemoryStore) GetStatistics() (*models.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.Statistics{
		TotalUsers:    int64(len(s.users)),
		TotalMessages: int64(len(s.messages)),
	}
	today := time.Now().Truncate(24 * time.Hour)
	for _, u := range s.users {
		if !u.LastInteraction.Before(today) {
			stats.ActiveToday++
		}
	}
	return stats, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
