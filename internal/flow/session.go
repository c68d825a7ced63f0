// Package flow implements the per-division form funnels.
//
// Each division defines an ordered list of fields; the engine walks a
// customer through them one message at a time, tolerating up to three
// consecutive invalid answers per field before handing off to a vendor.
package flow

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/arcosum/arcobot/internal/models"
)

// MaxRetries is the ceiling of consecutive invalid answers at one field.
const MaxRetries = 3

// FormSession holds the progress of one customer through a division form.
type FormSession struct {
	Phone      string
	Division   models.Division
	Step       int
	Retries    int
	Confirming bool
	Data       *orderedmap.OrderedMap[string, string]
	UpdatedAt  time.Time
}

// NewFormSession creates a fresh session at the first field.
func NewFormSession(phone string, division models.Division) *FormSession {
	return &FormSession{
		Phone:     phone,
		Division:  division,
		Data:      orderedmap.NewOrderedMap[string, string](),
		UpdatedAt: time.Now(),
	}
}

// Value returns a collected field value, or the empty string.
func (s *FormSession) Value(field string) string {
	v, _ := s.Data.Get(field)
	return v
}

// SessionStore tracks active form sessions by phone.
type SessionStore interface {
	Get(phone string) (*FormSession, bool)
	Put(session *FormSession)
	Delete(phone string)
	ActivePhones() []string
}

// InMemorySessionStore is the default SessionStore.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*FormSession
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]*FormSession)}
}

func (s *InMemorySessionStore) Get(phone string) (*FormSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[phone]
	return sess, ok
}

func (s *InMemorySessionStore) Put(session *FormSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.UpdatedAt = time.Now()
	s.sessions[session.Phone] = session
}

func (s *InMemorySessionStore) Delete(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, phone)
}

func (s *InMemorySessionStore) ActivePhones() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phones := make([]string, 0, len(s.sessions))
	for phone := range s.sessions {
		phones = append(phones, phone)
	}
	return phones
}
