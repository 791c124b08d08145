package store

import (
	"sync"
	"time"

	"github.com/jusunglee/commute-go/internal/models"
)

// maxHistory bounds the number of trigger results kept in memory
const maxHistory = 50

// Store manages in-memory phone location and trigger state
type Store struct {
	mu         sync.RWMutex
	location   models.Location
	hasLoc     bool
	triggers   []models.TriggerResult
	lastUpdate time.Time
	now        func() time.Time
}

// NewStore creates a new store instance
func NewStore() *Store {
	return &Store{
		triggers: []models.TriggerResult{},
		now:      time.Now,
	}
}

// SaveLocation records the latest phone location. A zero timestamp is
// replaced with the current time.
func (s *Store) SaveLocation(loc models.Location) models.Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loc.Timestamp.IsZero() {
		loc.Timestamp = s.now()
	}
	s.location = loc
	s.hasLoc = true
	s.lastUpdate = s.now()
	return loc
}

// Location returns the last saved location
func (s *Store) Location() (models.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location, s.hasLoc
}

// SaveTrigger appends a trigger result, dropping the oldest once the
// history is full
func (s *Store) SaveTrigger(r models.TriggerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.triggers = append(s.triggers, r)
	if len(s.triggers) > maxHistory {
		s.triggers = s.triggers[len(s.triggers)-maxHistory:]
	}
	s.lastUpdate = s.now()
}

// LastTrigger returns the most recent trigger result
func (s *Store) LastTrigger() (models.TriggerResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.triggers) == 0 {
		return models.TriggerResult{}, false
	}
	return s.triggers[len(s.triggers)-1], true
}

// Triggers returns the stored results, newest first
func (s *Store) Triggers() []models.TriggerResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.TriggerResult, len(s.triggers))
	for i, r := range s.triggers {
		result[len(s.triggers)-1-i] = r
	}
	return result
}

// GetLastUpdate returns the last update time
func (s *Store) GetLastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}
