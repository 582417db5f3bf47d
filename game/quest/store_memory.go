package quest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/trailmate/server/model"
)

// MemoryStore keeps ledgers in process memory, keyed by user then quest id.
// Its JSON form round-trips every persisted field.
type MemoryStore struct {
	mu       sync.RWMutex
	progress map[string]map[string]*model.UserQuestProgress
	points   map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress: make(map[string]map[string]*model.UserQuestProgress),
		points:   make(map[string]int),
	}
}

func (s *MemoryStore) LoadUser(_ context.Context, userID string) (*UserLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, hasRows := s.progress[userID]
	pts, hasPoints := s.points[userID]
	if !hasRows && !hasPoints {
		return nil, nil
	}
	l := newUserLedger(userID)
	l.Points = pts
	for id, row := range rows {
		l.Rows[id] = row.Clone()
	}
	return l, nil
}

func (s *MemoryStore) SaveUser(_ context.Context, l *UserLedger, questIDs []string, savePoints bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.progress[l.UserID]
	if rows == nil {
		rows = make(map[string]*model.UserQuestProgress)
		s.progress[l.UserID] = rows
	}
	for _, id := range questIDs {
		if row, ok := l.Rows[id]; ok {
			rows[id] = row.Clone()
		}
	}
	if savePoints {
		s.points[l.UserID] = l.Points
	}
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, userID)
	delete(s.points, userID)
	return nil
}

type memorySnapshot struct {
	Progress map[string]map[string]*model.UserQuestProgress `json:"progress"`
	Points   map[string]int                                 `json:"points"`
}

// MarshalJSON encodes the whole store.
func (s *MemoryStore) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(memorySnapshot{Progress: s.progress, Points: s.points})
}

// UnmarshalJSON replaces the store's contents with a snapshot.
func (s *MemoryStore) UnmarshalJSON(data []byte) error {
	var snap memorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Progress == nil {
		snap.Progress = make(map[string]map[string]*model.UserQuestProgress)
	}
	if snap.Points == nil {
		snap.Points = make(map[string]int)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = snap.Progress
	s.points = snap.Points
	return nil
}
