package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"craftfolio/analytics/models"
)

// MemoryStore is an in-process EventStore used by tests and local runs
// without a ClickHouse instance. Appends never fail; queries return copies.
type MemoryStore struct {
	mu     sync.RWMutex
	events []models.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, event *models.Event) (string, error) {
	if err := event.Validate(); err != nil {
		return "", err
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}

	s.mu.Lock()
	s.events = append(s.events, *event)
	s.mu.Unlock()
	return event.EventID, nil
}

func (s *MemoryStore) AppendBatch(ctx context.Context, events []models.Event) error {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	for i := range events {
		if events[i].EventID == "" {
			events[i].EventID = uuid.New().String()
		}
		s.events = append(s.events, events[i])
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []models.Event
	for _, e := range s.events {
		if e.Timestamp.Before(filter.Start) || !e.Timestamp.Before(filter.End) {
			continue
		}
		if !filter.matchesName(e.Name) {
			continue
		}
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		results = append(results, e)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	for _, e := range s.events {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}

// Len reports how many events are stored. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
