package store

import (
	"context"
	"time"

	"craftfolio/analytics/models"
)

// Filter bounds an event query. Start/End form a half-open [Start, End)
// window; the remaining fields are optional narrowing criteria.
type Filter struct {
	Start     time.Time
	End       time.Time
	Names     []string
	SessionID string
	UserID    string
	Limit     int
}

func (f Filter) matchesName(name string) bool {
	if len(f.Names) == 0 {
		return true
	}
	for _, n := range f.Names {
		if n == name {
			return true
		}
	}
	return false
}

// EventStore is the durable append-only record of raw events. Appends are
// safe under concurrent writers; queries are restartable and bounded by the
// filter's time range.
type EventStore interface {
	Append(ctx context.Context, event *models.Event) (string, error)
	AppendBatch(ctx context.Context, events []models.Event) error
	Query(ctx context.Context, filter Filter) ([]models.Event, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) error
}
