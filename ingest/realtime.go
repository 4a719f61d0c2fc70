package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"craftfolio/analytics/models"
)

const (
	recentEventsKey = "analytics:recent_events"
	recentEventsTTL = time.Hour
)

// Realtime keeps a short trailing window of events in Redis for the
// dashboard's live view. Best-effort: a Redis failure is logged, never
// surfaced to the producer.
type Realtime struct {
	rdb  *redis.Client
	keep int64
}

func NewRealtime(rdb *redis.Client, keep int) *Realtime {
	if keep <= 0 {
		keep = 100
	}
	return &Realtime{rdb: rdb, keep: int64(keep)}
}

// Publish pushes events onto the recent-events list, newest first, trimmed
// to the configured depth.
func (r *Realtime) Publish(ctx context.Context, events []models.Event) {
	pipe := r.rdb.Pipeline()
	for i := range events {
		payload, err := json.Marshal(&events[i])
		if err != nil {
			continue
		}
		pipe.LPush(ctx, recentEventsKey, payload)
	}
	pipe.LTrim(ctx, recentEventsKey, 0, r.keep-1)
	pipe.Expire(ctx, recentEventsKey, recentEventsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to publish realtime events")
	}
}

// Recent returns up to n of the most recent events, newest first.
func (r *Realtime) Recent(ctx context.Context, n int) ([]models.Event, error) {
	if n <= 0 || int64(n) > r.keep {
		n = int(r.keep)
	}
	raw, err := r.rdb.LRange(ctx, recentEventsKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(raw))
	for _, item := range raw {
		var e models.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			log.Warn().Err(err).Msg("malformed realtime event skipped")
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
