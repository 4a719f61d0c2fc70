package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"craftfolio/analytics/database"
	"craftfolio/analytics/models"
)

// ClickHouseStore persists events in the analytics_events table. Batch
// inserts keep the write path O(1) amortized per event; ClickHouse handles
// concurrent writers without a table lock.
type ClickHouseStore struct {
	DB *database.ClickHouseClient
}

func NewClickHouseStore(chClient *database.ClickHouseClient) *ClickHouseStore {
	return &ClickHouseStore{DB: chClient}
}

func (s *ClickHouseStore) Append(ctx context.Context, event *models.Event) (string, error) {
	if err := event.Validate(); err != nil {
		return "", err
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if err := s.AppendBatch(ctx, []models.Event{*event}); err != nil {
		return "", err
	}
	return event.EventID, nil
}

func (s *ClickHouseStore) AppendBatch(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO analytics_events (
			event_id, event_name, properties, session_id, user_id, timestamp,
			page_path, referrer, user_agent, ip_address
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w: %w", err, models.ErrStoreUnavailable)
	}

	for i := range events {
		event := &events[i]
		if event.EventID == "" {
			event.EventID = uuid.New().String()
		}
		props, err := json.Marshal(event.Properties)
		if err != nil {
			log.Error().Err(err).Str("event_id", event.EventID).Msg("failed to marshal event properties")
			props = []byte("{}")
		}
		if err := batch.Append(
			event.EventID,
			event.Name,
			string(props),
			event.SessionID,
			event.UserID,
			event.Timestamp,
			event.PagePath,
			event.Referrer,
			event.UserAgent,
			event.IPAddress,
		); err != nil {
			log.Error().Err(err).Str("event_id", event.EventID).Msg("failed to append event to batch")
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w: %w", err, models.ErrStoreUnavailable)
	}

	log.Debug().Int("count", len(events)).Msg("inserted analytics events")
	return nil
}

func (s *ClickHouseStore) Query(ctx context.Context, filter Filter) ([]models.Event, error) {
	where := []string{"timestamp >= ?", "timestamp < ?"}
	args := []interface{}{filter.Start, filter.End}

	if len(filter.Names) > 0 {
		where = append(where, "event_name IN (?)")
		args = append(args, filter.Names)
	}
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := fmt.Sprintf(`
		SELECT event_id, event_name, properties, session_id, user_id, timestamp,
		       page_path, referrer, user_agent, ip_address
		FROM analytics_events
		WHERE %s
		ORDER BY timestamp ASC
	`, strings.Join(where, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w: %w", err, models.ErrStoreUnavailable)
	}
	defer rows.Close()

	var results []models.Event
	for rows.Next() {
		var (
			event models.Event
			props string
		)
		if err := rows.Scan(
			&event.EventID,
			&event.Name,
			&props,
			&event.SessionID,
			&event.UserID,
			&event.Timestamp,
			&event.PagePath,
			&event.Referrer,
			&event.UserAgent,
			&event.IPAddress,
		); err != nil {
			log.Error().Err(err).Msg("failed to scan event row")
			continue
		}
		if props != "" && props != "null" {
			if err := json.Unmarshal([]byte(props), &event.Properties); err != nil {
				log.Warn().Err(err).Str("event_id", event.EventID).Msg("malformed stored properties")
			}
		}
		results = append(results, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event query: %w: %w", err, models.ErrStoreUnavailable)
	}
	return results, nil
}

// PurgeOlderThan drops raw events past the retention window. Best-effort:
// the caller logs failures and retries on the next schedule tick.
func (s *ClickHouseStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) error {
	err := s.DB.Conn.Exec(ctx, `DELETE FROM analytics_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge events before %s: %w: %w", cutoff.Format(time.RFC3339), err, models.ErrStoreUnavailable)
	}
	return nil
}
