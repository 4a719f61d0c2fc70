package tracker

import (
	"sort"
	"time"

	"craftfolio/analytics/config"
	"craftfolio/analytics/models"
)

// ReplaySessions reconstructs session aggregates from a raw event stream,
// applying the same state-machine rules as the live tracker. It is a pure
// function of its inputs, which is what makes report generation idempotent:
// the same events always produce the same sessions.
//
// A session survives gaps up to the idle timeout plus the grace period,
// exactly as the live sweeper keeps an Idle session reopenable until then.
//
// asOf is the observation time, normally the end of the aggregation window.
// A session whose last activity is within idleTimeout+grace of asOf is left
// open (no end time, bounce unsettled); everything older is closed.
func ReplaySessions(events []models.Event, cfg config.SessionConfig, asOf time.Time) []models.Session {
	closeAfter := cfg.IdleTimeout + cfg.GracePeriod

	grouped := make(map[string][]models.Event)
	order := make([]string, 0)
	for _, e := range events {
		if _, ok := grouped[e.SessionID]; !ok {
			order = append(order, e.SessionID)
		}
		grouped[e.SessionID] = append(grouped[e.SessionID], e)
	}
	sort.Strings(order)

	sessions := make([]models.Session, 0, len(order))
	for _, id := range order {
		stream := grouped[id]
		sort.SliceStable(stream, func(i, j int) bool {
			return stream[i].Timestamp.Before(stream[j].Timestamp)
		})

		s := newSession(&stream[0])
		applyEvent(&s, &stream[0])
		ended := stream[0].Name == models.EventSessionEnd

		for i := 1; i < len(stream); i++ {
			if ended {
				break
			}
			e := &stream[i]
			// A gap past the idle timeout and grace period closes the
			// session; the remainder of this id's events belongs to no open
			// session.
			if e.Timestamp.Sub(s.LastActivity) > closeAfter {
				ended = true
				break
			}
			applyEvent(&s, e)
			if e.Name == models.EventSessionEnd {
				ended = true
			}
		}

		switch {
		case ended || asOf.Sub(s.LastActivity) > closeAfter:
			finalizeSession(&s, s.LastActivity)
		case asOf.Sub(s.LastActivity) > cfg.IdleTimeout:
			s.State = models.SessionIdle
		}
		sessions = append(sessions, s)
	}
	return sessions
}
