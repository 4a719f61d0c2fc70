package tracker

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"craftfolio/analytics/config"
	"craftfolio/analytics/models"
)

const (
	shardCount = 32
	// seenCap bounds the per-session dedup window for idempotent OnEvent.
	seenCap = 256
)

type entry struct {
	session  models.Session
	seen     map[string]struct{}
	seenFIFO []string
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

// Tracker maintains per-visitor session state derived from the event
// stream. Updates for different session ids proceed independently (sharded
// locks); updates for the same session id serialize on its shard.
//
// Sessions move New -> Active -> Idle -> Ended. Ended is terminal: a late
// event for an ended session is logged as an anomaly and does not reopen it.
type Tracker struct {
	cfg    config.SessionConfig
	shards [shardCount]*shard

	closedMu sync.RWMutex
	closed   []models.Session

	anomalyMu sync.Mutex
	anomalies int64
	onAnomaly func()

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds a tracker. Call Start to run the idle sweeper and Stop to shut
// it down; multiple independent instances can coexist.
func New(cfg config.SessionConfig) *Tracker {
	t := &Tracker{
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	for i := range t.shards {
		t.shards[i] = &shard{sessions: make(map[string]*entry)}
	}
	return t
}

// SetAnomalyHook registers a callback fired on each late-event anomaly.
// Used to bump metrics without coupling the tracker to the registry.
func (t *Tracker) SetAnomalyHook(fn func()) {
	t.onAnomaly = fn
}

// Start launches the background sweeper that ages sessions through Idle
// into Ended.
func (t *Tracker) Start() {
	go func() {
		defer close(t.done)
		interval := t.cfg.SweepInterval
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case now := <-ticker.C:
				t.Sweep(now)
			}
		}
	}()
}

// Stop terminates the sweeper. Idempotent.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *Tracker) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return t.shards[h.Sum32()%shardCount]
}

// OnEvent feeds one event into the state machine. Idempotent per event id:
// a redelivered event leaves the session unchanged.
func (t *Tracker) OnEvent(event *models.Event) {
	sh := t.shardFor(event.SessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	en, ok := sh.sessions[event.SessionID]
	if ok && en.session.State == models.SessionEnded {
		t.recordAnomaly(event)
		return
	}

	if !ok {
		en = &entry{
			session: newSession(event),
			seen:    make(map[string]struct{}),
		}
		sh.sessions[event.SessionID] = en
	}

	if event.EventID != "" {
		if _, dup := en.seen[event.EventID]; dup {
			return
		}
		en.seen[event.EventID] = struct{}{}
		en.seenFIFO = append(en.seenFIFO, event.EventID)
		if len(en.seenFIFO) > seenCap {
			delete(en.seen, en.seenFIFO[0])
			en.seenFIFO = en.seenFIFO[1:]
		}
	}

	applyEvent(&en.session, event)

	if event.Name == models.EventSessionEnd {
		closed := en.session
		finalizeSession(&closed, closed.LastActivity)
		en.session = closed
		t.archive(closed)
	}
}

func (t *Tracker) recordAnomaly(event *models.Event) {
	t.anomalyMu.Lock()
	t.anomalies++
	t.anomalyMu.Unlock()
	if t.onAnomaly != nil {
		t.onAnomaly()
	}
	log.Warn().
		Str("session_id", event.SessionID).
		Str("event", event.Name).
		Time("timestamp", event.Timestamp).
		Msg("late event for ended session discarded")
}

// Anomalies reports how many late events were discarded.
func (t *Tracker) Anomalies() int64 {
	t.anomalyMu.Lock()
	defer t.anomalyMu.Unlock()
	return t.anomalies
}

// Sweep transitions sessions whose idle clocks have run out. Active
// sessions past the idle timeout become Idle; Idle sessions past the grace
// period are closed into Ended.
func (t *Tracker) Sweep(now time.Time) {
	for _, sh := range t.shards {
		sh.mu.Lock()
		for id, en := range sh.sessions {
			s := &en.session
			idleFor := now.Sub(s.LastActivity)
			switch s.State {
			case models.SessionActive:
				if idleFor > t.cfg.IdleTimeout {
					s.State = models.SessionIdle
				}
			case models.SessionIdle:
				if idleFor > t.cfg.IdleTimeout+t.cfg.GracePeriod {
					closed := *s
					finalizeSession(&closed, closed.LastActivity)
					en.session = closed
					t.archive(closed)
				}
			case models.SessionEnded:
				// Tombstones stick around to catch late events, then age out.
				if s.EndTime != nil && now.Sub(*s.EndTime) > t.cfg.IdleTimeout+t.cfg.GracePeriod {
					delete(sh.sessions, id)
				}
			}
		}
		sh.mu.Unlock()
	}
}

func (t *Tracker) archive(s models.Session) {
	t.closedMu.Lock()
	t.closed = append(t.closed, s)
	t.closedMu.Unlock()
	log.Debug().
		Str("session_id", s.SessionID).
		Float64("duration_s", s.Duration).
		Int("page_views", s.PageViewCount).
		Bool("bounced", s.Bounced).
		Msg("session closed")
}

// GetSession returns a copy of the current session state, if present.
func (t *Tracker) GetSession(sessionID string) (models.Session, bool) {
	sh := t.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if en, ok := sh.sessions[sessionID]; ok {
		return en.session, true
	}
	return models.Session{}, false
}

// ActiveCount counts sessions with activity inside the trailing window.
func (t *Tracker) ActiveCount(window time.Duration) int {
	cutoff := time.Now().Add(-window)
	count := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		for _, en := range sh.sessions {
			if en.session.State != models.SessionEnded && en.session.LastActivity.After(cutoff) {
				count++
			}
		}
		sh.mu.Unlock()
	}
	return count
}

// Stats summarizes sessions that started inside [start, end). Bounce rate
// is derived from closed sessions only; open sessions have not settled yet.
func (t *Tracker) Stats(start, end time.Time) models.SessionStats {
	var (
		count, pageViews int
		closedCount      int
		bounced          int
		totalDuration    float64
	)
	window := models.TimeRange{Start: start, End: end}

	t.closedMu.RLock()
	for _, s := range t.closed {
		if !window.Contains(s.StartTime) {
			continue
		}
		count++
		closedCount++
		pageViews += s.PageViewCount
		totalDuration += s.Duration
		if s.Bounced {
			bounced++
		}
	}
	t.closedMu.RUnlock()

	for _, sh := range t.shards {
		sh.mu.Lock()
		for _, en := range sh.sessions {
			s := en.session
			if s.State == models.SessionEnded {
				continue // already archived
			}
			if !window.Contains(s.StartTime) {
				continue
			}
			count++
			pageViews += s.PageViewCount
		}
		sh.mu.Unlock()
	}

	stats := models.SessionStats{Count: count}
	if count > 0 {
		stats.AvgPageViews = float64(pageViews) / float64(count)
	}
	if closedCount > 0 {
		stats.AvgDuration = totalDuration / float64(closedCount)
		stats.BounceRate = float64(bounced) / float64(closedCount)
	}
	return stats
}

// newSession creates a session in Active from its first event.
func newSession(event *models.Event) models.Session {
	s := models.Session{
		SessionID:    event.SessionID,
		UserID:       event.UserID,
		State:        models.SessionActive,
		StartTime:    event.Timestamp,
		LastActivity: event.Timestamp,
		Device:       ClassifyDevice(event.UserAgent),
		Referrer:     event.Referrer,
		IsActive:     true,
	}
	return s
}

// applyEvent folds one event into an open session.
func applyEvent(s *models.Session, event *models.Event) {
	s.State = models.SessionActive
	s.IsActive = true
	if event.Timestamp.After(s.LastActivity) {
		s.LastActivity = event.Timestamp
	}
	s.EventCount++
	if s.UserID == "" && event.UserID != "" {
		s.UserID = event.UserID
	}
	if event.IsPageView() {
		page := event.Page()
		s.PageViewCount++
		if s.LandingPage == "" {
			s.LandingPage = page
		}
		if page != "" {
			s.Pages = append(s.Pages, page)
		}
	}
}

// finalizeSession closes a session: end time is the last activity, duration
// is derived from it, the last page becomes the exit page, and the bounce
// flag settles (a bounce is at most one page view).
func finalizeSession(s *models.Session, endTime time.Time) {
	s.State = models.SessionEnded
	s.IsActive = false
	end := endTime
	s.EndTime = &end
	s.Duration = end.Sub(s.StartTime).Seconds()
	if len(s.Pages) > 0 {
		s.ExitPage = s.Pages[len(s.Pages)-1]
	}
	s.Bounced = s.PageViewCount <= 1
}
