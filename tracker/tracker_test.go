package tracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftfolio/analytics/config"
	"craftfolio/analytics/models"
)

func testConfig() config.SessionConfig {
	return config.SessionConfig{
		IdleTimeout:   30 * time.Minute,
		GracePeriod:   5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

func pageView(sessionID, page string, ts time.Time) *models.Event {
	return &models.Event{
		EventID:   uuid.New().String(),
		Name:      models.EventPageView,
		SessionID: sessionID,
		Timestamp: ts,
		PagePath:  page,
	}
}

func TestFirstEventCreatesActiveSession(t *testing.T) {
	tr := New(testConfig())
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	tr.OnEvent(pageView("s1", "/home", start))

	s, ok := tr.GetSession("s1")
	require.True(t, ok)
	assert.Equal(t, models.SessionActive, s.State)
	assert.Equal(t, start, s.StartTime)
	assert.Equal(t, "/home", s.LandingPage)
	assert.Equal(t, 1, s.PageViewCount)
	assert.True(t, s.IsActive)
}

func TestExplicitSessionStartOpensSession(t *testing.T) {
	tr := New(testConfig())
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// The snippet emits session_start before the first page view. It opens
	// the session and carries the referrer, but is not a page view itself.
	tr.OnEvent(&models.Event{
		EventID: uuid.New().String(), Name: models.EventSessionStart,
		SessionID: "s1", Timestamp: start,
		Referrer: "https://www.google.com/search",
	})

	s, ok := tr.GetSession("s1")
	require.True(t, ok)
	assert.Equal(t, models.SessionActive, s.State)
	assert.Equal(t, start, s.StartTime)
	assert.Equal(t, "https://www.google.com/search", s.Referrer)
	assert.Equal(t, 0, s.PageViewCount)

	tr.OnEvent(pageView("s1", "/home", start.Add(time.Second)))
	s, _ = tr.GetSession("s1")
	assert.Equal(t, start, s.StartTime, "startTime stays at session_start")
	assert.Equal(t, "/home", s.LandingPage)
}

func TestSingleStartTimeAndPageViewCount(t *testing.T) {
	tr := New(testConfig())
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	tr.OnEvent(pageView("s1", "/home", start))
	tr.OnEvent(pageView("s1", "/about", start.Add(time.Minute)))
	tr.OnEvent(&models.Event{
		EventID: uuid.New().String(), Name: "click",
		SessionID: "s1", Timestamp: start.Add(2 * time.Minute),
	})
	tr.OnEvent(pageView("s1", "/pricing", start.Add(3*time.Minute)))

	s, _ := tr.GetSession("s1")
	assert.Equal(t, start, s.StartTime, "startTime must stay the first event's timestamp")
	assert.Equal(t, 3, s.PageViewCount)
	assert.Equal(t, 4, s.EventCount)
	assert.Equal(t, start.Add(3*time.Minute), s.LastActivity)
}

func TestOnEventIdempotentPerEventID(t *testing.T) {
	tr := New(testConfig())
	start := time.Now().UTC()

	e := pageView("s1", "/home", start)
	tr.OnEvent(e)
	tr.OnEvent(e)
	tr.OnEvent(e)

	s, _ := tr.GetSession("s1")
	assert.Equal(t, 1, s.PageViewCount)
	assert.Equal(t, 1, s.EventCount)
}

func TestIdleThenEndedViaSweep(t *testing.T) {
	cfg := testConfig()
	tr := New(cfg)
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	tr.OnEvent(pageView("s1", "/home", start))

	// Past the idle timeout: Active -> Idle.
	tr.Sweep(start.Add(cfg.IdleTimeout + time.Minute))
	s, _ := tr.GetSession("s1")
	assert.Equal(t, models.SessionIdle, s.State)

	// A new event moves Idle back to Active.
	tr.OnEvent(pageView("s1", "/pricing", start.Add(cfg.IdleTimeout+2*time.Minute)))
	s, _ = tr.GetSession("s1")
	assert.Equal(t, models.SessionActive, s.State)

	// Idle again, then past the grace period: closed.
	last := s.LastActivity
	tr.Sweep(last.Add(cfg.IdleTimeout + time.Minute))
	tr.Sweep(last.Add(cfg.IdleTimeout + cfg.GracePeriod + time.Minute))

	s, _ = tr.GetSession("s1")
	assert.Equal(t, models.SessionEnded, s.State)
	require.NotNil(t, s.EndTime)
	assert.Equal(t, last, *s.EndTime, "endTime must equal lastActivity")
	assert.Equal(t, "/pricing", s.ExitPage)
	assert.Equal(t, last.Sub(start).Seconds(), s.Duration)
}

func TestEndedIsTerminalAndLateEventIsAnomaly(t *testing.T) {
	cfg := testConfig()
	tr := New(cfg)
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	tr.OnEvent(pageView("s1", "/home", start))
	tr.Sweep(start.Add(cfg.IdleTimeout + time.Minute))
	tr.Sweep(start.Add(cfg.IdleTimeout + cfg.GracePeriod + 2*time.Minute))

	s, _ := tr.GetSession("s1")
	require.Equal(t, models.SessionEnded, s.State)

	var hooked bool
	tr.SetAnomalyHook(func() { hooked = true })
	tr.OnEvent(pageView("s1", "/late", start.Add(2*time.Hour)))

	s, _ = tr.GetSession("s1")
	assert.Equal(t, models.SessionEnded, s.State, "late event must not reopen an ended session")
	assert.Equal(t, 1, s.PageViewCount)
	assert.EqualValues(t, 1, tr.Anomalies())
	assert.True(t, hooked)
}

func TestExplicitSessionEnd(t *testing.T) {
	tr := New(testConfig())
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	tr.OnEvent(pageView("s1", "/home", start))
	tr.OnEvent(&models.Event{
		EventID: uuid.New().String(), Name: models.EventSessionEnd,
		SessionID: "s1", Timestamp: start.Add(time.Minute),
	})

	s, _ := tr.GetSession("s1")
	assert.Equal(t, models.SessionEnded, s.State)
	assert.True(t, s.Bounced, "one page view then end is a bounce")
}

func TestBounceDetermination(t *testing.T) {
	cfg := testConfig()
	tr := New(cfg)
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// One page view, then idle past timeout + grace: bounced.
	tr.OnEvent(pageView("b1", "/home", start))
	// Two page views on the other session: not a bounce.
	tr.OnEvent(pageView("b2", "/home", start))
	tr.OnEvent(pageView("b2", "/pricing", start.Add(time.Minute)))

	tr.Sweep(start.Add(cfg.IdleTimeout + 2*time.Minute))
	tr.Sweep(start.Add(cfg.IdleTimeout + cfg.GracePeriod + 3*time.Minute))

	s1, _ := tr.GetSession("b1")
	s2, _ := tr.GetSession("b2")
	assert.True(t, s1.Bounced)
	assert.False(t, s2.Bounced)

	stats := tr.Stats(start.Add(-time.Hour), start.Add(time.Hour))
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 0.5, stats.BounceRate)
	assert.Equal(t, 1.5, stats.AvgPageViews)
}

func TestActiveCount(t *testing.T) {
	tr := New(testConfig())
	now := time.Now().UTC()

	tr.OnEvent(pageView("a1", "/", now))
	tr.OnEvent(pageView("a2", "/", now.Add(-2*time.Minute)))
	tr.OnEvent(pageView("old", "/", now.Add(-2*time.Hour)))

	assert.Equal(t, 2, tr.ActiveCount(5*time.Minute))
}

func TestConcurrentDistinctSessions(t *testing.T) {
	tr := New(testConfig())
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			for j := 0; j < 10; j++ {
				tr.OnEvent(pageView(id, "/p", now.Add(time.Duration(j)*time.Second)))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 64; i++ {
		s, ok := tr.GetSession(fmt.Sprintf("s%d", i))
		require.True(t, ok)
		assert.Equal(t, 10, s.PageViewCount)
	}
}

func TestTrackerLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.SweepInterval = 10 * time.Millisecond
	tr := New(cfg)
	tr.Start()
	tr.OnEvent(pageView("s1", "/", time.Now().UTC()))
	tr.Stop()
}
