package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftfolio/analytics/config"
	"craftfolio/analytics/funnel"
	"craftfolio/analytics/models"
	"craftfolio/analytics/store"
)

const idleTimeout = 30 * time.Minute

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{IdleTimeout: idleTimeout, GracePeriod: 5 * time.Minute}
}

func newTestEngine(s store.EventStore) *Engine {
	return NewEngine(s, funnel.NewAnalyzer(s), config.DefaultAnalyticsConfig(), testSessionConfig())
}

func seedScenario(t *testing.T, s *store.MemoryStore, base time.Time) {
	t.Helper()
	events := []models.Event{
		{
			Name: models.EventPageView, SessionID: "s1", UserID: "u1",
			Timestamp: base, PagePath: "/home",
			Referrer:  "https://www.google.com/search",
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0) Mobile",
			Properties: map[string]interface{}{
				"load_time_ms": 320.0,
			},
		},
		{
			Name: models.EventPageView, SessionID: "s1", UserID: "u1",
			Timestamp: base.Add(5 * time.Second), PagePath: "/pricing",
		},
		{
			Name: models.EventGoalCompleted, SessionID: "s1", UserID: "u1",
			Timestamp:  base.Add(10 * time.Second),
			Properties: map[string]interface{}{"goal": "signup"},
		},
		// A second, bounced session with no referrer.
		{
			Name: models.EventPageView, SessionID: "s2",
			Timestamp: base.Add(time.Minute), PagePath: "/home",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		},
		// Performance samples.
		{
			Name: models.EventPerformance, SessionID: "s1",
			Timestamp:  base.Add(2 * time.Second),
			Properties: map[string]interface{}{"metric": "LCP", "value": 2000.0},
		},
		{
			Name: models.EventPerformance, SessionID: "s2",
			Timestamp:  base.Add(2 * time.Minute),
			Properties: map[string]interface{}{"metric": "LCP", "value": 5000.0},
		},
	}
	require.NoError(t, s.AppendBatch(context.Background(), events))
}

func TestGenerateEndToEndScenario(t *testing.T) {
	s := store.NewMemoryStore()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seedScenario(t, s, base)

	// Window ends well past the idle timeout, so both sessions are closed.
	window := models.TimeRange{Start: base.Add(-time.Hour), End: base.Add(2 * time.Hour)}
	report, err := newTestEngine(s).Generate(context.Background(), models.ReportDaily, window)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.TotalSessions)
	assert.Equal(t, 3, report.Summary.TotalPageViews)
	assert.Equal(t, 2, report.Summary.UniqueVisitors)
	assert.Equal(t, 0.5, report.Summary.BounceRate, "s2 bounced, s1 did not")
	assert.Equal(t, 0.5, report.Summary.ConversionRate)

	require.NotNil(t, report.Data.Traffic)
	assert.Contains(t, report.Data.Traffic.Sources, models.CountedItem{Key: "Organic Search", Count: 1})
	assert.Contains(t, report.Data.Traffic.Sources, models.CountedItem{Key: "Direct", Count: 1})
	assert.Contains(t, report.Data.Traffic.Devices, models.CountedItem{Key: "mobile", Count: 1})
	assert.Contains(t, report.Data.Traffic.Devices, models.CountedItem{Key: "desktop", Count: 1})

	require.NotNil(t, report.Data.Performance)
	require.Len(t, report.Data.Performance.Vitals, 1)
	lcp := report.Data.Performance.Vitals[0]
	assert.Equal(t, "LCP", lcp.Metric)
	assert.Equal(t, 2, lcp.Samples)
	assert.Equal(t, 1, lcp.Good)
	assert.Equal(t, 1, lcp.Poor)
	require.NotNil(t, lcp.P50)
	assert.Equal(t, 3500.0, *lcp.P50)
	require.NotNil(t, report.Data.Performance.AvgLoadTimeMs)
	assert.Equal(t, 320.0, *report.Data.Performance.AvgLoadTimeMs)

	require.NotNil(t, report.Data.Conversions)
	require.Len(t, report.Data.Conversions.Goals, 1)
	assert.Equal(t, "signup", report.Data.Conversions.Goals[0].Goal)
	assert.Equal(t, 1, report.Data.Conversions.Goals[0].Completions)
	require.NotEmpty(t, report.Data.Conversions.Funnels)

	require.Len(t, report.Data.Trends, 1)
	assert.Equal(t, "2026-08-01", report.Data.Trends[0].Date)
	assert.Equal(t, 2, report.Data.Trends[0].Sessions)
	assert.Equal(t, 3, report.Data.Trends[0].PageViews)
}

func TestCollectVitalSamplesRatesAndFilters(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	events := []models.Event{
		{
			Name: models.EventPerformance, SessionID: "s1", Timestamp: base,
			PagePath:   "/home",
			Properties: map[string]interface{}{"metric": "LCP", "value": 2000.0},
		},
		{
			Name: models.EventPerformance, SessionID: "s2", Timestamp: base,
			Properties: map[string]interface{}{"metric": "CLS", "value": 0.3},
		},
		// Not a recognized vital: dropped.
		{
			Name: models.EventPerformance, SessionID: "s1", Timestamp: base,
			Properties: map[string]interface{}{"metric": "memory_mb", "value": 512.0},
		},
		// No numeric value: dropped.
		{
			Name: models.EventPerformance, SessionID: "s1", Timestamp: base,
			Properties: map[string]interface{}{"metric": "LCP", "value": "fast"},
		},
		{Name: models.EventPageView, SessionID: "s1", Timestamp: base, PagePath: "/home"},
	}

	samples := collectVitalSamples(events)
	require.Len(t, samples, 2)

	assert.Equal(t, models.PerformanceMetric{
		Metric: "LCP", Value: 2000, Rating: models.RatingGood,
		Page: "/home", SessionID: "s1",
	}, samples[0])
	assert.Equal(t, models.RatingPoor, samples[1].Rating)
}

func TestGenerateIsIdempotent(t *testing.T) {
	s := store.NewMemoryStore()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seedScenario(t, s, base)

	window := models.TimeRange{Start: base.Add(-time.Hour), End: base.Add(2 * time.Hour)}
	engine := newTestEngine(s)

	first, err := engine.Generate(context.Background(), models.ReportDaily, window)
	require.NoError(t, err)
	second, err := engine.Generate(context.Background(), models.ReportDaily, window)
	require.NoError(t, err)

	assert.Equal(t, first.Summary, second.Summary, "no hidden counters may leak between runs")
	assert.Equal(t, first.Data, second.Data)
}

func TestGenerateEmptyWindow(t *testing.T) {
	s := store.NewMemoryStore()
	window := models.TimeRange{
		Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
	}

	report, err := newTestEngine(s).Generate(context.Background(), models.ReportDaily, window)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Summary.TotalSessions)
	assert.Zero(t, report.Summary.BounceRate)
	assert.Nil(t, report.Summary.PerformanceScore, "no samples means no score, not zero")
	assert.Empty(t, report.Data.Performance.Vitals)
}

// flakyStore fails name-filtered queries, which is how the funnel analyzer
// reads the store, while the engine's main window query still succeeds.
type flakyStore struct {
	*store.MemoryStore
}

func (f *flakyStore) Query(ctx context.Context, filter store.Filter) ([]models.Event, error) {
	if len(filter.Names) > 0 {
		return nil, models.ErrStoreUnavailable
	}
	return f.MemoryStore.Query(ctx, filter)
}

func TestGeneratePartialDataOnFunnelFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seedScenario(t, mem, base)

	s := &flakyStore{MemoryStore: mem}
	window := models.TimeRange{Start: base.Add(-time.Hour), End: base.Add(2 * time.Hour)}

	report, err := newTestEngine(s).Generate(context.Background(), models.ReportDaily, window)
	require.NoError(t, err, "a failed sub-query must not abort the run")

	assert.Nil(t, report.Data.Conversions, "failed section is absent, not fabricated")
	assert.NotNil(t, report.Data.Traffic)
	assert.Equal(t, 2, report.Summary.TotalSessions)
}

func TestGenerateFailsWhenStoreDown(t *testing.T) {
	down := &downStore{}
	window := models.TimeRange{
		Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
	}

	_, err := newTestEngine(down).Generate(context.Background(), models.ReportDaily, window)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

type downStore struct{}

func (d *downStore) Append(ctx context.Context, e *models.Event) (string, error) {
	return "", models.ErrStoreUnavailable
}

func (d *downStore) AppendBatch(ctx context.Context, e []models.Event) error {
	return models.ErrStoreUnavailable
}

func (d *downStore) Query(ctx context.Context, f store.Filter) ([]models.Event, error) {
	return nil, models.ErrStoreUnavailable
}

func (d *downStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) error {
	return models.ErrStoreUnavailable
}
