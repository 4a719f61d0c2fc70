package report

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"craftfolio/analytics/aggregate"
	"craftfolio/analytics/alerts"
	"craftfolio/analytics/config"
	"craftfolio/analytics/metrics"
	"craftfolio/analytics/models"
	"craftfolio/analytics/store"
)

// Saver is the slice of the report store the scheduler needs.
type Saver interface {
	SaveReport(ctx context.Context, report *models.Report) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler drives periodic report generation, persistence, alert
// evaluation and retention cleanup. The cron layer only decides *when*;
// all the *what* lives in RunOnce so it can be tested directly.
type Scheduler struct {
	engine     *aggregate.Engine
	reports    Saver
	events     store.EventStore
	notifier   *alerts.Notifier
	thresholds config.Thresholds
	retention  config.RetentionConfig
	cache      *Cache

	cron *cron.Cron
}

func NewScheduler(engine *aggregate.Engine, reports Saver, events store.EventStore,
	notifier *alerts.Notifier, thresholds config.Thresholds, retention config.RetentionConfig) *Scheduler {
	return &Scheduler{
		engine:     engine,
		reports:    reports,
		events:     events,
		notifier:   notifier,
		thresholds: thresholds,
		retention:  retention,
		cron:       cron.New(),
	}
}

// SetCache enables latest-report caching in Redis. Optional; without it
// dashboard reads always hit the report store.
func (s *Scheduler) SetCache(c *Cache) { s.cache = c }

// Start registers the cadences and launches the cron loop. A failed run is
// logged and retried on its next tick; nothing is rescheduled early.
func (s *Scheduler) Start() error {
	entries := []struct {
		spec  string
		rtype models.ReportType
	}{
		{"5 0 * * *", models.ReportDaily},
		{"15 0 * * 1", models.ReportWeekly},
		{"30 0 1 * *", models.ReportMonthly},
	}
	for _, e := range entries {
		rtype := e.rtype
		if _, err := s.cron.AddFunc(e.spec, func() {
			if err := s.RunOnce(context.Background(), rtype, time.Now().UTC()); err != nil {
				log.Error().Err(err).Str("type", string(rtype)).Msg("scheduled report run failed, will retry next tick")
			}
		}); err != nil {
			return fmt.Errorf("failed to register %s schedule: %w", rtype, err)
		}
	}
	if _, err := s.cron.AddFunc("45 3 * * *", func() {
		s.runRetention(context.Background(), time.Now().UTC())
	}); err != nil {
		return fmt.Errorf("failed to register retention schedule: %w", err)
	}

	s.cron.Start()
	log.Info().Msg("report scheduler started")
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce generates, persists and evaluates one report for the last full
// window of the given cadence ending before now.
func (s *Scheduler) RunOnce(ctx context.Context, rtype models.ReportType, now time.Time) error {
	window := WindowFor(rtype, now)

	started := time.Now()
	rep, err := s.engine.Generate(ctx, rtype, window)
	if err != nil {
		return fmt.Errorf("%s report generation failed: %w", rtype, err)
	}
	metrics.ReportDuration.Observe(time.Since(started).Seconds())

	if err := s.reports.SaveReport(ctx, rep); err != nil {
		return fmt.Errorf("%s report persistence failed: %w", rtype, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rep); err != nil {
			log.Warn().Err(err).Str("type", string(rtype)).Msg("failed to cache latest report")
		}
	}

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, alerts.Evaluate(rep, s.thresholds))
	}
	return nil
}

// runRetention purges aged report history and raw events. Best-effort and
// deliberately not transactional with report generation.
func (s *Scheduler) runRetention(ctx context.Context, now time.Time) {
	reportCutoff := now.AddDate(0, 0, -s.retention.ReportDays)
	if n, err := s.reports.PurgeOlderThan(ctx, reportCutoff); err != nil {
		log.Error().Err(err).Msg("report retention purge failed")
	} else if n > 0 {
		log.Info().Int64("purged", n).Msg("purged aged report history")
	}

	eventCutoff := now.AddDate(0, 0, -s.retention.EventDays)
	if err := s.events.PurgeOlderThan(ctx, eventCutoff); err != nil {
		log.Error().Err(err).Msg("event retention purge failed")
	}
}

// WindowFor returns the last fully elapsed [start, end) window of a
// cadence, anchored to UTC midnight so repeated runs see identical bounds.
func WindowFor(rtype models.ReportType, now time.Time) models.TimeRange {
	end := now.UTC().Truncate(24 * time.Hour)
	switch rtype {
	case models.ReportWeekly:
		return models.TimeRange{Start: end.AddDate(0, 0, -7), End: end}
	case models.ReportMonthly:
		return models.TimeRange{Start: end.AddDate(0, -1, 0), End: end}
	default:
		return models.TimeRange{Start: end.AddDate(0, 0, -1), End: end}
	}
}
