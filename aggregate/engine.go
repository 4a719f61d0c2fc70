package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"craftfolio/analytics/config"
	"craftfolio/analytics/funnel"
	"craftfolio/analytics/models"
	"craftfolio/analytics/store"
	"craftfolio/analytics/tracker"
)

// Engine turns a raw event window into an immutable report. Generation is
// read-only and free of hidden state: two runs over the same window and an
// unchanged store produce identical summary statistics, and concurrent runs
// for different windows are safe.
type Engine struct {
	store     store.EventStore
	funnels   *funnel.Analyzer
	analytics *config.AnalyticsConfig
	session   config.SessionConfig
}

func NewEngine(s store.EventStore, fa *funnel.Analyzer, ac *config.AnalyticsConfig, session config.SessionConfig) *Engine {
	return &Engine{store: s, funnels: fa, analytics: ac, session: session}
}

// Generate builds the report for a [start, end) window. A failure of the
// main event query fails the whole run; a failed sub-computation only marks
// its section absent, recorded as partial data.
func (e *Engine) Generate(ctx context.Context, rtype models.ReportType, window models.TimeRange) (*models.Report, error) {
	events, err := e.store.Query(ctx, store.Filter{Start: window.Start, End: window.End})
	if err != nil {
		return nil, fmt.Errorf("report query for %s window failed: %w", rtype, err)
	}

	sessions := tracker.ReplaySessions(events, e.session, window.End)
	goalStats, conversions := funnel.Goals(events, e.analytics.Goals)

	summary := e.buildSummary(events, sessions, conversions)
	data := models.ReportData{
		Traffic:  e.buildTraffic(events, sessions),
		Behavior: e.buildBehavior(events, sessions),
		Trends:   buildTrends(events, sessions),
	}

	var missing []string

	perf := buildPerformance(events)
	data.Performance = perf
	if perf != nil {
		summary.PerformanceScore = perf.Score
	}

	conv, err := e.buildConversions(ctx, window, goalStats)
	if err != nil {
		missing = append(missing, "conversions")
		log.Error().Err(err).Msg("conversions section unavailable, producing partial report")
	} else {
		data.Conversions = conv
	}

	data.Overview = &summary

	report := &models.Report{
		Metadata: models.ReportMetadata{
			Type:        rtype,
			GeneratedAt: time.Now().UTC(),
			TimeRange:   window,
			Version:     models.ReportVersion,
		},
		Summary: summary,
		Data:    data,
	}
	report.Insights, report.Recommendations = buildInsights(&summary, data)

	if len(missing) > 0 {
		perr := &models.PartialDataError{Sections: missing}
		log.Warn().Strs("sections", missing).Msg(perr.Error())
	}
	return report, nil
}

func (e *Engine) buildSummary(events []models.Event, sessions []models.Session, conversions []models.GoalConversion) models.ReportSummary {
	summary := models.ReportSummary{TotalSessions: len(sessions)}

	var errorCount int
	for i := range events {
		ev := &events[i]
		if ev.IsPageView() {
			summary.TotalPageViews++
		}
		if ev.Name == models.EventError {
			errorCount++
		}
	}

	// A visitor is a known user, or failing that the session itself. Counted
	// per session so one visit never shows up under both identities.
	visitors := make(map[string]struct{})
	for i := range sessions {
		if sessions[i].UserID != "" {
			visitors[sessions[i].UserID] = struct{}{}
		} else {
			visitors[sessions[i].SessionID] = struct{}{}
		}
	}
	summary.UniqueVisitors = len(visitors)
	if len(events) > 0 {
		summary.ErrorRate = float64(errorCount) / float64(len(events))
	}

	var closed, bounced int
	var totalDuration float64
	for i := range sessions {
		s := &sessions[i]
		if s.State != models.SessionEnded {
			continue
		}
		closed++
		totalDuration += s.Duration
		if s.Bounced {
			bounced++
		}
	}
	if closed > 0 {
		summary.BounceRate = float64(bounced) / float64(closed)
		summary.AvgDuration = totalDuration / float64(closed)
	}

	if len(sessions) > 0 {
		converted := make(map[string]struct{})
		for _, c := range conversions {
			actor := c.UserID
			if actor == "" {
				actor = c.SessionID
			}
			converted[actor] = struct{}{}
		}
		summary.ConversionRate = float64(len(converted)) / float64(len(sessions))
	}
	return summary
}

func (e *Engine) buildTraffic(events []models.Event, sessions []models.Session) *models.TrafficSection {
	sources := make(map[string]int)
	referrers := make(map[string]int)
	devices := make(map[string]int)
	for i := range sessions {
		s := &sessions[i]
		sources[ClassifySource(s.Referrer, e.analytics.SourcePatterns)]++
		if s.Referrer != "" {
			referrers[s.Referrer]++
		}
		devices[s.Device]++
	}

	pages := make(map[string]int)
	for i := range events {
		if events[i].IsPageView() {
			if p := events[i].Page(); p != "" {
				pages[p]++
			}
		}
	}

	return &models.TrafficSection{
		Sources:      TopN(sources, e.analytics.TopN),
		TopPages:     TopN(pages, e.analytics.TopN),
		TopReferrers: TopN(referrers, e.analytics.TopN),
		Devices:      TopN(devices, e.analytics.TopN),
	}
}

// vitalOrder fixes the section layout regardless of sample arrival order.
var vitalOrder = []string{models.VitalLCP, models.VitalFID, models.VitalCLS, models.VitalFCP, models.VitalTTFB}

// collectVitalSamples decodes performance events into rated vital samples.
// Unrecognized metrics and samples without a numeric value are dropped.
func collectVitalSamples(events []models.Event) []models.PerformanceMetric {
	var samples []models.PerformanceMetric
	for i := range events {
		ev := &events[i]
		if ev.Name != models.EventPerformance {
			continue
		}
		metric := ev.StringProp("metric")
		if !models.IsVital(metric) {
			continue
		}
		v, ok := ev.FloatProp("value")
		if !ok {
			continue
		}
		samples = append(samples, models.PerformanceMetric{
			Metric:    metric,
			Value:     v,
			Rating:    models.RateVital(metric, v),
			Page:      ev.Page(),
			SessionID: ev.SessionID,
		})
	}
	return samples
}

func buildPerformance(events []models.Event) *models.PerformanceSection {
	values := make(map[string][]float64)
	ratings := make(map[string]map[string]int)
	for _, s := range collectVitalSamples(events) {
		values[s.Metric] = append(values[s.Metric], s.Value)
		if ratings[s.Metric] == nil {
			ratings[s.Metric] = make(map[string]int)
		}
		ratings[s.Metric][s.Rating]++
	}

	var loadTimes []float64
	for i := range events {
		ev := &events[i]
		if ev.Name == models.EventPageView {
			if v, ok := ev.FloatProp("load_time_ms"); ok {
				loadTimes = append(loadTimes, v)
			}
		}
	}

	section := &models.PerformanceSection{}
	if avg, ok := Mean(loadTimes); ok {
		section.AvgLoadTimeMs = &avg
	}

	var good, needs, total int
	for _, metric := range vitalOrder {
		vals := values[metric]
		if len(vals) == 0 {
			continue
		}
		vs := models.VitalSummary{Metric: metric, Samples: len(vals)}
		if p, ok := Percentile(vals, 50); ok {
			vs.P50 = &p
		}
		if p, ok := Percentile(vals, 75); ok {
			vs.P75 = &p
		}
		if p, ok := Percentile(vals, 95); ok {
			vs.P95 = &p
		}
		vs.Good = ratings[metric][models.RatingGood]
		vs.NeedsImprovement = ratings[metric][models.RatingNeedsImprovement]
		vs.Poor = ratings[metric][models.RatingPoor]
		good += vs.Good
		needs += vs.NeedsImprovement
		total += vs.Samples
		section.Vitals = append(section.Vitals, vs)
	}

	if total > 0 {
		score := 100 * (float64(good) + 0.5*float64(needs)) / float64(total)
		section.Score = &score
	}
	return section
}

func (e *Engine) buildBehavior(events []models.Event, sessions []models.Session) *models.BehaviorSection {
	names := make(map[string]int)
	terms := make(map[string]int)
	for i := range events {
		ev := &events[i]
		names[ev.Name]++
		if ev.Name == models.EventSearch {
			if q := ev.StringProp("query"); q != "" {
				terms[q]++
			}
		}
	}

	entries := make(map[string]int)
	exits := make(map[string]int)
	var pageViews int
	for i := range sessions {
		s := &sessions[i]
		if s.LandingPage != "" {
			entries[s.LandingPage]++
		}
		if s.ExitPage != "" {
			exits[s.ExitPage]++
		}
		pageViews += s.PageViewCount
	}

	section := &models.BehaviorSection{
		TopEvents:      TopN(names, e.analytics.TopN),
		TopSearchTerms: TopN(terms, e.analytics.TopN),
		EntryPages:     TopN(entries, e.analytics.TopN),
		ExitPages:      TopN(exits, e.analytics.TopN),
	}
	if len(sessions) > 0 {
		section.AvgPageViews = float64(pageViews) / float64(len(sessions))
	}
	return section
}

func (e *Engine) buildConversions(ctx context.Context, window models.TimeRange, goalStats []models.GoalStats) (*models.ConversionSection, error) {
	section := &models.ConversionSection{Goals: goalStats}
	for _, fc := range e.analytics.Funnels {
		result, err := e.funnels.Analyze(ctx, fc, window)
		if err != nil {
			return nil, err
		}
		section.Funnels = append(section.Funnels, *result)
	}
	return section, nil
}

func buildTrends(events []models.Event, sessions []models.Session) []models.TrendPoint {
	const day = "2006-01-02"
	buckets := make(map[string]*models.TrendPoint)
	point := func(date string) *models.TrendPoint {
		if p, ok := buckets[date]; ok {
			return p
		}
		p := &models.TrendPoint{Date: date}
		buckets[date] = p
		return p
	}

	for i := range sessions {
		point(sessions[i].StartTime.UTC().Format(day)).Sessions++
	}
	for i := range events {
		if events[i].IsPageView() {
			point(events[i].Timestamp.UTC().Format(day)).PageViews++
		}
	}

	dates := make([]string, 0, len(buckets))
	for d := range buckets {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	trends := make([]models.TrendPoint, 0, len(dates))
	for _, d := range dates {
		trends = append(trends, *buckets[d])
	}
	return trends
}

func buildInsights(summary *models.ReportSummary, data models.ReportData) (insights, recommendations []string) {
	if summary.BounceRate > 0.70 {
		insights = append(insights, fmt.Sprintf("Bounce rate is high at %.0f%%.", summary.BounceRate*100))
		recommendations = append(recommendations, "Review landing page content and load speed; most visitors leave after one page.")
	}
	if summary.PerformanceScore != nil && *summary.PerformanceScore < 70 {
		insights = append(insights, fmt.Sprintf("Performance score is %.0f, below the healthy range.", *summary.PerformanceScore))
		recommendations = append(recommendations, "Investigate Core Web Vitals regressions, starting with the worst-rated metric.")
	}
	if summary.ConversionRate > 0 && summary.ConversionRate < 0.02 {
		insights = append(insights, fmt.Sprintf("Conversion rate is %.1f%%.", summary.ConversionRate*100))
		recommendations = append(recommendations, "Check funnel drop-off points; early steps lose the most users.")
	}
	if data.Traffic != nil && len(data.Traffic.Sources) > 0 {
		top := data.Traffic.Sources[0]
		insights = append(insights, fmt.Sprintf("Top traffic source is %s (%d sessions).", top.Key, top.Count))
	}
	return insights, recommendations
}
