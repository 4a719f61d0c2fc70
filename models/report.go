package models

import "time"

// ReportType is the cadence a report was generated for.
type ReportType string

const (
	ReportDaily   ReportType = "daily"
	ReportWeekly  ReportType = "weekly"
	ReportMonthly ReportType = "monthly"
	ReportCustom  ReportType = "custom"
)

// ReportVersion is bumped when the snapshot layout changes.
const ReportVersion = 2

// TimeRange is a half-open [Start, End) aggregation window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// ReportMetadata identifies one generated snapshot.
type ReportMetadata struct {
	Type        ReportType `json:"type"`
	GeneratedAt time.Time  `json:"generatedAt"`
	TimeRange   TimeRange  `json:"timeRange"`
	Version     int        `json:"version"`
}

// ReportSummary is the headline numbers of a report.
type ReportSummary struct {
	TotalSessions    int      `json:"totalSessions"`
	TotalPageViews   int      `json:"totalPageViews"`
	UniqueVisitors   int      `json:"uniqueVisitors"`
	BounceRate       float64  `json:"bounceRate"`
	AvgDuration      float64  `json:"avgDurationSeconds"`
	ConversionRate   float64  `json:"conversionRate"`
	ErrorRate        float64  `json:"errorRate"`
	PerformanceScore *float64 `json:"performanceScore"`
}

// CountedItem is a generic ranked (key, count) pair used by top-N sections.
type CountedItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TrafficSection breaks sessions down by acquisition.
type TrafficSection struct {
	Sources      []CountedItem `json:"sources"`
	TopPages     []CountedItem `json:"topPages"`
	TopReferrers []CountedItem `json:"topReferrers"`
	Devices      []CountedItem `json:"devices"`
}

// VitalSummary is the percentile summary for one Core Web Vitals metric.
// Percentile values are nil when no samples exist for the window.
type VitalSummary struct {
	Metric           string   `json:"metric"`
	Samples          int      `json:"samples"`
	P50              *float64 `json:"p50"`
	P75              *float64 `json:"p75"`
	P95              *float64 `json:"p95"`
	Good             int      `json:"good"`
	NeedsImprovement int      `json:"needsImprovement"`
	Poor             int      `json:"poor"`
}

// PerformanceSection aggregates Core Web Vitals and load times.
type PerformanceSection struct {
	Vitals        []VitalSummary `json:"vitals"`
	AvgLoadTimeMs *float64       `json:"avgLoadTimeMs"`
	Score         *float64       `json:"score"`
}

// BehaviorSection covers what visitors did inside their sessions.
type BehaviorSection struct {
	TopEvents      []CountedItem `json:"topEvents"`
	TopSearchTerms []CountedItem `json:"topSearchTerms"`
	EntryPages     []CountedItem `json:"entryPages"`
	ExitPages      []CountedItem `json:"exitPages"`
	AvgPageViews   float64       `json:"avgPageViews"`
}

// ConversionSection carries funnel and goal results.
type ConversionSection struct {
	Funnels []FunnelResult `json:"funnels"`
	Goals   []GoalStats    `json:"goals"`
}

// TrendPoint is one bucket of the per-day trend series.
type TrendPoint struct {
	Date      string `json:"date"`
	Sessions  int    `json:"sessions"`
	PageViews int    `json:"pageViews"`
}

// ReportData groups the detail sections. A section pointer is nil when the
// underlying sub-query failed and the run completed with partial data.
type ReportData struct {
	Overview    *ReportSummary      `json:"overview"`
	Traffic     *TrafficSection     `json:"traffic"`
	Performance *PerformanceSection `json:"performance"`
	Behavior    *BehaviorSection    `json:"userBehavior"`
	Conversions *ConversionSection  `json:"conversions"`
	Trends      []TrendPoint        `json:"trends"`
}

// Report is an immutable computed snapshot for one window. A newer run
// supersedes it; it is never mutated in place.
type Report struct {
	Metadata        ReportMetadata `json:"metadata"`
	Summary         ReportSummary  `json:"summary"`
	Data            ReportData     `json:"data"`
	Insights        []string       `json:"insights"`
	Recommendations []string       `json:"recommendations"`
}
