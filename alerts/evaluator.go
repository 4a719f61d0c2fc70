package alerts

import (
	"fmt"
	"time"

	"craftfolio/analytics/config"
	"craftfolio/analytics/models"
)

// Alert is one threshold breach raised from a finished report.
type Alert struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

const severityWarning = "warning"

// Evaluate compares a report's summary against the configured thresholds.
// Pure function: each check is independent and several alerts may fire from
// one report.
func Evaluate(report *models.Report, thresholds config.Thresholds) []Alert {
	var alerts []Alert
	now := report.Metadata.GeneratedAt
	source := fmt.Sprintf("%s report %s..%s",
		report.Metadata.Type,
		report.Metadata.TimeRange.Start.Format(time.RFC3339),
		report.Metadata.TimeRange.End.Format(time.RFC3339))

	s := report.Summary
	if s.BounceRate > thresholds.MaxBounceRate {
		alerts = append(alerts, Alert{
			Title: "High bounce rate",
			Message: fmt.Sprintf("Bounce rate %.1f%% exceeds the %.0f%% threshold.",
				s.BounceRate*100, thresholds.MaxBounceRate*100),
			Severity:  severityWarning,
			Timestamp: now,
			Source:    source,
		})
	}
	if s.TotalSessions > 0 && s.ConversionRate < thresholds.MinConversionRate {
		alerts = append(alerts, Alert{
			Title: "Low conversion rate",
			Message: fmt.Sprintf("Conversion rate %.2f%% is below the %.1f%% threshold.",
				s.ConversionRate*100, thresholds.MinConversionRate*100),
			Severity:  severityWarning,
			Timestamp: now,
			Source:    source,
		})
	}
	if s.PerformanceScore != nil && *s.PerformanceScore < thresholds.MinPerformanceScore {
		alerts = append(alerts, Alert{
			Title: "Low performance score",
			Message: fmt.Sprintf("Performance score %.0f is below the %.0f threshold.",
				*s.PerformanceScore, thresholds.MinPerformanceScore),
			Severity:  severityWarning,
			Timestamp: now,
			Source:    source,
		})
	}
	if s.ErrorRate > thresholds.MaxErrorRate {
		alerts = append(alerts, Alert{
			Title: "High error rate",
			Message: fmt.Sprintf("Error rate %.2f%% exceeds the %.1f%% threshold.",
				s.ErrorRate*100, thresholds.MaxErrorRate*100),
			Severity:  severityWarning,
			Timestamp: now,
			Source:    source,
		})
	}
	return alerts
}
