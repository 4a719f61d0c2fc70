package aggregate

import (
	"context"
	"fmt"

	"craftfolio/analytics/config"
	"craftfolio/analytics/funnel"
	"craftfolio/analytics/models"
	"craftfolio/analytics/store"
	"craftfolio/analytics/tracker"
)

// CustomReportSpec is the on-demand report request accepted from the
// dashboard. Metrics selects which sections to compute; GroupBy optionally
// adds a grouped event count.
type CustomReportSpec struct {
	Metrics   []string         `json:"metrics"`
	Filters   CustomFilters    `json:"filters"`
	GroupBy   string           `json:"groupBy"`
	TimeRange models.TimeRange `json:"timeRange"`
}

// CustomFilters narrows the event stream before aggregation.
type CustomFilters struct {
	Events    []string `json:"events,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	UserID    string   `json:"userId,omitempty"`
}

var customMetrics = map[string]struct{}{
	"overview": {}, "traffic": {}, "performance": {},
	"behavior": {}, "conversions": {}, "trends": {},
}

var customGroupings = map[string]struct{}{
	"": {}, "event": {}, "page": {}, "device": {}, "source": {},
}

// Validate rejects malformed custom report requests before any work runs.
func (s *CustomReportSpec) Validate() error {
	if s.TimeRange.Start.IsZero() || s.TimeRange.End.IsZero() {
		return &models.ValidationError{Field: "timeRange", Reason: "start and end are required"}
	}
	if !s.TimeRange.Start.Before(s.TimeRange.End) {
		return &models.ValidationError{Field: "timeRange", Reason: "start must precede end"}
	}
	for _, m := range s.Metrics {
		if _, ok := customMetrics[m]; !ok {
			return &models.ValidationError{Field: "metrics", Reason: fmt.Sprintf("unknown metric %q", m)}
		}
	}
	if _, ok := customGroupings[s.GroupBy]; !ok {
		return &models.ValidationError{Field: "groupBy", Reason: fmt.Sprintf("unknown grouping %q", s.GroupBy)}
	}
	return nil
}

// GenerateCustom computes an on-demand report. Unlike scheduled runs,
// errors here surface directly to the caller.
func (e *Engine) GenerateCustom(ctx context.Context, spec *CustomReportSpec) (map[string]interface{}, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	events, err := e.store.Query(ctx, store.Filter{
		Start:     spec.TimeRange.Start,
		End:       spec.TimeRange.End,
		Names:     spec.Filters.Events,
		SessionID: spec.Filters.SessionID,
		UserID:    spec.Filters.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("custom report query failed: %w", err)
	}

	sessions := tracker.ReplaySessions(events, e.session, spec.TimeRange.End)

	metrics := spec.Metrics
	if len(metrics) == 0 {
		metrics = []string{"overview"}
	}

	out := map[string]interface{}{
		"timeRange": spec.TimeRange,
	}
	for _, m := range metrics {
		switch m {
		case "overview":
			_, conversions := funnel.Goals(events, e.analytics.Goals)
			out["overview"] = e.buildSummary(events, sessions, conversions)
		case "traffic":
			out["traffic"] = e.buildTraffic(events, sessions)
		case "performance":
			out["performance"] = buildPerformance(events)
		case "behavior":
			out["behavior"] = e.buildBehavior(events, sessions)
		case "conversions":
			section, err := e.buildConversions(ctx, spec.TimeRange, nil)
			if err != nil {
				return nil, err
			}
			goalStats, _ := funnel.Goals(events, e.analytics.Goals)
			section.Goals = goalStats
			out["conversions"] = section
		case "trends":
			out["trends"] = buildTrends(events, sessions)
		}
	}

	if spec.GroupBy != "" {
		out["groups"] = groupEvents(events, sessions, spec.GroupBy, e.analytics)
	}
	return out, nil
}

func groupEvents(events []models.Event, sessions []models.Session, groupBy string, ac *config.AnalyticsConfig) []models.CountedItem {
	counts := make(map[string]int)
	switch groupBy {
	case "event":
		for i := range events {
			counts[events[i].Name]++
		}
	case "page":
		for i := range events {
			if p := events[i].Page(); p != "" {
				counts[p]++
			}
		}
	case "device":
		for i := range sessions {
			counts[sessions[i].Device]++
		}
	case "source":
		for i := range sessions {
			counts[ClassifySource(sessions[i].Referrer, ac.SourcePatterns)]++
		}
	}
	return TopN(counts, 0)
}
