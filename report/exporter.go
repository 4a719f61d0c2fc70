package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"craftfolio/analytics/models"
	"craftfolio/analytics/store"
)

// Exporter streams raw events or generated reports out as JSON or CSV.
type Exporter struct {
	events store.EventStore
}

func NewExporter(events store.EventStore) *Exporter {
	return &Exporter{events: events}
}

// ExportEvents writes every event in the window to w. JSON output is one
// object per line; CSV carries the flat columns plus properties as a JSON
// blob in the last column.
func (e *Exporter) ExportEvents(ctx context.Context, w io.Writer, format string, window models.TimeRange) error {
	events, err := e.events.Query(ctx, store.Filter{Start: window.Start, End: window.End})
	if err != nil {
		return fmt.Errorf("event export query failed: %w", err)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		for i := range events {
			if err := enc.Encode(&events[i]); err != nil {
				return err
			}
		}
		return nil
	case "csv":
		return writeEventsCSV(w, events)
	default:
		return &models.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported export format %q", format)}
	}
}

func writeEventsCSV(w io.Writer, events []models.Event) error {
	cw := csv.NewWriter(w)
	header := []string{"event_id", "event", "session_id", "user_id", "timestamp", "page_path", "referrer", "properties"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range events {
		ev := &events[i]
		props := ""
		if len(ev.Properties) > 0 {
			raw, err := json.Marshal(ev.Properties)
			if err != nil {
				return err
			}
			props = string(raw)
		}
		row := []string{
			ev.EventID,
			ev.Name,
			ev.SessionID,
			ev.UserID,
			ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			ev.PagePath,
			ev.Referrer,
			props,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportReport writes a generated report to w. CSV flattens the summary and
// trend series into key/value rows since the nested sections do not map to
// a single rectangle.
func (e *Exporter) ExportReport(w io.Writer, format string, rep *models.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "csv":
		return writeReportCSV(w, rep)
	default:
		return &models.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported export format %q", format)}
	}
}

func writeReportCSV(w io.Writer, rep *models.Report) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"metric", "value"},
		{"report_type", string(rep.Metadata.Type)},
		{"window_start", rep.Metadata.TimeRange.Start.UTC().Format("2006-01-02T15:04:05Z07:00")},
		{"window_end", rep.Metadata.TimeRange.End.UTC().Format("2006-01-02T15:04:05Z07:00")},
		{"total_sessions", strconv.Itoa(rep.Summary.TotalSessions)},
		{"total_page_views", strconv.Itoa(rep.Summary.TotalPageViews)},
		{"unique_visitors", strconv.Itoa(rep.Summary.UniqueVisitors)},
		{"bounce_rate", formatFloat(rep.Summary.BounceRate)},
		{"avg_duration_seconds", formatFloat(rep.Summary.AvgDuration)},
		{"conversion_rate", formatFloat(rep.Summary.ConversionRate)},
		{"error_rate", formatFloat(rep.Summary.ErrorRate)},
	}
	if rep.Summary.PerformanceScore != nil {
		rows = append(rows, []string{"performance_score", formatFloat(*rep.Summary.PerformanceScore)})
	}
	for _, p := range rep.Data.Trends {
		rows = append(rows, []string{"sessions_" + p.Date, strconv.Itoa(p.Sessions)})
		rows = append(rows, []string{"page_views_" + p.Date, strconv.Itoa(p.PageViews)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
