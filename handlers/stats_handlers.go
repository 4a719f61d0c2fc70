package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"craftfolio/analytics/aggregate"
	"craftfolio/analytics/ingest"
	"craftfolio/analytics/models"
	"craftfolio/analytics/report"
	"craftfolio/analytics/tracker"
)

// ReportReader is the read side of the report store.
type ReportReader interface {
	GetLatest(ctx context.Context, reportType models.ReportType) (*models.Report, error)
	GetHistory(ctx context.Context, reportType models.ReportType, start, end time.Time) ([]models.Report, error)
}

// AnalyticsHandlers carries the wired dependencies for the HTTP surface.
type AnalyticsHandlers struct {
	pipeline *ingest.Pipeline
	tracker  *tracker.Tracker
	realtime *ingest.Realtime
	engine   *aggregate.Engine
	reports  ReportReader
	cache    *report.Cache
	exporter *report.Exporter
}

func NewAnalyticsHandlers(pipeline *ingest.Pipeline, tr *tracker.Tracker, realtime *ingest.Realtime,
	engine *aggregate.Engine, reports ReportReader, cache *report.Cache, exporter *report.Exporter) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		pipeline: pipeline,
		tracker:  tr,
		realtime: realtime,
		engine:   engine,
		reports:  reports,
		cache:    cache,
		exporter: exporter,
	}
}

// timeRangeCadence maps the dashboard's range selector to the precomputed
// cadence that covers it.
var timeRangeCadence = map[string]models.ReportType{
	"1d":  models.ReportDaily,
	"7d":  models.ReportWeekly,
	"30d": models.ReportMonthly,
}

// liveRanges have no scheduled report covering their window and are
// computed on demand from the event store.
var liveRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// Dashboard serves the latest applicable report for the requested range.
func (h *AnalyticsHandlers) Dashboard(c *gin.Context) {
	timeRange := c.DefaultQuery("timeRange", "1d")

	if d, ok := liveRanges[timeRange]; ok {
		h.liveDashboard(c, d)
		return
	}

	rtype, ok := timeRangeCadence[timeRange]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeRange must be one of 1h, 1d, 7d, 30d, 90d"})
		return
	}

	if h.cache != nil {
		if rep, err := h.cache.Get(c.Request.Context(), rtype); err == nil && rep != nil {
			c.JSON(http.StatusOK, rep)
			return
		}
	}

	rep, err := h.reports.GetLatest(c.Request.Context(), rtype)
	if err != nil {
		if errors.Is(err, models.ErrReportUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No report available yet for this range"})
			return
		}
		log.Error().Err(err).Str("type", string(rtype)).Msg("failed to load latest report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *AnalyticsHandlers) liveDashboard(c *gin.Context, span time.Duration) {
	now := time.Now().UTC()
	window := models.TimeRange{Start: now.Add(-span), End: now}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	rep, err := h.engine.Generate(ctx, models.ReportCustom, window)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event store unavailable"})
			return
		}
		log.Error().Err(err).Msg("live dashboard generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute live stats"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Realtime returns the active session count and the most recent events.
func (h *AnalyticsHandlers) Realtime(c *gin.Context) {
	n := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		n = parsed
	}

	var recent []models.Event
	if h.realtime != nil {
		events, err := h.realtime.Recent(c.Request.Context(), n)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read recent events")
		} else {
			recent = events
		}
	}
	if recent == nil {
		recent = []models.Event{}
	}

	c.JSON(http.StatusOK, gin.H{
		"activeSessions": h.tracker.ActiveCount(5 * time.Minute),
		"recentEvents":   recent,
	})
}

// History lists retained report snapshots of one cadence within a window.
func (h *AnalyticsHandlers) History(c *gin.Context) {
	rtype := models.ReportType(c.DefaultQuery("type", string(models.ReportDaily)))
	switch rtype {
	case models.ReportDaily, models.ReportWeekly, models.ReportMonthly:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be daily, weekly or monthly"})
		return
	}

	window, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history, err := h.reports.GetHistory(c.Request.Context(), rtype, window.Start, window.End)
	if err != nil {
		log.Error().Err(err).Msg("failed to load report history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report history"})
		return
	}
	if history == nil {
		history = []models.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": history})
}

// CustomReport computes an on-demand report from a caller-supplied spec.
func (h *AnalyticsHandlers) CustomReport(c *gin.Context) {
	var spec aggregate.CustomReportSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.engine.GenerateCustom(ctx, &spec)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		case errors.Is(err, models.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event store unavailable"})
		default:
			log.Error().Err(err).Msg("custom report failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute report"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// Export streams raw events or the latest report of a cadence.
func (h *AnalyticsHandlers) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or csv"})
		return
	}

	if rtype := c.Query("report"); rtype != "" {
		h.exportReport(c, format, models.ReportType(rtype))
		return
	}

	window, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setExportHeaders(c, format, "events")
	if err := h.exporter.ExportEvents(c.Request.Context(), c.Writer, format, window); err != nil {
		log.Error().Err(err).Msg("event export failed")
		// Headers are already out; the truncated body is all we can signal.
		c.Abort()
	}
}

func (h *AnalyticsHandlers) exportReport(c *gin.Context, format string, rtype models.ReportType) {
	rep, err := h.reports.GetLatest(c.Request.Context(), rtype)
	if err != nil {
		if errors.Is(err, models.ErrReportUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No report available for this type"})
			return
		}
		log.Error().Err(err).Msg("report export failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report"})
		return
	}

	setExportHeaders(c, format, fmt.Sprintf("report_%s", rtype))
	if err := h.exporter.ExportReport(c.Writer, format, rep); err != nil {
		log.Error().Err(err).Msg("report export encoding failed")
		c.Abort()
	}
}

var timeRangeDurations = map[string]time.Duration{
	"1h":  time.Hour,
	"1d":  24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

func parseWindow(c *gin.Context) (models.TimeRange, error) {
	now := time.Now().UTC()
	window := models.TimeRange{Start: now.Add(-24 * time.Hour), End: now}

	if raw := c.Query("timeRange"); raw != "" {
		d, ok := timeRangeDurations[raw]
		if !ok {
			return models.TimeRange{}, fmt.Errorf("timeRange must be one of 1h, 1d, 7d, 30d, 90d")
		}
		window.Start = now.Add(-d)
		return window, nil
	}

	if raw := c.Query("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("invalid 'start' timestamp, use RFC3339")
		}
		window.Start = start
	}
	if raw := c.Query("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("invalid 'end' timestamp, use RFC3339")
		}
		window.End = end
	}
	if !window.Start.Before(window.End) {
		return models.TimeRange{}, fmt.Errorf("'start' must precede 'end'")
	}
	return window, nil
}

func setExportHeaders(c *gin.Context, format, name string) {
	filename := fmt.Sprintf("%s_%s.%s", name, time.Now().UTC().Format("20060102"), format)
	if format == "csv" {
		c.Header("Content-Type", "text/csv")
	} else {
		c.Header("Content-Type", "application/json")
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
