package models

// Core Web Vitals metric names accepted by the performance pipeline.
const (
	VitalLCP  = "LCP"
	VitalFID  = "FID"
	VitalCLS  = "CLS"
	VitalFCP  = "FCP"
	VitalTTFB = "TTFB"
)

// Vital ratings follow the web.dev buckets.
const (
	RatingGood             = "good"
	RatingNeedsImprovement = "needs-improvement"
	RatingPoor             = "poor"
)

// PerformanceMetric is one Core-Web-Vitals-style sample tied to a page view.
type PerformanceMetric struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Rating    string  `json:"rating"`
	Page      string  `json:"page"`
	SessionID string  `json:"sessionId"`
}

// vitalThresholds holds the good/poor cut points per metric. Values between
// the two are "needs-improvement".
var vitalThresholds = map[string][2]float64{
	VitalLCP:  {2500, 4000},
	VitalFID:  {100, 300},
	VitalCLS:  {0.1, 0.25},
	VitalFCP:  {1800, 3000},
	VitalTTFB: {800, 1800},
}

// IsVital reports whether name is a recognized Core Web Vitals metric.
func IsVital(name string) bool {
	_, ok := vitalThresholds[name]
	return ok
}

// RateVital buckets a sample value into good / needs-improvement / poor.
func RateVital(metric string, value float64) string {
	t, ok := vitalThresholds[metric]
	if !ok {
		return RatingNeedsImprovement
	}
	switch {
	case value <= t[0]:
		return RatingGood
	case value <= t[1]:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}
