package models

import (
	"fmt"
	"time"
)

// Reserved event names the pipeline gives special treatment to. Anything else
// is a plain custom event and only shows up in behavior stats.
const (
	EventSessionStart  = "session_start"
	EventSessionEnd    = "session_end"
	EventPageView      = "page_view"
	EventPerformance   = "performance"
	EventGoalCompleted = "goal_completed"
	EventError         = "error"
	EventSearch        = "search"
)

// Event is a single immutable analytics fact. Properties is a flat bag: the
// ingestion boundary rejects nested maps and slices so aggregation math never
// sees untyped structure.
type Event struct {
	EventID    string                 `json:"eventId"`
	Name       string                 `json:"event"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	SessionID  string                 `json:"sessionId"`
	UserID     string                 `json:"userId,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	PagePath   string                 `json:"pagePath,omitempty"`
	Referrer   string                 `json:"referrer,omitempty"`
	UserAgent  string                 `json:"userAgent,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty"`
}

// Validate enforces the ingestion contract: a non-empty name, a session id,
// and flat properties.
func (e *Event) Validate() error {
	if e.Name == "" {
		return &ValidationError{Field: "event", Reason: "event name must not be empty"}
	}
	if e.SessionID == "" {
		return &ValidationError{Field: "sessionId", Reason: "sessionId must not be empty"}
	}
	for k, v := range e.Properties {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return &ValidationError{Field: "properties", Reason: fmt.Sprintf("property %q must be a scalar value", k)}
		}
	}
	return nil
}

// StringProp returns a string property, or "" when absent or not a string.
func (e *Event) StringProp(key string) string {
	if v, ok := e.Properties[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// FloatProp returns a numeric property. JSON decoding yields float64 for all
// numbers, but ints are accepted for events built in-process.
func (e *Event) FloatProp(key string) (float64, bool) {
	switch v := e.Properties[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Page resolves the page identity of the event, preferring the typed PagePath
// field over the loose property bag.
func (e *Event) Page() string {
	if e.PagePath != "" {
		return e.PagePath
	}
	return e.StringProp("page")
}

// IsPageView reports whether the event counts toward page view statistics.
func (e *Event) IsPageView() bool {
	return e.Name == EventPageView
}
