package models

import "time"

// SessionState is the lifecycle position of a visitor session.
type SessionState int

const (
	SessionActive SessionState = iota
	SessionIdle
	SessionEnded
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionIdle:
		return "idle"
	case SessionEnded:
		return "ended"
	}
	return "unknown"
}

// Session is the mutable aggregate derived from one visitor's event stream.
// Exactly one open session exists per session id; Ended is terminal.
type Session struct {
	SessionID     string       `json:"sessionId"`
	UserID        string       `json:"userId,omitempty"`
	State         SessionState `json:"-"`
	StartTime     time.Time    `json:"startTime"`
	LastActivity  time.Time    `json:"lastActivity"`
	EndTime       *time.Time   `json:"endTime,omitempty"`
	PageViewCount int          `json:"pageViewCount"`
	EventCount    int          `json:"eventCount"`
	Device        string       `json:"device,omitempty"`
	Referrer      string       `json:"referrer,omitempty"`
	LandingPage   string       `json:"landingPage,omitempty"`
	ExitPage      string       `json:"exitPage,omitempty"`
	IsActive      bool         `json:"isActive"`
	Duration      float64      `json:"durationSeconds"`
	Bounced       bool         `json:"bounced"`

	// Pages is the ordered sequence of page views, used to build goal
	// conversion paths at close time.
	Pages []string `json:"-"`
}

// SessionStats is the derived summary over closed and open sessions in a
// time range. BounceRate is computed, never stored per session.
type SessionStats struct {
	Count        int     `json:"count"`
	AvgDuration  float64 `json:"avgDuration"`
	AvgPageViews float64 `json:"avgPageViews"`
	BounceRate   float64 `json:"bounceRate"`
}
