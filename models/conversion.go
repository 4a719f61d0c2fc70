package models

import "time"

// GoalConversion records one completion of a named business goal. Immutable
// once created; at most one per (userId, goal) within an aggregation window.
type GoalConversion struct {
	Goal           string    `json:"goal"`
	UserID         string    `json:"userId"`
	SessionID      string    `json:"sessionId"`
	Value          float64   `json:"value,omitempty"`
	Revenue        float64   `json:"revenue,omitempty"`
	ConversionPath []string  `json:"conversionPath"`
	Timestamp      time.Time `json:"timestamp"`
}

// GoalStats aggregates completions for one goal across a window.
type GoalStats struct {
	Goal         string  `json:"goal"`
	Completions  int     `json:"completions"`
	TotalValue   float64 `json:"totalValue"`
	TotalRevenue float64 `json:"totalRevenue"`
	UniqueUsers  int     `json:"uniqueUsers"`
}

// FunnelStep is one configured milestone in an ordered funnel.
type FunnelStep struct {
	Name  string `json:"name" yaml:"name"`
	Event string `json:"event" yaml:"event"`
}

// FunnelStepResult is the computed pass-through for one step.
type FunnelStepResult struct {
	Name           string  `json:"name"`
	Event          string  `json:"event"`
	Users          int     `json:"users"`
	ConversionRate float64 `json:"conversionRate"`
	DropoffRate    float64 `json:"dropoffRate"`
}

// FunnelResult is the full funnel computation for a window.
type FunnelResult struct {
	Name           string             `json:"name"`
	Steps          []FunnelStepResult `json:"steps"`
	OverallRate    float64            `json:"overallRate"`
	EnteredUsers   int                `json:"enteredUsers"`
	ConvertedUsers int                `json:"convertedUsers"`
}
