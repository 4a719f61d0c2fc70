package funnel

import (
	"context"
	"fmt"

	"craftfolio/analytics/config"
	"craftfolio/analytics/models"
	"craftfolio/analytics/store"
)

// Analyzer computes step-through conversion over the raw event stream.
//
// Steps are independent "who did X in range" sets: step order comes from
// configuration, and a user counts toward step 2 even if their step-2 event
// happened before their step-1 event. That can overstate conversion for
// non-sequential behavior; it is a deliberate simplification.
type Analyzer struct {
	store store.EventStore
}

func NewAnalyzer(s store.EventStore) *Analyzer {
	return &Analyzer{store: s}
}

// ComputeRates derives conversion and drop-off per step from distinct user
// counts. Step 0 converts at 1.0 by convention; later steps divide by the
// previous step's count, yielding 0 when that count is 0.
func ComputeRates(stepUsers []int) (conversion, dropoff []float64) {
	conversion = make([]float64, len(stepUsers))
	dropoff = make([]float64, len(stepUsers))
	for i := range stepUsers {
		if i == 0 {
			conversion[i] = 1.0
			dropoff[i] = 0
			continue
		}
		if stepUsers[i-1] > 0 {
			conversion[i] = float64(stepUsers[i]) / float64(stepUsers[i-1])
		}
		dropoff[i] = 1 - conversion[i]
	}
	return conversion, dropoff
}

// Analyze computes one configured funnel for the window. Each step queries
// the event store for its event name; failures propagate so the caller can
// mark the conversions section as partial.
func (a *Analyzer) Analyze(ctx context.Context, cfg config.FunnelConfig, window models.TimeRange) (*models.FunnelResult, error) {
	stepUsers := make([]int, len(cfg.Steps))
	for i, step := range cfg.Steps {
		events, err := a.store.Query(ctx, store.Filter{
			Start: window.Start,
			End:   window.End,
			Names: []string{step.Event},
		})
		if err != nil {
			return nil, fmt.Errorf("funnel %q step %q: %w", cfg.Name, step.Event, err)
		}
		users := make(map[string]struct{})
		for _, e := range events {
			users[actorID(&e)] = struct{}{}
		}
		stepUsers[i] = len(users)
	}

	conversion, dropoff := ComputeRates(stepUsers)

	result := &models.FunnelResult{
		Name:  cfg.Name,
		Steps: make([]models.FunnelStepResult, len(cfg.Steps)),
	}
	for i, step := range cfg.Steps {
		result.Steps[i] = models.FunnelStepResult{
			Name:           step.Name,
			Event:          step.Event,
			Users:          stepUsers[i],
			ConversionRate: conversion[i],
			DropoffRate:    dropoff[i],
		}
	}
	if len(stepUsers) > 0 {
		result.EnteredUsers = stepUsers[0]
		result.ConvertedUsers = stepUsers[len(stepUsers)-1]
		if result.EnteredUsers > 0 {
			result.OverallRate = float64(result.ConvertedUsers) / float64(result.EnteredUsers)
		}
	}
	return result, nil
}

// actorID identifies the distinct actor behind an event: the user id when
// known, otherwise the session id.
func actorID(e *models.Event) string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.SessionID
}
