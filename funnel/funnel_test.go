package funnel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftfolio/analytics/config"
	"craftfolio/analytics/models"
	"craftfolio/analytics/store"
)

func TestComputeRates(t *testing.T) {
	conversion, dropoff := ComputeRates([]int{1000, 400, 100, 20})

	assert.Equal(t, []float64{1.0, 0.4, 0.25, 0.2}, conversion)
	assert.Equal(t, []float64{0, 0.6, 0.75, 0.8}, dropoff)
}

func TestComputeRatesEmptyPreviousStep(t *testing.T) {
	conversion, dropoff := ComputeRates([]int{0, 5})

	assert.Equal(t, []float64{1.0, 0}, conversion)
	assert.Equal(t, []float64{0, 1}, dropoff)
}

func TestAnalyzeCountsDistinctUsersPerStep(t *testing.T) {
	s := store.NewMemoryStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	window := models.TimeRange{Start: base, End: base.Add(24 * time.Hour)}

	var events []models.Event
	addStep := func(event string, users int) {
		for i := 0; i < users; i++ {
			events = append(events, models.Event{
				Name:      event,
				SessionID: fmt.Sprintf("sess-%s-%d", event, i),
				UserID:    fmt.Sprintf("user-%d", i),
				Timestamp: base.Add(time.Minute),
			})
		}
	}
	addStep("page_view", 10)
	addStep("signup_started", 4)
	addStep("goal_completed", 1)
	// A repeated event from the same user must not inflate the step.
	events = append(events, models.Event{
		Name: "signup_started", SessionID: "dup", UserID: "user-0",
		Timestamp: base.Add(2 * time.Minute),
	})
	require.NoError(t, s.AppendBatch(context.Background(), events))

	cfg := config.FunnelConfig{
		Name: "signup",
		Steps: []models.FunnelStep{
			{Name: "Visited", Event: "page_view"},
			{Name: "Started", Event: "signup_started"},
			{Name: "Completed", Event: "goal_completed"},
		},
	}

	a := NewAnalyzer(s)
	result, err := a.Analyze(context.Background(), cfg, window)
	require.NoError(t, err)

	require.Len(t, result.Steps, 3)
	assert.Equal(t, 10, result.Steps[0].Users)
	assert.Equal(t, 4, result.Steps[1].Users)
	assert.Equal(t, 1, result.Steps[2].Users)
	assert.Equal(t, 1.0, result.Steps[0].ConversionRate)
	assert.Equal(t, 0.4, result.Steps[1].ConversionRate)
	assert.Equal(t, 0.25, result.Steps[2].ConversionRate)
	assert.Equal(t, 10, result.EnteredUsers)
	assert.Equal(t, 1, result.ConvertedUsers)
	assert.Equal(t, 0.1, result.OverallRate)
}

func TestGoalsDedupeAndPath(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	events := []models.Event{
		{Name: models.EventPageView, SessionID: "s1", UserID: "u1", Timestamp: base, PagePath: "/home"},
		{Name: models.EventPageView, SessionID: "s1", UserID: "u1", Timestamp: base.Add(5 * time.Second), PagePath: "/pricing"},
		{
			Name: models.EventGoalCompleted, SessionID: "s1", UserID: "u1",
			Timestamp:  base.Add(10 * time.Second),
			Properties: map[string]interface{}{"goal": "signup", "value": 10.0},
		},
		// Duplicate completion by the same user is ignored.
		{
			Name: models.EventGoalCompleted, SessionID: "s1", UserID: "u1",
			Timestamp:  base.Add(20 * time.Second),
			Properties: map[string]interface{}{"goal": "signup"},
		},
		{
			Name: models.EventGoalCompleted, SessionID: "s2", UserID: "u2",
			Timestamp:  base.Add(30 * time.Second),
			Properties: map[string]interface{}{"goal": "signup", "revenue": 49.0},
		},
	}

	stats, conversions := Goals(events, []string{"signup"})

	require.Len(t, conversions, 2)
	assert.Equal(t, []string{"/home", "/pricing"}, conversions[0].ConversionPath)

	require.Len(t, stats, 1)
	assert.Equal(t, "signup", stats[0].Goal)
	assert.Equal(t, 2, stats[0].Completions)
	assert.Equal(t, 10.0, stats[0].TotalValue)
	assert.Equal(t, 49.0, stats[0].TotalRevenue)
	assert.Equal(t, 2, stats[0].UniqueUsers)
}

func TestGoalsAllowListAndSorting(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mk := func(user, goal string) models.Event {
		return models.Event{
			Name: models.EventGoalCompleted, SessionID: "s-" + user, UserID: user,
			Timestamp:  base,
			Properties: map[string]interface{}{"goal": goal},
		}
	}
	events := []models.Event{
		mk("u1", "purchase"), mk("u2", "purchase"),
		mk("u3", "signup"),
		mk("u4", "untracked"),
	}

	stats, _ := Goals(events, []string{"signup", "purchase"})

	require.Len(t, stats, 2)
	assert.Equal(t, "purchase", stats[0].Goal, "sorted by completions descending")
	assert.Equal(t, "signup", stats[1].Goal)
}
