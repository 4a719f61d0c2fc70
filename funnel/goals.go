package funnel

import (
	"sort"

	"craftfolio/analytics/models"
)

// Goals extracts goal conversions from a window's event stream. A goal is
// recorded at most once per (actor, goal name) in the window; the
// conversion path is the ordered list of pages the actor's session viewed
// before the completion. When the configured goal list is non-empty it acts
// as an allow list.
func Goals(events []models.Event, configured []string) ([]models.GoalStats, []models.GoalConversion) {
	allowed := make(map[string]struct{}, len(configured))
	for _, g := range configured {
		allowed[g] = struct{}{}
	}

	// Page sequences per session, in stream order.
	type pagedView struct {
		page string
		at   int64
	}
	pages := make(map[string][]pagedView)
	for _, e := range events {
		if e.IsPageView() {
			if p := e.Page(); p != "" {
				pages[e.SessionID] = append(pages[e.SessionID], pagedView{page: p, at: e.Timestamp.UnixNano()})
			}
		}
	}

	seen := make(map[string]struct{})
	var conversions []models.GoalConversion
	for _, e := range events {
		if e.Name != models.EventGoalCompleted {
			continue
		}
		goal := e.StringProp("goal")
		if goal == "" {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[goal]; !ok {
				continue
			}
		}
		key := actorID(&e) + "\x00" + goal
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		var path []string
		for _, pv := range pages[e.SessionID] {
			if pv.at < e.Timestamp.UnixNano() {
				path = append(path, pv.page)
			}
		}

		value, _ := e.FloatProp("value")
		revenue, _ := e.FloatProp("revenue")
		conversions = append(conversions, models.GoalConversion{
			Goal:           goal,
			UserID:         e.UserID,
			SessionID:      e.SessionID,
			Value:          value,
			Revenue:        revenue,
			ConversionPath: path,
			Timestamp:      e.Timestamp,
		})
	}

	byGoal := make(map[string]*models.GoalStats)
	uniques := make(map[string]map[string]struct{})
	for _, c := range conversions {
		st, ok := byGoal[c.Goal]
		if !ok {
			st = &models.GoalStats{Goal: c.Goal}
			byGoal[c.Goal] = st
			uniques[c.Goal] = make(map[string]struct{})
		}
		st.Completions++
		st.TotalValue += c.Value
		st.TotalRevenue += c.Revenue
		actor := c.UserID
		if actor == "" {
			actor = c.SessionID
		}
		uniques[c.Goal][actor] = struct{}{}
	}

	stats := make([]models.GoalStats, 0, len(byGoal))
	for goal, st := range byGoal {
		st.UniqueUsers = len(uniques[goal])
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Completions != stats[j].Completions {
			return stats[i].Completions > stats[j].Completions
		}
		return stats[i].Goal < stats[j].Goal
	})
	return stats, conversions
}
