package aggregate

import (
	"sort"
	"strings"

	"craftfolio/analytics/config"
	"craftfolio/analytics/models"
)

// Traffic source labels for the unmatched and no-referrer cases.
const (
	SourceDirect = "Direct"
	SourceOther  = "Other"
)

// ClassifySource maps a referrer to a traffic source label. The pattern
// list is ordered and the first match wins; an empty referrer is Direct and
// anything unmatched is Other.
func ClassifySource(referrer string, patterns []config.SourcePattern) string {
	ref := strings.ToLower(strings.TrimSpace(referrer))
	if ref == "" {
		return SourceDirect
	}
	for _, p := range patterns {
		if strings.Contains(ref, strings.ToLower(p.Match)) {
			return p.Source
		}
	}
	return SourceOther
}

// TopN ranks grouped counts descending and truncates to n. Ties break on
// the key's lexical order so results are deterministic.
func TopN(counts map[string]int, n int) []models.CountedItem {
	items := make([]models.CountedItem, 0, len(counts))
	for k, c := range counts {
		items = append(items, models.CountedItem{Key: k, Count: c})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Key < items[j].Key
	})
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items
}
