package memory

import "sort"

var typePriority = map[StateItemType]int{
	StateDecision:   0,
	StateConstraint: 1,
	StateAction:     2,
	StateRisk:       3,
	StateQuestion:   4,
}

// SortForPrompt orders state items pinned-first, then by type priority,
// then by confidence descending, then by last-seen descending, exactly
// as the structured state block requires.
func SortForPrompt(items []StateItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if pa, pb := typePriority[a.Type], typePriority[b.Type]; pa != pb {
			return pa < pb
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.LastSeen.After(b.LastSeen)
	})
}
