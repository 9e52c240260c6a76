package recommend

import "sort"

// Suggestion is one locally computed cross-sell idea, no model call needed.
type Suggestion struct {
	Category string  `json:"category"`
	Because  string  `json:"because"`
	Support  float64 `json:"support"`
}

// SmartSuggestions proposes categories the shopper has not explored yet:
// for each mined pairing where exactly one side is among the shopper's top
// categories, the other side becomes a candidate. Candidates rank by
// support; repeats keep their strongest pairing.
func SmartSuggestions(profile Profile, assocs []Association, limit int) []Suggestion {
	if limit <= 0 {
		limit = 5
	}

	owned := make(map[string]struct{}, len(profile.TopCategories))
	for _, c := range profile.TopCategories {
		owned[c.Category] = struct{}{}
	}

	best := make(map[string]Suggestion)
	var order []string
	consider := func(candidate, anchor string, support float64) {
		cur, seen := best[candidate]
		if !seen {
			order = append(order, candidate)
		}
		if !seen || support > cur.Support {
			best[candidate] = Suggestion{
				Category: candidate,
				Because:  anchor,
				Support:  support,
			}
		}
	}

	for _, a := range assocs {
		_, hasA := owned[a.CategoryA]
		_, hasB := owned[a.CategoryB]
		switch {
		case hasA && !hasB:
			consider(a.CategoryB, a.CategoryA, a.Support)
		case hasB && !hasA:
			consider(a.CategoryA, a.CategoryB, a.Support)
		}
	}

	out := make([]Suggestion, 0, len(order))
	for _, c := range order {
		out = append(out, best[c])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Support > out[j].Support })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
