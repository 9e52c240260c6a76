// Package assoc mines category-level association rules from the transaction
// store: which product categories tend to be bought together, and how strongly
// one predicts the other.
package assoc

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/dvloznov/basket-insights/internal/catalog"
	"github.com/dvloznov/basket-insights/internal/store"
)

// Engine holds the category co-occurrence index for one loaded dataset. The
// index is immutable after NewEngine, so all query methods are safe for
// concurrent use. Rebuilding after a data refresh means constructing a new
// Engine and swapping the handle.
type Engine struct {
	log zerolog.Logger

	// categories in first-seen order; drives deterministic pair enumeration.
	categories []string
	// members maps a category to the set of transaction record ids
	// containing at least one product of that category.
	members map[string]map[int64]struct{}
	// universe is the number of transactions with at least one resolvable
	// category. Transactions resolving to nothing do not count.
	universe int
	// categoriesPerTx accumulates the distinct-category count of every
	// universe transaction, for the mean in Stats.
	categoriesPerTx int
}

// NewEngine indexes every transaction in the store by the distinct categories
// its items resolve to. Product ids absent from the catalog are logged and
// skipped; a transaction whose items resolve to no category at all is
// excluded from the universe entirely.
func NewEngine(st *store.Store, cat *catalog.Index, log zerolog.Logger) *Engine {
	e := &Engine{
		log:     log,
		members: make(map[string]map[int64]struct{}),
	}

	for _, tx := range st.All() {
		seen := make(map[string]struct{}, len(tx.ProductIDs))
		for _, id := range tx.ProductIDs {
			category, ok := cat.CategoryOf(id)
			if !ok {
				log.Warn().Int64("product_id", id).Int64("record_id", tx.RecordID).
					Msg("Product id not in catalog, skipping for association index")
				continue
			}
			if _, dup := seen[category]; dup {
				continue
			}
			seen[category] = struct{}{}

			set, ok := e.members[category]
			if !ok {
				set = make(map[int64]struct{})
				e.members[category] = set
				e.categories = append(e.categories, category)
			}
			set[tx.RecordID] = struct{}{}
		}
		if len(seen) > 0 {
			e.universe++
			e.categoriesPerTx += len(seen)
		}
	}

	log.Info().
		Int("categories", len(e.categories)).
		Int("transactions", e.universe).
		Msg("Association index built")

	return e
}

// TotalTransactions is the size of the universe: transactions with at least
// one resolvable category.
func (e *Engine) TotalTransactions() int {
	return e.universe
}

// Categories returns the indexed categories in first-seen order.
func (e *Engine) Categories() []string {
	out := make([]string, len(e.categories))
	copy(out, e.categories)
	return out
}

// Support is the fraction of the universe containing every given category.
// An unknown category or an empty universe yields 0.
func (e *Engine) Support(categories ...string) float64 {
	return float64(e.intersectionSize(categories...)) / float64(max(e.universe, 1))
}

// Confidence is support(antecedent ∪ consequent) / support(antecedent),
// the probability of seeing the consequent given the antecedent. Zero when
// the antecedent never occurs.
func (e *Engine) Confidence(antecedent, consequent string) float64 {
	base := e.intersectionSize(antecedent)
	if base == 0 {
		return 0
	}
	return float64(e.intersectionSize(antecedent, consequent)) / float64(base)
}

// Lift is support(a ∪ b) / (support(a) · support(b)). Above 1 the pair
// co-occurs more than independence predicts. Zero when either marginal is 0.
func (e *Engine) Lift(a, b string) float64 {
	sa, sb := e.Support(a), e.Support(b)
	if sa == 0 || sb == 0 {
		return 0
	}
	return e.Support(a, b) / (sa * sb)
}

// intersectionSize counts transactions containing every given category,
// walking the smallest member set and probing the rest.
func (e *Engine) intersectionSize(categories ...string) int {
	if len(categories) == 0 {
		return 0
	}

	sets := make([]map[int64]struct{}, 0, len(categories))
	for _, c := range categories {
		set, ok := e.members[c]
		if !ok {
			return 0
		}
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })

	count := 0
outer:
	for id := range sets[0] {
		for _, set := range sets[1:] {
			if _, ok := set[id]; !ok {
				continue outer
			}
		}
		count++
	}
	return count
}

// CategoryCount is one entry of the per-category transaction ranking.
type CategoryCount struct {
	Category     string  `json:"category"`
	Transactions int     `json:"transactions"`
	Support      float64 `json:"support"`
}

// DatasetStats describes the indexed dataset.
type DatasetStats struct {
	Categories         int             `json:"categories"`
	Transactions       int             `json:"transactions"`
	MeanCategoriesPerT float64         `json:"mean_categories_per_transaction"`
	TopCategories      []CategoryCount `json:"top_categories"`
}

// Stats summarizes the indexed dataset: universe size, category count, mean
// distinct categories per transaction, and the ten categories present in the
// most transactions.
func (e *Engine) Stats() DatasetStats {
	stats := DatasetStats{
		Categories:   len(e.categories),
		Transactions: e.universe,
	}
	if e.universe > 0 {
		stats.MeanCategoriesPerT = float64(e.categoriesPerTx) / float64(e.universe)
	}

	ranked := make([]CategoryCount, 0, len(e.categories))
	for _, c := range e.categories {
		n := len(e.members[c])
		ranked = append(ranked, CategoryCount{
			Category:     c,
			Transactions: n,
			Support:      float64(n) / float64(max(e.universe, 1)),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Transactions > ranked[j].Transactions
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	stats.TopCategories = ranked

	return stats
}
