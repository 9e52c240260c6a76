// Package habits derives per-user purchase behavior summaries over a date
// window from the loaded transaction store and product catalog.
package habits

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/basket-insights/internal/catalog"
	"github.com/dvloznov/basket-insights/internal/domain"
	"github.com/dvloznov/basket-insights/internal/store"
)

// Default analysis window when the caller does not supply one.
const (
	DefaultWindowStart = "2025-11-01"
	DefaultWindowEnd   = "2026-01-31"

	// DateLayout is the calendar-date format accepted for window bounds.
	DateLayout = "2006-01-02"
)

// frequentProductMin is the occurrence floor for a product to count as
// frequently purchased.
const frequentProductMin = 3

// topCategoryCount caps the preferred-category listing.
const topCategoryCount = 5

// Summary is the structured result of one habit analysis. All fields are
// plain data so downstream consumers (report printers, the recommendation
// orchestrator) need no dependency on this package's internals.
type Summary struct {
	UserID             int64           `json:"user_id"`
	Period             string          `json:"period"`
	TotalOrders        int             `json:"total_orders"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	AvgOrderAmount     decimal.Decimal `json:"avg_order_amount"`
	FrequentProducts   []ProductCount  `json:"frequent_products"`
	FrequentCategories []CategoryShare `json:"frequent_categories"`
	CategorySpending   []CategorySpend `json:"category_avg_spending"`
	Timeline           []TimelineEntry `json:"purchase_timeline"`

	// Message explains a valid empty result. Empty when there was activity.
	Message string `json:"message,omitempty"`
}

// ProductCount is one frequently purchased product.
type ProductCount struct {
	ProductID int64  `json:"product_id"`
	Label     string `json:"label"` // category label, or a placeholder for unresolved ids
	Count     int    `json:"count"`
}

// CategoryShare is one preferred category with its share of all resolved item
// occurrences.
type CategoryShare struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // of resolved occurrences, 1 decimal place
}

// CategorySpend is the unit-price spend profile of one preferred category.
type CategorySpend struct {
	Category   string          `json:"category"`
	AvgSpend   decimal.Decimal `json:"avg_spending"`
	TotalSpend decimal.Decimal `json:"total_spending"`
	Count      int             `json:"count"`
}

// TimelineEntry is one purchase in the ascending-by-date timeline.
type TimelineEntry struct {
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	ItemCount int             `json:"item_count"`
}

// Analyzer answers habit queries against one loaded store/catalog pair. The
// caller owns the handle and may share it: every query is a read-only
// projection, so concurrent Analyze calls are safe.
type Analyzer struct {
	store   *store.Store
	catalog *catalog.Index
	log     zerolog.Logger
}

// NewAnalyzer builds an analyzer over an already-loaded store and catalog.
func NewAnalyzer(st *store.Store, cat *catalog.Index, log zerolog.Logger) *Analyzer {
	return &Analyzer{store: st, catalog: cat, log: log}
}

// ParseWindow turns caller-supplied date strings into an inclusive window.
// Empty strings select the default window. The end bound covers the whole
// end day. Unparsable input or a reversed window is an InputError.
func ParseWindow(startStr, endStr string) (start, end time.Time, err error) {
	if startStr == "" {
		startStr = DefaultWindowStart
	}
	if endStr == "" {
		endStr = DefaultWindowEnd
	}

	start, err = time.Parse(DateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewInputError("start_date", "%q is not a YYYY-MM-DD date", startStr)
	}
	end, err = time.Parse(DateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewInputError("end_date", "%q is not a YYYY-MM-DD date", endStr)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, domain.NewInputError("window", "end date %s before start date %s", endStr, startStr)
	}

	// Include the entire end day.
	end = end.Add(24*time.Hour - time.Second)
	return start, end, nil
}

// Analyze computes the habit summary of one user over [start, end]. A window
// with no matching transactions is a valid empty Summary carrying an
// explanatory message, not an error.
func (a *Analyzer) Analyze(userID int64, start, end time.Time) (*Summary, error) {
	if userID <= 0 {
		return nil, domain.NewInputError("user_id", "must be a positive integer, got %d", userID)
	}
	if end.Before(start) {
		return nil, domain.NewInputError("window", "end %s before start %s",
			end.Format(DateLayout), start.Format(DateLayout))
	}

	period := fmt.Sprintf("%s to %s", start.Format(DateLayout), end.Format(DateLayout))
	txs := a.store.Filter(userID, start, end)

	if len(txs) == 0 {
		return &Summary{
			UserID:             userID,
			Period:             period,
			TotalAmount:        decimal.Zero,
			AvgOrderAmount:     decimal.Zero,
			FrequentProducts:   []ProductCount{},
			FrequentCategories: []CategoryShare{},
			CategorySpending:   []CategorySpend{},
			Timeline:           []TimelineEntry{},
			Message:            "no valid purchase records in the selected window",
		}, nil
	}

	summary := &Summary{
		UserID:      userID,
		Period:      period,
		TotalOrders: len(txs),
	}

	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.TotalAmount)
	}
	summary.TotalAmount = total.Round(2)
	summary.AvgOrderAmount = total.Div(decimal.NewFromInt(int64(len(txs)))).Round(2)

	occ := a.collectOccurrences(txs)
	summary.FrequentProducts = occ.frequentProducts()
	summary.FrequentCategories, summary.CategorySpending = occ.topCategories()
	summary.Timeline = timeline(txs)

	a.log.Debug().
		Int64("user_id", userID).
		Int("orders", summary.TotalOrders).
		Str("period", period).
		Msg("Habit summary computed")

	return summary, nil
}

// occurrences accumulates per-product and per-category counts across every
// item occurrence in the user's transactions, preserving first-seen order so
// ties rank deterministically.
type occurrences struct {
	catalog *catalog.Index
	log     zerolog.Logger

	productCount map[int64]int
	productOrder []int64

	categoryCount map[string]int
	categoryOrder []string
	categorySpend map[string]decimal.Decimal
	resolvedTotal int
}

func (a *Analyzer) collectOccurrences(txs []domain.Transaction) *occurrences {
	occ := &occurrences{
		catalog:       a.catalog,
		log:           a.log,
		productCount:  make(map[int64]int),
		categoryCount: make(map[string]int),
		categorySpend: make(map[string]decimal.Decimal),
	}

	for _, tx := range txs {
		for _, id := range tx.ProductIDs {
			if occ.productCount[id] == 0 {
				occ.productOrder = append(occ.productOrder, id)
			}
			occ.productCount[id]++

			cat, ok := a.catalog.CategoryOf(id)
			if !ok {
				// Unresolved ids are excluded from category and price
				// aggregation; the transaction totals above already counted
				// the record.
				a.log.Warn().Int64("product_id", id).Int64("record_id", tx.RecordID).
					Msg("Product id not in catalog, skipping category attribution")
				continue
			}

			if occ.categoryCount[cat] == 0 {
				occ.categoryOrder = append(occ.categoryOrder, cat)
			}
			occ.categoryCount[cat]++
			occ.resolvedTotal++

			price, _ := a.catalog.PriceOf(id)
			occ.categorySpend[cat] = occ.categorySpend[cat].Add(price)
		}
	}

	return occ
}

func (occ *occurrences) frequentProducts() []ProductCount {
	out := make([]ProductCount, 0)
	for _, id := range occ.productOrder {
		count := occ.productCount[id]
		if count < frequentProductMin {
			continue
		}
		label, ok := occ.catalog.CategoryOf(id)
		if !ok {
			label = fmt.Sprintf("unknown product (%d)", id)
		}
		out = append(out, ProductCount{ProductID: id, Label: label, Count: count})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func (occ *occurrences) topCategories() ([]CategoryShare, []CategorySpend) {
	ranked := make([]string, len(occ.categoryOrder))
	copy(ranked, occ.categoryOrder)
	sort.SliceStable(ranked, func(i, j int) bool {
		return occ.categoryCount[ranked[i]] > occ.categoryCount[ranked[j]]
	})
	if len(ranked) > topCategoryCount {
		ranked = ranked[:topCategoryCount]
	}

	shares := make([]CategoryShare, 0, len(ranked))
	spends := make([]CategorySpend, 0, len(ranked))
	for _, cat := range ranked {
		count := occ.categoryCount[cat]

		percentage := 0.0
		if occ.resolvedTotal > 0 {
			percentage = round1(float64(count) / float64(occ.resolvedTotal) * 100)
		}
		shares = append(shares, CategoryShare{Category: cat, Count: count, Percentage: percentage})

		sum := occ.categorySpend[cat]
		spends = append(spends, CategorySpend{
			Category:   cat,
			AvgSpend:   sum.Div(decimal.NewFromInt(int64(count))).Round(2),
			TotalSpend: sum.Round(2),
			Count:      count,
		})
	}
	return shares, spends
}

func timeline(txs []domain.Transaction) []TimelineEntry {
	ordered := make([]domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PurchasedAt.Before(ordered[j].PurchasedAt)
	})

	out := make([]TimelineEntry, 0, len(ordered))
	for _, tx := range ordered {
		out = append(out, TimelineEntry{
			Date:      tx.PurchasedAt.Format(DateLayout),
			Amount:    tx.TotalAmount,
			ItemCount: tx.ItemCount,
		})
	}
	return out
}

// Users lists up to limit distinct user ids, for discovery surfaces.
func (a *Analyzer) Users(limit int) []int64 {
	return a.store.Users(limit)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
