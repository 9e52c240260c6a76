package assoc

import (
	"bytes"
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/basket-insights/internal/catalog"
	"github.com/dvloznov/basket-insights/internal/domain"
	"github.com/dvloznov/basket-insights/internal/store"
)

const pairCatalog = `product_id,category,unit_price
1,bread,2.50
2,butter,3.00
3,jam,4.00
`

// Three transactions over two categories: {bread}, {bread,butter}, {butter}.
// Record 4 resolves to nothing and must stay out of the universe.
const pairPurchases = `record_id,user_id,item_count,product_ids,total_amount,purchased_at,refunded
1,10,1,1,2.50,2025-11-01 08:00:00,no
2,11,2,"1,2",5.50,2025-11-02 08:00:00,no
3,12,1,2,3.00,2025-11-03 08:00:00,no
4,13,1,999,7.00,2025-11-04 08:00:00,no
`

func newTestEngine(t *testing.T, catalogCSV, purchasesCSV string) *Engine {
	t.Helper()
	ctx := context.Background()

	cat, err := catalog.Load(ctx, "products.csv", strings.NewReader(catalogCSV))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	st, err := store.Load(ctx, "purchases.csv", strings.NewReader(purchasesCSV))
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	return NewEngine(st, cat, zerolog.Nop())
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSupportConfidenceLift(t *testing.T) {
	e := newTestEngine(t, pairCatalog, pairPurchases)

	if got := e.TotalTransactions(); got != 3 {
		t.Fatalf("TotalTransactions = %d, want 3 (unresolvable record excluded)", got)
	}

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"support(bread)", e.Support("bread"), 2.0 / 3.0},
		{"support(butter)", e.Support("butter"), 2.0 / 3.0},
		{"support(bread,butter)", e.Support("bread", "butter"), 1.0 / 3.0},
		{"confidence(bread→butter)", e.Confidence("bread", "butter"), 0.5},
		{"confidence(butter→bread)", e.Confidence("butter", "bread"), 0.5},
		{"lift(bread,butter)", e.Lift("bread", "butter"), 0.75},
	}
	for _, tc := range cases {
		if !approx(tc.got, tc.want) {
			t.Errorf("%s = %g, want %g", tc.name, tc.got, tc.want)
		}
	}
}

func TestUnknownCategoryIsZero(t *testing.T) {
	e := newTestEngine(t, pairCatalog, pairPurchases)

	if got := e.Support("caviar"); got != 0 {
		t.Errorf("Support(unknown) = %g, want 0", got)
	}
	if got := e.Confidence("caviar", "bread"); got != 0 {
		t.Errorf("Confidence(unknown, bread) = %g, want 0", got)
	}
	if got := e.Lift("caviar", "bread"); got != 0 {
		t.Errorf("Lift(unknown, bread) = %g, want 0", got)
	}
}

func TestLiftSymmetry(t *testing.T) {
	e := newTestEngine(t, pairCatalog, pairPurchases)
	if a, b := e.Lift("bread", "butter"), e.Lift("butter", "bread"); !approx(a, b) {
		t.Errorf("Lift not symmetric: %g vs %g", a, b)
	}
}

func TestFrequentPairs(t *testing.T) {
	e := newTestEngine(t, pairCatalog, pairPurchases)

	report, err := e.FrequentPairs(context.Background(), Options{MinSupport: 0.25, MinConfidence: 0.4})
	if err != nil {
		t.Fatalf("FrequentPairs: %v", err)
	}

	if report.PairsEvaluated != 1 {
		t.Errorf("PairsEvaluated = %d, want 1", report.PairsEvaluated)
	}
	if len(report.Rules) != 1 {
		t.Fatalf("Rules = %+v, want exactly one admitted pair", report.Rules)
	}
	r := report.Rules[0]
	if r.CategoryA != "bread" || r.CategoryB != "butter" {
		t.Errorf("pair = %s/%s, want bread/butter", r.CategoryA, r.CategoryB)
	}
	if r.Transactions != 1 || !approx(r.Support, 1.0/3.0) {
		t.Errorf("support = %g over %d transactions, want 1/3 over 1", r.Support, r.Transactions)
	}
	if !approx(r.ConfidenceAToB, 0.5) || !approx(r.ConfidenceBToA, 0.5) {
		t.Errorf("confidences = %g/%g, want 0.5/0.5", r.ConfidenceAToB, r.ConfidenceBToA)
	}
	if !approx(r.Lift, 0.75) {
		t.Errorf("lift = %g, want 0.75", r.Lift)
	}
}

func TestFrequentPairsThresholdFiltering(t *testing.T) {
	e := newTestEngine(t, pairCatalog, pairPurchases)
	ctx := context.Background()

	// Support floor above the pair's 1/3 empties the admitted set but the
	// diagnostics still surface the pair.
	report, err := e.FrequentPairs(ctx, Options{MinSupport: 0.5, MinConfidence: 0.03})
	if err != nil {
		t.Fatalf("FrequentPairs: %v", err)
	}
	if len(report.Rules) != 0 {
		t.Errorf("Rules = %+v, want none above support 0.5", report.Rules)
	}
	if report.SupportPass != 0 || report.ConfidencePass != 1 {
		t.Errorf("pass counts = %d/%d, want 0 support, 1 confidence", report.SupportPass, report.ConfidencePass)
	}
	if len(report.TopPairs) != 1 {
		t.Errorf("TopPairs = %+v, want the bread/butter pair regardless of thresholds", report.TopPairs)
	}

	// Confidence floor above 0.5 also empties the set.
	report, err = e.FrequentPairs(ctx, Options{MinSupport: 0.001, MinConfidence: 0.6})
	if err != nil {
		t.Fatalf("FrequentPairs: %v", err)
	}
	if len(report.Rules) != 0 {
		t.Errorf("Rules = %+v, want none above confidence 0.6", report.Rules)
	}
}

func TestFrequentPairsNegativeThresholds(t *testing.T) {
	e := newTestEngine(t, pairCatalog, pairPurchases)
	ctx := context.Background()

	for _, opts := range []Options{
		{MinSupport: -0.1},
		{MinConfidence: -0.1},
	} {
		_, err := e.FrequentPairs(ctx, opts)
		var inputErr *domain.InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("FrequentPairs(%+v) error = %v, want InputError", opts, err)
		}
	}
}

// wideCatalog/widePurchases exercise multi-category ordering and the
// parallel path with more than one pair.
const wideCatalog = `product_id,category,unit_price
1,bread,2.50
2,butter,3.00
3,jam,4.00
4,coffee,9.00
5,milk,1.50
`

const widePurchases = `record_id,user_id,item_count,product_ids,total_amount,purchased_at,refunded
1,10,2,"1,2",5.50,2025-11-01 08:00:00,no
2,11,3,"1,2,3",9.50,2025-11-02 08:00:00,no
3,12,2,"4,5",10.50,2025-11-03 08:00:00,no
4,13,2,"1,3",6.50,2025-11-04 08:00:00,no
5,14,2,"4,5",10.50,2025-11-05 08:00:00,no
6,15,1,1,2.50,2025-11-06 08:00:00,no
7,16,2,"2,3",7.00,2025-11-07 08:00:00,no
8,17,3,"1,2,5",7.00,2025-11-08 08:00:00,no
`

func TestFrequentPairsParallelMatchesSequential(t *testing.T) {
	e := newTestEngine(t, wideCatalog, widePurchases)
	ctx := context.Background()
	opts := DefaultOptions()

	sequential, err := e.FrequentPairs(ctx, opts)
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}

	for _, workers := range []int{2, 4, 16} {
		opts.Workers = workers
		parallel, err := e.FrequentPairs(ctx, opts)
		if err != nil {
			t.Fatalf("parallel run (workers=%d): %v", workers, err)
		}
		if !reflect.DeepEqual(sequential, parallel) {
			t.Errorf("workers=%d output diverges from sequential run", workers)
		}
	}
}

func TestFrequentPairsOrdering(t *testing.T) {
	e := newTestEngine(t, wideCatalog, widePurchases)

	report, err := e.FrequentPairs(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("FrequentPairs: %v", err)
	}
	for i := 1; i < len(report.Rules); i++ {
		if report.Rules[i].Support > report.Rules[i-1].Support {
			t.Errorf("rules not sorted by support at %d: %g after %g",
				i, report.Rules[i].Support, report.Rules[i-1].Support)
		}
	}
}

func TestFrequentPairsIdempotent(t *testing.T) {
	e := newTestEngine(t, wideCatalog, widePurchases)
	ctx := context.Background()

	first, err := e.FrequentPairs(ctx, DefaultOptions())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := e.FrequentPairs(ctx, DefaultOptions())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated runs over the same engine diverge")
	}
}

func TestFrequentPairsCancelled(t *testing.T) {
	e := newTestEngine(t, wideCatalog, widePurchases)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	opts.Workers = 4
	if _, err := e.FrequentPairs(ctx, opts); !errors.Is(err, context.Canceled) {
		t.Errorf("FrequentPairs on cancelled context = %v, want context.Canceled", err)
	}
}

func TestStats(t *testing.T) {
	e := newTestEngine(t, wideCatalog, widePurchases)

	stats := e.Stats()
	if stats.Categories != 5 {
		t.Errorf("Categories = %d, want 5", stats.Categories)
	}
	if stats.Transactions != 8 {
		t.Errorf("Transactions = %d, want 8", stats.Transactions)
	}
	// 2+3+2+2+2+1+2+3 = 17 distinct category occurrences over 8 transactions.
	if !approx(stats.MeanCategoriesPerT, 17.0/8.0) {
		t.Errorf("MeanCategoriesPerT = %g, want %g", stats.MeanCategoriesPerT, 17.0/8.0)
	}
	if len(stats.TopCategories) != 5 {
		t.Fatalf("TopCategories = %+v, want 5 entries", stats.TopCategories)
	}
	if stats.TopCategories[0].Category != "bread" || stats.TopCategories[0].Transactions != 5 {
		t.Errorf("top category = %+v, want bread in 5 transactions", stats.TopCategories[0])
	}
	for i := 1; i < len(stats.TopCategories); i++ {
		if stats.TopCategories[i].Transactions > stats.TopCategories[i-1].Transactions {
			t.Errorf("TopCategories not sorted at %d", i)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	rules := []Rule{
		{CategoryA: "bread", CategoryB: "butter", Support: 1.0 / 3.0, ConfidenceAToB: 0.5, ConfidenceBToA: 0.5, Lift: 0.75, Transactions: 1},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rules); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "category_a,category_b,support,confidence_a_to_b,confidence_b_to_a,lift\n" +
		"bread,butter,0.3333,0.5000,0.5000,0.7500\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteCSV output:\n%s\nwant:\n%s", got, want)
	}
}
