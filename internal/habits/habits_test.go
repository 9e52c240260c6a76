package habits

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/basket-insights/internal/catalog"
	"github.com/dvloznov/basket-insights/internal/domain"
	"github.com/dvloznov/basket-insights/internal/store"
)

const sampleCatalog = `product_id,category,unit_price
101,coffee beans,18.50
102,pastry,4.25
103,tea,9.00
104,chocolate,6.75
`

// User 42 has five valid purchases in the default window plus one refunded
// order that must be ignored. Product 999 is deliberately absent from the
// catalog.
const samplePurchases = `record_id,user_id,item_count,product_ids,total_amount,purchased_at,refunded
1,42,2,"101,102",22.75,2025-11-03 10:00:00,no
2,42,1,101,18.50,2025-11-10 09:30:00,no
3,42,2,"101,103",27.50,2025-12-01 12:00:00,no
4,42,2,"102,999",10.00,2025-12-15 15:00:00,no
5,42,2,"102,104",11.00,2026-01-05 08:00:00,no
6,42,1,104,6.75,2025-11-20 11:00:00,yes
`

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	ctx := context.Background()

	cat, err := catalog.Load(ctx, "products.csv", strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	st, err := store.Load(ctx, "purchases.csv", strings.NewReader(samplePurchases))
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	return NewAnalyzer(st, cat, zerolog.Nop())
}

func defaultWindow(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	start, end, err := ParseWindow("", "")
	if err != nil {
		t.Fatalf("ParseWindow defaults: %v", err)
	}
	return start, end
}

func TestAnalyze(t *testing.T) {
	a := newTestAnalyzer(t)
	start, end := defaultWindow(t)

	s, err := a.Analyze(42, start, end)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if s.TotalOrders != 5 {
		t.Errorf("TotalOrders = %d, want 5 (refunded order must be excluded)", s.TotalOrders)
	}
	if got := s.TotalAmount.String(); got != "89.75" {
		t.Errorf("TotalAmount = %s, want 89.75", got)
	}
	if got := s.AvgOrderAmount.String(); got != "17.95" {
		t.Errorf("AvgOrderAmount = %s, want 17.95", got)
	}
	if s.Message != "" {
		t.Errorf("Message = %q, want empty for a non-empty window", s.Message)
	}
}

func TestAnalyzeFrequentProducts(t *testing.T) {
	a := newTestAnalyzer(t)
	start, end := defaultWindow(t)

	s, err := a.Analyze(42, start, end)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Products 101 and 102 appear three times each; everything else is below
	// the floor. The tie keeps first-purchase order.
	if len(s.FrequentProducts) != 2 {
		t.Fatalf("FrequentProducts = %+v, want 2 entries", s.FrequentProducts)
	}
	if s.FrequentProducts[0].ProductID != 101 || s.FrequentProducts[0].Count != 3 {
		t.Errorf("first frequent product = %+v, want product 101 count 3", s.FrequentProducts[0])
	}
	if s.FrequentProducts[1].ProductID != 102 || s.FrequentProducts[1].Count != 3 {
		t.Errorf("second frequent product = %+v, want product 102 count 3", s.FrequentProducts[1])
	}
	if s.FrequentProducts[0].Label != "coffee beans" {
		t.Errorf("label = %q, want catalog category", s.FrequentProducts[0].Label)
	}
}

func TestAnalyzeCategories(t *testing.T) {
	a := newTestAnalyzer(t)
	start, end := defaultWindow(t)

	s, err := a.Analyze(42, start, end)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Eight resolved occurrences; product 999 must not contribute a category.
	wantShares := []CategoryShare{
		{Category: "coffee beans", Count: 3, Percentage: 37.5},
		{Category: "pastry", Count: 3, Percentage: 37.5},
		{Category: "tea", Count: 1, Percentage: 12.5},
		{Category: "chocolate", Count: 1, Percentage: 12.5},
	}
	if len(s.FrequentCategories) != len(wantShares) {
		t.Fatalf("FrequentCategories = %+v, want %d entries", s.FrequentCategories, len(wantShares))
	}
	for i, want := range wantShares {
		if s.FrequentCategories[i] != want {
			t.Errorf("FrequentCategories[%d] = %+v, want %+v", i, s.FrequentCategories[i], want)
		}
	}

	if len(s.CategorySpending) != 4 {
		t.Fatalf("CategorySpending = %+v, want 4 entries", s.CategorySpending)
	}
	coffee := s.CategorySpending[0]
	if coffee.Category != "coffee beans" || coffee.AvgSpend.String() != "18.5" || coffee.TotalSpend.String() != "55.5" {
		t.Errorf("coffee spending = %+v, want avg 18.5 total 55.5", coffee)
	}
}

func TestAnalyzeTimeline(t *testing.T) {
	a := newTestAnalyzer(t)
	start, end := defaultWindow(t)

	s, err := a.Analyze(42, start, end)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(s.Timeline) != 5 {
		t.Fatalf("Timeline has %d entries, want 5", len(s.Timeline))
	}
	for i := 1; i < len(s.Timeline); i++ {
		if s.Timeline[i].Date < s.Timeline[i-1].Date {
			t.Errorf("timeline out of order at %d: %s after %s", i, s.Timeline[i].Date, s.Timeline[i-1].Date)
		}
	}
	if s.Timeline[0].Date != "2025-11-03" || s.Timeline[4].Date != "2026-01-05" {
		t.Errorf("timeline bounds = %s..%s, want 2025-11-03..2026-01-05", s.Timeline[0].Date, s.Timeline[4].Date)
	}
}

func TestAnalyzeZeroActivity(t *testing.T) {
	a := newTestAnalyzer(t)
	start, end := defaultWindow(t)

	s, err := a.Analyze(500, start, end)
	if err != nil {
		t.Fatalf("Analyze with no activity must not error, got %v", err)
	}
	if s.TotalOrders != 0 || !s.TotalAmount.IsZero() || !s.AvgOrderAmount.IsZero() {
		t.Errorf("zero-activity summary carries totals: %+v", s)
	}
	if s.Message == "" {
		t.Error("zero-activity summary must carry an explanatory message")
	}
	if s.FrequentProducts == nil || s.Timeline == nil {
		t.Error("zero-activity summary slices must be empty, not nil")
	}
}

func TestAnalyzeInvalidUser(t *testing.T) {
	a := newTestAnalyzer(t)
	start, end := defaultWindow(t)

	_, err := a.Analyze(0, start, end)
	var inputErr *domain.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("Analyze(0) error = %v, want InputError", err)
	}
	if inputErr.Field != "user_id" {
		t.Errorf("InputError field = %q, want user_id", inputErr.Field)
	}
}

func TestParseWindow(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
		wantErr    bool
	}{
		{name: "defaults", wantStart: "2025-11-01 00:00:00", wantEnd: "2026-01-31 23:59:59"},
		{name: "explicit", start: "2025-12-01", end: "2025-12-31", wantStart: "2025-12-01 00:00:00", wantEnd: "2025-12-31 23:59:59"},
		{name: "single day", start: "2025-12-05", end: "2025-12-05", wantStart: "2025-12-05 00:00:00", wantEnd: "2025-12-05 23:59:59"},
		{name: "reversed", start: "2026-01-01", end: "2025-01-01", wantErr: true},
		{name: "bad format", start: "01/11/2025", end: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := ParseWindow(tc.start, tc.end)
			if tc.wantErr {
				var inputErr *domain.InputError
				if !errors.As(err, &inputErr) {
					t.Fatalf("ParseWindow(%q, %q) error = %v, want InputError", tc.start, tc.end, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWindow(%q, %q): %v", tc.start, tc.end, err)
			}
			const layout = "2006-01-02 15:04:05"
			if got := start.Format(layout); got != tc.wantStart {
				t.Errorf("start = %s, want %s", got, tc.wantStart)
			}
			if got := end.Format(layout); got != tc.wantEnd {
				t.Errorf("end = %s, want %s", got, tc.wantEnd)
			}
		})
	}
}

func TestUsers(t *testing.T) {
	a := newTestAnalyzer(t)
	users := a.Users(10)
	if len(users) != 1 || users[0] != 42 {
		t.Errorf("Users = %v, want [42]", users)
	}
}
