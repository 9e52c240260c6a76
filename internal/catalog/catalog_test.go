package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/basket-insights/internal/domain"
)

const sampleProducts = `product_id,category,unit_price
1001,groceries,12.50
1002,electronics,199.99
1003,groceries,3.20
1004,beauty,45.00
`

func loadSample(t *testing.T, data string) *Index {
	t.Helper()
	idx, err := Load(context.Background(), "products.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return idx
}

func TestLoad(t *testing.T) {
	idx := loadSample(t, sampleProducts)

	if idx.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", idx.Len())
	}

	cat, ok := idx.CategoryOf(1001)
	if !ok || cat != "groceries" {
		t.Errorf("CategoryOf(1001) = %q, %v; want groceries, true", cat, ok)
	}

	price, ok := idx.PriceOf(1002)
	if !ok || !price.Equal(decimal.RequireFromString("199.99")) {
		t.Errorf("PriceOf(1002) = %s, %v; want 199.99, true", price, ok)
	}

	if _, ok := idx.CategoryOf(9999); ok {
		t.Error("CategoryOf(9999) should be absent")
	}
	if _, ok := idx.PriceOf(9999); ok {
		t.Error("PriceOf(9999) should be absent")
	}
}

func TestLoadCategories(t *testing.T) {
	idx := loadSample(t, sampleProducts)

	got := idx.Categories()
	want := []string{"beauty", "electronics", "groceries"}
	if len(got) != len(want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Categories() = %v, want %v", got, want)
		}
	}
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	data := `product_id,category,unit_price
1001,groceries,12.50
not-a-number,groceries,1.00
1002,,5.00
1003,beauty,-4.00
1004,beauty,abc
1005,sports,30.00
`
	idx := loadSample(t, data)

	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (only valid rows kept)", idx.Len())
	}
	if len(idx.Skipped()) != 4 {
		t.Fatalf("Skipped() = %d diagnostics, want 4", len(idx.Skipped()))
	}
	for _, d := range idx.Skipped() {
		if d.Source != "products.csv" || d.Line < 2 {
			t.Errorf("diagnostic has bad position: %v", d)
		}
	}
}

func TestLoadMissingColumnIsFatal(t *testing.T) {
	data := "product_id,unit_price\n1001,12.50\n"
	_, err := Load(context.Background(), "products.csv", strings.NewReader(data))

	var loadErr *domain.DataLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %v, want DataLoadError", err)
	}
	if loadErr.Source != "products.csv" {
		t.Errorf("DataLoadError.Source = %q", loadErr.Source)
	}
}

func TestLoadEmptySourceIsFatal(t *testing.T) {
	_, err := Load(context.Background(), "products.csv", strings.NewReader(""))

	var loadErr *domain.DataLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %v, want DataLoadError", err)
	}
}

func TestHeaderIndexIgnoresCaseAndExtras(t *testing.T) {
	cols, err := headerIndex([]string{"Unit_Price", "extra", "PRODUCT_ID", "category"},
		colProductID, colCategory, colUnitPrice)
	if err != nil {
		t.Fatalf("headerIndex() error = %v", err)
	}
	if cols[colProductID] != 2 || cols[colCategory] != 3 || cols[colUnitPrice] != 0 {
		t.Errorf("headerIndex() = %v", cols)
	}
}
