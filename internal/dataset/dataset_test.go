package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const testProducts = `product_id,category,unit_price
1,bread,2.50
2,butter,3.00
`

const testPurchases = `record_id,user_id,item_count,product_ids,total_amount,purchased_at,refunded
1,10,2,"1,2",5.50,2025-11-01 08:00:00,no
2,11,1,1,2.50,2025-11-02 09:00:00,no
`

func writeFixtures(t *testing.T) (products, purchases string) {
	t.Helper()
	dir := t.TempDir()
	products = filepath.Join(dir, "products.csv")
	purchases = filepath.Join(dir, "purchases.csv")
	if err := os.WriteFile(products, []byte(testProducts), 0o644); err != nil {
		t.Fatalf("write products: %v", err)
	}
	if err := os.WriteFile(purchases, []byte(testPurchases), 0o644); err != nil {
		t.Fatalf("write purchases: %v", err)
	}
	return products, purchases
}

func TestLoad(t *testing.T) {
	products, purchases := writeFixtures(t)

	ds, err := Load(context.Background(), products, purchases, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if ds.Catalog.Len() != 2 {
		t.Errorf("catalog size = %d, want 2", ds.Catalog.Len())
	}
	if ds.Store.Len() != 2 {
		t.Errorf("store size = %d, want 2", ds.Store.Len())
	}
	if ds.Engine.TotalTransactions() != 2 {
		t.Errorf("engine universe = %d, want 2", ds.Engine.TotalTransactions())
	}
	if ds.Analyzer == nil {
		t.Error("analyzer was not built")
	}
}

func TestLoadMissingFile(t *testing.T) {
	products, _ := writeFixtures(t)

	_, err := Load(context.Background(), products, "nope/purchases.csv", zerolog.Nop())
	if err == nil {
		t.Fatal("Load with missing purchases must fail")
	}
}

func TestHolderSwap(t *testing.T) {
	products, purchases := writeFixtures(t)
	ctx := context.Background()

	first, err := Load(ctx, products, purchases, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	holder := NewHolder(first)
	if holder.Get() != first {
		t.Fatal("Get returned a different dataset")
	}

	second, err := Load(ctx, products, purchases, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	holder.Swap(second)
	if holder.Get() != second {
		t.Error("Swap did not replace the dataset")
	}
}
