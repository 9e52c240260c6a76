package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/basket-insights/internal/domain"
)

const samplePurchases = `record_id,user_id,item_count,product_ids,total_amount,purchased_at,refunded
1,25,2,"1001,1002",212.49,2025-11-03 10:15:00,no
2,25,1,1003,3.20,2025-11-10 18:40:12,no
3,25,1,1001,12.50,2025-11-12 09:00:00,yes
4,7,3,"1001,1001,1004",70.00,2025-12-01 14:05:30,no
5,25,1,1004,45.00,2026-01-31 23:59:59,no
`

func loadSample(t *testing.T, data string) *Store {
	t.Helper()
	st, err := Load(context.Background(), "purchases.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return st
}

func TestLoad(t *testing.T) {
	st := loadSample(t, samplePurchases)

	if st.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", st.Len())
	}

	tx := st.All()[0]
	if tx.RecordID != 1 || tx.UserID != 25 || tx.ItemCount != 2 {
		t.Errorf("first record = %+v", tx)
	}
	if len(tx.ProductIDs) != 2 || tx.ProductIDs[0] != 1001 || tx.ProductIDs[1] != 1002 {
		t.Errorf("ProductIDs = %v, want [1001 1002]", tx.ProductIDs)
	}
	if !tx.TotalAmount.Equal(decimal.RequireFromString("212.49")) {
		t.Errorf("TotalAmount = %s, want 212.49", tx.TotalAmount)
	}
	want := time.Date(2025, 11, 3, 10, 15, 0, 0, time.UTC)
	if !tx.PurchasedAt.Equal(want) {
		t.Errorf("PurchasedAt = %s, want %s", tx.PurchasedAt, want)
	}
	if tx.Refunded {
		t.Error("first record should not be refunded")
	}
	if !st.All()[2].Refunded {
		t.Error("third record should be refunded")
	}
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	data := `record_id,user_id,item_count,product_ids,total_amount,purchased_at,refunded
1,25,1,1001,12.50,2025-11-03 10:15:00,no
2,abc,1,1001,12.50,2025-11-03 10:15:00,no
3,25,1,1001,not-money,2025-11-03 10:15:00,no
4,25,1,1001,12.50,03/11/2025,no
5,25,1,1001,12.50,2025-11-03 10:15:00,maybe
6,25,1,"1001,xyz",12.50,2025-11-03 10:15:00,no
7,25,2,"1001,1002",20.00,2025-11-04 11:00:00,no
`
	st := loadSample(t, data)

	if st.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", st.Len())
	}
	if len(st.Skipped()) != 5 {
		t.Fatalf("Skipped() = %d diagnostics, want 5", len(st.Skipped()))
	}
}

func TestLoadMissingColumnIsFatal(t *testing.T) {
	data := "record_id,user_id,total_amount\n1,25,10.00\n"
	_, err := Load(context.Background(), "purchases.csv", strings.NewReader(data))

	var loadErr *domain.DataLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %v, want DataLoadError", err)
	}
}

func TestFilter(t *testing.T) {
	st := loadSample(t, samplePurchases)

	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	got := st.Filter(25, start, end)
	if len(got) != 3 {
		t.Fatalf("Filter(25) = %d transactions, want 3 (refunded excluded)", len(got))
	}
	for _, tx := range got {
		if tx.Refunded {
			t.Errorf("Filter returned refunded record %d", tx.RecordID)
		}
		if tx.UserID != 25 {
			t.Errorf("Filter returned record for user %d", tx.UserID)
		}
	}

	// Window bounds are inclusive: record 5 sits exactly on the end instant.
	found := false
	for _, tx := range got {
		if tx.RecordID == 5 {
			found = true
		}
	}
	if !found {
		t.Error("Filter should include transaction on the inclusive end bound")
	}

	// Narrow window excludes everything.
	if got := st.Filter(25, start, start.Add(time.Hour)); len(got) != 0 {
		t.Errorf("narrow window returned %d transactions, want 0", len(got))
	}
}

func TestUsers(t *testing.T) {
	st := loadSample(t, samplePurchases)

	got := st.Users(0)
	if len(got) != 2 || got[0] != 7 || got[1] != 25 {
		t.Errorf("Users(0) = %v, want [7 25]", got)
	}

	if got := st.Users(1); len(got) != 1 || got[0] != 7 {
		t.Errorf("Users(1) = %v, want [7]", got)
	}
}
