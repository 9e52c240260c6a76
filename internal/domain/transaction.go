package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one normalized purchase record parsed from the purchase
// source. This is a domain struct, not a raw CSV row; the store maps source
// columns into it at load time.
//
// TotalAmount is taken as given from the source record. It is not required to
// equal the sum of the constituent product prices: spend statistics use
// TotalAmount, per-category spend uses catalog unit prices, and the two are
// never reconciled.
type Transaction struct {
	RecordID    int64           // from "record_id"
	UserID      int64           // from "user_id"
	PurchasedAt time.Time       // parsed from "purchased_at" ("YYYY-MM-DD HH:MM:SS")
	ProductIDs  []int64         // from "product_ids", ordered, ids may repeat
	ItemCount   int             // from "item_count", declared, not derived
	TotalAmount decimal.Decimal // from "total_amount"
	Refunded    bool            // from "refunded" ("yes"/"no")
}
