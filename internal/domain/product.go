package domain

import "github.com/shopspring/decimal"

// Product is one catalog entry. Immutable once loaded; lifecycle is scoped to
// a single analysis run.
type Product struct {
	ID        int64           // from "product_id"
	Category  string          // from "category", many products share a category
	UnitPrice decimal.Decimal // from "unit_price", non-negative
}
