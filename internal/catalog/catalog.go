// Package catalog loads the product source and answers product-id lookups.
package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/basket-insights/internal/domain"
	"github.com/dvloznov/basket-insights/internal/logger"
)

// Required columns of the product source, by header name.
const (
	colProductID = "product_id"
	colCategory  = "category"
	colUnitPrice = "unit_price"
)

// Index maps product ids to their category and unit price. Immutable after
// Load; safe for concurrent readers.
type Index struct {
	source   string
	products map[int64]domain.Product
	skipped  []*domain.RowParseError
}

// Load reads all product rows from r. An unreadable source or a header
// missing a required column is a fatal DataLoadError; a malformed row is
// recorded as a RowParseError diagnostic and skipped.
func Load(ctx context.Context, source string, r io.Reader) (*Index, error) {
	log := logger.FromContext(ctx)

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, &domain.DataLoadError{Source: source, Err: fmt.Errorf("reading header: %w", err)}
	}

	cols, err := headerIndex(header, colProductID, colCategory, colUnitPrice)
	if err != nil {
		return nil, &domain.DataLoadError{Source: source, Err: err}
	}

	idx := &Index{
		source:   source,
		products: make(map[int64]domain.Product),
	}

	line := 1 // header consumed
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			idx.skip(log, line, err)
			continue
		}

		p, err := parseRow(record, cols)
		if err != nil {
			idx.skip(log, line, err)
			continue
		}
		idx.products[p.ID] = p
	}

	log.Info().
		Str("source", source).
		Int("products", len(idx.products)).
		Int("skipped_rows", len(idx.skipped)).
		Msg("Product catalog loaded")

	return idx, nil
}

func (idx *Index) skip(log zerolog.Logger, line int, err error) {
	rowErr := &domain.RowParseError{Source: idx.source, Line: line, Err: err}
	idx.skipped = append(idx.skipped, rowErr)
	log.Warn().Str("source", idx.source).Int("line", line).Err(err).Msg("Skipping malformed product row")
}

func parseRow(record []string, cols map[string]int) (domain.Product, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(record[cols[colProductID]]), 10, 64)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product id %q: %w", record[cols[colProductID]], err)
	}

	category := strings.TrimSpace(record[cols[colCategory]])
	if category == "" {
		return domain.Product{}, fmt.Errorf("product %d: empty category", id)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(record[cols[colUnitPrice]]))
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %d: unit price %q: %w", id, record[cols[colUnitPrice]], err)
	}
	if price.IsNegative() {
		return domain.Product{}, fmt.Errorf("product %d: negative unit price %s", id, price)
	}

	return domain.Product{ID: id, Category: category, UnitPrice: price}, nil
}

// headerIndex maps required column names to their positions in the header.
// A missing required column is an error; extra columns are ignored.
func headerIndex(header []string, required ...string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(strings.ToLower(name))] = i
	}

	cols := make(map[string]int, len(required))
	for _, name := range required {
		i, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
		cols[name] = i
	}
	return cols, nil
}

// CategoryOf returns the category of a product, or false if the id is not in
// the catalog.
func (idx *Index) CategoryOf(productID int64) (string, bool) {
	p, ok := idx.products[productID]
	if !ok {
		return "", false
	}
	return p.Category, true
}

// PriceOf returns the unit price of a product, or false if the id is not in
// the catalog.
func (idx *Index) PriceOf(productID int64) (decimal.Decimal, bool) {
	p, ok := idx.products[productID]
	if !ok {
		return decimal.Decimal{}, false
	}
	return p.UnitPrice, true
}

// Categories returns the distinct category labels, sorted.
func (idx *Index) Categories() []string {
	seen := make(map[string]bool)
	for _, p := range idx.products {
		seen[p.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of products loaded.
func (idx *Index) Len() int { return len(idx.products) }

// Skipped returns the per-row diagnostics recorded during Load.
func (idx *Index) Skipped() []*domain.RowParseError { return idx.skipped }
