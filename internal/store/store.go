// Package store loads the purchase source into typed transaction records and
// exposes filtered iteration over them.
package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/basket-insights/internal/domain"
	"github.com/dvloznov/basket-insights/internal/logger"
)

// TimestampLayout is the purchase timestamp format of the source.
const TimestampLayout = "2006-01-02 15:04:05"

// Refund flag tokens of the purchase source.
const (
	refundYes = "yes"
	refundNo  = "no"
)

// Required columns of the purchase source, by header name.
const (
	colRecordID    = "record_id"
	colUserID      = "user_id"
	colItemCount   = "item_count"
	colProductIDs  = "product_ids"
	colTotalAmount = "total_amount"
	colPurchasedAt = "purchased_at"
	colRefunded    = "refunded"
)

// Store holds the full set of parsed transactions. Immutable after Load; safe
// for concurrent readers.
type Store struct {
	source       string
	transactions []domain.Transaction
	skipped      []*domain.RowParseError
}

// Load parses all purchase rows from r. An unreadable source or a header
// missing a required column is a fatal DataLoadError; a row that fails any
// per-field transform is recorded as a RowParseError diagnostic and skipped.
func Load(ctx context.Context, source string, r io.Reader) (*Store, error) {
	log := logger.FromContext(ctx)

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, &domain.DataLoadError{Source: source, Err: fmt.Errorf("reading header: %w", err)}
	}

	cols, err := headerIndex(header,
		colRecordID, colUserID, colItemCount, colProductIDs,
		colTotalAmount, colPurchasedAt, colRefunded)
	if err != nil {
		return nil, &domain.DataLoadError{Source: source, Err: err}
	}

	st := &Store{source: source}

	line := 1 // header consumed
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			st.skip(log, line, err)
			continue
		}

		tx, err := parseRow(record, cols)
		if err != nil {
			st.skip(log, line, err)
			continue
		}
		st.transactions = append(st.transactions, tx)
	}

	log.Info().
		Str("source", source).
		Int("transactions", len(st.transactions)).
		Int("skipped_rows", len(st.skipped)).
		Msg("Purchase records loaded")

	return st, nil
}

func (st *Store) skip(log zerolog.Logger, line int, err error) {
	rowErr := &domain.RowParseError{Source: st.source, Line: line, Err: err}
	st.skipped = append(st.skipped, rowErr)
	log.Warn().Str("source", st.source).Int("line", line).Err(err).Msg("Skipping malformed purchase row")
}

func parseRow(record []string, cols map[string]int) (domain.Transaction, error) {
	var tx domain.Transaction
	var err error

	tx.RecordID, err = strconv.ParseInt(strings.TrimSpace(record[cols[colRecordID]]), 10, 64)
	if err != nil {
		return tx, fmt.Errorf("record id %q: %w", record[cols[colRecordID]], err)
	}

	tx.UserID, err = strconv.ParseInt(strings.TrimSpace(record[cols[colUserID]]), 10, 64)
	if err != nil {
		return tx, fmt.Errorf("record %d: user id %q: %w", tx.RecordID, record[cols[colUserID]], err)
	}

	tx.ItemCount, err = strconv.Atoi(strings.TrimSpace(record[cols[colItemCount]]))
	if err != nil {
		return tx, fmt.Errorf("record %d: item count %q: %w", tx.RecordID, record[cols[colItemCount]], err)
	}

	tx.ProductIDs, err = ParseProductIDs(record[cols[colProductIDs]])
	if err != nil {
		return tx, fmt.Errorf("record %d: %w", tx.RecordID, err)
	}

	tx.TotalAmount, err = decimal.NewFromString(strings.TrimSpace(record[cols[colTotalAmount]]))
	if err != nil {
		return tx, fmt.Errorf("record %d: total amount %q: %w", tx.RecordID, record[cols[colTotalAmount]], err)
	}

	tx.PurchasedAt, err = time.Parse(TimestampLayout, strings.TrimSpace(record[cols[colPurchasedAt]]))
	if err != nil {
		return tx, fmt.Errorf("record %d: timestamp %q: %w", tx.RecordID, record[cols[colPurchasedAt]], err)
	}

	switch strings.ToLower(strings.TrimSpace(record[cols[colRefunded]])) {
	case refundYes:
		tx.Refunded = true
	case refundNo:
		tx.Refunded = false
	default:
		return tx, fmt.Errorf("record %d: refund flag %q, want %q or %q",
			tx.RecordID, record[cols[colRefunded]], refundYes, refundNo)
	}

	return tx, nil
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

// All returns every parsed transaction, refunded ones included, in source
// order. Callers must not mutate the returned slice.
func (st *Store) All() []domain.Transaction {
	return st.transactions
}

// Filter returns the user's non-refunded transactions with a purchase
// timestamp inside [start, end], both ends inclusive, in source order.
func (st *Store) Filter(userID int64, start, end time.Time) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range st.transactions {
		if tx.Refunded || tx.UserID != userID {
			continue
		}
		if tx.PurchasedAt.Before(start) || tx.PurchasedAt.After(end) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Users returns up to limit distinct user ids in ascending order. A limit of
// zero or less means no cap.
func (st *Store) Users(limit int) []int64 {
	seen := make(map[int64]bool)
	for _, tx := range st.transactions {
		seen[tx.UserID] = true
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of parsed transactions.
func (st *Store) Len() int { return len(st.transactions) }

// Skipped returns the per-row diagnostics recorded during Load.
func (st *Store) Skipped() []*domain.RowParseError { return st.skipped }
