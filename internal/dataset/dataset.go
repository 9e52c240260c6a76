// Package dataset wires the loaded stores into one queryable bundle and
// supports atomic replacement after a background rebuild.
package dataset

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvloznov/basket-insights/internal/assoc"
	"github.com/dvloznov/basket-insights/internal/catalog"
	"github.com/dvloznov/basket-insights/internal/habits"
	"github.com/dvloznov/basket-insights/internal/logger"
	"github.com/dvloznov/basket-insights/internal/objstore"
	"github.com/dvloznov/basket-insights/internal/store"
)

// Dataset bundles one consistent load of the source files with the query
// surfaces built over it.
type Dataset struct {
	Catalog  *catalog.Index
	Store    *store.Store
	Analyzer *habits.Analyzer
	Engine   *assoc.Engine
}

// Load reads both sources (local paths or gs:// URIs), indexes them, and
// builds the analyzer and association engine.
func Load(ctx context.Context, productsPath, purchasesPath string, log zerolog.Logger) (*Dataset, error) {
	ctx = logger.WithContext(ctx, log)

	productsFile, err := objstore.Open(ctx, productsPath)
	if err != nil {
		return nil, fmt.Errorf("dataset.Load: open products: %w", err)
	}
	defer productsFile.Close()

	cat, err := catalog.Load(ctx, productsPath, productsFile)
	if err != nil {
		return nil, fmt.Errorf("dataset.Load: %w", err)
	}

	purchasesFile, err := objstore.Open(ctx, purchasesPath)
	if err != nil {
		return nil, fmt.Errorf("dataset.Load: open purchases: %w", err)
	}
	defer purchasesFile.Close()

	st, err := store.Load(ctx, purchasesPath, purchasesFile)
	if err != nil {
		return nil, fmt.Errorf("dataset.Load: %w", err)
	}

	ds := &Dataset{
		Catalog:  cat,
		Store:    st,
		Analyzer: habits.NewAnalyzer(st, cat, log),
		Engine:   assoc.NewEngine(st, cat, log),
	}

	log.Info().
		Int("products", cat.Len()).
		Int("transactions", st.Len()).
		Int("skipped_products", len(cat.Skipped())).
		Int("skipped_purchases", len(st.Skipped())).
		Msg("Dataset loaded")

	return ds, nil
}

// Holder hands out the current dataset and lets a rebuild swap in a new one
// without disturbing in-flight readers.
type Holder struct {
	mu  sync.RWMutex
	cur *Dataset
}

// NewHolder wraps an initial dataset.
func NewHolder(ds *Dataset) *Holder {
	return &Holder{cur: ds}
}

// Get returns the current dataset.
func (h *Holder) Get() *Dataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

// Swap replaces the current dataset.
func (h *Holder) Swap(ds *Dataset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cur = ds
}
