// Command datagen produces synthetic product and purchase CSV files for
// local development and benchmarking. The purchase totals are computed from
// the generated catalog prices, so the two files are always consistent.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/basket-insights/internal/logger"
	"github.com/dvloznov/basket-insights/internal/store"
)

// categoryGroup is a family of product categories sharing a price range,
// given in whole currency units.
type categoryGroup struct {
	items    []string
	min, max int
}

var categoryGroups = []categoryGroup{
	{items: []string{"t-shirt", "jeans", "hoodie", "down jacket", "shirt", "dress", "coat", "sweater", "pajamas", "socks"}, min: 80, max: 3000},
	{items: []string{"bluetooth earphones", "power bank", "desk lamp", "hair dryer", "humidifier", "electric kettle", "electric toothbrush", "smartphone", "tablet", "laptop"}, min: 500, max: 5000},
	{items: []string{"milk", "bread", "beer", "potato chips", "instant noodles", "chocolate", "biscuits", "candy", "juice", "tea", "coffee", "nuts", "fruit", "vegetables", "yogurt", "cake"}, min: 5, max: 200},
	{items: []string{"lipstick", "foundation", "eye shadow", "mascara", "face mask", "cleanser", "toner", "lotion", "serum", "sunscreen", "perfume", "shampoo", "conditioner", "body wash"}, min: 15, max: 1000},
	{items: []string{"running shoes", "basketball", "football", "tennis racket", "badminton racket", "yoga mat", "dumbbells", "jump rope", "sportswear", "tent", "sleeping bag", "helmet"}, min: 30, max: 1200},
	{items: []string{"sofa", "bed", "wardrobe", "desk", "chair", "coffee table", "dining table", "mattress", "pillow", "duvet", "curtains", "rug", "vase", "clothes hanger", "slippers"}, min: 10, max: 2000},
	{items: []string{"notebook", "fountain pen", "pencil", "eraser", "ruler", "calculator", "stapler", "glue", "scissors", "folder", "sticky notes", "printer paper", "ink", "backpack"}, min: 2, max: 300},
	{items: []string{"mouse", "keyboard", "monitor", "webcam", "microphone", "router", "hard drive", "memory card", "charging cable", "charger", "headphones", "speaker", "projector", "printer", "game console", "drone"}, min: 200, max: 5000},
	{items: []string{"tires", "motor oil", "brake pads", "wipers", "car charger", "dash cam", "sat nav", "seat covers", "floor mats", "car wash kit", "antifreeze", "car lamp", "sunshade", "emergency kit"}, min: 10, max: 2000},
}

// basketSizes and basketWeights drive the per-order item count.
var (
	basketSizes   = []int{1, 2, 3, 4, 5}
	basketWeights = []float64{0.30, 0.25, 0.25, 0.15, 0.05}
)

const refundRate = 0.05

func main() {
	log := logger.New()

	var (
		productsOut  = flag.String("products", "products.csv", "Output path for the product catalog")
		purchasesOut = flag.String("purchases", "purchases.csv", "Output path for the purchase records")
		productCount = flag.Int("product-count", 1000, "Number of products to generate")
		recordCount  = flag.Int("records", 50000, "Number of purchase records to generate")
		userCount    = flag.Int("users", 100, "Number of distinct user ids")
		startDate    = flag.String("start", "2025-11-01", "Earliest purchase date, YYYY-MM-DD")
		endDate      = flag.String("end", "2026-01-31", "Latest purchase date, YYYY-MM-DD")
		seed         = flag.Int64("seed", time.Now().UnixNano(), "Random seed, fixed for reproducible output")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -start date")
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -end date")
	}
	if end.Before(start) {
		log.Fatal().Msg("-end is before -start")
	}

	rng := rand.New(rand.NewSource(*seed))

	prices, err := writeProducts(rng, *productsOut, *productCount)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate products")
	}
	log.Info().Str("path", *productsOut).Int("products", *productCount).Msg("Product catalog written")

	if err := writePurchases(rng, *purchasesOut, prices, *recordCount, *userCount, start, end); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate purchases")
	}
	log.Info().Str("path", *purchasesOut).Int("records", *recordCount).Msg("Purchase records written")
}

// writeProducts generates the catalog and returns the id → price map used
// to price the purchase records.
func writeProducts(rng *rand.Rand, path string, count int) (map[int64]decimal.Decimal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("writeProducts: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"product_id", "category", "unit_price"}); err != nil {
		return nil, fmt.Errorf("writeProducts: write header: %w", err)
	}

	prices := make(map[int64]decimal.Decimal, count)
	for i := 0; i < count; i++ {
		id := int64(1001 + i)
		group := categoryGroups[rng.Intn(len(categoryGroups))]
		category := group.items[rng.Intn(len(group.items))]

		// Price in cents within the group's range.
		minCents := int64(group.min) * 100
		maxCents := int64(group.max) * 100
		price := decimal.New(minCents+rng.Int63n(maxCents-minCents+1), -2)

		prices[id] = price

		row := []string{
			strconv.FormatInt(id, 10),
			category,
			price.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writeProducts: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("writeProducts: flush: %w", err)
	}
	return prices, nil
}

func writePurchases(rng *rand.Rand, path string, prices map[int64]decimal.Decimal, records, users int, start, end time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writePurchases: create %s: %w", path, err)
	}
	defer f.Close()

	// Sorted so a fixed seed reproduces the same file byte for byte.
	ids := make([]int64, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := csv.NewWriter(f)
	header := []string{"record_id", "user_id", "item_count", "product_ids", "total_amount", "purchased_at", "refunded"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writePurchases: write header: %w", err)
	}

	for recordID := 1; recordID <= records; recordID++ {
		userID := 1 + rng.Intn(users)
		itemCount := weightedBasketSize(rng)

		// Items may repeat, modeling several units of the same product.
		productField := ""
		total := decimal.Zero
		for i := 0; i < itemCount; i++ {
			id := ids[rng.Intn(len(ids))]
			total = total.Add(prices[id])
			if i > 0 {
				productField += ","
			}
			productField += strconv.FormatInt(id, 10)
		}

		refunded := "no"
		if rng.Float64() < refundRate {
			refunded = "yes"
		}

		row := []string{
			strconv.Itoa(recordID),
			strconv.Itoa(userID),
			strconv.Itoa(itemCount),
			productField,
			total.StringFixed(2),
			randomTimestamp(rng, start, end).Format(store.TimestampLayout),
			refunded,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writePurchases: write row %d: %w", recordID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writePurchases: flush: %w", err)
	}
	return nil
}

func weightedBasketSize(rng *rand.Rand) int {
	r := rng.Float64()
	acc := 0.0
	for i, weight := range basketWeights {
		acc += weight
		if r < acc {
			return basketSizes[i]
		}
	}
	return basketSizes[len(basketSizes)-1]
}

func randomTimestamp(rng *rand.Rand, start, end time.Time) time.Time {
	days := int(end.Sub(start).Hours() / 24)
	return start.
		AddDate(0, 0, rng.Intn(days+1)).
		Add(time.Duration(rng.Intn(24)) * time.Hour).
		Add(time.Duration(rng.Intn(60)) * time.Minute).
		Add(time.Duration(rng.Intn(60)) * time.Second)
}
