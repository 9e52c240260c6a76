package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/basket-insights/internal/assoc"
	"github.com/dvloznov/basket-insights/internal/config"
	"github.com/dvloznov/basket-insights/internal/dataset"
	"github.com/dvloznov/basket-insights/internal/habits"
	"github.com/dvloznov/basket-insights/internal/logger"
	"github.com/dvloznov/basket-insights/internal/recommend"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "habits":
		runHabits(log)
	case "associations":
		runAssociations(log)
	case "stats":
		runStats(log)
	case "users":
		runUsers(log)
	case "suggest":
		runSuggest(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Basket Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  habits        Analyze one user's purchase habits over a date window")
	fmt.Println("  associations  Mine frequently co-purchased category pairs")
	fmt.Println("  stats         Summarize the loaded dataset")
	fmt.Println("  users         List user ids present in the purchase data")
	fmt.Println("  suggest       Show cross-sell category suggestions for a user")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// sourceFlags registers the shared data-source flags, defaulted from the
// loaded configuration.
func sourceFlags(fs *flag.FlagSet, cfg *config.Config) (products, purchases *string) {
	products = fs.String("products", cfg.Data.ProductsPath, "Product catalog CSV, local path or gs:// URI")
	purchases = fs.String("purchases", cfg.Data.PurchasesPath, "Purchase records CSV, local path or gs:// URI")
	return products, purchases
}

func mustConfig(log zerolog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

func mustDataset(ctx context.Context, log zerolog.Logger, products, purchases string) *dataset.Dataset {
	ds, err := dataset.Load(ctx, products, purchases, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}
	return ds
}

func runHabits(log zerolog.Logger) {
	cfg := mustConfig(log)

	fs := flag.NewFlagSet("habits", flag.ExitOnError)
	products, purchases := sourceFlags(fs, cfg)
	userID := fs.Int64("user", 0, "User id to analyze (required)")
	start := fs.String("start", cfg.Window.Start, "Window start, YYYY-MM-DD")
	end := fs.String("end", cfg.Window.End, "Window end, YYYY-MM-DD")
	fs.Parse(os.Args[2:])

	if *userID == 0 {
		log.Fatal().Msg("Error: -user is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	windowStart, windowEnd, err := habits.ParseWindow(*start, *end)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid date window")
	}

	ds := mustDataset(ctx, log, *products, *purchases)
	summary, err := ds.Analyzer.Analyze(*userID, windowStart, windowEnd)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	printSummary(summary)
}

func printSummary(s *habits.Summary) {
	fmt.Printf("Habit summary for user %d (%s)\n", s.UserID, s.Period)
	if s.Message != "" {
		fmt.Println(s.Message)
		return
	}

	fmt.Printf("  orders:           %d\n", s.TotalOrders)
	fmt.Printf("  total spent:      %s\n", s.TotalAmount)
	fmt.Printf("  avg order amount: %s\n", s.AvgOrderAmount)

	if len(s.FrequentProducts) > 0 {
		fmt.Println("\nFrequently purchased products:")
		for _, p := range s.FrequentProducts {
			fmt.Printf("  %-30s x%d (id %d)\n", p.Label, p.Count, p.ProductID)
		}
	}

	if len(s.FrequentCategories) > 0 {
		fmt.Println("\nPreferred categories:")
		for _, c := range s.FrequentCategories {
			fmt.Printf("  %-30s %5.1f%% (%d items)\n", c.Category, c.Percentage, c.Count)
		}
	}

	if len(s.CategorySpending) > 0 {
		fmt.Println("\nSpending by category (unit prices):")
		for _, c := range s.CategorySpending {
			fmt.Printf("  %-30s avg %s, total %s\n", c.Category, c.AvgSpend, c.TotalSpend)
		}
	}

	if len(s.Timeline) > 0 {
		fmt.Println("\nPurchase timeline:")
		for _, e := range s.Timeline {
			fmt.Printf("  %s  %s (%d items)\n", e.Date, e.Amount, e.ItemCount)
		}
	}
}

func runAssociations(log zerolog.Logger) {
	cfg := mustConfig(log)

	fs := flag.NewFlagSet("associations", flag.ExitOnError)
	products, purchases := sourceFlags(fs, cfg)
	minSupport := fs.Float64("min-support", cfg.Mining.MinSupport, "Minimum pair support")
	minConfidence := fs.Float64("min-confidence", cfg.Mining.MinConfidence, "Minimum directional confidence")
	workers := fs.Int("workers", cfg.Mining.Workers, "Parallel workers for pair evaluation")
	out := fs.String("out", "", "Write admitted rules to this CSV file")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	ds := mustDataset(ctx, log, *products, *purchases)
	report, err := ds.Engine.FrequentPairs(ctx, assoc.Options{
		MinSupport:    *minSupport,
		MinConfidence: *minConfidence,
		Workers:       *workers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Mining failed")
	}

	printReport(report)

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		if err := assoc.WriteCSV(f, report.Rules); err != nil {
			log.Fatal().Err(err).Msg("Failed to write rules CSV")
		}
		fmt.Printf("\nWrote %d rules to %s\n", len(report.Rules), *out)
	}
}

func printReport(report *assoc.Report) {
	fmt.Printf("Evaluated %d category pairs: %d met the support floor, %d the confidence floor.\n",
		report.PairsEvaluated, report.SupportPass, report.ConfidencePass)

	if len(report.Rules) == 0 {
		fmt.Println("\nNo category pair met both thresholds.")
		if len(report.TopPairs) > 0 {
			fmt.Println("Strongest co-occurrences regardless of thresholds:")
			for _, r := range report.TopPairs {
				fmt.Printf("  %s + %s  support %.4f (%d transactions)\n",
					r.CategoryA, r.CategoryB, r.Support, r.Transactions)
			}
		}
		return
	}

	fmt.Printf("\n%-25s %-25s %9s %9s %9s %8s\n", "category a", "category b", "support", "conf a>b", "conf b>a", "lift")
	for _, r := range report.Rules {
		fmt.Printf("%-25s %-25s %9.4f %9.4f %9.4f %8.4f\n",
			r.CategoryA, r.CategoryB, r.Support, r.ConfidenceAToB, r.ConfidenceBToA, r.Lift)
	}
}

func runStats(log zerolog.Logger) {
	cfg := mustConfig(log)

	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	products, purchases := sourceFlags(fs, cfg)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	ds := mustDataset(ctx, log, *products, *purchases)
	stats := ds.Engine.Stats()

	fmt.Printf("Transactions with resolvable categories: %d\n", stats.Transactions)
	fmt.Printf("Distinct categories:                     %d\n", stats.Categories)
	fmt.Printf("Mean categories per transaction:         %.2f\n", stats.MeanCategoriesPerT)
	fmt.Printf("Skipped product rows:                    %d\n", len(ds.Catalog.Skipped()))
	fmt.Printf("Skipped purchase rows:                   %d\n", len(ds.Store.Skipped()))

	if len(stats.TopCategories) > 0 {
		fmt.Println("\nTop categories by transaction count:")
		for _, c := range stats.TopCategories {
			fmt.Printf("  %-30s %6d (support %.4f)\n", c.Category, c.Transactions, c.Support)
		}
	}
}

func runUsers(log zerolog.Logger) {
	cfg := mustConfig(log)

	fs := flag.NewFlagSet("users", flag.ExitOnError)
	products, purchases := sourceFlags(fs, cfg)
	limit := fs.Int("limit", 50, "Maximum number of user ids to list")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	ds := mustDataset(ctx, log, *products, *purchases)
	users := ds.Analyzer.Users(*limit)

	fmt.Printf("%d users:\n", len(users))
	for _, id := range users {
		fmt.Printf("  %d\n", id)
	}
}

func runSuggest(log zerolog.Logger) {
	cfg := mustConfig(log)

	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	products, purchases := sourceFlags(fs, cfg)
	userID := fs.Int64("user", 0, "User id to suggest for (required)")
	limit := fs.Int("limit", 5, "Maximum number of suggestions")
	fs.Parse(os.Args[2:])

	if *userID == 0 {
		log.Fatal().Msg("Error: -user is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	ds := mustDataset(ctx, log, *products, *purchases)

	start, end, err := habits.ParseWindow(cfg.Window.Start, cfg.Window.End)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configured window")
	}
	summary, err := ds.Analyzer.Analyze(*userID, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	report, err := ds.Engine.FrequentPairs(ctx, assoc.Options{
		MinSupport:    cfg.Mining.MinSupport,
		MinConfidence: cfg.Mining.MinConfidence,
		Workers:       cfg.Mining.Workers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Mining failed")
	}

	profile := recommend.Profile{TotalOrders: summary.TotalOrders}
	for _, c := range summary.FrequentCategories {
		profile.TopCategories = append(profile.TopCategories, recommend.CategoryPreference{
			Category:   c.Category,
			Percentage: c.Percentage,
		})
	}
	assocs := make([]recommend.Association, 0, len(report.Rules))
	for _, r := range report.Rules {
		assocs = append(assocs, recommend.Association{
			CategoryA: r.CategoryA,
			CategoryB: r.CategoryB,
			Support:   r.Support,
		})
	}

	suggestions := recommend.SmartSuggestions(profile, assocs, *limit)
	if len(suggestions) == 0 {
		fmt.Printf("No cross-sell suggestions for user %d.\n", *userID)
		return
	}

	fmt.Printf("Suggestions for user %d:\n", *userID)
	for _, s := range suggestions {
		fmt.Printf("  try %-25s often bought with %s (support %.4f)\n", s.Category, s.Because, s.Support)
	}
}
