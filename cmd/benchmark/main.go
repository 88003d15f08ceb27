package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"palate/config"
	"palate/internal/app"
	"palate/internal/domain"
	"palate/internal/logging"
)

func main() {
	dataDir := flag.String("dir", ".", "Path to the palate data directory")
	limit := flag.Int("n", 10, "Recommendations per user")
	maxUsers := flag.Int("users", 100, "Maximum number of users to sample")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: "warn", Format: cfg.Logging.Format})

	a, err := app.Open(cfg, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	raters, err := a.Store.ListRaters()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing users: %v\n", err)
		os.Exit(1)
	}
	if len(raters) == 0 {
		fmt.Println("No ratings recorded - rate some dishes with 'palate rate' first.")
		os.Exit(1)
	}
	if len(raters) > *maxUsers {
		raters = raters[:*maxUsers]
	}

	count, _ := a.Index.Count()
	fmt.Println("RECOMMENDATION BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Dishes indexed: %d\n", count)
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", a.Index.Dimension())
	fmt.Printf("Users sampled: %d, limit %d\n\n", len(raters), *limit)

	ctx := context.Background()
	var cold, warm []time.Duration
	var withProfile, full int
	var top1, spread float64

	for _, userID := range raters {
		a.Recommender.Purge()

		start := time.Now()
		recs, err := a.Recommender.Recommend(ctx, userID, *limit)
		cold = append(cold, time.Since(start))
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", userID, err)
			continue
		}

		start = time.Now()
		if _, err := a.Recommender.Recommend(ctx, userID, *limit); err == nil {
			warm = append(warm, time.Since(start))
		}

		if len(recs) == 0 {
			continue
		}
		withProfile++
		if len(recs) == *limit {
			full++
		}
		top1 += recs[0].Distance
		spread += recs[len(recs)-1].Distance - recs[0].Distance
		if !rankedAscending(recs) {
			fmt.Printf("  WARNING: %s recommendations out of order\n", userID)
		}
	}

	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("LATENCY:\n")
	fmt.Printf("  Cold p50/p95: %s / %s\n", percentile(cold, 0.50), percentile(cold, 0.95))
	fmt.Printf("  Warm p50/p95: %s / %s\n", percentile(warm, 0.50), percentile(warm, 0.95))

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Users with profile:  %d/%d\n", withProfile, len(raters))
	if withProfile == 0 {
		fmt.Println("  Status: POOR - no profiles; embed dishes and recompute profiles")
		return
	}
	avgTop1 := top1 / float64(withProfile)
	fmt.Printf("  Full result lists:   %d/%d\n", full, withProfile)
	fmt.Printf("  Avg top-1 distance:  %.3f\n", avgTop1)
	fmt.Printf("  Avg distance spread: %.3f\n", spread/float64(withProfile))

	if avgTop1 < 0.3 {
		fmt.Println("  Status: GOOD - profiles sit close to unrated dishes")
	} else if avgTop1 < 0.6 {
		fmt.Println("  Status: OK - recommendations are loosely related")
	} else {
		fmt.Println("  Status: POOR - profiles are far from the catalogue; more ratings or re-embedding may help")
	}
}

func rankedAscending(recs []domain.Recommendation) bool {
	for i := 1; i < len(recs); i++ {
		if recs[i].Distance < recs[i-1].Distance {
			return false
		}
	}
	return true
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx].Round(time.Microsecond)
}
