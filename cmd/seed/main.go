// Package main seeds demo gateway activity: a trailing week of
// transactions with realistic status, delivery and savings spread, then
// a tier recalculation and an achievement sweep over the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"parkchain-gateway/internal/achievements"
	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/ledger"
	"parkchain-gateway/internal/storage"
	chstore "parkchain-gateway/internal/storage/clickhouse"
	"parkchain-gateway/internal/storage/memory"
	"parkchain-gateway/internal/storage/migrations"
	pgstore "parkchain-gateway/internal/storage/postgres"
	"parkchain-gateway/internal/tier"
)

func main() {
	loadEnvFile()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Seed in-memory stores (dry run, prints summary only)")
	count := flag.Int("count", 100, "Number of transactions to generate")
	days := flag.Int("days", 7, "Spread timestamps over this many trailing days")
	seed := flag.Int64("seed", 0, "Random seed (0 = from clock)")
	clear := flag.Bool("clear", false, "Clear existing transactions before seeding")

	flag.Parse()

	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for a dry run)")
	}

	ctx := context.Background()

	var (
		txStore       storage.TransactionStore
		metricsStore  storage.MetricsStore
		tierStore     storage.TierStore
		batchStore    storage.BatchStore
		unlockStore   storage.AchievementStore
		activityStore storage.ActivityStore
	)

	if *useMemory {
		txStore = memory.NewTransactionStore()
		metricsStore = memory.NewMetricsStore()
		tierStore = memory.NewTierStore()
		batchStore = memory.NewBatchStore()
		unlockStore = memory.NewAchievementStore()
		activityStore = memory.NewActivityStore()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Run postgres migrations: %v", err)
		}

		chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Run clickhouse migrations: %v", err)
		}
		defer chConn.Close()

		txStore = pgstore.NewTransactionStore(pool)
		metricsStore = pgstore.NewMetricsStore(pool)
		tierStore = pgstore.NewTierStore(pool)
		batchStore = pgstore.NewBatchStore(pool)
		unlockStore = pgstore.NewAchievementStore(pool)
		activityStore = chstore.NewActivityStore(chConn)
	}

	ledgerSvc := ledger.NewService(ledger.Options{
		TransactionStore: txStore,
		MetricsStore:     metricsStore,
		ActivityStore:    activityStore,
		Logger:           logger,
	})
	tierSvc := tier.NewService(tier.Options{
		MetricsStore:     metricsStore,
		TransactionStore: txStore,
		TierStore:        tierStore,
		Logger:           logger,
	})
	achieveSvc := achievements.NewService(achievements.Options{
		MetricsStore:     metricsStore,
		TransactionStore: txStore,
		BatchStore:       batchStore,
		UnlockStore:      unlockStore,
		Tiers:            tierSvc,
		Logger:           logger,
	})

	if *clear {
		if err := ledgerSvc.ClearAll(ctx); err != nil {
			logger.Fatalf("Clear existing data: %v", err)
		}
		logger.Println("Cleared existing transactions")
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	now := time.Now().UTC()
	span := time.Duration(*days) * 24 * time.Hour

	for i := 0; i < *count; i++ {
		input := generateTransaction(rng, now, span)
		if _, err := ledgerSvc.AddTransaction(ctx, input); err != nil {
			logger.Fatalf("Seed transaction %d: %v", i, err)
		}
	}
	logger.Printf("Seeded %d transactions over %d days", *count, *days)

	result, err := tierSvc.UpdateTier(ctx)
	if err != nil {
		logger.Fatalf("Update tier: %v", err)
	}
	if result.Upgraded {
		logger.Printf("Tier updated: %s -> %s", result.OldTier.ID, result.NewTier.ID)
	}

	unlocked, err := achieveSvc.CheckAll(ctx)
	if err != nil {
		logger.Fatalf("Check achievements: %v", err)
	}
	logger.Printf("Unlocked %d achievements", len(unlocked))

	snap, err := ledgerSvc.GetMetrics(ctx)
	if err != nil {
		logger.Fatalf("Load metrics: %v", err)
	}
	fmt.Printf("\nSeed summary:\n")
	fmt.Printf("  transactions:  %d\n", snap.TotalTransactions)
	fmt.Printf("  success rate:  %s%%\n", snap.SuccessRate)
	fmt.Printf("  total savings: %.6f SOL\n", snap.TotalSavings)
}

// generateTransaction draws one demo transaction: 80% success, amounts
// 50-1000 DCP, 70% gateway delivery, timestamps uniform over the span.
func generateTransaction(rng *rand.Rand, now time.Time, span time.Duration) ledger.TransactionInput {
	status := domain.StatusSuccess
	switch {
	case rng.Float64() < 0.15:
		status = domain.StatusFailed
	case rng.Float64() < 0.06:
		status = domain.StatusPending
	}

	gatewayUsed := rng.Float64() < 0.7
	delivery := domain.DeliveryGateway
	if !gatewayUsed {
		delivery = []string{domain.DeliveryRPC, domain.DeliveryJito, domain.DeliveryTriton}[rng.Intn(3)]
	}

	input := ledger.TransactionInput{
		Amount:         50 + rng.Float64()*950,
		Status:         status,
		DeliveryMethod: delivery,
		GatewayUsed:    &gatewayUsed,
		Timestamp:      now.Add(-time.Duration(rng.Int63n(int64(span)))),
	}
	if status == domain.StatusSuccess {
		input.ConfirmationTimeMs = 1000 + rng.Int63n(9000)
		if rng.Float64() < 0.4 {
			input.JitoTipRefunded = 0.0001
		}
	}
	return input
}

// loadEnvFile loads KEY=VALUE pairs from .env without overriding
// variables already set in the environment.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
