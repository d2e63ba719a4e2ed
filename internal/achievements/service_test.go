package achievements

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/ledger"
	"parkchain-gateway/internal/storage"
	"parkchain-gateway/internal/storage/memory"
)

type staticTier struct {
	tier domain.Tier
}

func (s staticTier) CurrentTier(context.Context) (domain.Tier, error) {
	return s.tier, nil
}

type fixture struct {
	svc    *Service
	ledger *ledger.Service
	batch  storage.BatchStore
}

func newFixture(tierID string) *fixture {
	quiet := log.New(io.Discard, "", 0)
	tx := memory.NewTransactionStore()
	mx := memory.NewMetricsStore()
	bs := memory.NewBatchStore()

	led := ledger.NewService(ledger.Options{
		TransactionStore: tx,
		MetricsStore:     mx,
		Logger:           quiet,
	})
	svc := NewService(Options{
		MetricsStore:     mx,
		TransactionStore: tx,
		BatchStore:       bs,
		UnlockStore:      memory.NewAchievementStore(),
		Tiers:            staticTier{tier: domain.TierByID(tierID)},
		Logger:           quiet,
	})
	return &fixture{svc: svc, ledger: led, batch: bs}
}

func unlockedIDs(list []domain.Achievement) map[string]bool {
	out := map[string]bool{}
	for _, a := range list {
		out[a.ID] = true
	}
	return out
}

func TestFirstTransactionUnlocks(t *testing.T) {
	f := newFixture(domain.TierFree)
	ctx := context.Background()

	_, err := f.ledger.AddTransaction(ctx, ledger.TransactionInput{Amount: 100, Status: domain.StatusSuccess})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	unlocked, err := f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	ids := unlockedIDs(unlocked)
	if !ids["first_transaction"] {
		t.Fatalf("first_transaction not unlocked: %v", ids)
	}
	if ids["ten_transactions"] {
		t.Fatalf("ten_transactions unlocked after one transaction")
	}

	// A second check unlocks nothing new.
	unlocked, err = f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(unlocked) != 0 {
		t.Fatalf("re-check unlocked %v", unlocked)
	}
}

func TestTransactionCountCountsAllStatuses(t *testing.T) {
	f := newFixture(domain.TierFree)
	ctx := context.Background()

	// 10 failed transactions still satisfy the count requirement: the
	// catalog counts recorded transactions, not successful ones.
	for i := 0; i < 10; i++ {
		_, err := f.ledger.AddTransaction(ctx, ledger.TransactionInput{Amount: 10, Status: domain.StatusFailed})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	unlocked, err := f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if !unlockedIDs(unlocked)["ten_transactions"] {
		t.Fatalf("ten_transactions not unlocked")
	}
}

func TestSavingsAchievement(t *testing.T) {
	f := newFixture(domain.TierFree)
	ctx := context.Background()

	// Net savings per transaction: 0.002 refunded - 0.0001 fee = 0.0019.
	_, err := f.ledger.AddTransaction(ctx, ledger.TransactionInput{
		Amount:          100,
		Status:          domain.StatusSuccess,
		JitoTipRefunded: 0.002,
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	unlocked, err := f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	ids := unlockedIDs(unlocked)
	if !ids["first_savings"] {
		t.Fatalf("first_savings not unlocked: %v", ids)
	}
	if ids["big_saver"] {
		t.Fatalf("big_saver unlocked at 0.0019 savings")
	}
}

func TestTierAchievements(t *testing.T) {
	f := newFixture(domain.TierPremium)
	ctx := context.Background()

	unlocked, err := f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	ids := unlockedIDs(unlocked)
	if !ids["basic_tier"] || !ids["premium_tier"] {
		t.Fatalf("tier achievements = %v, want basic_tier and premium_tier", ids)
	}
	if ids["vip_tier"] {
		t.Fatalf("vip_tier unlocked at premium")
	}
}

func TestBatchAchievements(t *testing.T) {
	f := newFixture(domain.TierFree)
	ctx := context.Background()

	big := &domain.Batch{
		ID:        "batch_1",
		Status:    domain.BatchSuccess,
		CreatedAt: time.Now().UTC(),
	}
	for i := 0; i < 10; i++ {
		big.Items = append(big.Items, &domain.BatchItem{ID: "tx_x", Status: domain.StatusSuccess})
	}
	if err := f.batch.Append(ctx, big); err != nil {
		t.Fatalf("Append: %v", err)
	}

	unlocked, err := f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	ids := unlockedIDs(unlocked)
	if !ids["first_batch"] || !ids["big_batch"] {
		t.Fatalf("batch achievements = %v", ids)
	}
	if ids["batch_addict"] {
		t.Fatalf("batch_addict unlocked after one batch")
	}
}

func TestPerfectDay(t *testing.T) {
	f := newFixture(domain.TierFree)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := f.ledger.AddTransaction(ctx, ledger.TransactionInput{
			Amount:    50,
			Status:    domain.StatusSuccess,
			Timestamp: day.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	unlocked, err := f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if !unlockedIDs(unlocked)["perfect_day"] {
		t.Fatalf("perfect_day not unlocked")
	}
}

func TestPerfectDaySpoiledByFailure(t *testing.T) {
	f := newFixture(domain.TierFree)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		status := domain.StatusSuccess
		if i == 5 {
			status = domain.StatusFailed
		}
		_, err := f.ledger.AddTransaction(ctx, ledger.TransactionInput{
			Amount:    50,
			Status:    status,
			Timestamp: day.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	unlocked, err := f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if unlockedIDs(unlocked)["perfect_day"] {
		t.Fatalf("perfect_day unlocked with a failed transaction in the day")
	}
}

func TestPointsAndLockedLists(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	_, err := f.ledger.AddTransaction(ctx, ledger.TransactionInput{Amount: 100, Status: domain.StatusSuccess})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	if _, err := f.svc.CheckAll(ctx); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}

	// first_transaction (100) + basic_tier (300).
	points, err := f.svc.TotalPoints(ctx)
	if err != nil {
		t.Fatalf("TotalPoints: %v", err)
	}
	if points != 400 {
		t.Fatalf("points = %d, want 400", points)
	}

	unlocked, err := f.svc.Unlocked(ctx)
	if err != nil {
		t.Fatalf("Unlocked: %v", err)
	}
	locked, err := f.svc.Locked(ctx)
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if len(unlocked)+len(locked) != len(domain.AllAchievements()) {
		t.Fatalf("unlocked %d + locked %d != catalog %d", len(unlocked), len(locked), len(domain.AllAchievements()))
	}
}

func TestUnmeasuredRequirementsStayLocked(t *testing.T) {
	f := newFixture(domain.TierVIP)
	ctx := context.Background()

	// Heavy activity across many days still leaves the streak, speed and
	// early-user entries locked: nothing measures those requirements.
	day := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		_, err := f.ledger.AddTransaction(ctx, ledger.TransactionInput{
			Amount:    100,
			Status:    domain.StatusSuccess,
			Timestamp: day.AddDate(0, 0, i),
		})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	unlocked, err := f.svc.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	ids := unlockedIDs(unlocked)
	for _, id := range []string{"seven_day_streak", "thirty_day_streak", "speed_demon", "early_adopter"} {
		if ids[id] {
			t.Errorf("%s unlocked without a measurement source", id)
		}
	}

	locked, err := f.svc.Locked(ctx)
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	stillLocked := unlockedIDs(locked)
	for _, id := range []string{"seven_day_streak", "thirty_day_streak", "speed_demon", "early_adopter"} {
		if !stillLocked[id] {
			t.Errorf("%s missing from locked list", id)
		}
	}
}
