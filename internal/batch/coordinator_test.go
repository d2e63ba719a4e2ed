package batch

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/gateway"
	"parkchain-gateway/internal/ledger"
	"parkchain-gateway/internal/storage/memory"
)

type staticTier struct {
	tier domain.Tier
}

func (s staticTier) CurrentTier(context.Context) (domain.Tier, error) {
	return s.tier, nil
}

// scriptedSender fails the sends whose 1-based index is listed in failAt.
type scriptedSender struct {
	calls  int
	failAt map[int]bool
}

func (s *scriptedSender) Send(_ context.Context, req gateway.SendRequest) (*gateway.SendResult, error) {
	s.calls++
	if s.failAt[s.calls] {
		return nil, gateway.ErrDeliveryFailed
	}
	return &gateway.SendResult{
		Signature:          "sig",
		ConfirmationTimeMs: 100,
		DeliveryMethod:     req.Channel,
	}, nil
}

type fixture struct {
	coord  *Coordinator
	ledger *ledger.Service
	sender *scriptedSender
}

func newFixture(tierID string) *fixture {
	quiet := log.New(io.Discard, "", 0)
	led := ledger.NewService(ledger.Options{
		TransactionStore: memory.NewTransactionStore(),
		MetricsStore:     memory.NewMetricsStore(),
		Logger:           quiet,
	})
	sender := &scriptedSender{failAt: map[int]bool{}}
	coord := NewCoordinator(Options{
		Tiers:      staticTier{tier: domain.TierByID(tierID)},
		Ledger:     led,
		Sender:     sender,
		BatchStore: memory.NewBatchStore(),
		Logger:     quiet,
	})
	return &fixture{coord: coord, ledger: led, sender: sender}
}

func TestCreateBatchRequiresBatchingTier(t *testing.T) {
	f := newFixture(domain.TierFree)

	_, err := f.coord.CreateBatch(context.Background(), CreateOptions{})
	if !errors.Is(err, ErrTierNoBatching) {
		t.Fatalf("error = %v, want ErrTierNoBatching", err)
	}
}

func TestAddToBatchEnforcesCap(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	b, err := f.coord.CreateBatch(ctx, CreateOptions{})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if b.MaxSize != 5 {
		t.Fatalf("basic batch max = %d, want 5", b.MaxSize)
	}

	for i := 0; i < 5; i++ {
		if _, _, err := f.coord.AddToBatch(b.ID, ItemInput{Amount: 100}); err != nil {
			t.Fatalf("AddToBatch %d: %v", i, err)
		}
	}
	if _, _, err := f.coord.AddToBatch(b.ID, ItemInput{Amount: 100}); !errors.Is(err, ErrBatchFull) {
		t.Fatalf("error over cap = %v, want ErrBatchFull", err)
	}
}

func TestSavingsGrowWithEachItem(t *testing.T) {
	f := newFixture(domain.TierPremium)
	ctx := context.Background()

	b, err := f.coord.CreateBatch(ctx, CreateOptions{})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	prev := 0.0
	for i := 0; i < 10; i++ {
		_, snap, err := f.coord.AddToBatch(b.ID, ItemInput{Amount: 50})
		if err != nil {
			t.Fatalf("AddToBatch: %v", err)
		}
		if snap.EstimatedSavings <= prev && i > 0 {
			t.Fatalf("savings did not grow: %v after %v at item %d", snap.EstimatedSavings, prev, i+1)
		}
		prev = snap.EstimatedSavings
	}

	// 10 items: 10*0.0001 - (0.0001 + 10*0.00001) = 0.0008
	if diff := prev - 0.0008; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("savings for 10 items = %v, want 0.0008", prev)
	}
}

func TestRemoveFromBatch(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	b, _ := f.coord.CreateBatch(ctx, CreateOptions{})
	itemID, _, err := f.coord.AddToBatch(b.ID, ItemInput{Amount: 100})
	if err != nil {
		t.Fatalf("AddToBatch: %v", err)
	}

	snap, err := f.coord.RemoveFromBatch(b.ID, itemID)
	if err != nil {
		t.Fatalf("RemoveFromBatch: %v", err)
	}
	if len(snap.Items) != 0 || snap.EstimatedSavings != 0 {
		t.Fatalf("after removal: %d items, savings %v", len(snap.Items), snap.EstimatedSavings)
	}

	if _, err := f.coord.RemoveFromBatch(b.ID, "tx_missing"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("error = %v, want ErrItemNotFound", err)
	}
}

func TestExecuteEmptyBatch(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	b, _ := f.coord.CreateBatch(ctx, CreateOptions{})
	if _, err := f.coord.ExecuteBatch(ctx, b.ID, nil); !errors.Is(err, ErrBatchEmpty) {
		t.Fatalf("error = %v, want ErrBatchEmpty", err)
	}
}

func TestExecuteBatchAllSuccess(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	b, _ := f.coord.CreateBatch(ctx, CreateOptions{})
	for i := 0; i < 3; i++ {
		f.coord.AddToBatch(b.ID, ItemInput{Amount: 100})
	}

	var stages []string
	res, err := f.coord.ExecuteBatch(ctx, b.ID, func(p Progress) { stages = append(stages, p.Stage) })
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if !res.Success || res.Batch.Status != domain.BatchSuccess {
		t.Fatalf("result = %+v", res)
	}
	if res.Summary.Successful != 3 || res.Summary.Failed != 0 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if stages[0] != "building" || stages[len(stages)-1] != "complete" {
		t.Fatalf("stages = %v", stages)
	}

	// Batch moved from active to history.
	if _, err := f.coord.GetBatch(b.ID); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("executed batch still active: %v", err)
	}
	history, err := f.coord.BatchHistory(ctx, 10)
	if err != nil {
		t.Fatalf("BatchHistory: %v", err)
	}
	if len(history) != 1 || history[0].ID != b.ID {
		t.Fatalf("history = %+v", history)
	}

	// Each item landed in the ledger with the split fee.
	txs, err := f.ledger.GetTransactions(ctx)
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("ledger records = %d, want 3", len(txs))
	}
	for _, tx := range txs {
		if tx.DeliveryMethod != domain.DeliveryGatewayBatch {
			t.Errorf("delivery = %s", tx.DeliveryMethod)
		}
		if want := domain.DefaultGatewayFee / 3; tx.GatewayFee != want {
			t.Errorf("fee = %v, want %v", tx.GatewayFee, want)
		}
		if tx.Metadata["batchId"] != b.ID {
			t.Errorf("metadata batchId = %q", tx.Metadata["batchId"])
		}
	}
}

func TestExecuteBatchAtomicAbort(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	b, _ := f.coord.CreateBatch(ctx, CreateOptions{})
	for i := 0; i < 5; i++ {
		f.coord.AddToBatch(b.ID, ItemInput{Amount: 100})
	}
	f.sender.failAt[2] = true

	res, err := f.coord.ExecuteBatch(ctx, b.ID, nil)
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if res.Success || res.Batch.Status != domain.BatchFailed {
		t.Fatalf("atomic abort result = %+v", res.Batch.Status)
	}
	if res.Summary.Successful != 1 || res.Summary.Failed != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if f.sender.calls != 2 {
		t.Fatalf("sender calls = %d, want 2 (abort after first failure)", f.sender.calls)
	}

	// Items 3-5 were never attempted.
	if res.Batch.Items[2].Status != domain.StatusPending {
		t.Fatalf("item 3 status = %s, want pending", res.Batch.Items[2].Status)
	}

	// The already-recorded success is not rolled back: one success and
	// one failed record remain in the ledger.
	txs, err := f.ledger.GetTransactions(ctx)
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("ledger records = %d, want 2", len(txs))
	}
	var succ, fail int
	for _, tx := range txs {
		switch tx.Status {
		case domain.StatusSuccess:
			succ++
		case domain.StatusFailed:
			fail++
		}
	}
	if succ != 1 || fail != 1 {
		t.Fatalf("ledger outcome = %d success / %d failed, want 1/1", succ, fail)
	}
}

func TestExecuteBatchNonAtomicPartial(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	atomic := false
	b, _ := f.coord.CreateBatch(ctx, CreateOptions{Atomic: &atomic})
	for i := 0; i < 4; i++ {
		f.coord.AddToBatch(b.ID, ItemInput{Amount: 100})
	}
	f.sender.failAt[2] = true
	f.sender.failAt[3] = true

	res, err := f.coord.ExecuteBatch(ctx, b.ID, nil)
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if res.Batch.Status != domain.BatchPartial {
		t.Fatalf("status = %s, want partial", res.Batch.Status)
	}
	if res.Summary.Successful != 2 || res.Summary.Failed != 2 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if f.sender.calls != 4 {
		t.Fatalf("sender calls = %d, want 4", f.sender.calls)
	}
}

func TestCancelBatch(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	b, _ := f.coord.CreateBatch(ctx, CreateOptions{})
	if err := f.coord.CancelBatch(b.ID); err != nil {
		t.Fatalf("CancelBatch: %v", err)
	}
	if err := f.coord.CancelBatch(b.ID); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("second cancel = %v, want ErrBatchNotFound", err)
	}

	// Cancelled batches never reach history.
	history, err := f.coord.BatchHistory(ctx, 10)
	if err != nil {
		t.Fatalf("BatchHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("cancelled batch in history")
	}
}

func TestBatchStats(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b, _ := f.coord.CreateBatch(ctx, CreateOptions{})
		f.coord.AddToBatch(b.ID, ItemInput{Amount: 100})
		f.coord.AddToBatch(b.ID, ItemInput{Amount: 100})
		if _, err := f.coord.ExecuteBatch(ctx, b.ID, nil); err != nil {
			t.Fatalf("ExecuteBatch: %v", err)
		}
	}
	// One batch left pending.
	f.coord.CreateBatch(ctx, CreateOptions{})

	stats, err := f.coord.BatchStats(ctx)
	if err != nil {
		t.Fatalf("BatchStats: %v", err)
	}
	if stats.TotalBatches != 2 || stats.SuccessfulBatches != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.SuccessRate != "100.00" {
		t.Errorf("success rate = %s", stats.SuccessRate)
	}
	if stats.TotalTransactions != 4 || stats.AverageBatchSize != "2.0" {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ActiveBatches != 1 {
		t.Errorf("active = %d, want 1", stats.ActiveBatches)
	}
}

func TestCalculateBatchEfficiency(t *testing.T) {
	f := newFixture(domain.TierBasic)
	ctx := context.Background()

	// Clamped to the basic cap of 5.
	eff, err := f.coord.CalculateBatchEfficiency(ctx, 50)
	if err != nil {
		t.Fatalf("CalculateBatchEfficiency: %v", err)
	}
	if eff.TransactionCount != 5 {
		t.Fatalf("clamped count = %d, want 5", eff.TransactionCount)
	}
	if eff.IndividualCost != "0.000500" || eff.BatchCost != "0.000150" || eff.Savings != "0.000350" {
		t.Fatalf("efficiency = %+v", eff)
	}
	if !eff.Recommended {
		t.Fatalf("5 transactions not recommended")
	}

	eff, err = f.coord.CalculateBatchEfficiency(ctx, 2)
	if err != nil {
		t.Fatalf("CalculateBatchEfficiency: %v", err)
	}
	if eff.Recommended {
		t.Fatalf("2 transactions recommended")
	}
}

// gatedSender blocks inside Send until released, holding an execution
// mid-flight so tests can observe the batch concurrently.
type gatedSender struct {
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSender) Send(_ context.Context, req gateway.SendRequest) (*gateway.SendResult, error) {
	s.entered <- struct{}{}
	<-s.release
	return &gateway.SendResult{
		Signature:          "sig",
		ConfirmationTimeMs: 100,
		DeliveryMethod:     req.Channel,
	}, nil
}

func TestSnapshotsDuringExecute(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	led := ledger.NewService(ledger.Options{
		TransactionStore: memory.NewTransactionStore(),
		MetricsStore:     memory.NewMetricsStore(),
		Logger:           quiet,
	})
	sender := &gatedSender{entered: make(chan struct{}), release: make(chan struct{})}
	coord := NewCoordinator(Options{
		Tiers:      staticTier{tier: domain.TierByID(domain.TierBasic)},
		Ledger:     led,
		Sender:     sender,
		BatchStore: memory.NewBatchStore(),
		Logger:     quiet,
	})
	ctx := context.Background()

	b, err := coord.CreateBatch(ctx, CreateOptions{})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, _, err := coord.AddToBatch(b.ID, ItemInput{Amount: 100}); err != nil {
			t.Fatalf("AddToBatch: %v", err)
		}
	}

	errc := make(chan error, 1)
	done := make(chan *ExecuteResult, 1)
	go func() {
		res, err := coord.ExecuteBatch(ctx, b.ID, nil)
		errc <- err
		done <- res
	}()

	// First item is in flight; the batch must snapshot as building.
	<-sender.entered
	snap, err := coord.GetBatch(b.ID)
	if err != nil {
		t.Fatalf("GetBatch mid-execution: %v", err)
	}
	if snap.Status != domain.BatchBuilding {
		t.Fatalf("mid-execution status = %s, want building", snap.Status)
	}
	for _, item := range snap.Items {
		if item.Status != domain.StatusPending {
			t.Fatalf("item %s status = %s before any completion", item.ID, item.Status)
		}
	}

	// Release item 1, observe its result while item 2 is in flight.
	sender.release <- struct{}{}
	<-sender.entered
	snap, err = coord.GetBatch(b.ID)
	if err != nil {
		t.Fatalf("GetBatch mid-execution: %v", err)
	}
	if snap.Items[0].Status != domain.StatusSuccess || snap.Items[0].Signature != "sig" {
		t.Fatalf("first item after completion = %+v", snap.Items[0])
	}
	if snap.Items[2].Status != domain.StatusPending {
		t.Fatalf("third item status = %s, want pending", snap.Items[2].Status)
	}

	// ActiveBatches takes the same snapshot path.
	sender.release <- struct{}{}
	<-sender.entered
	if active := coord.ActiveBatches(); len(active) != 1 {
		t.Fatalf("active batches mid-execution = %d, want 1", len(active))
	}
	sender.release <- struct{}{}

	if err := <-errc; err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	res := <-done
	if res.Batch.Status != domain.BatchSuccess {
		t.Fatalf("final status = %s, want success", res.Batch.Status)
	}

	// Terminal state and removal from the active set land together.
	if _, err := coord.GetBatch(b.ID); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("error after completion = %v, want ErrBatchNotFound", err)
	}
	history, err := coord.BatchHistory(ctx, 10)
	if err != nil {
		t.Fatalf("BatchHistory: %v", err)
	}
	if len(history) != 1 || history[0].Status != domain.BatchSuccess {
		t.Fatalf("history = %+v", history)
	}
}
