// Package main provides the unified gateway server:
// - Transaction ledger with incremental metrics
// - Smart routing with network condition monitoring
// - Batch coordination and tier management
// - Achievement checks (scheduled)
// - Live event stream over websocket
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"parkchain-gateway/internal/achievements"
	"parkchain-gateway/internal/batch"
	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/events"
	"parkchain-gateway/internal/gateway"
	"parkchain-gateway/internal/ledger"
	"parkchain-gateway/internal/observability"
	"parkchain-gateway/internal/reporting"
	"parkchain-gateway/internal/routing"
	"parkchain-gateway/internal/storage"
	chstore "parkchain-gateway/internal/storage/clickhouse"
	"parkchain-gateway/internal/storage/memory"
	"parkchain-gateway/internal/storage/migrations"
	pgstore "parkchain-gateway/internal/storage/postgres"
	"parkchain-gateway/internal/stream"
	"parkchain-gateway/internal/tier"
)

// Server holds all components of the gateway service.
type Server struct {
	// Configuration
	postgresDSN   string
	clickhouseDSN string
	useMemory     bool

	// Components
	ledger       *ledger.Service
	tiers        *tier.Service
	selector     *routing.Selector
	sender       gateway.Sender
	coordinator  *batch.Coordinator
	achievements *achievements.Service
	exporter     *reporting.Exporter
	hub          *stream.Hub
	bus          *events.Bus
	metrics      *observability.Metrics
	logger       *log.Logger

	// State
	mu             sync.Mutex
	started        time.Time
	lastTierCheck  time.Time
	lastAchieveRun time.Time
	tierChecks     int
	achieveRuns    int
}

// allStores holds all storage implementations.
type allStores struct {
	transactionStore storage.TransactionStore
	metricsStore     storage.MetricsStore
	tierStore        storage.TierStore
	batchStore       storage.BatchStore
	perfStore        storage.ChannelPerformanceStore
	achievementStore storage.AchievementStore
	activityStore    storage.ActivityStore

	// pool is nil in memory mode; kept for query instrumentation.
	pool *pgstore.Pool
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", ":8080", "HTTP listen address")
	monitorInterval := flag.Duration("monitor-interval", 30*time.Second, "Network condition sampling interval")
	tierInterval := flag.Duration("tier-interval", 1*time.Minute, "Tier recalculation interval")
	achieveInterval := flag.Duration("achievement-interval", 2*time.Minute, "Achievement check interval")
	failureRate := flag.Float64("failure-rate", 0.05, "Simulated delivery failure rate")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server, err := buildServer(ctx, stores, *postgresDSN, *clickhouseDSN, *useMemory, *failureRate, logger)
	if err != nil {
		logger.Fatalf("Failed to build server: %v", err)
	}

	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(*httpAddr)

	err = server.Run(ctx, *monitorInterval, *tierInterval, *achieveInterval)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			transactionStore: memory.NewTransactionStore(),
			metricsStore:     memory.NewMetricsStore(),
			tierStore:        memory.NewTierStore(),
			batchStore:       memory.NewBatchStore(),
			perfStore:        memory.NewChannelPerformanceStore(),
			achievementStore: memory.NewAchievementStore(),
			activityStore:    memory.NewActivityStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// ClickHouse (migrations return a connection to the target database)
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	logger.Println("Connected to PostgreSQL and ClickHouse")

	stores := &allStores{
		// PostgreSQL stores (log + state)
		transactionStore: pgstore.NewTransactionStore(pool),
		metricsStore:     pgstore.NewMetricsStore(pool),
		tierStore:        pgstore.NewTierStore(pool),
		batchStore:       pgstore.NewBatchStore(pool),
		perfStore:        pgstore.NewChannelPerformanceStore(pool),
		achievementStore: pgstore.NewAchievementStore(pool),

		// ClickHouse store (analytics)
		activityStore: chstore.NewActivityStore(chConn),

		pool: pool,
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// buildServer wires all components over the stores.
func buildServer(ctx context.Context, stores *allStores, postgresDSN, clickhouseDSN string, useMemory bool, failureRate float64, logger *log.Logger) (*Server, error) {
	bus := events.NewBus()
	metrics := observability.NewMetrics("")

	if stores.pool != nil {
		stores.pool.SetObserver(func(operation string, elapsed time.Duration, err error) {
			metrics.RecordDBQuery("postgres", operation, elapsed, err)
		})
	}

	ledgerSvc := ledger.NewService(ledger.Options{
		TransactionStore: stores.transactionStore,
		MetricsStore:     stores.metricsStore,
		ActivityStore:    stores.activityStore,
		Bus:              bus,
		Logger:           log.New(os.Stdout, "[ledger] ", log.LstdFlags),
	})

	tierSvc := tier.NewService(tier.Options{
		MetricsStore:     stores.metricsStore,
		TransactionStore: stores.transactionStore,
		TierStore:        stores.tierStore,
		Bus:              bus,
		Logger:           log.New(os.Stdout, "[tier] ", log.LstdFlags),
	})

	sampler := routing.NewSyntheticSampler(time.Now().UnixNano(), 1500, 800)
	selector, err := routing.NewSelector(ctx, routing.Options{
		PerformanceStore: stores.perfStore,
		Tiers:            tierSvc,
		Sampler:          sampler,
		Bus:              bus,
		Logger:           log.New(os.Stdout, "[routing] ", log.LstdFlags),
	})
	if err != nil {
		return nil, fmt.Errorf("create routing selector: %w", err)
	}

	senderCfg := gateway.DefaultConfig()
	senderCfg.FailureRate = failureRate
	senderCfg.Sleep = true
	sender := gateway.NewSimulatedSender(senderCfg, log.New(os.Stdout, "[gateway] ", log.LstdFlags))

	coordinator := batch.NewCoordinator(batch.Options{
		Tiers:      tierSvc,
		Ledger:     ledgerSvc,
		Sender:     sender,
		BatchStore: stores.batchStore,
		Bus:        bus,
		Logger:     log.New(os.Stdout, "[batch] ", log.LstdFlags),
	})

	achieveSvc := achievements.NewService(achievements.Options{
		MetricsStore:     stores.metricsStore,
		TransactionStore: stores.transactionStore,
		BatchStore:       stores.batchStore,
		UnlockStore:      stores.achievementStore,
		Tiers:            tierSvc,
		Bus:              bus,
		Logger:           log.New(os.Stdout, "[achievements] ", log.LstdFlags),
	})

	return &Server{
		postgresDSN:   postgresDSN,
		clickhouseDSN: clickhouseDSN,
		useMemory:     useMemory,
		ledger:        ledgerSvc,
		tiers:         tierSvc,
		selector:      selector,
		sender:        sender,
		coordinator:   coordinator,
		achievements:  achieveSvc,
		exporter:      reporting.NewExporter(ledgerSvc, nil),
		hub:           stream.NewHub(bus, nil, log.New(os.Stdout, "[stream] ", log.LstdFlags)),
		bus:           bus,
		metrics:       metrics,
		logger:        logger,
		started:       time.Now().UTC(),
	}, nil
}

// Run starts the background schedulers and blocks until ctx is done.
func (s *Server) Run(ctx context.Context, monitorInterval, tierInterval, achieveInterval time.Duration) error {
	s.logger.Println("Starting gateway server...")

	s.selector.StartMonitoring(ctx, monitorInterval)
	defer s.selector.StopMonitoring()

	// Mirror bus events into Prometheus counters. Transaction events feed
	// the fee/refund counters here so batch-item records are counted too.
	evCh, cancelEv := s.bus.Subscribe(256)
	defer cancelEv()
	go func() {
		for ev := range evCh {
			s.metrics.EventsPublished.WithLabelValues(ev.Type).Inc()

			switch payload := ev.Payload.(type) {
			case *domain.Transaction:
				if ev.Type == events.TypeTransactionRecorded {
					s.metrics.JitoTipsRefunded.Add(payload.JitoTipRefunded)
					if payload.GatewayUsed {
						s.metrics.GatewayFeesPaid.Add(payload.GatewayFee)
					}
				}
			case map[string]any:
				if ev.Type == events.TypeConditionsChanged {
					if cond, ok := payload["conditions"].(domain.Condition); ok {
						s.metrics.SetNetworkCondition(string(cond))
					}
				}
			}
		}
	}()

	tierTicker := time.NewTicker(tierInterval)
	defer tierTicker.Stop()
	achieveTicker := time.NewTicker(achieveInterval)
	defer achieveTicker.Stop()
	subscriberTicker := time.NewTicker(15 * time.Second)
	defer subscriberTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tierTicker.C:
			s.runTierCheck(ctx)
		case <-achieveTicker.C:
			s.runAchievementCheck(ctx)
		case <-subscriberTicker.C:
			s.metrics.StreamSubscribers.Set(float64(s.hub.SubscriberCount()))
		}
	}
}

// runTierCheck recalculates and persists the tier.
func (s *Server) runTierCheck(ctx context.Context) {
	result, err := s.tiers.UpdateTier(ctx)
	if err != nil {
		s.logger.Printf("Tier check failed: %v", err)
		return
	}
	if result.Upgraded {
		s.metrics.TierUpgrades.Inc()
		s.metrics.TierLevel.Set(float64(result.NewTier.Level))
	}

	s.mu.Lock()
	s.lastTierCheck = time.Now().UTC()
	s.tierChecks++
	s.mu.Unlock()
}

// runAchievementCheck evaluates the achievement catalog.
func (s *Server) runAchievementCheck(ctx context.Context) {
	unlocked, err := s.achievements.CheckAll(ctx)
	if err != nil {
		s.logger.Printf("Achievement check failed: %v", err)
		return
	}
	if len(unlocked) > 0 {
		s.metrics.AchievementsUnlocked.Add(float64(len(unlocked)))
	}
	if points, err := s.achievements.TotalPoints(ctx); err == nil {
		s.metrics.AchievementPoints.Set(float64(points))
	}

	s.mu.Lock()
	s.lastAchieveRun = time.Now().UTC()
	s.achieveRuns++
	s.mu.Unlock()
}

// startHTTPServer serves health, metrics, the websocket stream and the
// JSON API.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// Live event stream
	mux.Handle("/ws", s.hub)

	// JSON API
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/metrics/over-time", s.handleMetricsOverTime)
	mux.HandleFunc("/api/tier", s.handleTier)
	mux.HandleFunc("/api/tier/update", s.handleTierUpdate)
	mux.HandleFunc("/api/tier/progress", s.handleTierProgress)
	mux.HandleFunc("/api/tier/stats", s.handleTierStats)
	mux.HandleFunc("/api/route", s.handleRoute)
	mux.HandleFunc("/api/routing/stats", s.handleRoutingStats)
	mux.HandleFunc("/api/send", s.handleSend)
	mux.HandleFunc("/api/batches", s.handleBatches)
	mux.HandleFunc("/api/batches/", s.handleBatchByID)
	mux.HandleFunc("/api/achievements", s.handleAchievements)
	mux.HandleFunc("/api/export", s.handleExport)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status             string           `json:"status"`
	Uptime             string           `json:"uptime"`
	Started            time.Time        `json:"started"`
	NetworkConditions  domain.Condition `json:"network_conditions"`
	StreamSubscribers  int              `json:"stream_subscribers"`
	LastTierCheck      time.Time        `json:"last_tier_check,omitempty"`
	LastAchievementRun time.Time        `json:"last_achievement_run,omitempty"`
	TierChecks         int              `json:"tier_checks"`
	AchievementRuns    int              `json:"achievement_runs"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:             "running",
		Uptime:             time.Since(s.started).String(),
		Started:            s.started,
		NetworkConditions:  s.selector.Conditions(),
		StreamSubscribers:  s.hub.SubscriberCount(),
		LastTierCheck:      s.lastTierCheck,
		LastAchievementRun: s.lastAchieveRun,
		TierChecks:         s.tierChecks,
		AchievementRuns:    s.achieveRuns,
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleTransactions lists the log (GET) or records a transaction (POST).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		txs, err := s.ledger.GetTransactions(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, txs)

	case http.MethodPost:
		var input ledger.TransactionInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := s.ledger.AddTransaction(r.Context(), input)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.metrics.RecordTransaction(tx.Status, tx.DeliveryMethod)
		writeJSON(w, http.StatusCreated, tx)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.GetMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.SavingsTotal.Set(snap.TotalSavings)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMetricsOverTime(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid days: %w", err))
			return
		}
		days = n
	}
	buckets, err := s.ledger.GetMetricsOverTime(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleTier(w http.ResponseWriter, r *http.Request) {
	t, err := s.tiers.CurrentTier(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTierUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	result, err := s.tiers.UpdateTier(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if result.Upgraded {
		s.metrics.TierUpgrades.Inc()
		s.metrics.TierLevel.Set(float64(result.NewTier.Level))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTierProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.tiers.NextTierProgress(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTierStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tiers.TierStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	opts := routing.SelectOptions{
		Conditions: domain.Condition(r.URL.Query().Get("conditions")),
		Prioritize: r.URL.Query().Get("prioritize"),
	}
	route, err := s.selector.SelectRoute(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.RoutesSelected.WithLabelValues(route.Primary.Channel).Inc()
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleRoutingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.selector.RoutingStats())
}

// SendRequest is the JSON body for /api/send.
type SendRequest struct {
	Amount     float64 `json:"amount"`
	Prioritize string  `json:"prioritize,omitempty"`
	JitoTip    float64 `json:"jitoTip,omitempty"`
}

// handleSend routes one transaction, delivers it through the simulated
// sender and records the outcome in the ledger and the selector.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	route, err := s.selector.SelectRoute(r.Context(), routing.SelectOptions{Prioritize: req.Prioritize})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.RoutesSelected.WithLabelValues(route.Primary.Channel).Inc()

	jitoTip := req.JitoTip
	if jitoTip == 0 && route.Primary.Channel == domain.ChannelJito {
		jitoTip = route.Primary.Info.BaseCost
	}

	result, sendErr := s.sender.Send(r.Context(), gateway.SendRequest{
		Channel: route.Primary.Channel,
		Amount:  req.Amount,
		JitoTip: jitoTip,
	})

	routed := routing.RoutingResult{Channel: route.Primary.Channel}
	input := ledger.TransactionInput{
		Amount:         req.Amount,
		DeliveryMethod: route.Primary.Channel,
	}
	if sendErr != nil {
		input.Status = domain.StatusFailed
		s.metrics.RecordRoutingOutcome(route.Primary.Channel, false, 0)
	} else {
		routed.Success = true
		routed.ConfirmationTimeMs = result.ConfirmationTimeMs
		routed.Signature = result.Signature
		input.Status = domain.StatusSuccess
		input.Signature = result.Signature
		input.ConfirmationTimeMs = result.ConfirmationTimeMs
		input.JitoTipRefunded = result.JitoTipRefunded
		s.metrics.RecordRoutingOutcome(route.Primary.Channel, true, float64(result.ConfirmationTimeMs)/1000)
	}

	if err := s.selector.RecordRoutingResult(r.Context(), routed); err != nil {
		s.logger.Printf("Record routing result failed: %v", err)
	}

	tx, err := s.ledger.AddTransaction(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.RecordTransaction(tx.Status, tx.DeliveryMethod)

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": tx,
		"route":       route,
		"delivered":   sendErr == nil,
	})
}

// CreateBatchRequest is the JSON body for POST /api/batches.
type CreateBatchRequest struct {
	Priority string `json:"priority,omitempty"`
	Atomic   *bool  `json:"atomic,omitempty"`
}

// handleBatches lists active batches (GET) or creates one (POST).
func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.coordinator.ActiveBatches())

	case http.MethodPost:
		var req CreateBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		b, err := s.coordinator.CreateBatch(r.Context(), batch.CreateOptions{
			Priority: req.Priority,
			Atomic:   req.Atomic,
		})
		if err != nil {
			writeError(w, batchErrorStatus(err), err)
			return
		}
		s.metrics.ActiveBatches.Inc()
		writeJSON(w, http.StatusCreated, b)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleBatchByID dispatches /api/batches/{id}[/items|/execute|/cancel].
func (s *Server) handleBatchByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	parts := strings.SplitN(rest, "/", 2)
	batchID := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		b, err := s.coordinator.GetBatch(batchID)
		if err != nil {
			writeError(w, batchErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, b)

	case action == "items" && r.Method == http.MethodPost:
		var input batch.ItemInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		itemID, b, err := s.coordinator.AddToBatch(batchID, input)
		if err != nil {
			writeError(w, batchErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactionId": itemID, "batch": b})

	case action == "execute" && r.Method == http.MethodPost:
		result, err := s.coordinator.ExecuteBatch(r.Context(), batchID, nil)
		if err != nil {
			writeError(w, batchErrorStatus(err), err)
			return
		}
		s.metrics.ActiveBatches.Dec()
		s.metrics.RecordBatch(result.Batch.Status, len(result.Batch.Items))
		writeJSON(w, http.StatusOK, result)

	case action == "cancel" && r.Method == http.MethodPost:
		if err := s.coordinator.CancelBatch(batchID); err != nil {
			writeError(w, batchErrorStatus(err), err)
			return
		}
		s.metrics.ActiveBatches.Dec()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Batch cancelled"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked, err := s.achievements.Unlocked(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	locked, err := s.achievements.Locked(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	points, err := s.achievements.TotalPoints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unlocked":    unlocked,
		"locked":      locked,
		"totalPoints": points,
	})
}

// handleExport streams the full log as JSON or CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.exporter.Export(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		out, err := reporting.RenderCSV(snap)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(out))
		return
	}

	data, err := reporting.RenderJSON(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// batchErrorStatus maps coordinator errors to HTTP statuses.
func batchErrorStatus(err error) int {
	switch {
	case errors.Is(err, batch.ErrBatchNotFound), errors.Is(err, batch.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrBatchNotPending),
		errors.Is(err, batch.ErrBatchFull),
		errors.Is(err, batch.ErrBatchEmpty),
		errors.Is(err, batch.ErrTierNoBatching):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
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
