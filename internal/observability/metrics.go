// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	TransactionsRecorded *prometheus.CounterVec
	SavingsTotal         prometheus.Gauge
	JitoTipsRefunded     prometheus.Counter
	GatewayFeesPaid      prometheus.Counter

	// Routing metrics
	RoutesSelected   *prometheus.CounterVec
	RoutingOutcomes  *prometheus.CounterVec
	NetworkCondition *prometheus.GaugeVec
	DeliveryLatency  *prometheus.HistogramVec

	// Batch metrics
	BatchesExecuted *prometheus.CounterVec
	BatchSize       prometheus.Histogram
	ActiveBatches   prometheus.Gauge

	// Tier metrics
	TierLevel    prometheus.Gauge
	TierUpgrades prometheus.Counter

	// Achievement metrics
	AchievementsUnlocked prometheus.Counter
	AchievementPoints    prometheus.Gauge

	// Stream metrics
	StreamSubscribers prometheus.Gauge
	EventsPublished   *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "parkchain_gateway"
	}

	return &Metrics{
		// Ledger metrics
		TransactionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_recorded_total",
			Help:      "Total number of transactions recorded by status",
		}, []string{"status", "delivery_method"}),
		SavingsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "savings_sol",
			Help:      "Net savings in SOL (refunded tips minus gateway fees)",
		}),
		JitoTipsRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "jito_tips_refunded_sol_total",
			Help:      "Total Jito tips refunded in SOL",
		}),
		GatewayFeesPaid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "gateway_fees_sol_total",
			Help:      "Total gateway fees paid in SOL",
		}),

		// Routing metrics
		RoutesSelected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "routes_selected_total",
			Help:      "Total number of route selections by channel",
		}, []string{"channel"}),
		RoutingOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "outcomes_total",
			Help:      "Total number of routed deliveries by channel and outcome",
		}, []string{"channel", "outcome"}),
		NetworkCondition: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "network_condition",
			Help:      "Current network condition flag (1 for active condition)",
		}, []string{"condition"}),
		DeliveryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "delivery_latency_seconds",
			Help:      "Simulated delivery latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 10, 15},
		}, []string{"channel"}),

		// Batch metrics
		BatchesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "executed_total",
			Help:      "Total number of batch executions by terminal status",
		}, []string{"status"}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "size",
			Help:      "Item count of executed batches",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		ActiveBatches: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "active",
			Help:      "Current number of active batches",
		}),

		// Tier metrics
		TierLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tier",
			Name:      "level",
			Help:      "Current persisted tier level",
		}),
		TierUpgrades: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tier",
			Name:      "upgrades_total",
			Help:      "Total number of tier changes applied",
		}),

		// Achievement metrics
		AchievementsUnlocked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "achievements",
			Name:      "unlocked_total",
			Help:      "Total number of achievements unlocked",
		}),
		AchievementPoints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "achievements",
			Name:      "points",
			Help:      "Total achievement points earned",
		}),

		// Stream metrics
		StreamSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Current number of websocket subscribers",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_published_total",
			Help:      "Total number of events published by type",
		}, []string{"type"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetNetworkCondition flips the condition gauge so exactly one label
// reads 1.
func (m *Metrics) SetNetworkCondition(condition string) {
	for _, c := range []string{"low", "normal", "high", "critical"} {
		v := 0.0
		if c == condition {
			v = 1.0
		}
		m.NetworkCondition.WithLabelValues(c).Set(v)
	}
}

// RecordTransaction records one ledger insert.
func (m *Metrics) RecordTransaction(status, deliveryMethod string) {
	m.TransactionsRecorded.WithLabelValues(status, deliveryMethod).Inc()
}

// RecordRoutingOutcome records one routed delivery outcome.
func (m *Metrics) RecordRoutingOutcome(channel string, success bool, latencySeconds float64) {
	outcome := "failed"
	if success {
		outcome = "success"
	}
	m.RoutingOutcomes.WithLabelValues(channel, outcome).Inc()
	if success && latencySeconds > 0 {
		m.DeliveryLatency.WithLabelValues(channel).Observe(latencySeconds)
	}
}

// RecordBatch records one terminal batch.
func (m *Metrics) RecordBatch(status string, size int) {
	m.BatchesExecuted.WithLabelValues(status).Inc()
	m.BatchSize.Observe(float64(size))
}

// RecordDBQuery records one database operation.
func (m *Metrics) RecordDBQuery(database, operation string, elapsed time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(elapsed.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
