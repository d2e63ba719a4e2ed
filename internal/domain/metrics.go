package domain

import "time"

// MetricsAggregate is the rolling summary derived from the transaction log.
// Counters and sums are maintained incrementally on every insert instead of
// rescanning the log.
//
// Note: TotalTransactions is not guaranteed to equal
// SuccessfulTransactions + FailedTransactions. Pending transactions are
// counted in the total but never resolved, so the success rate denominator
// includes them.
type MetricsAggregate struct {
	TotalTransactions      int64   `json:"totalTransactions"`
	SuccessfulTransactions int64   `json:"successfulTransactions"`
	FailedTransactions     int64   `json:"failedTransactions"`
	TotalJitoTipsRefunded  float64 `json:"totalJitoTipsRefunded"`
	TotalGatewayFees       float64 `json:"totalGatewayFees"`
	TotalSavings           float64 `json:"totalSavings"`

	// SuccessfulVolume is the cumulative amount of successful transactions.
	// Kept here so tier qualification does not rescan the log.
	SuccessfulVolume float64 `json:"successfulVolume"`

	// Running sum and sample count behind AverageConfirmationTimeMs.
	ConfirmTimeSumMs   float64 `json:"confirmTimeSumMs"`
	ConfirmTimeSamples int64   `json:"confirmTimeSamples"`
}

// AverageConfirmationTimeMs returns the mean confirmation time over all
// successful transactions that reported one.
func (m *MetricsAggregate) AverageConfirmationTimeMs() float64 {
	if m.ConfirmTimeSamples == 0 {
		return 0
	}
	return m.ConfirmTimeSumMs / float64(m.ConfirmTimeSamples)
}

// SuccessRatePct returns the success percentage over ALL transactions,
// pending included. A log with unresolved pending entries therefore never
// reaches 100% even if every resolved transaction succeeded.
func (m *MetricsAggregate) SuccessRatePct() float64 {
	if m.TotalTransactions == 0 {
		return 0
	}
	return float64(m.SuccessfulTransactions) / float64(m.TotalTransactions) * 100
}

// DayBucket is one UTC day-aligned bucket of the activity time series.
// Days with no transactions report zeros, not nulls.
type DayBucket struct {
	Date           time.Time `json:"date"`
	Count          int64     `json:"transactionCount"`
	SuccessRatePct float64   `json:"successRate"`
	Savings        float64   `json:"savings"`
}

// ActivityPoint is the analytics projection of a transaction, written to
// the activity store alongside the main log for time-bucketed queries.
type ActivityPoint struct {
	Timestamp      time.Time
	Status         string
	Amount         float64
	Savings        float64
	DeliveryMethod string
}
