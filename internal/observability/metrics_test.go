package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// promauto registers against the default registry, so the suite shares
// one Metrics instance.
var testMetrics = NewMetrics("metricstest")

func TestSetNetworkConditionFlipsGauge(t *testing.T) {
	testMetrics.SetNetworkCondition("high")
	if got := testutil.ToFloat64(testMetrics.NetworkCondition.WithLabelValues("high")); got != 1 {
		t.Errorf("high = %v, want 1", got)
	}
	if got := testutil.ToFloat64(testMetrics.NetworkCondition.WithLabelValues("normal")); got != 0 {
		t.Errorf("normal = %v, want 0", got)
	}

	// Exactly one label stays at 1 after a change.
	testMetrics.SetNetworkCondition("low")
	if got := testutil.ToFloat64(testMetrics.NetworkCondition.WithLabelValues("high")); got != 0 {
		t.Errorf("high after change = %v, want 0", got)
	}
	if got := testutil.ToFloat64(testMetrics.NetworkCondition.WithLabelValues("low")); got != 1 {
		t.Errorf("low after change = %v, want 1", got)
	}
}

func TestRecordDBQuery(t *testing.T) {
	testMetrics.RecordDBQuery("postgres", "exec", 5*time.Millisecond, nil)
	testMetrics.RecordDBQuery("postgres", "exec", time.Millisecond, errors.New("connection reset"))

	if got := testutil.ToFloat64(testMetrics.DBQueryErrors.WithLabelValues("postgres", "exec")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(testMetrics.DBQueryDuration); n == 0 {
		t.Error("no duration samples collected")
	}
}
