package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// recordsTotal counts record calls by requested status and result
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bdt_ledger_records_total",
		Help: "Total ledger record calls by status and result",
	}, []string{"status", "result"})

	// recordDuration tracks record latency including the store write
	recordDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bdt_ledger_record_duration_seconds",
		Help:    "Ledger record duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
	})

	// storeErrorsTotal counts failed store operations
	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bdt_ledger_store_errors_total",
		Help: "Total ledger store failures by operation",
	}, []string{"op"})

	// scenariosByState reports the last computed completion
	scenariosByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bdt_ledger_scenarios",
		Help: "Scenarios of the active run by priority tier and state",
	}, []string{"tier", "state"})
)

// Record results.
const (
	resultChanged   = "changed"
	resultUnchanged = "unchanged"
	resultUnknown   = "unknown"
	resultError     = "error"
)

// WriteMetrics writes every metric of the default registry to path in the
// Prometheus text format, for a node_exporter textfile collector. The file
// is replaced atomically.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
