package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "lendbook_"

	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	registerOnce sync.Once

	paymentsTotal     *prometheus.CounterVec
	paymentLatency    *prometheus.HistogramVec
	allocationEntries *prometheus.CounterVec
	allocationExcess  prometheus.Counter
	instrumentsClosed prometheus.Counter
	sweepLatency      *prometheus.HistogramVec
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		paymentsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_total",
				Help: "Total payment submissions by allocation strategy and result",
			},
			[]string{"strategy", "result"},
		)
		paymentLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payment_latency_seconds",
				Help:    "Payment read-allocate-commit latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		)
		allocationEntries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "allocation_entries_total",
				Help: "Total transaction rows produced by allocation, by transaction type",
			},
			[]string{"type"},
		)
		allocationExcess = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "allocation_excess_total",
				Help: "Total payments that left an unallocated remainder",
			},
		)
		instrumentsClosed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "instruments_closed_total",
				Help: "Total instruments closed",
			},
		)
		sweepLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sweep_latency_seconds",
				Help:    "Outstanding refresh sweep latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			paymentsTotal,
			paymentLatency,
			allocationEntries,
			allocationExcess,
			instrumentsClosed,
			sweepLatency,
		)
	})
}

// ObservePayment records one payment submission.
func ObservePayment(strategy, result string, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if paymentsTotal != nil {
		paymentsTotal.WithLabelValues(strategy, result).Inc()
	}
	if paymentLatency != nil {
		paymentLatency.WithLabelValues(strategy).Observe(duration.Seconds())
	}
}

// IncAllocationEntry counts one committed allocation row.
func IncAllocationEntry(txType string) {
	if allocationEntries != nil {
		allocationEntries.WithLabelValues(txType).Inc()
	}
}

func IncAllocationExcess() {
	if allocationExcess != nil {
		allocationExcess.Inc()
	}
}

func IncInstrumentClosed() {
	if instrumentsClosed != nil {
		instrumentsClosed.Inc()
	}
}

// ObserveSweep records one outstanding refresh pass.
func ObserveSweep(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if sweepLatency != nil {
		sweepLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}
