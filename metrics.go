package forestlog

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the store's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RecordsListed  prometheus.Counter
	RecordsSkipped *prometheus.CounterVec
	DecodeFaults   *prometheus.CounterVec
	Creates        *prometheus.CounterVec
	IndexAppends   *prometheus.CounterVec
	CreateDuration prometheus.Histogram
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsListed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forestlog",
			Subsystem: "store",
			Name:      "records_listed_total",
			Help:      "Records returned by List.",
		}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forestlog",
			Subsystem: "store",
			Name:      "records_skipped_total",
			Help:      "Indexed records left out of List.",
		}, []string{"reason"}),
		DecodeFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forestlog",
			Subsystem: "codec",
			Name:      "decode_faults_total",
			Help:      "Stored values that failed to decode.",
		}, []string{"kind"}),
		Creates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forestlog",
			Subsystem: "store",
			Name:      "creates_total",
			Help:      "Create calls by outcome.",
		}, []string{"result"}),
		IndexAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forestlog",
			Subsystem: "index",
			Name:      "appends_total",
			Help:      "Index append calls by outcome.",
		}, []string{"result"}),
		CreateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forestlog",
			Subsystem: "store",
			Name:      "create_duration_seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range []prometheus.Collector{
		m.RecordsListed, m.RecordsSkipped, m.DecodeFaults,
		m.Creates, m.IndexAppends, m.CreateDuration,
	} {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Metrics) listed(n int) {
	if m != nil {
		m.RecordsListed.Add(float64(n))
	}
}

func (m *Metrics) skipped(reason string) {
	if m != nil {
		m.RecordsSkipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) decodeFault(kind string) {
	if m != nil {
		m.DecodeFaults.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) created(result string, seconds float64) {
	if m != nil {
		m.Creates.WithLabelValues(result).Inc()
		m.CreateDuration.Observe(seconds)
	}
}

func (m *Metrics) appended(result string) {
	if m != nil {
		m.IndexAppends.WithLabelValues(result).Inc()
	}
}
