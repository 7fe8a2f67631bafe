package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TransferMetrics holds Prometheus collectors for one run. It implements
// executor.Recorder.
type TransferMetrics struct {
	reg      *prometheus.Registry
	items    *prometheus.CounterVec
	bytes    prometheus.Counter
	retries  *prometheus.CounterVec
	batches  *prometheus.CounterVec
	duration *prometheus.GaugeVec
}

func NewTransferMetrics(reg *prometheus.Registry) *TransferMetrics {
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bulklift",
		Subsystem: "transfer",
		Name:      "items_total",
		Help:      "Total number of processed items by action and result.",
	}, []string{"action", "result"}) // result = "ok" | "error"
	bytes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bulklift",
		Subsystem: "transfer",
		Name:      "uploaded_bytes_total",
		Help:      "Total bytes uploaded.",
	})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bulklift",
		Subsystem: "transfer",
		Name:      "retries_total",
		Help:      "Total number of retried item attempts.",
	}, []string{"action"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bulklift",
		Subsystem: "transfer",
		Name:      "batches_total",
		Help:      "Total number of worker pool runs by phase.",
	}, []string{"phase"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bulklift",
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Wall clock duration of the last run by final state.",
	}, []string{"state"})

	reg.MustRegister(items, bytes, retries, batches, duration)

	return &TransferMetrics{
		reg:      reg,
		items:    items,
		bytes:    bytes,
		retries:  retries,
		batches:  batches,
		duration: duration,
	}
}

func (m *TransferMetrics) ObserveUpload(n int64) {
	m.items.WithLabelValues("upload", "ok").Inc()
	if n > 0 {
		m.bytes.Add(float64(n))
	}
}

func (m *TransferMetrics) ObserveDelete() {
	m.items.WithLabelValues("delete", "ok").Inc()
}

func (m *TransferMetrics) ObserveFailure(action string) {
	m.items.WithLabelValues(action, "error").Inc()
}

func (m *TransferMetrics) ObserveRetry(action string) {
	m.retries.WithLabelValues(action).Inc()
}

func (m *TransferMetrics) ObserveBatch(phase string) {
	m.batches.WithLabelValues(phase).Inc()
}

func (m *TransferMetrics) ObserveRun(state string, d time.Duration) {
	m.duration.WithLabelValues(state).Set(d.Seconds())
}

// WriteTextfile writes every registered metric in the node exporter textfile
// format.
func (m *TransferMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
