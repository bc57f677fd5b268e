package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for imports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	records  *prometheus.CounterVec   // By kind and status (written/skipped/failed)
	imports  *prometheus.CounterVec   // By kind and phase
	bytes    *prometheus.CounterVec   // By kind
	duration *prometheus.HistogramVec // By kind
	active   prometheus.Gauge
}

// NewMetrics creates the import collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bboimport",
			Subsystem: "import",
			Name:      "records_total",
			Help:      "Total number of CSV records processed",
		}, []string{"kind", "status"}),

		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bboimport",
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Total number of finished imports by outcome",
		}, []string{"kind", "phase"}),

		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bboimport",
			Subsystem: "import",
			Name:      "bytes_total",
			Help:      "Total number of CSV bytes read",
		}, []string{"kind"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bboimport",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Import duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}, // Small files to half-hour runs
		}, []string{"kind"}),

		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bboimport",
			Subsystem: "import",
			Name:      "active",
			Help:      "Number of imports currently running",
		}),
	}

	for _, c := range []prometheus.Collector{m.records, m.imports, m.bytes, m.duration, m.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) importStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

// importFinished records the outcome of a run.
func (m *Metrics) importFinished(p ImportProgress, d time.Duration) {
	if m == nil {
		return
	}
	kind := p.Kind.String()
	m.active.Dec()
	m.imports.WithLabelValues(kind, string(p.Phase)).Inc()
	m.records.WithLabelValues(kind, "written").Add(float64(p.Written))
	m.records.WithLabelValues(kind, "skipped").Add(float64(p.Skipped))
	m.records.WithLabelValues(kind, "failed").Add(float64(p.Failed))
	m.bytes.WithLabelValues(kind).Add(float64(p.BytesRead))
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}
