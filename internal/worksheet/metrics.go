package worksheet

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for worksheet runs.
//
// Metrics:
//   - errprop_worksheet_runs_total{mode,result} - Count of worksheet runs
//   - errprop_worksheet_steps_total{op} - Count of evaluated steps
//   - errprop_worksheet_run_duration_seconds{mode} - Histogram of run times
//   - errprop_worksheet_derivation_lines - Lines in the last derivation
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	StepsTotal      *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	DerivationLines prometheus.Gauge
}

// NewMetrics creates the worksheet metrics and registers them with reg.
// Use a fresh registry per process; registering twice panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "errprop",
				Subsystem: "worksheet",
				Name:      "runs_total",
				Help:      "Total number of worksheet runs",
			},
			[]string{"mode", "result"}, // result: "success" or "error"
		),

		StepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "errprop",
				Subsystem: "worksheet",
				Name:      "steps_total",
				Help:      "Total number of evaluated worksheet steps",
			},
			[]string{"op"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "errprop",
				Subsystem: "worksheet",
				Name:      "run_duration_seconds",
				Help:      "Duration of worksheet runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"mode"},
		),

		DerivationLines: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "errprop",
				Subsystem: "worksheet",
				Name:      "derivation_lines",
				Help:      "Number of lines in the most recent derivation",
			},
		),
	}
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

func (m *Metrics) observeStep(op Op) {
	if m == nil {
		return
	}
	m.StepsTotal.WithLabelValues(string(op)).Inc()
}

func (m *Metrics) observeRun(mode Mode, elapsed time.Duration, lines int, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.RunsTotal.WithLabelValues(string(mode), result).Inc()
	m.RunDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	if err == nil && mode == ModeDerive {
		m.DerivationLines.Set(float64(lines))
	}
}
