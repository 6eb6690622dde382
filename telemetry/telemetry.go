// Package telemetry records per-run pipeline metrics in a Prometheus
// registry and writes them out in the text exposition format, for a
// node-exporter textfile collector.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

const namespace = "thyroid"

// Metrics holds the collectors of one pipeline run.
type Metrics struct {
	StageRows     *prometheus.GaugeVec   // Rows leaving each stage
	StageDuration *prometheus.GaugeVec   // Wall time of each stage in seconds
	StageFailures *prometheus.CounterVec // Stages that returned an error
	ClassRows     *prometheus.GaugeVec   // Rows per class after labeling and after balancing
	Features      prometheus.Gauge       // Number of selected features
	Accuracy      prometheus.Gauge       // Test accuracy of the trained model
	LastSuccess   prometheus.Gauge       // Unix time of the last successful run

	gatherer prometheus.Gatherer
}

// New creates the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry creates the metrics on registerer; gatherer is what
// WriteTextfile exports and is usually the same registry.
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		StageRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_rows",
			Help:      "Number of rows produced by a pipeline stage",
		}, []string{"stage"}),
		StageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in a pipeline stage",
		}, []string{"stage"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Number of pipeline stages that failed",
		}, []string{"stage"}),
		ClassRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "class_rows",
			Help:      "Number of rows per target class",
		}, []string{"stage", "class"}),
		Features: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_features",
			Help:      "Number of features kept by the feature selector",
		}),
		Accuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_accuracy",
			Help:      "Accuracy of the trained model on the test partition",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time at which the pipeline last completed",
		}),
		gatherer: gatherer,
	}
}

// ObserveStage records the outcome of one stage. rows is ignored when err
// is not nil.
func (m *Metrics) ObserveStage(stage string, rows int, d time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage).Set(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
		return
	}
	m.StageRows.WithLabelValues(stage).Set(float64(rows))
}

// ObserveClass records the number of rows of class after stage.
func (m *Metrics) ObserveClass(stage, class string, rows int) {
	m.ClassRows.WithLabelValues(stage, class).Set(float64(rows))
}

// MarkSuccess stamps the completion time of a successful run.
func (m *Metrics) MarkSuccess(at time.Time) {
	m.LastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes every gathered metric to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
