// Package metrics exposes run outcomes as Prometheus metrics for
// long-running deployments that execute pipelines on a schedule.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fedeglan/fast-data-integrity/pkg/pipeline"
)

// Recorder aggregates report outcomes into Prometheus collectors.
type Recorder struct {
	runs          *prometheus.CounterVec
	records       prometheus.Counter
	recordsMapped prometheus.Counter
	violations    *prometheus.CounterVec
	mappingErrors *prometheus.CounterVec
	runSeconds    prometheus.Histogram
}

// NewRecorder registers the collectors with the given registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fdi",
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		records: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fdi",
			Name:      "records_seen_total",
			Help:      "Records read across all runs.",
		}),
		recordsMapped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fdi",
			Name:      "records_mapped_total",
			Help:      "Records mapped across all runs.",
		}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fdi",
			Name:      "violations_total",
			Help:      "Rule violations by rule and severity.",
		}, []string{"rule", "severity"}),
		mappingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fdi",
			Name:      "mapping_errors_total",
			Help:      "Mapping errors by cause.",
		}, []string{"cause"}),
		runSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fdi",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

// Record folds one finalized report into the collectors.
func (r *Recorder) Record(report *pipeline.Report) {
	r.runs.WithLabelValues(string(report.Status)).Inc()
	r.records.Add(float64(report.RecordsSeen))
	r.recordsMapped.Add(float64(report.RecordsMapped))
	for _, v := range report.Violations {
		r.violations.WithLabelValues(v.RuleID, string(v.Severity)).Inc()
	}
	for _, e := range report.MappingErrors {
		r.mappingErrors.WithLabelValues(string(e.Cause)).Inc()
	}
	r.runSeconds.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
}
