// Package metrics exposes Prometheus counters for the import pipeline and
// the reclassification job.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application counters
type Metrics struct {
	registry *prometheus.Registry

	ImportsStarted   prometheus.Counter
	ImportsCompleted prometheus.Counter
	ImportsFailed    prometheus.Counter
	ImportsDuplicate prometheus.Counter
	RowsInserted     prometheus.Counter
	RowErrors        prometheus.Counter

	ReclassificationRuns prometheus.Counter
	OperationsRetagged   prometheus.Counter
}

// New creates the metrics set on a dedicated registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ImportsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "compta_imports_started_total",
			Help: "Number of CSV imports that passed validation and started processing.",
		}),
		ImportsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "compta_imports_completed_total",
			Help: "Number of CSV imports that finished in the completed state.",
		}),
		ImportsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "compta_imports_failed_total",
			Help: "Number of CSV imports that finished in the failed state.",
		}),
		ImportsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "compta_imports_duplicate_total",
			Help: "Number of uploads rejected because the file hash was already imported.",
		}),
		RowsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "compta_import_rows_inserted_total",
			Help: "Number of CSV rows successfully inserted as operations.",
		}),
		RowErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "compta_import_row_errors_total",
			Help: "Number of CSV rows rejected with a row-level error.",
		}),
		ReclassificationRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "compta_reclassification_runs_total",
			Help: "Number of full tag reclassification sweeps.",
		}),
		OperationsRetagged: factory.NewCounter(prometheus.CounterOpts{
			Name: "compta_operations_retagged_total",
			Help: "Number of operations whose tag snapshot was rewritten by a sweep.",
		}),
	}
}

// Handler returns the HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
